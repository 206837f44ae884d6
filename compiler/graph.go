package compiler

// DependencyGraph encodes must-happen-before relationships between
// invocations as a mapping from invocation id to the set of ids it waits
// for. The graph is built once per compilation in submission order and must
// not be mutated after it has been attached to a CompilationResult.
//
// The graph keeps entries for every submitted invocation, cycle or not; a
// cyclic graph is still a valid value and is reported through HasCycle
// rather than by dropping nodes.
type DependencyGraph struct {
	order      []string
	dependsOn  map[string][]string
	dependents map[string][]string
}

// NewDependencyGraph creates a graph containing the given invocation ids in
// submission order, with no edges.
func NewDependencyGraph(ids []string) *DependencyGraph {
	g := &DependencyGraph{
		order:      make([]string, 0, len(ids)),
		dependsOn:  make(map[string][]string, len(ids)),
		dependents: make(map[string][]string, len(ids)),
	}
	for _, id := range ids {
		if _, ok := g.dependsOn[id]; ok {
			continue
		}
		g.order = append(g.order, id)
		g.dependsOn[id] = nil
	}
	return g
}

// AddDependency records that id must wait for dep. Self-edges and duplicate
// edges are ignored. Intended for graph construction only; a graph shared
// through a CompilationResult is read-only.
func (g *DependencyGraph) AddDependency(id, dep string) {
	if id == dep {
		return
	}
	if g.HasDependency(id, dep) {
		return
	}
	g.dependsOn[id] = append(g.dependsOn[id], dep)
	g.dependents[dep] = append(g.dependents[dep], id)
}

// HasDependency reports whether id directly waits for dep.
func (g *DependencyGraph) HasDependency(id, dep string) bool {
	for _, d := range g.dependsOn[id] {
		if d == dep {
			return true
		}
	}
	return false
}

// DependsOn returns the ids the given invocation waits for.
func (g *DependencyGraph) DependsOn(id string) []string { return g.dependsOn[id] }

// Dependents returns the ids waiting for the given invocation.
func (g *DependencyGraph) Dependents(id string) []string { return g.dependents[id] }

// IDs returns all invocation ids in submission order.
func (g *DependencyGraph) IDs() []string { return g.order }

// Len returns the number of invocations in the graph.
func (g *DependencyGraph) Len() int { return len(g.order) }

// EdgeCount returns the total number of dependency edges.
func (g *DependencyGraph) EdgeCount() int {
	n := 0
	for _, deps := range g.dependsOn {
		n += len(deps)
	}
	return n
}

// AverageDependencies returns the mean number of dependencies per
// invocation, or 0 for an empty graph.
func (g *DependencyGraph) AverageDependencies() float64 {
	if len(g.order) == 0 {
		return 0
	}
	return float64(g.EdgeCount()) / float64(len(g.order))
}

const (
	nodeWhite = iota // unvisited
	nodeGray         // on the recursion stack
	nodeBlack        // fully explored
)

// HasCycle reports whether the graph contains at least one dependency
// cycle, using a depth-first search with recursion-stack marking.
func (g *DependencyGraph) HasCycle() bool {
	state := make(map[string]int, len(g.order))

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = nodeGray
		for _, dep := range g.dependsOn[id] {
			switch state[dep] {
			case nodeGray:
				return true
			case nodeWhite:
				if visit(dep) {
					return true
				}
			}
		}
		state[id] = nodeBlack
		return false
	}

	for _, id := range g.order {
		if state[id] == nodeWhite && visit(id) {
			return true
		}
	}
	return false
}

// MaxDepth returns the length of the longest chain of dependency edges.
// An invocation without dependencies has depth 0. Edges that would close a
// cycle are skipped so the traversal terminates on malformed graphs.
func (g *DependencyGraph) MaxDepth() int {
	memo := make(map[string]int, len(g.order))
	state := make(map[string]int, len(g.order))

	var depth func(id string) int
	depth = func(id string) int {
		if state[id] == nodeGray {
			return 0
		}
		if state[id] == nodeBlack {
			return memo[id]
		}
		state[id] = nodeGray
		d := 0
		for _, dep := range g.dependsOn[id] {
			if v := depth(dep) + 1; v > d {
				d = v
			}
		}
		state[id] = nodeBlack
		memo[id] = d
		return d
	}

	max := 0
	for _, id := range g.order {
		if v := depth(id); v > max {
			max = v
		}
	}
	return max
}

// InDegrees returns a fresh map of remaining dependency counts per
// invocation, suitable as the working state for a topological schedule.
func (g *DependencyGraph) InDegrees() map[string]int {
	in := make(map[string]int, len(g.order))
	for _, id := range g.order {
		in[id] = len(g.dependsOn[id])
	}
	return in
}
