package compiler

import (
	"time"

	"github.com/hupe1980/toolfuse/logging"
)

// FusionConfig defines tuning parameters for the compilation pipeline.
//
// All fields have production-ready defaults via DefaultFusionConfig and are
// overridden through functional options:
//
//	result := compiler.Compile(invs, func(o *compiler.FusionConfig) {
//	    o.MinTokenSavingsThreshold = 200
//	    o.EnableDependencyAnalysis = false
//	})
type FusionConfig struct {
	// MinTokenSavingsThreshold is the minimum aggregate savings required
	// before fusion is recommended (see Compiler.ShouldUseFusion).
	MinTokenSavingsThreshold float64

	// MaxParallelism is an advisory cap used when bucketing the
	// parallelizable invocation count. 0 means unbounded.
	MaxParallelism int

	// EnableDependencyAnalysis toggles the resource-conflict analysis. When
	// false all invocations are treated as independent.
	EnableDependencyAnalysis bool

	// MinToolsForFusion is the minimum number of tool definitions required
	// before the definition-side optimizer synthesizes combined schemas.
	// It is carried here so one config object can drive both the call-time
	// compiler and the definition optimizer.
	MinToolsForFusion int

	// FusionOverhead is the fixed per-call overhead amortized by fusing a
	// group, expressed in the same units as Invocation.EstimatedCost.
	FusionOverhead float64

	// Extractor infers resource accesses during dependency analysis.
	// Defaults to NewHeuristicExtractor().
	Extractor ResourceKeyExtractor

	// Logger receives compilation logs. Defaults to NoOp logger if nil.
	Logger logging.Logger
}

// DefaultFusionConfig returns the baseline compiler configuration.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		MinTokenSavingsThreshold: 100,
		MaxParallelism:           0,
		EnableDependencyAnalysis: true,
		MinToolsForFusion:        3,
		FusionOverhead:           50,
		Extractor:                NewHeuristicExtractor(),
		Logger:                   logging.NoOpLogger{},
	}
}

// FusedOperation is a group of invocations considered safe to execute as a
// unit or as a parallel batch. Members never include invocations connected
// by a dependency edge.
type FusedOperation struct {
	// MemberIDs lists the member invocation ids in submission order.
	MemberIDs []string `json:"member_ids"`
	// EstimatedTokenSavings is the standalone cost of the members minus the
	// estimated cost of executing them fused. Zero for singletons.
	EstimatedTokenSavings float64 `json:"estimated_token_savings"`
	// CanParallelize is true when the group has two or more members sharing
	// no dependency edges among themselves.
	CanParallelize bool `json:"can_parallelize"`
}

// CompilationMetrics carries timing and graph-shape measurements for one
// compilation pass. Timing fields vary between otherwise identical runs;
// comparisons of compilation outputs should exclude them.
type CompilationMetrics struct {
	CompilationTime         time.Duration `json:"compilation_time"`
	DependencyAnalysisTime  time.Duration `json:"dependency_analysis_time"`
	FusionTime              time.Duration `json:"fusion_time"`
	MaxDependencyDepth      int           `json:"max_dependency_depth"`
	AverageDependencies     float64       `json:"average_dependencies"`
	HasCircularDependencies bool          `json:"has_circular_dependencies"`
}

// CompilationResult is the compiled plan plus aggregate metrics for one
// invocation batch. All fields are read-only once returned.
type CompilationResult struct {
	// OriginalToolCount is the number of submitted invocations.
	OriginalToolCount int `json:"original_tool_count"`
	// FusedOperations is the compiled plan in group-creation order.
	FusedOperations []FusedOperation `json:"fused_operations"`
	// FusedOperationCount is len(FusedOperations).
	FusedOperationCount int `json:"fused_operation_count"`
	// TotalTokenSavings is the sum of savings over all fused operations.
	TotalTokenSavings float64 `json:"total_token_savings"`
	// ParallelizableCount counts invocations belonging to parallelizable
	// fused operations, bucketed by the advisory MaxParallelism cap.
	ParallelizableCount int `json:"parallelizable_count"`
	// Graph is the dependency graph the plan was derived from.
	Graph *DependencyGraph `json:"-"`
	// Invocations preserves the submitted batch in submission order so the
	// execution engine can resolve names and arguments by id.
	Invocations []Invocation `json:"invocations"`
	// Metrics carries timings and graph measurements.
	Metrics CompilationMetrics `json:"metrics"`
	// Success is false only on an internal compiler fault (for example a
	// duplicate invocation id). Cycles and empty input are not faults.
	Success bool `json:"success"`
}

// Compiler turns invocation batches into fused, dependency-ordered plans.
// A Compiler has no mutable state after construction and is safe for
// concurrent use.
type Compiler struct {
	cfg      FusionConfig
	analyzer *Analyzer
	logger   logging.Logger
}

// New creates a Compiler with optional configuration overrides.
func New(optFns ...func(o *FusionConfig)) *Compiler {
	cfg := DefaultFusionConfig()

	for _, fn := range optFns {
		fn(&cfg)
	}

	if cfg.Extractor == nil {
		cfg.Extractor = NewHeuristicExtractor()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NoOpLogger{}
	}

	analyzer := NewAnalyzer(func(o *AnalyzerOptions) {
		o.Extractor = cfg.Extractor
		o.Logger = cfg.Logger
	})

	return &Compiler{cfg: cfg, analyzer: analyzer, logger: cfg.Logger}
}

// Compile is a convenience wrapper constructing a Compiler per call.
func Compile(invs []Invocation, optFns ...func(o *FusionConfig)) *CompilationResult {
	return New(optFns...).Compile(invs)
}

// Config returns the effective configuration of the compiler.
func (c *Compiler) Config() FusionConfig { return c.cfg }

// ShouldUseFusion reports whether the compiled plan's aggregate savings meet
// the configured threshold. This is a pure comparison; no history or
// smoothing is consulted. A plan with nothing to save (empty batches,
// singleton groups only) is never recommended, whatever the threshold.
func (c *Compiler) ShouldUseFusion(res *CompilationResult) bool {
	return res.TotalTokenSavings > 0 && res.TotalTokenSavings >= c.cfg.MinTokenSavingsThreshold
}

// Compile runs the full pipeline: dependency analysis, cycle detection,
// fusion grouping and metric aggregation.
//
// Compile never returns an error. An empty batch yields a valid all-zero
// result; callers should check the counts rather than Success to detect
// "nothing to do". Success turns false only on internal invariant
// violations such as duplicate invocation ids.
func (c *Compiler) Compile(invs []Invocation) *CompilationResult {
	start := time.Now()

	res := &CompilationResult{
		OriginalToolCount: len(invs),
		Invocations:       append([]Invocation(nil), invs...),
		Success:           true,
	}

	if len(invs) == 0 {
		res.Graph = NewDependencyGraph(nil)
		res.Metrics.CompilationTime = time.Since(start)
		return res
	}

	// Dependency analysis
	analysisStart := time.Now()
	var g *DependencyGraph
	if c.cfg.EnableDependencyAnalysis {
		g = c.analyzer.Analyze(invs)
	} else {
		ids := make([]string, len(invs))
		for i, inv := range invs {
			ids[i] = inv.ID
		}
		g = NewDependencyGraph(ids)
	}
	res.Graph = g
	res.Metrics.DependencyAnalysisTime = time.Since(analysisStart)
	res.Metrics.HasCircularDependencies = g.HasCycle()
	res.Metrics.MaxDependencyDepth = g.MaxDepth()
	res.Metrics.AverageDependencies = g.AverageDependencies()

	// Invariant: the graph must cover exactly the submitted batch. A
	// duplicate id collapses two invocations into one node, which would
	// silently drop work at execution time.
	if g.Len() != len(invs) {
		c.logger.Error(
			"compiler.compile.invariant_violation",
			"invocations", len(invs),
			"graph_nodes", g.Len(),
		)
		res.Success = false
	}

	// Fusion grouping
	fusionStart := time.Now()
	groups := c.groupInvocations(invs, g)

	res.FusedOperations = make([]FusedOperation, 0, len(groups))
	for _, members := range groups {
		op := c.buildFusedOperation(members)
		res.FusedOperations = append(res.FusedOperations, op)
		res.TotalTokenSavings += op.EstimatedTokenSavings
		if op.CanParallelize {
			n := len(op.MemberIDs)
			if c.cfg.MaxParallelism > 0 && n > c.cfg.MaxParallelism {
				n = c.cfg.MaxParallelism
			}
			res.ParallelizableCount += n
		}
	}
	res.FusedOperationCount = len(res.FusedOperations)
	res.Metrics.FusionTime = time.Since(fusionStart)
	res.Metrics.CompilationTime = time.Since(start)

	c.logger.Debug(
		"compiler.compile.complete",
		"invocations", len(invs),
		"fused_operations", res.FusedOperationCount,
		"token_savings", res.TotalTokenSavings,
		"has_cycles", res.Metrics.HasCircularDependencies,
		"duration_ms", res.Metrics.CompilationTime.Milliseconds(),
	)

	return res
}

// groupInvocations forms fusion candidates: invocations sharing the same
// operation name with no dependency edge to any member already in the
// group. Submission order is preserved within and across groups.
func (c *Compiler) groupInvocations(invs []Invocation, g *DependencyGraph) [][]Invocation {
	var groups [][]Invocation
	byName := make(map[string][]int)

	for _, inv := range invs {
		placed := false
		for _, gi := range byName[inv.Name] {
			if !conflictsWithGroup(g, groups[gi], inv) {
				groups[gi] = append(groups[gi], inv)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []Invocation{inv})
			byName[inv.Name] = append(byName[inv.Name], len(groups)-1)
		}
	}

	return groups
}

// conflictsWithGroup reports whether inv shares a direct dependency edge
// with any current member, in either direction.
func conflictsWithGroup(g *DependencyGraph, members []Invocation, inv Invocation) bool {
	for _, m := range members {
		if g.HasDependency(inv.ID, m.ID) || g.HasDependency(m.ID, inv.ID) {
			return true
		}
	}
	return false
}

// buildFusedOperation estimates savings for a candidate group. Fusing
// amortizes the fixed overhead of issuing a call but still costs the size
// of the single most expensive member, so for groups of two or more the
// estimate is sum(cost) - (max(cost) + FusionOverhead). Singletons carry
// zero savings and are never parallelizable on their own.
func (c *Compiler) buildFusedOperation(members []Invocation) FusedOperation {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}

	op := FusedOperation{MemberIDs: ids}
	if len(members) < 2 {
		return op
	}

	var sum, max float64
	for _, m := range members {
		sum += m.EstimatedCost
		if m.EstimatedCost > max {
			max = m.EstimatedCost
		}
	}

	op.EstimatedTokenSavings = sum - (max + c.cfg.FusionOverhead)
	op.CanParallelize = true
	return op
}
