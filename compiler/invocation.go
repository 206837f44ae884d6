package compiler

import "strings"

// Invocation is one planned tool call submitted for compilation.
//
// Invocations are immutable once submitted: the compiler never mutates the
// caller's slice or argument maps. The ID must be unique within a batch and
// is the handle used throughout the dependency graph, the fused plan and the
// execution outcomes.
type Invocation struct {
	// ID is a caller-assigned identifier, unique within a batch.
	ID string `json:"id"`
	// Name identifies the operation (tool) to invoke.
	Name string `json:"name"`
	// Arguments are opaque key/value parameters passed through to execution.
	Arguments map[string]any `json:"arguments,omitempty"`
	// EstimatedCost is a non-negative proxy for the token/resource cost of
	// executing the invocation standalone.
	EstimatedCost float64 `json:"estimated_cost"`
}

// ResourceAccess describes one inferred touch of a resource by an invocation.
type ResourceAccess struct {
	// Key identifies the resource (for the default heuristic, the string
	// value of a path-like argument).
	Key string
	// Write is true when the access mutates the resource.
	Write bool
}

// ResourceKeyExtractor infers the resources an invocation touches and
// whether each access is a read or a write. Implementations must be safe
// for concurrent use and must not mutate the invocation.
//
// Callers can provide a custom extractor per tool family when the default
// naming heuristic does not fit; see HeuristicExtractor for the default.
type ResourceKeyExtractor interface {
	Extract(inv Invocation) []ResourceAccess
}

// DefaultResourceArguments lists the argument names the default heuristic
// treats as resource identifiers, checked in order.
var DefaultResourceArguments = []string{
	"path", "file", "filename", "filepath", "dir", "directory", "url", "key", "resource",
}

// DefaultWriteVerbs lists the substrings of an operation name that mark the
// operation as a writer of the resources it touches.
var DefaultWriteVerbs = []string{
	"write", "create", "delete", "update", "edit", "remove", "append", "move", "rename",
}

// HeuristicExtractor is the default ResourceKeyExtractor. It identifies
// resources through well-known argument names and classifies the access as
// a write when the operation name contains a write verb.
//
// A HeuristicExtractor has no mutable state after construction and is safe
// for concurrent use.
type HeuristicExtractor struct {
	// ArgumentNames are the argument keys checked for resource values.
	ArgumentNames []string
	// WriteVerbs are the name substrings marking an operation as a writer.
	WriteVerbs []string
}

// NewHeuristicExtractor creates an extractor with the default argument
// names and write verbs.
func NewHeuristicExtractor(optFns ...func(o *HeuristicExtractor)) *HeuristicExtractor {
	e := &HeuristicExtractor{
		ArgumentNames: DefaultResourceArguments,
		WriteVerbs:    DefaultWriteVerbs,
	}

	for _, fn := range optFns {
		fn(e)
	}

	return e
}

// Extract implements ResourceKeyExtractor. Invocations without any
// resource-like argument produce no accesses and stay dependency-free.
func (e *HeuristicExtractor) Extract(inv Invocation) []ResourceAccess {
	if len(inv.Arguments) == 0 {
		return nil
	}

	write := e.isWrite(inv.Name)

	var accesses []ResourceAccess
	for _, argName := range e.ArgumentNames {
		v, ok := inv.Arguments[argName]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		accesses = append(accesses, ResourceAccess{Key: s, Write: write})
	}

	return accesses
}

func (e *HeuristicExtractor) isWrite(name string) bool {
	lower := strings.ToLower(name)
	for _, verb := range e.WriteVerbs {
		if strings.Contains(lower, verb) {
			return true
		}
	}
	return false
}
