// Package compiler implements the tool-call compilation pipeline for ToolFuse.
//
// Given a batch of planned invocations, the compiler infers ordering
// constraints between invocations that touch the same resource, groups
// independent invocations into fused operations to amortize per-call
// overhead, and produces a CompilationResult carrying the dependency
// graph, the fused plan and compilation metrics.
//
// # Pipeline
//
// Dependency Analysis:
//   - Resource keys and read/write classification are inferred per
//     invocation by a pluggable ResourceKeyExtractor (naming heuristic
//     by default)
//   - Read-after-write, write-after-read and write-after-write edges are
//     recorded in a DependencyGraph built in submission order
//   - Cycles introduced by resource aliasing are detected and surfaced
//     via metrics, never raised as errors
//
// Fusion:
//   - Invocations sharing an operation name with no dependency edges
//     between them are grouped into FusedOperations
//   - Savings per group are estimated as the standalone cost sum minus
//     the cost of the most expensive member plus a fixed fusion overhead
//
// The compiler is total: malformed or empty input yields a valid
// zero-valued result. Compilation is a pure function of its inputs; an
// optional CompilationCache can be supplied by the caller to memoize
// repeated batches.
//
// Usage:
//
//	result := compiler.Compile(invocations, func(o *compiler.FusionConfig) {
//	    o.MinTokenSavingsThreshold = 200
//	})
//	if result.Metrics.HasCircularDependencies {
//	    // executor falls back to submission order for cycle members
//	}
package compiler
