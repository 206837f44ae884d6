// Package executor implements the execution engine consuming compiled
// tool-call plans.
//
// The Engine runs a level-order (Kahn) topological schedule over the
// dependency graph carried in a compiler.CompilationResult: it repeatedly
// collects the set of invocations with zero remaining dependencies (a
// "ready stage"), dispatches them through a caller-supplied ToolExecutorFn
// with bounded parallelism, then unlocks dependents as operations complete.
//
// # Guarantees
//
//   - Stages execute strictly in topological order; a later stage never
//     starts before every operation its members depend on has completed
//   - Operations within a stage run concurrently up to Config.MaxParallelism
//   - Cyclic graphs never deadlock: cycle members run as a final fallback
//     stage sequentially in original submission order, the documented
//     deterministic tie-break
//   - Executor failures never abort the in-flight stage; whether further
//     stages dispatch is governed solely by Config.ContinueOnError
//
// Retries and cancellation cooperation are the responsibility of the
// injected callback; see Sandboxed for a wrapper adding panic recovery and
// per-call timeouts.
//
// Usage:
//
//	engine := executor.New(func(o *executor.Options) {
//	    o.Config.MaxParallelism = 4
//	})
//	result := engine.Execute(ctx, compilation, func(ctx context.Context, name string, args map[string]any) (any, error) {
//	    return myTools.Call(ctx, name, args)
//	})
package executor
