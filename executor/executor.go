package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/toolfuse/compiler"
	"github.com/hupe1980/toolfuse/logging"
)

// ToolExecutorFn executes one named operation with its arguments. It is
// injected by the caller at execution time; the engine never calls it
// outside the scheduling loop. Implementations should honor ctx
// cancellation for long-running operations.
type ToolExecutorFn func(ctx context.Context, name string, args map[string]any) (any, error)

// Config defines tuning parameters for the execution engine.
type Config struct {
	// MaxParallelism bounds how many operations of a ready stage run
	// concurrently. Values below 1 are treated as 1 (strictly sequential).
	MaxParallelism int

	// ContinueOnError keeps scheduling subsequent stages after a failure.
	// When false, no further stage is dispatched once an operation fails;
	// the in-flight stage is still awaited to completion.
	ContinueOnError bool
}

// DefaultConfig provides the baseline execution configuration:
// strictly sequential, stop on first failure.
var DefaultConfig = Config{
	MaxParallelism:  1,
	ContinueOnError: false,
}

// Options configures an Engine instance using the functional options pattern.
type Options struct {
	// Config contains operational parameters for scheduling behavior.
	// Defaults to DefaultConfig if not specified.
	Config Config

	// Logger provides structured logging for debugging and monitoring.
	// Defaults to NoOp logger if nil.
	Logger logging.Logger
}

// Outcome is the recorded result of one operation.
type Outcome struct {
	// ID is the invocation id the outcome belongs to.
	ID string `json:"id"`
	// Name is the operation that was executed.
	Name string `json:"name"`
	// Success is true when the executor callback returned without error.
	Success bool `json:"success"`
	// Result is the opaque value returned by the callback.
	Result any `json:"result,omitempty"`
	// Err is the callback error, nil on success.
	Err error `json:"-"`
	// StartedAt is the wall-clock dispatch time.
	StartedAt time.Time `json:"started_at"`
	// Duration is the operation's wall-clock execution time.
	Duration time.Duration `json:"duration"`
}

// ExecutionResult aggregates the outcome of executing a compiled plan.
type ExecutionResult struct {
	// ExecutionID uniquely identifies this run.
	ExecutionID string `json:"execution_id"`
	// Success is true when every operation was attempted and none failed.
	Success bool `json:"success"`
	// TotalExecutionTime is measured end-to-end across the whole schedule,
	// not summed per operation, so it reflects realized parallelism.
	TotalExecutionTime time.Duration `json:"total_execution_time"`
	// ErrorSummary concatenates failure messages in submission order,
	// empty if none.
	ErrorSummary string `json:"error_summary,omitempty"`
	// Outcomes holds per-operation results keyed by invocation id.
	// Operations never dispatched (aborted or cancelled runs) are absent.
	Outcomes map[string]*Outcome `json:"outcomes"`
	// Stages records the invocation ids of each dispatched stage in
	// dispatch order, exposing the realized schedule.
	Stages [][]string `json:"stages,omitempty"`
}

// FailedCount returns the number of operations that were attempted and failed.
func (r *ExecutionResult) FailedCount() int {
	n := 0
	for _, out := range r.Outcomes {
		if !out.Success {
			n++
		}
	}
	return n
}

// Engine schedules compiled plans against an injected executor callback.
// An Engine has no mutable state after construction and is safe for
// concurrent use; all per-run state is confined to Execute.
type Engine struct {
	config Config
	logger logging.Logger
}

// New creates an execution Engine with optional configuration.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config.MaxParallelism < 1 {
		opts.Config.MaxParallelism = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Engine{config: opts.Config, logger: opts.Logger}
}

// Execute runs the compiled plan through fn using a level-order topological
// schedule.
//
// The dependency graph and fused-operation list in the compilation are
// treated as read-only; the only mutable shared state during a run is the
// remaining-dependency counters and the outcome map, both confined here.
func (e *Engine) Execute(ctx context.Context, compilation *compiler.CompilationResult, fn ToolExecutorFn) *ExecutionResult {
	start := time.Now()

	res := &ExecutionResult{
		ExecutionID: uuid.NewString(),
		Outcomes:    make(map[string]*Outcome, len(compilation.Invocations)),
	}

	order := compilation.Invocations
	g := compilation.Graph
	if g == nil {
		ids := make([]string, len(order))
		for i, inv := range order {
			ids[i] = inv.ID
		}
		g = compiler.NewDependencyGraph(ids)
	}

	indeg := g.InDegrees()
	pending := make(map[string]bool, len(order))
	for _, inv := range order {
		pending[inv.ID] = true
	}

	logger := e.logger
	aborted := false

	for len(pending) > 0 {
		if ctx.Err() != nil {
			logger.Warn("executor.cancelled", "execution_id", res.ExecutionID, "remaining", len(pending))
			break
		}

		var ready []compiler.Invocation
		for _, inv := range order {
			if pending[inv.ID] && indeg[inv.ID] == 0 {
				ready = append(ready, inv)
			}
		}

		// No ready operation while work remains means the graph carries a
		// cycle. Break it deterministically: run every remaining operation
		// as one fallback stage, sequentially in submission order.
		sequential := false
		if len(ready) == 0 {
			for _, inv := range order {
				if pending[inv.ID] {
					ready = append(ready, inv)
				}
			}
			sequential = true
			logger.Warn(
				"executor.cycle_fallback",
				"execution_id", res.ExecutionID,
				"operations", len(ready),
			)
		}

		stageIDs := make([]string, len(ready))
		for i, inv := range ready {
			stageIDs[i] = inv.ID
		}
		res.Stages = append(res.Stages, stageIDs)

		e.runStage(ctx, ready, fn, res, sequential)

		stageFailed := false
		for _, inv := range ready {
			delete(pending, inv.ID)
			if out := res.Outcomes[inv.ID]; out != nil && !out.Success {
				stageFailed = true
			}
			for _, dependent := range g.Dependents(inv.ID) {
				if pending[dependent] {
					indeg[dependent]--
				}
			}
		}

		if stageFailed && !e.config.ContinueOnError {
			aborted = true
			break
		}
	}

	failed := 0
	var summary strings.Builder
	for _, inv := range order {
		out, ok := res.Outcomes[inv.ID]
		if !ok || out.Success {
			continue
		}
		failed++
		if summary.Len() > 0 {
			summary.WriteString("; ")
		}
		fmt.Fprintf(&summary, "%s: %v", inv.ID, out.Err)
	}
	res.ErrorSummary = summary.String()
	res.Success = failed == 0 && len(res.Outcomes) == len(order)
	res.TotalExecutionTime = time.Since(start)

	logger.Info(
		"executor.execute.complete",
		"execution_id", res.ExecutionID,
		"operations", len(order),
		"stages", len(res.Stages),
		"failed", failed,
		"aborted", aborted,
		"duration_ms", res.TotalExecutionTime.Milliseconds(),
	)

	return res
}

// runStage dispatches one ready stage through fn, bounded by MaxParallelism
// (or strictly sequential for the cycle fallback), and waits for every
// dispatched operation to finish.
func (e *Engine) runStage(
	ctx context.Context,
	stage []compiler.Invocation,
	fn ToolExecutorFn,
	res *ExecutionResult,
	sequential bool,
) {
	maxPar := e.config.MaxParallelism
	if sequential || maxPar < 1 {
		maxPar = 1
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, maxPar)

	for _, inv := range stage {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(inv compiler.Invocation) {
			defer wg.Done()
			defer func() { <-sem }()

			startedAt := time.Now()
			result, err := fn(ctx, inv.Name, inv.Arguments)
			dur := time.Since(startedAt)

			e.logger.Debug(
				"executor.operation.complete",
				"id", inv.ID,
				"tool", inv.Name,
				"success", err == nil,
				"duration_ms", dur.Milliseconds(),
			)

			mu.Lock()
			res.Outcomes[inv.ID] = &Outcome{
				ID:        inv.ID,
				Name:      inv.Name,
				Success:   err == nil,
				Result:    result,
				Err:       err,
				StartedAt: startedAt,
				Duration:  dur,
			}
			mu.Unlock()
		}(inv)
	}

	wg.Wait()
}
