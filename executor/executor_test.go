package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolfuse/compiler"
)

func inv(id, name string, args map[string]any, cost float64) compiler.Invocation {
	return compiler.Invocation{ID: id, Name: name, Arguments: args, EstimatedCost: cost}
}

// okExecutor returns a ToolExecutorFn succeeding for every operation with a
// fixed latency.
func okExecutor(latency time.Duration) ToolExecutorFn {
	return func(ctx context.Context, name string, args map[string]any) (any, error) {
		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return "ok:" + name, nil
	}
}

// -------------------- Basic Runs --------------------

func TestExecute_EmptyPlan(t *testing.T) {
	e := New()
	res := e.Execute(context.Background(), compiler.Compile(nil), okExecutor(0))

	assert.True(t, res.Success)
	assert.NotEmpty(t, res.ExecutionID)
	assert.Empty(t, res.Outcomes)
	assert.Empty(t, res.ErrorSummary)
}

func TestExecute_AllOperationsSucceed(t *testing.T) {
	compilation := compiler.Compile([]compiler.Invocation{
		inv("1", "read_file", map[string]any{"path": "a"}, 100),
		inv("2", "read_file", map[string]any{"path": "b"}, 100),
	})

	e := New()
	res := e.Execute(context.Background(), compilation, okExecutor(0))

	assert.True(t, res.Success)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, "ok:read_file", res.Outcomes["1"].Result)
	assert.True(t, res.Outcomes["2"].Success)
	assert.Empty(t, res.ErrorSummary)
	assert.Zero(t, res.FailedCount())
}

func TestExecute_ExecutionIDsUnique(t *testing.T) {
	compilation := compiler.Compile(nil)
	e := New()

	first := e.Execute(context.Background(), compilation, okExecutor(0))
	second := e.Execute(context.Background(), compilation, okExecutor(0))

	assert.NotEqual(t, first.ExecutionID, second.ExecutionID)
}

// -------------------- Ordering --------------------

func TestExecute_DependencyOrdering(t *testing.T) {
	compilation := compiler.Compile([]compiler.Invocation{
		inv("w", "write_file", map[string]any{"path": "a"}, 100),
		inv("r", "read_file", map[string]any{"path": "a"}, 100),
	})
	require.True(t, compilation.Graph.HasDependency("r", "w"))

	e := New(func(o *Options) { o.Config.MaxParallelism = 4 })
	res := e.Execute(context.Background(), compilation, okExecutor(5*time.Millisecond))

	require.True(t, res.Success)
	wOut := res.Outcomes["w"]
	rOut := res.Outcomes["r"]
	require.NotNil(t, wOut)
	require.NotNil(t, rOut)

	wDone := wOut.StartedAt.Add(wOut.Duration)
	assert.False(t, rOut.StartedAt.Before(wDone), "dependent started before its dependency completed")

	require.Len(t, res.Stages, 2)
	assert.Equal(t, []string{"w"}, res.Stages[0])
	assert.Equal(t, []string{"r"}, res.Stages[1])
}

func TestExecute_StagesFollowTopology(t *testing.T) {
	// w1 <- r1, w1 <- r2, independent x.
	compilation := compiler.Compile([]compiler.Invocation{
		inv("w1", "write_file", map[string]any{"path": "a"}, 100),
		inv("r1", "read_file", map[string]any{"path": "a"}, 100),
		inv("r2", "read_file", map[string]any{"path": "a"}, 100),
		inv("x", "search", map[string]any{"query": "q"}, 100),
	})

	e := New(func(o *Options) { o.Config.MaxParallelism = 4 })
	res := e.Execute(context.Background(), compilation, okExecutor(0))

	require.True(t, res.Success)
	require.Len(t, res.Stages, 2)
	assert.ElementsMatch(t, []string{"w1", "x"}, res.Stages[0])
	assert.ElementsMatch(t, []string{"r1", "r2"}, res.Stages[1])
}

// -------------------- Parallelism --------------------

func TestExecute_ParallelismWallClock(t *testing.T) {
	const latency = 25 * time.Millisecond

	batch := []compiler.Invocation{
		inv("1", "read", map[string]any{"path": "a"}, 100),
		inv("2", "read", map[string]any{"path": "b"}, 100),
		inv("3", "read", map[string]any{"path": "c"}, 100),
		inv("4", "read", map[string]any{"path": "d"}, 100),
	}
	compilation := compiler.Compile(batch)

	parallel := New(func(o *Options) { o.Config.MaxParallelism = len(batch) })
	res := parallel.Execute(context.Background(), compilation, okExecutor(latency))
	require.True(t, res.Success)
	assert.Less(t, res.TotalExecutionTime, 3*latency, "parallel run should take roughly one latency")

	sequential := New()
	res = sequential.Execute(context.Background(), compilation, okExecutor(latency))
	require.True(t, res.Success)
	assert.GreaterOrEqual(t, res.TotalExecutionTime, 4*latency, "sequential run pays the latency per operation")
}

func TestExecute_BoundedConcurrency(t *testing.T) {
	compilation := compiler.Compile([]compiler.Invocation{
		inv("1", "read", map[string]any{"path": "a"}, 100),
		inv("2", "read", map[string]any{"path": "b"}, 100),
		inv("3", "read", map[string]any{"path": "c"}, 100),
		inv("4", "read", map[string]any{"path": "d"}, 100),
	})

	var mu sync.Mutex
	inFlight, peak := 0, 0

	fn := func(ctx context.Context, name string, args map[string]any) (any, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil, nil
	}

	e := New(func(o *Options) { o.Config.MaxParallelism = 2 })
	res := e.Execute(context.Background(), compilation, fn)

	require.True(t, res.Success)
	assert.LessOrEqual(t, peak, 2)
	assert.GreaterOrEqual(t, peak, 1)
}

// -------------------- Failure Handling --------------------

func failFor(failures map[string]error) ToolExecutorFn {
	return func(ctx context.Context, name string, args map[string]any) (any, error) {
		if err, ok := failures[args["path"].(string)]; ok {
			return nil, err
		}
		return "ok", nil
	}
}

func TestExecute_ContinueOnErrorRunsEverything(t *testing.T) {
	compilation := compiler.Compile([]compiler.Invocation{
		inv("1", "read_file", map[string]any{"path": "a"}, 100),
		inv("2", "read_file", map[string]any{"path": "b"}, 100),
		inv("3", "read_file", map[string]any{"path": "c"}, 100),
		inv("4", "read_file", map[string]any{"path": "d"}, 100),
	})

	e := New(func(o *Options) { o.Config.ContinueOnError = true })
	res := e.Execute(context.Background(), compilation, failFor(map[string]error{
		"b": errors.New("b exploded"),
		"d": errors.New("d exploded"),
	}))

	assert.False(t, res.Success)
	assert.Len(t, res.Outcomes, 4)
	assert.Equal(t, 2, res.FailedCount())
	assert.Contains(t, res.ErrorSummary, "2: b exploded")
	assert.Contains(t, res.ErrorSummary, "4: d exploded")
	assert.True(t, res.Outcomes["1"].Success)
	assert.True(t, res.Outcomes["3"].Success)
}

func TestExecute_StopOnFirstFailure(t *testing.T) {
	// Chain: w1 <- r1 <- w2 (write, read, rewrite of the same path).
	compilation := compiler.Compile([]compiler.Invocation{
		inv("w1", "write_file", map[string]any{"path": "a"}, 100),
		inv("r1", "read_file", map[string]any{"path": "a"}, 100),
		inv("w2", "update_file", map[string]any{"path": "a"}, 100),
	})

	calls := 0
	fn := func(ctx context.Context, name string, args map[string]any) (any, error) {
		calls++
		return nil, errors.New("boom")
	}

	e := New()
	res := e.Execute(context.Background(), compilation, fn)

	assert.False(t, res.Success)
	assert.Equal(t, 1, calls, "no further stage may dispatch after the first failure")
	require.Len(t, res.Outcomes, 1)
	assert.Contains(t, res.ErrorSummary, "w1: boom")
	assert.Len(t, res.Stages, 1)
}

func TestExecute_FailureDoesNotAbortInFlightStage(t *testing.T) {
	compilation := compiler.Compile([]compiler.Invocation{
		inv("1", "read_file", map[string]any{"path": "a"}, 100),
		inv("2", "read_file", map[string]any{"path": "b"}, 100),
	})

	e := New(func(o *Options) { o.Config.MaxParallelism = 2 })
	res := e.Execute(context.Background(), compilation, failFor(map[string]error{
		"a": errors.New("a exploded"),
	}))

	// Both operations share a stage: the sibling completes even though a
	// member failed and ContinueOnError is false.
	assert.False(t, res.Success)
	assert.Len(t, res.Outcomes, 2)
	assert.True(t, res.Outcomes["2"].Success)
}

// -------------------- Cycle Fallback --------------------

func TestExecute_CycleFallbackNeverDeadlocks(t *testing.T) {
	g := compiler.NewDependencyGraph([]string{"a", "b"})
	g.AddDependency("a", "b")
	g.AddDependency("b", "a")
	require.True(t, g.HasCycle())

	compilation := &compiler.CompilationResult{
		OriginalToolCount: 2,
		Invocations: []compiler.Invocation{
			inv("a", "read_file", map[string]any{"path": "x"}, 100),
			inv("b", "read_file", map[string]any{"path": "y"}, 100),
		},
		Graph:   g,
		Success: true,
	}
	compilation.Metrics.HasCircularDependencies = true

	done := make(chan *ExecutionResult, 1)
	go func() {
		e := New(func(o *Options) { o.Config.MaxParallelism = 4 })
		done <- e.Execute(context.Background(), compilation, okExecutor(2*time.Millisecond))
	}()

	select {
	case res := <-done:
		assert.True(t, res.Success)
		assert.Len(t, res.Outcomes, 2)
		// Fallback stage runs every cycle member in submission order.
		require.Len(t, res.Stages, 1)
		assert.Equal(t, []string{"a", "b"}, res.Stages[0])

		aDone := res.Outcomes["a"].StartedAt.Add(res.Outcomes["a"].Duration)
		assert.False(t, res.Outcomes["b"].StartedAt.Before(aDone), "fallback stage must be sequential")
	case <-time.After(5 * time.Second):
		t.Fatal("execution deadlocked on cyclic graph")
	}
}

func TestExecute_CycleWithTailCompletes(t *testing.T) {
	// c depends on the a<->b cycle; the fallback sweeps it up so nothing
	// is left behind.
	g := compiler.NewDependencyGraph([]string{"a", "b", "c"})
	g.AddDependency("a", "b")
	g.AddDependency("b", "a")
	g.AddDependency("c", "a")

	compilation := &compiler.CompilationResult{
		OriginalToolCount: 3,
		Invocations: []compiler.Invocation{
			inv("a", "read_file", map[string]any{"path": "x"}, 100),
			inv("b", "read_file", map[string]any{"path": "y"}, 100),
			inv("c", "read_file", map[string]any{"path": "z"}, 100),
		},
		Graph:   g,
		Success: true,
	}
	compilation.Metrics.HasCircularDependencies = true

	e := New()
	res := e.Execute(context.Background(), compilation, okExecutor(0))

	assert.True(t, res.Success)
	assert.Len(t, res.Outcomes, 3)
}

// -------------------- Cancellation --------------------

func TestExecute_ContextCancellation(t *testing.T) {
	compilation := compiler.Compile([]compiler.Invocation{
		inv("w", "write_file", map[string]any{"path": "a"}, 100),
		inv("r", "read_file", map[string]any{"path": "a"}, 100),
	})

	ctx, cancel := context.WithCancel(context.Background())

	fn := func(ctx context.Context, name string, args map[string]any) (any, error) {
		cancel() // cancel during the first stage
		return "ok", nil
	}

	e := New()
	res := e.Execute(ctx, compilation, fn)

	assert.False(t, res.Success, "a cancelled run never attempted all operations")
	assert.Len(t, res.Outcomes, 1)
}
