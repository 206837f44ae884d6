package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolfuse/compiler"
)

// -------------------- ExecError --------------------

func TestExecError_Error(t *testing.T) {
	err := NewExecError("read_file", "not found", "TIMEOUT")
	assert.Equal(t, "exec error [TIMEOUT] in read_file: not found", err.Error())

	plain := NewExecError("read_file", "not found", "")
	assert.Equal(t, "exec error in read_file: not found", plain.Error())
}

// -------------------- Sandboxed --------------------

func TestSandboxed_Passthrough(t *testing.T) {
	fn := Sandboxed(func(ctx context.Context, name string, args map[string]any) (any, error) {
		return "value", nil
	})

	result, err := fn(context.Background(), "read_file", nil)
	require.NoError(t, err)
	assert.Equal(t, "value", result)
}

func TestSandboxed_ErrorForwardedUnchanged(t *testing.T) {
	boom := errors.New("boom")
	fn := Sandboxed(func(ctx context.Context, name string, args map[string]any) (any, error) {
		return nil, boom
	})

	_, err := fn(context.Background(), "read_file", nil)
	assert.Same(t, boom, err)
}

func TestSandboxed_RecoversPanic(t *testing.T) {
	fn := Sandboxed(func(ctx context.Context, name string, args map[string]any) (any, error) {
		panic("tool went sideways")
	})

	_, err := fn(context.Background(), "flaky_tool", nil)
	require.Error(t, err)

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "PANIC", execErr.Code)
	assert.Equal(t, "flaky_tool", execErr.Op)
	assert.Contains(t, execErr.Message, "tool went sideways")
}

func TestSandboxed_Timeout(t *testing.T) {
	fn := Sandboxed(func(ctx context.Context, name string, args map[string]any) (any, error) {
		select {
		case <-time.After(time.Second):
			return "too late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, func(o *SandboxOptions) {
		o.Timeout = 20 * time.Millisecond
	})

	start := time.Now()
	_, err := fn(context.Background(), "slow_tool", nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "TIMEOUT", execErr.Code)
	assert.Equal(t, "slow_tool", execErr.Op)
}

func TestSandboxed_HonorsCallerContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fn := Sandboxed(func(ctx context.Context, name string, args map[string]any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := fn(ctx, "read_file", nil)
	assert.Error(t, err)
}

func TestSandboxed_WithEngine(t *testing.T) {
	compilation := compiler.Compile([]compiler.Invocation{
		inv("1", "stable", map[string]any{"path": "a"}, 100),
		inv("2", "flaky", map[string]any{"path": "b"}, 100),
	})

	fn := Sandboxed(func(ctx context.Context, name string, args map[string]any) (any, error) {
		if name == "flaky" {
			panic("boom")
		}
		return "ok", nil
	})

	e := New(func(o *Options) { o.Config.ContinueOnError = true })
	res := e.Execute(context.Background(), compilation, fn)

	assert.False(t, res.Success)
	assert.True(t, res.Outcomes["1"].Success)
	assert.False(t, res.Outcomes["2"].Success)
	assert.Contains(t, res.ErrorSummary, "PANIC")
}
