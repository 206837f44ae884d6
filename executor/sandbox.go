package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/toolfuse/logging"
)

// ExecError represents errors surfaced by execution wrappers with a stable
// code for categorization.
type ExecError struct {
	Op      string `json:"op"`      // Operation name that failed
	Message string `json:"message"` // Error message
	Code    string `json:"code"`    // Error code for categorization
}

func (e *ExecError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("exec error [%s] in %s: %s", e.Code, e.Op, e.Message)
	}
	return fmt.Sprintf("exec error in %s: %s", e.Op, e.Message)
}

// NewExecError creates a new ExecError with the specified details.
func NewExecError(op, message, code string) *ExecError {
	return &ExecError{Op: op, Message: message, Code: code}
}

// SandboxOptions configures the Sandboxed wrapper.
type SandboxOptions struct {
	// Timeout bounds each call; 0 disables the per-call deadline.
	Timeout time.Duration

	// Logger receives panic and timeout reports. Defaults to NoOp logger.
	Logger logging.Logger
}

// Sandboxed wraps a ToolExecutorFn with panic recovery and an optional
// per-call timeout, so the scheduling engine stays agnostic to whether an
// operation is native code, a user-defined script or a remote call.
//
// Error Semantics:
//
//	panic in fn          -> *ExecError{Code: "PANIC"}
//	deadline exceeded    -> *ExecError{Code: "TIMEOUT"}
//	other errors         -> forwarded unchanged
//
// The wrapped function keeps the ToolExecutorFn contract and can be passed
// directly to Engine.Execute.
func Sandboxed(fn ToolExecutorFn, optFns ...func(o *SandboxOptions)) ToolExecutorFn {
	opts := SandboxOptions{
		Logger: logging.NoOpLogger{},
	}

	for _, optFn := range optFns {
		optFn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	type callResult struct {
		value any
		err   error
	}

	return func(ctx context.Context, name string, args map[string]any) (any, error) {
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}

		resultCh := make(chan callResult, 1)

		go func() {
			defer func() { // panic safety
				if r := recover(); r != nil {
					opts.Logger.Error("sandbox.panic", "tool", name, "recover", r)
					resultCh <- callResult{err: NewExecError(name, fmt.Sprintf("panic: %v", r), "PANIC")}
				}
			}()
			value, err := fn(ctx, name, args)
			resultCh <- callResult{value: value, err: err}
		}()

		select {
		case r := <-resultCh:
			return r.value, r.err
		case <-ctx.Done():
			opts.Logger.Warn("sandbox.deadline", "tool", name, "error", ctx.Err().Error())
			return nil, NewExecError(name, ctx.Err().Error(), "TIMEOUT")
		}
	}
}
