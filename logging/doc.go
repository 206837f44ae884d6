// Package logging provides a minimal logging interface and adapters for ToolFuse.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the compiler and execution engine use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - ToolFuseLogger with contextual helpers for compilations and executions
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	engine := executor.New(func(o *executor.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
