// Package toolfuse provides a high-level façade over the tool-call compiler
// and the execution engine, enabling agent hosts to compile planned
// invocation batches into fused, dependency-ordered plans and run them
// against a pluggable execution backend. Most applications interact with
// this package by:
//  1. Creating a ToolFuse via New() (optionally overriding config, logger
//     or supplying a compilation cache)
//  2. Compiling invocation batches (Compile) or using the integration
//     adapters (IntegrateWithSingleAgent, IntegrateWithTeam)
//  3. Executing compiled plans with an injected executor callback (Execute)
//
// The façade delegates to compiler.Compiler and executor.Engine while
// keeping setup and usage ergonomics concise. All defaults are safe for
// local development and testing; production deployments typically supply a
// structured logger and tune the parallelism and threshold knobs.
package toolfuse

import (
	"context"

	"github.com/hupe1980/toolfuse/compiler"
	"github.com/hupe1980/toolfuse/executor"
	"github.com/hupe1980/toolfuse/logging"
)

// Options configures the ToolFuse instance.
type Options struct {
	// FusionConfig tunes the compilation pipeline (thresholds, overhead,
	// dependency analysis).
	FusionConfig compiler.FusionConfig

	// ExecutorConfig tunes plan execution (parallelism, failure policy).
	ExecutorConfig executor.Config

	// Cache memoizes compilation results per batch. Optional; when nil
	// every Compile call runs the full pipeline.
	Cache *compiler.CompilationCache

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// ToolFuse is the high-level façade aggregating the compiler and the
// execution engine behind one configuration.
type ToolFuse struct {
	opts     Options
	compiler *compiler.Compiler
	engine   *executor.Engine
}

// New creates a new ToolFuse instance with optional overrides.
func New(optFns ...func(o *Options)) *ToolFuse {
	opts := Options{
		FusionConfig:   compiler.DefaultFusionConfig(),
		ExecutorConfig: executor.DefaultConfig,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	c := compiler.New(func(o *compiler.FusionConfig) {
		*o = opts.FusionConfig
		if o.Extractor == nil {
			o.Extractor = compiler.NewHeuristicExtractor()
		}
		o.Logger = opts.Logger
	})

	e := executor.New(func(o *executor.Options) {
		o.Config = opts.ExecutorConfig
		o.Logger = opts.Logger
	})

	return &ToolFuse{opts: opts, compiler: c, engine: e}
}

// Compile runs the compilation pipeline over an invocation batch,
// consulting the configured cache first when one is present.
func (t *ToolFuse) Compile(invs []compiler.Invocation) *compiler.CompilationResult {
	if t.opts.Cache == nil {
		return t.compiler.Compile(invs)
	}

	key := compiler.BatchKey(invs, t.compiler.Config())
	if cached, ok := t.opts.Cache.Get(key); ok {
		t.opts.Logger.Debug("toolfuse.compile.cache_hit", "key", key)
		return cached
	}

	res := t.compiler.Compile(invs)
	t.opts.Cache.Set(key, res)
	return res
}

// Execute runs a compiled plan against the injected executor callback.
func (t *ToolFuse) Execute(ctx context.Context, compilation *compiler.CompilationResult, fn executor.ToolExecutorFn) *executor.ExecutionResult {
	return t.engine.Execute(ctx, compilation, fn)
}

// ShouldUseFusion reports whether the compiled plan's aggregate savings meet
// the configured threshold.
func (t *ToolFuse) ShouldUseFusion(res *compiler.CompilationResult) bool {
	return t.compiler.ShouldUseFusion(res)
}

// SingleAgentIntegration is the result of compiling one agent's planned
// invocations: the compiled plan plus the fusion recommendation.
type SingleAgentIntegration struct {
	Compiled        *compiler.CompilationResult
	ShouldUseFusion bool
}

// IntegrateWithSingleAgent compiles a flat invocation list for one agent and
// evaluates the fusion recommendation in a single step.
func (t *ToolFuse) IntegrateWithSingleAgent(invs []compiler.Invocation) *SingleAgentIntegration {
	res := t.Compile(invs)
	return &SingleAgentIntegration{
		Compiled:        res,
		ShouldUseFusion: t.ShouldUseFusion(res),
	}
}

// IntegrateWithTeam compiles each team member's invocation list, keyed by
// member id. Members with empty invocation lists are skipped.
func (t *ToolFuse) IntegrateWithTeam(memberInvocations map[string][]compiler.Invocation) map[string]*compiler.CompilationResult {
	results := make(map[string]*compiler.CompilationResult, len(memberInvocations))
	for member, invs := range memberInvocations {
		if len(invs) == 0 {
			continue
		}
		results[member] = t.Compile(invs)
	}
	return results
}

// IntegrateWithSingleAgent is a convenience wrapper constructing a default
// ToolFuse per call.
func IntegrateWithSingleAgent(invs []compiler.Invocation, optFns ...func(o *Options)) *SingleAgentIntegration {
	return New(optFns...).IntegrateWithSingleAgent(invs)
}

// IntegrateWithTeam is a convenience wrapper constructing a default
// ToolFuse per call.
func IntegrateWithTeam(memberInvocations map[string][]compiler.Invocation, optFns ...func(o *Options)) map[string]*compiler.CompilationResult {
	return New(optFns...).IntegrateWithTeam(memberInvocations)
}
