package compiler

import (
	"github.com/hupe1980/toolfuse/logging"
)

// AnalyzerOptions configures a dependency Analyzer.
type AnalyzerOptions struct {
	// Extractor infers resource accesses per invocation.
	// Defaults to NewHeuristicExtractor() if not provided.
	Extractor ResourceKeyExtractor

	// Logger receives debug output. Defaults to NoOp logger if nil.
	Logger logging.Logger
}

// Analyzer builds a DependencyGraph over a batch of invocations from
// inferred resource conflicts.
//
// The analysis is a single sweep in submission order. Per resource key the
// analyzer tracks the most recent writer and the readers seen since that
// writer:
//
//   - a read depends on the last writer (read-after-write)
//   - a write depends on all pending readers and on the previous writer
//     (write-after-read, write-after-write), then resets both
//
// Invocations without any inferable resource become isolated nodes. The
// analyzer never fails: aliasing artifacts that accidentally close a cycle
// are left in the graph and reported by the cycle-detection pass.
type Analyzer struct {
	extractor ResourceKeyExtractor
	logger    logging.Logger
}

// NewAnalyzer creates an Analyzer with optional configuration.
func NewAnalyzer(optFns ...func(o *AnalyzerOptions)) *Analyzer {
	opts := AnalyzerOptions{
		Extractor: NewHeuristicExtractor(),
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Analyzer{
		extractor: opts.Extractor,
		logger:    opts.Logger,
	}
}

// resourceState tracks the conflict window of one resource key during the
// submission-order sweep.
type resourceState struct {
	lastWriter string
	hasWriter  bool
	readers    []string
}

// Analyze builds the dependency graph for the given invocations.
// Complexity is O(N) resource-map updates plus the cost of extraction.
func (a *Analyzer) Analyze(invs []Invocation) *DependencyGraph {
	ids := make([]string, len(invs))
	for i, inv := range invs {
		ids[i] = inv.ID
	}
	g := NewDependencyGraph(ids)

	resources := make(map[string]*resourceState)

	for _, inv := range invs {
		for _, acc := range a.extractor.Extract(inv) {
			st, ok := resources[acc.Key]
			if !ok {
				st = &resourceState{}
				resources[acc.Key] = st
			}

			if acc.Write {
				for _, reader := range st.readers {
					g.AddDependency(inv.ID, reader)
				}
				if st.hasWriter {
					g.AddDependency(inv.ID, st.lastWriter)
				}
				st.lastWriter = inv.ID
				st.hasWriter = true
				st.readers = nil
			} else {
				if st.hasWriter {
					g.AddDependency(inv.ID, st.lastWriter)
				}
				st.readers = append(st.readers, inv.ID)
			}
		}
	}

	a.logger.Debug(
		"analyzer.analyze.complete",
		"invocations", len(invs),
		"edges", g.EdgeCount(),
		"resources", len(resources),
	)

	return g
}
