package tooldef

import (
	"fmt"
	"strings"

	"github.com/hupe1980/toolfuse/compiler"
	"github.com/hupe1980/toolfuse/internal/util"
	"github.com/hupe1980/toolfuse/logging"
)

// definitionOverheadTokens approximates the fixed token cost of advertising
// one tool definition (name, description framing, schema envelope). Each
// definition merged away saves roughly this amount.
const definitionOverheadTokens = 125

// ToolDefinition is one tool schema as advertised to a model.
type ToolDefinition struct {
	// Name is the unique tool name (snake_case recommended).
	Name string `json:"name"`
	// Description is the natural language description shown to models.
	Description string `json:"description"`
	// Parameters is a JSON-Schema-like map describing accepted arguments.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// OptimizerConfig tunes the definition optimizer.
type OptimizerConfig struct {
	// MinToolsForFusion is the minimum number of definitions before any
	// merging is attempted. Below it the input passes through unchanged.
	MinToolsForFusion int

	// MaxGroupSize caps how many tools a single synthetic entry combines.
	MaxGroupSize int

	// Logger receives optimizer logs. Defaults to NoOp logger if nil.
	Logger logging.Logger
}

// DefaultOptimizerConfig returns the baseline optimizer configuration.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		MinToolsForFusion: 3,
		MaxGroupSize:      4,
		Logger:            logging.NoOpLogger{},
	}
}

// EstimatedSavings reports the heuristic gains of an optimization pass.
type EstimatedSavings struct {
	// TokenReduction approximates how many definition tokens merging saves,
	// proportional to the number of definitions merged away.
	TokenReduction float64 `json:"token_reduction"`
	// ParallelismGain is the fraction of merged tools that look mutually
	// independent (read-only by the naming heuristic), in [0, 1].
	ParallelismGain float64 `json:"parallelism_gain"`
}

// OptimizationResult is the outcome of one definition optimization pass.
type OptimizationResult struct {
	// OptimizedTools is the resulting definition list, original order
	// preserved with each fused group collapsed into its first member's
	// position.
	OptimizedTools []ToolDefinition `json:"optimized_tools"`
	// FusionMapping maps each synthetic name to the original tool names it
	// replaces. Empty when nothing was merged.
	FusionMapping map[string][]string `json:"fusion_mapping"`
	// EstimatedSavings carries the heuristic token and parallelism gains.
	EstimatedSavings EstimatedSavings `json:"estimated_savings"`
}

// Optimize merges related tool definitions into synthetic combined schemas.
//
// Tools are considered related when they share a name family (the prefix
// before the first underscore, e.g. file_read and file_write). Families
// with at least two members are collapsed, up to MaxGroupSize per synthetic
// entry; everything else passes through untouched.
//
// Zero or one definitions yield no reduction; the optimizer never panics on
// empty input.
func Optimize(defs []ToolDefinition, optFns ...func(o *OptimizerConfig)) *OptimizationResult {
	cfg := DefaultOptimizerConfig()

	for _, fn := range optFns {
		fn(&cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logging.NoOpLogger{}
	}

	res := &OptimizationResult{
		FusionMapping: map[string][]string{},
	}

	if len(defs) < cfg.MinToolsForFusion {
		res.OptimizedTools = append([]ToolDefinition(nil), defs...)
		return res
	}

	groups := groupByFamily(defs, cfg.MaxGroupSize)

	// Rebuild the list in original order: the first member of a fused group
	// is replaced by the synthetic entry, later members are dropped.
	fusedByFirst := make(map[string][]ToolDefinition, len(groups))
	skip := make(map[string]bool)
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		fusedByFirst[group[0].Name] = group
		for _, member := range group[1:] {
			skip[member.Name] = true
		}
	}

	mergedCount := 0
	readOnlyCount := 0

	res.OptimizedTools = make([]ToolDefinition, 0, len(defs))
	for _, def := range defs {
		if skip[def.Name] {
			continue
		}
		group, ok := fusedByFirst[def.Name]
		if !ok {
			res.OptimizedTools = append(res.OptimizedTools, def)
			continue
		}

		fused := buildFusedDefinition(group)
		res.OptimizedTools = append(res.OptimizedTools, fused)

		names := make([]string, len(group))
		for i, member := range group {
			names[i] = member.Name
			mergedCount++
			if !isWriteName(member.Name) {
				readOnlyCount++
			}
		}
		res.FusionMapping[fused.Name] = names
	}

	if mergedCount > 0 {
		mergedAway := mergedCount - len(res.FusionMapping)
		res.EstimatedSavings.TokenReduction = float64(mergedAway) * definitionOverheadTokens
		res.EstimatedSavings.ParallelismGain = float64(readOnlyCount) / float64(mergedCount)
	}

	cfg.Logger.Debug(
		"tooldef.optimize.complete",
		"definitions", len(defs),
		"optimized", len(res.OptimizedTools),
		"fused_entries", len(res.FusionMapping),
		"token_reduction", res.EstimatedSavings.TokenReduction,
	)

	return res
}

// groupByFamily partitions definitions by name family in first-seen order,
// chunking oversized families at maxGroupSize.
func groupByFamily(defs []ToolDefinition, maxGroupSize int) [][]ToolDefinition {
	if maxGroupSize < 2 {
		maxGroupSize = 2
	}

	var order []string
	families := map[string][]ToolDefinition{}
	for _, def := range defs {
		family := nameFamily(def.Name)
		if _, ok := families[family]; !ok {
			order = append(order, family)
		}
		families[family] = append(families[family], def)
	}

	var groups [][]ToolDefinition
	for _, family := range order {
		members := families[family]
		for len(members) > maxGroupSize {
			groups = append(groups, members[:maxGroupSize])
			members = members[maxGroupSize:]
		}
		groups = append(groups, members)
	}
	return groups
}

// nameFamily returns the portion of a tool name before the first underscore.
func nameFamily(name string) string {
	if idx := strings.Index(name, "_"); idx > 0 {
		return name[:idx]
	}
	return name
}

// buildFusedDefinition synthesizes one combined schema entry presenting the
// group as a single tool with a discriminated-union parameter shape: an
// "operation" enum selecting the member plus a "arguments" object whose
// accepted shape depends on that selection.
func buildFusedDefinition(group []ToolDefinition) ToolDefinition {
	names := make([]string, len(group))
	variants := make([]any, len(group))
	for i, member := range group {
		names[i] = member.Name

		variant := util.CloneSchema(member.Parameters)
		if variant == nil {
			variant = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		variant["title"] = member.Name
		variants[i] = variant
	}

	fusedName := "fused_" + strings.Join(names, "_")

	return ToolDefinition{
		Name:        fusedName,
		Description: fmt.Sprintf("Combined tool exposing: %s. Select a member via the operation field.", strings.Join(names, ", ")),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"operation": map[string]any{
					"type":        "string",
					"enum":        names,
					"description": "Name of the fused member tool to run",
				},
				"arguments": map[string]any{
					"type":        "object",
					"description": "Arguments for the selected member tool",
					"oneOf":       variants,
				},
			},
			"required": []string{"operation", "arguments"},
		},
	}
}

// isWriteName reuses the compiler's write-verb heuristic so both sides of
// the system classify tools the same way.
func isWriteName(name string) bool {
	lower := strings.ToLower(name)
	for _, verb := range compiler.DefaultWriteVerbs {
		if strings.Contains(lower, verb) {
			return true
		}
	}
	return false
}
