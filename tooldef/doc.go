// Package tooldef implements the static tool-definition optimizer.
//
// Unlike the call-time compiler (package compiler), which fuses planned
// invocations, this package operates on the schema list advertised to a
// model. When enough definitions are present, related tools are merged into
// synthetic combined entries with a discriminated-union parameter shape,
// shrinking the token cost of tool-definition transmission.
//
// Synthetic entries carry a "fused_" name prefix over the constituent tool
// names; the returned FusionMapping records which original tools each
// synthetic entry replaces so callers can route a model's choice back to
// the concrete tool.
//
// The package also exports converters producing the SDK-native tool
// parameter shapes for the Anthropic and OpenAI clients, so an optimized
// definition list can be attached to a request without further plumbing.
package tooldef
