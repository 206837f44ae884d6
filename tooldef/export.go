package tooldef

import (
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/openai/openai-go"

	"github.com/hupe1980/toolfuse/internal/util"
)

// ToAnthropicTools converts tool definitions to the Anthropic Messages API
// tool format. Pass the OptimizedTools of an optimization pass to send the
// shrunk definition payload.
func ToAnthropicTools(defs []ToolDefinition) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, len(defs))

	for i, def := range defs {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if def.Parameters != nil {
			if properties, ok := def.Parameters["properties"]; ok {
				inputSchema.Properties = properties
			}
			if required, ok := def.Parameters["required"]; ok {
				inputSchema.Required = util.StringSlice(required)
			}
		}

		tool := anthropic.ToolUnionParamOfTool(inputSchema, def.Name)
		if def.Description != "" && tool.OfTool != nil {
			tool.OfTool.Description = anthropic.String(def.Description)
		}
		tools[i] = tool
	}

	return tools
}

// ToOpenAITools converts tool definitions to the OpenAI chat completions
// tool format.
func ToOpenAITools(defs []ToolDefinition) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, len(defs))

	for i, def := range defs {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  def.Parameters,
			},
		}
	}

	return tools
}
