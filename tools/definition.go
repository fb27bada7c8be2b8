package tools

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/invopop/jsonschema"
)

// ToolDefinition is a tool the model can call. Function receives the raw JSON arguments.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema anthropic.ToolInputSchemaParam
	Function    func(input json.RawMessage) (string, error)
}

// Param converts the definition into the SDK tool parameter.
func (d ToolDefinition) Param() anthropic.ToolUnionParam {
	return anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
		Name:        d.Name,
		Description: anthropic.String(d.Description),
		InputSchema: d.InputSchema,
	}}
}

// GenerateSchema reflects T into an inline object schema.
func GenerateSchema[T any]() anthropic.ToolInputSchemaParam {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)

	param := anthropic.ToolInputSchemaParam{Properties: schema.Properties}
	if len(schema.Required) > 0 {
		param.ExtraFields = map[string]any{"required": schema.Required}
	}
	return param
}
