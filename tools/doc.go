// Package tools defines tool contracts and the tools that recover truncated output.
//
// Includes:
//   - ToolDefinition: name, description, JSON input schema, handler.
//   - GenerateSchema[T](): derive JSON Schema from Go structs.
//   - read_tool_output: page through a saved tool output by line ranges.
//   - list_tool_outputs: list saved tool outputs of the current session.
package tools
