package tools

import (
	"encoding/json"

	"github.com/petasbytes/toolguard/internal/fsops"
)

type ListToolOutputsInput struct {
	Page     int `json:"page,omitempty" jsonschema_description:"1-based page number (default 1)."`
	PageSize int `json:"page_size,omitempty" jsonschema_description:"Page size (default 200)."`
}

// defaultListPageSize is the fallback page size when page_size <= 0.
const defaultListPageSize = 200

var ListToolOutputsInputSchema = GenerateSchema[ListToolOutputsInput]()

func ListToolOutputsDefinition(root fsops.Root) ToolDefinition {
	return ToolDefinition{
		Name:        "list_tool_outputs",
		Description: "List the saved (truncated) tool outputs of this session. Read one with read_tool_output.",
		InputSchema: ListToolOutputsInputSchema,
		Function: func(input json.RawMessage) (string, error) {
			return ListToolOutputs(root, input)
		},
	}
}

// ListToolOutputs returns a JSON-encoded []string page of spill file names in
// sorted order. An out-of-range page is an empty array.
func ListToolOutputs(root fsops.Root, input json.RawMessage) (string, error) {
	var in ListToolOutputsInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &in); err != nil {
			return "", err
		}
	}
	page := max(in.Page, 1)
	pageSize := in.PageSize
	if pageSize <= 0 {
		pageSize = defaultListPageSize
	}

	names, err := root.ListSpills()
	if err != nil {
		return "", err
	}

	start := (page - 1) * pageSize
	if start >= len(names) {
		return "[]", nil
	}
	end := min(start+pageSize, len(names))

	b, err := json.Marshal(names[start:end])
	if err != nil {
		return "", err
	}
	return string(b), nil
}
