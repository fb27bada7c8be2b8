package tools

import "github.com/petasbytes/toolguard/internal/fsops"

// Registry returns all tool definitions wired for a session whose spill files live under root.
func Registry(root fsops.Root) []ToolDefinition {
	return []ToolDefinition{ReadToolOutputDefinition(root), ListToolOutputsDefinition(root)}
}
