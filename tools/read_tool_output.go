package tools

import (
	"encoding/json"
	"strings"

	"github.com/petasbytes/toolguard/internal/fsops"
)

type ReadToolOutputInput struct {
	Path   string `json:"path" jsonschema_description:"Saved tool output path, as cited in the truncation notice."`
	Offset int    `json:"offset,omitempty" jsonschema_description:"Line offset (0-based) to start reading from."`
	Limit  int    `json:"limit,omitempty" jsonschema_description:"Maximum lines to return from offset (default 200)."`
}

const defaultReadLimit = 200 // fallback page size when limit <= 0
const truncationSentinel = "-- truncated; use offset/limit to fetch more --\n"
const maxLineRunes = 2000 // per-line clamp

// overallRuneCap stays under the default soft limit so a page read back is not itself truncated.
const overallRuneCap = 3500

var ReadToolOutputInputSchema = GenerateSchema[ReadToolOutputInput]()

// ReadToolOutputDefinition reads saved outputs under root.
func ReadToolOutputDefinition(root fsops.Root) ToolDefinition {
	return ToolDefinition{
		Name: "read_tool_output",
		Description: `Read part of a tool output that was truncated in the conversation.

Pass the path from the truncation notice and a line range (offset, limit) to page through the omitted middle.`,
		InputSchema: ReadToolOutputInputSchema,
		Function: func(input json.RawMessage) (string, error) {
			return ReadToolOutput(root, input)
		},
	}
}

// Helper: clamp a string to at most n runes
func clampRunes(s string, n int) (string, bool) {
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	return string(r[:n]), true
}

// ReadToolOutput applies small, deterministic caps for LLM-facing pagination:
//   - offset: 0-based starting line (negatives clamped to 0)
//   - limit: number of lines to return (<= 0 defaults to 200)
//
// If not all lines are returned, a trailing sentinel signals pagination.
func ReadToolOutput(root fsops.Root, input json.RawMessage) (string, error) {
	var in ReadToolOutputInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}

	content, err := root.ReadFile(in.Path)
	if err != nil {
		return "", err
	}

	limit := in.Limit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	offset := max(in.Offset, 0)

	lines := strings.Split(content, "\n")
	offset = min(offset, len(lines))
	end := min(offset+limit, len(lines))

	truncated := end < len(lines)
	for i := offset; i < end; i++ {
		if clamped, did := clampRunes(lines[i], maxLineRunes); did {
			lines[i] = clamped
			truncated = true
		}
	}

	out := strings.Join(lines[offset:end], "\n")
	if clamped, did := clampRunes(out, overallRuneCap); did {
		out = clamped
		truncated = true
	}

	if truncated {
		if !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		out += truncationSentinel
	}
	return out, nil
}
