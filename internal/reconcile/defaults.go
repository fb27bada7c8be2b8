package reconcile

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/petasbytes/toolguard/internal/transcript"
)

// MissingResultText is the body of a DefaultSynthesizer placeholder.
const MissingResultText = "No result was recorded for this tool call; it was interrupted or superseded before completing."

// DefaultSynthesizer returns an error result marked Synthetic for call.
func DefaultSynthesizer(call PendingCall) transcript.ToolResultEntry {
	return transcript.ToolResultEntry{
		CallID:    call.ID,
		ToolName:  call.Name,
		Content:   []transcript.Block{transcript.TextBlock{Text: MissingResultText}},
		IsError:   true,
		Synthetic: true,
	}
}

// DefaultSanitizer strips malformed tool calls from assistant entries.
//
// A tool call is dropped when its id or name is blank, its id repeats an
// earlier call in the same entry, or its arguments are present but not valid
// JSON. Empty text blocks are dropped too. An assistant entry left with no
// content is removed from the batch. Other entries pass through.
var DefaultSanitizer = SanitizerFunc(sanitizeBatch)

func sanitizeBatch(batch []transcript.Entry) []transcript.Entry {
	out := make([]transcript.Entry, 0, len(batch))
	for _, e := range batch {
		a, ok := e.(transcript.AssistantEntry)
		if !ok {
			out = append(out, e)
			continue
		}
		if cleaned, keep := sanitizeAssistant(a); keep {
			out = append(out, cleaned)
		}
	}
	return out
}

func sanitizeAssistant(a transcript.AssistantEntry) (transcript.AssistantEntry, bool) {
	seen := map[string]struct{}{}
	content := make([]transcript.Block, 0, len(a.Content))
	for _, b := range a.Content {
		switch v := b.(type) {
		case transcript.ToolCallBlock:
			if reason := invalidCall(v, seen); reason != "" {
				log.Warn().Str("call_id", v.ID).Str("tool", v.Name).Str("reason", reason).Msg("reconcile: dropping malformed tool call")
				continue
			}
			seen[v.ID] = struct{}{}
		case transcript.TextBlock:
			if v.Text == "" {
				continue
			}
		}
		content = append(content, b)
	}
	if len(content) == 0 {
		return transcript.AssistantEntry{}, false
	}
	a.Content = content
	return a, true
}

func invalidCall(c transcript.ToolCallBlock, seen map[string]struct{}) string {
	switch {
	case strings.TrimSpace(c.ID) == "":
		return "missing_id"
	case strings.TrimSpace(c.Name) == "":
		return "missing_name"
	case len(c.Arguments) > 0 && !gjson.ValidBytes(c.Arguments):
		return "invalid_arguments"
	}
	if _, dup := seen[c.ID]; dup {
		return "duplicate_id"
	}
	return ""
}
