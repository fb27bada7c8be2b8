package pairing

import (
	"unicode/utf8"

	"github.com/petasbytes/toolguard/internal/transcript"
)

// TokenCounter estimates input-token cost for entries or groups.
type TokenCounter interface {
	CountEntry(e transcript.Entry) int
	CountGroup(g Group, all []transcript.Entry) int
}

// HeuristicCounter is the default deterministic estimator.
// Rules:
//   - text blocks: rune count of the text
//   - tool calls: rune count of name plus raw arguments
//   - images: overhead only
//   - custom entries: zero, they are never sent
//
// Every block adds a fixed overhead.
type HeuristicCounter struct{}

// Fixed per-block overhead for deterministic counts.
const blockOverhead = 4

func (HeuristicCounter) CountEntry(e transcript.Entry) int {
	switch v := e.(type) {
	case transcript.AssistantEntry:
		return countBlocks(v.Content)
	case transcript.ToolResultEntry:
		return countBlocks(v.Content) + blockOverhead
	case transcript.UserEntry:
		return countBlocks(v.Content)
	default:
		return 0
	}
}

func (h HeuristicCounter) CountGroup(g Group, all []transcript.Entry) int {
	total := 0
	for i := g.Start; i < g.End && i < len(all); i++ {
		total += h.CountEntry(all[i])
	}
	return total
}

func countBlocks(blocks []transcript.Block) int {
	total := 0
	for _, b := range blocks {
		switch v := b.(type) {
		case transcript.TextBlock:
			total += utf8.RuneCountInString(v.Text)
		case transcript.ToolCallBlock:
			total += utf8.RuneCountInString(v.Name) + utf8.RuneCount(v.Arguments)
		}
		total += blockOverhead
	}
	return total
}
