// Package metrics derives size features from transcript text, reported on
// capped tool results.
package metrics

import (
	"strings"
	"unicode/utf8"

	"github.com/petasbytes/toolguard/internal/transcript"
)

// Features holds basic local text features derived from an input string.
type Features struct {
	Bytes int
	Runes int
	Words int
	Lines int
	// Blocks is the number of text blocks counted; 1 for CountFeatures.
	Blocks int
}

// CountFeatures computes and returns byte, rune, word, and line counts for the input string.
func CountFeatures(s string) Features {
	return Features{
		Bytes:  len(s),
		Runes:  utf8.RuneCountInString(s),
		Words:  countWords(s),
		Lines:  countLines(s),
		Blocks: 1,
	}
}

// CountBlocks sums features over the text blocks in content. Non-text blocks are ignored.
func CountBlocks(content []transcript.Block) Features {
	var f Features
	for _, b := range content {
		t, ok := b.(transcript.TextBlock)
		if !ok {
			continue
		}
		f = f.add(CountFeatures(t.Text))
	}
	return f
}

// Fields returns f as telemetry event fields.
func (f Features) Fields() map[string]any {
	return map[string]any{
		"bytes":  f.Bytes,
		"runes":  f.Runes,
		"words":  f.Words,
		"lines":  f.Lines,
		"blocks": f.Blocks,
	}
}

func (f Features) add(o Features) Features {
	return Features{
		Bytes:  f.Bytes + o.Bytes,
		Runes:  f.Runes + o.Runes,
		Words:  f.Words + o.Words,
		Lines:  f.Lines + o.Lines,
		Blocks: f.Blocks + o.Blocks,
	}
}

// countWords counts words split on Unicode whitespace.
func countWords(s string) int {
	return len(strings.Fields(s))
}

// countLines returns 0 for empty strings; otherwise 1 plus the number of '\n' runes.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	return 1 + strings.Count(s, "\n")
}
