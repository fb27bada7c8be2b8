package pairing_test

import (
	"encoding/json"

	"github.com/petasbytes/toolguard/internal/pairing"
	"github.com/petasbytes/toolguard/internal/transcript"
)

// Text block constructor
func T(text string) transcript.Block { return transcript.TextBlock{Text: text} }

// Tool-call block constructor (no arguments)
func TC(id string) transcript.Block {
	return transcript.ToolCallBlock{ID: id, Name: "t", Arguments: json.RawMessage(`{}`)}
}

// Assistant entry constructor
func Asst(blocks ...transcript.Block) transcript.Entry {
	return transcript.AssistantEntry{Content: blocks}
}

// User entry constructor
func User(text string) transcript.Entry {
	return transcript.UserEntry{Content: []transcript.Block{T(text)}}
}

// Tool result constructor
func TR(id, text string) transcript.Entry {
	return transcript.ToolResultEntry{CallID: id, Content: []transcript.Block{T(text)}}
}

func groupsEqual(got, want []pairing.Group) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
