package transcript

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// ToMessageParams converts transcript entries into Messages API params.
//
// Rules:
//   - assistant entries become assistant messages (text + tool_use blocks).
//   - consecutive tool results and user entries share one user message, so
//     results of one call group travel together ahead of any user text.
//   - custom entries are not sent and do not break a user message.
func ToMessageParams(entries []Entry) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(entries))
	// lastUser is true when out's last message is a user message that may be extended.
	lastUser := false
	for _, e := range entries {
		switch v := e.(type) {
		case AssistantEntry:
			blocks := assistantBlocks(v)
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
			lastUser = false
		case ToolResultEntry:
			blk := toolResultBlock(v)
			if lastUser {
				out[len(out)-1].Content = append(out[len(out)-1].Content, blk)
				continue
			}
			out = append(out, anthropic.NewUserMessage(blk))
			lastUser = true
		case UserEntry:
			blocks := userBlocks(v.Content)
			if len(blocks) == 0 {
				continue
			}
			if lastUser {
				out[len(out)-1].Content = append(out[len(out)-1].Content, blocks...)
				continue
			}
			out = append(out, anthropic.NewUserMessage(blocks...))
			lastUser = true
		}
	}
	return out
}

// FromMessage converts a Messages API response into an assistant entry.
func FromMessage(msg *anthropic.Message) AssistantEntry {
	e := AssistantEntry{Model: string(msg.Model), StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			e.Content = append(e.Content, TextBlock{Text: v.Text})
		case anthropic.ToolUseBlock:
			e.Content = append(e.Content, ToolCallBlock{
				ID:        v.ID,
				Name:      v.Name,
				Arguments: json.RawMessage(v.JSON.Input.Raw()),
			})
		}
	}
	return e
}

func assistantBlocks(e AssistantEntry) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(e.Content))
	for _, b := range e.Content {
		switch v := b.(type) {
		case TextBlock:
			if v.Text == "" {
				continue
			}
			blocks = append(blocks, anthropic.NewTextBlock(v.Text))
		case ToolCallBlock:
			args := v.Arguments
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			blocks = append(blocks, anthropic.ContentBlockParamUnion{OfToolUse: &anthropic.ToolUseBlockParam{
				ID:    v.ID,
				Name:  v.Name,
				Input: args,
			}})
		}
	}
	return blocks
}

func userBlocks(content []Block) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(content))
	for _, b := range content {
		switch v := b.(type) {
		case TextBlock:
			if v.Text == "" {
				continue
			}
			blocks = append(blocks, anthropic.NewTextBlock(v.Text))
		case ImageBlock:
			blocks = append(blocks, anthropic.NewImageBlockBase64(v.MIMEType, v.Data))
		}
	}
	return blocks
}

func toolResultBlock(e ToolResultEntry) anthropic.ContentBlockParamUnion {
	tr := anthropic.ToolResultBlockParam{ToolUseID: e.ResolvedCallID()}
	for _, b := range e.Content {
		switch v := b.(type) {
		case TextBlock:
			tr.Content = append(tr.Content, anthropic.ToolResultBlockParamContentUnion{
				OfText: &anthropic.TextBlockParam{Text: v.Text},
			})
		case ImageBlock:
			// Images inside results are not forwarded; keep a marker so the model knows one existed.
			tr.Content = append(tr.Content, anthropic.ToolResultBlockParamContentUnion{
				OfText: &anthropic.TextBlockParam{Text: fmt.Sprintf("[image omitted: %s]", v.MIMEType)},
			})
		}
	}
	if e.IsError {
		tr.IsError = param.NewOpt(true)
	}
	return anthropic.ContentBlockParamUnion{OfToolResult: &tr}
}
