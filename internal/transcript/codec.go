package transcript

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// wireBlock is the JSON form of a Block; Type selects the variant.
type wireBlock struct {
	Type      BlockKind       `json:"type"`
	Text      string          `json:"text,omitempty"`
	MIMEType  string          `json:"mime_type,omitempty"`
	Data      string          `json:"data,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// wireEntry is the JSON form of an Entry; Role selects the variant.
// Content is kept raw on decode so a bare string is accepted as one text block.
type wireEntry struct {
	Role       Role            `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	Model      string          `json:"model,omitempty"`
	StopReason string          `json:"stop_reason,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolUseID  string          `json:"tool_use_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	IsError    bool            `json:"is_error,omitempty"`
	Synthetic  bool            `json:"synthetic,omitempty"`
	Kind       string          `json:"kind,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Encode returns the single-line JSON form of e.
func Encode(e Entry) ([]byte, error) {
	w := wireEntry{}
	var blocks []Block
	switch v := e.(type) {
	case AssistantEntry:
		w.Role = RoleAssistant
		w.Model = v.Model
		w.StopReason = v.StopReason
		blocks = v.Content
	case ToolResultEntry:
		w.Role = RoleToolResult
		w.ToolCallID = v.CallID
		w.ToolUseID = v.LegacyCallID
		w.ToolName = v.ToolName
		w.IsError = v.IsError
		w.Synthetic = v.Synthetic
		blocks = v.Content
	case UserEntry:
		w.Role = RoleUser
		blocks = v.Content
	case CustomEntry:
		w.Role = RoleCustom
		w.Kind = v.Kind
		w.Data = v.Data
	case nil:
		return nil, errors.New("transcript: encode nil entry")
	default:
		return nil, errors.Errorf("transcript: unsupported entry %T", e)
	}

	if blocks != nil {
		wb := make([]wireBlock, 0, len(blocks))
		for _, b := range blocks {
			x, err := encodeBlock(b)
			if err != nil {
				return nil, err
			}
			wb = append(wb, x)
		}
		raw, err := json.Marshal(wb)
		if err != nil {
			return nil, errors.Wrap(err, "transcript: marshal content")
		}
		w.Content = raw
	}

	b, err := json.Marshal(w)
	if err != nil {
		return nil, errors.Wrap(err, "transcript: marshal entry")
	}
	return b, nil
}

func encodeBlock(b Block) (wireBlock, error) {
	switch v := b.(type) {
	case TextBlock:
		return wireBlock{Type: KindText, Text: v.Text}, nil
	case ImageBlock:
		return wireBlock{Type: KindImage, MIMEType: v.MIMEType, Data: v.Data}, nil
	case ToolCallBlock:
		return wireBlock{Type: KindToolCall, ID: v.ID, Name: v.Name, Arguments: v.Arguments}, nil
	default:
		return wireBlock{}, errors.Errorf("transcript: unsupported block %T", b)
	}
}

// Decode validates one JSON line and returns its variant.
func Decode(line []byte) (Entry, error) {
	var w wireEntry
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, errors.Wrap(err, "transcript: decode entry")
	}

	switch w.Role {
	case RoleAssistant:
		blocks, err := decodeContent(w.Content)
		if err != nil {
			return nil, err
		}
		return AssistantEntry{Content: blocks, Model: w.Model, StopReason: w.StopReason}, nil
	case RoleToolResult:
		blocks, err := decodeContent(w.Content)
		if err != nil {
			return nil, err
		}
		return ToolResultEntry{
			CallID:       w.ToolCallID,
			LegacyCallID: w.ToolUseID,
			ToolName:     w.ToolName,
			Content:      blocks,
			IsError:      w.IsError,
			Synthetic:    w.Synthetic,
		}, nil
	case RoleUser:
		blocks, err := decodeContent(w.Content)
		if err != nil {
			return nil, err
		}
		return UserEntry{Content: blocks}, nil
	case RoleCustom:
		return CustomEntry{Kind: w.Kind, Data: w.Data}, nil
	case "":
		return nil, errors.New("transcript: entry has no role")
	default:
		return nil, errors.Errorf("transcript: unknown role %q", w.Role)
	}
}

func decodeContent(raw json.RawMessage) ([]Block, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, errors.Wrap(err, "transcript: decode string content")
		}
		return []Block{TextBlock{Text: s}}, nil
	}

	var wb []wireBlock
	if err := json.Unmarshal(raw, &wb); err != nil {
		return nil, errors.Wrap(err, "transcript: decode content")
	}
	blocks := make([]Block, 0, len(wb))
	for i, b := range wb {
		switch b.Type {
		case KindText:
			blocks = append(blocks, TextBlock{Text: b.Text})
		case KindImage:
			blocks = append(blocks, ImageBlock{MIMEType: b.MIMEType, Data: b.Data})
		case KindToolCall:
			blocks = append(blocks, ToolCallBlock{ID: b.ID, Name: b.Name, Arguments: b.Arguments})
		default:
			return nil, errors.Errorf("transcript: block %d: unknown type %q", i, b.Type)
		}
	}
	return blocks, nil
}
