// Package transcript defines the closed set of entries that make up an
// append-only conversation transcript, and the single-method Appender
// capability used to persist them.
//
// Entry variants:
//   - AssistantEntry: model output; may carry ToolCallBlock content.
//   - ToolResultEntry: output of one tool call, correlated by call id.
//   - UserEntry: human input.
//   - CustomEntry: anything else the host records (notes, compaction markers).
//
// Block variants: TextBlock, ImageBlock, ToolCallBlock.
package transcript

import (
	"context"
	"encoding/json"
	"strings"
)

// Role names the variant of an Entry.
type Role string

const (
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool_result"
	RoleUser       Role = "user"
	RoleCustom     Role = "custom"
)

// Entry is one transcript line. Implementations are limited to the variants in this package.
type Entry interface {
	Role() Role
	isEntry()
}

// BlockKind names the variant of a Block.
type BlockKind string

const (
	KindText     BlockKind = "text"
	KindImage    BlockKind = "image"
	KindToolCall BlockKind = "tool_call"
)

// Block is one content block. Implementations are limited to the variants in this package.
type Block interface {
	Kind() BlockKind
	isBlock()
}

type TextBlock struct {
	Text string
}

type ImageBlock struct {
	MIMEType string
	Data     string // base64
}

// ToolCallBlock is an assistant-issued request to run a tool.
type ToolCallBlock struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

func (TextBlock) Kind() BlockKind     { return KindText }
func (ImageBlock) Kind() BlockKind    { return KindImage }
func (ToolCallBlock) Kind() BlockKind { return KindToolCall }

func (TextBlock) isBlock()     {}
func (ImageBlock) isBlock()    {}
func (ToolCallBlock) isBlock() {}

type AssistantEntry struct {
	Content    []Block
	Model      string
	StopReason string
}

// ToolCalls returns the tool call blocks in content order.
func (e AssistantEntry) ToolCalls() []ToolCallBlock {
	var calls []ToolCallBlock
	for _, b := range e.Content {
		if c, ok := b.(ToolCallBlock); ok {
			calls = append(calls, c)
		}
	}
	return calls
}

// ToolResultEntry carries the output of one tool call.
//
// CallID is the primary correlation field; LegacyCallID holds the id when the
// entry was written under the older tool_use_id name.
type ToolResultEntry struct {
	CallID       string
	LegacyCallID string
	ToolName     string
	Content      []Block
	IsError      bool
	Synthetic    bool
}

// ResolvedCallID returns CallID, falling back to LegacyCallID.
func (e ToolResultEntry) ResolvedCallID() string {
	if e.CallID != "" {
		return e.CallID
	}
	return e.LegacyCallID
}

// Text joins all text blocks with a line break.
func (e ToolResultEntry) Text() string {
	return joinText(e.Content)
}

type UserEntry struct {
	Content []Block
}

// CustomEntry is any host-defined entry that is neither a call nor a result.
type CustomEntry struct {
	Kind string
	Data json.RawMessage
}

func (AssistantEntry) Role() Role  { return RoleAssistant }
func (ToolResultEntry) Role() Role { return RoleToolResult }
func (UserEntry) Role() Role       { return RoleUser }
func (CustomEntry) Role() Role     { return RoleCustom }

func (AssistantEntry) isEntry()  {}
func (ToolResultEntry) isEntry() {}
func (UserEntry) isEntry()       {}
func (CustomEntry) isEntry()     {}

// Receipt is what an Appender reports for one persisted entry.
// The zero Receipt means nothing was persisted.
type Receipt struct {
	Seq int64
}

// Persisted reports whether the receipt refers to a stored entry.
func (r Receipt) Persisted() bool { return r.Seq > 0 }

// Appender persists one entry.
type Appender interface {
	Append(ctx context.Context, e Entry) (Receipt, error)
}

// AppenderFunc adapts a function to Appender.
type AppenderFunc func(ctx context.Context, e Entry) (Receipt, error)

func (f AppenderFunc) Append(ctx context.Context, e Entry) (Receipt, error) { return f(ctx, e) }

func joinText(blocks []Block) string {
	var parts []string
	for _, b := range blocks {
		if t, ok := b.(TextBlock); ok {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "\n")
}
