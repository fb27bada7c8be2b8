// Package sizeguard bounds the text carried by a single tool result entry.
//
// When the total text of a result exceeds Limits.SoftLimit, the joined text is
// spilled to a file and every text block that is itself over the limit is
// replaced with head + notice + tail. Smaller blocks and non-text blocks pass
// through, and block order and count never change.
//
// Lengths are counted in runes.
package sizeguard

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/petasbytes/toolguard/internal/metrics"
	"github.com/petasbytes/toolguard/internal/spill"
	"github.com/petasbytes/toolguard/internal/telemetry"
	"github.com/petasbytes/toolguard/internal/transcript"
)

// Limits configures capping.
//
// HeadSnapRatio: the head is cut back to a preceding line break found at or
// after HeadSnapRatio*headChars. TailSnapRatio: the tail starts after a line
// break found within the first TailSnapRatio*tailChars.
type Limits struct {
	SoftLimit     int
	Retention     int
	HeadSnapRatio float64
	TailSnapRatio float64
}

// DefaultLimits returns a 4000 rune soft limit with 1000 runes kept at each end.
func DefaultLimits() Limits {
	return Limits{SoftLimit: 4000, Retention: 1000, HeadSnapRatio: 0.8, TailSnapRatio: 0.2}
}

// Meta identifies where a result belongs.
type Meta struct {
	// SessionPath is the session transcript location; empty means none.
	SessionPath string
	CallID      string
	ToolName    string
}

// Record describes how one oversized block was split.
type Record struct {
	OriginalChars int
	Head          string
	Tail          string
	HeadChars     int
	TailChars     int
	// Path is the spill file, empty when the spill failed.
	Path string
}

// Guard caps result entries. It holds no per-session state.
type Guard struct {
	limits Limits
	store  spill.Writer
	now    func() time.Time
}

type Option func(*Guard)

// WithClock sets the clock used for the spill qualifier when a result has no call id.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// New returns a Guard; a nil store uses spill.FileStore.
func New(limits Limits, store spill.Writer, opts ...Option) *Guard {
	if store == nil {
		store = spill.FileStore{}
	}
	g := &Guard{limits: limits, store: store, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Limits returns the configured limits.
func (g *Guard) Limits() Limits { return g.limits }

// CapEntry caps e when it is a tool result; other entries are returned unchanged.
func (g *Guard) CapEntry(e transcript.Entry, m Meta) transcript.Entry {
	if r, ok := e.(transcript.ToolResultEntry); ok {
		return g.Cap(r, m)
	}
	return e
}

// Cap returns e unchanged when its total text is within the soft limit.
// Otherwise it spills the joined text and rewrites the oversized text blocks.
func (g *Guard) Cap(e transcript.ToolResultEntry, m Meta) transcript.ToolResultEntry {
	total := 0
	for _, b := range e.Content {
		if t, ok := b.(transcript.TextBlock); ok {
			total += utf8.RuneCountInString(t.Text)
		}
	}
	if total <= g.limits.SoftLimit {
		return e
	}

	qualifier := m.CallID
	if qualifier == "" {
		qualifier = strconv.FormatInt(g.now().UnixMilli(), 10)
	}
	out := g.store.Write(m.SessionPath, qualifier, e.Text())
	if !out.Persisted() {
		log.Warn().Err(out.Err).Str("call_id", m.CallID).Int("chars", total).Msg("tool result kept inline only")
	}

	content := make([]transcript.Block, len(e.Content))
	replaced := 0
	for i, b := range e.Content {
		t, ok := b.(transcript.TextBlock)
		if !ok || utf8.RuneCountInString(t.Text) <= g.limits.SoftLimit {
			content[i] = b
			continue
		}
		rec := g.Split(t.Text)
		rec.Path = out.Path
		content[i] = transcript.TextBlock{Text: rec.Head + Notice(rec) + rec.Tail}
		replaced++
	}

	fields := metrics.CountBlocks(e.Content).Fields()
	fields["call_id"] = m.CallID
	fields["tool_name"] = m.ToolName
	fields["replaced_blocks"] = replaced
	fields["spilled"] = out.Persisted()
	telemetry.Emit("tool_result_capped", fields)

	e.Content = content
	return e
}

// Split computes the head and tail kept for text.
func (g *Guard) Split(text string) Record {
	r := []rune(text)
	n := len(r)
	headChars := min(g.limits.Retention, n)
	tailChars := min(g.limits.Retention, n-headChars)

	head := r[:headChars]
	if idx := lastIndex(head, '\n'); idx >= 0 && float64(idx) >= float64(headChars)*g.limits.HeadSnapRatio {
		head = head[:idx]
	}
	tail := r[n-tailChars:]
	if idx := firstIndex(tail, '\n'); idx >= 0 && float64(idx) <= float64(tailChars)*g.limits.TailSnapRatio {
		tail = tail[idx+1:]
	}

	return Record{
		OriginalChars: n,
		Head:          string(head),
		Tail:          string(tail),
		HeadChars:     len(head),
		TailChars:     len(tail),
	}
}

// Notice is the text placed between head and tail.
func Notice(rec Record) string {
	var sb strings.Builder
	sb.WriteString("\n\n[tool output truncated: original length ")
	sb.WriteString(strconv.Itoa(rec.OriginalChars))
	sb.WriteString(" characters; kept the first ")
	sb.WriteString(strconv.Itoa(rec.HeadChars))
	sb.WriteString(" and the last ")
	sb.WriteString(strconv.Itoa(rec.TailChars))
	sb.WriteString(" characters. ")
	if rec.Path != "" {
		sb.WriteString("Full output saved to ")
		sb.WriteString(rec.Path)
		sb.WriteString(". Read the omitted middle with read_tool_output using offset/limit line ranges.]\n\n")
	} else {
		sb.WriteString("Full output could not be persisted; the omitted middle is not recoverable.]\n\n")
	}
	return sb.String()
}

func lastIndex(r []rune, c rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == c {
			return i
		}
	}
	return -1
}

func firstIndex(r []rune, c rune) int {
	for i, x := range r {
		if x == c {
			return i
		}
	}
	return -1
}
