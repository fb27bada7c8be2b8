// Package reconcile guards transcript writes so that every recorded tool call
// is followed by a result before any unrelated entry.
//
// Guard decorates a transcript.Appender. It tracks calls issued by assistant
// entries, resolves them as results arrive, caps result size via sizeguard,
// and writes synthetic placeholder results when ordering forces a flush:
//
//	assistant(calls a,b) -> user        => assistant, result(a*), result(b*), user
//	assistant(x) -> assistant(y)         => assistant(x), result(x*), assistant(y)
//	pending(x) -> assistant(malformed)   => result(x*), malformed entry dropped
//
// A Guard belongs to one session and is not safe for concurrent use; callers
// serialize appends.
package reconcile

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/petasbytes/toolguard/internal/sizeguard"
	"github.com/petasbytes/toolguard/internal/spill"
	"github.com/petasbytes/toolguard/internal/telemetry"
	"github.com/petasbytes/toolguard/internal/transcript"
)

// CallState is the lifecycle of a tracked tool call. A call never returns to StateOpen.
type CallState int

const (
	StateOpen CallState = iota
	StateResolved
	StateSynthesized
)

func (s CallState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateResolved:
		return "resolved"
	case StateSynthesized:
		return "synthesized"
	default:
		return fmt.Sprintf("CallState(%d)", int(s))
	}
}

// PendingCall is a tool call whose result has not been persisted yet.
type PendingCall struct {
	ID   string
	Name string
}

// Stats counts call outcomes over the guard's lifetime.
type Stats struct {
	Registered  int
	Resolved    int
	Synthesized int
	// Discarded counts assistant entries dropped because sanitizing left nothing.
	Discarded int
}

type Guard struct {
	next transcript.Appender

	location        func() string
	sanitizer       Sanitizer
	synthesize      Synthesizer
	notifier        Notifier
	allowSynthetic  bool
	transform       Transform
	resultTransform ResultTransform

	limits      sizeguard.Limits
	spillWriter spill.Writer
	sizer       *sizeguard.Guard

	pending *orderedmap.OrderedMap[string, PendingCall]
	stats   Stats
}

var _ transcript.Appender = (*Guard)(nil)

// New wraps next. Defaults: synthetic results on, DefaultSanitizer,
// DefaultSynthesizer, sizeguard.DefaultLimits, spill.FileStore, no location, no notifier.
func New(next transcript.Appender, opts ...Option) *Guard {
	g := &Guard{
		next:           next,
		location:       func() string { return "" },
		sanitizer:      DefaultSanitizer,
		synthesize:     DefaultSynthesizer,
		allowSynthetic: true,
		limits:         sizeguard.DefaultLimits(),
		spillWriter:    spill.FileStore{},
		pending:        orderedmap.New[string, PendingCall](),
	}
	for _, o := range opts {
		o(g)
	}
	if g.sizer == nil {
		g.sizer = sizeguard.New(g.limits, g.spillWriter)
	}
	return g
}

// Append routes e by variant. An assistant entry that sanitizes to nothing
// returns a zero Receipt and a nil error.
func (g *Guard) Append(ctx context.Context, e transcript.Entry) (transcript.Receipt, error) {
	switch v := e.(type) {
	case transcript.AssistantEntry:
		return g.appendAssistant(ctx, v)
	case transcript.ToolResultEntry:
		return g.appendResult(ctx, v)
	case nil:
		return transcript.Receipt{}, errors.New("reconcile: nil entry")
	default:
		return g.appendOther(ctx, e)
	}
}

func (g *Guard) appendAssistant(ctx context.Context, e transcript.AssistantEntry) (transcript.Receipt, error) {
	cleaned := g.sanitizer.Sanitize([]transcript.Entry{e})
	if len(cleaned) == 0 {
		if g.allowSynthetic {
			if err := g.Flush(ctx); err != nil {
				return transcript.Receipt{}, err
			}
		}
		g.stats.Discarded++
		log.Debug().Msg("reconcile: assistant entry sanitized to nothing; dropped")
		return transcript.Receipt{}, nil
	}
	asst, ok := cleaned[0].(transcript.AssistantEntry)
	if !ok {
		return transcript.Receipt{}, errors.Errorf("reconcile: sanitizer returned %T for an assistant entry", cleaned[0])
	}

	calls := asst.ToolCalls()
	if len(calls) > 0 && g.pending.Len() > 0 {
		if err := g.Flush(ctx); err != nil {
			return transcript.Receipt{}, err
		}
	}

	rec, err := g.persist(ctx, asst)
	if err != nil {
		return rec, err
	}
	for _, c := range calls {
		g.pending.Set(c.ID, PendingCall{ID: c.ID, Name: c.Name})
		g.stats.Registered++
		log.Debug().Str("call_id", c.ID).Str("tool", c.Name).Msg("reconcile: call pending")
	}
	g.notify(ctx)
	return rec, nil
}

func (g *Guard) appendResult(ctx context.Context, e transcript.ToolResultEntry) (transcript.Receipt, error) {
	meta := ResultMeta{CallID: e.ResolvedCallID(), ToolName: e.ToolName}
	matched := false
	if meta.CallID != "" {
		if call, ok := g.pending.Get(meta.CallID); ok {
			matched = true
			if meta.ToolName == "" {
				meta.ToolName = call.Name
			}
		}
	}

	capped := g.sizer.Cap(e, sizeguard.Meta{
		SessionPath: g.location(),
		CallID:      meta.CallID,
		ToolName:    meta.ToolName,
	})
	if g.resultTransform != nil {
		var err error
		capped, err = g.resultTransform(ctx, capped, meta)
		if err != nil {
			return transcript.Receipt{}, err
		}
	}
	rec, err := g.persist(ctx, capped)
	if err != nil {
		return rec, err
	}
	// The call stays pending until its result is actually written.
	if matched {
		g.pending.Delete(meta.CallID)
		g.stats.Resolved++
		log.Debug().Str("call_id", meta.CallID).Stringer("state", StateResolved).Msg("reconcile: call resolved")
	}
	return rec, nil
}

func (g *Guard) appendOther(ctx context.Context, e transcript.Entry) (transcript.Receipt, error) {
	if g.pending.Len() > 0 {
		if err := g.Flush(ctx); err != nil {
			return transcript.Receipt{}, err
		}
	}
	rec, err := g.persist(ctx, e)
	if err != nil {
		return rec, err
	}
	g.notify(ctx)
	return rec, nil
}

// Flush resolves every pending call. With synthetic results on, one
// placeholder per call is persisted in issue order and the pending set is
// cleared only after all of them are written. With synthetic results off the
// pending set is simply cleared. An empty pending set is a no-op.
func (g *Guard) Flush(ctx context.Context) error {
	n := g.pending.Len()
	if n == 0 {
		return nil
	}
	if !g.allowSynthetic {
		log.Debug().Int("calls", n).Msg("reconcile: synthetic results disabled; forgetting pending calls")
		g.pending = orderedmap.New[string, PendingCall]()
		return nil
	}

	ids := make([]string, 0, n)
	for pair := g.pending.Oldest(); pair != nil; pair = pair.Next() {
		call := pair.Value
		res := g.synthesize(call)
		res.Synthetic = true
		if res.ResolvedCallID() == "" {
			res.CallID = call.ID
		}
		if res.ToolName == "" {
			res.ToolName = call.Name
		}
		if g.resultTransform != nil {
			var err error
			res, err = g.resultTransform(ctx, res, ResultMeta{CallID: call.ID, ToolName: call.Name, Synthetic: true})
			if err != nil {
				return err
			}
		}
		if _, err := g.persist(ctx, res); err != nil {
			return errors.Wrapf(err, "reconcile: persist synthetic result for %s", call.ID)
		}
		ids = append(ids, call.ID)
	}

	g.pending = orderedmap.New[string, PendingCall]()
	g.stats.Synthesized += len(ids)
	log.Warn().Strs("call_ids", ids).Stringer("state", StateSynthesized).Msg("reconcile: wrote synthetic tool results")
	telemetry.EmitWithContext(ctx, "synthetic_results_flushed", map[string]any{
		"count":    len(ids),
		"call_ids": ids,
	})
	return nil
}

// Pending returns open calls in the order they were issued.
func (g *Guard) Pending() []PendingCall {
	out := make([]PendingCall, 0, g.pending.Len())
	for pair := g.pending.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

func (g *Guard) Stats() Stats { return g.stats }

// persist applies Transform and hands the entry to the wrapped appender.
func (g *Guard) persist(ctx context.Context, e transcript.Entry) (transcript.Receipt, error) {
	if g.transform != nil {
		var err error
		e, err = g.transform(ctx, e)
		if err != nil {
			return transcript.Receipt{}, err
		}
	}
	return g.next.Append(ctx, e)
}

func (g *Guard) notify(ctx context.Context) {
	if g.notifier == nil {
		return
	}
	if loc := g.location(); loc != "" {
		g.notifier.TranscriptChanged(ctx, loc)
	}
}
