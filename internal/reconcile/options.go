package reconcile

import (
	"context"

	"github.com/petasbytes/toolguard/internal/sizeguard"
	"github.com/petasbytes/toolguard/internal/spill"
	"github.com/petasbytes/toolguard/internal/transcript"
)

// Sanitizer cleans a batch of entries before they are persisted.
// The guard passes a one-element batch holding an assistant entry and expects
// zero or one entries back.
type Sanitizer interface {
	Sanitize(batch []transcript.Entry) []transcript.Entry
}

// SanitizerFunc adapts a function to Sanitizer.
type SanitizerFunc func(batch []transcript.Entry) []transcript.Entry

func (f SanitizerFunc) Sanitize(batch []transcript.Entry) []transcript.Entry { return f(batch) }

// Synthesizer builds the placeholder result for a call that never got one.
type Synthesizer func(call PendingCall) transcript.ToolResultEntry

// Notifier is told about every persisted non-result entry.
type Notifier interface {
	TranscriptChanged(ctx context.Context, location string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, location string)

func (f NotifierFunc) TranscriptChanged(ctx context.Context, location string) { f(ctx, location) }

// ResultMeta accompanies a result entry through ResultTransform.
type ResultMeta struct {
	CallID    string
	ToolName  string
	Synthetic bool
}

// Transform rewrites every entry right before it is persisted.
type Transform func(ctx context.Context, e transcript.Entry) (transcript.Entry, error)

// ResultTransform rewrites result entries, real or synthetic, before Transform runs.
type ResultTransform func(ctx context.Context, e transcript.ToolResultEntry, meta ResultMeta) (transcript.ToolResultEntry, error)

type Option func(*Guard)

// WithLocation sets the session storage location accessor.
func WithLocation(location func() string) Option {
	return func(g *Guard) {
		if location != nil {
			g.location = location
		}
	}
}

func WithSanitizer(s Sanitizer) Option {
	return func(g *Guard) {
		if s != nil {
			g.sanitizer = s
		}
	}
}

func WithSynthesizer(s Synthesizer) Option {
	return func(g *Guard) {
		if s != nil {
			g.synthesize = s
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(g *Guard) { g.notifier = n }
}

// WithSyntheticResults toggles placeholder results; when off, a flush only forgets pending calls.
func WithSyntheticResults(allow bool) Option {
	return func(g *Guard) { g.allowSynthetic = allow }
}

func WithTransform(t Transform) Option {
	return func(g *Guard) { g.transform = t }
}

func WithResultTransform(t ResultTransform) Option {
	return func(g *Guard) { g.resultTransform = t }
}

// WithLimits sets the limits used to cap result entries.
func WithLimits(l sizeguard.Limits) Option {
	return func(g *Guard) { g.limits = l }
}

func WithSpillWriter(w spill.Writer) Option {
	return func(g *Guard) { g.spillWriter = w }
}

// WithSizeGuard overrides WithLimits and WithSpillWriter.
func WithSizeGuard(s *sizeguard.Guard) Option {
	return func(g *Guard) { g.sizer = s }
}

// WithPending seeds calls that are already open, such as the dangling calls
// of a transcript being resumed. They are flushed like any other pending call.
func WithPending(calls ...PendingCall) Option {
	return func(g *Guard) {
		for _, c := range calls {
			if c.ID == "" {
				continue
			}
			g.pending.Set(c.ID, c)
			g.stats.Registered++
		}
	}
}
