// Package session ties one transcript store to its reconciliation guard.
package session

import (
	"context"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/petasbytes/toolguard/internal/config"
	"github.com/petasbytes/toolguard/internal/pairing"
	"github.com/petasbytes/toolguard/internal/reconcile"
	"github.com/petasbytes/toolguard/internal/telemetry"
	"github.com/petasbytes/toolguard/internal/transcript"
	"github.com/petasbytes/toolguard/memory"
)

// Session is one conversation transcript behind a reconcile.Guard.
type Session struct {
	ID    string
	store memory.Store
	guard *reconcile.Guard
}

// Open opens or resumes the session id under cfg.SessionsDir. An empty id
// starts a new session. Calls left open by a previous run are tracked again
// so the next unrelated entry resolves them.
func Open(ctx context.Context, cfg config.Config, id string, opts ...reconcile.Option) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	ext, err := memory.Ext(cfg.Store)
	if err != nil {
		return nil, err
	}
	// Absolute so truncation notices cite a path that resolves from anywhere.
	dir, err := filepath.Abs(cfg.SessionsDir)
	if err != nil {
		return nil, errors.Wrap(err, "session: sessions dir")
	}
	store, err := memory.Open(cfg.Store, filepath.Join(dir, id+ext))
	if err != nil {
		return nil, errors.Wrapf(err, "session %s", id)
	}

	existing, err := store.Entries(ctx)
	if err != nil {
		_ = store.Close()
		return nil, errors.Wrapf(err, "session %s: read back", id)
	}
	dangling := danglingCalls(existing)
	if len(existing) > 0 {
		log.Info().Str("session", id).Int("entries", len(existing)).Int("dangling", len(dangling)).Msg("session resumed")
	}

	base := []reconcile.Option{
		reconcile.WithLocation(store.Path),
		reconcile.WithLimits(cfg.Limits()),
		reconcile.WithSyntheticResults(cfg.AllowSyntheticToolResults),
		reconcile.WithNotifier(telemetry.ChangeNotifier{}),
		reconcile.WithPending(dangling...),
	}
	return &Session{
		ID:    id,
		store: store,
		guard: reconcile.New(store, append(base, opts...)...),
	}, nil
}

func danglingCalls(entries []transcript.Entry) []reconcile.PendingCall {
	rep := pairing.Audit(entries)
	if len(rep.Dangling) == 0 {
		return nil
	}
	names := map[string]string{}
	for _, e := range entries {
		if a, ok := e.(transcript.AssistantEntry); ok {
			for _, c := range a.ToolCalls() {
				names[c.ID] = c.Name
			}
		}
	}
	out := make([]reconcile.PendingCall, 0, len(rep.Dangling))
	for _, id := range rep.Dangling {
		out = append(out, reconcile.PendingCall{ID: id, Name: names[id]})
	}
	return out
}

// Append records e through the guard.
func (s *Session) Append(ctx context.Context, e transcript.Entry) (transcript.Receipt, error) {
	return s.guard.Append(telemetry.WithSessionID(ctx, s.ID), e)
}

func (s *Session) Entries(ctx context.Context) ([]transcript.Entry, error) {
	return s.store.Entries(ctx)
}

// Path is the transcript location.
func (s *Session) Path() string { return s.store.Path() }

// Dir is the directory holding the transcript and its spill files.
func (s *Session) Dir() string { return filepath.Dir(s.store.Path()) }

func (s *Session) Guard() *reconcile.Guard { return s.guard }

// Close flushes pending calls and closes the store. The store is closed even
// when the flush fails.
func (s *Session) Close(ctx context.Context) error {
	ferr := s.guard.Flush(telemetry.WithSessionID(ctx, s.ID))
	cerr := s.store.Close()
	if ferr != nil {
		return errors.Wrap(ferr, "session: flush on close")
	}
	return cerr
}
