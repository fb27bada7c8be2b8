package telemetry

import (
	"context"

	"github.com/rs/zerolog/log"
)

// ChangeNotifier reports transcript changes as transcript_changed events.
type ChangeNotifier struct{}

// TranscriptChanged records that the transcript at location gained an entry.
func (ChangeNotifier) TranscriptChanged(ctx context.Context, location string) {
	log.Debug().Str("location", location).Msg("transcript changed")
	fields := contextFields(ctx)
	fields["location"] = location
	Emit("transcript_changed", fields)
}

// EmitWithContext is Emit with the turn and session ids from ctx added to fields.
func EmitWithContext(ctx context.Context, name string, fields map[string]any) {
	m := contextFields(ctx)
	for k, v := range fields {
		m[k] = v
	}
	Emit(name, m)
}
