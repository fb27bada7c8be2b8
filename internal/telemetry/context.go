package telemetry

import "context"

type (
	turnIDKey    struct{}
	sessionIDKey struct{}
)

// WithTurnID returns a child context that carries the provided turn ID.
// If ctx is nil, context.Background() is used
func WithTurnID(ctx context.Context, id string) context.Context {
	return withString(ctx, turnIDKey{}, id)
}

// TurnIDFromContext returns the turn ID from ctx, if present.
// Returns "", false if the value is missing or not a non-empty string.
func TurnIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, turnIDKey{})
}

// WithSessionID returns a child context that carries the session ID.
func WithSessionID(ctx context.Context, id string) context.Context {
	return withString(ctx, sessionIDKey{}, id)
}

// SessionIDFromContext returns the session ID from ctx, if present.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, sessionIDKey{})
}

func withString(ctx context.Context, key any, v string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func stringFrom(ctx context.Context, key any) (string, bool) {
	if ctx == nil {
		return "", false
	}
	s, ok := ctx.Value(key).(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// contextFields returns the ids carried by ctx as event fields.
func contextFields(ctx context.Context) map[string]any {
	m := map[string]any{}
	if id, ok := TurnIDFromContext(ctx); ok {
		m["turn_id"] = id
	}
	if id, ok := SessionIDFromContext(ctx); ok {
		m["session_id"] = id
	}
	return m
}
