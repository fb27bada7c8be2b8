package telemetry_test

import (
	"bufio"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/petasbytes/toolguard/internal/telemetry"
)

// readEvents returns every JSON object in baseDir/events.jsonl.
func readEvents(t *testing.T, baseDir string) []map[string]any {
	t.Helper()
	f, err := os.Open(filepath.Join(baseDir, "events.jsonl"))
	if err != nil {
		t.Fatalf("open events: %v", err)
	}
	defer f.Close()
	var out []map[string]any
	s := bufio.NewScanner(f)
	for s.Scan() {
		txt := strings.TrimSpace(s.Text())
		if txt == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(txt), &m); err != nil {
			t.Fatalf("invalid json line %q: %v", txt, err)
		}
		out = append(out, m)
	}
	if err := s.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestEmit_Gating(t *testing.T) {
	base := t.TempDir()
	t.Setenv("AGT_ARTIFACTS_DIR", base)
	t.Setenv("AGT_OBSERVE_JSON", "0")

	telemetry.Emit("should_not_write", map[string]any{"k": "v"})

	if _, err := os.Stat(filepath.Join(base, "events.jsonl")); !os.IsNotExist(err) {
		t.Fatalf("expected no events.jsonl when observe=0, got err=%v", err)
	}
}

func TestEmit_HappyPath(t *testing.T) {
	base := t.TempDir()
	t.Setenv("AGT_ARTIFACTS_DIR", base)
	t.Setenv("AGT_OBSERVE_JSON", "1")

	telemetry.Emit("tool_result_capped", map[string]any{"call_id": "c1", "original_chars": 5000})

	events := readEvents(t, base)
	if len(events) != 1 {
		t.Fatalf("want 1 event, got %d", len(events))
	}
	m := events[0]
	if m["event"] != "tool_result_capped" {
		t.Fatalf("event mismatch: %v", m["event"])
	}
	if m["call_id"] != "c1" || m["original_chars"] != float64(5000) {
		t.Fatalf("fields mismatch: %#v", m)
	}
	ts, ok := m["time"].(string)
	if !ok {
		t.Fatalf("time missing: %#v", m)
	}
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		t.Fatalf("time not RFC3339Nano: %v", err)
	}
	if math.Abs(time.Since(parsed).Seconds()) > 60 {
		t.Fatalf("timestamp too far from now: %v", parsed)
	}
}

func TestEmit_MultipleEmissionsAppend(t *testing.T) {
	base := t.TempDir()
	t.Setenv("AGT_ARTIFACTS_DIR", base)
	t.Setenv("AGT_OBSERVE_JSON", "1")

	for i := 0; i < 3; i++ {
		telemetry.Emit("tick", map[string]any{"i": i})
	}
	events := readEvents(t, base)
	if len(events) != 3 {
		t.Fatalf("want 3 events, got %d", len(events))
	}
	for i, m := range events {
		if m["i"] != float64(i) {
			t.Fatalf("event %d out of order: %#v", i, m)
		}
	}
}

func TestEmit_MapIsolation(t *testing.T) {
	base := t.TempDir()
	t.Setenv("AGT_ARTIFACTS_DIR", base)
	t.Setenv("AGT_OBSERVE_JSON", "1")

	fields := map[string]any{"a": 1}
	telemetry.Emit("iso", fields)
	if len(fields) != 1 {
		t.Fatalf("caller map mutated: %#v", fields)
	}
}

func TestEmit_MarshalError_NoPanic(t *testing.T) {
	base := t.TempDir()
	t.Setenv("AGT_ARTIFACTS_DIR", base)
	t.Setenv("AGT_OBSERVE_JSON", "1")

	// Channels cannot be marshalled; Emit must drop the event quietly.
	telemetry.Emit("bad", map[string]any{"ch": make(chan int)})
	if _, err := os.Stat(filepath.Join(base, "events.jsonl")); !os.IsNotExist(err) {
		t.Fatalf("expected no events.jsonl after marshal error, got err=%v", err)
	}
}

func TestEmit_UnwritableDir_NoPanic(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("prep: %v", err)
	}
	t.Setenv("AGT_ARTIFACTS_DIR", filepath.Join(blocker, "sub"))
	t.Setenv("AGT_OBSERVE_JSON", "1")

	telemetry.Emit("dropped", nil)
}

func TestChangeNotifier_EmitsLocationAndIDs(t *testing.T) {
	base := t.TempDir()
	t.Setenv("AGT_ARTIFACTS_DIR", base)
	t.Setenv("AGT_OBSERVE_JSON", "1")

	ctx := telemetry.WithSessionID(telemetry.WithTurnID(context.Background(), "turn-1"), "sess-1")
	telemetry.ChangeNotifier{}.TranscriptChanged(ctx, "/tmp/s.jsonl")

	events := readEvents(t, base)
	if len(events) != 1 {
		t.Fatalf("want 1 event, got %d", len(events))
	}
	m := events[0]
	if m["event"] != "transcript_changed" || m["location"] != "/tmp/s.jsonl" {
		t.Fatalf("unexpected event: %#v", m)
	}
	if m["turn_id"] != "turn-1" || m["session_id"] != "sess-1" {
		t.Fatalf("ids missing: %#v", m)
	}
}
