package telemetry

import (
	"os"
)

const defaultArtifactsDir = ".agent"

// ObserveEnabled reports whether JSONL emission is on (AGT_OBSERVE_JSON=1).
// Read on every call so tests can toggle it with t.Setenv.
func ObserveEnabled() bool {
	return os.Getenv("AGT_OBSERVE_JSON") == "1"
}

// ArtifactsDir is where events.jsonl is written; AGT_ARTIFACTS_DIR overrides the default .agent.
func ArtifactsDir() string {
	if v := os.Getenv("AGT_ARTIFACTS_DIR"); v != "" {
		return v
	}
	return defaultArtifactsDir
}
