// Package spill writes oversized tool output to a file next to the session
// transcript so the inline transcript entry can stay small.
//
// File naming: <dir(session)>/<base(session) without ext>.tool_result.<qualifier>.txt
//
// Write never returns an error; failures are reported through Outcome.
package spill

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	infix  = ".tool_result."
	suffix = ".txt"
)

// ErrNoLocation is reported when the session has no storage location.
var ErrNoLocation = errors.New("spill: session has no storage location")

// Outcome is the result of one spill attempt: either a Path, or an Err.
type Outcome struct {
	Path string
	Err  error
}

// Persisted reports whether the text reached a file.
func (o Outcome) Persisted() bool { return o.Err == nil && o.Path != "" }

// Writer persists overflow text for a session.
type Writer interface {
	Write(basePath, qualifier, text string) Outcome
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(basePath, qualifier, text string) Outcome

func (f WriterFunc) Write(basePath, qualifier, text string) Outcome { return f(basePath, qualifier, text) }

// FileStore writes spill files to the local filesystem.
type FileStore struct{}

var _ Writer = FileStore{}

// Write stores text under PathFor(basePath, qualifier).
func (FileStore) Write(basePath, qualifier, text string) Outcome {
	return Write(basePath, qualifier, text)
}

// Write stores text under PathFor(basePath, qualifier), creating the directory if needed.
func Write(basePath, qualifier, text string) Outcome {
	if strings.TrimSpace(basePath) == "" {
		return Outcome{Err: ErrNoLocation}
	}
	p := PathFor(basePath, qualifier)

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		log.Warn().Err(err).Str("path", p).Msg("spill: create directory failed")
		return Outcome{Err: errors.Wrapf(err, "spill: mkdir %s", filepath.Dir(p))}
	}
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		log.Warn().Err(err).Str("path", p).Msg("spill: write failed")
		return Outcome{Err: errors.Wrapf(err, "spill: write %s", p)}
	}
	log.Debug().Str("path", p).Int("bytes", len(text)).Msg("spill: wrote tool output")
	return Outcome{Path: p}
}

// PathFor returns the deterministic spill path for a session file and qualifier.
func PathFor(basePath, qualifier string) string {
	dir := filepath.Dir(basePath)
	base := filepath.Base(basePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, base+infix+cleanQualifier(qualifier)+suffix)
}

// IsSpillFile reports whether name looks like a file produced by Write.
func IsSpillFile(name string) bool {
	base := filepath.Base(name)
	return strings.Contains(base, infix) && strings.HasSuffix(base, suffix)
}

// cleanQualifier keeps [A-Za-z0-9._-] and maps everything else to '_',
// so a call id cannot name a path outside the session directory. When any
// byte was replaced, a short hash of the raw qualifier is appended so that
// ids like "a/b" and "a_b" get distinct files.
func cleanQualifier(q string) string {
	if q == "" {
		return "_"
	}
	b := []byte(q)
	replaced := false
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '_', c == '-':
		default:
			b[i] = '_'
			replaced = true
		}
	}
	if !replaced {
		return string(b)
	}
	sum := sha256.Sum256([]byte(q))
	return string(b) + "-" + hex.EncodeToString(sum[:4])
}
