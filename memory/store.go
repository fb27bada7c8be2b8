package memory

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/petasbytes/toolguard/internal/transcript"
)

// Store is an append-only transcript with a filesystem location.
type Store interface {
	transcript.Appender
	// Path is the transcript location; spill files are placed next to it.
	Path() string
	Entries(ctx context.Context) ([]transcript.Entry, error)
	Close() error
}

const (
	KindJSONL  = "jsonl"
	KindSQLite = "sqlite"
)

// Ext returns the file extension used for a store kind.
func Ext(kind string) (string, error) {
	switch kind {
	case KindJSONL, "":
		return ".jsonl", nil
	case KindSQLite:
		return ".db", nil
	default:
		return "", errors.Errorf("memory: unknown store kind %q", kind)
	}
}

// Open opens (creating if needed) the store of the given kind at path.
func Open(kind, path string) (Store, error) {
	switch kind {
	case KindJSONL, "":
		return OpenJSONL(path)
	case KindSQLite:
		return OpenSQLite(path)
	default:
		return nil, errors.Errorf("memory: unknown store kind %q", kind)
	}
}

// LoadFile reads every entry of an existing transcript, picking the store by extension.
func LoadFile(ctx context.Context, path string) ([]transcript.Entry, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		s, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		return s.Entries(ctx)
	default:
		return LoadJSONL(path)
	}
}
