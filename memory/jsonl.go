package memory

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/petasbytes/toolguard/internal/transcript"
)

// maxLineBytes bounds a single transcript line when reading back.
const maxLineBytes = 64 << 20

// JSONLLog appends one JSON line per entry.
type JSONLLog struct {
	path string
	f    *os.File
	seq  int64
}

var _ Store = (*JSONLLog)(nil)

// OpenJSONL opens path for appending, creating the file and its directory if needed.
// The sequence continues from the number of entries already present.
func OpenJSONL(path string) (*JSONLLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "memory: mkdir %s", filepath.Dir(path))
	}
	existing, err := LoadJSONL(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "memory: open %s", path)
	}
	return &JSONLLog{path: path, f: f, seq: int64(len(existing))}, nil
}

func (l *JSONLLog) Path() string { return l.path }

// Append writes e as one line.
func (l *JSONLLog) Append(_ context.Context, e transcript.Entry) (transcript.Receipt, error) {
	if l.f == nil {
		return transcript.Receipt{}, errors.New("memory: jsonl log is closed")
	}
	b, err := transcript.Encode(e)
	if err != nil {
		return transcript.Receipt{}, err
	}
	if _, err := l.f.Write(append(b, '\n')); err != nil {
		return transcript.Receipt{}, errors.Wrapf(err, "memory: write %s", l.path)
	}
	l.seq++
	return transcript.Receipt{Seq: l.seq}, nil
}

func (l *JSONLLog) Entries(context.Context) ([]transcript.Entry, error) {
	return LoadJSONL(l.path)
}

func (l *JSONLLog) Close() error {
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// LoadJSONL reads all entries from path. A missing file yields nil, nil.
func LoadJSONL(path string) ([]transcript.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "memory: open %s", path)
	}
	defer f.Close()

	var out []transcript.Entry
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for s.Scan() {
		line++
		b := bytes.TrimSpace(s.Bytes())
		if len(b) == 0 {
			continue
		}
		e, err := transcript.Decode(b)
		if err != nil {
			return nil, errors.Wrapf(err, "memory: %s:%d", path, line)
		}
		out = append(out, e)
	}
	if err := s.Err(); err != nil {
		return nil, errors.Wrapf(err, "memory: read %s", path)
	}
	return out, nil
}
