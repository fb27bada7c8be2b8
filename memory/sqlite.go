package memory

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/petasbytes/toolguard/internal/transcript"
)

// SQLiteLog stores one row per entry; seq is the receipt sequence.
type SQLiteLog struct {
	path string
	db   *sql.DB
}

var _ Store = (*SQLiteLog)(nil)

// OpenSQLite opens or creates the database at path and migrates the schema.
func OpenSQLite(path string) (*SQLiteLog, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("memory: sqlite log: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "memory: mkdir %s", filepath.Dir(path))
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "memory: open sqlite")
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)
	s := &SQLiteLog{path: path, db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteLog) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			role TEXT NOT NULL,
			call_id TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS entries_call_id ON entries(call_id) WHERE call_id != '';`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "memory: sqlite migrate")
		}
	}
	return nil
}

func (s *SQLiteLog) Path() string { return s.path }

func (s *SQLiteLog) Append(ctx context.Context, e transcript.Entry) (transcript.Receipt, error) {
	b, err := transcript.Encode(e)
	if err != nil {
		return transcript.Receipt{}, err
	}
	callID := ""
	if r, ok := e.(transcript.ToolResultEntry); ok {
		callID = r.ResolvedCallID()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (role, call_id, payload, created_at_ms) VALUES (?, ?, ?, ?)`,
		string(e.Role()), callID, string(b), time.Now().UnixMilli(),
	)
	if err != nil {
		return transcript.Receipt{}, errors.Wrap(err, "memory: sqlite insert")
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return transcript.Receipt{}, errors.Wrap(err, "memory: sqlite last insert id")
	}
	return transcript.Receipt{Seq: seq}, nil
}

// Entries returns all entries in sequence order.
func (s *SQLiteLog) Entries(ctx context.Context) ([]transcript.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, payload FROM entries ORDER BY seq ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "memory: sqlite query")
	}
	defer rows.Close()

	var out []transcript.Entry
	for rows.Next() {
		var (
			seq     int64
			payload string
		)
		if err := rows.Scan(&seq, &payload); err != nil {
			return nil, errors.Wrap(err, "memory: sqlite scan")
		}
		e, err := transcript.Decode([]byte(payload))
		if err != nil {
			return nil, errors.Wrapf(err, "memory: sqlite seq %d", seq)
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "memory: sqlite rows")
}

func (s *SQLiteLog) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
