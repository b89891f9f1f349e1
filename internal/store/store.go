// Package store persists finished conversation turns in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/samcharles93/llmchat/internal/conversation"
)

var ErrEmptyModuleID = errors.New("module id is empty")

var schema = []string{`
CREATE TABLE IF NOT EXISTS turns (
	id         TEXT PRIMARY KEY,
	module_id  TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	role       TEXT NOT NULL,
	text       TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	UNIQUE (module_id, seq)
)`,
	`CREATE INDEX IF NOT EXISTS turns_module ON turns (module_id, seq)`,
}

// Record is a stored turn.
type Record struct {
	ID        string    `json:"id"`
	ModuleID  string    `json:"module_id"`
	Seq       int       `json:"seq"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a transcript store keyed by chat module id.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path. ":memory:" keeps the
// transcript in memory for the life of the Store.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("open transcript store: empty path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open transcript store: %w", err)
	}
	// One connection: SQLite has a single writer and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	stmts := append([]string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}, schema...)
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init transcript store: %w", err)
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Append stores turn as the next entry of moduleID's transcript.
func (s *Store) Append(ctx context.Context, moduleID string, turn conversation.Turn) error {
	if moduleID == "" {
		return ErrEmptyModuleID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (id, module_id, seq, role, text, created_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE module_id = ?), ?, ?, ?)`,
		uuid.NewString(), moduleID, moduleID, turn.Role, turn.Text, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// Records returns moduleID's transcript in order.
func (s *Store) Records(ctx context.Context, moduleID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, module_id, seq, role, text, created_at
		FROM turns WHERE module_id = ? ORDER BY seq`, moduleID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r  Record
			ts int64
		)
		if err := rows.Scan(&r.ID, &r.ModuleID, &r.Seq, &r.Role, &r.Text, &ts); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		r.CreatedAt = time.Unix(0, ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Turns(ctx context.Context, moduleID string) ([]conversation.Turn, error) {
	recs, err := s.Records(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	turns := make([]conversation.Turn, len(recs))
	for i, r := range recs {
		turns[i] = conversation.Turn{Role: r.Role, Text: r.Text}
	}
	return turns, nil
}

// Clear deletes moduleID's transcript.
func (s *Store) Clear(ctx context.Context, moduleID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE module_id = ?`, moduleID); err != nil {
		return fmt.Errorf("clear turns: %w", err)
	}
	return nil
}

// Modules lists module ids with at least one stored turn.
func (s *Store) Modules(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT module_id FROM turns ORDER BY module_id`)
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
