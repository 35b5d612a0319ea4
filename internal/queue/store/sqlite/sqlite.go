package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aridsondez/SHARE-RELAY/internal/queue/store"
)

// Ensure *SQLiteStore implements store.Store at compile time.
var _ store.Store = (*SQLiteStore)(nil)

// storageKey identifies the single row holding the serialized queue.
const storageKey = "share_queue"

const sqlInit = `
CREATE TABLE IF NOT EXISTS relay_state (
  key        TEXT PRIMARY KEY,
  blob       BLOB NOT NULL,
  updated_at INTEGER NOT NULL
);`

// SQLiteStore is the default on-device backend: one WAL-mode database file,
// one writer connection.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path.
func New(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("empty db path")
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	ctx := context.Background()

	var journalMode string
	if err := s.db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL;").Scan(&journalMode); err != nil {
		return fmt.Errorf("sqlite: set journal_mode=wal: %w", err)
	}
	if strings.ToLower(journalMode) != "wal" {
		return fmt.Errorf("sqlite: journal_mode=%q, want wal", journalMode)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout=5000;"); err != nil {
		return fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlInit); err != nil {
		return fmt.Errorf("sqlite: init relay_state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM relay_state WHERE key = ?;`, storageKey).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load state: %w", err)
	}
	return blob, nil
}

func (s *SQLiteStore) Save(ctx context.Context, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO relay_state (key, blob, updated_at)
VALUES (?, ?, strftime('%s','now'))
ON CONFLICT (key) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at;`,
		storageKey, blob)
	if err != nil {
		return fmt.Errorf("sqlite: save state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM relay_state WHERE key = ?;`, storageKey); err != nil {
		return fmt.Errorf("sqlite: clear state: %w", err)
	}
	return nil
}
