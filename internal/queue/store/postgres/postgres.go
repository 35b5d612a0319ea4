package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aridsondez/SHARE-RELAY/internal/queue/store"
)

// Ensure *PostgresStore implements store.Store at compile time.
var _ store.Store = (*PostgresStore)(nil)

// storageKey identifies the single row holding the serialized queue.
const storageKey = "share_queue"

// SQL templates
const (
	sqlInit = `
CREATE TABLE IF NOT EXISTS relay_state (
  key        TEXT PRIMARY KEY,
  blob       BYTEA NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

	sqlLoad = `SELECT blob FROM relay_state WHERE key = $1;`

	sqlSave = `
INSERT INTO relay_state (key, blob, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET blob = EXCLUDED.blob, updated_at = now();`

	sqlClear = `DELETE FROM relay_state WHERE key = $1;`
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

// New creates the state table if needed and returns the store.
func New(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, sqlInit); err != nil {
		return nil, fmt.Errorf("init relay_state: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Load(ctx context.Context) ([]byte, error) {
	var blob []byte
	err := p.pool.QueryRow(ctx, sqlLoad, storageKey).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return blob, nil
}

func (p *PostgresStore) Save(ctx context.Context, blob []byte) error {
	if _, err := p.pool.Exec(ctx, sqlSave, storageKey, blob); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (p *PostgresStore) Clear(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, sqlClear, storageKey); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}
	return nil
}
