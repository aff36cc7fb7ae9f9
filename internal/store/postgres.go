package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSnapshot keeps the document in a single JSONB row.
type PostgresSnapshot struct {
	pool *pgxpool.Pool
}

// NewPostgresSnapshot creates a PostgreSQL-backed snapshotter.
func NewPostgresSnapshot(pool *pgxpool.Pool) *PostgresSnapshot {
	return &PostgresSnapshot{pool: pool}
}

// EnsureSchema creates the snapshot table if it is missing.
func (p *PostgresSnapshot) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS link_snapshots (
			id       SMALLINT PRIMARY KEY,
			document JSONB NOT NULL,
			saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`

	_, err := p.pool.Exec(ctx, query)

	return err
}

func (p *PostgresSnapshot) Read(ctx context.Context) ([]byte, error) {
	query := `SELECT document FROM link_snapshots WHERE id = 1`

	var data []byte

	err := p.pool.QueryRow(ctx, query).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoSnapshot
		}

		return nil, err
	}

	return data, nil
}

func (p *PostgresSnapshot) Write(ctx context.Context, data []byte) error {
	query := `
		INSERT INTO link_snapshots (id, document, saved_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE
		SET document = EXCLUDED.document, saved_at = EXCLUDED.saved_at
	`

	_, err := p.pool.Exec(ctx, query, data)

	return err
}

// Compile-time check.
var _ Snapshotter = (*PostgresSnapshot)(nil)
