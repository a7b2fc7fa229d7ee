package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend keeps the checkpoint as one row of quiz_checkpoints, keyed by name.
type PostgresBackend struct {
	db   *pgxpool.Pool
	name string
}

func NewPostgresBackend(ctx context.Context, db *pgxpool.Pool, name string) (*PostgresBackend, error) {
	_, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS quiz_checkpoints (
			name       TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create quiz_checkpoints table: %w", err)
	}
	return &PostgresBackend{db: db, name: name}, nil
}

func (b *PostgresBackend) Name() string { return "postgres" }

func (b *PostgresBackend) Load(ctx context.Context) (string, bool, error) {
	var value string
	err := b.db.QueryRow(ctx, `SELECT value FROM quiz_checkpoints WHERE name = $1`, b.name).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (b *PostgresBackend) Save(ctx context.Context, value string) error {
	_, err := b.db.Exec(ctx, `
		INSERT INTO quiz_checkpoints (name, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, b.name, value)
	return err
}
