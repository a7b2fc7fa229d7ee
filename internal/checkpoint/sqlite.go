package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteBackend mirrors PostgresBackend for single-host deployments.
type SQLiteBackend struct {
	db   *sql.DB
	name string
}

func NewSQLiteBackend(dbPath, name string) (*SQLiteBackend, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS quiz_checkpoints (
			name       TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLiteBackend{db: db, name: name}, nil
}

func (b *SQLiteBackend) Name() string { return "sqlite" }

func (b *SQLiteBackend) Load(ctx context.Context) (string, bool, error) {
	var value string
	err := b.db.QueryRowContext(ctx, `SELECT value FROM quiz_checkpoints WHERE name = ?`, b.name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (b *SQLiteBackend) Save(ctx context.Context, value string) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO quiz_checkpoints (name, value, updated_at)
		VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, b.name, value)
	return err
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
