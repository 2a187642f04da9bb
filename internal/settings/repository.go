package settings

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository persists the settings document.
type Repository interface {
	// All returns every stored key.
	All(ctx context.Context) (Document, error)

	// Upsert writes values in one transaction.
	Upsert(ctx context.Context, values Document) error

	// InsertMissing writes values whose key is not stored yet.
	InsertMissing(ctx context.Context, values Document) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed settings repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// All returns every stored key.
func (r *SQLiteRepository) All(ctx context.Context) (Document, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}
	defer rows.Close()

	doc := make(Document)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		doc[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating settings: %w", err)
	}

	return doc, nil
}

// Upsert writes values in one transaction.
func (r *SQLiteRepository) Upsert(ctx context.Context, values Document) error {
	const query = `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	return r.write(ctx, query, values)
}

// InsertMissing writes values whose key is not stored yet.
func (r *SQLiteRepository) InsertMissing(ctx context.Context, values Document) error {
	const query = `INSERT OR IGNORE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`
	return r.write(ctx, query, values)
}

func (r *SQLiteRepository) write(ctx context.Context, query string, values Document) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning settings transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing settings write: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for key, value := range values {
		if _, err := stmt.ExecContext(ctx, key, value, now); err != nil {
			return fmt.Errorf("writing setting %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing settings: %w", err)
	}
	return nil
}
