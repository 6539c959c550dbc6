package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
)

// ListAll returns every stored note in no particular order.
func (db *DB) ListAll(ctx context.Context) ([]models.Note, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, title, content, timestamp FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Get returns the note stored under id, or apperr.ErrNotFound.
func (db *DB) Get(ctx context.Context, id string) (models.Note, error) {
	var n models.Note
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, title, content, timestamp FROM notes WHERE id = ?`, id,
	).Scan(&n.ID, &n.Title, &n.Content, &n.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Note{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Note{}, fmt.Errorf("store: get %s: %w", id, err)
	}
	return n, nil
}

// Create inserts n as a new record. It returns apperr.ErrConflict when a
// note with the same id already exists and leaves that note untouched.
func (db *DB) Create(ctx context.Context, n models.Note) error {
	if n.ID == "" {
		return fmt.Errorf("store: create: empty id")
	}
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO notes (id, title, content, timestamp)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, n.ID, n.Title, n.Content, n.Timestamp)
	if err != nil {
		return fmt.Errorf("store: create %s: %w", n.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: create %s: %w", n.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("store: create %s: %w", n.ID, apperr.ErrConflict)
	}
	return nil
}

// Upsert writes n under n.ID, replacing title, content and timestamp of any
// existing record with the same id.
func (db *DB) Upsert(ctx context.Context, n models.Note) error {
	if n.ID == "" {
		return fmt.Errorf("store: upsert: empty id")
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO notes (id, title, content, timestamp)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title     = excluded.title,
			content   = excluded.content,
			timestamp = excluded.timestamp
	`, n.ID, n.Title, n.Content, n.Timestamp)
	if err != nil {
		return fmt.Errorf("store: upsert %s: %w", n.ID, err)
	}
	return nil
}

// Remove deletes the note stored under id. Removing a missing id succeeds.
func (db *DB) Remove(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: remove %s: %w", id, err)
	}
	return nil
}
