package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const schemaTemplates = `
CREATE TABLE IF NOT EXISTS templates (
    name TEXT PRIMARY KEY,
    body TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// SQLiteSource keeps templates in a SQLite table. The stamp of a template is
// the time of its last Put.
type SQLiteSource struct {
	db *sql.DB
}

// OpenSQLite opens the database at dataSource and creates the templates
// table if needed.
func OpenSQLite(dataSource string) (*SQLiteSource, error) {
	db, err := openDB(dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open template database: %w", err)
	}
	s, err := NewSQLiteSource(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteSource wraps an open database, creating the templates table if
// needed.
func NewSQLiteSource(db *sql.DB) (*SQLiteSource, error) {
	if err := SetupSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteSource{db: db}, nil
}

// SetupSchema creates the templates table.
func SetupSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaTemplates); err != nil {
		return fmt.Errorf("failed to create templates table: %w", err)
	}
	return nil
}

// Load implements Source.
func (s *SQLiteSource) Load(ctx context.Context, name string) (string, time.Time, error) {
	var (
		body    string
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT body, updated_at FROM templates WHERE name = ?`, name,
	).Scan(&body, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("loading template %q: %w", name, err)
	}
	return body, time.Unix(0, updated), nil
}

// Put stores text under name. The stored stamp always moves forward, even
// when two writes land within the same clock tick.
func (s *SQLiteSource) Put(ctx context.Context, name, text string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO templates (name, body, updated_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
    body = excluded.body,
    updated_at = MAX(excluded.updated_at, templates.updated_at + 1)`,
		name, text, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("storing template %q: %w", name, err)
	}
	return nil
}

// Delete removes a template. Deleting a missing name is not an error.
func (s *SQLiteSource) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE name = ?`, name); err != nil {
		return fmt.Errorf("deleting template %q: %w", name, err)
	}
	return nil
}

// Names lists the stored template names in order.
func (s *SQLiteSource) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
