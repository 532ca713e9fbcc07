package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// contextRepo implements the context repository on sqlite
type contextRepo struct {
	db *sql.DB
}

// NewContextRepo creates a new context repository
func NewContextRepo(dbPath string) (repo.ContextRepo, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS contexts (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &contextRepo{db: db}, nil
}

// List returns all contexts in insertion order
func (r *contextRepo) List(ctx context.Context) ([]domain.ContextRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, value, updated_at
		FROM contexts
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("query contexts: %w", err)
	}
	defer rows.Close()

	var records []domain.ContextRecord
	for rows.Next() {
		var record domain.ContextRecord
		var updatedAt int64
		if err := rows.Scan(&record.Name, &record.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan context: %w", err)
		}
		record.UpdatedAt = time.Unix(updatedAt, 0)
		records = append(records, record)
	}
	return records, rows.Err()
}

// Upsert inserts a context or replaces its value in place
func (r *contextRepo) Upsert(ctx context.Context, name, value string) error {
	now := time.Now().Unix()
	// ON CONFLICT keeps the rowid, so replaced contexts keep their position
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contexts (name, value, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, name, value, now, now)
	if err != nil {
		return fmt.Errorf("upsert context: %w", err)
	}
	return nil
}

// Delete removes a context
func (r *contextRepo) Delete(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM contexts WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete context: %w", err)
	}
	return nil
}

// Close closes the database connection
func (r *contextRepo) Close() error {
	return r.db.Close()
}
