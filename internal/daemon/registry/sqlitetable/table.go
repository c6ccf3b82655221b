// Package sqlitetable stores the code-mapping table in SQLite.
package sqlitetable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/grovetools/pulse/internal/daemon/registry"
	"github.com/grovetools/pulse/internal/daemon/registry/sqlitetable/migrations"
	"github.com/grovetools/pulse/pkg/models"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Table persists registry rows in a SQLite database. Each Append is a single
// autocommit INSERT with synchronous=FULL, so a returned Append is durable.
type Table struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer connection keeps appends ordered.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Table{db: db}, nil
}

// Load implements registry.Table.
func (t *Table) Load(ctx context.Context) ([]registry.Entry, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT category, seq, match_key, created_at FROM code_map ORDER BY category, seq`)
	if err != nil {
		return nil, fmt.Errorf("query code map: %w", err)
	}
	defer rows.Close()

	var out []registry.Entry
	for rows.Next() {
		var (
			category  string
			seq       int
			key       string
			createdAt int64
		)
		if err := rows.Scan(&category, &seq, &key, &createdAt); err != nil {
			return nil, fmt.Errorf("scan code map row: %w", err)
		}
		out = append(out, registry.Entry{
			Category:  models.Category(category),
			Seq:       seq,
			Key:       key,
			CreatedAt: time.UnixMilli(createdAt).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate code map: %w", err)
	}
	return out, nil
}

// ErrDuplicate is returned when a row for the same code or key already exists.
var ErrDuplicate = errors.New("code map row already exists")

// Append implements registry.Table.
func (t *Table) Append(ctx context.Context, e registry.Entry) error {
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO code_map (category, seq, match_key, created_at) VALUES (?, ?, ?, ?)`,
		string(e.Category), e.Seq, e.Key, e.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("append %s: %w", e.Code(), ErrDuplicate)
		}
		return fmt.Errorf("append %s: %w", e.Code(), err)
	}
	return nil
}

// Close implements registry.Table.
func (t *Table) Close() error {
	if t == nil || t.db == nil {
		return nil
	}
	return t.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ registry.Table = (*Table)(nil)
