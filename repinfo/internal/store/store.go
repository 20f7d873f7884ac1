// Package store persists representation reports in SQLite, keyed by the
// ID of the unit they describe.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Unit is one stored unit.
type Unit struct {
	Created time.Time
	ID      string
	Name    string
}

// Type is the report line of one source type.
type Type struct {
	Name    string
	Kind    string
	Size    string
	MaxSize string
	// Bounds lists the index ranges of an array type.
	Bounds    string
	Pos       string
	Alignment uint64
	// Alternates are in chain order, newest first.
	Alternates []Alternate
}

// Alternate is one representation of a type. Nil fields were unspecified.
type Alternate struct {
	Size     *uint64
	Align    *uint64
	Bias     *int64
	Kind     string
	Physical string
	Default  bool
	MaxSize  bool
}

// Store is a back-annotation database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save replaces everything stored for u with types, in one transaction.
func (s *Store) Save(ctx context.Context, u Unit, types []Type) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, table := range []string{"alternates", "types"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE unit_id = ?`, u.ID); err != nil {
			return fmt.Errorf("clear %s of unit %s: %w", table, u.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM units WHERE id = ?`, u.ID); err != nil {
		return fmt.Errorf("clear unit %s: %w", u.ID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO units (id, name, created_at) VALUES (?, ?, ?)`,
		u.ID, u.Name, u.Created.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("insert unit %s: %w", u.ID, err)
	}
	for i, t := range types {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO types (unit_id, seq, name, kind, size, max_size, bounds, alignment, pos)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			u.ID, i, t.Name, t.Kind, t.Size, t.MaxSize, t.Bounds, t.Alignment, t.Pos); err != nil {
			return fmt.Errorf("insert type %s: %w", t.Name, err)
		}
		for j, a := range t.Alternates {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO alternates (unit_id, type_seq, seq, kind, physical, size_bits, align, bias, is_default, max_size)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				u.ID, i, j, a.Kind, a.Physical, a.Size, a.Align, a.Bias, a.Default, a.MaxSize); err != nil {
				return fmt.Errorf("insert alternate %d of %s: %w", j, t.Name, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit unit %s: %w", u.ID, err)
	}
	return nil
}
