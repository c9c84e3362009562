// Package sqlite implements tree.Store on a single SQLite file.
//
// The database is opened with one connection: SQLite allows a single writer,
// and every engine operation already runs in one transaction. WAL mode keeps
// readers of other processes unblocked while it runs.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/mattn/go-sqlite3"

	"github.com/meikuraledutech/tree"
)

//go:embed schema.sql
var schemaSQL string

// Store implements tree.Store using SQLite via database/sql.
type Store struct {
	queries
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", "5000")
	params.Set("_txlock", "immediate")
	if path != ":memory:" {
		params.Set("_journal_mode", "WAL")
		params.Set("_synchronous", "NORMAL")
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("tree: open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("tree: ping sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	// An in-memory database lives only as long as its connection.
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	s := &Store{queries: queries{db: db}, db: db}
	if err := s.CreateSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// CreateSchema creates the tree_nodes and tree_closure tables if they don't exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("tree: create schema: %w", err)
	}
	return nil
}

// DropSchema drops the tree_closure and tree_nodes tables.
func (s *Store) DropSchema(ctx context.Context) error {
	for _, stmt := range []string{
		`DROP TABLE IF EXISTS tree_closure`,
		`DROP TABLE IF EXISTS tree_nodes`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("tree: drop schema: %w", err)
		}
	}
	return nil
}

// InTx runs fn in one transaction.
func (s *Store) InTx(ctx context.Context, fn func(q tree.Querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tree: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tree: commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() {
	s.db.Close()
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements tree.Querier on top of a database or a transaction.
type queries struct {
	db dbtx
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		se.ExtendedCode == sqlite3.ErrConstraintUnique
}
