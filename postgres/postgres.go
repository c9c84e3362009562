package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/tree"
)

// PGStore implements tree.Store using PostgreSQL via pgx.
type PGStore struct {
	queries
	pool   *pgxpool.Pool
	txOpts pgx.TxOptions
}

// Option configures a PGStore.
type Option func(*PGStore)

// WithTxOptions sets the options InTx begins its transactions with. The zero
// value keeps the server default isolation, READ COMMITTED. Concurrent writers
// to the same sibling group need pgx.Serializable and must retry on
// serialization failures (SQLSTATE 40001).
func WithTxOptions(o pgx.TxOptions) Option {
	return func(s *PGStore) {
		s.txOpts = o
	}
}

// New creates a new PGStore backed by the given pgx connection pool.
func New(pool *pgxpool.Pool, opts ...Option) *PGStore {
	s := &PGStore{queries: queries{db: pool}, pool: pool}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens a pool for dsn and wraps it in a PGStore.
func Connect(ctx context.Context, dsn string, opts ...Option) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("tree: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("tree: ping: %w", err)
	}
	return New(pool, opts...), nil
}

// InTx runs fn in one transaction. Queries issued through the Querier passed
// to fn are part of it.
func (s *PGStore) InTx(ctx context.Context, fn func(q tree.Querier) error) error {
	tx, err := s.pool.BeginTx(ctx, s.txOpts)
	if err != nil {
		return fmt.Errorf("tree: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tree: commit: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *PGStore) Close() {
	s.pool.Close()
}

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// queries implements tree.Querier on top of a pool or a transaction.
type queries struct {
	db dbtx
}

// isNoRows checks if the error is a "no rows" error from pgx.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isUniqueViolation reports a unique_violation (23505) from the server.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
