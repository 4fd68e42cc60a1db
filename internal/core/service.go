package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/stockroom/internal/config"
	"github.com/jackc/pgx/v5"
)

// DB is the connection a Service runs on. *pgxpool.Pool satisfies it, and
// so does a pgxmock pool in tests.
type DB interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// Service is the entry point for every inventory operation. It holds no
// per-request state and is safe for concurrent use; every method takes
// the caller's context, and the acting user for audit entries is read
// from that context (see ContextWithActor).
type Service struct {
	pool     DB
	minStock int
	now      func() time.Time
}

// NewService creates a Service over an open pool. cfg may be nil, in
// which case new products fall back to a minimum stock of zero.
func NewService(pool DB, cfg *config.Config) *Service {
	s := &Service{
		pool: pool,
		now:  time.Now,
	}
	if cfg != nil {
		s.minStock = cfg.Stock.DefaultMinimum
	}
	return s
}

// Ping verifies the database is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// inTx runs fn in a transaction. Any error rolls back and is returned.
func (s *Service) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// exec runs a single statement and returns the affected row count.
func (s *Service) exec(ctx context.Context, db DBTX, query string, args ...interface{}) (int64, error) {
	tag, err := db.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// requireAffected turns a zero row count into ErrNotFound.
func requireAffected(n int64, err error, what string) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// collectOptions scans (id, nombre) rows.
func collectOptions(rows pgx.Rows) ([]Option, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Option, error) {
		var o Option
		err := row.Scan(&o.ID, &o.Name)
		return o, err
	})
}

// collectStrings scans single text column rows.
func collectStrings(rows pgx.Rows) ([]string, error) {
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
