package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/plagcode-io/plagcode/internal/config"
)

// Querier is the subset of database/sql shared by *sql.DB (via Connection)
// and *sql.Tx. Store methods run against a Querier so the same code serves
// both autocommit reads and the per-message worker transactions.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Compile-time assertion: a transaction satisfies the same contract.
var _ Querier = (*sql.Tx)(nil)

// Store exposes scan, file, result, and alert operations over a Querier.
//
// The zero-tx Store runs statements in autocommit mode. WithTx derives a
// tx-bound Store for a worker's per-message unit of work: every relational
// effect of one bus message commits atomically before the offset is
// acknowledged.
type Store struct {
	conn   *Connection // nil on a tx-bound store
	q      Querier
	logger *slog.Logger
}

// NewStore creates a Store over the given connection.
func NewStore(conn *Connection) (*Store, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	return &Store{
		conn: conn,
		q:    conn,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
	}, nil
}

// WithTx runs fn against a transaction-bound Store. The transaction commits
// when fn returns nil and rolls back otherwise. Read-committed isolation is
// sufficient for the latch conditional updates: the WHERE clause plus the row
// lock taken by UPDATE make the false→true transition single-shot.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.conn == nil {
		return ErrNestedTransaction
	}

	tx, err := s.conn.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txStore := &Store{q: tx, logger: s.logger}

	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("transaction rollback failed",
				slog.String("error", rbErr.Error()),
			)
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// HealthCheck delegates to the underlying connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}

	return s.conn.HealthCheck(ctx)
}
