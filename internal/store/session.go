package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/changeset/internal/model"
	"github.com/roach88/changeset/internal/tracker"
)

var (
	_ tracker.Session[model.Row] = (*Session[model.Row])(nil)
)

// Session runs merges and deletes for one schema inside a single
// transaction. It is not safe for concurrent use.
type Session[T any] struct {
	ctx    context.Context
	store  *Store
	schema *model.Schema[T]
	logger *slog.Logger

	upsertStmt string
	deleteStmt string

	tx         *sql.Tx
	savepoints int
	closed     bool
}

// NewSession creates a session bound to ctx. A nil logger discards output.
func NewSession[T any](ctx context.Context, s *Store, schema *model.Schema[T], logger *slog.Logger) *Session[T] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session[T]{
		ctx:        ctx,
		store:      s,
		schema:     schema,
		logger:     logger.With("table", schema.Table),
		upsertStmt: upsertSQL(s.dialect, schema),
		deleteStmt: deleteSQL(s.dialect, schema),
	}
}

// begin returns the open transaction, starting one if needed.
func (s *Session[T]) begin() (*sql.Tx, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.store.db.BeginTx(s.ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	s.logger.Debug("transaction started")
	s.tx = tx
	s.savepoints = 0
	return tx, nil
}

// MergeOrInsert writes the record, overwriting the row with the same key.
func (s *Session[T]) MergeOrInsert(record T) error {
	tx, err := s.begin()
	if err != nil {
		return err
	}
	args, err := s.schema.Values(record)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(s.ctx, s.upsertStmt, args...); err != nil {
		return fmt.Errorf("merge into %s: %w", s.schema.Table, err)
	}
	return nil
}

// Delete removes the row with the record's key. A failure leaves the
// rest of the transaction intact when the dialect supports savepoints.
func (s *Session[T]) Delete(record T) error {
	tx, err := s.begin()
	if err != nil {
		return err
	}
	args, err := s.schema.KeyValues(record)
	if err != nil {
		return err
	}

	if !s.store.dialect.Savepoints {
		return s.execDelete(tx, args)
	}

	s.savepoints++
	sp := fmt.Sprintf("sp_delete_%d", s.savepoints)
	if _, err := tx.ExecContext(s.ctx, "SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("savepoint %s: %w", sp, err)
	}

	if err := s.execDelete(tx, args); err != nil {
		if _, rbErr := tx.ExecContext(s.ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback to savepoint %s: %w", sp, rbErr))
		}
		if _, relErr := tx.ExecContext(s.ctx, "RELEASE SAVEPOINT "+sp); relErr != nil {
			return errors.Join(err, fmt.Errorf("release savepoint %s: %w", sp, relErr))
		}
		return err
	}

	if _, err := tx.ExecContext(s.ctx, "RELEASE SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("release savepoint %s: %w", sp, err)
	}
	return nil
}

func (s *Session[T]) execDelete(tx *sql.Tx, args []any) error {
	res, err := tx.ExecContext(s.ctx, s.deleteStmt, args...)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", s.schema.Table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete from %s: rows affected: %w", s.schema.Table, err)
	}
	if n == 0 {
		return fmt.Errorf("delete from %s: %w", s.schema.Table, ErrNotFound)
	}
	return nil
}

// Commit commits the open transaction. Without one it does nothing.
func (s *Session[T]) Commit() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("transaction committed")
	return nil
}

// Rollback discards the open transaction. Without one it does nothing.
func (s *Session[T]) Rollback() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	s.logger.Debug("transaction rolled back")
	return nil
}

// Close releases the session. An open transaction is rolled back.
// Calling Close more than once is a no-op.
func (s *Session[T]) Close() {
	if s.closed {
		return
	}
	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logger.Warn("rollback on close failed", "error", err)
		}
		s.tx = nil
	}
	s.closed = true
}
