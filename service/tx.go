package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/syssam/dbrest"
	"github.com/syssam/dbrest/dialect"
)

type txCtxKey struct{}

// txState is the transaction a context carries.
type txState struct {
	tx   dialect.Tx
	id   string
	done bool
}

func txFrom(ctx context.Context) *txState {
	st, _ := ctx.Value(txCtxKey{}).(*txState)
	return st
}

// TxID returns the id of the open transaction ctx carries, or "".
func TxID(ctx context.Context) string {
	if st := txFrom(ctx); st != nil && !st.done {
		return st.id
	}
	return ""
}

// Begin starts a transaction and returns a context carrying it. Record
// operations called with the returned context run inside the transaction
// until Commit or Rollback. Transactions do not nest: beginning within an
// open transaction returns ErrTxStarted.
func (s *Service) Begin(ctx context.Context) (context.Context, error) {
	if TxID(ctx) != "" {
		return ctx, dbrest.ErrTxStarted
	}
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return ctx, s.classify("begin", "", err)
	}
	st := &txState{tx: tx, id: uuid.NewString()}
	s.log.DebugContext(ctx, "transaction started", "tx", st.id)
	return context.WithValue(ctx, txCtxKey{}, st), nil
}

// Commit commits the transaction ctx carries.
func (s *Service) Commit(ctx context.Context) error {
	st, err := s.finish(ctx)
	if err != nil {
		return err
	}
	if err := st.tx.Commit(); err != nil {
		s.log.ErrorContext(ctx, "transaction commit failed", "tx", st.id, "error", err)
		return s.classify("commit", "", err)
	}
	s.log.DebugContext(ctx, "transaction committed", "tx", st.id)
	return nil
}

// Rollback rolls back the transaction ctx carries.
func (s *Service) Rollback(ctx context.Context) error {
	st, err := s.finish(ctx)
	if err != nil {
		return err
	}
	if err := st.tx.Rollback(); err != nil {
		s.log.ErrorContext(ctx, "transaction rollback failed", "tx", st.id, "error", err)
		return s.classify("rollback", "", err)
	}
	s.log.DebugContext(ctx, "transaction rolled back", "tx", st.id)
	return nil
}

func (s *Service) finish(ctx context.Context) (*txState, error) {
	st := txFrom(ctx)
	if st == nil || st.done {
		return nil, dbrest.ErrTxNotStarted
	}
	st.done = true
	return st, nil
}

// WithTx runs fn within a transaction. If fn returns an error or panics,
// the transaction is rolled back. Otherwise, it is committed. Within an
// open transaction fn joins it.
func (s *Service) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if TxID(ctx) != "" {
		return fn(ctx)
	}
	txCtx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			_ = s.Rollback(txCtx)
			panic(v)
		}
	}()
	if err := fn(txCtx); err != nil {
		if rerr := s.Rollback(txCtx); rerr != nil {
			return &dbrest.RollbackError{Err: err, Rollback: rerr}
		}
		return err
	}
	if err := s.Commit(txCtx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// querier returns the transaction ctx carries, or the driver.
func (s *Service) querier(ctx context.Context) dialect.ExecQuerier {
	if st := txFrom(ctx); st != nil && !st.done {
		return st.tx
	}
	return s.drv
}
