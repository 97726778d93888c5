package sql

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/syssam/dbrest/dialect"
)

// ConnState is the state of a LazyDriver connection.
type ConnState int

// Connection states. A LazyDriver moves Unconnected → Connected on its first
// statement and Connected → Reconstructing → Connected on Reconstruct.
const (
	StateUnconnected ConnState = iota
	StateConnected
	StateReconstructing
)

func (s ConnState) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnected:
		return "connected"
	case StateReconstructing:
		return "reconstructing"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// Opener establishes a connection.
type Opener func(ctx context.Context) (dialect.Driver, error)

// OpenerFor returns an Opener calling Open with the given driver name and source.
func OpenerFor(driverName, source string) Opener {
	return func(context.Context) (dialect.Driver, error) {
		return Open(driverName, source)
	}
}

// ErrDriverClosed is returned by statements issued after Close.
var ErrDriverClosed = errors.New("dialect/sql: lazy driver closed")

// LazyDriver is a dialect.Driver that connects on the first statement.
//
// Reconstruct waits until no statement or transaction uses the current
// connection before replacing it. While it waits, statements still run on
// the current connection and new transactions wait for the new one.
type LazyDriver struct {
	dialect  string
	mu       sync.Mutex
	cond     *sync.Cond
	state    ConnState
	draining bool
	active   int
	open     Opener
	drv      dialect.Driver
	closed   bool
}

// Lazy returns an unconnected driver for the given dialect.
func Lazy(dialect string, open Opener) *LazyDriver {
	d := &LazyDriver{dialect: dialect, open: open}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// State returns the current connection state.
func (d *LazyDriver) State() ConnState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Dialect implements the dialect.Driver interface.
func (d *LazyDriver) Dialect() string { return d.dialect }

// acquire returns the connected driver and counts its caller as active.
// The caller must call release when done. Transactions do not start while
// a Reconstruct is waiting for the connection to become idle.
func (d *LazyDriver) acquire(ctx context.Context, tx bool) (dialect.Driver, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for {
		switch {
		case d.closed:
			return nil, ErrDriverClosed
		case d.state == StateReconstructing, d.draining && tx:
			d.cond.Wait()
			continue
		case d.state == StateUnconnected:
			drv, err := d.open(ctx)
			if err != nil {
				return nil, fmt.Errorf("dialect/sql: connect: %w", err)
			}
			d.drv, d.state = drv, StateConnected
		}
		d.active++
		return d.drv, nil
	}
}

func (d *LazyDriver) release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active--; d.active == 0 {
		d.cond.Broadcast()
	}
}

// Exec implements the dialect.ExecQuerier interface.
func (d *LazyDriver) Exec(ctx context.Context, query string, args, v any) error {
	drv, err := d.acquire(ctx, false)
	if err != nil {
		return err
	}
	defer d.release()
	return drv.Exec(ctx, query, args, v)
}

// Query implements the dialect.ExecQuerier interface.
func (d *LazyDriver) Query(ctx context.Context, query string, args, v any) error {
	drv, err := d.acquire(ctx, false)
	if err != nil {
		return err
	}
	defer d.release()
	return drv.Query(ctx, query, args, v)
}

// Tx starts a transaction. The connection can not be reconstructed until
// the transaction is committed or rolled back.
func (d *LazyDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	drv, err := d.acquire(ctx, true)
	if err != nil {
		return nil, err
	}
	tx, err := drv.Tx(ctx)
	if err != nil {
		d.release()
		return nil, err
	}
	return &lazyTx{Tx: tx, release: sync.OnceFunc(d.release)}, nil
}

// Reconstruct closes the current connection, if any, and connects with open.
// It waits for in-flight statements and transactions to finish.
func (d *LazyDriver) Reconstruct(ctx context.Context, open Opener) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for !d.closed && (d.draining || d.state == StateReconstructing) {
		d.cond.Wait()
	}
	if d.closed {
		return ErrDriverClosed
	}
	d.draining = true
	for d.active > 0 {
		d.cond.Wait()
	}
	d.draining = false
	defer d.cond.Broadcast()
	if d.closed {
		return ErrDriverClosed
	}
	prev := d.state
	d.state = StateReconstructing
	var closeErr error
	if prev == StateConnected && d.drv != nil {
		closeErr = d.drv.Close()
	}
	d.drv = nil
	if open != nil {
		d.open = open
	}
	drv, err := d.open(ctx)
	if err != nil {
		d.state = StateUnconnected
		return errors.Join(closeErr, fmt.Errorf("dialect/sql: reconnect: %w", err))
	}
	d.drv, d.state = drv, StateConnected
	return closeErr
}

// Close waits for in-flight statements and transactions and closes the
// connection. Statements issued afterwards fail.
func (d *LazyDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	defer d.cond.Broadcast()
	for d.active > 0 {
		d.cond.Wait()
	}
	if d.state != StateConnected {
		return nil
	}
	d.state = StateUnconnected
	drv := d.drv
	d.drv = nil
	return drv.Close()
}

type lazyTx struct {
	dialect.Tx
	release func()
}

func (tx *lazyTx) Commit() error {
	defer tx.release()
	return tx.Tx.Commit()
}

func (tx *lazyTx) Rollback() error {
	defer tx.release()
	return tx.Tx.Rollback()
}

var _ dialect.Driver = (*LazyDriver)(nil)
