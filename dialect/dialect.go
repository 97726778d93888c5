package dialect

import (
	"context"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"strings"
)

// Dialect names for external usage.
const (
	MySQL     = "mysql"
	Postgres  = "postgres"
	SQLServer = "sqlserver"
	SQLite    = "sqlite"
)

// Dialects lists the supported dialect names.
var Dialects = []string{MySQL, Postgres, SQLServer, SQLite}

// Name maps a database/sql driver name onto its dialect.
// Driver names that embed a dialect name (e.g. "pgx", "sqlite3") resolve too.
func Name(driverName string) (string, error) {
	switch name := strings.ToLower(driverName); {
	case name == "pgx" || strings.HasPrefix(name, Postgres):
		return Postgres, nil
	case strings.HasPrefix(name, MySQL):
		return MySQL, nil
	case strings.HasPrefix(name, SQLServer) || name == "mssql":
		return SQLServer, nil
	case strings.HasPrefix(name, SQLite):
		return SQLite, nil
	default:
		return "", fmt.Errorf("dialect: unsupported driver %q", driverName)
	}
}

// ExecQuerier wraps the 2 database operations.
type ExecQuerier interface {
	// Exec executes a query that does not return records. For example, in SQL, INSERT or UPDATE.
	// It scans the result into the pointer v. For SQL drivers, it is dialect/sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows, typically a SELECT in SQL.
	// It scans the result into the pointer v. For SQL drivers, it is *dialect/sql.Rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for the engine.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	// The provided context is used until the transaction is committed or rolled back.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in transaction.
type Tx interface {
	ExecQuerier
	driver.Tx
}

type nopTx struct {
	Driver
}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

// NopTx returns a Tx with a no-op Commit / Rollback methods wrapping
// the provided Driver d.
func NopTx(d Driver) Tx {
	return nopTx{d}
}

// DebugDriver is a driver that logs all driver operations.
type DebugDriver struct {
	Driver
	log *slog.Logger
}

// Debug gets a driver and an optional logger and returns a new debugged driver
// that logs every statement at debug level.
func Debug(d Driver, logger ...*slog.Logger) Driver {
	drv := &DebugDriver{d, slog.Default()}
	if len(logger) == 1 && logger[0] != nil {
		drv.log = logger[0]
	}
	return drv
}

// Exec logs its params and calls the underlying driver Exec method.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.log.DebugContext(ctx, "driver.Exec", "query", query, "args", args)
	return d.Driver.Exec(ctx, query, args, v)
}

// Query logs its params and calls the underlying driver Query method.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.log.DebugContext(ctx, "driver.Query", "query", query, "args", args)
	return d.Driver.Query(ctx, query, args, v)
}

// Tx adds an log-id for the transaction and calls the underlying driver Tx command.
func (d *DebugDriver) Tx(ctx context.Context) (Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	d.log.DebugContext(ctx, "driver.Tx: started")
	return &DebugTx{tx, d.log, ctx}, nil
}

// DebugTx is a transaction implementation that logs all transaction operations.
type DebugTx struct {
	Tx
	log *slog.Logger
	ctx context.Context
}

// Exec logs its params and calls the underlying transaction Exec method.
func (d *DebugTx) Exec(ctx context.Context, query string, args, v any) error {
	d.log.DebugContext(ctx, "Tx.Exec", "query", query, "args", args)
	return d.Tx.Exec(ctx, query, args, v)
}

// Query logs its params and calls the underlying transaction Query method.
func (d *DebugTx) Query(ctx context.Context, query string, args, v any) error {
	d.log.DebugContext(ctx, "Tx.Query", "query", query, "args", args)
	return d.Tx.Query(ctx, query, args, v)
}

// Commit logs this step and calls the underlying transaction Commit method.
func (d *DebugTx) Commit() error {
	d.log.DebugContext(d.ctx, "Tx.Commit")
	return d.Tx.Commit()
}

// Rollback logs this step and calls the underlying transaction Rollback method.
func (d *DebugTx) Rollback() error {
	d.log.DebugContext(d.ctx, "Tx.Rollback")
	return d.Tx.Rollback()
}
