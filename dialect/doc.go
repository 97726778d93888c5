// Package dialect provides the database dialect abstraction of dbrest.
//
// This package defines the interfaces used to talk to a database, allowing
// the engine to support MySQL/MariaDB, PostgreSQL, SQL Server and SQLite.
//
// # Dialect Constants
//
// Each dialect is identified by a constant string:
//
//	dialect.MySQL     = "mysql"
//	dialect.Postgres  = "postgres"
//	dialect.SQLServer = "sqlserver"
//	dialect.SQLite    = "sqlite"
//
// Name maps database/sql driver names onto these, so both "postgres"
// (lib/pq) and "pgx" (pgx/v5/stdlib) select the Postgres dialect.
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// The Tx interface adds Commit and Rollback. Debug wraps a Driver and logs
// every statement through log/slog.
//
// # Sub-packages
//
//   - dialect/sql: driver implementation and per-dialect SQL generation
//   - dialect/sql/inspect: schema reflection and DDL
//   - dialect/sql/sqlgraph: record store and relation joins
package dialect
