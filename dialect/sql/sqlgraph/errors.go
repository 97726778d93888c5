package sqlgraph

import (
	"context"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/syssam/dbrest"
)

// Classify maps a driver error onto the error kinds of dbrest. Structured
// driver codes are checked first and the message text last. Errors that
// already carry a dbrest kind and context errors are returned unchanged;
// everything else becomes a DatabaseError with the driver detail shown
// only when debug is set.
func Classify(op, table string, err error, debug bool) error {
	switch {
	case err == nil:
		return nil
	case known(err):
		return err
	case IsUniqueConstraintError(err):
		return dbrest.NewDuplicateKeyError(table, err)
	case IsIntegrityConstraintError(err):
		return dbrest.NewDataIntegrityError(table, err)
	default:
		return dbrest.NewDatabaseError(op, debug, err)
	}
}

func known(err error) bool {
	for _, kind := range []error{
		dbrest.ErrTableNotFound, dbrest.ErrColumnNotFound, dbrest.ErrRecordNotFound,
		dbrest.ErrArgumentCountMismatch, dbrest.ErrDuplicateKey, dbrest.ErrDataIntegrity,
		dbrest.ErrUnsupportedOperation, dbrest.ErrDatabase, dbrest.ErrTxStarted, dbrest.ErrTxNotStarted,
		context.Canceled, context.DeadlineExceeded,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// errorCoder is an interface for database errors that provide error codes.
type errorCoder interface {
	Code() string
}

// sqlStateError is an interface for errors that provide SQLSTATE codes.
// Implemented by: pgconn.PgError and some MySQL drivers.
type sqlStateError interface {
	SQLState() string
}

// errorNumberer is an interface for database errors that provide numeric error codes.
type errorNumberer interface {
	Number() uint16
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlBadNull                = 1048 // Column cannot be null
	mysqlNoDefault              = 1364 // Field doesn't have a default value
	mysqlCheckConstraintViolate = 3819
)

// SQL Server error numbers for constraint violations.
const (
	mssqlPrimaryKey = 2627
	mssqlUniqueKey  = 2601
	mssqlConstraint = 547 // foreign key and check constraints
	mssqlNullInsert = 515
)

// sqlState returns the SQLSTATE of a Postgres error, or "".
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	if e, ok := asError[sqlStateError](err); ok {
		return e.SQLState()
	}
	if e, ok := asError[errorCoder](err); ok {
		return e.Code()
	}
	return ""
}

// number returns the vendor error number of MySQL, SQL Server and SQLite
// errors, or 0.
func number(err error) int {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return int(myErr.Number)
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return int(msErr.Number)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()
	}
	if e, ok := asError[errorNumberer](err); ok {
		return int(e.Number())
	}
	return 0
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
// e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if sqlState(err) == pgUniqueViolation {
		return true
	}
	switch number(err) {
	case mysqlDuplicateEntry, mssqlPrimaryKey, mssqlUniqueKey,
		sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	// Fallback to string matching for drivers that don't expose codes.
	return containsAny(err.Error(),
		"Duplicate entry",               // MySQL
		"duplicate key value",           // Postgres
		"UNIQUE constraint failed",      // SQLite
		"PRIMARY KEY constraint failed", // SQLite
		"Cannot insert duplicate key",   // SQL Server
		"Violation of PRIMARY KEY constraint",
		"Violation of UNIQUE KEY constraint",
	)
}

// IsIntegrityConstraintError reports if the error resulted from a foreign key,
// not null, missing default or check constraint violation.
func IsIntegrityConstraintError(err error) bool {
	if err == nil {
		return false
	}
	switch sqlState(err) {
	case pgForeignKeyViolation, pgNotNullViolation, pgCheckViolation:
		return true
	}
	switch number(err) {
	case mysqlForeignKeyParent, mysqlForeignKeyChild, mysqlBadNull, mysqlNoDefault, mysqlCheckConstraintViolate,
		mssqlConstraint, mssqlNullInsert,
		sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, sqlite3.SQLITE_CONSTRAINT_NOTNULL, sqlite3.SQLITE_CONSTRAINT_CHECK:
		return true
	}
	return containsAny(err.Error(),
		"a foreign key constraint fails",             // MySQL
		"cannot be null",                             // MySQL
		"doesn't have a default value",               // MySQL
		"violates foreign key constraint",            // Postgres
		"violates not-null constraint",               // Postgres
		"violates check constraint",                  // Postgres
		"FOREIGN KEY constraint failed",              // SQLite
		"NOT NULL constraint failed",                 // SQLite
		"CHECK constraint failed",                    // SQLite
		"conflicted with the FOREIGN KEY constraint", // SQL Server
		"Cannot insert the value NULL",               // SQL Server
	)
}

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
