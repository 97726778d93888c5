package dbrest

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrTableNotFound is returned when a table is unknown or not exposed.
	ErrTableNotFound = errors.New("dbrest: table not found")

	// ErrColumnNotFound is returned when a column is unknown to its table.
	ErrColumnNotFound = errors.New("dbrest: column not found")

	// ErrRecordNotFound is returned when no record matches a primary key.
	ErrRecordNotFound = errors.New("dbrest: record not found")

	// ErrArgumentCountMismatch is returned when a batch has a different
	// number of ids and records.
	ErrArgumentCountMismatch = errors.New("dbrest: argument count mismatch")

	// ErrDuplicateKey is returned when a write violates a unique constraint.
	ErrDuplicateKey = errors.New("dbrest: duplicate key")

	// ErrDataIntegrity is returned on foreign key, not null or default value violations.
	ErrDataIntegrity = errors.New("dbrest: data integrity violation")

	// ErrUnsupportedOperation is returned for operations a table or dialect
	// does not support, such as mutating a view.
	ErrUnsupportedOperation = errors.New("dbrest: unsupported operation")

	// ErrDatabase is the opaque kind of every other driver failure.
	ErrDatabase = errors.New("dbrest: database error")

	// ErrTxStarted is returned when attempting to start a new transaction
	// within an existing transaction.
	ErrTxStarted = errors.New("dbrest: cannot start a transaction within a transaction")

	// ErrTxNotStarted is returned when committing or rolling back outside a transaction.
	ErrTxNotStarted = errors.New("dbrest: no transaction started")
)

// TableNotFoundError represents an error when a table is not found.
type TableNotFoundError struct {
	Table string
}

// Error returns the error string.
func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("dbrest: table %q not found", e.Table)
}

// Is reports whether the target error matches TableNotFoundError.
func (e *TableNotFoundError) Is(err error) bool {
	return err == ErrTableNotFound
}

// NewTableNotFoundError returns a new TableNotFoundError.
func NewTableNotFoundError(table string) *TableNotFoundError {
	return &TableNotFoundError{Table: table}
}

// IsTableNotFound returns true if the error is a TableNotFoundError.
func IsTableNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrTableNotFound)
}

// ColumnNotFoundError represents an error when a column is not found.
type ColumnNotFoundError struct {
	Table  string
	Column string
}

// Error returns the error string.
func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("dbrest: column %q not found in table %q", e.Column, e.Table)
}

// Is reports whether the target error matches ColumnNotFoundError.
func (e *ColumnNotFoundError) Is(err error) bool {
	return err == ErrColumnNotFound
}

// NewColumnNotFoundError returns a new ColumnNotFoundError.
func NewColumnNotFoundError(table, column string) *ColumnNotFoundError {
	return &ColumnNotFoundError{Table: table, Column: column}
}

// IsColumnNotFound returns true if the error is a ColumnNotFoundError.
func IsColumnNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrColumnNotFound)
}

// RecordNotFoundError represents an error when a record is not found.
type RecordNotFoundError struct {
	Table string
	ID    any
}

// Error returns the error string.
func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("dbrest: record %v not found in table %q", e.ID, e.Table)
}

// Is reports whether the target error matches RecordNotFoundError.
func (e *RecordNotFoundError) Is(err error) bool {
	return err == ErrRecordNotFound
}

// NewRecordNotFoundError returns a new RecordNotFoundError.
func NewRecordNotFoundError(table string, id any) *RecordNotFoundError {
	return &RecordNotFoundError{Table: table, ID: id}
}

// IsRecordNotFound returns true if the error is a RecordNotFoundError.
func IsRecordNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrRecordNotFound)
}

// ArgumentCountMismatchError is returned when a batch operation receives a
// different number of ids and records.
type ArgumentCountMismatchError struct {
	IDs     int
	Records int
}

// Error returns the error string.
func (e *ArgumentCountMismatchError) Error() string {
	return fmt.Sprintf("dbrest: argument count mismatch: %d ids, %d records", e.IDs, e.Records)
}

// Is reports whether the target error matches ArgumentCountMismatchError.
func (e *ArgumentCountMismatchError) Is(err error) bool {
	return err == ErrArgumentCountMismatch
}

// NewArgumentCountMismatchError returns a new ArgumentCountMismatchError.
func NewArgumentCountMismatchError(ids, records int) *ArgumentCountMismatchError {
	return &ArgumentCountMismatchError{IDs: ids, Records: records}
}

// IsArgumentCountMismatch returns true if the error is an ArgumentCountMismatchError.
func IsArgumentCountMismatch(err error) bool {
	return err != nil && errors.Is(err, ErrArgumentCountMismatch)
}

// ConstraintError represents a database constraint violation. Kind is
// either ErrDuplicateKey or ErrDataIntegrity.
type ConstraintError struct {
	Kind  error
	Table string
	wrap  error
}

// Error returns the error string.
func (e *ConstraintError) Error() string {
	msg := strings.TrimPrefix(e.Kind.Error(), "dbrest: ")
	if e.Table != "" {
		return fmt.Sprintf("dbrest: %s on table %q", msg, e.Table)
	}
	return "dbrest: " + msg
}

// Is reports whether the target error is the kind of this violation.
func (e *ConstraintError) Is(err error) bool {
	return err == e.Kind
}

// Unwrap returns the underlying driver error.
func (e *ConstraintError) Unwrap() error {
	return e.wrap
}

// NewDuplicateKeyError returns a ConstraintError of kind ErrDuplicateKey.
func NewDuplicateKeyError(table string, wrap error) *ConstraintError {
	return &ConstraintError{Kind: ErrDuplicateKey, Table: table, wrap: wrap}
}

// NewDataIntegrityError returns a ConstraintError of kind ErrDataIntegrity.
func NewDataIntegrityError(table string, wrap error) *ConstraintError {
	return &ConstraintError{Kind: ErrDataIntegrity, Table: table, wrap: wrap}
}

// IsDuplicateKey returns true if the error is a unique constraint violation.
func IsDuplicateKey(err error) bool {
	return err != nil && errors.Is(err, ErrDuplicateKey)
}

// IsDataIntegrity returns true if the error is a data integrity violation.
func IsDataIntegrity(err error) bool {
	return err != nil && errors.Is(err, ErrDataIntegrity)
}

// IsConstraintError returns true if the error is any constraint violation.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConstraintError
	return errors.As(err, &e)
}

// UnsupportedOperationError represents an operation a table or dialect refuses.
type UnsupportedOperationError struct {
	Op    string
	Table string
}

// Error returns the error string.
func (e *UnsupportedOperationError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("dbrest: unsupported operation %s on %q", e.Op, e.Table)
	}
	return fmt.Sprintf("dbrest: unsupported operation %s", e.Op)
}

// Is reports whether the target error matches UnsupportedOperationError.
func (e *UnsupportedOperationError) Is(err error) bool {
	return err == ErrUnsupportedOperation
}

// NewUnsupportedOperationError returns a new UnsupportedOperationError.
func NewUnsupportedOperationError(op, table string) *UnsupportedOperationError {
	return &UnsupportedOperationError{Op: op, Table: table}
}

// IsUnsupportedOperation returns true if the error is an UnsupportedOperationError.
func IsUnsupportedOperation(err error) bool {
	return err != nil && errors.Is(err, ErrUnsupportedOperation)
}

// DatabaseError wraps a driver failure that has no more specific kind.
// The driver detail is part of the message only in debug mode; it stays
// reachable through Unwrap either way.
type DatabaseError struct {
	Op    string
	Debug bool
	wrap  error
}

// Error returns the error string.
func (e *DatabaseError) Error() string {
	if e.Debug && e.wrap != nil {
		return fmt.Sprintf("dbrest: database error during %s: %v", e.Op, e.wrap)
	}
	return fmt.Sprintf("dbrest: database error during %s", e.Op)
}

// Is reports whether the target error matches DatabaseError.
func (e *DatabaseError) Is(err error) bool {
	return err == ErrDatabase
}

// Unwrap returns the underlying driver error.
func (e *DatabaseError) Unwrap() error {
	return e.wrap
}

// NewDatabaseError returns a new DatabaseError.
func NewDatabaseError(op string, debug bool, wrap error) *DatabaseError {
	return &DatabaseError{Op: op, Debug: debug, wrap: wrap}
}

// IsDatabaseError returns true if the error is a DatabaseError.
func IsDatabaseError(err error) bool {
	return err != nil && errors.Is(err, ErrDatabase)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err      error // Original error that triggered rollback
	Rollback error // Error returned by the rollback itself
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("dbrest: %v: rollback failed: %v", e.Err, e.Rollback)
}

// Unwrap returns the original error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "dbrest: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("dbrest: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
