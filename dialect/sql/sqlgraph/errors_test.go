package sqlgraph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/dbrest"
)

type stateErr string

func (e stateErr) Error() string    { return "state " + string(e) }
func (e stateErr) SQLState() string { return string(e) }

type numberErr uint16

func (e numberErr) Error() string  { return fmt.Sprintf("number %d", uint16(e)) }
func (e numberErr) Number() uint16 { return uint16(e) }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		duplicate bool
		integrity bool
	}{
		{name: "pgx unique", err: &pgconn.PgError{Code: "23505"}, duplicate: true},
		{name: "pgx foreign key", err: &pgconn.PgError{Code: "23503"}, integrity: true},
		{name: "pgx not null", err: &pgconn.PgError{Code: "23502"}, integrity: true},
		{name: "pq unique", err: &pq.Error{Code: "23505"}, duplicate: true},
		{name: "pq check", err: &pq.Error{Code: "23514"}, integrity: true},
		{name: "mysql duplicate", err: &mysql.MySQLError{Number: 1062}, duplicate: true},
		{name: "mysql child row", err: &mysql.MySQLError{Number: 1452}, integrity: true},
		{name: "mysql no default", err: &mysql.MySQLError{Number: 1364}, integrity: true},
		{name: "mssql primary key", err: mssql.Error{Number: 2627}, duplicate: true},
		{name: "mssql null insert", err: mssql.Error{Number: 515}, integrity: true},
		{name: "sqlstate interface", err: stateErr("23505"), duplicate: true},
		{name: "number interface", err: numberErr(1048), integrity: true},
		{name: "wrapped", err: fmt.Errorf("dialect/sql: exec: %w", &pgconn.PgError{Code: "23505"}), duplicate: true},
		{name: "sqlite message", err: errors.New("constraint failed: UNIQUE constraint failed: customers.name (2067)"), duplicate: true},
		{name: "sqlite fk message", err: errors.New("FOREIGN KEY constraint failed"), integrity: true},
		{name: "postgres message", err: errors.New(`pq: duplicate key value violates unique constraint "customers_pkey"`), duplicate: true},
		{name: "other", err: errors.New("connection refused")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify("create", "customers", tt.err, false)
			assert.Equal(t, tt.duplicate, dbrest.IsDuplicateKey(err))
			assert.Equal(t, tt.integrity, dbrest.IsDataIntegrity(err))
			assert.Equal(t, !tt.duplicate && !tt.integrity, dbrest.IsDatabaseError(err))
			if _, ok := tt.err.(mssql.Error); ok {
				// mssql.Error is not comparable, so errors.Is can not match it.
				var e mssql.Error
				require.ErrorAs(t, err, &e)
				assert.Equal(t, tt.err, e)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestClassifyPassThrough(t *testing.T) {
	require.NoError(t, Classify("read", "orders", nil, false))

	notFound := dbrest.NewRecordNotFoundError("orders", 1)
	assert.Same(t, notFound, Classify("read", "orders", notFound, false))

	canceled := fmt.Errorf("query: %w", context.Canceled)
	assert.Equal(t, canceled, Classify("read", "orders", canceled, false))
}

func TestClassifyDebug(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:5432: connection refused")

	err := Classify("list", "orders", cause, false)
	require.True(t, dbrest.IsDatabaseError(err))
	assert.NotContains(t, err.Error(), "10.0.0.1")

	err = Classify("list", "orders", cause, true)
	require.True(t, dbrest.IsDatabaseError(err))
	assert.Contains(t, err.Error(), "10.0.0.1")
}
