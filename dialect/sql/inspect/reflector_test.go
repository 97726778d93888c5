package inspect

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/dbrest"
	"github.com/syssam/dbrest/dialect"
	"github.com/syssam/dbrest/dialect/sql"
	"github.com/syssam/dbrest/schema"
	"github.com/syssam/dbrest/schema/field"
)

var columnsHeader = []string{"COLUMN_NAME", "IS_NULLABLE", "DATA_TYPE", "CHARACTER_MAXIMUM_LENGTH", "NUMERIC_PRECISION", "NUMERIC_SCALE", "COLUMN_TYPE"}

func mockDriver(t *testing.T, name string) (*sql.Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sql.OpenDB(name, db), mock
}

func expectQuery(mock sqlmock.Sqlmock, query string) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(regexp.QuoteMeta(query))
}

func expectSQLiteListing(mock sqlmock.Sqlmock) {
	expectQuery(mock, sql.SQLite().TablesQuery()).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "TABLE_TYPE"}).
			AddRow("customers", "table").
			AddRow("order_view", "view").
			AddRow("orders", "table").
			AddRow("sqlite_sequence", "table"))
}

func expectSQLiteOrders(mock sqlmock.Sqlmock) {
	d := sql.SQLite()
	expectQuery(mock, d.ColumnsQuery()).WithArgs("orders").
		WillReturnRows(sqlmock.NewRows(columnsHeader).
			AddRow("id", "FALSE", "integer", nil, nil, nil, "integer").
			AddRow("customer_id", "FALSE", "integer", nil, nil, nil, "integer").
			AddRow("total", "TRUE", "decimal(10,2)", nil, nil, nil, "decimal(10,2)").
			AddRow("note", "TRUE", "varchar(40)", nil, nil, nil, "varchar(40)").
			AddRow("extra", "TRUE", "jsonb_thing", nil, nil, nil, "jsonb_thing"))
	expectQuery(mock, d.PrimaryKeysQuery()).WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}).AddRow("id"))
	expectQuery(mock, d.ForeignKeysQuery()).WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "REFERENCED_TABLE_NAME"}).AddRow("customer_id", "customers"))
}

func TestReflectorDatabase(t *testing.T) {
	drv, mock := mockDriver(t, dialect.SQLite)
	r, err := NewReflector(drv)
	require.NoError(t, err)
	expectSQLiteListing(mock)

	db, err := r.Database(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"customers", "order_view", "orders"}, db.TableNames())
	ref, ok := db.Lookup("order_view")
	require.True(t, ok)
	assert.Equal(t, schema.KindView, ref.Kind)

	ok, err = r.HasTable(context.Background(), "orders")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.HasTable(context.Background(), "sqlite_sequence")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReflectorTable(t *testing.T) {
	drv, mock := mockDriver(t, dialect.SQLite)
	r, err := NewReflector(drv)
	require.NoError(t, err)
	expectSQLiteListing(mock)
	expectSQLiteOrders(mock)

	ctx := context.Background()
	orders, err := r.Table(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "customer_id", "total", "note", "extra"}, orders.ColumnNames())
	require.NotNil(t, orders.PrimaryKey())
	assert.Equal(t, "id", orders.PrimaryKey().Name)
	assert.Equal(t, map[string]string{"customer_id": "customers"}, orders.ForeignKeys())

	total, _ := orders.Column("total")
	assert.Equal(t, field.TypeDecimal, total.Type)
	assert.Equal(t, 10, total.Precision)
	assert.Equal(t, 2, total.Scale)
	assert.True(t, total.Nullable)
	note, _ := orders.Column("note")
	assert.Equal(t, field.TypeVarchar, note.Type)
	assert.Equal(t, 40, note.Length)
	extra, _ := orders.Column("extra")
	assert.Equal(t, field.TypeClob, extra.Type, "unknown types degrade to clob")
	id, _ := orders.Column("id")
	assert.False(t, id.Nullable)

	// Served from the cache, the mock would fail on a second reflection.
	again, err := r.Table(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, orders.ColumnNames(), again.ColumnNames())
	again.Columns[0].Name = "changed"
	third, err := r.Table(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, "id", third.Columns[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReflectorTableNotFound(t *testing.T) {
	drv, mock := mockDriver(t, dialect.SQLite)
	r, err := NewReflector(drv)
	require.NoError(t, err)
	expectSQLiteListing(mock)

	_, err = r.Table(context.Background(), "missing")
	require.True(t, dbrest.IsTableNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReflectorRefresh(t *testing.T) {
	drv, mock := mockDriver(t, dialect.SQLite)
	r, err := NewReflector(drv, WithCache(dbrest.NewMemoryCache(), time.Minute), WithPrefix("test:"))
	require.NoError(t, err)
	ctx := context.Background()
	expectSQLiteListing(mock)
	expectSQLiteOrders(mock)
	_, err = r.Table(ctx, "orders")
	require.NoError(t, err)

	// The listing stays cached.
	expectSQLiteOrders(mock)
	require.NoError(t, r.RefreshTable(ctx, "orders"))
	require.NoError(t, mock.ExpectationsWereMet())

	expectSQLiteListing(mock)
	require.NoError(t, r.RefreshAll(ctx))
	expectSQLiteOrders(mock)
	_, err = r.Table(ctx, "orders")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReflectorView(t *testing.T) {
	drv, mock := mockDriver(t, dialect.SQLite)
	r, err := NewReflector(drv)
	require.NoError(t, err)
	expectSQLiteListing(mock)
	expectQuery(mock, sql.SQLite().ColumnsQuery()).WithArgs("order_view").
		WillReturnRows(sqlmock.NewRows(columnsHeader).
			AddRow("id", "FALSE", "integer", nil, nil, nil, "integer").
			AddRow("customer_id", "FALSE", "integer", nil, nil, nil, "integer").
			AddRow("amount", "FALSE", "double", nil, nil, nil, "double"))

	v, err := r.Table(context.Background(), "order_view")
	require.NoError(t, err)
	assert.True(t, v.IsView())
	for _, c := range v.Columns {
		assert.True(t, c.Nullable, c.Name)
	}
	require.NotNil(t, v.PrimaryKey())
	assert.Equal(t, "id", v.PrimaryKey().Name)
	assert.Equal(t, map[string]string{"customer_id": "customers"}, v.ForeignKeys())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReflectorViewWithoutInference(t *testing.T) {
	drv, mock := mockDriver(t, dialect.SQLite)
	r, err := NewReflector(drv, WithoutInference())
	require.NoError(t, err)
	expectSQLiteListing(mock)
	expectQuery(mock, sql.SQLite().ColumnsQuery()).WithArgs("order_view").
		WillReturnRows(sqlmock.NewRows(columnsHeader).
			AddRow("customer_id", "FALSE", "integer", nil, nil, nil, "integer"))

	v, err := r.Table(context.Background(), "order_view")
	require.NoError(t, err)
	assert.Empty(t, v.ForeignKeys())
	assert.Nil(t, v.PrimaryKey())
}

func TestReflectorAllowlist(t *testing.T) {
	drv, mock := mockDriver(t, dialect.SQLite)
	r, err := NewReflector(drv, WithTables("orders"))
	require.NoError(t, err)
	expectSQLiteListing(mock)

	tables, err := r.Database(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, tables.TableNames())
	_, err = r.Table(context.Background(), "customers")
	require.True(t, dbrest.IsTableNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())

	r, err = NewReflector(drv, WithTables("orders", "all"))
	require.NoError(t, err)
	assert.Nil(t, r.allow)
}

func TestReflectorMapping(t *testing.T) {
	m, err := ParseMapping([]string{"wp_orders=orders", "wp_orders.ID=orders.id"})
	require.NoError(t, err)
	drv, mock := mockDriver(t, dialect.MySQL)
	r, err := NewReflector(drv, WithMapping(m))
	require.NoError(t, err)
	d := sql.MySQL()
	expectQuery(mock, d.TablesQuery()).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "TABLE_TYPE"}).
			AddRow("wp_orders", "BASE TABLE").
			AddRow("wp_log", "SYSTEM VIEW"))
	expectQuery(mock, d.ColumnsQuery()).WithArgs("wp_orders").
		WillReturnRows(sqlmock.NewRows(columnsHeader).
			AddRow("ID", "NO", "bigint", nil, int64(19), int64(0), "bigint(20) unsigned").
			AddRow("title", "YES", "varchar", int64(100), nil, nil, "varchar(100)").
			AddRow("active", "NO", "tinyint", nil, int64(3), int64(0), "tinyint(1)"))
	expectQuery(mock, d.PrimaryKeysQuery()).WithArgs("wp_orders").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}).AddRow("ID"))
	expectQuery(mock, d.ForeignKeysQuery()).WithArgs("wp_orders").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "REFERENCED_TABLE_NAME"}))

	orders, err := r.Table(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, "wp_orders", orders.RealName)
	id, ok := orders.Column("id")
	require.True(t, ok)
	assert.Equal(t, "ID", id.RealName)
	assert.True(t, id.PK)
	assert.Equal(t, field.TypeBigInt, id.Type)
	title, _ := orders.Column("title")
	assert.Equal(t, 100, title.Length)
	assert.True(t, title.Nullable)
	active, _ := orders.Column("active")
	assert.Equal(t, field.TypeBoolean, active.Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReflectorCompositeKey(t *testing.T) {
	drv, mock := mockDriver(t, dialect.SQLite)
	r, err := NewReflector(drv)
	require.NoError(t, err)
	d := sql.SQLite()
	expectQuery(mock, d.TablesQuery()).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "TABLE_TYPE"}).AddRow("links", "table"))
	expectQuery(mock, d.ColumnsQuery()).WithArgs("links").
		WillReturnRows(sqlmock.NewRows(columnsHeader).
			AddRow("a_id", "FALSE", "integer", nil, nil, nil, "integer").
			AddRow("b_id", "FALSE", "integer", nil, nil, nil, "integer"))
	expectQuery(mock, d.PrimaryKeysQuery()).WithArgs("links").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}).AddRow("a_id").AddRow("b_id"))
	expectQuery(mock, d.ForeignKeysQuery()).WithArgs("links").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "REFERENCED_TABLE_NAME"}))

	links, err := r.Table(context.Background(), "links")
	require.NoError(t, err)
	assert.Nil(t, links.PrimaryKey())
}

func TestReflectorDiscardsCorruptEntries(t *testing.T) {
	drv, mock := mockDriver(t, dialect.SQLite)
	c := dbrest.NewMemoryCache()
	r, err := NewReflector(drv, WithCache(c, time.Minute))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, r.key(KindDatabase, ""), []byte("garbage"), 0))
	expectSQLiteListing(mock)

	db, err := r.Database(ctx)
	require.NoError(t, err)
	assert.Len(t, db.Tables, 3)
	b, err := c.Get(ctx, r.key(KindDatabase, ""))
	require.NoError(t, err)
	_, err = schema.DecodeDatabase(b)
	require.NoError(t, err)
}
