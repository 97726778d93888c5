package sqlgraph

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/dbrest"
	"github.com/syssam/dbrest/dialect"
	"github.com/syssam/dbrest/dialect/sql"
	"github.com/syssam/dbrest/privacy"
	"github.com/syssam/dbrest/querylanguage"
	"github.com/syssam/dbrest/schema"
	"github.com/syssam/dbrest/schema/field"
)

func customersTable() *schema.Table {
	return schema.NewTable("customers", schema.KindTable,
		schema.NewColumn("id", field.TypeInteger, schema.PrimaryKey()),
		schema.NewColumn("name", field.TypeVarchar, schema.Length(100)),
	)
}

func ordersTable() *schema.Table {
	return schema.NewTable("orders", schema.KindTable,
		schema.NewColumn("id", field.TypeInteger, schema.PrimaryKey()),
		schema.NewColumn("customer_id", field.TypeInteger, schema.References("customers")),
		schema.NewColumn("total", field.TypeDecimal, schema.Precision(10, 2)),
	)
}

func mockStore(t *testing.T, name string, table *schema.Table) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	drv := sql.OpenDB(name, db)
	return NewStore(drv, sql.NewBuilder(sql.MustDialect(name)), table), mock
}

func TestStoreCreate(t *testing.T) {
	t.Run("LastInsertId", func(t *testing.T) {
		s, mock := mockStore(t, dialect.MySQL, customersTable())
		mock.ExpectExec("INSERT INTO `customers` (`name`) VALUES (?)").
			WithArgs("ann").
			WillReturnResult(sqlmock.NewResult(7, 1))
		id, err := s.Create(context.Background(), Record{"name": "ann", "unknown": 1})
		require.NoError(t, err)
		assert.Equal(t, int64(7), id)
	})

	t.Run("Returning", func(t *testing.T) {
		s, mock := mockStore(t, dialect.Postgres, customersTable())
		mock.ExpectQuery(`INSERT INTO "customers" ("name") VALUES ($1) RETURNING "id"`).
			WithArgs("ann").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("9"))
		id, err := s.Create(context.Background(), Record{"name": "ann"})
		require.NoError(t, err)
		assert.Equal(t, int64(9), id)
	})

	t.Run("SuppliedKey", func(t *testing.T) {
		s, mock := mockStore(t, dialect.Postgres, customersTable())
		mock.ExpectExec(`INSERT INTO "customers" ("id", "name") VALUES ($1, $2)`).
			WithArgs(3, "ann").
			WillReturnResult(sqlmock.NewResult(0, 1))
		id, err := s.Create(context.Background(), Record{"id": 3, "name": "ann"})
		require.NoError(t, err)
		assert.Equal(t, 3, id)
	})

	t.Run("LastInsertIDQuery", func(t *testing.T) {
		s, mock := mockStore(t, dialect.MySQL, customersTable())
		mock.ExpectExec("INSERT INTO `customers` (`name`) VALUES (?)").
			WithArgs("ann").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT LAST_INSERT_ID()").
			WillReturnRows(sqlmock.NewRows([]string{"LAST_INSERT_ID()"}).AddRow(int64(11)))
		id, err := s.Create(context.Background(), Record{"name": "ann"})
		require.NoError(t, err)
		assert.Equal(t, int64(11), id)
	})

	t.Run("DuplicateKey", func(t *testing.T) {
		s, mock := mockStore(t, dialect.MySQL, customersTable())
		mock.ExpectExec("INSERT INTO `customers` (`id`, `name`) VALUES (?, ?)").
			WithArgs(1, "ann").
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1' for key 'PRIMARY'"})
		_, err := s.Create(context.Background(), Record{"id": 1, "name": "ann"})
		require.True(t, dbrest.IsDuplicateKey(err))
	})

	t.Run("View", func(t *testing.T) {
		view := schema.NewTable("customer_view", schema.KindView, schema.NewColumn("id", field.TypeInteger, schema.PrimaryKey()))
		s, _ := mockStore(t, dialect.MySQL, view)
		_, err := s.Create(context.Background(), Record{"id": 1})
		require.True(t, dbrest.IsUnsupportedOperation(err))
		_, err = s.Delete(context.Background(), 1)
		require.True(t, dbrest.IsUnsupportedOperation(err))
	})
}

func TestStoreReadOne(t *testing.T) {
	s, mock := mockStore(t, dialect.MySQL, customersTable())
	mock.ExpectQuery("SELECT `id`, `name` FROM `customers` WHERE `id` = ?").
		WithArgs("1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow([]byte("1"), []byte("ann")))
	r, err := s.ReadOne(context.Background(), nil, "1")
	require.NoError(t, err)
	assert.Equal(t, Record{"id": int64(1), "name": "ann"}, r)

	mock.ExpectQuery("SELECT `name` FROM `customers` WHERE `id` = ?").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	_, err = s.ReadOne(context.Background(), []string{"name"}, 2)
	require.True(t, dbrest.IsRecordNotFound(err))

	_, err = s.ReadOne(context.Background(), []string{"nope"}, 2)
	require.True(t, dbrest.IsColumnNotFound(err))
}

func TestStoreRowCondition(t *testing.T) {
	table := customersTable()
	s, mock := mockStore(t, dialect.MySQL, table)
	name, _ := table.Column("name")
	ctx := privacy.WithCondition(context.Background(), "customers", querylanguage.Column(name, querylanguage.OpEQ, "ann"))
	ctx = privacy.WithCondition(ctx, "orders", querylanguage.Column(name, querylanguage.OpEQ, "ignored"))

	mock.ExpectQuery("SELECT `id`, `name` FROM `customers` WHERE (`id` = ? AND `name` = ?)").
		WithArgs(1, "ann").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	_, err := s.ReadOne(ctx, nil, 1)
	require.True(t, dbrest.IsRecordNotFound(err))

	mock.ExpectExec("UPDATE `customers` SET `name` = ? WHERE (`id` = ? AND `name` = ?)").
		WithArgs("bob", 1, "ann").
		WillReturnResult(sqlmock.NewResult(0, 0))
	n, err := s.Update(ctx, 1, Record{"name": "bob"})
	require.NoError(t, err)
	assert.Zero(t, n)

	mock.ExpectQuery("SELECT COUNT(*) FROM `customers` WHERE `name` = ?").
		WithArgs("ann").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(int64(1)))
	count, err := s.Count(ctx, querylanguage.None)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStoreReadMany(t *testing.T) {
	s, mock := mockStore(t, dialect.MySQL, customersTable())
	mock.ExpectQuery("SELECT `name`, `id` FROM `customers` WHERE `id` IN (?, ?, ?)").
		WithArgs(2, 1, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "ann").
			AddRow(int64(2), "bob"))
	records, err := s.ReadMany(context.Background(), []string{"name"}, []any{2, 1, 5})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Record{"name": "bob"}, records[0])
	assert.Equal(t, Record{"name": "ann"}, records[1])
	assert.Nil(t, records[2])

	records, err = s.ReadMany(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStoreList(t *testing.T) {
	table := ordersTable()
	s, mock := mockStore(t, dialect.SQLite, table)
	total, _ := table.Column("total")

	records, err := s.List(context.Background(), nil, querylanguage.None, nil, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, records)

	mock.ExpectQuery(`SELECT "id", "customer_id", "total" FROM "orders" WHERE "total" > ? ORDER BY "id" DESC LIMIT 2 OFFSET 0`).
		WithArgs("100").
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "total"}).
			AddRow(int64(5), int64(1), float64(150.5)).
			AddRow(int64(4), nil, int64(120)))
	records, err = s.List(context.Background(), nil, querylanguage.Column(total, querylanguage.OpGT, "100"), []sql.Order{sql.Desc("id")}, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{"id": int64(5), "customer_id": int64(1), "total": "150.50"},
		{"id": int64(4), "customer_id": nil, "total": "120.00"},
	}, records)
}

func TestStoreWrites(t *testing.T) {
	s, mock := mockStore(t, dialect.MySQL, ordersTable())
	ctx := context.Background()

	n, err := s.Update(ctx, 1, Record{"unknown": 1})
	require.NoError(t, err)
	assert.Zero(t, n)

	mock.ExpectExec("UPDATE `orders` SET `total` = `total` + ? WHERE `id` = ?").
		WithArgs(5, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	n, err = s.Increment(ctx, 1, Record{"total": 5})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mock.ExpectExec("DELETE FROM `orders` WHERE `id` = ?").
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	n, err = s.Delete(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mock.ExpectExec("UPDATE `orders` SET `customer_id` = ? WHERE `id` = ?").
		WithArgs(99, 1).
		WillReturnError(&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"})
	_, err = s.Update(ctx, 1, Record{"customer_id": 99})
	require.True(t, dbrest.IsDataIntegrity(err))
}

func TestStoreWithoutPrimaryKey(t *testing.T) {
	logs := schema.NewTable("logs", schema.KindTable, schema.NewColumn("line", field.TypeVarchar))
	s, mock := mockStore(t, dialect.SQLite, logs)

	mock.ExpectExec(`INSERT INTO "logs" ("line") VALUES (?)`).
		WithArgs("x").
		WillReturnResult(sqlmock.NewResult(1, 1))
	id, err := s.Create(context.Background(), Record{"line": "x"})
	require.NoError(t, err)
	assert.Nil(t, id)

	_, err = s.ReadOne(context.Background(), nil, 1)
	require.True(t, dbrest.IsUnsupportedOperation(err))
}
