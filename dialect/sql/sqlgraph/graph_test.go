package sqlgraph

import (
	"context"
	"sort"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/dbrest"
	"github.com/syssam/dbrest/dialect"
	"github.com/syssam/dbrest/dialect/sql"
	"github.com/syssam/dbrest/schema"
	"github.com/syssam/dbrest/schema/field"
)

type staticTables map[string]*schema.Table

func (s staticTables) Table(_ context.Context, name string) (*schema.Table, error) {
	t, ok := s[name]
	if !ok {
		return nil, dbrest.NewTableNotFoundError(name)
	}
	return t, nil
}

func (s staticTables) Tables(context.Context) ([]*schema.Table, error) {
	all := make([]*schema.Table, 0, len(s))
	for _, t := range s {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

func shopTables() staticTables {
	tables := []*schema.Table{
		customersTable(),
		ordersTable(),
		schema.NewTable("items", schema.KindTable,
			schema.NewColumn("id", field.TypeInteger, schema.PrimaryKey()),
			schema.NewColumn("order_id", field.TypeInteger, schema.References("orders")),
			schema.NewColumn("name", field.TypeVarchar, schema.Length(50)),
		),
		schema.NewTable("tags", schema.KindTable,
			schema.NewColumn("id", field.TypeInteger, schema.PrimaryKey()),
			schema.NewColumn("name", field.TypeVarchar, schema.Length(50)),
		),
		schema.NewTable("order_tags", schema.KindTable,
			schema.NewColumn("order_id", field.TypeInteger, schema.References("orders")),
			schema.NewColumn("tag_id", field.TypeInteger, schema.References("tags")),
		),
	}
	s := make(staticTables, len(tables))
	for _, t := range tables {
		s[t.Name] = t
	}
	return s
}

func mockJoiner(t *testing.T, tables Tables, opts ...JoinOption) (*Joiner, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	drv := sql.OpenDB(dialect.MySQL, db)
	return NewJoiner(drv, sql.NewBuilder(sql.MustDialect(dialect.MySQL)), tables, opts...), mock
}

func TestRelate(t *testing.T) {
	tables := shopTables()
	j := NewJoiner(nil, nil, tables)
	ctx := context.Background()
	tests := []struct {
		parent, child string
		rel           Rel
		column        string
	}{
		{"orders", "customers", BelongsTo, "customer_id"},
		{"customers", "orders", HasMany, "customer_id"},
		{"orders", "items", HasMany, "order_id"},
		{"orders", "tags", HABTM, ""},
		{"tags", "orders", HABTM, ""},
		{"customers", "tags", Unrelated, ""},
		{"order_tags", "tags", BelongsTo, "tag_id"},
	}
	for _, tt := range tests {
		t.Run(tt.parent+"/"+tt.child, func(t *testing.T) {
			r, err := j.Relate(ctx, tables[tt.parent], tables[tt.child])
			require.NoError(t, err)
			assert.Equal(t, tt.rel, r.Rel)
			switch tt.rel {
			case BelongsTo, HasMany:
				assert.Equal(t, tt.column, r.Column.Name)
			case HABTM:
				assert.Equal(t, "order_tags", r.Link.Name)
				assert.Equal(t, tt.parent, r.LinkParent.FK)
				assert.Equal(t, tt.child, r.LinkChild.FK)
			}
		})
	}
	assert.Equal(t, "has-and-belongs-to-many", HABTM.String())
	assert.Equal(t, "unrelated", Unrelated.String())
}

func TestPlan(t *testing.T) {
	j := NewJoiner(nil, nil, shopTables(), WithLimits(Limits{Depth: 2, Tables: 2}))
	tree := j.Plan([]string{"customers, orders,items", "tags", "customers,addresses", ""})
	assert.Equal(t, []string{"customers"}, tree.Keys())
	assert.Equal(t, []string{"orders"}, tree.Child("customers").Keys())
	assert.Empty(t, tree.Child("customers").Child("orders").Keys())

	tree = NewJoiner(nil, nil, shopTables()).Plan([]string{"customers", "items,tags", "items"})
	assert.Equal(t, []string{"customers", "items"}, tree.Keys())
	assert.Equal(t, []string{"tags"}, tree.Child("items").Keys())
}

func TestJoin(t *testing.T) {
	tables := shopTables()
	j, mock := mockJoiner(t, tables)
	ctx := context.Background()
	orders := tables["orders"]
	records := []Record{
		{"id": int64(1), "customer_id": int64(10), "total": "5.00"},
		{"id": int64(2), "customer_id": int64(10), "total": "7.50"},
		{"id": int64(3), "customer_id": nil, "total": "1.00"},
	}
	tree := j.Plan([]string{"customers", "items", "tags", "ghosts"})
	in := NewIncluder(nil, nil)
	require.NoError(t, j.AddMandatory(ctx, orders, tree, in))

	mock.ExpectQuery("SELECT `id`, `name` FROM `customers` WHERE `id` IN (?)").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(10), "ann"))
	mock.ExpectQuery("SELECT `id`, `order_id`, `name` FROM `items` WHERE `order_id` IN (?, ?, ?)").
		WithArgs(1, 2, 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "name"}).
			AddRow(int64(100), int64(1), "pen").
			AddRow(int64(101), int64(1), "ink"))
	mock.ExpectQuery("SELECT `order_id`, `tag_id` FROM `order_tags` WHERE `order_id` IN (?, ?, ?)").
		WithArgs(1, 2, 3).
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "tag_id"}).
			AddRow(int64(1), int64(7)).
			AddRow(int64(2), int64(7)).
			AddRow(int64(2), int64(8)))
	mock.ExpectQuery("SELECT `id`, `name` FROM `tags` WHERE `id` IN (?, ?)").
		WithArgs(7, 8).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(7), "red").
			AddRow(int64(8), "blue"))
	require.NoError(t, j.Join(ctx, orders, records, tree, in))

	ann := Record{"id": int64(10), "name": "ann"}
	red, blue := Record{"id": int64(7), "name": "red"}, Record{"id": int64(8), "name": "blue"}
	assert.Equal(t, []Record{
		{
			"id": int64(1), "customer_id": ann, "total": "5.00",
			"items": []Record{
				{"id": int64(100), "order_id": int64(1), "name": "pen"},
				{"id": int64(101), "order_id": int64(1), "name": "ink"},
			},
			"tags": []Record{red},
		},
		{"id": int64(2), "customer_id": ann, "total": "7.50", "items": []Record{}, "tags": []Record{red, blue}},
		{"id": int64(3), "customer_id": nil, "total": "1.00", "items": []Record{}, "tags": []Record{}},
	}, records)
}

func TestJoinNested(t *testing.T) {
	tables := shopTables()
	j, mock := mockJoiner(t, tables)
	ctx := context.Background()
	customers := tables["customers"]
	records := []Record{{"id": int64(10), "name": "ann"}}
	tree := j.Plan([]string{"orders,items"})
	in := NewIncluder([]string{"name", "orders.total", "items.name"}, nil)
	require.NoError(t, j.AddMandatory(ctx, customers, tree, in))

	mock.ExpectQuery("SELECT `id`, `customer_id`, `total` FROM `orders` WHERE `customer_id` IN (?)").
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "total"}).
			AddRow(int64(1), int64(10), "5.00"))
	mock.ExpectQuery("SELECT `order_id`, `name` FROM `items` WHERE `order_id` IN (?)").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "name"}).AddRow(int64(1), "pen"))
	require.NoError(t, j.Join(ctx, customers, records, tree, in))

	assert.Equal(t, []Record{{
		"name": "ann",
		"orders": []Record{{
			"total": "5.00",
			"items": []Record{{"name": "pen"}},
		}},
	}}, records)
}

func TestJoinStripsKeys(t *testing.T) {
	tables := shopTables()
	j, mock := mockJoiner(t, tables)
	ctx := context.Background()
	orders := tables["orders"]
	in := NewIncluder([]string{"total", "customers.name"}, nil)
	tree := j.Plan([]string{"customers"})
	require.NoError(t, j.AddMandatory(ctx, orders, tree, in))
	assert.Equal(t, []string{"customer_id", "total"}, in.Columns(orders, true))

	records := []Record{
		{"customer_id": int64(10), "total": "5.00"},
		{"customer_id": int64(11), "total": "1.00"},
	}
	mock.ExpectQuery("SELECT `id`, `name` FROM `customers` WHERE `id` IN (?, ?)").
		WithArgs(10, 11).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(10), "ann"))
	require.NoError(t, j.Join(ctx, orders, records, tree, in))
	assert.Equal(t, []Record{
		{"customer_id": Record{"name": "ann"}, "total": "5.00"},
		{"total": "1.00"},
	}, records)
}

func TestJoinParallel(t *testing.T) {
	tables := shopTables()
	j, mock := mockJoiner(t, tables, WithParallelJoins(), WithLimits(Limits{Records: 50}))
	mock.MatchExpectationsInOrder(false)
	ctx := context.Background()
	orders := tables["orders"]
	records := []Record{{"id": int64(1), "customer_id": int64(10), "total": "5.00"}}
	tree := j.Plan([]string{"customers", "items"})
	in := NewIncluder(nil, nil)
	require.NoError(t, j.AddMandatory(ctx, orders, tree, in))

	mock.ExpectQuery("SELECT `id`, `name` FROM `customers` WHERE `id` IN (?) LIMIT 0, 50").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(10), "ann"))
	mock.ExpectQuery("SELECT `id`, `order_id`, `name` FROM `items` WHERE `order_id` IN (?) LIMIT 0, 50").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "name"}).AddRow(int64(100), int64(1), "pen"))
	require.NoError(t, j.Join(ctx, orders, records, tree, in))
	assert.Equal(t, Record{"id": int64(10), "name": "ann"}, records[0]["customer_id"])
	assert.Len(t, records[0]["items"], 1)
}

func TestJoinSkipsUnknown(t *testing.T) {
	tables := shopTables()
	j, _ := mockJoiner(t, tables)
	ctx := context.Background()
	records := []Record{{"id": int64(10), "name": "ann"}}
	tree := j.Plan([]string{"ghosts", "tags"})
	in := NewIncluder(nil, nil)
	require.NoError(t, j.AddMandatory(ctx, tables["customers"], tree, in))
	require.NoError(t, j.Join(ctx, tables["customers"], records, tree, in))
	assert.Equal(t, []Record{{"id": int64(10), "name": "ann"}}, records)

	require.NoError(t, j.Join(ctx, tables["customers"], nil, tree, in))
}
