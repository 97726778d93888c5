package sqlgraph

import (
	"context"
	"fmt"
	"slices"

	"github.com/syssam/dbrest"
	"github.com/syssam/dbrest/dialect"
	"github.com/syssam/dbrest/dialect/sql"
	"github.com/syssam/dbrest/privacy"
	"github.com/syssam/dbrest/querylanguage"
	"github.com/syssam/dbrest/schema"
)

// Record is one row keyed by logical column name.
type Record = map[string]any

// Store runs the record operations of one table. Every statement is
// narrowed by the row condition the context carries for the table
// (see privacy.WithCondition).
type Store struct {
	eq    dialect.ExecQuerier
	b     *sql.Builder
	table *schema.Table
	debug bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithDebug exposes driver error detail in database errors.
func WithDebug(debug bool) StoreOption {
	return func(s *Store) {
		s.debug = debug
	}
}

// NewStore returns the store of t running its statements on eq.
func NewStore(eq dialect.ExecQuerier, b *sql.Builder, t *schema.Table, opts ...StoreOption) *Store {
	s := &Store{eq: eq, b: b, table: t}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Table returns the table of the store.
func (s *Store) Table() *schema.Table { return s.table }

// With returns a copy of the store running its statements on eq,
// typically a transaction.
func (s *Store) With(eq dialect.ExecQuerier) *Store {
	c := *s
	c.eq = eq
	return &c
}

// Create inserts values and returns the primary key of the new record:
// the supplied one, the one the statement returns, or the one generated by
// the database. Tables without primary key yield a nil key.
func (s *Store) Create(ctx context.Context, values Record) (any, error) {
	const op = "create"
	if err := s.writable(op); err != nil {
		return nil, err
	}
	query, args, returning, err := s.b.Insert(s.table, values)
	if err != nil {
		return nil, s.classify(op, err)
	}
	pk := s.table.PrimaryKey()
	if returning {
		rows, err := sql.QueryMaps(ctx, s.eq, query, args)
		if err != nil {
			return nil, s.classify(op, err)
		}
		if len(rows) == 0 {
			return nil, s.classify(op, fmt.Errorf("sqlgraph: insert into %q returned no key", s.table.Name))
		}
		return s.b.ConvertOutput(pk, first(rows[0])), nil
	}
	if pk == nil {
		return nil, s.classify(op, s.eq.Exec(ctx, query, args, nil))
	}
	if id, ok := values[pk.Name]; ok {
		return id, s.classify(op, s.eq.Exec(ctx, query, args, nil))
	}
	var res sql.Result
	if err := s.eq.Exec(ctx, query, args, &res); err != nil {
		return nil, s.classify(op, err)
	}
	if id, err := res.LastInsertId(); err == nil && id != 0 {
		return id, nil
	}
	rows, err := sql.QueryMaps(ctx, s.eq, s.b.LastInsertID(), []any{})
	if err != nil {
		return nil, s.classify(op, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return s.b.ConvertOutput(pk, first(rows[0])), nil
}

// ReadOne returns the record with the given primary key. columns limits
// the returned columns, all when empty.
func (s *Store) ReadOne(ctx context.Context, columns []string, id any) (Record, error) {
	const op = "read"
	pk, err := s.primaryKey(op)
	if err != nil {
		return nil, err
	}
	records, err := s.List(ctx, columns, querylanguage.Column(pk, querylanguage.OpEQ, id), nil, 0, -1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, dbrest.NewRecordNotFoundError(s.table.Name, id)
	}
	return records[0], nil
}

// ReadMany returns the records with the given primary keys in the order of
// ids. Missing records are nil entries.
func (s *Store) ReadMany(ctx context.Context, columns []string, ids []any) ([]Record, error) {
	const op = "read"
	pk, err := s.primaryKey(op)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}
	strip := len(columns) > 0 && !slices.Contains(columns, pk.Name)
	if strip {
		columns = append(slices.Clip(columns), pk.Name)
	}
	records, err := s.List(ctx, columns, querylanguage.In(pk, ids...), nil, 0, -1)
	if err != nil {
		return nil, err
	}
	ordered := OrderByKeys(keys(ids), records, ColumnKey(pk.Name))
	if strip {
		for _, r := range ordered {
			delete(r, pk.Name)
		}
	}
	return ordered, nil
}

// List returns the records matching cond. A negative limit returns all
// of them and a zero limit returns none without querying.
func (s *Store) List(ctx context.Context, columns []string, cond querylanguage.Condition, order []sql.Order, offset, limit int) ([]Record, error) {
	const op = "list"
	if limit == 0 {
		return []Record{}, nil
	}
	query, args, err := s.b.Select(s.table, columns, s.where(ctx, cond), order, offset, limit)
	if err != nil {
		return nil, s.classify(op, err)
	}
	rows, err := sql.QueryMaps(ctx, s.eq, query, args)
	if err != nil {
		return nil, s.classify(op, err)
	}
	records := make([]Record, len(rows))
	for i, row := range rows {
		records[i] = s.convert(row)
	}
	return records, nil
}

// Count returns the number of records matching cond.
func (s *Store) Count(ctx context.Context, cond querylanguage.Condition) (int, error) {
	const op = "count"
	query, args, err := s.b.Count(s.table, s.where(ctx, cond))
	if err != nil {
		return 0, s.classify(op, err)
	}
	rows, err := sql.QueryMaps(ctx, s.eq, query, args)
	if err != nil {
		return 0, s.classify(op, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return sql.Int(first(rows[0])), nil
}

// Update sets values on the record with the given primary key and returns
// the number of affected rows.
func (s *Store) Update(ctx context.Context, id any, values Record) (int64, error) {
	return s.set(ctx, "update", id, values, s.b.Update)
}

// Increment adds values to the numeric columns of the record with the
// given primary key and returns the number of affected rows.
func (s *Store) Increment(ctx context.Context, id any, values Record) (int64, error) {
	return s.set(ctx, "increment", id, values, s.b.Increment)
}

// Delete removes the record with the given primary key and returns the
// number of affected rows.
func (s *Store) Delete(ctx context.Context, id any) (int64, error) {
	const op = "delete"
	cond, err := s.byKey(op, id)
	if err != nil {
		return 0, err
	}
	query, args, err := s.b.Delete(s.table, s.where(ctx, cond))
	if err != nil {
		return 0, s.classify(op, err)
	}
	return s.exec(ctx, op, query, args)
}

type setFunc func(*schema.Table, map[string]any, querylanguage.Condition) (string, []any, error)

func (s *Store) set(ctx context.Context, op string, id any, values Record, build setFunc) (int64, error) {
	cond, err := s.byKey(op, id)
	if err != nil {
		return 0, err
	}
	query, args, err := build(s.table, values, s.where(ctx, cond))
	if err != nil {
		return 0, s.classify(op, err)
	}
	if query == "" {
		return 0, nil
	}
	return s.exec(ctx, op, query, args)
}

func (s *Store) exec(ctx context.Context, op, query string, args []any) (int64, error) {
	var res sql.Result
	if err := s.eq.Exec(ctx, query, args, &res); err != nil {
		return 0, s.classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.classify(op, err)
	}
	return n, nil
}

func (s *Store) byKey(op string, id any) (querylanguage.Condition, error) {
	if err := s.writable(op); err != nil {
		return nil, err
	}
	pk, err := s.primaryKey(op)
	if err != nil {
		return nil, err
	}
	return querylanguage.Column(pk, querylanguage.OpEQ, id), nil
}

func (s *Store) writable(op string) error {
	if s.table.IsView() {
		return dbrest.NewUnsupportedOperationError(op, s.table.Name)
	}
	return nil
}

func (s *Store) primaryKey(op string) (*schema.Column, error) {
	pk := s.table.PrimaryKey()
	if pk == nil {
		return nil, dbrest.NewUnsupportedOperationError(op, s.table.Name)
	}
	return pk, nil
}

func (s *Store) where(ctx context.Context, cond querylanguage.Condition) querylanguage.Condition {
	return querylanguage.And(cond, privacy.ConditionFor(ctx, s.table.Name))
}

func (s *Store) convert(row map[string]any) Record {
	for name, v := range row {
		if c, ok := s.table.Column(name); ok {
			row[name] = s.b.ConvertOutput(c, v)
		}
	}
	return row
}

func (s *Store) classify(op string, err error) error {
	return Classify(op, s.table.Name, err, s.debug)
}

// first returns the value of a single column row.
func first(row map[string]any) any {
	for _, v := range row {
		return v
	}
	return nil
}
