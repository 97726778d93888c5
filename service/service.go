package service

import (
	"context"
	"log/slog"

	"github.com/syssam/dbrest"
	"github.com/syssam/dbrest/dialect"
	"github.com/syssam/dbrest/dialect/sql"
	"github.com/syssam/dbrest/dialect/sql/inspect"
	"github.com/syssam/dbrest/dialect/sql/sqlgraph"
	"github.com/syssam/dbrest/privacy"
	"github.com/syssam/dbrest/querylanguage"
	"github.com/syssam/dbrest/schema"
)

// DefaultPageSize is the page size of "page=n" requests without size.
const DefaultPageSize = 20

// Record is one row keyed by logical column name.
type Record = sqlgraph.Record

// Service runs record operations on the tables of one database. It is safe
// for concurrent use; request state travels in the context.
type Service struct {
	drv      dialect.Driver
	b        *sql.Builder
	tables   sqlgraph.Tables
	definer  *inspect.Definer
	policy   privacy.Tables
	limits   sqlgraph.Limits
	parallel bool
	pageSize int
	maxPage  int
	debug    bool
	log      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy sets the privacy policies evaluated on every operation.
func WithPolicy(p privacy.Tables) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithJoinLimits bounds the joins of list and read requests.
func WithJoinLimits(l sqlgraph.Limits) Option {
	return func(s *Service) {
		s.limits = l
	}
}

// WithParallelJoins resolves sibling join branches concurrently.
func WithParallelJoins(parallel bool) Option {
	return func(s *Service) {
		s.parallel = parallel
	}
}

// WithPageSize sets the default and maximum page size. A non-positive
// maximum leaves page sizes unbounded.
func WithPageSize(size, maxSize int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
		s.maxPage = maxSize
	}
}

// WithDefiner enables the remodel operations.
func WithDefiner(d *inspect.Definer) Option {
	return func(s *Service) {
		s.definer = d
	}
}

// WithDebug exposes driver error detail in database errors.
func WithDebug(debug bool) Option {
	return func(s *Service) {
		s.debug = debug
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

// New returns a Service running its statements on drv and looking up
// tables in tables, usually an inspect.Reflector.
func New(drv dialect.Driver, tables sqlgraph.Tables, opts ...Option) (*Service, error) {
	d, err := sql.Dialect(drv.Dialect())
	if err != nil {
		return nil, err
	}
	s := &Service{
		drv:      drv,
		b:        sql.NewBuilder(d),
		tables:   tables,
		pageSize: DefaultPageSize,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Table returns the named table.
func (s *Service) Table(ctx context.Context, name string) (*schema.Table, error) {
	return s.tables.Table(ctx, name)
}

// Tables returns every reflected table.
func (s *Service) Tables(ctx context.Context) ([]*schema.Table, error) {
	return s.tables.Tables(ctx)
}

// ListResult is one page of records.
type ListResult struct {
	Records []Record `json:"records"`
	// Total is the number of matching records, -1 when not counted.
	Total int `json:"results"`
}

// List returns the records of table matching the filters of p, ordered,
// paginated and joined as p requests. The total is counted only when p
// selects a page.
func (s *Service) List(ctx context.Context, table string, p Params) (*ListResult, error) {
	t, err := s.tables.Table(ctx, table)
	if err != nil {
		return nil, err
	}
	cond, err := querylanguage.FromFilters(t, p.Filters)
	if err != nil {
		return nil, err
	}
	order, err := Ordering(t, p)
	if err != nil {
		return nil, err
	}
	joiner := s.joiner(ctx)
	tree := joiner.Plan(p.Join)
	if ctx, err = s.authorize(ctx, t, tree); err != nil {
		return nil, err
	}
	in := sqlgraph.NewIncluder(p.Include, p.Exclude)
	if err := joiner.AddMandatory(ctx, t, tree, in); err != nil {
		return nil, err
	}
	page := Paginate(p, s.pageSize, s.maxPage)
	store := s.store(ctx, t)
	result := &ListResult{Total: -1}
	if page.Count {
		if result.Total, err = store.Count(ctx, cond); err != nil {
			return nil, err
		}
	}
	records, err := store.List(ctx, in.Columns(t, true), cond, order, page.Offset, page.Limit)
	if err != nil {
		return nil, err
	}
	if err := joiner.Join(ctx, t, records, tree, in); err != nil {
		return nil, err
	}
	result.Records = records
	return result, nil
}

// Read returns the record of table with the given primary key, joined as
// p requests. Filters, ordering and pagination of p do not apply.
func (s *Service) Read(ctx context.Context, table string, id any, p Params) (Record, error) {
	records, err := s.ReadMany(ctx, table, []any{id}, p)
	if err != nil {
		return nil, err
	}
	return records[0], nil
}

// ReadMany returns the records of table with the given primary keys, in
// the order of ids. A missing record fails the whole read.
func (s *Service) ReadMany(ctx context.Context, table string, ids []any, p Params) ([]Record, error) {
	t, err := s.tables.Table(ctx, table)
	if err != nil {
		return nil, err
	}
	joiner := s.joiner(ctx)
	tree := joiner.Plan(p.Join)
	if ctx, err = s.authorize(ctx, t, tree); err != nil {
		return nil, err
	}
	in := sqlgraph.NewIncluder(p.Include, p.Exclude)
	if err := joiner.AddMandatory(ctx, t, tree, in); err != nil {
		return nil, err
	}
	records, err := s.store(ctx, t).ReadMany(ctx, in.Columns(t, true), ids)
	if err != nil {
		return nil, err
	}
	for i, r := range records {
		if r == nil {
			return nil, dbrest.NewRecordNotFoundError(t.Name, ids[i])
		}
	}
	if err := joiner.Join(ctx, t, records, tree, in); err != nil {
		return nil, err
	}
	return records, nil
}

// Create inserts record into table and returns its primary key.
func (s *Service) Create(ctx context.Context, table string, record Record) (any, error) {
	t, err := s.tables.Table(ctx, table)
	if err != nil {
		return nil, err
	}
	values := Sanitize(t, record, true)
	if ctx, err = s.authorizeMutation(ctx, t, privacy.OpCreate, values); err != nil {
		return nil, err
	}
	return s.store(ctx, t).Create(ctx, values)
}

// CreateMany inserts records into table in one transaction and returns
// their primary keys.
func (s *Service) CreateMany(ctx context.Context, table string, records []Record) ([]any, error) {
	ids := make([]any, len(records))
	err := s.WithTx(ctx, func(ctx context.Context) (err error) {
		for i, r := range records {
			if ids[i], err = s.Create(ctx, table, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Update sets the values of record on the record of table with the given
// primary key and returns the number of affected rows. The primary key of
// a record is never updated.
func (s *Service) Update(ctx context.Context, table string, id any, record Record) (int64, error) {
	return s.mutate(ctx, table, privacy.OpUpdate, id, record)
}

// UpdateMany updates the record of each id with the record at the same
// position, in one transaction.
func (s *Service) UpdateMany(ctx context.Context, table string, ids []any, records []Record) ([]int64, error) {
	return s.mutateMany(ctx, table, privacy.OpUpdate, ids, records)
}

// Increment adds the numeric values of record to the record of table with
// the given primary key and returns the number of affected rows.
func (s *Service) Increment(ctx context.Context, table string, id any, record Record) (int64, error) {
	return s.mutate(ctx, table, privacy.OpIncrement, id, record)
}

// IncrementMany increments the record of each id by the record at the same
// position, in one transaction.
func (s *Service) IncrementMany(ctx context.Context, table string, ids []any, records []Record) ([]int64, error) {
	return s.mutateMany(ctx, table, privacy.OpIncrement, ids, records)
}

// Delete deletes the record of table with the given primary key and
// returns the number of affected rows.
func (s *Service) Delete(ctx context.Context, table string, id any) (int64, error) {
	return s.mutate(ctx, table, privacy.OpDelete, id, nil)
}

// DeleteMany deletes the records of table with the given primary keys in
// one transaction.
func (s *Service) DeleteMany(ctx context.Context, table string, ids []any) ([]int64, error) {
	return s.mutateMany(ctx, table, privacy.OpDelete, ids, nil)
}

func (s *Service) mutate(ctx context.Context, table string, op privacy.Op, id any, record Record) (int64, error) {
	t, err := s.tables.Table(ctx, table)
	if err != nil {
		return 0, err
	}
	var values Record
	if op != privacy.OpDelete {
		values = Sanitize(t, record, false)
	}
	if ctx, err = s.authorizeMutation(ctx, t, op, values); err != nil {
		return 0, err
	}
	store := s.store(ctx, t)
	switch op {
	case privacy.OpUpdate:
		return store.Update(ctx, id, values)
	case privacy.OpIncrement:
		return store.Increment(ctx, id, values)
	default:
		return store.Delete(ctx, id)
	}
}

// mutateMany runs one mutation per id in a transaction. records is nil for
// deletes.
func (s *Service) mutateMany(ctx context.Context, table string, op privacy.Op, ids []any, records []Record) ([]int64, error) {
	if op != privacy.OpDelete && len(ids) != len(records) {
		return nil, dbrest.NewArgumentCountMismatchError(len(ids), len(records))
	}
	affected := make([]int64, len(ids))
	err := s.WithTx(ctx, func(ctx context.Context) (err error) {
		for i, id := range ids {
			var r Record
			if records != nil {
				r = records[i]
			}
			if affected[i], err = s.mutate(ctx, table, op, id, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return affected, nil
}

// authorize evaluates the query policies of t and of every joined table
// and returns a context carrying the row conditions they add.
func (s *Service) authorize(ctx context.Context, t *schema.Table, tree *sqlgraph.JoinTree) (context.Context, error) {
	if s.policy == nil {
		return ctx, nil
	}
	ctx, err := privacy.Apply(ctx, s.policy, privacy.NewQuery(t))
	if err != nil {
		return ctx, err
	}
	seen := map[string]struct{}{t.Name: {}}
	var walkErr error
	tree.Walk(func(path []string, _ *sqlgraph.JoinTree) {
		if walkErr != nil || len(path) == 0 {
			return
		}
		name := path[len(path)-1]
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		joined, err := s.tables.Table(ctx, name)
		if dbrest.IsTableNotFound(err) {
			return
		}
		if err != nil {
			walkErr = err
			return
		}
		ctx, walkErr = privacy.Apply(ctx, s.policy, privacy.NewQuery(joined))
	})
	return ctx, walkErr
}

// authorizeMutation evaluates the mutation policies of t. Rules may set
// fields of values and add row conditions.
func (s *Service) authorizeMutation(ctx context.Context, t *schema.Table, op privacy.Op, values Record) (context.Context, error) {
	if s.policy == nil {
		return ctx, nil
	}
	return privacy.ApplyMutation(ctx, s.policy, privacy.NewMutation(t, op, values))
}

func (s *Service) store(ctx context.Context, t *schema.Table) *sqlgraph.Store {
	return sqlgraph.NewStore(s.querier(ctx), s.b, t, sqlgraph.WithDebug(s.debug))
}

func (s *Service) joiner(ctx context.Context) *sqlgraph.Joiner {
	opts := []sqlgraph.JoinOption{
		sqlgraph.WithLimits(s.limits),
		sqlgraph.WithJoinDebug(s.debug),
		sqlgraph.WithJoinLogger(s.log),
	}
	// Statements of one transaction share a connection.
	if s.parallel && TxID(ctx) == "" {
		opts = append(opts, sqlgraph.WithParallelJoins())
	}
	return sqlgraph.NewJoiner(s.querier(ctx), s.b, s.tables, opts...)
}

func (s *Service) classify(op, table string, err error) error {
	return sqlgraph.Classify(op, table, err, s.debug)
}
