package inspect

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/syssam/dbrest"
	"github.com/syssam/dbrest/dialect"
	"github.com/syssam/dbrest/dialect/sql"
	"github.com/syssam/dbrest/schema"
	"github.com/syssam/dbrest/schema/field"
)

// Cache entry kinds.
const (
	KindTable    = "table"
	KindDatabase = "database"
)

// DefaultTTL is the lifetime of cached schema entries.
const DefaultTTL = 10 * time.Second

// Reflector reads table definitions from the database catalog and caches
// them. Concurrent misses on the same entry run a single reflection.
type Reflector struct {
	drv     dialect.ExecQuerier
	dialect sql.DialectBuilder
	cache   dbrest.Cache
	ttl     time.Duration
	prefix  string
	allow   map[string]bool
	mapping *Mapping
	infer   bool
	log     *slog.Logger
	group   singleflight.Group
}

// Option configures a Reflector.
type Option func(*Reflector)

// WithCache stores reflected entries in c for ttl.
func WithCache(c dbrest.Cache, ttl time.Duration) Option {
	return func(r *Reflector) {
		r.cache, r.ttl = c, ttl
	}
}

// WithPrefix prefixes every cache key.
func WithPrefix(prefix string) Option {
	return func(r *Reflector) {
		r.prefix = prefix
	}
}

// WithTables restricts reflection to the named tables, given by logical or
// physical name. "all" or no names allow every table.
func WithTables(names ...string) Option {
	return func(r *Reflector) {
		r.allow = nil
		for _, n := range names {
			if n = strings.TrimSpace(n); n == "" || n == "all" {
				r.allow = nil
				return
			}
			if r.allow == nil {
				r.allow = make(map[string]bool)
			}
			r.allow[n] = true
		}
	}
}

// WithMapping renames physical tables and columns.
func WithMapping(m *Mapping) Option {
	return func(r *Reflector) {
		r.mapping = m
	}
}

// WithoutInference disables foreign key inference on views.
func WithoutInference() Option {
	return func(r *Reflector) {
		r.infer = false
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reflector) {
		r.log = l
	}
}

// NewReflector returns a Reflector reading the catalog through drv.
// Without WithCache, entries are kept in a MemoryCache for DefaultTTL.
func NewReflector(drv dialect.Driver, opts ...Option) (*Reflector, error) {
	d, err := sql.Dialect(drv.Dialect())
	if err != nil {
		return nil, err
	}
	r := &Reflector{
		drv:     drv,
		dialect: d,
		ttl:     DefaultTTL,
		infer:   true,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = dbrest.NewMemoryCache()
	}
	return r, nil
}

// Dialect returns the dialect builder of the reflected database.
func (r *Reflector) Dialect() sql.DialectBuilder { return r.dialect }

// Mapping returns the name mapping, possibly nil.
func (r *Reflector) Mapping() *Mapping { return r.mapping }

func (r *Reflector) key(kind, name string) string {
	return dbrest.CacheKey{Prefix: r.prefix, Kind: kind, Name: name}.String()
}

// Database returns the listing of all reflected tables.
func (r *Reflector) Database(ctx context.Context) (*schema.Database, error) {
	key := r.key(KindDatabase, "")
	if b, err := r.cache.Get(ctx, key); err == nil && b != nil {
		db, err := schema.DecodeDatabase(b)
		if err == nil {
			return db, nil
		}
		r.log.DebugContext(ctx, "discarding cached database", "error", err)
	}
	v, err, _ := r.group.Do(key, func() (any, error) {
		db, err := r.reflectDatabase(ctx)
		if err != nil {
			return nil, err
		}
		store(ctx, r, key, db, schema.EncodeDatabase)
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*schema.Database), nil
}

// HasTable reports if the database lists the table.
func (r *Reflector) HasTable(ctx context.Context, name string) (bool, error) {
	db, err := r.Database(ctx)
	if err != nil {
		return false, err
	}
	return db.Has(name), nil
}

// Table returns the table with the given logical name.
func (r *Reflector) Table(ctx context.Context, name string) (*schema.Table, error) {
	key := r.key(KindTable, name)
	if b, err := r.cache.Get(ctx, key); err == nil && b != nil {
		t, err := schema.DecodeTable(b)
		if err == nil {
			return t, nil
		}
		r.log.DebugContext(ctx, "discarding cached table", "table", name, "error", err)
	}
	v, err, _ := r.group.Do(key, func() (any, error) {
		t, err := r.reflectTable(ctx, name)
		if err != nil {
			return nil, err
		}
		store(ctx, r, key, t, schema.EncodeTable)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	// Callers may mutate their copy.
	return v.(*schema.Table).Clone(), nil
}

// Tables returns every listed table in listing order.
func (r *Reflector) Tables(ctx context.Context) ([]*schema.Table, error) {
	db, err := r.Database(ctx)
	if err != nil {
		return nil, err
	}
	tables := make([]*schema.Table, 0, len(db.Tables))
	for _, ref := range db.Tables {
		t, err := r.Table(ctx, ref.Name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// RefreshTable drops the cached entry of a table and reflects it again.
func (r *Reflector) RefreshTable(ctx context.Context, name string) error {
	if err := r.InvalidateTable(ctx, name); err != nil {
		return err
	}
	r.log.DebugContext(ctx, "refreshing table", "table", name)
	_, err := r.Table(ctx, name)
	return err
}

// RefreshAll drops every cached entry and lists the database again.
func (r *Reflector) RefreshAll(ctx context.Context) error {
	if err := r.cache.DeletePrefix(ctx, r.prefix); err != nil {
		return fmt.Errorf("inspect: clear cache: %w", err)
	}
	r.log.DebugContext(ctx, "refreshing all tables")
	_, err := r.Database(ctx)
	return err
}

// InvalidateTable drops the cached entry of a table.
func (r *Reflector) InvalidateTable(ctx context.Context, name string) error {
	if err := r.cache.Delete(ctx, r.key(KindTable, name)); err != nil {
		return fmt.Errorf("inspect: invalidate table %q: %w", name, err)
	}
	return nil
}

// InvalidateDatabase drops the cached database listing.
func (r *Reflector) InvalidateDatabase(ctx context.Context) error {
	if err := r.cache.Delete(ctx, r.key(KindDatabase, "")); err != nil {
		return fmt.Errorf("inspect: invalidate database: %w", err)
	}
	return nil
}

// InvalidateReferrers drops the cached entries of tables with a foreign key
// to the named table. Only cached entries are inspected.
func (r *Reflector) InvalidateReferrers(ctx context.Context, name string) error {
	b, err := r.cache.Get(ctx, r.key(KindDatabase, ""))
	if err != nil || b == nil {
		return err
	}
	db, err := schema.DecodeDatabase(b)
	if err != nil {
		return r.InvalidateDatabase(ctx)
	}
	for _, ref := range db.Tables {
		if ref.Name == name {
			continue
		}
		b, err := r.cache.Get(ctx, r.key(KindTable, ref.Name))
		if err != nil || b == nil {
			continue
		}
		t, err := schema.DecodeTable(b)
		if err == nil && !references(t, name) {
			continue
		}
		if err := r.InvalidateTable(ctx, ref.Name); err != nil {
			return err
		}
	}
	return nil
}

func references(t *schema.Table, name string) bool {
	for _, c := range t.Columns {
		if c.IsForeignKey() && c.FK == name {
			return true
		}
	}
	return false
}

// store caches an encoded entry. Failures only cost a later reflection.
func store[T any](ctx context.Context, r *Reflector, key string, v T, encode func(T) ([]byte, error)) {
	b, err := encode(v)
	if err == nil {
		err = r.cache.Set(ctx, key, b, r.ttl)
	}
	if err != nil {
		r.log.WarnContext(ctx, "caching schema entry failed", "key", key, "error", err)
	}
}

func (r *Reflector) allowed(ref schema.TableRef) bool {
	return r.allow == nil || r.allow[ref.Name] || r.allow[ref.RealName]
}

func (r *Reflector) reflectDatabase(ctx context.Context) (*schema.Database, error) {
	rows, err := sql.QueryMaps(ctx, r.drv, r.dialect.TablesQuery(), []any{})
	if err != nil {
		return nil, fmt.Errorf("inspect: list tables: %w", err)
	}
	db := &schema.Database{Name: r.dialect.Name()}
	for _, row := range rows {
		phys := sql.String(row["TABLE_NAME"])
		kind, ok := r.dialect.TableKind(sql.String(row["TABLE_TYPE"]))
		if !ok || r.dialect.SystemTable(phys) || strings.HasPrefix(phys, "sqlite_") {
			continue
		}
		ref := schema.TableRef{Name: r.mapping.Table(phys), RealName: phys, Kind: kind}
		if r.allowed(ref) {
			db.Tables = append(db.Tables, ref)
		}
	}
	r.log.DebugContext(ctx, "reflected database", "tables", len(db.Tables))
	return db, nil
}

// nullable lists the IS_NULLABLE spellings of the catalogs.
var nullable = []string{"TRUE", "YES", "T", "Y", "1"}

// sizeArgs matches the size arguments of a native type: (len) or (p,s).
var sizeArgs = regexp.MustCompile(`\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\)`)

func (r *Reflector) reflectTable(ctx context.Context, name string) (*schema.Table, error) {
	db, err := r.Database(ctx)
	if err != nil {
		return nil, err
	}
	ref, ok := db.Lookup(name)
	if !ok {
		return nil, dbrest.NewTableNotFoundError(name)
	}
	args := []any{ref.RealName}
	rows, err := sql.QueryMaps(ctx, r.drv, r.dialect.ColumnsQuery(), args)
	if err != nil {
		return nil, fmt.Errorf("inspect: columns of %q: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, dbrest.NewTableNotFoundError(name)
	}
	columns := make([]*schema.Column, 0, len(rows))
	for _, row := range rows {
		columns = append(columns, r.column(ref, row))
	}
	t := &schema.Table{Name: ref.Name, RealName: ref.RealName, Kind: ref.Kind, Columns: columns}

	if t.IsView() {
		for _, c := range t.Columns {
			c.Nullable = true
			c.PK = c.Name == "id"
		}
	} else {
		pks, err := sql.QueryMaps(ctx, r.drv, r.dialect.PrimaryKeysQuery(), args)
		if err != nil {
			return nil, fmt.Errorf("inspect: primary key of %q: %w", name, err)
		}
		// Composite keys are not modeled.
		if len(pks) == 1 {
			pk := sql.String(pks[0]["COLUMN_NAME"])
			for _, c := range t.Columns {
				c.PK = c.RealName == pk
			}
		}
		fks, err := sql.QueryMaps(ctx, r.drv, r.dialect.ForeignKeysQuery(), args)
		if err != nil {
			return nil, fmt.Errorf("inspect: foreign keys of %q: %w", name, err)
		}
		for _, fk := range fks {
			col := sql.String(fk["COLUMN_NAME"])
			target := r.mapping.Table(sql.String(fk["REFERENCED_TABLE_NAME"]))
			for _, c := range t.Columns {
				if c.RealName == col {
					c.FK = target
				}
			}
		}
	}
	t = schema.NewTable(t.Name, t.Kind, t.Columns...)
	t.RealName = ref.RealName
	if r.infer && t.IsView() {
		for _, c := range InferForeignKeys(t, db.TableNames()) {
			r.log.DebugContext(ctx, "inferred foreign key", "view", t.Name, "column", c.Name, "references", c.FK)
		}
	}
	r.log.DebugContext(ctx, "reflected table", "table", t.Name, "columns", len(t.Columns))
	return t, nil
}

func (r *Reflector) column(ref schema.TableRef, row map[string]any) *schema.Column {
	phys := sql.String(row["COLUMN_NAME"])
	dataType := sql.String(row["DATA_TYPE"])
	c := &schema.Column{
		Name:      r.mapping.Column(ref.RealName, phys),
		RealName:  phys,
		Nullable:  slices.Contains(nullable, strings.ToUpper(strings.TrimSpace(sql.String(row["IS_NULLABLE"])))),
		Length:    sql.Int(row["CHARACTER_MAXIMUM_LENGTH"]),
		Precision: sql.Int(row["NUMERIC_PRECISION"]),
		Scale:     sql.Int(row["NUMERIC_SCALE"]),
	}
	// Catalogs without size columns spell the size in the type.
	if m := sizeArgs.FindStringSubmatch(dataType); m != nil {
		first := sql.Int(m[1])
		if m[2] != "" {
			c.Precision, c.Scale = first, sql.Int(m[2])
		} else if c.Length == 0 {
			c.Length = first
		}
	}
	c.Type = r.dialect.ToCanonical(r.dialect.NativeType(dataType, sql.String(row["COLUMN_TYPE"])))
	if c.Length < 0 || c.Type == field.TypeDecimal {
		c.Length = 0
	}
	return c
}
