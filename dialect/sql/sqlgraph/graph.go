package sqlgraph

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/dbrest"
	"github.com/syssam/dbrest/dialect"
	"github.com/syssam/dbrest/dialect/sql"
	"github.com/syssam/dbrest/pathtree"
	"github.com/syssam/dbrest/querylanguage"
	"github.com/syssam/dbrest/schema"
)

// Rel is the kind of relation between two joined tables.
type Rel int

// Relation kinds.
const (
	Unrelated Rel = iota
	BelongsTo     // the parent holds a foreign key to the child
	HasMany       // the child holds a foreign key to the parent
	HABTM         // a link table holds foreign keys to both
)

func (r Rel) String() string {
	switch r {
	case BelongsTo:
		return "belongs-to"
	case HasMany:
		return "has-many"
	case HABTM:
		return "has-and-belongs-to-many"
	default:
		return "unrelated"
	}
}

// Relation describes how a child table joins its parent.
type Relation struct {
	Rel    Rel
	Parent *schema.Table
	Child  *schema.Table
	// Column is the foreign key of the parent (BelongsTo) or of the child
	// (HasMany) linking both tables.
	Column *schema.Column
	// Link, LinkParent and LinkChild describe the link table of a HABTM
	// relation and its foreign keys to the parent and the child.
	Link       *schema.Table
	LinkParent *schema.Column
	LinkChild  *schema.Column
}

// Tables looks up table definitions. inspect.Reflector implements it.
type Tables interface {
	Table(ctx context.Context, name string) (*schema.Table, error)
	Tables(ctx context.Context) ([]*schema.Table, error)
}

// JoinTree holds requested join paths keyed by table name.
type JoinTree = pathtree.Tree[struct{}]

// Limits bound the work of a join. Zero values mean no limit.
type Limits struct {
	// Depth is the maximum length of a join path.
	Depth int
	// Tables is the maximum number of distinct joined tables.
	Tables int
	// Records is the maximum number of rows one batched fetch returns.
	Records int
}

// Joiner embeds related records into fetched ones. It issues one batched
// query per requested relation edge (two for HABTM), whatever the number
// of parent rows.
type Joiner struct {
	eq       dialect.ExecQuerier
	b        *sql.Builder
	tables   Tables
	limits   Limits
	parallel bool
	debug    bool
	log      *slog.Logger
}

// JoinOption configures a Joiner.
type JoinOption func(*Joiner)

// WithLimits sets the join limits.
func WithLimits(l Limits) JoinOption {
	return func(j *Joiner) {
		j.limits = l
	}
}

// WithParallelJoins resolves sibling join branches concurrently. Children
// are still spliced into their parents after all siblings complete.
func WithParallelJoins() JoinOption {
	return func(j *Joiner) {
		j.parallel = true
	}
}

// WithJoinDebug exposes driver error detail in database errors.
func WithJoinDebug(debug bool) JoinOption {
	return func(j *Joiner) {
		j.debug = debug
	}
}

// WithJoinLogger sets the logger of resolved relations.
func WithJoinLogger(l *slog.Logger) JoinOption {
	return func(j *Joiner) {
		j.log = l
	}
}

// NewJoiner returns a Joiner running its queries on eq.
func NewJoiner(eq dialect.ExecQuerier, b *sql.Builder, tables Tables, opts ...JoinOption) *Joiner {
	j := &Joiner{eq: eq, b: b, tables: tables, log: slog.Default()}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// With returns a copy of the joiner running its queries on eq.
func (j *Joiner) With(eq dialect.ExecQuerier) *Joiner {
	c := *j
	c.eq = eq
	return &c
}

// Plan builds the join tree of the given paths. Each path is a comma
// separated list of table names, each one joined to the previous one.
// Paths longer than the depth limit are truncated, tables beyond the
// tables limit are dropped with the rest of their path.
func (j *Joiner) Plan(paths []string) *JoinTree {
	tree := pathtree.New[struct{}]()
	seen := make(map[string]struct{})
	for _, p := range paths {
		var path []string
		for _, name := range strings.Split(p, ",") {
			if name = strings.TrimSpace(name); name == "" {
				continue
			}
			if j.limits.Depth > 0 && len(path) == j.limits.Depth {
				break
			}
			if _, ok := seen[name]; !ok {
				if j.limits.Tables > 0 && len(seen) == j.limits.Tables {
					break
				}
				seen[name] = struct{}{}
			}
			path = append(path, name)
		}
		if len(path) > 0 {
			tree.Touch(path)
		}
	}
	return tree
}

// Relate returns the relation joining child to parent. Unknown kinds of
// relations yield Unrelated.
func (j *Joiner) Relate(ctx context.Context, parent, child *schema.Table) (*Relation, error) {
	r := &Relation{Parent: parent, Child: child}
	if fks := parent.ForeignKeysTo(child.Name); len(fks) > 0 && child.HasPrimaryKey() {
		r.Rel, r.Column = BelongsTo, fks[0]
		return r, nil
	}
	if fks := child.ForeignKeysTo(parent.Name); len(fks) > 0 && parent.HasPrimaryKey() {
		r.Rel, r.Column = HasMany, fks[0]
		return r, nil
	}
	if !parent.HasPrimaryKey() || !child.HasPrimaryKey() {
		return r, nil
	}
	all, err := j.tables.Tables(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range all {
		if t.Name == parent.Name || t.Name == child.Name {
			continue
		}
		toParent, toChild := t.ForeignKeysTo(parent.Name), t.ForeignKeysTo(child.Name)
		if len(toParent) > 0 && len(toChild) > 0 {
			r.Rel, r.Link, r.LinkParent, r.LinkChild = HABTM, t, toParent[0], toChild[0]
			return r, nil
		}
	}
	return r, nil
}

// AddMandatory marks the key columns the joins of tree depend on as
// mandatory in the includer, starting at table t.
func (j *Joiner) AddMandatory(ctx context.Context, t *schema.Table, tree *JoinTree, in *Includer) error {
	for _, key := range tree.Keys() {
		child, err := j.table(ctx, key)
		if err != nil {
			return err
		}
		if child == nil {
			continue
		}
		r, err := j.Relate(ctx, t, child)
		if err != nil {
			return err
		}
		switch r.Rel {
		case BelongsTo:
			in.Mandatory(t.Name, r.Column.Name)
			in.Mandatory(child.Name, child.PrimaryKey().Name)
		case HasMany:
			in.Mandatory(t.Name, t.PrimaryKey().Name)
			in.Mandatory(child.Name, r.Column.Name)
		case HABTM:
			in.Mandatory(t.Name, t.PrimaryKey().Name)
			in.Mandatory(child.Name, child.PrimaryKey().Name)
		default:
			continue
		}
		if err := j.AddMandatory(ctx, child, tree.Child(key), in); err != nil {
			return err
		}
	}
	return nil
}

// Join embeds the related records of every path in tree into records of
// table t, then strips the mandatory columns the includer did not request.
// Call AddMandatory before fetching records.
func (j *Joiner) Join(ctx context.Context, t *schema.Table, records []Record, tree *JoinTree, in *Includer) error {
	if err := j.join(ctx, t, records, tree, in); err != nil {
		return err
	}
	in.Strip(t, true, records)
	return nil
}

func (j *Joiner) join(ctx context.Context, t *schema.Table, records []Record, tree *JoinTree, in *Includer) error {
	keys := tree.Keys()
	if len(keys) == 0 || len(records) == 0 {
		return nil
	}
	splices := make([]func(), len(keys))
	resolve := func(ctx context.Context, i int) (err error) {
		splices[i], err = j.edge(ctx, t, records, keys[i], tree.Child(keys[i]), in)
		return err
	}
	if j.parallel && len(keys) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for i := range keys {
			g.Go(func() error { return resolve(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
	} else {
		for i := range keys {
			if err := resolve(ctx, i); err != nil {
				return err
			}
		}
	}
	for _, splice := range splices {
		if splice != nil {
			splice()
		}
	}
	return nil
}

// edge fetches the children of one relation and resolves their own joins.
// It returns the function splicing them into the parent records.
func (j *Joiner) edge(ctx context.Context, parent *schema.Table, records []Record, name string, tree *JoinTree, in *Includer) (func(), error) {
	child, err := j.table(ctx, name)
	if err != nil || child == nil {
		return nil, err
	}
	r, err := j.Relate(ctx, parent, child)
	if err != nil {
		return nil, err
	}
	var (
		children []Record
		splice   func()
	)
	switch r.Rel {
	case BelongsTo:
		children, splice, err = j.belongsTo(ctx, r, records, in)
	case HasMany:
		children, splice, err = j.hasMany(ctx, r, records, in)
	case HABTM:
		children, splice, err = j.habtm(ctx, r, records, in)
	default:
		j.log.DebugContext(ctx, "join skipped", "parent", parent.Name, "child", child.Name)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.log.DebugContext(ctx, "join resolved", "parent", parent.Name, "child", child.Name, "relation", r.Rel, "rows", len(children))
	if err := j.join(ctx, child, children, tree, in); err != nil {
		return nil, err
	}
	return func() {
		splice()
		in.Strip(child, false, children)
	}, nil
}

func (j *Joiner) belongsTo(ctx context.Context, r *Relation, records []Record, in *Includer) ([]Record, func(), error) {
	pk := r.Child.PrimaryKey()
	children, err := j.fetch(ctx, r.Child, pk, DistinctValues(records, r.Column.Name), in.Columns(r.Child, false))
	if err != nil {
		return nil, nil, err
	}
	return children, func() {
		index := IndexByKey(children, ColumnKey(pk.Name))
		for _, rec := range records {
			v, ok := rec[r.Column.Name]
			if !ok || v == nil {
				continue
			}
			if c, ok := index[Key(v)]; ok {
				rec[r.Column.Name] = c
			}
		}
	}, nil
}

func (j *Joiner) hasMany(ctx context.Context, r *Relation, records []Record, in *Includer) ([]Record, func(), error) {
	pk := r.Parent.PrimaryKey()
	children, err := j.fetch(ctx, r.Child, r.Column, DistinctValues(records, pk.Name), in.Columns(r.Child, false))
	if err != nil {
		return nil, nil, err
	}
	return children, func() {
		groups := GroupByKey(children, ColumnKey(r.Column.Name))
		for _, rec := range records {
			rec[r.Child.Name] = nonNil(groups[Key(rec[pk.Name])])
		}
	}, nil
}

func (j *Joiner) habtm(ctx context.Context, r *Relation, records []Record, in *Includer) ([]Record, func(), error) {
	pk, childPK := r.Parent.PrimaryKey(), r.Child.PrimaryKey()
	links, err := j.fetch(ctx, r.Link, r.LinkParent, DistinctValues(records, pk.Name), []string{r.LinkParent.Name, r.LinkChild.Name})
	if err != nil {
		return nil, nil, err
	}
	children, err := j.fetch(ctx, r.Child, childPK, DistinctValues(links, r.LinkChild.Name), in.Columns(r.Child, false))
	if err != nil {
		return nil, nil, err
	}
	return children, func() {
		linked := GroupByKey(links, ColumnKey(r.LinkParent.Name))
		index := IndexByKey(children, ColumnKey(childPK.Name))
		for _, rec := range records {
			var related []Record
			for _, l := range linked[Key(rec[pk.Name])] {
				if c, ok := index[Key(l[r.LinkChild.Name])]; ok {
					related = append(related, c)
				}
			}
			rec[r.Child.Name] = nonNil(related)
		}
	}, nil
}

// fetch runs the batched query of one relation edge.
func (j *Joiner) fetch(ctx context.Context, t *schema.Table, key *schema.Column, values []any, columns []string) ([]Record, error) {
	if len(values) == 0 {
		return nil, nil
	}
	limit := -1
	if j.limits.Records > 0 {
		limit = j.limits.Records
	}
	s := NewStore(j.eq, j.b, t, WithDebug(j.debug))
	return s.List(ctx, columns, querylanguage.In(key, values...), nil, 0, limit)
}

// table returns the named table, or nil when it does not exist.
func (j *Joiner) table(ctx context.Context, name string) (*schema.Table, error) {
	t, err := j.tables.Table(ctx, name)
	if dbrest.IsTableNotFound(err) {
		return nil, nil
	}
	return t, err
}

func nonNil(records []Record) []Record {
	if records == nil {
		return []Record{}
	}
	return records
}
