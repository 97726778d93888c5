package sql

import (
	"fmt"
	"strings"

	"github.com/syssam/dbrest"
	"github.com/syssam/dbrest/querylanguage"
	"github.com/syssam/dbrest/schema"
)

// Statement accumulates the text of one SQL statement and its arguments,
// numbering placeholders the way the dialect expects.
type Statement struct {
	d    DialectBuilder
	sb   strings.Builder
	args []any
}

// NewStatement returns an empty statement of the given dialect.
func NewStatement(d DialectBuilder) *Statement {
	return &Statement{d: d}
}

// WriteString appends s to the statement text.
func (s *Statement) WriteString(str string) *Statement {
	s.sb.WriteString(str)
	return s
}

// Arg records v as the next argument and returns its placeholder.
func (s *Statement) Arg(v any) string {
	s.args = append(s.args, v)
	return s.d.Placeholder(len(s.args))
}

// Query returns the statement text and its arguments.
func (s *Statement) Query() (string, []any) {
	return s.sb.String(), s.args
}

// String returns the statement text.
func (s *Statement) String() string { return s.sb.String() }

// Order is one ORDER BY term over a logical column.
type Order struct {
	Column string
	Desc   bool
}

// Asc returns an ascending order on column.
func Asc(column string) Order { return Order{Column: column} }

// Desc returns a descending order on column.
func Desc(column string) Order { return Order{Column: column, Desc: true} }

// Builder assembles the statements of the record store from the fragments
// of its dialect. Tables and columns are addressed by logical name and
// rendered with their physical names.
type Builder struct {
	DialectBuilder
}

// NewBuilder returns a Builder for the given dialect.
func NewBuilder(d DialectBuilder) *Builder {
	return &Builder{DialectBuilder: d}
}

// Table returns the quoted physical name of t.
func (b *Builder) Table(t *schema.Table) string { return b.Quote(t.RealName) }

// Column returns the quoted physical name of c.
func (b *Builder) Column(c *schema.Column) string { return b.Quote(c.RealName) }

func (b *Builder) columns(t *schema.Table, names []string) ([]*schema.Column, error) {
	if len(names) == 0 {
		return t.Columns, nil
	}
	cs := make([]*schema.Column, 0, len(names))
	for _, n := range names {
		c, ok := t.Column(n)
		if !ok {
			return nil, dbrest.NewColumnNotFoundError(t.Name, n)
		}
		cs = append(cs, c)
	}
	return cs, nil
}

// projection renders the SELECT list, decoding and aliasing every column
// to its logical name.
func (b *Builder) projection(cs []*schema.Column) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		col := b.Column(c)
		expr := b.DecodeColumn(c, col)
		if expr != col || c.RealName != c.Name {
			expr += " AS " + b.Quote(c.Name)
		}
		parts[i] = expr
	}
	return strings.Join(parts, ", ")
}

// Select returns a SELECT of the named columns (all when empty) matching
// cond. A negative limit selects all rows.
func (b *Builder) Select(t *schema.Table, columns []string, cond querylanguage.Condition, order []Order, offset, limit int) (string, []any, error) {
	cs, err := b.columns(t, columns)
	if err != nil {
		return "", nil, err
	}
	st := NewStatement(b.DialectBuilder)
	st.WriteString("SELECT ").WriteString(b.projection(cs)).WriteString(" FROM ").WriteString(b.Table(t))
	if err := b.Where(st, cond); err != nil {
		return "", nil, err
	}
	if len(order) > 0 {
		terms := make([]string, len(order))
		for i, o := range order {
			c, ok := t.Column(o.Column)
			if !ok {
				return "", nil, dbrest.NewColumnNotFoundError(t.Name, o.Column)
			}
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			terms[i] = b.Column(c) + " " + dir
		}
		st.WriteString(" ORDER BY ").WriteString(strings.Join(terms, ", "))
	}
	st.WriteString(b.Paginate(offset, limit, len(order) > 0))
	q, args := st.Query()
	return q, args, nil
}

// Count returns a SELECT COUNT(*) of the rows matching cond.
func (b *Builder) Count(t *schema.Table, cond querylanguage.Condition) (string, []any, error) {
	st := NewStatement(b.DialectBuilder)
	st.WriteString("SELECT COUNT(*) FROM ").WriteString(b.Table(t))
	if err := b.Where(st, cond); err != nil {
		return "", nil, err
	}
	q, args := st.Query()
	return q, args, nil
}

// Insert returns an INSERT of values. Keys without a column are ignored.
// returning reports if the statement yields the generated primary key.
func (b *Builder) Insert(t *schema.Table, values map[string]any) (query string, args []any, returning bool, err error) {
	st := NewStatement(b.DialectBuilder)
	var cols, phs []string
	for _, c := range t.Columns {
		v, ok := values[c.Name]
		if !ok {
			continue
		}
		if v, err = b.ConvertInput(c, v); err != nil {
			return "", nil, false, err
		}
		cols = append(cols, b.Column(c))
		phs = append(phs, b.EncodeValue(c, st.Arg(v)))
	}
	var pk string
	if c := t.PrimaryKey(); c != nil {
		if _, ok := values[c.Name]; !ok {
			pk = b.Column(c)
		}
	}
	stmt := b.DialectBuilder.Insert(b.Table(t), cols, phs, pk)
	// Dialects without RETURNING support ignore pk.
	returning = pk != "" && stmt != b.DialectBuilder.Insert(b.Table(t), cols, phs, "")
	st.WriteString(stmt)
	query, args = st.Query()
	return query, args, returning, nil
}

// Update returns an UPDATE setting values on the rows matching cond, or
// "" when values holds no column.
func (b *Builder) Update(t *schema.Table, values map[string]any, cond querylanguage.Condition) (string, []any, error) {
	return b.set(t, values, cond, false)
}

// Increment returns an UPDATE adding values to the numeric columns of the
// rows matching cond, or "" when values holds no numeric column.
func (b *Builder) Increment(t *schema.Table, values map[string]any, cond querylanguage.Condition) (string, []any, error) {
	return b.set(t, values, cond, true)
}

func (b *Builder) set(t *schema.Table, values map[string]any, cond querylanguage.Condition, increment bool) (string, []any, error) {
	st := NewStatement(b.DialectBuilder)
	var sets []string
	for _, c := range t.Columns {
		v, ok := values[c.Name]
		if !ok || (increment && !c.Type.Numeric()) {
			continue
		}
		col := b.Column(c)
		if increment {
			sets = append(sets, col+" = "+col+" + "+st.Arg(v))
			continue
		}
		v, err := b.ConvertInput(c, v)
		if err != nil {
			return "", nil, err
		}
		sets = append(sets, col+" = "+b.EncodeValue(c, st.Arg(v)))
	}
	if len(sets) == 0 {
		return "", nil, nil
	}
	st.WriteString("UPDATE ").WriteString(b.Table(t)).WriteString(" SET ").WriteString(strings.Join(sets, ", "))
	if err := b.Where(st, cond); err != nil {
		return "", nil, err
	}
	q, args := st.Query()
	return q, args, nil
}

// Delete returns a DELETE of the rows matching cond.
func (b *Builder) Delete(t *schema.Table, cond querylanguage.Condition) (string, []any, error) {
	st := NewStatement(b.DialectBuilder)
	st.WriteString("DELETE FROM ").WriteString(b.Table(t))
	if err := b.Where(st, cond); err != nil {
		return "", nil, err
	}
	q, args := st.Query()
	return q, args, nil
}

// Where appends the WHERE clause of cond, if any, to st.
func (b *Builder) Where(st *Statement, cond querylanguage.Condition) error {
	if querylanguage.IsNone(cond) {
		return nil
	}
	p, err := b.Predicate(st, cond)
	if err != nil {
		return err
	}
	st.WriteString(" WHERE ").WriteString(p)
	return nil
}

func (b *Builder) String() string { return fmt.Sprintf("Builder(%s)", b.Name()) }
