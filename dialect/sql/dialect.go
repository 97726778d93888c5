package sql

import (
	"fmt"
	"strings"

	"github.com/syssam/dbrest"
	"github.com/syssam/dbrest/dialect"
	"github.com/syssam/dbrest/schema"
	"github.com/syssam/dbrest/schema/field"
)

// DialectBuilder generates the SQL fragments one dialect disagrees on.
// One implementation exists per dialect; it is selected once with Dialect.
type DialectBuilder interface {
	// Name returns the dialect name.
	Name() string
	// Quote quotes an identifier.
	Quote(ident string) string
	// Placeholder returns the bind parameter marker of the n-th argument (1-based).
	Placeholder(n int) string
	// Paginate returns the clause limiting a SELECT, or "" when limit < 0.
	// ordered reports if the statement already has an ORDER BY clause.
	Paginate(offset, limit int, ordered bool) string
	// Like returns a LIKE predicate of a column expression and a placeholder.
	Like(col, ph string) string
	// False returns an always false predicate.
	False() string
	// Spatial returns a spatial predicate. arg is "" for operators without argument.
	Spatial(fn, col, arg string) string
	// EncodeValue wraps the placeholder of a column value in the expression
	// converting it to the stored representation.
	EncodeValue(c *schema.Column, ph string) string
	// DecodeColumn wraps a quoted column in the expression projecting it to
	// its transport representation.
	DecodeColumn(c *schema.Column, col string) string
	// Insert returns an INSERT statement. pk is the quoted primary key, or ""
	// when the statement should not return it.
	Insert(table string, columns, values []string, pk string) string
	// LastInsertID returns the query reading the key generated by the last insert.
	LastInsertID() string

	TypeConverter
	ValueConverter
	DDL
	Introspector
}

// Dialect returns the builder of the named dialect.
func Dialect(name string) (DialectBuilder, error) {
	switch name {
	case dialect.MySQL:
		return MySQL(), nil
	case dialect.Postgres:
		return Postgres(), nil
	case dialect.SQLServer:
		return SQLServer(), nil
	case dialect.SQLite:
		return SQLite(), nil
	default:
		return nil, dbrest.NewUnsupportedOperationError(fmt.Sprintf("dialect %q", name), "")
	}
}

// MustDialect is like Dialect but panics on unknown names.
func MustDialect(name string) DialectBuilder {
	d, err := Dialect(name)
	if err != nil {
		panic(err)
	}
	return d
}

// base holds the behavior shared by most dialects. Dialect types embed it
// and override what differs.
type base struct {
	name  string
	quote byte
	types *typeMaps
}

func (b base) Name() string { return b.name }

func (b base) Quote(ident string) string {
	q := string(b.quote)
	return q + strings.ReplaceAll(ident, q, q+q) + q
}

func (base) Placeholder(int) string { return "?" }

func (base) Paginate(offset, limit int, _ bool) string {
	if limit < 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, max(offset, 0))
}

func (base) Like(col, ph string) string { return col + " LIKE " + ph }

func (base) False() string { return "1=0" }

// Spatial renders the OpenGIS function style shared by MySQL and Postgres.
func (base) Spatial(fn, col, arg string) string {
	if arg == "" {
		return fmt.Sprintf("%s(%s)=TRUE", fn, col)
	}
	return fmt.Sprintf("%s(%s, ST_GeomFromText(%s))=TRUE", fn, col, arg)
}

func (base) EncodeValue(c *schema.Column, ph string) string {
	if c.Type.Geometry() {
		return "ST_GeomFromText(" + ph + ")"
	}
	return ph
}

func (base) DecodeColumn(c *schema.Column, col string) string {
	if c.Type.Geometry() {
		return "ST_AsText(" + col + ")"
	}
	return col
}

func (b base) Insert(table string, columns, values []string, _ string) string {
	if len(columns) == 0 {
		return "INSERT INTO " + table + " DEFAULT VALUES"
	}
	return "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ") VALUES (" + strings.Join(values, ", ") + ")"
}

// ToCanonical implements the TypeConverter interface.
func (b base) ToCanonical(native string) field.Type { return b.types.toCanonical(native) }

// FromCanonical implements the TypeConverter interface.
func (b base) FromCanonical(t field.Type) string { return b.types.fromCanonical(t) }

// escapeLike escapes the LIKE wildcards of s with a backslash.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
