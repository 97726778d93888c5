package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/dbrest/dialect"
	"github.com/syssam/dbrest/schema"
	"github.com/syssam/dbrest/schema/field"
)

var postgresTypes = &typeMaps{
	to: map[string]field.Type{
		"bigserial":                   field.TypeBigInt,
		"box":                         field.TypeGeometry,
		"bytea":                       field.TypeBlob,
		"bpchar":                      field.TypeChar,
		"character":                   field.TypeChar,
		"character varying":           field.TypeVarchar,
		"circle":                      field.TypeGeometry,
		"cidr":                        field.TypeVarchar,
		"double precision":            field.TypeDouble,
		"inet":                        field.TypeVarchar,
		"jsonb":                       field.TypeClob,
		"line":                        field.TypeGeometry,
		"lseg":                        field.TypeGeometry,
		"macaddr":                     field.TypeVarchar,
		"money":                       field.TypeDecimal,
		"path":                        field.TypeGeometry,
		"point":                       field.TypeGeometry,
		"polygon":                     field.TypeGeometry,
		"real":                        field.TypeFloat,
		"serial":                      field.TypeInteger,
		"text":                        field.TypeClob,
		"time without time zone":      field.TypeTime,
		"timestamp without time zone": field.TypeTimestamp,
		"uuid":                        field.TypeChar,
		"xml":                         field.TypeClob,
	},
	from: map[field.Type]string{
		field.TypeClob:      "text",
		field.TypeBlob:      "bytea",
		field.TypeFloat:     "real",
		field.TypeDouble:    "double precision",
		field.TypeVarBinary: "bytea",
	},
	unsized: map[string]bool{"bytea": true},
}

type postgresDialect struct{ base }

// Postgres returns the PostgreSQL dialect builder.
func Postgres() DialectBuilder {
	return postgresDialect{base{name: dialect.Postgres, quote: '"', types: postgresTypes}}
}

func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) False() string { return "FALSE" }

func (postgresDialect) EncodeValue(c *schema.Column, ph string) string {
	switch {
	case c.Type.Binary():
		return "decode(" + ph + ", 'base64')"
	case c.Type.Geometry():
		return "ST_GeomFromText(" + ph + ")"
	}
	return ph
}

func (postgresDialect) DecodeColumn(c *schema.Column, col string) string {
	switch {
	case c.Type.Binary():
		return "encode(" + col + "::bytea, 'base64')"
	case c.Type.Geometry():
		return "ST_AsText(" + col + ")"
	}
	return col
}

func (d postgresDialect) Insert(table string, columns, values []string, pk string) string {
	q := d.base.Insert(table, columns, values, "")
	if pk != "" {
		q += " RETURNING " + pk
	}
	return q
}

func (postgresDialect) LastInsertID() string { return "SELECT LASTVAL()" }

// ColumnType declares auto increment primary keys as serial on creation.
// Altered columns carry no nullability, which Postgres changes separately.
func (d postgresDialect) ColumnType(c *schema.Column, update bool) string {
	if !update && c.PK && c.Type.AutoIncrement() {
		if c.Type == field.TypeBigInt {
			return "bigserial"
		}
		return "serial"
	}
	if update {
		return d.typeSize(c)
	}
	return d.typeSize(c) + nullType(c)
}

func (d postgresDialect) CreateTable(t *schema.Table, refs func(string) *schema.Table) ([]string, error) {
	return d.createTable(t, refs, func(c *schema.Column) string { return d.ColumnType(c, false) }, false)
}

func (d postgresDialect) AddColumn(t *schema.Table, c *schema.Column) ([]string, error) {
	return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", d.Quote(t.RealName), d.Quote(c.RealName), d.typeSize(c)+nullType(c))}, nil
}

func (d postgresDialect) RetypeColumn(t *schema.Table, c *schema.Column) ([]string, error) {
	return []string{fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", d.Quote(t.RealName), d.Quote(c.RealName), d.ColumnType(c, true))}, nil
}

func (d postgresDialect) SetNullable(t *schema.Table, c *schema.Column) ([]string, error) {
	op := "SET NOT NULL"
	if c.Nullable {
		op = "DROP NOT NULL"
	}
	return []string{fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s", d.Quote(t.RealName), d.Quote(c.RealName), op)}, nil
}

// AddPrimaryKey bootstraps a sequence for integer keys, starting after the
// largest stored key.
func (d postgresDialect) AddPrimaryKey(t *schema.Table, c *schema.Column) ([]string, error) {
	table, col := d.Quote(t.RealName), d.Quote(c.RealName)
	stmts := []string{
		fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)", table, d.Quote(ConstraintName(t.RealName, c.RealName, "pkey")), col),
	}
	if !c.Type.AutoIncrement() {
		return stmts, nil
	}
	seq := ConstraintName(t.RealName, c.RealName, "seq")
	return append(stmts,
		fmt.Sprintf("CREATE SEQUENCE %s OWNED BY %s.%s", d.Quote(seq), table, col),
		fmt.Sprintf("SELECT setval('%s', (SELECT COALESCE(MAX(%s), 0) + 1 FROM %s), false)", escapeQuote(d.Quote(seq)), col, table),
		fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT nextval('%s')", table, col, escapeQuote(d.Quote(seq))),
	), nil
}

func (d postgresDialect) DropPrimaryKey(t *schema.Table, c *schema.Column) ([]string, error) {
	table, col := d.Quote(t.RealName), d.Quote(c.RealName)
	stmts := []string{
		fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", table, d.Quote(ConstraintName(t.RealName, c.RealName, "pkey"))),
	}
	if c.Type.AutoIncrement() {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", table, col))
	}
	return stmts, nil
}

func escapeQuote(s string) string { return strings.ReplaceAll(s, "'", "''") }

func (postgresDialect) TablesQuery() string {
	return `SELECT c.relname AS "TABLE_NAME", c.relkind AS "TABLE_TYPE" FROM pg_catalog.pg_class c ` +
		`LEFT JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace ` +
		`WHERE c.relkind IN ('r', 'v') AND n.nspname <> 'pg_catalog' AND n.nspname <> 'information_schema' ` +
		`AND n.nspname !~ '^pg_toast' AND pg_catalog.pg_table_is_visible(c.oid) ORDER BY "TABLE_NAME"`
}

func (postgresDialect) ColumnsQuery() string {
	return `SELECT a.attname AS "COLUMN_NAME", CASE WHEN a.attnotnull THEN 'FALSE' ELSE 'TRUE' END AS "IS_NULLABLE", ` +
		`pg_catalog.format_type(a.atttypid, -1) AS "DATA_TYPE", ` +
		`CASE WHEN a.atttypmod < 0 THEN NULL ELSE a.atttypmod - 4 END AS "CHARACTER_MAXIMUM_LENGTH", ` +
		`CASE WHEN a.atttypid != 1700 THEN NULL ELSE ((a.atttypmod - 4) >> 16) & 65535 END AS "NUMERIC_PRECISION", ` +
		`CASE WHEN a.atttypid != 1700 THEN NULL ELSE (a.atttypmod - 4) & 65535 END AS "NUMERIC_SCALE", ` +
		`'' AS "COLUMN_TYPE" FROM pg_attribute a JOIN pg_class pgc ON pgc.oid = a.attrelid ` +
		`WHERE pgc.relname = $1 AND pgc.relnamespace = (SELECT oid FROM pg_catalog.pg_namespace WHERE nspname = current_schema()) ` +
		`AND a.attnum > 0 AND NOT a.attisdropped ORDER BY a.attnum`
}

func (postgresDialect) PrimaryKeysQuery() string {
	return `SELECT a.attname AS "COLUMN_NAME" FROM pg_attribute a ` +
		`JOIN pg_constraint c ON (c.conrelid, c.conkey[1]) = (a.attrelid, a.attnum) ` +
		`JOIN pg_class pgc ON pgc.oid = a.attrelid ` +
		`WHERE pgc.relname = $1 AND pgc.relnamespace = (SELECT oid FROM pg_catalog.pg_namespace WHERE nspname = current_schema()) ` +
		`AND c.contype = 'p' AND array_length(c.conkey, 1) = 1`
}

func (postgresDialect) ForeignKeysQuery() string {
	return `SELECT a.attname AS "COLUMN_NAME", c.confrelid::regclass::text AS "REFERENCED_TABLE_NAME" FROM pg_attribute a ` +
		`JOIN pg_constraint c ON (c.conrelid, c.conkey[1]) = (a.attrelid, a.attnum) ` +
		`JOIN pg_class pgc ON pgc.oid = a.attrelid ` +
		`WHERE pgc.relname = $1 AND pgc.relnamespace = (SELECT oid FROM pg_catalog.pg_namespace WHERE nspname = current_schema()) ` +
		`AND c.contype = 'f'`
}

func (postgresDialect) TableKind(typ string) (schema.Kind, bool) {
	switch typ {
	case "r":
		return schema.KindTable, true
	case "v":
		return schema.KindView, true
	}
	return "", false
}
