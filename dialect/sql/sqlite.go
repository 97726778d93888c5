package sql

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/syssam/dbrest/dialect"
	"github.com/syssam/dbrest/schema"
	"github.com/syssam/dbrest/schema/field"
)

var sqliteTypes = &typeMaps{
	to: map[string]field.Type{
		"tinytext":         field.TypeClob,
		"text":             field.TypeClob,
		"mediumtext":       field.TypeClob,
		"longtext":         field.TypeClob,
		"mediumint":        field.TypeInteger,
		"int":              field.TypeInteger,
		"int4":             field.TypeInteger,
		"int2":             field.TypeInteger,
		"int8":             field.TypeBigInt,
		"double precision": field.TypeDouble,
		"datetime":         field.TypeTimestamp,
	},
	from: map[field.Type]string{},
}

type sqliteDialect struct{ base }

// SQLite returns the SQLite dialect builder. Binary values are bound and
// scanned as raw bytes since SQLite has no base64 functions.
func SQLite() DialectBuilder {
	return sqliteDialect{base{name: dialect.SQLite, quote: '"', types: sqliteTypes}}
}

func (sqliteDialect) Like(col, ph string) string { return col + ` LIKE ` + ph + ` ESCAPE '\'` }

func (sqliteDialect) Spatial(fn, col, arg string) string {
	if arg == "" {
		return fmt.Sprintf("%s(%s)=1", fn, col)
	}
	return fmt.Sprintf("%s(%s, %s)=1", fn, col, arg)
}

func (sqliteDialect) EncodeValue(_ *schema.Column, ph string) string { return ph }

func (sqliteDialect) DecodeColumn(_ *schema.Column, col string) string { return col }

func (sqliteDialect) LastInsertID() string { return "SELECT LAST_INSERT_ROWID()" }

func (d sqliteDialect) ConvertInput(c *schema.Column, v any) (any, error) {
	if v == nil || !c.Type.Binary() {
		return d.base.ConvertInput(c, v)
	}
	switch v := v.(type) {
	case []byte:
		return v, nil
	case string:
		b, err := base64.StdEncoding.DecodeString(StdBase64(v))
		if err != nil {
			return nil, fmt.Errorf("dialect/sql: column %q: %w", c.Name, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("dialect/sql: column %q expects base64 text, got %T", c.Name, v)
}

func (sqliteDialect) ConvertOutput(c *schema.Column, v any) any {
	if b, ok := v.([]byte); ok && c.Type.Binary() {
		return base64.StdEncoding.EncodeToString(b)
	}
	return convertOutput(c, v)
}

// ColumnType declares integer primary keys inline so SQLite aliases them
// to the rowid.
func (d sqliteDialect) ColumnType(c *schema.Column, _ bool) string {
	s := d.typeSize(c) + nullType(c)
	if c.PK {
		s += " PRIMARY KEY"
		if c.Type == field.TypeInteger {
			s += " AUTOINCREMENT"
		}
	}
	return s
}

func (d sqliteDialect) CreateTable(t *schema.Table, refs func(string) *schema.Table) ([]string, error) {
	return d.createTable(t, refs, func(c *schema.Column) string { return d.ColumnType(c, false) }, true)
}

func (d sqliteDialect) AddColumn(t *schema.Table, c *schema.Column) ([]string, error) {
	col := *c
	col.PK = false
	return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", d.Quote(t.RealName), d.Quote(c.RealName), d.ColumnType(&col, false))}, nil
}

func (sqliteDialect) RetypeColumn(t *schema.Table, _ *schema.Column) ([]string, error) {
	return nil, unsupported("retype column", t)
}

func (sqliteDialect) SetNullable(t *schema.Table, _ *schema.Column) ([]string, error) {
	return nil, unsupported("set nullable", t)
}

func (sqliteDialect) AddPrimaryKey(t *schema.Table, _ *schema.Column) ([]string, error) {
	return nil, unsupported("add primary key", t)
}

func (sqliteDialect) DropPrimaryKey(t *schema.Table, _ *schema.Column) ([]string, error) {
	return nil, unsupported("drop primary key", t)
}

func (sqliteDialect) AddForeignKey(t *schema.Table, _ *schema.Column, _ *schema.Table) ([]string, error) {
	return nil, unsupported("add foreign key", t)
}

func (sqliteDialect) DropForeignKey(t *schema.Table, _ *schema.Column) ([]string, error) {
	return nil, unsupported("drop foreign key", t)
}

func (sqliteDialect) TablesQuery() string {
	return `SELECT "name" AS "TABLE_NAME", "type" AS "TABLE_TYPE" FROM sqlite_master ` +
		`WHERE "type" IN ('table', 'view') AND "name" NOT LIKE 'sqlite_%' ORDER BY "name"`
}

func (sqliteDialect) ColumnsQuery() string {
	return `SELECT "name" AS "COLUMN_NAME", CASE WHEN "notnull" = 1 THEN 'FALSE' ELSE 'TRUE' END AS "IS_NULLABLE", ` +
		`lower("type") AS "DATA_TYPE", NULL AS "CHARACTER_MAXIMUM_LENGTH", NULL AS "NUMERIC_PRECISION", ` +
		`NULL AS "NUMERIC_SCALE", lower("type") AS "COLUMN_TYPE" FROM pragma_table_info(?) ORDER BY "cid"`
}

func (sqliteDialect) PrimaryKeysQuery() string {
	return `SELECT "name" AS "COLUMN_NAME" FROM pragma_table_info(?) WHERE "pk" > 0`
}

func (sqliteDialect) ForeignKeysQuery() string {
	return `SELECT "from" AS "COLUMN_NAME", "table" AS "REFERENCED_TABLE_NAME" FROM pragma_foreign_key_list(?)`
}

func (sqliteDialect) TableKind(typ string) (schema.Kind, bool) {
	switch strings.ToLower(typ) {
	case "table":
		return schema.KindTable, true
	case "view":
		return schema.KindView, true
	}
	return "", false
}
