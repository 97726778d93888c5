package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/dbrest/dialect"
	"github.com/syssam/dbrest/schema"
	"github.com/syssam/dbrest/schema/field"
)

var sqlserverTypes = &typeMaps{
	to: map[string]field.Type{
		"bit":              field.TypeBoolean,
		"datetime":         field.TypeTimestamp,
		"datetime2":        field.TypeTimestamp,
		"float":            field.TypeDouble,
		"image":            field.TypeBlob,
		"int":              field.TypeInteger,
		"money":            field.TypeDecimal,
		"ntext":            field.TypeClob,
		"smalldatetime":    field.TypeTimestamp,
		"smallmoney":       field.TypeDecimal,
		"text":             field.TypeClob,
		"timestamp":        field.TypeVarBinary,
		"udt":              field.TypeVarBinary,
		"uniqueidentifier": field.TypeChar,
		"xml":              field.TypeClob,
	},
	from: map[field.Type]string{
		field.TypeBoolean:   "bit",
		field.TypeVarchar:   "nvarchar",
		field.TypeClob:      "ntext",
		field.TypeBlob:      "image",
		field.TypeTime:      "time(0)",
		field.TypeTimestamp: "datetime2(0)",
		field.TypeDouble:    "float",
		field.TypeFloat:     "real",
	},
	unsized: map[string]bool{"ntext": true, "image": true},
}

type sqlserverDialect struct{ base }

// SQLServer returns the Microsoft SQL Server dialect builder.
func SQLServer() DialectBuilder {
	return sqlserverDialect{base{name: dialect.SQLServer, quote: '"', types: sqlserverTypes}}
}

func (sqlserverDialect) Placeholder(n int) string { return "@p" + strconv.Itoa(n) }

// Paginate uses OFFSET/FETCH, which requires an ORDER BY clause.
func (sqlserverDialect) Paginate(offset, limit int, ordered bool) string {
	if limit < 0 {
		return ""
	}
	var b strings.Builder
	if !ordered {
		b.WriteString(" ORDER BY (SELECT NULL)")
	}
	fmt.Fprintf(&b, " OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", max(offset, 0), limit)
	return b.String()
}

func (sqlserverDialect) Like(col, ph string) string { return col + ` LIKE ` + ph + ` ESCAPE '\'` }

func (sqlserverDialect) Spatial(fn, col, arg string) string {
	method := strings.Replace(fn, "ST_", "ST", 1)
	if arg == "" {
		return fmt.Sprintf("%s.%s()=1", col, method)
	}
	return fmt.Sprintf("%s.%s(geometry::STGeomFromText(%s,0))=1", col, method, arg)
}

func (sqlserverDialect) EncodeValue(c *schema.Column, ph string) string {
	switch {
	case c.Type.Binary():
		return "CONVERT(XML, " + ph + ").value('.','varbinary(max)')"
	case c.Type.Geometry():
		return "geometry::STGeomFromText(" + ph + ",0)"
	}
	return ph
}

func (sqlserverDialect) DecodeColumn(c *schema.Column, col string) string {
	switch {
	case c.Type.Binary():
		return "CASE WHEN " + col + " IS NULL THEN NULL ELSE (SELECT CAST(" + col + " AS varbinary(max)) FOR XML PATH(''), BINARY BASE64) END"
	case c.Type.Geometry():
		return "REPLACE(" + col + ".STAsText(),' (','(')"
	}
	return col
}

func (sqlserverDialect) Insert(table string, columns, values []string, pk string) string {
	var output string
	if pk != "" {
		output = " OUTPUT INSERTED." + pk
	}
	if len(columns) == 0 {
		return "INSERT INTO " + table + output + " DEFAULT VALUES"
	}
	return "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ")" + output + " VALUES (" + strings.Join(values, ", ") + ")"
}

func (sqlserverDialect) LastInsertID() string { return "SELECT SCOPE_IDENTITY()" }

func (d sqlserverDialect) ColumnType(c *schema.Column, update bool) string {
	s := d.typeSize(c) + nullType(c)
	if !update && c.PK && c.Type.AutoIncrement() {
		s += " IDENTITY(1,1)"
	}
	return s
}

func (d sqlserverDialect) CreateTable(t *schema.Table, refs func(string) *schema.Table) ([]string, error) {
	return d.createTable(t, refs, func(c *schema.Column) string { return d.ColumnType(c, false) }, false)
}

func (d sqlserverDialect) RenameTable(t *schema.Table, name string) ([]string, error) {
	return []string{fmt.Sprintf("EXEC sp_rename '%s', '%s'", escapeQuote(t.RealName), escapeQuote(name))}, nil
}

func (d sqlserverDialect) AddColumn(t *schema.Table, c *schema.Column) ([]string, error) {
	return []string{fmt.Sprintf("ALTER TABLE %s ADD %s %s", d.Quote(t.RealName), d.Quote(c.RealName), d.ColumnType(c, true))}, nil
}

func (d sqlserverDialect) RenameColumn(t *schema.Table, c *schema.Column, name string) ([]string, error) {
	return []string{fmt.Sprintf("EXEC sp_rename '%s.%s', '%s', 'COLUMN'",
		escapeQuote(t.RealName), escapeQuote(c.RealName), escapeQuote(name))}, nil
}

func (d sqlserverDialect) alter(t *schema.Table, c *schema.Column) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s", d.Quote(t.RealName), d.Quote(c.RealName), d.ColumnType(c, true))}
}

func (d sqlserverDialect) RetypeColumn(t *schema.Table, c *schema.Column) ([]string, error) {
	return d.alter(t, c), nil
}

func (d sqlserverDialect) SetNullable(t *schema.Table, c *schema.Column) ([]string, error) {
	return d.alter(t, c), nil
}

// AddPrimaryKey bootstraps a sequence for integer keys and restarts it
// after the largest stored key.
func (d sqlserverDialect) AddPrimaryKey(t *schema.Table, c *schema.Column) ([]string, error) {
	table, col := d.Quote(t.RealName), d.Quote(c.RealName)
	pk := *c
	pk.Nullable = false
	stmts := append(d.alter(t, &pk),
		fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)", table, d.Quote(ConstraintName(t.RealName, c.RealName, "pkey")), col),
	)
	if !c.Type.AutoIncrement() {
		return stmts, nil
	}
	seq := d.Quote(ConstraintName(t.RealName, c.RealName, "seq"))
	typ := "int"
	if c.Type == field.TypeBigInt {
		typ = "bigint"
	}
	return append(stmts,
		fmt.Sprintf("CREATE SEQUENCE %s AS %s START WITH 1", seq, typ),
		fmt.Sprintf("DECLARE @next bigint = (SELECT COALESCE(MAX(%s), 0) + 1 FROM %s); "+
			"EXEC('ALTER SEQUENCE %s RESTART WITH ' + CAST(@next AS varchar(20)))", col, table, escapeQuote(seq)),
		fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s DEFAULT NEXT VALUE FOR %s FOR %s",
			table, d.Quote(ConstraintName(t.RealName, c.RealName, "default")), seq, col),
	), nil
}

func (d sqlserverDialect) DropPrimaryKey(t *schema.Table, c *schema.Column) ([]string, error) {
	table := d.Quote(t.RealName)
	var stmts []string
	if c.Type.AutoIncrement() {
		stmts = append(stmts,
			fmt.Sprintf("IF OBJECT_ID('%s') IS NOT NULL ALTER TABLE %s DROP CONSTRAINT %s",
				escapeQuote(ConstraintName(t.RealName, c.RealName, "default")), table, d.Quote(ConstraintName(t.RealName, c.RealName, "default"))),
			fmt.Sprintf("DROP SEQUENCE IF EXISTS %s", d.Quote(ConstraintName(t.RealName, c.RealName, "seq"))),
		)
	}
	return append(stmts, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", table, d.Quote(ConstraintName(t.RealName, c.RealName, "pkey")))), nil
}

func (sqlserverDialect) TablesQuery() string {
	return `SELECT o.name AS "TABLE_NAME", o.type AS "TABLE_TYPE" FROM sys.objects o ` +
		`WHERE o.type IN ('U', 'V') AND o.is_ms_shipped = 0 ORDER BY "TABLE_NAME"`
}

func (sqlserverDialect) ColumnsQuery() string {
	return `SELECT c.name AS "COLUMN_NAME", c.is_nullable AS "IS_NULLABLE", t.name AS "DATA_TYPE", ` +
		`(c.max_length / 2) AS "CHARACTER_MAXIMUM_LENGTH", c.precision AS "NUMERIC_PRECISION", c.scale AS "NUMERIC_SCALE", ` +
		`'' AS "COLUMN_TYPE" FROM sys.columns c INNER JOIN sys.types t ON c.user_type_id = t.user_type_id ` +
		`WHERE c.object_id = OBJECT_ID(@p1) ORDER BY c.column_id`
}

func (sqlserverDialect) PrimaryKeysQuery() string {
	return `SELECT c.name AS "COLUMN_NAME" FROM sys.key_constraints kc ` +
		`INNER JOIN sys.objects t ON t.object_id = kc.parent_object_id ` +
		`INNER JOIN sys.index_columns ic ON kc.parent_object_id = ic.object_id AND kc.unique_index_id = ic.index_id ` +
		`INNER JOIN sys.columns c ON ic.object_id = c.object_id AND ic.column_id = c.column_id ` +
		`WHERE kc.type = 'PK' AND t.object_id = OBJECT_ID(@p1)`
}

func (sqlserverDialect) ForeignKeysQuery() string {
	return `SELECT c.name AS "COLUMN_NAME", OBJECT_NAME(f.referenced_object_id) AS "REFERENCED_TABLE_NAME" ` +
		`FROM sys.foreign_keys AS f INNER JOIN sys.foreign_key_columns AS fc ON f.object_id = fc.constraint_object_id ` +
		`INNER JOIN sys.columns c ON fc.parent_column_id = c.column_id AND fc.parent_object_id = c.object_id ` +
		`WHERE f.parent_object_id = OBJECT_ID(@p1)`
}

func (sqlserverDialect) TableKind(typ string) (schema.Kind, bool) {
	switch strings.TrimSpace(typ) {
	case "U":
		return schema.KindTable, true
	case "V":
		return schema.KindView, true
	}
	return "", false
}

func (sqlserverDialect) SystemTable(name string) bool { return name == "sysdiagrams" }
