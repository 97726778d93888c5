package sql

import (
	"fmt"
	"strings"

	"github.com/syssam/dbrest/dialect"
	"github.com/syssam/dbrest/schema"
	"github.com/syssam/dbrest/schema/field"
)

var mysqlTypes = &typeMaps{
	to: map[string]field.Type{
		"tinyint(1)": field.TypeBoolean,
		"bit(1)":     field.TypeBoolean,
		"tinyblob":   field.TypeBlob,
		"mediumblob": field.TypeBlob,
		"longblob":   field.TypeBlob,
		"tinytext":   field.TypeClob,
		"mediumtext": field.TypeClob,
		"longtext":   field.TypeClob,
		"text":       field.TypeClob,
		"mediumint":  field.TypeInteger,
		"int":        field.TypeInteger,
		"year":       field.TypeInteger,
		"polygon":    field.TypeGeometry,
		"point":      field.TypeGeometry,
		"datetime":   field.TypeTimestamp,
		"enum":       field.TypeVarchar,
		"set":        field.TypeVarchar,
		"json":       field.TypeClob,
	},
	from: map[field.Type]string{
		field.TypeClob:      "longtext",
		field.TypeBoolean:   "tinyint(1)",
		field.TypeBlob:      "longblob",
		field.TypeTimestamp: "datetime",
	},
}

type mysqlDialect struct{ base }

// MySQL returns the MySQL/MariaDB dialect builder.
func MySQL() DialectBuilder {
	return mysqlDialect{base{name: dialect.MySQL, quote: '`', types: mysqlTypes}}
}

func (mysqlDialect) Paginate(offset, limit int, _ bool) string {
	if limit < 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d, %d", max(offset, 0), limit)
}

func (mysqlDialect) EncodeValue(c *schema.Column, ph string) string {
	switch {
	case c.Type.Boolean():
		return "IFNULL(IF(" + ph + ",TRUE,FALSE),NULL)"
	case c.Type.Binary():
		return "FROM_BASE64(" + ph + ")"
	case c.Type.Geometry():
		return "ST_GeomFromText(" + ph + ")"
	}
	return ph
}

func (mysqlDialect) DecodeColumn(c *schema.Column, col string) string {
	switch {
	case c.Type.Binary():
		return "TO_BASE64(" + col + ")"
	case c.Type.Geometry():
		return "ST_AsText(" + col + ")"
	}
	return col
}

func (mysqlDialect) Insert(table string, columns, values []string, _ string) string {
	return "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ") VALUES (" + strings.Join(values, ", ") + ")"
}

func (mysqlDialect) LastInsertID() string { return "SELECT LAST_INSERT_ID()" }

func (d mysqlDialect) ColumnType(c *schema.Column, _ bool) string {
	s := d.typeSize(c) + nullType(c)
	if c.PK && c.Type.AutoIncrement() {
		s += " AUTO_INCREMENT"
	}
	return s
}

func (d mysqlDialect) CreateTable(t *schema.Table, refs func(string) *schema.Table) ([]string, error) {
	return d.createTable(t, refs, func(c *schema.Column) string { return d.ColumnType(c, false) }, false)
}

func (d mysqlDialect) RenameTable(t *schema.Table, name string) ([]string, error) {
	return []string{fmt.Sprintf("RENAME TABLE %s TO %s", d.Quote(t.RealName), d.Quote(name))}, nil
}

func (d mysqlDialect) AddColumn(t *schema.Table, c *schema.Column) ([]string, error) {
	return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", d.Quote(t.RealName), d.Quote(c.RealName), d.ColumnType(c, false))}, nil
}

func (d mysqlDialect) RenameColumn(t *schema.Table, c *schema.Column, name string) ([]string, error) {
	return []string{fmt.Sprintf("ALTER TABLE %s CHANGE %s %s %s",
		d.Quote(t.RealName), d.Quote(c.RealName), d.Quote(name), d.ColumnType(c, true))}, nil
}

func (d mysqlDialect) modify(t *schema.Table, c *schema.Column) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s MODIFY %s %s", d.Quote(t.RealName), d.Quote(c.RealName), d.ColumnType(c, true))}
}

func (d mysqlDialect) RetypeColumn(t *schema.Table, c *schema.Column) ([]string, error) {
	return d.modify(t, c), nil
}

func (d mysqlDialect) SetNullable(t *schema.Table, c *schema.Column) ([]string, error) {
	return d.modify(t, c), nil
}

func (d mysqlDialect) AddPrimaryKey(t *schema.Table, c *schema.Column) ([]string, error) {
	pk := *c
	pk.PK, pk.Nullable = true, false
	return []string{fmt.Sprintf("ALTER TABLE %s MODIFY %s %s PRIMARY KEY",
		d.Quote(t.RealName), d.Quote(c.RealName), d.ColumnType(&pk, true))}, nil
}

func (d mysqlDialect) DropPrimaryKey(t *schema.Table, c *schema.Column) ([]string, error) {
	col := *c
	col.PK = false
	return append(d.modify(t, &col), fmt.Sprintf("ALTER TABLE %s DROP PRIMARY KEY", d.Quote(t.RealName))), nil
}

func (d mysqlDialect) DropForeignKey(t *schema.Table, c *schema.Column) ([]string, error) {
	return []string{fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s",
		d.Quote(t.RealName), d.Quote(ConstraintName(t.RealName, c.RealName, "fkey")))}, nil
}

func (mysqlDialect) TablesQuery() string {
	return "SELECT TABLE_NAME, TABLE_TYPE FROM INFORMATION_SCHEMA.TABLES " +
		"WHERE TABLE_TYPE IN ('BASE TABLE', 'VIEW') AND TABLE_SCHEMA = DATABASE() ORDER BY TABLE_NAME"
}

func (mysqlDialect) ColumnsQuery() string {
	return "SELECT COLUMN_NAME, IS_NULLABLE, DATA_TYPE, CHARACTER_MAXIMUM_LENGTH, NUMERIC_PRECISION, NUMERIC_SCALE, COLUMN_TYPE " +
		"FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_NAME = ? AND TABLE_SCHEMA = DATABASE() ORDER BY ORDINAL_POSITION"
}

func (mysqlDialect) PrimaryKeysQuery() string {
	return "SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS " +
		"WHERE COLUMN_KEY = 'PRI' AND TABLE_NAME = ? AND TABLE_SCHEMA = DATABASE()"
}

func (mysqlDialect) ForeignKeysQuery() string {
	return "SELECT COLUMN_NAME, REFERENCED_TABLE_NAME FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE " +
		"WHERE REFERENCED_TABLE_NAME IS NOT NULL AND TABLE_NAME = ? AND TABLE_SCHEMA = DATABASE()"
}

func (mysqlDialect) TableKind(typ string) (schema.Kind, bool) {
	switch typ {
	case "BASE TABLE":
		return schema.KindTable, true
	case "VIEW":
		return schema.KindView, true
	}
	return "", false
}

func (mysqlDialect) NativeType(dataType, columnType string) string {
	ct := strings.ToLower(columnType)
	if strings.HasPrefix(ct, "tinyint(1)") || strings.HasPrefix(ct, "bit(1)") {
		return ct[:strings.Index(ct, ")")+1]
	}
	return dataType
}
