package sql

import (
	"fmt"
	"strings"

	"github.com/syssam/dbrest"
	"github.com/syssam/dbrest/schema"
)

// DDL generates the statements of a schema change. Tables and columns are
// addressed by their physical names. Operations a dialect can not express
// return an UnsupportedOperationError.
type DDL interface {
	// ColumnType returns the full column definition type: native type, size,
	// nullability and auto increment.
	ColumnType(c *schema.Column, update bool) string
	CreateTable(t *schema.Table, refs func(table string) *schema.Table) ([]string, error)
	DropTable(t *schema.Table) ([]string, error)
	RenameTable(t *schema.Table, name string) ([]string, error)
	AddColumn(t *schema.Table, c *schema.Column) ([]string, error)
	DropColumn(t *schema.Table, c *schema.Column) ([]string, error)
	RenameColumn(t *schema.Table, c *schema.Column, name string) ([]string, error)
	// RetypeColumn changes the type of c to the type c carries.
	RetypeColumn(t *schema.Table, c *schema.Column) ([]string, error)
	// SetNullable changes the nullability of c to c.Nullable.
	SetNullable(t *schema.Table, c *schema.Column) ([]string, error)
	AddPrimaryKey(t *schema.Table, c *schema.Column) ([]string, error)
	DropPrimaryKey(t *schema.Table, c *schema.Column) ([]string, error)
	AddForeignKey(t *schema.Table, c *schema.Column, ref *schema.Table) ([]string, error)
	DropForeignKey(t *schema.Table, c *schema.Column) ([]string, error)
}

func unsupported(op string, t *schema.Table) error {
	return dbrest.NewUnsupportedOperationError(op, t.Name)
}

// ConstraintName returns the name of the constraint of kind suffix
// ("pkey", "fkey", "seq") on a column.
func ConstraintName(table, column, suffix string) string {
	return table + "_" + column + "_" + suffix
}

// typeSize returns the native type of c followed by its size arguments.
func (b base) typeSize(c *schema.Column) string {
	native := b.types.fromCanonical(c.Type)
	if !b.types.sized(native) {
		return native
	}
	switch {
	case c.Type.HasPrecision():
		return fmt.Sprintf("%s(%d,%d)", native, c.EffectivePrecision(), c.EffectiveScale())
	case c.Type.HasLength():
		return fmt.Sprintf("%s(%d)", native, c.EffectiveLength())
	default:
		return native
	}
}

func nullType(c *schema.Column) string {
	if c.Nullable {
		return " NULL"
	}
	return " NOT NULL"
}

// ColumnType implements the DDL interface for dialects without inline
// auto increment.
func (b base) ColumnType(c *schema.Column, _ bool) string {
	return b.typeSize(c) + nullType(c)
}

// createTable assembles CREATE TABLE. inline reports if the primary key
// is declared on the column itself rather than as a named constraint.
func (b base) createTable(t *schema.Table, refs func(string) *schema.Table, colType func(*schema.Column) string, inline bool) ([]string, error) {
	var fields, constraints []string
	for _, c := range t.Columns {
		name := b.Quote(c.RealName)
		fields = append(fields, name+" "+colType(c))
		if c.PK && !inline {
			constraints = append(constraints, fmt.Sprintf("CONSTRAINT %s PRIMARY KEY (%s)",
				b.Quote(ConstraintName(t.RealName, c.RealName, "pkey")), name))
		}
		if c.IsForeignKey() {
			fk, err := b.foreignKey(t, c, refs(c.FK))
			if err != nil {
				return nil, err
			}
			constraints = append(constraints, fk)
		}
	}
	return []string{fmt.Sprintf("CREATE TABLE %s (%s)", b.Quote(t.RealName), strings.Join(append(fields, constraints...), ", "))}, nil
}

func (b base) foreignKey(t *schema.Table, c *schema.Column, ref *schema.Table) (string, error) {
	if ref == nil || ref.PrimaryKey() == nil {
		return "", dbrest.NewTableNotFoundError(c.FK)
	}
	return fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		b.Quote(ConstraintName(t.RealName, c.RealName, "fkey")), b.Quote(c.RealName),
		b.Quote(ref.RealName), b.Quote(ref.PrimaryKey().RealName)), nil
}

func (b base) DropTable(t *schema.Table) ([]string, error) {
	return []string{"DROP TABLE " + b.Quote(t.RealName)}, nil
}

func (b base) RenameTable(t *schema.Table, name string) ([]string, error) {
	return []string{fmt.Sprintf("ALTER TABLE %s RENAME TO %s", b.Quote(t.RealName), b.Quote(name))}, nil
}

func (b base) DropColumn(t *schema.Table, c *schema.Column) ([]string, error) {
	return []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", b.Quote(t.RealName), b.Quote(c.RealName))}, nil
}

func (b base) RenameColumn(t *schema.Table, c *schema.Column, name string) ([]string, error) {
	return []string{fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		b.Quote(t.RealName), b.Quote(c.RealName), b.Quote(name))}, nil
}

func (b base) AddForeignKey(t *schema.Table, c *schema.Column, ref *schema.Table) ([]string, error) {
	fk, err := b.foreignKey(t, c, ref)
	if err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("ALTER TABLE %s ADD %s", b.Quote(t.RealName), fk)}, nil
}

func (b base) DropForeignKey(t *schema.Table, c *schema.Column) ([]string, error) {
	return []string{fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s",
		b.Quote(t.RealName), b.Quote(ConstraintName(t.RealName, c.RealName, "fkey")))}, nil
}
