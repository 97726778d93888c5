package schema

import "github.com/syssam/dbrest/schema/field"

// Column describes a single reflected column.
type Column struct {
	Name      string     `msgpack:"name" yaml:"name"`
	RealName  string     `msgpack:"real_name" yaml:"real_name,omitempty"`
	Type      field.Type `msgpack:"type" yaml:"type"`
	Length    int        `msgpack:"length,omitempty" yaml:"length,omitempty"`
	Precision int        `msgpack:"precision,omitempty" yaml:"precision,omitempty"`
	Scale     int        `msgpack:"scale,omitempty" yaml:"scale,omitempty"`
	Nullable  bool       `msgpack:"nullable" yaml:"nullable"`
	PK        bool       `msgpack:"pk,omitempty" yaml:"pk,omitempty"`
	// FK holds the logical name of the referenced table, or "".
	FK string `msgpack:"fk,omitempty" yaml:"fk,omitempty"`
}

// ColumnOption configures a Column built with NewColumn.
type ColumnOption func(*Column)

// RealName sets the physical name of the column.
func RealName(name string) ColumnOption {
	return func(c *Column) { c.RealName = name }
}

// Length sets the column length.
func Length(n int) ColumnOption {
	return func(c *Column) { c.Length = n }
}

// Precision sets the column precision and scale.
func Precision(precision, scale int) ColumnOption {
	return func(c *Column) {
		c.Precision = precision
		c.Scale = scale
	}
}

// Nullable marks the column as nullable.
func Nullable() ColumnOption {
	return func(c *Column) { c.Nullable = true }
}

// PrimaryKey marks the column as the primary key.
func PrimaryKey() ColumnOption {
	return func(c *Column) { c.PK = true }
}

// References marks the column as a foreign key to the given table.
func References(table string) ColumnOption {
	return func(c *Column) { c.FK = table }
}

// NewColumn returns a sanitized column.
func NewColumn(name string, typ field.Type, opts ...ColumnOption) *Column {
	c := &Column{Name: name, Type: typ}
	for _, opt := range opts {
		opt(c)
	}
	c.sanitize()
	return c
}

// sanitize drops sizes that do not apply to the column type.
func (c *Column) sanitize() {
	if c.RealName == "" {
		c.RealName = c.Name
	}
	if !c.Type.Valid() {
		c.Type = field.TypeClob
	}
	if !c.Type.HasLength() {
		c.Length = 0
	}
	if !c.Type.HasPrecision() {
		c.Precision, c.Scale = 0, 0
	}
}

// EffectiveLength returns the length, or the type default when unset.
func (c *Column) EffectiveLength() int {
	if !c.Type.HasLength() {
		return 0
	}
	if c.Length > 0 {
		return c.Length
	}
	return field.DefaultLength
}

// EffectivePrecision returns the precision, or the type default when unset.
func (c *Column) EffectivePrecision() int {
	if !c.Type.HasPrecision() {
		return 0
	}
	if c.Precision > 0 {
		return c.Precision
	}
	return field.DefaultPrecision
}

// EffectiveScale returns the scale, or the type default when neither
// precision nor scale is set.
func (c *Column) EffectiveScale() int {
	if !c.Type.HasPrecision() {
		return 0
	}
	if c.Scale > 0 || c.Precision > 0 {
		return c.Scale
	}
	return field.DefaultScale
}

// IsForeignKey reports if the column references another table.
func (c *Column) IsForeignKey() bool { return c.FK != "" }

// Clone returns a copy of the column.
func (c *Column) Clone() *Column {
	cc := *c
	return &cc
}
