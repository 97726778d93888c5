package field

import "strings"

// A Type is a canonical column type. Every dialect maps its native
// column types onto this vocabulary and back.
type Type string

// Canonical column types.
const (
	TypeInteger   Type = "integer"
	TypeBigInt    Type = "bigint"
	TypeVarchar   Type = "varchar"
	TypeClob      Type = "clob"
	TypeVarBinary Type = "varbinary"
	TypeBlob      Type = "blob"
	TypeDecimal   Type = "decimal"
	TypeFloat     Type = "float"
	TypeDouble    Type = "double"
	TypeBoolean   Type = "boolean"
	TypeDate      Type = "date"
	TypeTime      Type = "time"
	TypeTimestamp Type = "timestamp"
	TypeGeometry  Type = "geometry"
	TypeChar      Type = "char"
)

// Default sizes applied when a column does not carry its own.
const (
	DefaultLength    = 255
	DefaultPrecision = 19
	DefaultScale     = 4
)

// Types lists the canonical whitelist in a stable order.
var Types = []Type{
	TypeInteger, TypeBigInt, TypeVarchar, TypeClob, TypeVarBinary,
	TypeBlob, TypeDecimal, TypeFloat, TypeDouble, TypeBoolean,
	TypeDate, TypeTime, TypeTimestamp, TypeGeometry, TypeChar,
}

var valid = func() map[Type]bool {
	m := make(map[Type]bool, len(Types))
	for _, t := range Types {
		m[t] = true
	}
	return m
}()

// Parse returns the canonical type named by s. Names outside the
// whitelist collapse to TypeClob.
func Parse(s string) Type {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !valid[t] {
		return TypeClob
	}
	return t
}

// Valid reports if t is part of the canonical whitelist.
func (t Type) Valid() bool { return valid[t] }

// String implements fmt.Stringer.
func (t Type) String() string { return string(t) }

// HasLength reports if the type carries a length.
func (t Type) HasLength() bool { return t == TypeVarchar || t == TypeVarBinary }

// HasPrecision reports if the type carries a precision and a scale.
func (t Type) HasPrecision() bool { return t == TypeDecimal }

// Binary reports if values of the type are exchanged as base64.
func (t Type) Binary() bool { return t == TypeBlob || t == TypeVarBinary }

// Integer reports if the type holds whole numbers.
func (t Type) Integer() bool { return t == TypeInteger || t == TypeBigInt }

// Numeric reports if the type holds numbers of any kind.
func (t Type) Numeric() bool {
	switch t {
	case TypeInteger, TypeBigInt, TypeDecimal, TypeFloat, TypeDouble:
		return true
	}
	return false
}

// Boolean reports if the type is TypeBoolean.
func (t Type) Boolean() bool { return t == TypeBoolean }

// Geometry reports if the type is TypeGeometry.
func (t Type) Geometry() bool { return t == TypeGeometry }

// AutoIncrement reports if a primary key of the type can be generated by the database.
func (t Type) AutoIncrement() bool { return t.Integer() }
