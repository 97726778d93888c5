package sql

import (
	"regexp"
	"strings"

	"github.com/syssam/dbrest/schema/field"
)

// TypeConverter maps native column types to canonical types and back.
// FromCanonical(ToCanonical(t)) round-trips for every canonical type, except
// where a dialect has no distinct native type (Postgres varbinary and blob
// both map to bytea).
type TypeConverter interface {
	// ToCanonical maps a native type, with or without size arguments, to a
	// canonical type. Unknown types map to clob.
	ToCanonical(native string) field.Type
	// FromCanonical returns the native type used to declare a column of type t.
	FromCanonical(t field.Type) string
}

// simplified maps generic native names onto the canonical vocabulary when
// a dialect table has no entry.
var simplified = map[string]field.Type{
	"longvarchar":              field.TypeClob,
	"nvarchar":                 field.TypeVarchar,
	"longnvarchar":             field.TypeClob,
	"binary":                   field.TypeVarBinary,
	"longvarbinary":            field.TypeBlob,
	"tinyint":                  field.TypeInteger,
	"smallint":                 field.TypeInteger,
	"real":                     field.TypeFloat,
	"numeric":                  field.TypeDecimal,
	"nclob":                    field.TypeClob,
	"nchar":                    field.TypeChar,
	"time_with_timezone":       field.TypeTime,
	"timestamp_with_timezone":  field.TypeTimestamp,
	"time with time zone":      field.TypeTime,
	"timestamp with time zone": field.TypeTimestamp,
}

type typeMaps struct {
	to   map[string]field.Type
	from map[field.Type]string
	// unsized lists native types that take no size arguments.
	unsized map[string]bool
}

var sizeRe = regexp.MustCompile(`\s*\(.*\)\s*`)

// BaseType strips size arguments from a native type: "varchar(255)" is "varchar".
func BaseType(native string) string {
	return strings.TrimSpace(sizeRe.ReplaceAllString(strings.ToLower(native), " "))
}

func (m *typeMaps) toCanonical(native string) field.Type {
	full := strings.ToLower(strings.TrimSpace(native))
	if t, ok := m.to[full]; ok {
		return t
	}
	name := BaseType(full)
	if t, ok := m.to[name]; ok {
		return t
	}
	if t, ok := simplified[name]; ok {
		return t
	}
	return field.Parse(name)
}

func (m *typeMaps) fromCanonical(t field.Type) string {
	if n, ok := m.from[t]; ok {
		return n
	}
	return string(t)
}

// sized reports if a native type takes size arguments.
func (m *typeMaps) sized(native string) bool {
	return !m.unsized[native] && !strings.Contains(native, "(")
}
