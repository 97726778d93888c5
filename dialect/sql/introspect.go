package sql

import "github.com/syssam/dbrest/schema"

// Introspector supplies the catalog queries of a dialect. Every query
// converges on the same row shape so reflection is dialect independent:
//
//	TablesQuery:      TABLE_NAME, TABLE_TYPE
//	ColumnsQuery:     COLUMN_NAME, IS_NULLABLE, DATA_TYPE, CHARACTER_MAXIMUM_LENGTH,
//	                  NUMERIC_PRECISION, NUMERIC_SCALE, COLUMN_TYPE
//	PrimaryKeysQuery: COLUMN_NAME
//	ForeignKeysQuery: COLUMN_NAME, REFERENCED_TABLE_NAME
//
// The column and key queries take the physical table name as their only argument.
type Introspector interface {
	TablesQuery() string
	ColumnsQuery() string
	PrimaryKeysQuery() string
	ForeignKeysQuery() string
	// TableKind maps a TABLE_TYPE value onto a table kind.
	TableKind(typ string) (schema.Kind, bool)
	// SystemTable reports if a listed table belongs to the database itself.
	SystemTable(name string) bool
	// NativeType returns the type to map for a column row. Most dialects
	// use DATA_TYPE; MySQL needs COLUMN_TYPE to tell tinyint(1) apart.
	NativeType(dataType, columnType string) string
}

func (base) NativeType(dataType, _ string) string { return dataType }

func (base) SystemTable(string) bool { return false }
