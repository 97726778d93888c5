// Package field defines the canonical column type vocabulary.
//
// Reflected columns of every dialect are described with one of these types:
//
//	integer, bigint, varchar, clob, varbinary, blob, decimal, float,
//	double, boolean, date, time, timestamp, geometry, char
//
// Anything a dialect reports outside this whitelist is degraded to clob:
//
//	field.Parse("money")   // field.TypeClob
//	field.Parse("VARCHAR") // field.TypeVarchar
//
// The degradation only affects type metadata; stored values are never touched.
package field
