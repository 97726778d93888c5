// Package dbrest exposes relational tables as generic, filterable and
// joinable record collections.
//
// The root package holds what every layer shares: the error kinds surfaced
// to callers and the Cache collaborator used to persist reflected schema
// metadata. The engine itself lives in subpackages:
//
//   - schema, schema/field: the Table/Column model and canonical types
//   - querylanguage: condition trees and the filter DSL
//   - pathtree: ordered trie used for filter grouping and join planning
//   - dialect, dialect/sql: drivers and per-dialect SQL generation
//   - dialect/sql/inspect: schema reflection and DDL
//   - dialect/sql/sqlgraph: record store and relation joins
//   - privacy: row-level conditions threaded through context
//   - service: the request-level record service
//
// Errors are typed and matchable with errors.Is against the sentinels:
//
//	rec, err := svc.Read(ctx, "orders", "7", nil)
//	if dbrest.IsRecordNotFound(err) {
//	    // 404
//	}
package dbrest
