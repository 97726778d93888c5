// Package sql implements the SQL side of the record engine: database/sql
// backed drivers, a lazily connected driver, per-dialect statement
// fragments and the statement builder of the record store.
//
// # Dialects
//
// Every supported database is described by one DialectBuilder, selected
// once by name:
//
//	d, err := sql.Dialect(dialect.Postgres)
//
// A DialectBuilder quotes identifiers, numbers placeholders, paginates,
// encodes and decodes binary, boolean and geometry values, maps native
// column types onto the canonical vocabulary of package field, generates
// DDL and supplies the catalog queries used for reflection.
//
// # Statements
//
// Builder renders condition trees of package querylanguage and assembles
// the statements of the record store:
//
//	b := sql.NewBuilder(sql.MustDialect(dialect.MySQL))
//	query, args, err := b.Select(orders, nil,
//	    querylanguage.Column(total, querylanguage.OpGT, "100"),
//	    []sql.Order{sql.Desc("id")}, 0, 10)
//	// SELECT `id`, `customer_id`, `total` FROM `orders` WHERE `total` > ? ORDER BY `id` DESC LIMIT 0, 10
//
// # Drivers
//
// Open wraps database/sql and derives the dialect from the driver name.
// Lazy defers connecting until the first statement and supports replacing
// the connection with Reconstruct once in-flight statements completed.
// NewStatsDriver counts statements and reports slow ones.
package sql
