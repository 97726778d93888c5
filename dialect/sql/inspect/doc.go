// Package inspect reflects table definitions from the database catalog
// and changes them.
//
// A Reflector lists the tables of a database and reads their columns,
// primary and foreign keys through the catalog queries of the dialect.
// Results are cached as encoded entries and refreshed on demand:
//
//	r, err := inspect.NewReflector(drv, inspect.WithTables("orders", "customers"))
//	if err != nil {
//		return err
//	}
//	orders, err := r.Table(ctx, "orders")
//
// Views expose their "id" column as primary key, and foreign keys of views
// are inferred from column names by InferForeignKeys.
//
// A Definer applies structural changes such as AddColumn or SetPrimaryKey.
// Changes are validated with ValidateChange before any statement runs.
package inspect
