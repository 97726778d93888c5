// Package schema holds the reflected data model: tables, views and their
// columns, as read from a live database.
//
// A Table is a read-mostly snapshot. It is built once per reflection cycle,
// cached in serialized form and replaced as a whole on refresh:
//
//	t := schema.NewTable("orders", schema.KindTable,
//	    schema.NewColumn("id", field.TypeInteger, schema.PrimaryKey()),
//	    schema.NewColumn("customer_id", field.TypeInteger, schema.References("customers")),
//	    schema.NewColumn("total", field.TypeDecimal, schema.Precision(10, 2)),
//	)
//	t.PrimaryKey().Name       // "id"
//	t.ForeignKeysTo("customers") // [customer_id]
//
// Tables and columns carry both a logical Name, used by records and filters,
// and a RealName, used in generated SQL.
package schema
