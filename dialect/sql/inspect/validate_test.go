package inspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/dbrest/schema"
	"github.com/syssam/dbrest/schema/field"
)

func usersTable(columns ...*schema.Column) *schema.Table {
	return schema.NewTable("users", schema.KindTable, append([]*schema.Column{
		schema.NewColumn("id", field.TypeInteger, schema.PrimaryKey()),
	}, columns...)...)
}

func TestValidateDiff(t *testing.T) {
	current := []*schema.Table{
		usersTable(
			schema.NewColumn("name", field.TypeVarchar, schema.Length(100)),
			schema.NewColumn("email", field.TypeVarchar, schema.Nullable()),
			schema.NewColumn("age", field.TypeInteger),
			schema.NewColumn("balance", field.TypeDecimal, schema.Precision(10, 4)),
		),
		schema.NewTable("logs", schema.KindTable, schema.NewColumn("id", field.TypeInteger, schema.PrimaryKey())),
	}
	desired := []*schema.Table{
		usersTable(
			schema.NewColumn("name", field.TypeVarchar, schema.Length(50)),
			schema.NewColumn("email", field.TypeVarchar),
			schema.NewColumn("balance", field.TypeDecimal, schema.Precision(10, 2)),
			schema.NewColumn("bio", field.TypeClob),
			schema.NewColumn("nickname", field.TypeVarchar, schema.Nullable()),
		),
	}

	result := ValidateDiff(current, desired)
	require.True(t, result.HasErrors())
	assert.True(t, result.HasBreakingChanges())
	messages := func(list []*ValidationError) []string {
		var s []string
		for _, e := range list {
			s = append(s, e.Error())
		}
		return s
	}
	assert.ElementsMatch(t, []string{
		"logs: table will be dropped",
		"users.age: column will be dropped",
		"users.email: column changing from NULL to NOT NULL may fail if column has NULL values",
	}, messages(result.Errors))
	assert.ElementsMatch(t, []string{
		"users.name: column size reducing from 100 to 50 may truncate data",
		"users.balance: column scale reducing from 4 to 2 may round data",
		"users.bio: new NOT NULL column may fail if table has data",
	}, messages(result.Warnings))
	assert.ErrorIs(t, result.Err(), ErrInvalidChange)

	result = ValidateDiff(current, desired, AllowDropTable(), AllowDropColumn(), AllowNullToNotNull())
	assert.False(t, result.HasErrors())
	assert.Len(t, result.Warnings, 6)
	assert.True(t, result.HasBreakingChanges())
	assert.NoError(t, result.Err())
	assert.Contains(t, result.String(), "[BREAKING]")
}

func TestValidateChangeRetype(t *testing.T) {
	current := usersTable(schema.NewColumn("age", field.TypeInteger))
	desired := usersTable(schema.NewColumn("age", field.TypeVarchar))
	result := ValidateChange(current, desired)
	assert.False(t, result.HasErrors())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "column type changing from integer to varchar", result.Warnings[0].Message)
}

func TestValidateChangeView(t *testing.T) {
	v := schema.NewTable("v", schema.KindView, schema.NewColumn("id", field.TypeInteger))
	result := ValidateChange(v, v.Clone())
	assert.True(t, result.HasErrors())
}

func TestValidateTable(t *testing.T) {
	tbl := &schema.Table{Name: "t", Columns: []*schema.Column{
		{Name: "a", Type: field.TypeInteger},
		{Name: "a", Type: field.TypeInteger},
	}}
	result := ValidateTable(tbl)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "duplicate column name", result.Errors[0].Message)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "table has no primary key", result.Warnings[0].Message)
	assert.Equal(t, "No issues found", (&ValidationResult{}).String())
}

func TestValidateSchema(t *testing.T) {
	orders := schema.NewTable("orders", schema.KindTable,
		schema.NewColumn("id", field.TypeInteger, schema.PrimaryKey()),
		schema.NewColumn("customer_id", field.TypeInteger, schema.References("customers")),
	)
	result := ValidateSchema([]*schema.Table{orders})
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "orders.customer_id: foreign key references non-existent table \"customers\"", result.Errors[0].Error())

	customers := usersTable()
	customers.Name = "customers"
	result = ValidateSchema([]*schema.Table{orders, customers})
	assert.False(t, result.HasErrors())
}
