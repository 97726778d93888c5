package schema_test

import (
	"testing"

	"github.com/syssam/dbrest/schema"
	"github.com/syssam/dbrest/schema/field"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func ordersTable() *schema.Table {
	return schema.NewTable("orders", schema.KindTable,
		schema.NewColumn("id", field.TypeInteger, schema.PrimaryKey()),
		schema.NewColumn("customer_id", field.TypeInteger, schema.References("customers")),
		schema.NewColumn("total", field.TypeDecimal, schema.Precision(10, 2)),
		schema.NewColumn("note", field.TypeVarchar, schema.Nullable()),
	)
}

func TestColumnDefaults(t *testing.T) {
	c := schema.NewColumn("name", field.TypeVarchar)
	assert.Equal(t, "name", c.RealName)
	assert.Equal(t, 255, c.EffectiveLength())
	assert.Zero(t, c.EffectivePrecision())

	d := schema.NewColumn("price", field.TypeDecimal, schema.Length(12))
	assert.Zero(t, d.Length, "length does not apply to decimal")
	assert.Equal(t, 19, d.EffectivePrecision())
	assert.Equal(t, 4, d.EffectiveScale())

	u := schema.NewColumn("x", field.Type("money"))
	assert.Equal(t, field.TypeClob, u.Type)
}

func TestTable(t *testing.T) {
	tbl := ordersTable()
	assert.Equal(t, "orders", tbl.RealName)
	assert.False(t, tbl.IsView())
	require.NotNil(t, tbl.PrimaryKey())
	assert.Equal(t, "id", tbl.PrimaryKey().Name)
	assert.Equal(t, []string{"id", "customer_id", "total", "note"}, tbl.ColumnNames())
	assert.True(t, tbl.HasColumn("total"))
	assert.False(t, tbl.HasColumn("missing"))
	assert.Equal(t, map[string]string{"customer_id": "customers"}, tbl.ForeignKeys())
	fks := tbl.ForeignKeysTo("customers")
	require.Len(t, fks, 1)
	assert.Equal(t, "customer_id", fks[0].Name)
	assert.Empty(t, tbl.ForeignKeysTo("orders"))
}

func TestTableSinglePrimaryKey(t *testing.T) {
	tbl := schema.NewTable("pairs", schema.KindTable,
		schema.NewColumn("a", field.TypeInteger, schema.PrimaryKey()),
		schema.NewColumn("b", field.TypeInteger, schema.PrimaryKey()),
	)
	assert.Equal(t, "a", tbl.PrimaryKey().Name)
	c, _ := tbl.Column("b")
	assert.False(t, c.PK)
}

func TestTableClone(t *testing.T) {
	tbl := ordersTable()
	cp := tbl.Clone()
	c, _ := cp.Column("note")
	c.Nullable = false
	orig, _ := tbl.Column("note")
	assert.True(t, orig.Nullable)
}

func TestCodecRoundTrip(t *testing.T) {
	tbl := ordersTable()
	b, err := schema.EncodeTable(tbl)
	require.NoError(t, err)
	got, err := schema.DecodeTable(b)
	require.NoError(t, err)
	assert.Equal(t, tbl.ColumnNames(), got.ColumnNames())
	require.NotNil(t, got.PrimaryKey())
	assert.Equal(t, "id", got.PrimaryKey().Name)
	c, ok := got.Column("total")
	require.True(t, ok)
	assert.Equal(t, 10, c.Precision)
	assert.Equal(t, 2, c.Scale)

	db := &schema.Database{Name: "shop", Tables: []schema.TableRef{{Name: "orders", RealName: "orders", Kind: schema.KindTable}}}
	b, err = schema.EncodeDatabase(db)
	require.NoError(t, err)
	gotDB, err := schema.DecodeDatabase(b)
	require.NoError(t, err)
	assert.Equal(t, db, gotDB)
	assert.True(t, gotDB.Has("orders"))
}

func TestCodecRejectsGarbage(t *testing.T) {
	_, err := schema.DecodeTable([]byte("not a cache entry"))
	require.Error(t, err)
}

func TestCodecVersionMismatch(t *testing.T) {
	// An entry written by a future layout must not decode silently.
	b, err := msgpack.Marshal(map[string]any{"v": schema.CodecVersion + 1, "p": []byte{0x80}})
	require.NoError(t, err)
	_, err = schema.DecodeTable(compress(t, b))
	require.ErrorIs(t, err, schema.ErrCodecVersion)
}

func compress(t *testing.T, b []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(b, nil)
}
