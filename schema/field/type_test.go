package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"integer", TypeInteger},
		{"VARCHAR", TypeVarchar},
		{" decimal ", TypeDecimal},
		{"geometry", TypeGeometry},
		{"money", TypeClob},
		{"", TypeClob},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.in))
		})
	}
}

func TestTypePredicates(t *testing.T) {
	assert.True(t, TypeVarchar.HasLength())
	assert.True(t, TypeVarBinary.HasLength())
	assert.False(t, TypeClob.HasLength())
	assert.True(t, TypeDecimal.HasPrecision())
	assert.True(t, TypeBlob.Binary())
	assert.True(t, TypeBigInt.Integer())
	assert.True(t, TypeDouble.Numeric())
	assert.False(t, TypeVarchar.Numeric())
	assert.True(t, TypeBoolean.Boolean())
	assert.True(t, TypeGeometry.Geometry())
	assert.True(t, TypeInteger.AutoIncrement())
	assert.False(t, TypeVarchar.AutoIncrement())
	for _, typ := range Types {
		assert.True(t, typ.Valid(), typ)
	}
	assert.Len(t, Types, 15)
}
