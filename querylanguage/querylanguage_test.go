package querylanguage_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/dbrest"
	"github.com/syssam/dbrest/pathtree"
	"github.com/syssam/dbrest/querylanguage"
	"github.com/syssam/dbrest/schema"
	"github.com/syssam/dbrest/schema/field"
)

func places() *schema.Table {
	return schema.NewTable("places", schema.KindTable,
		schema.NewColumn("id", field.TypeInteger, schema.PrimaryKey()),
		schema.NewColumn("a", field.TypeInteger),
		schema.NewColumn("b", field.TypeInteger),
		schema.NewColumn("c", field.TypeInteger),
		schema.NewColumn("d", field.TypeInteger),
		schema.NewColumn("name", field.TypeVarchar),
		schema.NewColumn("shape", field.TypeGeometry, schema.Nullable()),
	)
}

func TestIdentity(t *testing.T) {
	tbl := places()
	a, _ := tbl.Column("a")
	c := querylanguage.Column(a, querylanguage.OpEQ, "1")

	assert.Equal(t, c, querylanguage.And(c, querylanguage.None))
	assert.Equal(t, c, querylanguage.And(querylanguage.None, c))
	assert.Equal(t, c, querylanguage.Or(c, querylanguage.None))
	assert.Equal(t, c, querylanguage.Or(querylanguage.None, c))
	assert.True(t, querylanguage.IsNone(querylanguage.Not(querylanguage.None)))
	assert.True(t, querylanguage.IsNone(querylanguage.And()))
	assert.True(t, querylanguage.IsNone(querylanguage.Or(querylanguage.None, nil)))
	assert.True(t, querylanguage.IsNone(querylanguage.Combine(pathtree.New[querylanguage.Condition]())))
}

func TestString(t *testing.T) {
	tbl := places()
	a, _ := tbl.Column("a")
	b, _ := tbl.Column("b")
	shape, _ := tbl.Column("shape")
	tests := []struct {
		C querylanguage.Condition
		S string
	}{
		{
			C: querylanguage.And(
				querylanguage.Column(a, querylanguage.OpEQ, "1"),
				querylanguage.In(b, 1, 2, 3),
			),
			S: "(a,eq,1 && b,in,1,2,3)",
		},
		{
			C: querylanguage.Or(
				querylanguage.Not(querylanguage.Column(a, querylanguage.OpIsNull, nil)),
				querylanguage.Spatial(shape, querylanguage.OpSpatialIsValid, ""),
			),
			S: "(!(a,is) || shape,siv)",
		},
		{
			C: querylanguage.Not(querylanguage.And(
				querylanguage.Spatial(shape, querylanguage.OpSpatialWithin, "POINT(1 1)"),
				querylanguage.Column(b, querylanguage.OpBetween, "1,5"),
			)),
			S: "!(shape,swi,POINT(1 1) && b,bt,1,5)",
		},
	}
	for i := range tests {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			assert.Equal(t, tests[i].S, tests[i].C.String())
		})
	}
}

func TestAndFlattens(t *testing.T) {
	tbl := places()
	a, _ := tbl.Column("a")
	b, _ := tbl.Column("b")
	c, _ := tbl.Column("c")
	x := querylanguage.Column(a, querylanguage.OpEQ, "1")
	y := querylanguage.Column(b, querylanguage.OpEQ, "2")
	z := querylanguage.Column(c, querylanguage.OpEQ, "3")
	and := querylanguage.And(querylanguage.And(x, y), z)
	require.IsType(t, querylanguage.AndCondition{}, and)
	assert.Len(t, and.(querylanguage.AndCondition).Conditions, 3)
}

func TestParse(t *testing.T) {
	tbl := places()
	tests := []struct {
		in   string
		want string
	}{
		{in: "a,eq,1", want: "a,eq,1"},
		{in: "name,cs,x,y", want: "name,cs,x,y"},
		{in: "a,neq,1", want: "!(a,eq,1)"},
		{in: "a,is", want: "a,is"},
		{in: "a,nis", want: "!(a,is)"},
		{in: "a,bt,1,5", want: "a,bt,1,5"},
		{in: "a,in,1,2,3", want: "a,in,1,2,3"},
		{in: "shape,sco,POINT(1 1)", want: "shape,sco,POINT(1 1)"},
		{in: "shape,nsin,POINT(1 1)", want: "!(shape,sin,POINT(1 1))"},
		{in: "shape,sic", want: "shape,sic"},
		{in: "a,xx,1", want: "none"},
		{in: "shape,sxx,1", want: "none"},
		{in: "a", want: "none"},
		{in: "", want: "none"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := querylanguage.Parse(tbl, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.String())
		})
	}
}

func TestParseSpatialPrefixNeedsOperator(t *testing.T) {
	// "sw" is the starts-with operator, not spatial "w".
	c, err := querylanguage.Parse(places(), "name,sw,ab")
	require.NoError(t, err)
	cc, ok := c.(querylanguage.ColumnCondition)
	require.True(t, ok)
	assert.Equal(t, querylanguage.OpStartsWith, cc.Op)
}

func TestParseUnknownColumn(t *testing.T) {
	_, err := querylanguage.Parse(places(), "price,eq,1")
	require.Error(t, err)
	assert.True(t, dbrest.IsColumnNotFound(err))
}

func TestFilterPath(t *testing.T) {
	path, ok := querylanguage.FilterPath("filter0-1")
	require.True(t, ok)
	assert.Equal(t, []string{"0", "-", "1"}, path)
	path, ok = querylanguage.FilterPath("filter")
	require.True(t, ok)
	assert.Empty(t, path)
	path, ok = querylanguage.FilterPath("filter12ab")
	require.True(t, ok)
	assert.Equal(t, []string{"12", "ab"}, path)
	_, ok = querylanguage.FilterPath("order")
	assert.False(t, ok)
}

func TestFromFilters(t *testing.T) {
	tbl := places()
	tests := []struct {
		name   string
		params map[string][]string
		want   string
	}{
		{
			name:   "Empty",
			params: map[string][]string{"order": {"id"}},
			want:   "none",
		},
		{
			name:   "Single",
			params: map[string][]string{"filter": {"a,eq,1"}},
			want:   "a,eq,1",
		},
		{
			name:   "SameNodeAnds",
			params: map[string][]string{"filter": {"a,eq,1", "b,eq,2"}},
			want:   "(a,eq,1 && b,eq,2)",
		},
		{
			name:   "SiblingsOr",
			params: map[string][]string{"filter0": {"a,eq,1"}, "filter1": {"b,eq,2"}},
			want:   "(a,eq,1 || b,eq,2)",
		},
		{
			name:   "NestedSiblingsOr",
			params: map[string][]string{"filter0-0": {"a,eq,1"}, "filter0-1": {"b,eq,2"}},
			want:   "(a,eq,1 || b,eq,2)",
		},
		{
			name: "ThreeBranches",
			params: map[string][]string{
				"filter":    {"d,eq,4"},
				"filter0":   {"a,eq,1", "b,eq,2"},
				"filter1-0": {"c,eq,3"},
				"filter1-1": {"c,eq,5"},
				"filter2":   {"name,nis"},
			},
			want: "(d,eq,4 && ((a,eq,1 && b,eq,2) || c,eq,3 || c,eq,5 || !(name,is)))",
		},
		{
			name: "ParentAndNested",
			params: map[string][]string{
				"filter0":   {"a,eq,1"},
				"filter0-0": {"b,eq,2"},
				"filter0-1": {"c,eq,3"},
				"filter1":   {"d,eq,4"},
			},
			want: "((a,eq,1 && (b,eq,2 || c,eq,3)) || d,eq,4)",
		},
		{
			name:   "DropsMalformed",
			params: map[string][]string{"filter0": {"a"}, "filter1": {"b,eq,2"}},
			want:   "b,eq,2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := querylanguage.FromFilters(tbl, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.String())
		})
	}
}

func TestFromFiltersUnknownColumn(t *testing.T) {
	_, err := querylanguage.FromFilters(places(), map[string][]string{"filter": {"zzz,eq,1"}})
	assert.True(t, dbrest.IsColumnNotFound(err))
}

func TestValues(t *testing.T) {
	assert.Equal(t, []any{"1", "2,3"}, querylanguage.Values("1,2,3", 2))
	assert.Equal(t, []any{"1", "2", "3"}, querylanguage.Values("1,2,3", -1))
	assert.Equal(t, []any{1, 2}, querylanguage.Values([]any{1, 2}, -1))
	assert.Nil(t, querylanguage.Values(nil, -1))
	assert.Equal(t, []any{7}, querylanguage.Values(7, -1))
	assert.Equal(t, "1,x", querylanguage.FormatValue([]any{1, "x"}))
}
