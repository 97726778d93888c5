package querylanguage

import (
	"fmt"
	"strings"

	"github.com/syssam/dbrest/schema"
)

// Op is a plain column operator.
type Op string

// Column operators.
const (
	OpContains   Op = "cs"
	OpStartsWith Op = "sw"
	OpEndsWith   Op = "ew"
	OpEQ         Op = "eq"
	OpLT         Op = "lt"
	OpLE         Op = "le"
	OpGE         Op = "ge"
	OpGT         Op = "gt"
	OpBetween    Op = "bt"
	OpIn         Op = "in"
	OpIsNull     Op = "is"
)

// SpatialOp is a geometry operator.
type SpatialOp string

// Spatial operators.
const (
	OpSpatialContains   SpatialOp = "co"
	OpSpatialCrosses    SpatialOp = "cr"
	OpSpatialDisjoint   SpatialOp = "di"
	OpSpatialEquals     SpatialOp = "eq"
	OpSpatialIntersects SpatialOp = "in"
	OpSpatialOverlaps   SpatialOp = "ov"
	OpSpatialTouches    SpatialOp = "to"
	OpSpatialWithin     SpatialOp = "wi"
	OpSpatialIsClosed   SpatialOp = "ic"
	OpSpatialIsSimple   SpatialOp = "is"
	OpSpatialIsValid    SpatialOp = "iv"
)

var (
	columnOps = map[Op]bool{
		OpContains: true, OpStartsWith: true, OpEndsWith: true, OpEQ: true, OpLT: true, OpLE: true,
		OpGE: true, OpGT: true, OpBetween: true, OpIn: true, OpIsNull: true,
	}
	spatialFuncs = map[SpatialOp]string{
		OpSpatialContains:   "ST_Contains",
		OpSpatialCrosses:    "ST_Crosses",
		OpSpatialDisjoint:   "ST_Disjoint",
		OpSpatialEquals:     "ST_Equals",
		OpSpatialIntersects: "ST_Intersects",
		OpSpatialOverlaps:   "ST_Overlaps",
		OpSpatialTouches:    "ST_Touches",
		OpSpatialWithin:     "ST_Within",
		OpSpatialIsClosed:   "ST_IsClosed",
		OpSpatialIsSimple:   "ST_IsSimple",
		OpSpatialIsValid:    "ST_IsValid",
	}
)

// Valid reports if op is a known column operator.
func (op Op) Valid() bool { return columnOps[op] }

// Valid reports if op is a known spatial operator.
func (op SpatialOp) Valid() bool {
	_, ok := spatialFuncs[op]
	return ok
}

// Func returns the standard spatial predicate implementing op.
func (op SpatialOp) Func() string { return spatialFuncs[op] }

// HasArgument reports if op compares against a right-hand geometry.
func (op SpatialOp) HasArgument() bool {
	switch op {
	case OpSpatialIsClosed, OpSpatialIsSimple, OpSpatialIsValid:
		return false
	}
	return true
}

// Condition is a node of a boolean condition tree. The concrete types are
// NoneCondition, AndCondition, OrCondition, NotCondition, ColumnCondition
// and SpatialCondition.
type Condition interface {
	fmt.Stringer
	condition()
}

// None is the absorbing identity: x AND None = x, x OR None = x, NOT None = None.
var None Condition = NoneCondition{}

type (
	// NoneCondition is the absence of a condition.
	NoneCondition struct{}

	// AndCondition holds two or more conditions that must all hold.
	AndCondition struct{ Conditions []Condition }

	// OrCondition holds two or more conditions of which one must hold.
	OrCondition struct{ Conditions []Condition }

	// NotCondition negates its inner condition.
	NotCondition struct{ Condition Condition }

	// ColumnCondition compares a column against a value. Value is either the
	// raw string of the filter DSL, where bt and in split on commas, or an
	// []any holding the bounds or list members as is.
	ColumnCondition struct {
		Column *schema.Column
		Op     Op
		Value  any
	}

	// SpatialCondition applies a spatial predicate to a geometry column.
	// Value is WKT text, ignored for operators without argument.
	SpatialCondition struct {
		Column *schema.Column
		Op     SpatialOp
		Value  string
	}
)

func (NoneCondition) condition()    {}
func (AndCondition) condition()     {}
func (OrCondition) condition()      {}
func (NotCondition) condition()     {}
func (ColumnCondition) condition()  {}
func (SpatialCondition) condition() {}

// IsNone reports if c is nil or the None condition.
func IsNone(c Condition) bool {
	if c == nil {
		return true
	}
	_, ok := c.(NoneCondition)
	return ok
}

// And combines the conditions with AND, skipping None and flattening nested ANDs.
func And(cs ...Condition) Condition {
	var list []Condition
	for _, c := range cs {
		switch c := c.(type) {
		case nil, NoneCondition:
		case AndCondition:
			list = append(list, c.Conditions...)
		default:
			list = append(list, c)
		}
	}
	return reduce(list, func(l []Condition) Condition { return AndCondition{Conditions: l} })
}

// Or combines the conditions with OR, skipping None and flattening nested ORs.
func Or(cs ...Condition) Condition {
	var list []Condition
	for _, c := range cs {
		switch c := c.(type) {
		case nil, NoneCondition:
		case OrCondition:
			list = append(list, c.Conditions...)
		default:
			list = append(list, c)
		}
	}
	return reduce(list, func(l []Condition) Condition { return OrCondition{Conditions: l} })
}

func reduce(list []Condition, wrap func([]Condition) Condition) Condition {
	switch len(list) {
	case 0:
		return None
	case 1:
		return list[0]
	default:
		return wrap(list)
	}
}

// Not negates c. The negation of None is None.
func Not(c Condition) Condition {
	if IsNone(c) {
		return None
	}
	return NotCondition{Condition: c}
}

// Column returns a plain column condition.
func Column(c *schema.Column, op Op, value any) Condition {
	return ColumnCondition{Column: c, Op: op, Value: value}
}

// In returns a condition matching any of the given values.
func In(c *schema.Column, values ...any) Condition {
	return ColumnCondition{Column: c, Op: OpIn, Value: values}
}

// Spatial returns a spatial condition.
func Spatial(c *schema.Column, op SpatialOp, wkt string) Condition {
	return SpatialCondition{Column: c, Op: op, Value: wkt}
}

func (NoneCondition) String() string { return "none" }

func (c AndCondition) String() string { return join(c.Conditions, " && ") }

func (c OrCondition) String() string { return join(c.Conditions, " || ") }

func (c NotCondition) String() string { return "!" + wrap(c.Condition) }

func (c ColumnCondition) String() string {
	if c.Op == OpIsNull {
		return fmt.Sprintf("%s,%s", c.Column.Name, c.Op)
	}
	return fmt.Sprintf("%s,%s,%s", c.Column.Name, c.Op, FormatValue(c.Value))
}

func (c SpatialCondition) String() string {
	if !c.Op.HasArgument() {
		return fmt.Sprintf("%s,s%s", c.Column.Name, c.Op)
	}
	return fmt.Sprintf("%s,s%s,%s", c.Column.Name, c.Op, c.Value)
}

func join(cs []Condition, sep string) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func wrap(c Condition) string {
	switch c.(type) {
	case AndCondition, OrCondition:
		return c.String()
	default:
		return "(" + c.String() + ")"
	}
}

// FormatValue renders a condition value the way the filter DSL spells it.
func FormatValue(v any) string {
	switch v := v.(type) {
	case []any:
		parts := make([]string, len(v))
		for i := range v {
			parts[i] = fmt.Sprint(v[i])
		}
		return strings.Join(parts, ",")
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Values splits a condition value into its members: a string is split on
// commas into at most n parts (n < 0 means no limit), an []any is kept.
func Values(v any, n int) []any {
	switch v := v.(type) {
	case []any:
		return v
	case string:
		parts := strings.SplitN(v, ",", n)
		values := make([]any, len(parts))
		for i := range parts {
			values[i] = parts[i]
		}
		return values
	case nil:
		return nil
	default:
		return []any{v}
	}
}
