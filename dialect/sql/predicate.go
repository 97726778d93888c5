package sql

import (
	"fmt"
	"strings"

	"github.com/syssam/dbrest/querylanguage"
)

// Predicate renders cond as a boolean SQL expression, recording its
// arguments in st. The none condition renders as "".
func (b *Builder) Predicate(st *Statement, cond querylanguage.Condition) (string, error) {
	switch c := cond.(type) {
	case nil, querylanguage.NoneCondition:
		return "", nil
	case querylanguage.AndCondition:
		return b.junction(st, c.Conditions, " AND ")
	case querylanguage.OrCondition:
		return b.junction(st, c.Conditions, " OR ")
	case querylanguage.NotCondition:
		p, err := b.Predicate(st, c.Condition)
		if err != nil || p == "" {
			return p, err
		}
		return "NOT (" + p + ")", nil
	case querylanguage.ColumnCondition:
		return b.column(st, c)
	case querylanguage.SpatialCondition:
		var arg string
		if c.Op.HasArgument() {
			arg = st.Arg(c.Value)
		}
		return b.Spatial(c.Op.Func(), b.Column(c.Column), arg), nil
	default:
		return "", fmt.Errorf("dialect/sql: unexpected condition %T", cond)
	}
}

func (b *Builder) junction(st *Statement, cs []querylanguage.Condition, sep string) (string, error) {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		p, err := b.Predicate(st, c)
		if err != nil {
			return "", err
		}
		if p != "" {
			parts = append(parts, p)
		}
	}
	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], nil
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (b *Builder) column(st *Statement, c querylanguage.ColumnCondition) (string, error) {
	col := b.Column(c.Column)
	arg := func(v any) (string, error) {
		v, err := b.ConvertInput(c.Column, v)
		if err != nil {
			return "", err
		}
		return b.EncodeValue(c.Column, st.Arg(v)), nil
	}
	switch c.Op {
	case querylanguage.OpContains:
		return b.Like(col, st.Arg("%"+escapeLike(querylanguage.FormatValue(c.Value))+"%")), nil
	case querylanguage.OpStartsWith:
		return b.Like(col, st.Arg(escapeLike(querylanguage.FormatValue(c.Value))+"%")), nil
	case querylanguage.OpEndsWith:
		return b.Like(col, st.Arg("%"+escapeLike(querylanguage.FormatValue(c.Value)))), nil
	case querylanguage.OpEQ, querylanguage.OpLT, querylanguage.OpLE, querylanguage.OpGE, querylanguage.OpGT:
		ph, err := arg(c.Value)
		if err != nil {
			return "", err
		}
		return col + " " + comparison[c.Op] + " " + ph, nil
	case querylanguage.OpBetween:
		bounds := querylanguage.Values(c.Value, -1)
		if len(bounds) != 2 {
			return b.False(), nil
		}
		lo, err := arg(bounds[0])
		if err != nil {
			return "", err
		}
		hi, err := arg(bounds[1])
		if err != nil {
			return "", err
		}
		return "(" + col + " >= " + lo + " AND " + col + " <= " + hi + ")", nil
	case querylanguage.OpIn:
		values := querylanguage.Values(c.Value, -1)
		if len(values) == 0 {
			return b.False(), nil
		}
		phs := make([]string, len(values))
		for i, v := range values {
			ph, err := arg(v)
			if err != nil {
				return "", err
			}
			phs[i] = ph
		}
		return col + " IN (" + strings.Join(phs, ", ") + ")", nil
	case querylanguage.OpIsNull:
		return col + " IS NULL", nil
	}
	return "", fmt.Errorf("dialect/sql: unexpected operator %q", c.Op)
}

var comparison = map[querylanguage.Op]string{
	querylanguage.OpEQ: "=",
	querylanguage.OpLT: "<",
	querylanguage.OpLE: "<=",
	querylanguage.OpGE: ">=",
	querylanguage.OpGT: ">",
}
