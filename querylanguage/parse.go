package querylanguage

import (
	"regexp"
	"slices"
	"strings"

	"github.com/syssam/dbrest"
	"github.com/syssam/dbrest/pathtree"
	"github.com/syssam/dbrest/schema"
)

// FilterParam is the query parameter prefix of filter expressions.
const FilterParam = "filter"

// pathRe splits a filter key suffix into alternating digit and non-digit groups.
var pathRe = regexp.MustCompile(`\d+|\D+`)

// Parse parses one filter token of the form "column,[n|s]operator[,value]"
// against the columns of t. Malformed tokens and unknown operators yield
// None; an unknown column is an error.
func Parse(t *schema.Table, s string) (Condition, error) {
	parts := strings.SplitN(s, ",", 3)
	if len(parts) < 2 {
		return None, nil
	}
	c, ok := t.Column(parts[0])
	if !ok {
		return nil, dbrest.NewColumnNotFoundError(t.Name, parts[0])
	}
	command, value := parts[1], ""
	if len(parts) == 3 {
		value = parts[2]
	}
	var negate, spatial bool
	if len(command) > 2 && command[0] == 'n' {
		negate, command = true, command[1:]
	}
	if len(command) > 2 && command[0] == 's' {
		spatial, command = true, command[1:]
	}
	var cond Condition
	switch {
	case spatial && SpatialOp(command).Valid():
		cond = Spatial(c, SpatialOp(command), value)
	case !spatial && Op(command).Valid():
		cond = Column(c, Op(command), value)
	default:
		return None, nil
	}
	if negate {
		cond = Not(cond)
	}
	return cond, nil
}

// FilterPath returns the tree address encoded in a filter parameter key,
// or false if key is not a filter key. "filter0-1" addresses ["0","-","1"].
func FilterPath(key string) ([]string, bool) {
	suffix, ok := strings.CutPrefix(key, FilterParam)
	if !ok {
		return nil, false
	}
	return pathRe.FindAllString(suffix, -1), true
}

// Group parses every filter parameter and attaches the conditions to the
// tree node addressed by its key. Keys are visited in sorted order.
func Group(t *schema.Table, params map[string][]string) (*pathtree.Tree[Condition], error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		if strings.HasPrefix(k, FilterParam) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	tree := pathtree.New[Condition]()
	for _, k := range keys {
		path, _ := FilterPath(k)
		for _, v := range params[k] {
			c, err := Parse(t, v)
			if err != nil {
				return nil, err
			}
			if !IsNone(c) {
				tree.Put(path, c)
			}
		}
	}
	return tree, nil
}

// Combine folds a grouped tree into a single condition. At each node the
// attached conditions are ANDed, the combined children are ORed, and the
// two results are ANDed. An empty tree combines to None.
func Combine(tree *pathtree.Tree[Condition]) Condition {
	return pathtree.Fold(tree, func(values []Condition, children []Condition) Condition {
		return And(And(values...), Or(children...))
	})
}

// FromFilters parses and combines all filter parameters.
func FromFilters(t *schema.Table, params map[string][]string) (Condition, error) {
	tree, err := Group(t, params)
	if err != nil {
		return nil, err
	}
	return Combine(tree), nil
}
