// Package querylanguage implements condition trees and the filter DSL.
//
// A Condition is one of NoneCondition, AndCondition, OrCondition,
// NotCondition, ColumnCondition or SpatialCondition. The combinators treat
// None as identity:
//
//	querylanguage.And(c, querylanguage.None) // c
//	querylanguage.Not(querylanguage.None)    // None
//
// Filter tokens have the form "column,[n|s]operator[,value]" where a leading
// n negates and a leading s selects a spatial operator:
//
//	c, err := querylanguage.Parse(table, "total,ngt,100") // !(total,gt,100)
//
// Several filter parameters are grouped by the path encoded in their key
// ("filter", "filter0", "filter0-1") and combined bottom-up: conditions at a
// node are ANDed, sibling branches are ORed.
//
//	cond, err := querylanguage.FromFilters(table, url.Values{
//	    "filter0": {"a,eq,1"},
//	    "filter1": {"b,eq,2"},
//	}) // (a,eq,1 || b,eq,2)
//
// Rendering conditions into SQL is the job of the dialect/sql package.
package querylanguage
