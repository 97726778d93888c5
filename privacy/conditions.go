package privacy

import (
	"context"
	"maps"

	"github.com/syssam/dbrest/querylanguage"
)

type conditionsCtxKey struct{}

// WithCondition returns a context carrying a row condition for table. The
// condition is ANDed with the one the parent carries for the same table.
// The record store ANDs it into every statement on the table.
func WithCondition(parent context.Context, table string, c querylanguage.Condition) context.Context {
	if querylanguage.IsNone(c) {
		return parent
	}
	prev, _ := parent.Value(conditionsCtxKey{}).(map[string]querylanguage.Condition)
	next := make(map[string]querylanguage.Condition, len(prev)+1)
	maps.Copy(next, prev)
	if cur, ok := next[table]; ok {
		c = querylanguage.And(cur, c)
	}
	next[table] = c
	return context.WithValue(parent, conditionsCtxKey{}, next)
}

// ConditionFor returns the row condition the context carries for table,
// or None.
func ConditionFor(ctx context.Context, table string) querylanguage.Condition {
	m, _ := ctx.Value(conditionsCtxKey{}).(map[string]querylanguage.Condition)
	if c, ok := m[table]; ok {
		return c
	}
	return querylanguage.None
}

// Apply evaluates the query policies of the queried table and stores the conditions
// the rules added in the returned context.
func Apply(ctx context.Context, p Tables, q *Query) (context.Context, error) {
	if err := p.EvalQuery(ctx, q); err != nil {
		return ctx, err
	}
	return WithCondition(ctx, q.Table().Name, q.Condition()), nil
}

// ApplyMutation is like Apply for mutations.
func ApplyMutation(ctx context.Context, p Tables, m *Mutation) (context.Context, error) {
	if err := p.EvalMutation(ctx, m); err != nil {
		return ctx, err
	}
	return WithCondition(ctx, m.Table().Name, m.Condition()), nil
}
