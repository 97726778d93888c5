// Package privacy provides sets of types and helpers for writing privacy
// rules over tables, and deal with their evaluation at runtime.
package privacy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/dbrest/querylanguage"
	"github.com/syssam/dbrest/schema"
)

// Policy decision sentinel errors.
//
// These errors are used as return values from policy rules to indicate
// how the policy evaluation should proceed. Use errors.Is() to check
// for these values:
//
//	if errors.Is(err, privacy.Allow) { ... }
//	if errors.Is(err, privacy.Deny) { ... }
//	if errors.Is(err, privacy.Skip) { ... }
var (
	// Allow may be returned by rules to indicate that the policy
	// evaluation should terminate with an allow decision.
	Allow = errors.New("dbrest/privacy: allow rule")

	// Deny may be returned by rules to indicate that the policy
	// evaluation should terminate with a deny decision.
	Deny = errors.New("dbrest/privacy: deny rule")

	// Skip may be returned by rules to indicate that the policy
	// evaluation should continue to the next rule in the chain.
	Skip = errors.New("dbrest/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// Op is the kind of a record operation.
type Op uint

// Record operations.
const (
	OpCreate Op = 1 << iota
	OpUpdate
	OpIncrement
	OpDelete

	OpWrite = OpCreate | OpUpdate | OpIncrement | OpDelete
)

// Is reports whether o matches any of the operations in op.
func (o Op) Is(op Op) bool { return o&op != 0 }

var opNames = []string{"create", "update", "increment", "delete"}

// String returns the operation names joined with "|".
func (o Op) String() string {
	var names []string
	for i, n := range opNames {
		if o&(1<<i) != 0 {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("Op(%d)", uint(o))
	}
	return strings.Join(names, "|")
}

// Filter is implemented by queries and mutations. Rules narrow the rows an
// operation may touch by adding conditions with Where.
type Filter interface {
	// Table returns the table of the operation.
	Table() *schema.Table
	// Where ANDs c into the row condition of the operation.
	Where(c querylanguage.Condition)
}

// Query is a read of one table.
type Query struct {
	table *schema.Table
	cond  querylanguage.Condition
}

// NewQuery returns the query of a read of t.
func NewQuery(t *schema.Table) *Query {
	return &Query{table: t, cond: querylanguage.None}
}

// Table implements the Filter interface.
func (q *Query) Table() *schema.Table { return q.table }

// Where implements the Filter interface.
func (q *Query) Where(c querylanguage.Condition) { q.cond = querylanguage.And(q.cond, c) }

// Condition returns the row condition the rules added.
func (q *Query) Condition() querylanguage.Condition { return q.cond }

// Mutation is a write of one table. Record is nil for deletes.
type Mutation struct {
	Query
	op     Op
	record map[string]any
}

// NewMutation returns the mutation of a write of t.
func NewMutation(t *schema.Table, op Op, record map[string]any) *Mutation {
	return &Mutation{Query: Query{table: t, cond: querylanguage.None}, op: op, record: record}
}

// Op returns the operation of the mutation.
func (m *Mutation) Op() Op { return m.op }

// Field returns the value of a column in the written record.
func (m *Mutation) Field(name string) (any, bool) {
	v, ok := m.record[name]
	return v, ok
}

// SetField sets the value of a column in the written record.
func (m *Mutation) SetField(name string, v any) {
	if m.record != nil {
		m.record[name] = v
	}
}

// AlwaysAllowRule returns a rule that always returns an Allow decision.
func AlwaysAllowRule() QueryMutationRule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always returns a Deny decision.
func AlwaysDenyRule() QueryMutationRule {
	return fixedDecision{Deny}
}

// ContextQueryMutationRule creates a query/mutation rule from a context evaluation function.
// Returning nil is equivalent to returning Skip.
func ContextQueryMutationRule(eval func(context.Context) error) QueryMutationRule {
	return contextDecision{eval}
}

type (
	// QueryRule defines the interface deciding whether a
	// query is allowed and optionally narrow it.
	QueryRule interface {
		EvalQuery(context.Context, *Query) error
	}

	// QueryPolicy combines multiple query rules into a single policy.
	QueryPolicy []QueryRule

	// MutationRule defines the interface deciding whether a
	// mutation is allowed and optionally modify it.
	MutationRule interface {
		EvalMutation(context.Context, *Mutation) error
	}

	// MutationPolicy combines multiple mutation rules into a single policy.
	MutationPolicy []MutationRule

	// QueryMutationRule is an interface which groups query and mutation rules.
	QueryMutationRule interface {
		QueryRule
		MutationRule
	}
)

// QueryRuleFunc type is an adapter which allows the use of
// ordinary functions as query rules.
type QueryRuleFunc func(context.Context, *Query) error

// EvalQuery returns f(ctx, q).
func (f QueryRuleFunc) EvalQuery(ctx context.Context, q *Query) error {
	return f(ctx, q)
}

// MutationRuleFunc type is an adapter which allows the use of
// ordinary functions as mutation rules.
type MutationRuleFunc func(context.Context, *Mutation) error

// EvalMutation returns f(ctx, m).
func (f MutationRuleFunc) EvalMutation(ctx context.Context, m *Mutation) error {
	return f(ctx, m)
}

// OnMutationOperation evaluates the given rule only on a given mutation operation.
func OnMutationOperation(rule MutationRule, op Op) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m *Mutation) error {
		if m.Op().Is(op) {
			return rule.EvalMutation(ctx, m)
		}
		return Skip
	})
}

// DenyMutationOperationRule returns a rule denying specified mutation operation.
func DenyMutationOperationRule(op Op) MutationRule {
	rule := MutationRuleFunc(func(_ context.Context, m *Mutation) error {
		return Denyf("dbrest/privacy: operation %s is not allowed on %q", m.Op(), m.Table().Name)
	})
	return OnMutationOperation(rule, op)
}

// AllowMutationOperationRule returns a rule allowing specified mutation operation.
func AllowMutationOperationRule(op Op) MutationRule {
	rule := MutationRuleFunc(func(context.Context, *Mutation) error {
		return Allow
	})
	return OnMutationOperation(rule, op)
}

// Policy groups query and mutation policies.
type Policy struct {
	Query    QueryPolicy
	Mutation MutationPolicy
}

// EvalQuery forwards evaluation to the query policy.
func (p Policy) EvalQuery(ctx context.Context, q *Query) error {
	return p.Query.EvalQuery(ctx, q)
}

// EvalMutation forwards evaluation to the mutation policy.
func (p Policy) EvalMutation(ctx context.Context, m *Mutation) error {
	return p.Mutation.EvalMutation(ctx, m)
}

// AnyTable is the key of the policy applied to every table.
const AnyTable = "*"

// Tables maps table names to their policies. The AnyTable policy runs
// before the policy of the table itself.
type Tables map[string]Policy

// EvalQuery evaluates the query policies of the queried table. If the Allow
// error is returned from one of the policies, it stops the evaluation with
// a nil error.
func (p Tables) EvalQuery(ctx context.Context, q *Query) error {
	return p.eval(ctx, q.Table().Name, func(policy Policy) error {
		return policy.EvalQuery(ctx, q)
	})
}

// EvalMutation evaluates the mutation policies of the written table. If the
// Allow error is returned from one of the policies, it stops the evaluation
// with a nil error.
func (p Tables) EvalMutation(ctx context.Context, m *Mutation) error {
	return p.eval(ctx, m.Table().Name, func(policy Policy) error {
		return policy.EvalMutation(ctx, m)
	})
}

func (p Tables) eval(ctx context.Context, table string, eval func(Policy) error) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, name := range []string{AnyTable, table} {
		policy, ok := p[name]
		if !ok {
			continue
		}
		switch decision := eval(policy); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

// EvalQuery evaluates a query against a query policy.
func (policies QueryPolicy) EvalQuery(ctx context.Context, q *Query) error {
	for _, policy := range policies {
		switch decision := policy.EvalQuery(ctx, q); {
		case decision == nil || errors.Is(decision, Skip):
		default:
			return decision
		}
	}
	return nil
}

// EvalMutation evaluates a mutation against a mutation policy.
func (policies MutationPolicy) EvalMutation(ctx context.Context, m *Mutation) error {
	for _, policy := range policies {
		switch decision := policy.EvalMutation(ctx, m); {
		case decision == nil || errors.Is(decision, Skip):
		default:
			return decision
		}
	}
	return nil
}

type decisionCtxKey struct{}

// DecisionContext creates a new context from the given parent context with
// a policy decision attach to it.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision from the context.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) EvalQuery(context.Context, *Query) error {
	return f.decision
}

func (f fixedDecision) EvalMutation(context.Context, *Mutation) error {
	return f.decision
}

type contextDecision struct {
	eval func(context.Context) error
}

func (c contextDecision) EvalQuery(ctx context.Context, _ *Query) error {
	return c.eval(ctx)
}

func (c contextDecision) EvalMutation(ctx context.Context, _ *Mutation) error {
	return c.eval(ctx)
}

// FilterFunc is an adapter that allows using ordinary functions as
// query/mutation rules that narrow the rows of an operation.
//
//	privacy.FilterFunc(func(ctx context.Context, f privacy.Filter) error {
//	    c, ok := f.Table().Column("workspace_id")
//	    if !ok {
//	        return privacy.Skip
//	    }
//	    f.Where(querylanguage.Column(c, querylanguage.OpEQ, workspaceID))
//	    return privacy.Skip
//	})
type FilterFunc func(context.Context, Filter) error

// EvalQuery calls f(ctx, q).
func (f FilterFunc) EvalQuery(ctx context.Context, q *Query) error {
	return f(ctx, q)
}

// EvalMutation calls f(ctx, m).
func (f FilterFunc) EvalMutation(ctx context.Context, m *Mutation) error {
	return f(ctx, m)
}

var _ QueryMutationRule = FilterFunc(nil)
