// Package privacy evaluates per-table access rules before records are read
// or written.
//
// # Core Concepts
//
// The privacy layer is built around three main concepts:
//
//   - Policy: the query and mutation rules of a table
//   - Rule: a function that returns Allow, Deny, or Skip decisions
//   - Viewer: an interface representing the current user
//
// # Defining Policies
//
// Policies are keyed by table name. The AnyTable entry applies to every
// table and runs first:
//
//	policies := privacy.Tables{
//	    privacy.AnyTable: {
//	        Mutation: privacy.MutationPolicy{privacy.DenyIfNoViewer()},
//	    },
//	    "orders": {
//	        Query:    privacy.QueryPolicy{privacy.TenantFilter("tenant_id")},
//	        Mutation: privacy.MutationPolicy{
//	            privacy.HasRole("admin"),
//	            privacy.IsOwner("user_id"),
//	            privacy.AlwaysDenyRule(),
//	        },
//	    },
//	}
//
// # Rule Evaluation
//
// Rules are evaluated in order until one returns a final decision:
//
//   - Allow: grants access and stops evaluation
//   - Deny: denies access and stops evaluation
//   - Skip: continues to the next rule
//
// If all rules return Skip the operation is allowed. End a policy with
// AlwaysDenyRule to deny by default.
//
// # Row Conditions
//
// Filter rules such as OwnerFilter and TenantFilter narrow an operation
// instead of deciding it. Apply stores the conditions they add in the
// context with WithCondition, and the record store ANDs ConditionFor into
// every statement on the table:
//
//	ctx, err := privacy.Apply(ctx, policies, privacy.NewQuery(orders))
//	if err != nil {
//	    return err
//	}
//	records, err := store.List(ctx, cond, order, 0, 20)
//
// # Viewer
//
// The viewer is stored in context and retrieved during policy evaluation:
//
//	ctx := privacy.WithViewer(ctx, &privacy.SimpleViewer{
//	    UserID:   "user-123",
//	    Roles:    []string{"user"},
//	    TenantID: "tenant-abc",
//	})
package privacy
