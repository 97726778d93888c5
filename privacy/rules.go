package privacy

import (
	"context"
	"fmt"
	"slices"

	"github.com/syssam/dbrest/querylanguage"
)

// Viewer represents the authenticated user making a request.
// This interface should be implemented by application-specific user types.
type Viewer interface {
	// GetID returns the viewer's unique identifier.
	GetID() string
	// GetRoles returns the viewer's roles.
	GetRoles() []string
	// GetTenantID returns the viewer's tenant identifier for multi-tenancy.
	// Returns empty string if not applicable.
	GetTenantID() string
}

// viewerCtxKey is the context key for storing the viewer.
type viewerCtxKey struct{}

// WithViewer returns a new context with the viewer attached.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext retrieves the viewer from the context.
// Returns nil if no viewer is present.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a basic implementation of the Viewer interface.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

// GetID returns the user ID.
func (v *SimpleViewer) GetID() string {
	return v.UserID
}

// GetRoles returns the user's roles.
func (v *SimpleViewer) GetRoles() []string {
	return v.Roles
}

// GetTenantID returns the tenant ID.
func (v *SimpleViewer) GetTenantID() string {
	return v.TenantID
}

// DenyIfNoViewer returns a rule that denies access if no viewer is present in the context.
// This is typically used as the first rule in a policy to require authentication.
//
// Example:
//
//	privacy.Policy{
//	    Mutation: privacy.MutationPolicy{
//	        privacy.DenyIfNoViewer(),
//	        privacy.HasRole("admin"),
//	        privacy.AlwaysDenyRule(),
//	    },
//	}
func DenyIfNoViewer() QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("privacy: viewer required")
		}
		return Skip
	})
}

// HasRole returns a rule that allows access if the viewer has the specified role.
// Skips if the viewer doesn't have the role.
func HasRole(role string) QueryMutationRule {
	return HasAnyRole(role)
}

// HasAnyRole returns a rule that allows access if the viewer has any of the specified roles.
// Skips if the viewer doesn't have any of the roles.
func HasAnyRole(roles ...string) QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		viewerRoles := viewer.GetRoles()
		for _, role := range roles {
			if slices.Contains(viewerRoles, role) {
				return Allow
			}
		}
		return Skip
	})
}

// IsOwner returns a mutation rule that allows access if the written record
// holds the viewer's ID in column.
//
// Example:
//
//	privacy.MutationPolicy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.IsOwner("user_id"),
//	    privacy.AlwaysDenyRule(),
//	}
func IsOwner(column string) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m *Mutation) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		value, ok := m.Field(column)
		if !ok {
			return Skip
		}
		if idString(value) == viewer.GetID() {
			return Allow
		}
		return Skip
	})
}

// OwnerFilter returns a rule that narrows reads and writes of a table to
// the rows holding the viewer's ID in column. Created records get the
// viewer's ID when they do not set the column. Tables without the column
// are skipped.
//
// Example:
//
//	privacy.Tables{
//	    "posts": {
//	        Query:    privacy.QueryPolicy{privacy.OwnerFilter("user_id")},
//	        Mutation: privacy.MutationPolicy{privacy.OwnerFilter("user_id")},
//	    },
//	}
func OwnerFilter(column string) QueryMutationRule {
	return columnFilter(column, "owner", Viewer.GetID)
}

// OwnerQueryRule returns a query rule that denies queries without viewer.
// Use it as a guard in front of OwnerFilter.
func OwnerQueryRule() QueryRule {
	return QueryRuleFunc(func(ctx context.Context, _ *Query) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("privacy: viewer required for owner-filtered query")
		}
		return Skip
	})
}

// TenantRule returns a mutation rule that allows access if the viewer's tenant
// matches the tenant of the written record. Used for multi-tenant isolation.
//
// Example:
//
//	privacy.MutationPolicy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.TenantRule("tenant_id"),
//	    privacy.AlwaysDenyRule(),
//	}
func TenantRule(column string) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m *Mutation) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		viewerTenant := viewer.GetTenantID()
		if viewerTenant == "" {
			return Skip
		}
		value, ok := m.Field(column)
		if !ok {
			return Skip
		}
		if idString(value) == viewerTenant {
			return Allow
		}
		return Denyf("privacy: tenant mismatch")
	})
}

// TenantFilter is like OwnerFilter for the viewer's tenant.
func TenantFilter(column string) QueryMutationRule {
	return columnFilter(column, "tenant", Viewer.GetTenantID)
}

// TenantQueryRule returns a query rule that denies queries if no viewer
// or tenant is present. Use this as a guard for tenant-filtered queries.
func TenantQueryRule() QueryRule {
	return QueryRuleFunc(func(ctx context.Context, _ *Query) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Denyf("privacy: viewer required for tenant-filtered query")
		}
		if viewer.GetTenantID() == "" {
			return Denyf("privacy: tenant required")
		}
		return Skip
	})
}

func columnFilter(column, kind string, value func(Viewer) string) QueryMutationRule {
	return FilterFunc(func(ctx context.Context, f Filter) error {
		c, ok := f.Table().Column(column)
		if !ok {
			return Skip
		}
		viewer := ViewerFromContext(ctx)
		if viewer == nil || value(viewer) == "" {
			return Denyf("privacy: %s required for %q", kind, f.Table().Name)
		}
		id := value(viewer)
		if m, ok := f.(*Mutation); ok && m.Op().Is(OpCreate) {
			if v, ok := m.Field(column); !ok {
				m.SetField(column, id)
			} else if idString(v) != id {
				return Denyf("privacy: %s mismatch", kind)
			}
		}
		f.Where(querylanguage.Column(c, querylanguage.OpEQ, id))
		return Skip
	})
}

func idString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
