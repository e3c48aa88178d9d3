package shared

import (
	"context"

	"github.com/kasirku/kasirku/internal/roles"
)

// Principal describes the authenticated actor of a request.
type Principal struct {
	UserID    string
	Email     string
	Name      string
	Role      roles.Role
	SessionID string
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
