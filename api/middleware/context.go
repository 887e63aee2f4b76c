package middleware

import (
	"context"

	"github.com/angelmondragon/influencehub-backend/pkg/enums"
)

// principal is what Auth stores for downstream handlers once a token verifies.
type principal struct {
	userID string
	role   string
}

type principalKey struct{}

func principalFrom(ctx context.Context) principal {
	if ctx == nil {
		return principal{}
	}
	p, _ := ctx.Value(principalKey{}).(principal)
	return p
}

func withPrincipal(ctx context.Context, p principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// UserIDFromContext returns the authenticated user id, or "" on anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	return principalFrom(ctx).userID
}

// RoleFromContext returns the authenticated marketplace role, or "".
func RoleFromContext(ctx context.Context) string {
	return principalFrom(ctx).role
}

func WithUserID(ctx context.Context, userID string) context.Context {
	p := principalFrom(ctx)
	p.userID = userID
	return withPrincipal(ctx, p)
}

func WithRole(ctx context.Context, role enums.UserRole) context.Context {
	p := principalFrom(ctx)
	p.role = string(role)
	return withPrincipal(ctx, p)
}
