package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// DefaultContextKey is the fiber locals key holding verified claims
const DefaultContextKey = "admin"

// WithPrincipal sets the verified principal in the given context
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, principal)
}

// PrincipalFromContext finds the principal in the context
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	raw, ok := ctx.Value(principalCtxKey).(Principal)
	return raw, ok
}

// GetPrincipal returns the principal the guard attached to the request
func GetPrincipal(c *fiber.Ctx, key ...string) (Principal, bool) {
	if p, ok := PrincipalFromContext(c.UserContext()); ok {
		return p, true
	}

	localsKey := DefaultContextKey
	if len(key) > 0 && key[0] != "" {
		localsKey = key[0]
	}

	claims, ok := c.Locals(localsKey).(*SessionClaims)
	if !ok || claims == nil {
		return Principal{}, false
	}
	return claims.Principal(), true
}
