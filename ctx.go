package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

var principalCtxKey = &contextKey{"principal"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// DefaultContextKey is the fiber locals key the principal is stored under
const DefaultContextKey = "user"

// WithPrincipal sets the Principal in the given context
func WithPrincipal(r context.Context, p *Principal) context.Context {
	return context.WithValue(r, principalCtxKey, p)
}

// PrincipalFromContext finds the principal from the context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	raw, ok := ctx.Value(principalCtxKey).(*Principal)
	return raw, ok && raw != nil
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// SetPrincipal stores p on both the fiber locals and the user context so
// handlers and plain context consumers see the same value.
func SetPrincipal(c *fiber.Ctx, key string, p *Principal) {
	if key == "" {
		key = DefaultContextKey
	}
	c.Locals(key, p)
	c.SetUserContext(WithPrincipal(c.UserContext(), p))
}

// GetPrincipal extracts the principal from the fiber context
func GetPrincipal(c *fiber.Ctx, key string) (*Principal, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	if p, ok := c.Locals(key).(*Principal); ok && p != nil {
		return p, true
	}
	return PrincipalFromContext(c.UserContext())
}
