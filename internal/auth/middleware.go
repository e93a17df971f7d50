package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/pod-console/internal/domain"
)

const principalKey = "auth_principal"

// Principal is the session state seen by one console request.
type Principal struct {
	HasToken bool
	Role     domain.Role
}

// SessionState exposes what the guards need from the session.
type SessionState interface {
	HasToken(ctx context.Context) bool
	Role() domain.Role
}

// AuthMiddleware snapshots the session into the request.
type AuthMiddleware struct {
	state SessionState
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(state SessionState) *AuthMiddleware {
	return &AuthMiddleware{state: state}
}

// Handle stores the principal for the guards further down the chain.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	c.Locals(principalKey, &Principal{
		HasToken: m.state.HasToken(c.UserContext()),
		Role:     m.state.Role(),
	})
	return c.Next()
}

// PrincipalFromContext retrieves the request's principal.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// Require runs guard on every request and redirects when it refuses.
// A missing principal counts as logged out.
func Require(guard Guard) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			principal = &Principal{}
		}
		decision := guard(principal.HasToken, principal.Role)
		if !decision.Allow {
			return c.Redirect(decision.Redirect, fiber.StatusFound)
		}
		return c.Next()
	}
}
