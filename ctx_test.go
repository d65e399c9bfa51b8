package auth

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetClaims(t *testing.T) {
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user123"},
		UID:              "user123",
	}

	got, ok := GetClaims(WithClaimsContext(context.Background(), claims))
	assert.True(t, ok)
	assert.Same(t, claims, got)

	got, ok = GetClaims(context.Background())
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestPrincipalFromContext(t *testing.T) {
	p := &Principal{ID: "u1", Name: "Ana", Email: "ana@example.com"}

	got, ok := PrincipalFromContext(WithPrincipal(context.Background(), p))
	assert.True(t, ok)
	assert.Equal(t, p, got)

	_, ok = PrincipalFromContext(context.Background())
	assert.False(t, ok)

	_, ok = PrincipalFromContext(WithPrincipal(context.Background(), nil))
	assert.False(t, ok)
}

func TestSetAndGetPrincipalOnFiber(t *testing.T) {
	app := fiber.New()
	p := &Principal{ID: "u1", Name: "Ana", Email: "ana@example.com"}

	app.Get("/", func(c *fiber.Ctx) error {
		SetPrincipal(c, "", p)

		fromLocals, ok := GetPrincipal(c, DefaultContextKey)
		require.True(t, ok)
		assert.Equal(t, p, fromLocals)

		fromCtx, ok := PrincipalFromContext(c.UserContext())
		require.True(t, ok)
		assert.Equal(t, p, fromCtx)

		_, ok = GetPrincipal(c, "other")
		assert.True(t, ok, "falls back to the user context")

		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
