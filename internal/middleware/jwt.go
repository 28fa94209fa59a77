package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/marocdeals/marocdeals_api/internal/auth"
	"github.com/marocdeals/marocdeals_api/internal/httpx"
)

// JWTAuth validates bearer session tokens and stores the account id in locals.
func JWTAuth(tokens *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return httpx.NewError(http.StatusUnauthorized, "unauthorized", "missing bearer token")
		}
		claims, err := tokens.Parse(strings.TrimSpace(authz[len("Bearer "):]))
		if err != nil {
			return httpx.NewError(http.StatusUnauthorized, "unauthorized", "invalid token")
		}
		c.Locals(auth.LocalAccountID, claims.Subject)
		return c.Next()
	}
}
