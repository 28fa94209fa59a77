package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/marocdeals/marocdeals_api/internal/signup"
)

// RegisterVerificationRoutes wires the code request and check endpoints.
func RegisterVerificationRoutes(r fiber.Router, h *signup.Handler, limiter fiber.Handler) {
	group := r.Group("/verification")
	group.Post("/request", limiter, h.RequestCode)
	group.Post("/check", h.CheckCode)
}
