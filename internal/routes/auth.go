package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/marocdeals/marocdeals_api/internal/auth"
	"github.com/marocdeals/marocdeals_api/internal/signup"
)

// AuthLimits are the per-route guards applied by RegisterAuthRoutes.
type AuthLimits struct {
	Code       fiber.Handler
	Login      fiber.Handler
	Idempotent fiber.Handler
}

// RegisterAuthRoutes wires the signup and login endpoints used by the frontend.
func RegisterAuthRoutes(r fiber.Router, s *signup.Handler, h *auth.Handler, l AuthLimits) {
	group := r.Group("/auth")
	group.Post("/send-verification", l.Code, s.SendVerification)
	group.Post("/verify-code", s.VerifyCode)
	group.Post("/signup", l.Idempotent, s.Signup)
	group.Post("/login", l.Login, h.Login)
	group.Get("/verify/:token", h.VerifyLink)
}
