package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/marocdeals/marocdeals_api/internal/account"
	"github.com/marocdeals/marocdeals_api/internal/httpx"
	"github.com/marocdeals/marocdeals_api/internal/logging"
)

// LocalAccountID is the fiber.Ctx locals key holding the authenticated account id.
const LocalAccountID = "account_id"

// Handler exposes login, link verification and profile endpoints.
type Handler struct {
	accounts *account.Service
	tokens   *Service
	logger   *slog.Logger
}

// NewHandler builds the auth handler.
func NewHandler(accounts *account.Service, tokens *Service, logger *slog.Logger) *Handler {
	return &Handler{accounts: accounts, tokens: tokens, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SessionResponse is returned by login and signup.
type SessionResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresAt int64  `json:"expires_at"`
	Message   string `json:"message"`
}

// Login validates credentials and returns a session token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	acc, err := h.accounts.Authenticate(c.UserContext(), req.Email, req.Password)
	switch {
	case errors.Is(err, account.ErrInvalidCredentials):
		return httpx.NewError(http.StatusUnauthorized, "invalid_credentials", "Email ou mot de passe invalide")
	case errors.Is(err, account.ErrNotVerified):
		return httpx.NewError(http.StatusForbidden, "not_verified", "Compte non vérifié")
	case err != nil:
		return err
	}

	tok, err := h.tokens.Issue(acc)
	if err != nil {
		return err
	}
	h.logger.Info("auth.login", slog.String("account_id", acc.ID), slog.String("email", logging.RedactEmail(acc.Email)))
	return c.Status(http.StatusOK).JSON(SessionResponse{
		Token:     tok.AccessToken,
		Username:  acc.Username,
		ExpiresAt: tok.ExpiresAt.Unix(),
		Message:   "Connexion réussie",
	})
}

// VerifyLink marks the account named by an emailed token as verified.
func (h *Handler) VerifyLink(c *fiber.Ctx) error {
	claims, err := h.tokens.ParseLink(c.Params("token"))
	if err != nil {
		return httpx.NewError(http.StatusBadRequest, "invalid_link", "Lien invalide ou expiré")
	}
	acc, err := h.accounts.MarkVerified(c.UserContext(), claims.Subject)
	if errors.Is(err, account.ErrNotFound) {
		return httpx.NewError(http.StatusBadRequest, "account_not_found", "Utilisateur introuvable")
	}
	if err != nil {
		return err
	}
	h.logger.Info("auth.verify_link", slog.String("account_id", acc.ID))
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Votre compte est vérifié !"})
}

// Me returns the authenticated account profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	id, _ := c.Locals(LocalAccountID).(string)
	if id == "" {
		return httpx.NewError(http.StatusUnauthorized, "unauthorized", "missing session")
	}
	acc, err := h.accounts.Get(c.UserContext(), id)
	if errors.Is(err, account.ErrNotFound) {
		return httpx.NewError(http.StatusUnauthorized, "unauthorized", "account not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"id":          acc.ID,
		"username":    acc.Username,
		"email":       acc.Email,
		"is_verified": acc.IsVerified,
		"created_at":  acc.CreatedAt,
	})
}
