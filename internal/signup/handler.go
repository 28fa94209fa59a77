package signup

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/marocdeals/marocdeals_api/internal/account"
	"github.com/marocdeals/marocdeals_api/internal/auth"
	"github.com/marocdeals/marocdeals_api/internal/httpx"
	"github.com/marocdeals/marocdeals_api/internal/verification"
)

// Handler exposes the verification and signup endpoints.
type Handler struct {
	flow   *Flow
	tokens *auth.Service
}

// NewHandler builds the signup handler.
func NewHandler(flow *Flow, tokens *auth.Service) *Handler {
	return &Handler{flow: flow, tokens: tokens}
}

type requestCodeRequest struct {
	Identity string `json:"identity" validate:"required,email"`
}

type checkCodeRequest struct {
	Identity string `json:"identity" validate:"required,email"`
	Code     string `json:"code" validate:"required,max=16"`
}

// RequestCode handles POST /verification/request.
func (h *Handler) RequestCode(c *fiber.Ctx) error {
	var req requestCodeRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	if err := h.flow.RequestCode(c.UserContext(), req.Identity); err != nil {
		return requestCodeError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{})
}

// CheckCode handles POST /verification/check.
func (h *Handler) CheckCode(c *fiber.Ctx) error {
	var req checkCodeRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	if err := h.flow.SubmitCode(c.UserContext(), req.Identity, req.Code); err != nil {
		return checkCodeError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{})
}

type legacySendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type legacyVerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,max=16"`
}

// SendVerification is the frontend alias of RequestCode (POST /api/auth/send-verification).
func (h *Handler) SendVerification(c *fiber.Ctx) error {
	var req legacySendRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	if err := h.flow.RequestCode(c.UserContext(), req.Email); err != nil {
		return requestCodeError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Code de vérification envoyé"})
}

// VerifyCode is the frontend alias of CheckCode (POST /api/auth/verify-code).
func (h *Handler) VerifyCode(c *fiber.Ctx) error {
	var req legacyVerifyRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	if err := h.flow.SubmitCode(c.UserContext(), req.Email, req.Code); err != nil {
		return checkCodeError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Code vérifié avec succès"})
}

type signupRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Signup creates the account once the email is verified and returns a session.
func (h *Handler) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	acc, err := h.flow.CreateAccount(c.UserContext(), req.Email, Credentials{Username: req.Username, Password: req.Password})
	switch {
	case errors.Is(err, ErrNotVerified):
		return httpx.NewError(http.StatusBadRequest, "verification_required", "Vérification requise avant création du compte")
	case errors.Is(err, account.ErrAlreadyExists):
		return httpx.NewError(http.StatusConflict, "already_exists", "Email déjà utilisé")
	case errors.Is(err, verification.ErrUnavailable):
		return httpx.NewError(http.StatusServiceUnavailable, "unavailable", "service temporarily unavailable")
	case errors.Is(err, account.ErrWeakPassword):
		return httpx.NewError(http.StatusBadRequest, "weak_password", err.Error())
	case err != nil:
		return err
	}

	tok, err := h.tokens.Issue(acc)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(auth.SessionResponse{
		Token:     tok.AccessToken,
		Username:  acc.Username,
		ExpiresAt: tok.ExpiresAt.Unix(),
		Message:   "Compte créé avec succès !",
	})
}

func requestCodeError(err error) error {
	switch {
	case errors.Is(err, ErrDeliveryFailed):
		return httpx.NewError(http.StatusBadGateway, "delivery_failed", "Erreur lors de l'envoi du code, réessayez")
	case errors.Is(err, verification.ErrUnavailable):
		return httpx.NewError(http.StatusServiceUnavailable, "unavailable", "service temporarily unavailable")
	default:
		return err
	}
}

func checkCodeError(err error) error {
	if errors.Is(err, verification.ErrUnavailable) {
		return httpx.NewError(http.StatusServiceUnavailable, "unavailable", "service temporarily unavailable")
	}
	var verr *verification.Error
	if errors.As(err, &verr) {
		return httpx.NewError(http.StatusBadRequest, verr.Reason, checkMessages[verr.Reason])
	}
	return err
}

var checkMessages = map[string]string{
	verification.ErrNotFound.Reason:        "Code non trouvé ou expiré",
	verification.ErrExpired.Reason:         "Code expiré",
	verification.ErrTooManyAttempts.Reason: "Trop de tentatives. Demandez un nouveau code",
	verification.ErrMismatch.Reason:        "Code incorrect",
}
