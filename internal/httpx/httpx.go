// Package httpx holds the JSON error envelope and request binding shared by all
// handlers.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Error is an HTTP failure with a stable machine-readable reason.
type Error struct {
	Status  int
	Reason  string
	Message string
}

func (e *Error) Error() string { return e.Message }

// NewError builds an Error.
func NewError(status int, reason, message string) *Error {
	return &Error{Status: status, Reason: reason, Message: message}
}

// Body is the wire form of every error response.
type Body struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Bind decodes the JSON body into dst and validates its `validate` tags.
func Bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return NewError(http.StatusBadRequest, "invalid_request", "malformed request body")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, strings.ToLower(fe.Field())+" ("+fe.Tag()+")")
			}
			return NewError(http.StatusBadRequest, "invalid_request", "invalid fields: "+strings.Join(fields, ", "))
		}
		return NewError(http.StatusBadRequest, "invalid_request", err.Error())
	}
	return nil
}

// ErrorHandler renders errors as Body. Unknown errors are logged and hidden
// behind a generic 500.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var (
			apiErr   *Error
			fiberErr *fiber.Error
			body     Body
			status   int
		)
		switch {
		case errors.As(err, &apiErr):
			status, body = apiErr.Status, Body{Reason: apiErr.Reason, Message: apiErr.Message}
		case errors.As(err, &fiberErr):
			status, body = fiberErr.Code, Body{Reason: reasonForStatus(fiberErr.Code), Message: fiberErr.Message}
		default:
			logger.Error("unhandled request error",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.Any("error", err),
			)
			status, body = http.StatusInternalServerError, Body{Reason: "internal", Message: "internal server error"}
		}
		return c.Status(status).JSON(body)
	}
}

func reasonForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusTooManyRequests:
		return "rate_limited"
	}
	if status >= http.StatusInternalServerError {
		return "internal"
	}
	return strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
}

// StatusOf returns the status code ErrorHandler will write for err, or fallback
// when err is nil.
func StatusOf(err error, fallback int) int {
	var (
		apiErr   *Error
		fiberErr *fiber.Error
	)
	switch {
	case err == nil:
		return fallback
	case errors.As(err, &apiErr):
		return apiErr.Status
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	default:
		return http.StatusInternalServerError
	}
}
