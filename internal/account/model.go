package account

import (
	"errors"
	"time"
)

var (
	// ErrAlreadyExists is returned when an account with the same email exists.
	ErrAlreadyExists = errors.New("email already in use")
	// ErrNotFound is returned when no account matches.
	ErrNotFound = errors.New("account not found")
	// ErrInvalidCredentials hides which of email or password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrNotVerified is returned on login before the email was verified.
	ErrNotVerified = errors.New("account not verified")
	// ErrWeakPassword is returned when the password is too short.
	ErrWeakPassword = errors.New("password must be at least 6 characters")
)

// Account is a registered MarocDeals user.
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash []byte
	IsVerified   bool
	CreatedAt    time.Time
}

// NewAccount is the input to Service.Register.
type NewAccount struct {
	Username string
	Email    string
	Password string
	Verified bool
}
