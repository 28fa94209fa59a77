package verification

import "errors"

// Error is a verification outcome the caller can act on. Reason is stable and
// safe to expose to clients.
type Error struct {
	Reason  string
	message string
}

func (e *Error) Error() string { return e.message }

var (
	// ErrNotFound means no code is pending for the identity: never issued, or
	// already consumed.
	ErrNotFound = &Error{Reason: "code_not_found", message: "verification code not found"}

	// ErrExpired means the pending code outlived its TTL. The entry is removed.
	ErrExpired = &Error{Reason: "code_expired", message: "verification code expired"}

	// ErrTooManyAttempts means the attempt ceiling was reached. The entry is removed.
	ErrTooManyAttempts = &Error{Reason: "too_many_attempts", message: "too many attempts, request a new code"}

	// ErrMismatch means the submitted code is wrong. The entry is kept and the
	// attempt counter incremented.
	ErrMismatch = &Error{Reason: "code_mismatch", message: "incorrect verification code"}
)

// ErrUnavailable wraps backend failures (e.g. Redis down). It is not a verdict on
// the submitted code.
var ErrUnavailable = errors.New("verification store unavailable")

// Reason extracts the client-facing reason code from err, or "" when err is not
// a verification outcome.
func Reason(err error) string {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return ""
}

// Retryable reports whether the same code may be resubmitted to the same entry.
func Retryable(err error) bool {
	return errors.Is(err, ErrMismatch)
}
