package security

import "errors"

// Error taxonomy for the security core. All of these are recoverable at
// the request level; the HTTP layer maps each to a specific outcome
// instead of propagating it to the client raw.
var (
	// ErrInvalidCredentials is returned for an unknown username and for a
	// wrong password alike, so callers cannot enumerate users.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionExpired is returned when an authenticated session has
	// exceeded the idle timeout.
	ErrSessionExpired = errors.New("session expired")

	// ErrCSRFMismatch is returned when a state-changing request carries a
	// missing, expired, or non-matching CSRF token.
	ErrCSRFMismatch = errors.New("csrf token mismatch")

	// ErrRateLimited is returned when a fixed-window counter has exceeded
	// its configured maximum.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidLevel is returned when a security level is not one of the
	// four recognized values.
	ErrInvalidLevel = errors.New("invalid security level")

	// ErrStoreWrite wraps persistence failures in the settings store. A
	// failed ResetAll surfaces as a single aggregate ErrStoreWrite, never
	// as silent partial success.
	ErrStoreWrite = errors.New("settings store write failed")
)
