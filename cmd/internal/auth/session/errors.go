package session

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSessionNotFound is returned when a lookup or a targeted update
	// matches zero rows. Targeted updates never treat zero rows as success:
	// silence here would let fingerprint drift corrupt tracking data.
	ErrSessionNotFound = errors.New("session not found")

	// ErrProtectedDeletionDenied is returned when a background-session
	// deletion is requested without the explicit confirmation flag.
	ErrProtectedDeletionDenied = errors.New("protected session deletion denied")

	// ErrEmptyFingerprint is returned when a write carries no fingerprint.
	// Fingerprints are required; a row without one would be corrupt.
	ErrEmptyFingerprint = errors.New("empty fingerprint")

	// ErrRateLimited is returned when too many failed login attempts were
	// made for an email inside the guard window.
	ErrRateLimited = errors.New("login rate limited")

	// ErrLoginFailed is returned when the device login against the upstream
	// failed; the cause is carried alongside.
	ErrLoginFailed = errors.New("login failed")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// RateLimitError carries retry metadata for login throttling.
type RateLimitError struct {
	Email      string
	RetryAfter time.Duration
}

func (e RateLimitError) Error() string {
	if e.RetryAfter <= 0 {
		return ErrRateLimited.Error()
	}
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited.Error(), e.RetryAfter)
}

func (e RateLimitError) Unwrap() error { return ErrRateLimited }
