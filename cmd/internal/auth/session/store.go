package session

import (
	"context"
	"time"

	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/cookie"
)

// FindFilter narrows a Find call. With neither field set, Find resolves the
// background session — the one unattended jobs run on.
type FindFilter struct {
	Fingerprint string
	Type        Type
}

// DeleteFilter selects sessions for deletion. Resolution order:
//  1. Fingerprint set: delete that exact session regardless of type.
//  2. Type set: delete all sessions of that type; background requires
//     ConfirmProtected or the call fails with ErrProtectedDeletionDenied.
//  3. Neither set: delete all device sessions (the safe default).
type DeleteFilter struct {
	Fingerprint      string
	Type             Type
	ConfirmProtected bool
}

// Store abstracts persistence for session state.
//
// All operations are single-row or single-predicate; no multi-row transaction
// spans Store calls. Every mutation stamps updated_at. Targeted updates
// (UpdateToken, UpdateCookies, Record*Outcome) fail with ErrSessionNotFound
// when they match zero rows.
type Store interface {
	// Upsert inserts or updates the row keyed by (email, fingerprint).
	// Protected is derived server-side from the session type; any
	// client-supplied value is ignored.
	Upsert(ctx context.Context, now time.Time, s Session) (Session, error)

	// Find resolves one session per the FindFilter rules. When Type is set
	// without a fingerprint, the most recently updated match wins.
	Find(ctx context.Context, email string, f FindFilter) (Session, error)

	// ListByType enumerates an email's sessions of one type.
	ListByType(ctx context.Context, email string, t Type) ([]Session, error)

	// ListAll enumerates all of an email's sessions.
	ListAll(ctx context.Context, email string) ([]Session, error)

	// Delete removes sessions per the DeleteFilter rules and returns how
	// many rows went away.
	Delete(ctx context.Context, email string, f DeleteFilter) (int64, error)

	// UpdateToken replaces the token of the session matched by fingerprint,
	// or of the background session when fingerprint is empty.
	UpdateToken(ctx context.Context, now time.Time, email, newToken, fingerprint string) error

	// UpdateCookies replaces the cookie set of the matched session.
	UpdateCookies(ctx context.Context, now time.Time, email string, cookies []cookie.Cookie, fingerprint string) error

	// RecordRefreshOutcome tracks a legacy-refresh attempt: increments
	// refresh_count on success, always stamps last_refresh_date, and stores
	// or clears last_refresh_error.
	RecordRefreshOutcome(ctx context.Context, now time.Time, email string, success bool, cause, fingerprint string) error

	// RecordTokenUpdateOutcome tracks a token-update attempt the same way.
	RecordTokenUpdateOutcome(ctx context.Context, now time.Time, email string, success bool, cause, fingerprint string) error

	// ListActiveBackgroundSessions returns every background session.
	// There is no age filter: background sessions never expire by policy.
	ListActiveBackgroundSessions(ctx context.Context) ([]Session, error)

	// CleanupExpiredDeviceSessions deletes device sessions older than the
	// retention window and returns the count removed. Background rows are
	// never touched.
	CleanupExpiredDeviceSessions(ctx context.Context, now time.Time, retention time.Duration) (int64, error)
}
