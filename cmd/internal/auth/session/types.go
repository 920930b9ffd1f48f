package session

import (
	"time"

	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/cookie"
)

// Type distinguishes interactive sessions from the unattended one.
type Type string

const (
	// TypeDevice is an interactive session created for a client-supplied
	// fingerprint. Device sessions expire by retention policy.
	TypeDevice Type = "device"
	// TypeBackground is the unattended session used by scheduled
	// pre-booking jobs. Background sessions are protected and never expire.
	TypeBackground Type = "background"
)

// Session mirrors one sessions row: a single authenticated upstream session
// for an (email, fingerprint) pair.
type Session struct {
	ID          string
	Email       string
	Fingerprint string
	Type        Type

	// Protected is sealed at creation: true iff Type is background. The
	// store derives it server-side and ignores any client-supplied value.
	Protected bool

	Token   string
	Cookies []cookie.Cookie

	CreatedAt time.Time
	UpdatedAt time.Time

	LastRefreshDate  *time.Time
	RefreshCount     int
	LastRefreshError *string

	LastTokenUpdateDate  *time.Time
	TokenUpdateCount     int
	LastTokenUpdateError *string
}

// LastTouched is the timestamp freshness decisions are made against:
// UpdatedAt when set, otherwise CreatedAt.
func (s Session) LastTouched() time.Time {
	if !s.UpdatedAt.IsZero() {
		return s.UpdatedAt
	}
	return s.CreatedAt
}
