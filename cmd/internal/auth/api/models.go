package authapi

import (
	"time"

	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/auth/session"
)

type loginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Fingerprint string `json:"fingerprint"`
}

type loginResponse struct {
	Session sessionResponse `json:"session"`

	BackgroundOK    bool   `json:"background_ok"`
	BackgroundError string `json:"background_error,omitempty"`
}

type logoutRequest struct {
	Email       string `json:"email"`
	Fingerprint string `json:"fingerprint"`
}

type logoutResponse struct {
	Removed int64 `json:"removed"`
}

type sessionResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Fingerprint string    `json:"fingerprint"`
	Type        string    `json:"type"`
	Protected   bool      `json:"protected"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	RefreshCount     int        `json:"refresh_count"`
	LastRefreshDate  *time.Time `json:"last_refresh_date,omitempty"`
	LastRefreshError *string    `json:"last_refresh_error,omitempty"`

	TokenUpdateCount     int        `json:"token_update_count"`
	LastTokenUpdateDate  *time.Time `json:"last_token_update_date,omitempty"`
	LastTokenUpdateError *string    `json:"last_token_update_error,omitempty"`
}

type sessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type cleanupResponse struct {
	Removed int64 `json:"removed"`
}

// toSessionResponse maps a stored session to its public shape. The token and
// cookies never leave the service.
func toSessionResponse(s session.Session) sessionResponse {
	return sessionResponse{
		ID:                   s.ID,
		Email:                s.Email,
		Fingerprint:          s.Fingerprint,
		Type:                 string(s.Type),
		Protected:            s.Protected,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
		RefreshCount:         s.RefreshCount,
		LastRefreshDate:      s.LastRefreshDate,
		LastRefreshError:     s.LastRefreshError,
		TokenUpdateCount:     s.TokenUpdateCount,
		LastTokenUpdateDate:  s.LastTokenUpdateDate,
		LastTokenUpdateError: s.LastTokenUpdateError,
	}
}
