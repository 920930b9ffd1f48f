// Package authapi exposes the session-keeper HTTP surface: interactive login
// and logout, session inspection, and the shared-secret job routes the
// external scheduler calls.
package authapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/auth/refresh"
	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/auth/session"
)

// AuthService is the slice of the session service the handlers need.
type AuthService interface {
	Login(ctx context.Context, email, password, fingerprint string) (session.LoginOutcome, error)
	Logout(ctx context.Context, email, fingerprint string) (int64, error)
	Sessions(ctx context.Context, email string) ([]session.Session, error)
}

// JobRunner runs the scheduled maintenance jobs to completion.
type JobRunner interface {
	Run(ctx context.Context) (refresh.Result, error)
	Cleanup(ctx context.Context) (int64, error)
}

// Handler wires the HTTP endpoints to the auth service and the batch jobs.
type Handler struct {
	log     *slog.Logger
	cfg     Config
	auth    AuthService
	jobs    JobRunner
	metrics *Metrics
}

// HandlerOption configures optional Handler dependencies.
type HandlerOption func(*Handler)

// WithMetrics attaches login outcome counters.
func WithMetrics(m *Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler constructs the auth API handler.
func NewHandler(log *slog.Logger, cfg Config, auth AuthService, jobs JobRunner, opts ...HandlerOption) *Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{log: log, cfg: cfg, auth: auth, jobs: jobs}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Register wires the routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.HandleFunc("/auth/sessions", h.handleSessions)
	mux.HandleFunc("/jobs/refresh-sessions", h.handleRefreshJob)
	mux.HandleFunc("/jobs/cleanup-sessions", h.handleCleanupJob)
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	out, err := h.auth.Login(r.Context(), req.Email, req.Password, strings.TrimSpace(req.Fingerprint))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRateLimited):
			h.countLogin("rate_limited")
			var rle session.RateLimitError
			retryAfter := time.Duration(0)
			if errors.As(err, &rle) {
				retryAfter = rle.RetryAfter
			}
			writeRateLimited(w, retryAfter, "rate_limited", "too many failed login attempts")
		case errors.Is(err, session.ErrLoginFailed):
			h.countLogin("invalid_credentials")
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "upstream rejected the credentials")
		default:
			h.countLogin("error")
			h.log.Error("api.login.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.countLogin("ok")
	writeJSON(w, http.StatusOK, loginResponse{
		Session:         toSessionResponse(out.Device),
		BackgroundOK:    out.BackgroundOK,
		BackgroundError: out.BackgroundErr,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req logoutRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}

	removed, err := h.auth.Logout(r.Context(), req.Email, strings.TrimSpace(req.Fingerprint))
	if err != nil {
		h.log.Error("api.logout.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, logoutResponse{Removed: removed})
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email query parameter is required")
		return
	}

	sessions, err := h.auth.Sessions(r.Context(), email)
	if err != nil {
		h.log.Error("api.sessions.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	resp := sessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRefreshJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.requireJobSecret(w, r) {
		return
	}

	// The scheduler needs the full tally synchronously; never dispatch the
	// run to a goroutine and answer early.
	res, err := h.jobs.Run(r.Context())
	if err != nil {
		h.log.Error("api.jobs.refresh.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "refresh job failed")
		return
	}
	if res.Errors == nil {
		res.Errors = []refresh.SessionError{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleCleanupJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.requireJobSecret(w, r) {
		return
	}

	removed, err := h.jobs.Cleanup(r.Context())
	if err != nil {
		h.log.Error("api.jobs.cleanup.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "cleanup job failed")
		return
	}
	writeJSON(w, http.StatusOK, cleanupResponse{Removed: removed})
}

// ---- helpers ----

func (h *Handler) requireJobSecret(w http.ResponseWriter, r *http.Request) bool {
	if h.cfg.JobsSecret == "" {
		writeError(w, http.StatusServiceUnavailable, "jobs_disabled", "job routes are not configured")
		return false
	}
	token := bearerToken(r)
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.JobsSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid job secret")
		return false
	}
	return true
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (h *Handler) countLogin(outcome string) {
	if h.metrics != nil {
		h.metrics.logins.WithLabelValues(outcome).Inc()
	}
}
