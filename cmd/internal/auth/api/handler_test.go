package authapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/auth/refresh"
	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/auth/session"
)

type fakeAuth struct {
	loginOut session.LoginOutcome
	loginErr error

	logoutRemoved int64
	logoutErr     error

	sessions []session.Session
}

func (f *fakeAuth) Login(context.Context, string, string, string) (session.LoginOutcome, error) {
	return f.loginOut, f.loginErr
}

func (f *fakeAuth) Logout(context.Context, string, string) (int64, error) {
	return f.logoutRemoved, f.logoutErr
}

func (f *fakeAuth) Sessions(context.Context, string) ([]session.Session, error) {
	return f.sessions, nil
}

type fakeJobs struct {
	ran     int
	result  refresh.Result
	runErr  error
	removed int64
}

func (f *fakeJobs) Run(context.Context) (refresh.Result, error) {
	f.ran++
	return f.result, f.runErr
}

func (f *fakeJobs) Cleanup(context.Context) (int64, error) {
	return f.removed, nil
}

func newTestHandler(auth *fakeAuth, jobs *fakeJobs, secret string) *Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(log, Config{MaxBodyBytes: 1 << 20, JobsSecret: secret}, auth, jobs)
}

func serve(h *Handler, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleLogin_Success(t *testing.T) {
	auth := &fakeAuth{loginOut: session.LoginOutcome{
		Device: session.Session{
			ID: "01H", Email: "a@b.c", Fingerprint: "d1",
			Type: session.TypeDevice, Token: "secret-token",
		},
		BackgroundOK: true,
	}}
	h := newTestHandler(auth, &fakeJobs{}, "")

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"a@b.c","password":"pw","fingerprint":"d1"}`))
	rec := serve(h, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "d1", resp.Session.Fingerprint)
	assert.True(t, resp.BackgroundOK)

	// The stored token must never appear in a response.
	assert.NotContains(t, rec.Body.String(), "secret-token")
}

func TestHandleLogin_BadRequest(t *testing.T) {
	h := newTestHandler(&fakeAuth{}, &fakeJobs{}, "")

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"a@b.c"}`))
	rec := serve(h, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	auth := &fakeAuth{loginErr: fmt.Errorf("%w: upstream said no", session.ErrLoginFailed)}
	h := newTestHandler(auth, &fakeJobs{}, "")

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"a@b.c","password":"bad"}`))
	rec := serve(h, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_credentials")
}

func TestHandleLogin_RateLimited(t *testing.T) {
	auth := &fakeAuth{loginErr: session.RateLimitError{Email: "a@b.c", RetryAfter: 90 * time.Second}}
	h := newTestHandler(auth, &fakeJobs{}, "")

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"a@b.c","password":"pw"}`))
	rec := serve(h, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
}

func TestHandleLogout(t *testing.T) {
	auth := &fakeAuth{logoutRemoved: 1}
	h := newTestHandler(auth, &fakeJobs{}, "")

	req := httptest.NewRequest(http.MethodPost, "/auth/logout",
		strings.NewReader(`{"email":"a@b.c","fingerprint":"d1"}`))
	rec := serve(h, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"removed":1}`, rec.Body.String())
}

func TestHandleSessions(t *testing.T) {
	auth := &fakeAuth{sessions: []session.Session{
		{ID: "01H", Email: "a@b.c", Fingerprint: "d1", Type: session.TypeDevice, Token: "stored-secret"},
		{ID: "01J", Email: "a@b.c", Fingerprint: "bg", Type: session.TypeBackground, Protected: true, Token: "stored-secret-2"},
	}}
	h := newTestHandler(auth, &fakeJobs{}, "")

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/auth/sessions?email=a%40b.c", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp sessionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sessions, 2)
	assert.True(t, resp.Sessions[1].Protected)
	assert.NotContains(t, rec.Body.String(), "stored-secret")
}

func TestHandleSessions_RequiresEmail(t *testing.T) {
	h := newTestHandler(&fakeAuth{}, &fakeJobs{}, "")

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/auth/sessions", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobRoutes_SecretGuard(t *testing.T) {
	jobs := &fakeJobs{result: refresh.Result{Total: 3, Updated: 2, Skipped: 1}}
	h := newTestHandler(&fakeAuth{}, jobs, "s3cret")

	// No token.
	rec := serve(h, httptest.NewRequest(http.MethodPost, "/jobs/refresh-sessions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, jobs.ran)

	// Wrong token.
	req := httptest.NewRequest(http.MethodPost, "/jobs/refresh-sessions", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = serve(h, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, jobs.ran)

	// Correct token returns the full synchronous tally.
	req = httptest.NewRequest(http.MethodPost, "/jobs/refresh-sessions", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = serve(h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, jobs.ran)

	var res refresh.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 3, res.Total)
	assert.NotNil(t, res.Errors)
}

func TestJobRoutes_DisabledWithoutSecret(t *testing.T) {
	h := newTestHandler(&fakeAuth{}, &fakeJobs{}, "")

	req := httptest.NewRequest(http.MethodPost, "/jobs/refresh-sessions", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := serve(h, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCleanupJob(t *testing.T) {
	jobs := &fakeJobs{removed: 4}
	h := newTestHandler(&fakeAuth{}, jobs, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/jobs/cleanup-sessions", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := serve(h, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"removed":4}`, rec.Body.String())
}
