package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/cookie"
	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/upstream"
)

// Upstream is the slice of the protocol client the orchestrator needs.
type Upstream interface {
	Login(ctx context.Context, email, password, fingerprint string) (upstream.LoginResult, error)
	LegacyRefresh(ctx context.Context, token, fingerprint string, cookies []cookie.Cookie) (upstream.RefreshResult, error)
}

// Service implements the high-level auth operations: dual login (device plus
// background), logout, and the login attempt guard around them.
type Service struct {
	cfg    Config
	log    *slog.Logger
	store  Store
	client Upstream
	guard  LoginGuard
}

// NewService constructs a Service. A nil guard gets the in-process default.
func NewService(cfg Config, log *slog.Logger, store Store, client Upstream, guard LoginGuard) *Service {
	if log == nil {
		log = slog.Default()
	}
	if guard == nil {
		guard = NewMemoryLoginGuard(cfg.LoginFailureLimit, cfg.LoginFailureWindow)
	}
	return &Service{cfg: cfg, log: log, store: store, client: client, guard: guard}
}

// LoginOutcome is a successful dual login. Device is the session the caller
// uses immediately; the background leg may have failed without failing the
// operation.
type LoginOutcome struct {
	Device Session

	BackgroundOK  bool
	BackgroundErr string
}

// Login authenticates email against the upstream twice: once for the
// interactive device session and once for the protected background session.
//
// Outcome policy: a device failure fails the whole operation and counts as a
// failed attempt. A background failure after a device success only degrades
// unattended pre-booking and is logged as a warning.
func (s *Service) Login(ctx context.Context, email, password, deviceFingerprint string) (LoginOutcome, error) {
	email = strings.TrimSpace(email)
	now := time.Now().UTC()

	// Fail fast before any upstream call when the guard is tripped.
	if blocked, retryAfter := s.guard.Check(email, now); blocked {
		s.log.Warn("auth.login.rate_limited", "email", email, "retry_after", retryAfter)
		return LoginOutcome{}, RateLimitError{Email: email, RetryAfter: retryAfter}
	}

	if deviceFingerprint == "" {
		deviceFingerprint = s.cfg.FallbackDeviceFingerprint
	}

	device, err := s.loginOne(ctx, email, password, deviceFingerprint, TypeDevice)
	if err != nil {
		s.guard.RecordFailure(email, time.Now().UTC())
		s.log.Warn("auth.login.device.fail", "email", email, "err", err)
		return LoginOutcome{}, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	out := LoginOutcome{Device: device, BackgroundOK: true}

	if _, err := s.loginOne(ctx, email, password, DeriveBackgroundFingerprint(email), TypeBackground); err != nil {
		// Unattended pre-bookings will not work until the next successful
		// login; the interactive session is still usable.
		out.BackgroundOK = false
		out.BackgroundErr = err.Error()
		s.log.Warn("auth.login.background.fail", "email", email, "err", err)
	}

	s.guard.Clear(email)
	s.log.Info("auth.login.ok", "email", email, "background_ok", out.BackgroundOK)
	return out, nil
}

// loginOne performs one upstream login and persists the resulting session.
func (s *Service) loginOne(ctx context.Context, email, password, fingerprint string, t Type) (Session, error) {
	res, err := s.client.Login(ctx, email, password, fingerprint)
	if err != nil {
		return Session{}, err
	}

	if ok, missing := cookie.ValidateRequired(res.Cookies); !ok {
		// Degraded but not fatal: some cookies only appear on later calls.
		s.log.Warn("auth.login.cookies.incomplete", "email", email, "missing", missing)
	}

	now := time.Now().UTC()
	sess, err := s.store.Upsert(ctx, now, Session{
		Email:       email,
		Fingerprint: fingerprint,
		Type:        t,
		Token:       res.Token,
		Cookies:     res.Cookies,
	})
	if err != nil {
		return Session{}, err
	}

	// Best-effort: trade the login token for a longer-lived refresh token.
	// Failure is tracked and logged, never propagated.
	s.upgradeToken(ctx, &sess)

	return sess, nil
}

// upgradeToken calls the legacy refresh endpoint and persists the refresh
// token over the login token when it succeeds.
func (s *Service) upgradeToken(ctx context.Context, sess *Session) {
	res, err := s.client.LegacyRefresh(ctx, sess.Token, sess.Fingerprint, sess.Cookies)
	now := time.Now().UTC()

	if err != nil {
		s.log.Warn("auth.login.token_upgrade.fail", "email", sess.Email, "type", string(sess.Type), "err", err)
		if rerr := s.store.RecordRefreshOutcome(ctx, now, sess.Email, false, err.Error(), sess.Fingerprint); rerr != nil {
			s.log.Error("auth.login.token_upgrade.record.fail", "email", sess.Email, "err", rerr)
		}
		return
	}

	if err := s.store.UpdateToken(ctx, now, sess.Email, res.Token, sess.Fingerprint); err != nil {
		s.log.Error("auth.login.token_upgrade.persist.fail", "email", sess.Email, "err", err)
		return
	}
	sess.Token = res.Token

	if err := s.store.RecordRefreshOutcome(ctx, now, sess.Email, true, "", sess.Fingerprint); err != nil {
		s.log.Error("auth.login.token_upgrade.record.fail", "email", sess.Email, "err", err)
	}
}

// Logout deletes device session(s) only: the exact fingerprint when given,
// otherwise every device session for the email. The upstream logout endpoint
// is never called — it would invalidate the shared background session too.
func (s *Service) Logout(ctx context.Context, email, fingerprint string) (int64, error) {
	email = strings.TrimSpace(email)

	removed, err := s.store.Delete(ctx, email, DeleteFilter{Fingerprint: fingerprint})
	if err != nil {
		return 0, err
	}

	s.guard.Clear(email)
	s.log.Info("auth.logout.ok", "email", email, "removed", removed)
	return removed, nil
}

// Sessions lists every stored session for an email.
func (s *Service) Sessions(ctx context.Context, email string) ([]Session, error) {
	return s.store.ListAll(ctx, strings.TrimSpace(email))
}
