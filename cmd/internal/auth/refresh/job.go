// Package refresh implements the scheduled batch job that keeps background
// sessions alive by trading their stored token for a fresh one against the
// upstream token-update endpoint.
//
// The job is strictly sequential: one upstream call at a time bounds the load
// on the booking platform and keeps failure isolation trivial. Every error
// inside one session's refresh is converted into a tally entry; it never
// aborts the remaining sessions. The caller must await the full Result — the
// job runs inside a request with a wall-clock budget and there is no
// background execution guarantee, so fire-and-forget dispatch is unsafe.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/auth/session"
	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/cookie"
	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/upstream"
)

// TokenUpdater is the slice of the upstream client the job needs.
type TokenUpdater interface {
	TokenUpdate(ctx context.Context, token, fingerprint string, cookies []cookie.Cookie) (upstream.TokenUpdateResult, error)
}

// Result aggregates one full run of the job.
type Result struct {
	Total   int            `json:"total"`
	Updated int            `json:"updated"`
	Skipped int            `json:"skipped"`
	Failed  int            `json:"failed"`
	Errors  []SessionError `json:"errors"`
}

// SessionError names the identity a failed refresh belongs to.
type SessionError struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// Job walks every background session once per invocation.
type Job struct {
	cfg     session.Config
	log     *slog.Logger
	store   session.Store
	client  TokenUpdater
	metrics *Metrics
}

// Option configures optional Job dependencies.
type Option func(*Job)

// WithMetrics attaches run counters and the duration histogram.
func WithMetrics(m *Metrics) Option {
	return func(j *Job) { j.metrics = m }
}

// NewJob constructs the batch job.
func NewJob(cfg session.Config, log *slog.Logger, store session.Store, client TokenUpdater, opts ...Option) *Job {
	if log == nil {
		log = slog.Default()
	}
	j := &Job{cfg: cfg, log: log, store: store, client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(j)
		}
	}
	return j
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeUpdated
	outcomeFailed
)

func (o outcome) String() string {
	switch o {
	case outcomeSkipped:
		return "skipped"
	case outcomeUpdated:
		return "updated"
	default:
		return "failed"
	}
}

// Run refreshes every background session sequentially and returns the full
// tally. Only a failure to enumerate the sessions aborts the run.
func (j *Job) Run(ctx context.Context) (Result, error) {
	start := time.Now()

	sessions, err := j.store.ListActiveBackgroundSessions(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list background sessions: %w", err)
	}

	res := Result{Total: len(sessions)}
	now := time.Now().UTC()

	for _, s := range sessions {
		o, perr := j.processOne(ctx, now, s)
		j.count(o)
		switch o {
		case outcomeSkipped:
			res.Skipped++
		case outcomeUpdated:
			res.Updated++
			j.log.Info("refresh.session.ok", "email", s.Email)
		default:
			res.Failed++
			res.Errors = append(res.Errors, SessionError{Email: s.Email, Error: perr.Error()})
			j.log.Warn("refresh.session.fail", "email", s.Email, "err", perr)
		}
	}

	j.observe(time.Since(start))
	j.log.Info("refresh.run.done",
		"total", res.Total, "updated", res.Updated, "skipped", res.Skipped, "failed", res.Failed,
		"elapsed", time.Since(start))

	// Opportunistic retention sweep; its failure never taints the run result.
	if _, err := j.Cleanup(ctx); err != nil {
		j.log.Warn("refresh.cleanup.fail", "err", err)
	}

	return res, nil
}

// processOne refreshes a single session. It is the per-session failure
// boundary: a panic anywhere below becomes a failed tally entry.
func (j *Job) processOne(ctx context.Context, now time.Time, s session.Session) (o outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			o, err = outcomeFailed, fmt.Errorf("panic: %v", r)
		}
	}()

	if session.FreshnessOf(s, now, j.cfg.StalenessThreshold) == session.Fresh {
		return outcomeSkipped, nil
	}

	// Never guess a fingerprint; the upstream keys the session on it.
	if s.Fingerprint == "" {
		return outcomeFailed, errors.New("session has no fingerprint")
	}

	res, err := j.client.TokenUpdate(ctx, s.Token, s.Fingerprint, s.Cookies)

	if errors.Is(err, upstream.ErrSessionExpired) {
		return j.handleExpired(ctx, now, s)
	}

	if err != nil {
		if rerr := j.store.RecordTokenUpdateOutcome(ctx, now, s.Email, false, err.Error(), s.Fingerprint); rerr != nil {
			// A persistence outage must be visible, not silently swallowed.
			return outcomeFailed, fmt.Errorf("record refresh failure: %w", rerr)
		}
		return outcomeFailed, err
	}

	if err := j.store.UpdateToken(ctx, now, s.Email, res.NewToken, s.Fingerprint); err != nil {
		return outcomeFailed, fmt.Errorf("persist new token: %w", err)
	}
	if len(res.Cookies) > 0 {
		if err := j.store.UpdateCookies(ctx, now, s.Email, res.Cookies, s.Fingerprint); err != nil {
			return outcomeFailed, fmt.Errorf("persist cookies: %w", err)
		}
	}
	if err := j.store.RecordTokenUpdateOutcome(ctx, now, s.Email, true, "", s.Fingerprint); err != nil {
		return outcomeFailed, fmt.Errorf("record refresh success: %w", err)
	}

	return outcomeUpdated, nil
}

// handleExpired reacts to the upstream logout signal. Device sessions are
// disposable and get removed; a background session expiring is unexpected
// (it likely signals an upstream policy change) and is kept for inspection.
func (j *Job) handleExpired(ctx context.Context, now time.Time, s session.Session) (outcome, error) {
	if s.Type == session.TypeDevice {
		if _, err := j.store.Delete(ctx, s.Email, session.DeleteFilter{Fingerprint: s.Fingerprint}); err != nil {
			return outcomeFailed, fmt.Errorf("delete expired device session: %w", err)
		}
		j.log.Info("refresh.session.expired.removed", "email", s.Email)
		return outcomeFailed, errors.New("session expired; device session removed")
	}

	j.log.Warn("refresh.session.expired.background", "email", s.Email)
	if err := j.store.RecordTokenUpdateOutcome(ctx, now, s.Email, false, "session expired", s.Fingerprint); err != nil {
		return outcomeFailed, fmt.Errorf("record expiry: %w", err)
	}
	return outcomeFailed, errors.New("session expired")
}

// Cleanup removes device sessions past the retention window.
func (j *Job) Cleanup(ctx context.Context) (int64, error) {
	n, err := j.store.CleanupExpiredDeviceSessions(ctx, time.Now().UTC(), j.cfg.DeviceRetention)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.log.Info("refresh.cleanup.ok", "removed", n)
	}
	return n, nil
}

func (j *Job) count(o outcome) {
	if j.metrics != nil {
		j.metrics.sessions.WithLabelValues(o.String()).Inc()
	}
}

func (j *Job) observe(d time.Duration) {
	if j.metrics != nil {
		j.metrics.duration.Observe(d.Seconds())
	}
}
