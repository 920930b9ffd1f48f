package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/cookie"
)

// MemoryStore is an in-memory Store used for DB-less development and tests.
// Semantics match PostgresStore exactly; tests rely on that.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[memoryKey]*Session
}

type memoryKey struct {
	email       string
	fingerprint string
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[memoryKey]*Session)}
}

// Upsert inserts or updates the row keyed by (email, fingerprint).
func (m *MemoryStore) Upsert(_ context.Context, now time.Time, sess Session) (Session, error) {
	if sess.Fingerprint == "" {
		return Session{}, ErrEmptyFingerprint
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey{email: sess.Email, fingerprint: sess.Fingerprint}
	sess.Protected = sess.Type == TypeBackground
	sess.Cookies = cloneCookies(sess.Cookies)
	sess.UpdatedAt = now

	if existing, ok := m.sessions[key]; ok {
		sess.ID = existing.ID
		sess.CreatedAt = existing.CreatedAt
		sess.LastRefreshDate = existing.LastRefreshDate
		sess.RefreshCount = existing.RefreshCount
		sess.LastRefreshError = existing.LastRefreshError
		sess.LastTokenUpdateDate = existing.LastTokenUpdateDate
		sess.TokenUpdateCount = existing.TokenUpdateCount
		sess.LastTokenUpdateError = existing.LastTokenUpdateError
	} else {
		sess.ID = ulid.Make().String()
		sess.CreatedAt = now
	}

	stored := sess
	m.sessions[key] = &stored
	return sess, nil
}

// Find resolves one session per the FindFilter rules.
func (m *MemoryStore) Find(_ context.Context, email string, f FindFilter) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f.Fingerprint != "" {
		if s, ok := m.sessions[memoryKey{email: email, fingerprint: f.Fingerprint}]; ok {
			return *s, nil
		}
		return Session{}, ErrSessionNotFound
	}

	t := f.Type
	if t == "" {
		t = TypeBackground
	}

	var best *Session
	for _, s := range m.sessions {
		if s.Email != email || s.Type != t {
			continue
		}
		if best == nil || s.UpdatedAt.After(best.UpdatedAt) {
			best = s
		}
	}
	if best == nil {
		return Session{}, ErrSessionNotFound
	}
	return *best, nil
}

// ListByType enumerates an email's sessions of one type, newest first.
func (m *MemoryStore) ListByType(_ context.Context, email string, t Type) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Session
	for _, s := range m.sessions {
		if s.Email == email && s.Type == t {
			out = append(out, *s)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// ListAll enumerates all of an email's sessions, newest first.
func (m *MemoryStore) ListAll(_ context.Context, email string) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Session
	for _, s := range m.sessions {
		if s.Email == email {
			out = append(out, *s)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// Delete removes sessions per the DeleteFilter resolution rules.
func (m *MemoryStore) Delete(_ context.Context, email string, f DeleteFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case f.Fingerprint != "":
		key := memoryKey{email: email, fingerprint: f.Fingerprint}
		if _, ok := m.sessions[key]; !ok {
			return 0, nil
		}
		delete(m.sessions, key)
		return 1, nil

	case f.Type != "":
		if f.Type == TypeBackground && !f.ConfirmProtected {
			return 0, ErrProtectedDeletionDenied
		}
		return m.deleteWhere(email, f.Type), nil

	default:
		return m.deleteWhere(email, TypeDevice), nil
	}
}

func (m *MemoryStore) deleteWhere(email string, t Type) int64 {
	var n int64
	for key, s := range m.sessions {
		if s.Email == email && s.Type == t {
			delete(m.sessions, key)
			n++
		}
	}
	return n
}

// UpdateToken replaces the matched session's token.
func (m *MemoryStore) UpdateToken(_ context.Context, now time.Time, email, newToken, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.target(email, fingerprint)
	if s == nil {
		return ErrSessionNotFound
	}
	s.Token = newToken
	s.UpdatedAt = now
	return nil
}

// UpdateCookies replaces the matched session's cookie set.
func (m *MemoryStore) UpdateCookies(_ context.Context, now time.Time, email string, cookies []cookie.Cookie, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.target(email, fingerprint)
	if s == nil {
		return ErrSessionNotFound
	}
	s.Cookies = cloneCookies(cookies)
	s.UpdatedAt = now
	return nil
}

// RecordRefreshOutcome tracks a legacy-refresh attempt.
func (m *MemoryStore) RecordRefreshOutcome(_ context.Context, now time.Time, email string, success bool, cause, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.target(email, fingerprint)
	if s == nil {
		return ErrSessionNotFound
	}
	if success {
		s.RefreshCount++
	}
	s.LastRefreshDate = timePtr(now)
	s.LastRefreshError = strPtrOrNil(cause)
	s.UpdatedAt = now
	return nil
}

// RecordTokenUpdateOutcome tracks a token-update attempt.
func (m *MemoryStore) RecordTokenUpdateOutcome(_ context.Context, now time.Time, email string, success bool, cause, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.target(email, fingerprint)
	if s == nil {
		return ErrSessionNotFound
	}
	if success {
		s.TokenUpdateCount++
	}
	s.LastTokenUpdateDate = timePtr(now)
	s.LastTokenUpdateError = strPtrOrNil(cause)
	s.UpdatedAt = now
	return nil
}

// ListActiveBackgroundSessions returns every background session.
func (m *MemoryStore) ListActiveBackgroundSessions(_ context.Context) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Session
	for _, s := range m.sessions {
		if s.Type == TypeBackground {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// CleanupExpiredDeviceSessions deletes device sessions past retention.
func (m *MemoryStore) CleanupExpiredDeviceSessions(_ context.Context, now time.Time, retention time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cut := now.Add(-retention)
	var n int64
	for key, s := range m.sessions {
		if s.Type == TypeDevice && s.UpdatedAt.Before(cut) {
			delete(m.sessions, key)
			n++
		}
	}
	return n, nil
}

// target resolves the session a fingerprint-or-background update addresses.
// Caller holds the lock.
func (m *MemoryStore) target(email, fingerprint string) *Session {
	if fingerprint != "" {
		return m.sessions[memoryKey{email: email, fingerprint: fingerprint}]
	}
	for _, s := range m.sessions {
		if s.Email == email && s.Type == TypeBackground {
			return s
		}
	}
	return nil
}

func sortNewestFirst(sessions []Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
}

func cloneCookies(in []cookie.Cookie) []cookie.Cookie {
	if in == nil {
		return nil
	}
	out := make([]cookie.Cookie, len(in))
	copy(out, in)
	return out
}

func timePtr(t time.Time) *time.Time { return &t }

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Verify interface compliance.
var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
