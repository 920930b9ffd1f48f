package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/cookie"
)

// PostgresStore implements Store using PostgreSQL (webbot.sessions).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const sessionColumns = `
	id, user_email, fingerprint, session_type, protected, token, cookies,
	created_at, updated_at,
	last_refresh_date, refresh_count, last_refresh_error,
	last_token_update_date, token_update_count, last_token_update_error`

// Upsert inserts or updates the row keyed by (user_email, fingerprint).
// The conflict target is the composite key, never the email alone, so
// multiple devices coexist for one account.
func (s *PostgresStore) Upsert(ctx context.Context, now time.Time, sess Session) (Session, error) {
	if sess.Fingerprint == "" {
		return Session{}, ErrEmptyFingerprint
	}

	cookiesJSON, err := json.Marshal(normalizedCookies(sess.Cookies))
	if err != nil {
		return Session{}, fmt.Errorf("marshal cookies: %w", err)
	}

	id := ulid.Make().String()
	protected := sess.Type == TypeBackground

	row := s.pool.QueryRow(ctx, `
		INSERT INTO webbot.sessions (
			id, user_email, fingerprint, session_type, protected,
			token, cookies, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (user_email, fingerprint) DO UPDATE SET
			session_type = EXCLUDED.session_type,
			protected    = EXCLUDED.protected,
			token        = EXCLUDED.token,
			cookies      = EXCLUDED.cookies,
			updated_at   = EXCLUDED.updated_at
		RETURNING `+sessionColumns,
		id, sess.Email, sess.Fingerprint, string(sess.Type), protected,
		sess.Token, cookiesJSON, now,
	)

	return scanSession(row)
}

// Find resolves one session per the FindFilter rules.
func (s *PostgresStore) Find(ctx context.Context, email string, f FindFilter) (Session, error) {
	var row pgx.Row

	switch {
	case f.Fingerprint != "":
		row = s.pool.QueryRow(ctx, `
			SELECT `+sessionColumns+`
			FROM webbot.sessions
			WHERE user_email = $1 AND fingerprint = $2
		`, email, f.Fingerprint)
	case f.Type != "":
		// Several device sessions may exist; the most recently updated wins.
		row = s.pool.QueryRow(ctx, `
			SELECT `+sessionColumns+`
			FROM webbot.sessions
			WHERE user_email = $1 AND session_type = $2
			ORDER BY updated_at DESC
			LIMIT 1
		`, email, string(f.Type))
	default:
		row = s.pool.QueryRow(ctx, `
			SELECT `+sessionColumns+`
			FROM webbot.sessions
			WHERE user_email = $1 AND session_type = $2
		`, email, string(TypeBackground))
	}

	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	return sess, err
}

// ListByType enumerates an email's sessions of one type, newest first.
func (s *PostgresStore) ListByType(ctx context.Context, email string, t Type) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM webbot.sessions
		WHERE user_email = $1 AND session_type = $2
		ORDER BY updated_at DESC
	`, email, string(t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListAll enumerates all of an email's sessions, newest first.
func (s *PostgresStore) ListAll(ctx context.Context, email string) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM webbot.sessions
		WHERE user_email = $1
		ORDER BY updated_at DESC
	`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

// Delete removes sessions per the DeleteFilter resolution rules.
func (s *PostgresStore) Delete(ctx context.Context, email string, f DeleteFilter) (int64, error) {
	switch {
	case f.Fingerprint != "":
		tag, err := s.pool.Exec(ctx, `
			DELETE FROM webbot.sessions
			WHERE user_email = $1 AND fingerprint = $2
		`, email, f.Fingerprint)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil

	case f.Type != "":
		if f.Type == TypeBackground && !f.ConfirmProtected {
			return 0, ErrProtectedDeletionDenied
		}
		tag, err := s.pool.Exec(ctx, `
			DELETE FROM webbot.sessions
			WHERE user_email = $1 AND session_type = $2
		`, email, string(f.Type))
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil

	default:
		tag, err := s.pool.Exec(ctx, `
			DELETE FROM webbot.sessions
			WHERE user_email = $1 AND session_type = $2
		`, email, string(TypeDevice))
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	}
}

// UpdateToken replaces the matched session's token.
func (s *PostgresStore) UpdateToken(ctx context.Context, now time.Time, email, newToken, fingerprint string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE webbot.sessions
		SET token = $3, updated_at = $4
		WHERE user_email = $1
		  AND (($2 <> '' AND fingerprint = $2) OR ($2 = '' AND session_type = 'background'))
	`, email, fingerprint, newToken, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// UpdateCookies replaces the matched session's cookie set.
func (s *PostgresStore) UpdateCookies(ctx context.Context, now time.Time, email string, cookies []cookie.Cookie, fingerprint string) error {
	cookiesJSON, err := json.Marshal(normalizedCookies(cookies))
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE webbot.sessions
		SET cookies = $3, updated_at = $4
		WHERE user_email = $1
		  AND (($2 <> '' AND fingerprint = $2) OR ($2 = '' AND session_type = 'background'))
	`, email, fingerprint, cookiesJSON, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RecordRefreshOutcome tracks a legacy-refresh attempt.
func (s *PostgresStore) RecordRefreshOutcome(ctx context.Context, now time.Time, email string, success bool, cause, fingerprint string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE webbot.sessions
		SET refresh_count      = refresh_count + CASE WHEN $3 THEN 1 ELSE 0 END,
		    last_refresh_date  = $4,
		    last_refresh_error = $5,
		    updated_at         = $4
		WHERE user_email = $1
		  AND (($2 <> '' AND fingerprint = $2) OR ($2 = '' AND session_type = 'background'))
	`, email, fingerprint, success, now, nullIfEmpty(cause))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RecordTokenUpdateOutcome tracks a token-update attempt.
func (s *PostgresStore) RecordTokenUpdateOutcome(ctx context.Context, now time.Time, email string, success bool, cause, fingerprint string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE webbot.sessions
		SET token_update_count      = token_update_count + CASE WHEN $3 THEN 1 ELSE 0 END,
		    last_token_update_date  = $4,
		    last_token_update_error = $5,
		    updated_at              = $4
		WHERE user_email = $1
		  AND (($2 <> '' AND fingerprint = $2) OR ($2 = '' AND session_type = 'background'))
	`, email, fingerprint, success, now, nullIfEmpty(cause))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListActiveBackgroundSessions returns every background session.
func (s *PostgresStore) ListActiveBackgroundSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM webbot.sessions
		WHERE session_type = $1
		ORDER BY user_email
	`, string(TypeBackground))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

// CleanupExpiredDeviceSessions deletes device sessions past the retention
// window. Background rows are exempt by the WHERE clause, not by caller
// discipline.
func (s *PostgresStore) CleanupExpiredDeviceSessions(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM webbot.sessions
		WHERE session_type = $1 AND updated_at < $2
	`, string(TypeDevice), now.Add(-retention))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ---- scanning ----

func scanSession(row pgx.Row) (Session, error) {
	var sess Session
	var typ string
	var cookiesJSON []byte

	err := row.Scan(
		&sess.ID,
		&sess.Email,
		&sess.Fingerprint,
		&typ,
		&sess.Protected,
		&sess.Token,
		&cookiesJSON,
		&sess.CreatedAt,
		&sess.UpdatedAt,
		&sess.LastRefreshDate,
		&sess.RefreshCount,
		&sess.LastRefreshError,
		&sess.LastTokenUpdateDate,
		&sess.TokenUpdateCount,
		&sess.LastTokenUpdateError,
	)
	if err != nil {
		return Session{}, err
	}

	sess.Type = Type(typ)
	if len(cookiesJSON) > 0 {
		if err := json.Unmarshal(cookiesJSON, &sess.Cookies); err != nil {
			return Session{}, fmt.Errorf("unmarshal cookies: %w", err)
		}
	}
	return sess, nil
}

func collectSessions(rows pgx.Rows) ([]Session, error) {
	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizedCookies keeps JSON stable: nil becomes an empty array.
func normalizedCookies(cookies []cookie.Cookie) []cookie.Cookie {
	if cookies == nil {
		return []cookie.Cookie{}
	}
	return cookies
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
