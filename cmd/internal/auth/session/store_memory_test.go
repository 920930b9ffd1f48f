package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/cookie"
)

func TestMemoryStore_UpsertDerivesProtected(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	// Client-supplied Protected is ignored; the type decides.
	_, err := st.Upsert(ctx, now, Session{
		Email: "a@b.c", Fingerprint: "fp-bg", Type: TypeBackground, Protected: false, Token: "t1",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := st.Find(ctx, "a@b.c", FindFilter{Fingerprint: "fp-bg"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Fingerprint != "fp-bg" || !got.Protected {
		t.Fatalf("expected protected background session, got %+v", got)
	}

	dev, err := st.Upsert(ctx, now, Session{
		Email: "a@b.c", Fingerprint: "fp-dev", Type: TypeDevice, Protected: true, Token: "t2",
	})
	if err != nil {
		t.Fatalf("Upsert device: %v", err)
	}
	if dev.Protected {
		t.Fatalf("device session must not be protected")
	}
}

func TestMemoryStore_UpsertKeyedOnCompositeKey(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	first, _ := st.Upsert(ctx, now, Session{Email: "a@b.c", Fingerprint: "d1", Type: TypeDevice, Token: "t1"})
	_, _ = st.Upsert(ctx, now.Add(time.Minute), Session{Email: "a@b.c", Fingerprint: "d2", Type: TypeDevice, Token: "t2"})
	updated, _ := st.Upsert(ctx, now.Add(2*time.Minute), Session{Email: "a@b.c", Fingerprint: "d1", Type: TypeDevice, Token: "t3"})

	// Same key updates in place, different fingerprint coexists.
	if updated.ID != first.ID {
		t.Fatalf("upsert on same key must keep row identity")
	}
	all, _ := st.ListAll(ctx, "a@b.c")
	if len(all) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(all))
	}

	got, _ := st.Find(ctx, "a@b.c", FindFilter{Fingerprint: "d1"})
	if got.Token != "t3" || !got.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("update lost token or created_at: %+v", got)
	}
}

func TestMemoryStore_UpsertRejectsEmptyFingerprint(t *testing.T) {
	st := NewMemoryStore()
	_, err := st.Upsert(context.Background(), time.Now(), Session{Email: "a@b.c", Type: TypeDevice})
	if !errors.Is(err, ErrEmptyFingerprint) {
		t.Fatalf("expected ErrEmptyFingerprint, got %v", err)
	}
}

func TestMemoryStore_FindDefaultsToBackground(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	_, _ = st.Upsert(ctx, now, Session{Email: "a@b.c", Fingerprint: "d1", Type: TypeDevice, Token: "dev"})
	_, _ = st.Upsert(ctx, now, Session{Email: "a@b.c", Fingerprint: "bg", Type: TypeBackground, Token: "bg"})

	got, err := st.Find(ctx, "a@b.c", FindFilter{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Type != TypeBackground {
		t.Fatalf("expected background default, got %s", got.Type)
	}
}

func TestMemoryStore_FindByTypePicksMostRecentlyUpdated(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	_, _ = st.Upsert(ctx, now, Session{Email: "a@b.c", Fingerprint: "d1", Type: TypeDevice, Token: "old"})
	_, _ = st.Upsert(ctx, now.Add(time.Hour), Session{Email: "a@b.c", Fingerprint: "d2", Type: TypeDevice, Token: "new"})

	got, err := st.Find(ctx, "a@b.c", FindFilter{Type: TypeDevice})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Fingerprint != "d2" {
		t.Fatalf("expected most recently updated device session, got %+v", got)
	}
}

func TestMemoryStore_DeleteProtectedRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	_, _ = st.Upsert(ctx, now, Session{Email: "a@b.c", Fingerprint: "bg", Type: TypeBackground, Token: "t"})

	_, err := st.Delete(ctx, "a@b.c", DeleteFilter{Type: TypeBackground})
	if !errors.Is(err, ErrProtectedDeletionDenied) {
		t.Fatalf("expected ErrProtectedDeletionDenied, got %v", err)
	}

	n, err := st.Delete(ctx, "a@b.c", DeleteFilter{Type: TypeBackground, ConfirmProtected: true})
	if err != nil || n != 1 {
		t.Fatalf("confirmed delete: n=%d err=%v", n, err)
	}
}

func TestMemoryStore_DeleteDefaultsToDeviceOnly(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	_, _ = st.Upsert(ctx, now, Session{Email: "a@b.c", Fingerprint: "d1", Type: TypeDevice, Token: "t"})
	_, _ = st.Upsert(ctx, now, Session{Email: "a@b.c", Fingerprint: "d2", Type: TypeDevice, Token: "t"})
	_, _ = st.Upsert(ctx, now, Session{Email: "a@b.c", Fingerprint: "bg", Type: TypeBackground, Token: "t"})

	n, err := st.Delete(ctx, "a@b.c", DeleteFilter{})
	if err != nil || n != 2 {
		t.Fatalf("default delete: n=%d err=%v", n, err)
	}

	if _, err := st.Find(ctx, "a@b.c", FindFilter{}); err != nil {
		t.Fatalf("background session must survive the default delete: %v", err)
	}
}

func TestMemoryStore_DeleteByFingerprintIgnoresType(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	_, _ = st.Upsert(ctx, now, Session{Email: "a@b.c", Fingerprint: "bg", Type: TypeBackground, Token: "t"})

	n, err := st.Delete(ctx, "a@b.c", DeleteFilter{Fingerprint: "bg"})
	if err != nil || n != 1 {
		t.Fatalf("fingerprint delete: n=%d err=%v", n, err)
	}
}

func TestMemoryStore_TargetedUpdatesFailOnZeroRows(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Now().UTC()

	if err := st.UpdateToken(ctx, now, "a@b.c", "tok", "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("UpdateToken: expected ErrSessionNotFound, got %v", err)
	}
	if err := st.UpdateCookies(ctx, now, "a@b.c", nil, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("UpdateCookies: expected ErrSessionNotFound, got %v", err)
	}
	if err := st.RecordTokenUpdateOutcome(ctx, now, "a@b.c", true, "", ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("RecordTokenUpdateOutcome: expected ErrSessionNotFound, got %v", err)
	}
}

func TestMemoryStore_UpdatesDefaultToBackgroundTarget(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	_, _ = st.Upsert(ctx, now, Session{Email: "a@b.c", Fingerprint: "d1", Type: TypeDevice, Token: "dev"})
	_, _ = st.Upsert(ctx, now, Session{Email: "a@b.c", Fingerprint: "bg", Type: TypeBackground, Token: "old"})

	if err := st.UpdateToken(ctx, now.Add(time.Minute), "a@b.c", "new", ""); err != nil {
		t.Fatalf("UpdateToken: %v", err)
	}

	bg, _ := st.Find(ctx, "a@b.c", FindFilter{})
	dev, _ := st.Find(ctx, "a@b.c", FindFilter{Fingerprint: "d1"})
	if bg.Token != "new" || dev.Token != "dev" {
		t.Fatalf("expected background-only update: bg=%q dev=%q", bg.Token, dev.Token)
	}
}

func TestMemoryStore_RecordTokenUpdateOutcome(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	_, _ = st.Upsert(ctx, now, Session{Email: "a@b.c", Fingerprint: "bg", Type: TypeBackground, Token: "t"})

	if err := st.RecordTokenUpdateOutcome(ctx, now.Add(time.Minute), "a@b.c", false, "boom", "bg"); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	got, _ := st.Find(ctx, "a@b.c", FindFilter{})
	if got.TokenUpdateCount != 0 || got.LastTokenUpdateError == nil || *got.LastTokenUpdateError != "boom" {
		t.Fatalf("failure tracking wrong: %+v", got)
	}
	if got.LastTokenUpdateDate == nil || !got.LastTokenUpdateDate.Equal(now.Add(time.Minute)) {
		t.Fatalf("last_token_update_date must always be stamped")
	}

	if err := st.RecordTokenUpdateOutcome(ctx, now.Add(2*time.Minute), "a@b.c", true, "", "bg"); err != nil {
		t.Fatalf("record success: %v", err)
	}
	got, _ = st.Find(ctx, "a@b.c", FindFilter{})
	if got.TokenUpdateCount != 1 || got.LastTokenUpdateError != nil {
		t.Fatalf("success must increment the counter and clear the error: %+v", got)
	}
}

func TestMemoryStore_CleanupSparesBackgroundAndRecentDevices(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	_, _ = st.Upsert(ctx, now.Add(-8*24*time.Hour), Session{Email: "a@b.c", Fingerprint: "old-dev", Type: TypeDevice, Token: "t"})
	_, _ = st.Upsert(ctx, now.Add(-time.Hour), Session{Email: "a@b.c", Fingerprint: "new-dev", Type: TypeDevice, Token: "t"})
	_, _ = st.Upsert(ctx, now.Add(-30*24*time.Hour), Session{Email: "a@b.c", Fingerprint: "bg", Type: TypeBackground, Token: "t"})

	n, err := st.CleanupExpiredDeviceSessions(ctx, now, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 removal, got %d", n)
	}

	all, _ := st.ListAll(ctx, "a@b.c")
	if len(all) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(all))
	}
	for _, s := range all {
		if s.Fingerprint == "old-dev" {
			t.Fatalf("expired device session survived")
		}
	}
}

func TestMemoryStore_ListActiveBackgroundSessionsHasNoAgeFilter(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	_, _ = st.Upsert(ctx, now.Add(-365*24*time.Hour), Session{Email: "a@b.c", Fingerprint: "bg", Type: TypeBackground, Token: "t"})
	_, _ = st.Upsert(ctx, now, Session{Email: "z@b.c", Fingerprint: "bg2", Type: TypeBackground, Token: "t"})
	_, _ = st.Upsert(ctx, now, Session{Email: "a@b.c", Fingerprint: "dev", Type: TypeDevice, Token: "t"})

	got, err := st.ListActiveBackgroundSessions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both background sessions regardless of age, got %d", len(got))
	}
}

func TestMemoryStore_CookieRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Now().UTC()

	in := []cookie.Cookie{{Name: "AWSALB", Value: "a"}, {Name: "PHPSESSID", Value: "p"}}
	_, err := st.Upsert(ctx, now, Session{Email: "a@b.c", Fingerprint: "bg", Type: TypeBackground, Token: "t", Cookies: in})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, _ := st.Find(ctx, "a@b.c", FindFilter{})
	if len(got.Cookies) != 2 || got.Cookies[0] != in[0] || got.Cookies[1] != in[1] {
		t.Fatalf("cookie round trip mismatch: %v", got.Cookies)
	}
}
