package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/cookie"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.LoginURL = srv.URL + "/login"
	cfg.RefreshURL = srv.URL + "/api/tokenrefresh"
	cfg.TokenUpdateURL = srv.URL + "/api/tokenupdate"
	return NewClient(cfg, nil, WithHTTPClient(srv.Client()))
}

func TestLogin_Success(t *testing.T) {
	var gotForm map[string]string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"mail":             r.PostFormValue("mail"),
			"pw":               r.PostFormValue("pw"),
			"loginfingerprint": r.PostFormValue("loginfingerprint"),
			"loginiframe":      r.PostFormValue("loginiframe"),
		}
		w.Header().Add("Set-Cookie", "AWSALB=alb1; Path=/")
		w.Header().Add("Set-Cookie", "PHPSESSID=sess1; HttpOnly")
		w.Header().Add("Set-Cookie", "unrelated=skip")
		_, _ = w.Write([]byte(validLoginHTML))
	})

	res, err := c.Login(context.Background(), "user@example.com", "secret", "fp-device")
	require.NoError(t, err)

	assert.Equal(t, "tok123", res.Token)
	assert.Equal(t, "user@example.com", gotForm["mail"])
	assert.Equal(t, "secret", gotForm["pw"])
	assert.Equal(t, "fp-device", gotForm["loginfingerprint"])
	assert.Equal(t, "0", gotForm["loginiframe"])
	assert.Equal(t, []cookie.Cookie{
		{Name: "AWSALB", Value: "alb1"},
		{Name: "PHPSESSID", Value: "sess1"},
	}, res.Cookies)
}

func TestLogin_UpstreamHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Login(context.Background(), "user@example.com", "secret", "fp")
	require.ErrorIs(t, err, ErrHTTP)

	var herr HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusBadGateway, herr.Status)
}

func TestLegacyRefresh_RequiresFingerprint(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("no upstream call expected")
	})

	_, err := c.LegacyRefresh(context.Background(), "tok", "  ", nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestLegacyRefresh_SendsQueryAndCookies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-old", r.URL.Query().Get("token"))
		assert.Equal(t, "fp-bg", r.URL.Query().Get("fingerprint"))
		assert.Equal(t, "PHPSESSID=s1", r.Header.Get("Cookie"))
		_, _ = w.Write([]byte(`<script>var refreshToken = "tok-new";</script>`))
	})

	res, err := c.LegacyRefresh(context.Background(), "tok-old", "fp-bg",
		[]cookie.Cookie{{Name: "PHPSESSID", Value: "s1"}})
	require.NoError(t, err)
	assert.Equal(t, "tok-new", res.Token)
}

func TestTokenUpdate_Outcomes(t *testing.T) {
	t.Run("logout signal", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"logout":1}`))
		})
		_, err := c.TokenUpdate(context.Background(), "tok", "fp", nil)
		require.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("new token with issued cookies", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "1", r.PostFormValue("ciclo"))
			w.Header().Add("Set-Cookie", "AWSALB=fresh")
			_, _ = w.Write([]byte(`{"newToken":"tok-2"}`))
		})
		res, err := c.TokenUpdate(context.Background(), "tok", "fp",
			[]cookie.Cookie{{Name: "AWSALB", Value: "stale"}})
		require.NoError(t, err)
		assert.Equal(t, "tok-2", res.NewToken)
		assert.Equal(t, []cookie.Cookie{{Name: "AWSALB", Value: "fresh"}}, res.Cookies)
	})

	t.Run("no issued cookies falls back to callers", func(t *testing.T) {
		existing := []cookie.Cookie{{Name: "PHPSESSID", Value: "keep"}}
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"newToken":"tok-3"}`))
		})
		res, err := c.TokenUpdate(context.Background(), "tok", "fp", existing)
		require.NoError(t, err)
		assert.Equal(t, existing, res.Cookies)
	})

	t.Run("unexpected shape", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"something":"else"}`))
		})
		_, err := c.TokenUpdate(context.Background(), "tok", "fp", nil)
		require.ErrorIs(t, err, ErrParse)
	})

	t.Run("not json", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>maintenance</html>`))
		})
		_, err := c.TokenUpdate(context.Background(), "tok", "fp", nil)
		require.ErrorIs(t, err, ErrParse)
	})

	t.Run("empty fingerprint", func(t *testing.T) {
		c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
			t.Fatal("no upstream call expected")
		})
		_, err := c.TokenUpdate(context.Background(), "tok", "", nil)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestNetworkErrorClassification(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoginURL = "http://127.0.0.1:1/login" // nothing listens here
	c := NewClient(cfg, nil)

	_, err := c.Login(context.Background(), "a@b.c", "pw", "fp")
	require.ErrorIs(t, err, ErrNetwork)
	assert.False(t, errors.Is(err, ErrHTTP))
}
