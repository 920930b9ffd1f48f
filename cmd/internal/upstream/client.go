// Package upstream implements the protocol client for the AimHarder booking
// platform: browser-style login plus the two refresh operations that keep a
// stored session alive.
//
// The upstream is an HTML/JSON hybrid: login and the legacy refresh answer
// with HTML pages, the token update answers with JSON. Responses are
// classified into a small error taxonomy (network/http/parse/expired) that is
// the only thing callers branch on.
package upstream

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/cookie"
)

// Config defines the upstream endpoints and transport policy.
type Config struct {
	// LoginURL receives the credentials form POST.
	LoginURL string

	// RefreshURL is the legacy HTML refresh endpoint (GET).
	RefreshURL string

	// TokenUpdateURL is the JSON token-update endpoint (form POST).
	TokenUpdateURL string

	// Timeout bounds every upstream call at the transport layer.
	// No operation is allowed to hang indefinitely.
	Timeout time.Duration

	// UserAgent is sent on every request so the upstream sees a browser.
	UserAgent string
}

// DefaultConfig returns the production endpoints with a conservative timeout.
func DefaultConfig() Config {
	return Config{
		LoginURL:       "https://login.aimharder.com/",
		RefreshURL:     "https://aimharder.com/api/tokenrefresh",
		TokenUpdateURL: "https://aimharder.com/api/tokenupdate",
		Timeout:        15 * time.Second,
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
	}
}

// Client performs the upstream calls with a session's stored cookies attached.
type Client struct {
	cfg     Config
	http    *http.Client
	parser  ResponseParser
	log     *slog.Logger
	metrics *Metrics
}

// Option configures optional Client dependencies.
type Option func(*Client)

// WithHTTPClient overrides the transport (tests point it at a fake upstream).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithParser overrides the response parser.
func WithParser(p ResponseParser) Option {
	return func(c *Client) {
		if p != nil {
			c.parser = p
		}
	}
}

// WithMetrics attaches request counters.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient constructs an upstream client.
func NewClient(cfg Config, log *slog.Logger, opts ...Option) *Client {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		parser: HTMLParser{},
		log:    log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// LoginResult is a successful upstream login.
type LoginResult struct {
	Token       string
	Fingerprint string
	User        string
	Refresh     string
	Cookies     []cookie.Cookie
}

// Login posts credentials plus a fingerprint to the upstream login form and
// extracts the session token and cookies from the HTML response.
func (c *Client) Login(ctx context.Context, email, password, fingerprint string) (LoginResult, error) {
	const op = "login"

	form := url.Values{
		"login":            {"Log in"},
		"loginfingerprint": {fingerprint},
		"loginiframe":      {"0"},
		"mail":             {email},
		"pw":               {password},
	}

	resp, body, err := c.postForm(ctx, op, c.cfg.LoginURL, form, nil)
	if err != nil {
		return LoginResult{}, err
	}

	page, err := c.parser.ParseLogin(body)
	if err != nil {
		c.count(op, err)
		return LoginResult{}, err
	}

	c.count(op, nil)
	return LoginResult{
		Token:       page.Token,
		Fingerprint: page.Fingerprint,
		User:        page.User,
		Refresh:     page.Refresh,
		Cookies:     cookie.ExtractFromResponse(resp),
	}, nil
}

// RefreshResult is a successful legacy refresh.
type RefreshResult struct {
	Token       string
	Fingerprint string
}

// LegacyRefresh calls the HTML refresh endpoint to trade a login token for a
// longer-lived refresh token. An empty fingerprint is a programming error,
// never silently defaulted.
func (c *Client) LegacyRefresh(ctx context.Context, token, fingerprint string, cookies []cookie.Cookie) (RefreshResult, error) {
	const op = "tokenrefresh"

	if strings.TrimSpace(fingerprint) == "" {
		return RefreshResult{}, ErrInvalidArgument
	}

	u, err := url.Parse(c.cfg.RefreshURL)
	if err != nil {
		return RefreshResult{}, ParseError{Op: op, Reason: "invalid refresh url"}
	}
	q := u.Query()
	q.Set("token", token)
	q.Set("fingerprint", fingerprint)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return RefreshResult{}, NetworkError{Op: op, Err: err}
	}
	c.decorate(req, cookies)

	_, body, err := c.do(op, req)
	if err != nil {
		return RefreshResult{}, err
	}

	page, err := c.parser.ParseRefresh(body)
	if err != nil {
		c.count(op, err)
		return RefreshResult{}, err
	}

	c.count(op, nil)
	return RefreshResult{Token: page.Token, Fingerprint: page.Fingerprint}, nil
}

// TokenUpdateResult is a successful token update.
type TokenUpdateResult struct {
	NewToken string

	// Cookies are the caller's cookies with any newly issued ones merged in.
	// When the upstream issued none this is a copy of the input set.
	Cookies []cookie.Cookie
}

// tokenUpdateResponse mirrors the upstream JSON. Both fields are optional and
// their presence, not their value, is what matters.
type tokenUpdateResponse struct {
	NewToken *string         `json:"newToken"`
	Logout   json.RawMessage `json:"logout"`
}

// TokenUpdate posts the session token to the JSON update endpoint and
// classifies the three possible outcomes: logout signal, new token, or an
// unexpected shape.
func (c *Client) TokenUpdate(ctx context.Context, token, fingerprint string, cookies []cookie.Cookie) (TokenUpdateResult, error) {
	const op = "tokenupdate"

	if strings.TrimSpace(fingerprint) == "" {
		return TokenUpdateResult{}, ErrInvalidArgument
	}

	form := url.Values{
		"token":       {token},
		"ciclo":       {"1"},
		"fingerprint": {fingerprint},
	}

	resp, body, err := c.postForm(ctx, op, c.cfg.TokenUpdateURL, form, cookies)
	if err != nil {
		return TokenUpdateResult{}, err
	}

	var parsed tokenUpdateResponse
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		perr := ParseError{Op: op, Reason: "response is not json"}
		c.count(op, perr)
		return TokenUpdateResult{}, perr
	}

	// Any non-null logout field means the upstream invalidated this exact
	// fingerprint's session.
	if len(parsed.Logout) > 0 && string(parsed.Logout) != "null" {
		c.count(op, ErrSessionExpired)
		return TokenUpdateResult{}, ErrSessionExpired
	}

	if parsed.NewToken == nil {
		perr := ParseError{Op: op, Reason: "unexpected response shape"}
		c.count(op, perr)
		return TokenUpdateResult{}, perr
	}

	merged := cookie.Merge(cookies, cookie.ExtractFromResponse(resp))

	c.count(op, nil)
	return TokenUpdateResult{NewToken: *parsed.NewToken, Cookies: merged}, nil
}

// ---- transport helpers ----

func (c *Client) postForm(ctx context.Context, op, endpoint string, form url.Values, cookies []cookie.Cookie) (*http.Response, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, "", NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.decorate(req, cookies)

	return c.do(op, req)
}

func (c *Client) decorate(req *http.Request, cookies []cookie.Cookie) {
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if len(cookies) > 0 {
		req.Header.Set("Cookie", cookie.FormatForRequest(cookies))
	}
}

func (c *Client) do(op string, req *http.Request) (*http.Response, string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		nerr := NetworkError{Op: op, Err: err}
		c.count(op, nerr)
		return nil, "", nerr
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		nerr := NetworkError{Op: op, Err: err}
		c.count(op, nerr)
		return nil, "", nerr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		herr := HTTPError{Op: op, Status: resp.StatusCode}
		c.count(op, herr)
		return nil, "", herr
	}

	return resp, string(body), nil
}
