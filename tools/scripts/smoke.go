// Package main provides a CI-friendly smoke test for the webbot HTTP surface.
//
// It validates:
//   - /healthz and /readyz answer
//   - /jobs/refresh-sessions rejects a missing secret
//   - /jobs/refresh-sessions returns a well-formed tally with the secret
//   - optionally, a full login round trip when credentials are provided
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	var (
		baseURL = flag.String("url", "http://127.0.0.1:8080", "Service base URL")
		secret  = flag.String("secret", os.Getenv("WEBBOT_JOBS_SECRET"), "Jobs bearer secret")
		email   = flag.String("email", "", "Optional login email for the full round trip")
		pw      = flag.String("pw", "", "Optional login password")
		timeout = flag.Duration("timeout", 5*time.Minute, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	base := strings.TrimRight(*baseURL, "/")
	ctx := context.Background()

	mustGet(ctx, base+"/healthz", http.StatusOK, *timeout)
	mustGet(ctx, base+"/readyz", http.StatusOK, *timeout)

	// Missing secret must be rejected before any work happens.
	status, _ := doJSON(ctx, http.MethodPost, base+"/jobs/refresh-sessions", "", nil, *timeout)
	if status != http.StatusUnauthorized && status != http.StatusServiceUnavailable {
		fatalf("refresh without secret: got status %d", status)
	}

	if *secret != "" {
		status, body := doJSON(ctx, http.MethodPost, base+"/jobs/refresh-sessions", *secret, nil, *timeout)
		if status != http.StatusOK {
			fatalf("refresh job: status=%d body=%s", status, body)
		}
		var tally struct {
			Total   int `json:"total"`
			Updated int `json:"updated"`
			Skipped int `json:"skipped"`
			Failed  int `json:"failed"`
		}
		if err := json.Unmarshal(body, &tally); err != nil {
			fatalf("refresh job: bad tally json: %v", err)
		}
		if tally.Updated+tally.Skipped+tally.Failed != tally.Total {
			fatalf("refresh job: tallies do not add up: %s", body)
		}
		if *verbose {
			fmt.Printf("refresh: total=%d updated=%d skipped=%d failed=%d\n",
				tally.Total, tally.Updated, tally.Skipped, tally.Failed)
		}
	}

	if *email != "" && *pw != "" {
		payload := map[string]string{"email": *email, "password": *pw, "fingerprint": "smoke-device"}
		status, body := doJSON(ctx, http.MethodPost, base+"/auth/login", "", payload, *timeout)
		if status != http.StatusOK {
			fatalf("login: status=%d body=%s", status, body)
		}

		status, body = doJSON(ctx, http.MethodPost, base+"/auth/logout", "",
			map[string]string{"email": *email, "fingerprint": "smoke-device"}, *timeout)
		if status != http.StatusOK {
			fatalf("logout: status=%d body=%s", status, body)
		}
		if *verbose {
			fmt.Printf("login round trip ok: %s\n", body)
		}
	}

	fmt.Println("OK")
}

func mustGet(parent context.Context, url string, want int, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fatalf("build request %s: %v", url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != want {
		fatalf("GET %s: status=%d want=%d", url, resp.StatusCode, want)
	}
}

func doJSON(parent context.Context, method, url, bearer string, payload any, stepTimeout time.Duration) (int, []byte) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		fatalf("build request %s: %v", url, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		fatalf("read response %s: %v", url, err)
	}
	return resp.StatusCode, b
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
