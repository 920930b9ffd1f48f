// Package cookie parses and serializes the small fixed set of upstream
// cookies needed to impersonate a browser session against AimHarder.
//
// The upstream issues many cookies; only four of them matter for replaying
// an authenticated session, so everything else is dropped at the boundary.
package cookie

import (
	"net/http"
	"strings"
)

// Cookie is a single name/value pair retained from the upstream.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Required lists the upstream cookie names a session must carry.
// Unknown cookies are never stored.
var Required = []string{"AWSALB", "AWSALBCORS", "PHPSESSID", "amhrdrauth"}

func allowed(name string) bool {
	for _, n := range Required {
		if n == name {
			return true
		}
	}
	return false
}

// ExtractFromResponse reads every Set-Cookie entry from an upstream response
// and returns the allow-listed cookies in header order.
func ExtractFromResponse(resp *http.Response) []Cookie {
	if resp == nil {
		return nil
	}

	var out []Cookie
	for _, raw := range resp.Header.Values("Set-Cookie") {
		// Only the name=value segment matters; attributes (Path, Expires,
		// Secure, ...) are upstream concerns we never replay.
		pair := raw
		if i := strings.Index(raw, ";"); i >= 0 {
			pair = raw[:i]
		}
		c, ok := parsePair(pair)
		if !ok || !allowed(c.Name) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// FormatForRequest serializes cookies as a Cookie request header value.
func FormatForRequest(cookies []Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// ParseFromRequest is the inverse of FormatForRequest, with the same
// allow-list filter applied.
func ParseFromRequest(header string) []Cookie {
	var out []Cookie
	for _, pair := range strings.Split(header, ";") {
		c, ok := parsePair(pair)
		if !ok || !allowed(c.Name) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Merge overlays incoming onto existing: names present in both keep their
// position and take the incoming value, new names are appended in incoming
// order. Neither input slice is modified.
func Merge(existing, incoming []Cookie) []Cookie {
	merged := make([]Cookie, len(existing))
	copy(merged, existing)

	for _, in := range incoming {
		replaced := false
		for i := range merged {
			if merged[i].Name == in.Name {
				merged[i].Value = in.Value
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, in)
		}
	}
	return merged
}

// ValidateRequired reports whether all required cookie names are present and
// which ones are missing. Callers log the gap and proceed; a partial cookie
// set is degraded, not fatal.
func ValidateRequired(cookies []Cookie) (ok bool, missing []string) {
	for _, name := range Required {
		found := false
		for _, c := range cookies {
			if c.Name == name && c.Value != "" {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, name)
		}
	}
	return len(missing) == 0, missing
}

// parsePair splits "name=value" on the first '=' only, so base64 values
// containing '=' survive intact.
func parsePair(pair string) (Cookie, bool) {
	pair = strings.TrimSpace(pair)
	i := strings.Index(pair, "=")
	if i <= 0 {
		return Cookie{}, false
	}
	return Cookie{Name: pair[:i], Value: pair[i+1:]}, true
}
