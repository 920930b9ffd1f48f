package session

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// backgroundFingerprintDomain separates background fingerprints from any
// other hash of the same email.
const backgroundFingerprintDomain = "background:"

// DeriveBackgroundFingerprint maps an email to its background-session
// fingerprint. The function is pure and deterministic, which is what
// guarantees at most one background session per account: every login for the
// same email upserts the same (email, fingerprint) row.
func DeriveBackgroundFingerprint(email string) string {
	sum := blake2b.Sum256([]byte(backgroundFingerprintDomain + strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:16])
}
