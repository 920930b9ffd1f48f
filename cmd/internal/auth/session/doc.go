// Package session implements the webbot's multi-session identity model for
// AimHarder accounts.
//
// Every account holds at most one protected "background" session, used by
// scheduled pre-booking jobs, plus any number of interactive "device"
// sessions. Sessions are keyed by the composite (email, fingerprint) pair and
// persisted in Postgres; the background fingerprint is derived
// deterministically from the email so unattended jobs always find the same
// row.
//
// The package also carries the auth orchestrator (dual login, logout), the
// login attempt guard, and the freshness policy consumed by the refresh job.
package session
