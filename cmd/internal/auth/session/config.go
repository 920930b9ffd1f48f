package session

import (
	"os"
	"strconv"
	"time"
)

// Config defines runtime configuration for the session subsystem.
//
// It controls the staleness threshold the refresh job applies, the device
// retention window, and the login attempt guard. Environment-driven so
// deployments can tune policy without code changes.
type Config struct {
	// StalenessThreshold is the minimum age before a background session is
	// eligible for refresh. Keep it a few minutes under the external
	// scheduler's interval (20-29 min) or refresh windows get skipped.
	StalenessThreshold time.Duration

	// DeviceRetention is how long an untouched device session survives
	// before cleanup removes it.
	DeviceRetention time.Duration

	// FallbackDeviceFingerprint is used when a login request carries no
	// device fingerprint.
	FallbackDeviceFingerprint string

	// LoginFailureLimit failed attempts within LoginFailureWindow block
	// further logins for that email.
	LoginFailureLimit  int
	LoginFailureWindow time.Duration
}

// DefaultConfig returns the production policy defaults.
func DefaultConfig() Config {
	return Config{
		StalenessThreshold:        18 * time.Minute,
		DeviceRetention:           7 * 24 * time.Hour,
		FallbackDeviceFingerprint: "webbot-default-device",
		LoginFailureLimit:         5,
		LoginFailureWindow:        15 * time.Minute,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional (durations must be valid Go duration strings):
//   - WEBBOT_SESSION_STALENESS_THRESHOLD
//   - WEBBOT_SESSION_DEVICE_RETENTION
//   - WEBBOT_SESSION_FALLBACK_DEVICE_FINGERPRINT
//   - WEBBOT_LOGIN_FAILURE_LIMIT
//   - WEBBOT_LOGIN_FAILURE_WINDOW
//
// Returns ErrConfig if a provided value is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("WEBBOT_SESSION_STALENESS_THRESHOLD"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.StalenessThreshold = d
	}

	if v := os.Getenv("WEBBOT_SESSION_DEVICE_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.DeviceRetention = d
	}

	if v := os.Getenv("WEBBOT_SESSION_FALLBACK_DEVICE_FINGERPRINT"); v != "" {
		cfg.FallbackDeviceFingerprint = v
	}

	if v := os.Getenv("WEBBOT_LOGIN_FAILURE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, ErrConfig
		}
		cfg.LoginFailureLimit = n
	}

	if v := os.Getenv("WEBBOT_LOGIN_FAILURE_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.LoginFailureWindow = d
	}

	return cfg, nil
}
