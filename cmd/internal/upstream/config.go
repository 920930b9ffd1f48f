package upstream

import (
	"os"
	"strings"
	"time"
)

// LoadConfigFromEnv loads the upstream endpoints and transport policy from
// environment variables, falling back to the production defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	return Config{
		LoginURL:       envString("WEBBOT_UPSTREAM_LOGIN_URL", def.LoginURL),
		RefreshURL:     envString("WEBBOT_UPSTREAM_REFRESH_URL", def.RefreshURL),
		TokenUpdateURL: envString("WEBBOT_UPSTREAM_TOKEN_UPDATE_URL", def.TokenUpdateURL),
		Timeout:        envDuration("WEBBOT_UPSTREAM_TIMEOUT", def.Timeout),
		UserAgent:      envString("WEBBOT_UPSTREAM_USER_AGENT", def.UserAgent),
	}
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
