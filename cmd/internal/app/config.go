package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL      string
	DBMaxConns       int32
	DBMinConns       int32
	DBConnectTimeout time.Duration
	DBMigrate        bool

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("WEBBOT_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("WEBBOT_LOG_LEVEL", "info"),
		LogFormat: EnvString("WEBBOT_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("WEBBOT_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("WEBBOT_HTTP_READ_TIMEOUT", 15*time.Second),

		// The refresh job answers on this same server and walks every
		// background session before responding, so writes get a wide budget.
		WriteTimeout: EnvDuration("WEBBOT_HTTP_WRITE_TIMEOUT", 5*time.Minute),
		IdleTimeout:  EnvDuration("WEBBOT_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("WEBBOT_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL:      EnvString("WEBBOT_DATABASE_URL", ""),
		DBMaxConns:       EnvInt32("WEBBOT_DB_MAX_CONNS", 10),
		DBMinConns:       EnvInt32("WEBBOT_DB_MIN_CONNS", 0),
		DBConnectTimeout: EnvDuration("WEBBOT_DB_CONNECT_TIMEOUT", 30*time.Second),
		DBMigrate:        EnvBool("WEBBOT_DB_MIGRATE", false),

		ReadinessRequireDB: EnvBool("WEBBOT_READINESS_REQUIRE_DB", false),
	}
}
