package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // "json" (default) or "text"

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// If true, startup fails unless FIRSGATE_ADMIN_TOKEN is set. Production
	// deployments should never run with admin endpoints silently disabled.
	RequireAdminToken bool

	// SweepInterval > 0 runs the expiry sweep periodically inside the
	// server process. Zero (the default) leaves triggering to an external
	// scheduler or the admin endpoint.
	SweepInterval time.Duration

	// IRNValidDays is the validity window applied to newly generated IRNs.
	IRNValidDays int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  envString("FIRSGATE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  envString("FIRSGATE_LOG_LEVEL", "info"),
		LogFormat: envString("FIRSGATE_LOG_FORMAT", "json"),

		ReadHeaderTimeout: envDuration("FIRSGATE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       envDuration("FIRSGATE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      envDuration("FIRSGATE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       envDuration("FIRSGATE_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    envInt("FIRSGATE_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: envString("FIRSGATE_DATABASE_URL", ""),
		DBSchema:    envString("FIRSGATE_DB_SCHEMA", "firsgate"),
		DBMaxConns:  envInt32("FIRSGATE_DB_MAX_CONNS", 10),
		DBMinConns:  envInt32("FIRSGATE_DB_MIN_CONNS", 0),

		ReadinessRequireDB: envBool("FIRSGATE_READINESS_REQUIRE_DB", false),
		RequireAdminToken:  envBool("FIRSGATE_REQUIRE_ADMIN_TOKEN", false),

		SweepInterval: envDurationAllowZero("FIRSGATE_SWEEP_INTERVAL", 0),
		IRNValidDays:  envInt("FIRSGATE_IRN_VALID_DAYS", 7),
	}
}

// ---- env helpers ----

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt32(key string, def int32) int32 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n < 0 {
		return def
	}
	return int32(n)
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

// envDurationAllowZero accepts zero to mean "disabled".
func envDurationAllowZero(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}
