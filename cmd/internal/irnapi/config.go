package irnapi

import (
	"os"
	"strconv"
	"strings"
)

const (
	defaultMaxBodyBytes = int64(64 << 10) // 64 KiB
	defaultMaxBatchSize = 100             // policy cap, not a core invariant
)

// Config controls the HTTP API surface.
type Config struct {
	MaxBodyBytes int64
	MaxBatchSize int

	// AdminToken guards the /v1/admin endpoints. When empty, those
	// endpoints answer 503 rather than running unprotected.
	AdminToken string
}

// LoadConfigFromEnv loads Config from environment variables with defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		MaxBodyBytes: defaultMaxBodyBytes,
		MaxBatchSize: defaultMaxBatchSize,
		AdminToken:   strings.TrimSpace(os.Getenv("FIRSGATE_ADMIN_TOKEN")),
	}

	if v := strings.TrimSpace(os.Getenv("FIRSGATE_API_MAX_BODY_BYTES")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxBodyBytes = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("FIRSGATE_API_MAX_BATCH_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxBatchSize = n
		}
	}
	return cfg
}
