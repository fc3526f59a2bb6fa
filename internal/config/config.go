package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env          string
	HttpPort     string
	DBPath       string        // used when DBDriver=sqlite
	DBDriver     string        // sqlite|postgres
	DBDsn        string        // used when DBDriver=postgres (e.g., DATABASE_URL)
	DataRoot     string        // root directory holding per-tenant storage trees
	MaxBodyBytes int64         // hard ceiling for proxied upload request bodies
	SignedURLTTL time.Duration // lifetime of direct-upload instructions minted by adapters
	AdminToken   string        // operator token guarding the /admin surface
}

// MaxBodyBytes is the platform constant that proxied governance ceilings are
// compared against. Rules above it are flagged, never clamped.
const defaultMaxBodyBytes = int64(100 << 20) // 100MB

func Load() *Config {
	cfg := &Config{
		Env:          getEnv("APP_ENV", "dev"),
		HttpPort:     getEnv("HTTP_PORT", "8080"),
		DBPath:       getEnv("DB_PATH", "data/janus.db"),
		DBDriver:     getEnv("DB_DRIVER", "sqlite"),
		DBDsn:        getEnv("DATABASE_URL", getEnv("DB_DSN", "")),
		DataRoot:     getEnv("DATA_ROOT", "data/tenants"),
		MaxBodyBytes: getEnvInt64("MAX_BODY_BYTES", defaultMaxBodyBytes),
		SignedURLTTL: getEnvDuration("SIGNED_URL_TTL", 15*time.Minute),
		AdminToken:   getEnv("ADMIN_TOKEN", ""),
	}
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil && i > 0 {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
