package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "HTTP_PORT", "DB_PATH", "DB_DRIVER", "DATABASE_URL", "DB_DSN", "DATA_ROOT", "MAX_BODY_BYTES", "SIGNED_URL_TTL", "ADMIN_TOKEN"} {
		os.Unsetenv(k)
	}
	cfg := Load()
	if cfg.Env != "dev" {
		t.Fatalf("expected dev, got %s", cfg.Env)
	}
	if cfg.HttpPort != "8080" {
		t.Fatalf("expected 8080, got %s", cfg.HttpPort)
	}
	if cfg.DBDriver != "sqlite" {
		t.Fatalf("expected sqlite, got %s", cfg.DBDriver)
	}
	if cfg.DataRoot == "" {
		t.Fatalf("expected default DataRoot, got empty")
	}
	if cfg.MaxBodyBytes != defaultMaxBodyBytes {
		t.Fatalf("expected default body ceiling, got %d", cfg.MaxBodyBytes)
	}
	if cfg.SignedURLTTL != 15*time.Minute {
		t.Fatalf("expected 15m TTL, got %s", cfg.SignedURLTTL)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	os.Setenv("APP_ENV", "prod")
	os.Setenv("HTTP_PORT", "9999")
	os.Setenv("DB_DRIVER", "postgres")
	os.Setenv("DATABASE_URL", "postgres://u:p@h/db")
	os.Setenv("DATA_ROOT", "/srv/tenants")
	os.Setenv("MAX_BODY_BYTES", "1048576")
	os.Setenv("SIGNED_URL_TTL", "5m")
	t.Cleanup(func() {
		for _, k := range []string{"APP_ENV", "HTTP_PORT", "DB_DRIVER", "DATABASE_URL", "DATA_ROOT", "MAX_BODY_BYTES", "SIGNED_URL_TTL"} {
			os.Unsetenv(k)
		}
	})
	cfg := Load()
	if cfg.Env != "prod" {
		t.Fatalf("env override failed")
	}
	if cfg.HttpPort != "9999" {
		t.Fatalf("port override failed")
	}
	if cfg.DBDriver != "postgres" {
		t.Fatalf("driver override failed")
	}
	if cfg.DBDsn == "" {
		t.Fatalf("DATABASE_URL should be set")
	}
	if cfg.DataRoot != "/srv/tenants" {
		t.Fatalf("data root override failed")
	}
	if cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("body ceiling override failed: %d", cfg.MaxBodyBytes)
	}
	if cfg.SignedURLTTL != 5*time.Minute {
		t.Fatalf("ttl override failed: %s", cfg.SignedURLTTL)
	}
}

func TestGetEnvInt64RejectsGarbage(t *testing.T) {
	os.Setenv("MAX_BODY_BYTES", "not-a-number")
	t.Cleanup(func() { os.Unsetenv("MAX_BODY_BYTES") })
	if got := getEnvInt64("MAX_BODY_BYTES", 42); got != 42 {
		t.Fatalf("expected fallback 42, got %d", got)
	}
}
