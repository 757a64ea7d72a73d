package app

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("HTTPAddr default: %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Fatalf("log defaults: %q %q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.DBSchema != "firsgate" {
		t.Fatalf("DBSchema default: %q", cfg.DBSchema)
	}
	if cfg.DBMaxConns != 10 || cfg.DBMinConns != 0 {
		t.Fatalf("pool defaults: %d/%d", cfg.DBMaxConns, cfg.DBMinConns)
	}
	if cfg.SweepInterval != 0 {
		t.Fatalf("SweepInterval default: %v", cfg.SweepInterval)
	}
	if cfg.IRNValidDays != 7 {
		t.Fatalf("IRNValidDays default: %d", cfg.IRNValidDays)
	}
	if cfg.ReadinessRequireDB || cfg.RequireAdminToken {
		t.Fatalf("policy flags should default off")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("FIRSGATE_HTTP_ADDR", "127.0.0.1:9090")
	t.Setenv("FIRSGATE_LOG_FORMAT", "text")
	t.Setenv("FIRSGATE_DB_SCHEMA", "custom")
	t.Setenv("FIRSGATE_SWEEP_INTERVAL", "5m")
	t.Setenv("FIRSGATE_IRN_VALID_DAYS", "30")
	t.Setenv("FIRSGATE_REQUIRE_ADMIN_TOKEN", "true")

	cfg := LoadConfig()

	if cfg.HTTPAddr != "127.0.0.1:9090" {
		t.Fatalf("HTTPAddr: %q", cfg.HTTPAddr)
	}
	if cfg.LogFormat != "text" {
		t.Fatalf("LogFormat: %q", cfg.LogFormat)
	}
	if cfg.DBSchema != "custom" {
		t.Fatalf("DBSchema: %q", cfg.DBSchema)
	}
	if cfg.SweepInterval != 5*time.Minute {
		t.Fatalf("SweepInterval: %v", cfg.SweepInterval)
	}
	if cfg.IRNValidDays != 30 {
		t.Fatalf("IRNValidDays: %d", cfg.IRNValidDays)
	}
	if !cfg.RequireAdminToken {
		t.Fatalf("RequireAdminToken not set")
	}
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("FIRSGATE_HTTP_READ_TIMEOUT", "not-a-duration")
	t.Setenv("FIRSGATE_IRN_VALID_DAYS", "-3")
	t.Setenv("FIRSGATE_DB_MAX_CONNS", "many")
	t.Setenv("FIRSGATE_SWEEP_INTERVAL", "-1m")

	cfg := LoadConfig()

	if cfg.ReadTimeout != 15*time.Second {
		t.Fatalf("ReadTimeout: %v", cfg.ReadTimeout)
	}
	if cfg.IRNValidDays != 7 {
		t.Fatalf("IRNValidDays: %d", cfg.IRNValidDays)
	}
	if cfg.DBMaxConns != 10 {
		t.Fatalf("DBMaxConns: %d", cfg.DBMaxConns)
	}
	if cfg.SweepInterval != 0 {
		t.Fatalf("SweepInterval: %v", cfg.SweepInterval)
	}
}
