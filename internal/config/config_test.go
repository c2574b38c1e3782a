package config

import (
	"os"
	"path/filepath"
	"testing"
)

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoad_Defaults(t *testing.T) {
	// No config file on the search path; defaults and env apply.
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Ledger.Path == "" {
		t.Error("ledger.path default should not be empty")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = %q/%q, want info/json", cfg.Logging.Level, cfg.Logging.Format)
	}
	if !cfg.Security.RateLimiting.Enabled {
		t.Error("rate limiting should default to enabled")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9999
ledger:
  path: /var/lib/modplane/ledger.ndjson
logging:
  level: debug
  format: text
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("server.port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Ledger.Path != "/var/lib/modplane/ledger.ndjson" {
		t.Errorf("ledger.path = %q", cfg.Ledger.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q, want debug", cfg.Logging.Level)
	}
	// Unset keys keep their defaults.
	if cfg.Database.Port != 5432 {
		t.Errorf("database.port = %d, want default 5432", cfg.Database.Port)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9999\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("MODP_SERVER_PORT", "7777")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("server.port = %d, want env override 7777", cfg.Server.Port)
	}
}

func TestLoad_SecretExpansion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  password: ${DB_SECRET}\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("DB_SECRET", "hunter2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Password != "hunter2" {
		t.Errorf("database.password = %q, want expanded secret", cfg.Database.Password)
	}
}

// ---------------------------------------------------------------------------
// Validate
// ---------------------------------------------------------------------------

func TestValidate_BadValues(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:  ServerConfig{Port: 8080},
			Ledger:  LedgerConfig{Path: "./ledger.ndjson"},
			Logging: LoggingConfig{Level: "info", Format: "json"},
		}
	}

	cfg := base()
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("port 0 should fail validation")
	}

	cfg = base()
	cfg.Ledger.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty ledger path should fail validation")
	}

	cfg = base()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown log level should fail validation")
	}

	cfg = base()
	cfg.Audit.Shippers = []AuditShipperConfig{{Enabled: true, Type: "carrier-pigeon"}}
	if err := cfg.Validate(); err == nil {
		t.Error("unknown shipper type should fail validation")
	}

	cfg = base()
	cfg.Audit.Shippers = []AuditShipperConfig{{Enabled: true, Type: "webhook", Webhook: &AuditWebhookConfig{}}}
	if err := cfg.Validate(); err == nil {
		t.Error("webhook shipper without url should fail validation")
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "modplane", User: "m", Password: "p", SSLMode: "disable"}
	want := "host=db port=5432 dbname=modplane user=m password=p sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}
