package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("missing config should not fail: %v", err)
	}
	if cfg.Fetch.MaxResults != 50 || cfg.Fetch.PageSize != 500 {
		t.Fatalf("unexpected fetch defaults: %+v", cfg.Fetch)
	}
	if cfg.Apply.Workers != 4 {
		t.Fatalf("unexpected apply defaults: %+v", cfg.Apply)
	}
	if cfg.Store.DBPath == "" || cfg.Store.RulesPath == "" {
		t.Fatalf("store paths should default: %+v", cfg.Store)
	}
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[store]
db_path = "/tmp/mail.db"

[fetch]
max_results = 200

[apply]
workers = 8
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Store.DBPath != "/tmp/mail.db" {
		t.Fatalf("db_path not applied: %q", cfg.Store.DBPath)
	}
	if cfg.Fetch.MaxResults != 200 {
		t.Fatalf("max_results not applied: %d", cfg.Fetch.MaxResults)
	}
	if cfg.Fetch.PageSize != 500 {
		t.Fatalf("unset keys should keep defaults: %d", cfg.Fetch.PageSize)
	}
	if cfg.Apply.Workers != 8 {
		t.Fatalf("workers not applied: %d", cfg.Apply.Workers)
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[store\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
