package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected defaults to be valid, got: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Errorf("expected default address :8080, got %s", cfg.Server.Address)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("expected memory backend, got %s", cfg.Storage.Backend)
	}
	if cfg.Payments.ProcessingDelay.Duration != 1500*time.Millisecond {
		t.Errorf("expected 1.5s processing delay, got %v", cfg.Payments.ProcessingDelay.Duration)
	}
	if cfg.Payments.Currency != "USD" {
		t.Errorf("expected USD, got %s", cfg.Payments.Currency)
	}
	if cfg.Payments.TestCards.Declined != "4444444444440002" {
		t.Errorf("unexpected declined card %s", cfg.Payments.TestCards.Declined)
	}
	if cfg.Storage.Collections.Transactions != "transactions" {
		t.Errorf("unexpected transactions collection %s", cfg.Storage.Collections.Transactions)
	}
	if cfg.Admin.Password != "" {
		t.Error("admin password must have no default")
	}
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  address: ":9090"
  route_prefix: "api/"
payments:
  processing_delay: 250ms
  currency: eur
storage:
  backend: file
  file_path: ` + filepath.Join(dir, "records.json") + `
  collections:
    songs: tracks
rate_limit:
  global_enabled: true
  global_limit: 10
  global_window: 30
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Address != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.Server.Address)
	}
	if cfg.Server.RoutePrefix != "/api" {
		t.Errorf("expected normalized prefix /api, got %s", cfg.Server.RoutePrefix)
	}
	if cfg.Payments.ProcessingDelay.Duration != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.Payments.ProcessingDelay.Duration)
	}
	if cfg.Payments.Currency != "EUR" {
		t.Errorf("expected currency upper-cased, got %s", cfg.Payments.Currency)
	}
	if cfg.Storage.Collections.Songs != "tracks" {
		t.Errorf("expected songs collection override, got %s", cfg.Storage.Collections.Songs)
	}
	if cfg.Storage.Collections.Users != "users" {
		t.Errorf("expected users collection default, got %s", cfg.Storage.Collections.Users)
	}
	if cfg.RateLimit.GlobalWindow.Duration != 30*time.Second {
		t.Errorf("expected bare number parsed as seconds, got %v", cfg.RateLimit.GlobalWindow.Duration)
	}
	// Untouched sections keep defaults.
	if cfg.Payments.TestCards.Success != "4444444444444242" {
		t.Errorf("expected default success card, got %s", cfg.Payments.TestCards.Success)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr string
	}{
		{
			name:    "postgres without url",
			envVars: map[string]string{"MUSICHUB_STORAGE_BACKEND": "postgres"},
			wantErr: "storage.postgres_url is required",
		},
		{
			name:    "mongodb without url",
			envVars: map[string]string{"MUSICHUB_STORAGE_BACKEND": "mongodb"},
			wantErr: "storage.mongodb_url is required",
		},
		{
			name:    "unknown backend",
			envVars: map[string]string{"MUSICHUB_STORAGE_BACKEND": "redis"},
			wantErr: "not supported",
		},
		{
			name:    "short test card",
			envVars: map[string]string{"MUSICHUB_TEST_CARD_DECLINED": "0002"},
			wantErr: "payments.test_cards.declined must be 16 digits",
		},
		{
			name: "bad table name",
			envVars: map[string]string{
				"MUSICHUB_STORAGE_BACKEND": "postgres",
				"MUSICHUB_POSTGRES_URL":    "postgres://localhost/musichub",
				"MUSICHUB_POSTGRES_TABLE":  "records; drop table x",
			},
			wantErr: "not a valid identifier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			_, err := Load("")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("MUSICHUB_TEST_DOTENV_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("MUSICHUB_TEST_DOTENV_VALUE", "")
	os.Unsetenv("MUSICHUB_TEST_DOTENV_VALUE")
	defer os.Unsetenv("MUSICHUB_TEST_DOTENV_VALUE")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("MUSICHUB_TEST_DOTENV_VALUE"); got != "from-file" {
		t.Errorf("expected value from .env, got %q", got)
	}
}

func TestNormalizeRoutePrefix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"api", "/api"},
		{"/api", "/api"},
		{"/api/", "/api"},
		{"  /api/  ", "/api"},
		{"music-hub", "/music-hub"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalizeRoutePrefix(tt.input); got != tt.want {
				t.Errorf("normalizeRoutePrefix(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
