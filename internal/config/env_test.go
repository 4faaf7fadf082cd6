package config

import (
	"testing"
	"time"
)

func TestEnvOverrides(t *testing.T) {
	tests := []struct {
		name      string
		envVars   map[string]string
		checkFunc func(*testing.T, *Config)
	}{
		{
			name:    "MUSICHUB_SERVER_ADDRESS overrides default",
			envVars: map[string]string{"MUSICHUB_SERVER_ADDRESS": ":3000"},
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.Server.Address != ":3000" {
					t.Errorf("Expected :3000, got %s", cfg.Server.Address)
				}
			},
		},
		{
			name:    "CORS origins split on comma",
			envVars: map[string]string{"MUSICHUB_CORS_ALLOWED_ORIGINS": "https://a.example, https://b.example,"},
			checkFunc: func(t *testing.T, cfg *Config) {
				if len(cfg.Server.CORSAllowedOrigins) != 2 || cfg.Server.CORSAllowedOrigins[1] != "https://b.example" {
					t.Errorf("unexpected origins %v", cfg.Server.CORSAllowedOrigins)
				}
			},
		},
		{
			name:    "processing delay",
			envVars: map[string]string{"MUSICHUB_PAYMENTS_PROCESSING_DELAY": "0s"},
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.Payments.ProcessingDelay.Duration != 0 {
					t.Errorf("expected zero delay, got %v", cfg.Payments.ProcessingDelay.Duration)
				}
			},
		},
		{
			name:    "invalid duration ignored",
			envVars: map[string]string{"MUSICHUB_PAYMENTS_PROCESSING_DELAY": "soon"},
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.Payments.ProcessingDelay.Duration != 1500*time.Millisecond {
					t.Errorf("expected default delay kept, got %v", cfg.Payments.ProcessingDelay.Duration)
				}
			},
		},
		{
			name: "rate limit ints and bools",
			envVars: map[string]string{
				"MUSICHUB_RATE_LIMIT_PER_USER_LIMIT":   "5",
				"MUSICHUB_RATE_LIMIT_PER_IP_ENABLED":   "false",
				"MUSICHUB_RATE_LIMIT_GLOBAL_LIMIT":     "not-a-number",
				"MUSICHUB_CIRCUIT_BREAKER_ENABLED":     "0",
				"MUSICHUB_RATE_LIMIT_GLOBAL_ENABLED":   "TRUE",
				"MUSICHUB_RATE_LIMIT_PER_USER_ENABLED": "1",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.RateLimit.PerUserLimit != 5 {
					t.Errorf("expected per-user limit 5, got %d", cfg.RateLimit.PerUserLimit)
				}
				if cfg.RateLimit.PerIPEnabled {
					t.Error("expected per-IP disabled")
				}
				if cfg.RateLimit.GlobalLimit != 1000 {
					t.Errorf("expected invalid int ignored, got %d", cfg.RateLimit.GlobalLimit)
				}
				if cfg.CircuitBreaker.Enabled {
					t.Error("expected circuit breaker disabled")
				}
				if !cfg.RateLimit.GlobalEnabled || !cfg.RateLimit.PerUserEnabled {
					t.Error("expected limits enabled")
				}
			},
		},
		{
			name: "admin credentials",
			envVars: map[string]string{
				"MUSICHUB_ADMIN_EMAIL":    "admin@musichub.test",
				"MUSICHUB_ADMIN_PASSWORD": "s3cret-pass",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.Admin.Email != "admin@musichub.test" || cfg.Admin.Password != "s3cret-pass" {
					t.Errorf("unexpected admin config %+v", cfg.Admin)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := defaultConfig()
			cfg.applyEnvOverrides()
			tt.checkFunc(t, cfg)
		})
	}
}
