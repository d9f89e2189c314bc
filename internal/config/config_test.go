package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
}

func TestNew_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := New()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.Port != "4242" {
		t.Errorf("Expected default port 4242, got %q", cfg.Port)
	}
	if cfg.ValidateNotFoundDelay != 200*time.Millisecond {
		t.Errorf("Expected default delay 200ms, got %v", cfg.ValidateNotFoundDelay)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != cfg.FrontendURL {
		t.Errorf("Expected allowed origins to default to the frontend URL, got %v", cfg.AllowedOrigins)
	}
}

func TestNew_MissingRequired(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{name: "missing database url", unset: "DATABASE_URL"},
		{name: "missing stripe secret", unset: "STRIPE_SECRET_KEY"},
		{name: "missing webhook secret", unset: "STRIPE_WEBHOOK_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.unset, "")

			if _, err := New(); err == nil {
				t.Errorf("Expected error when %s is unset", tt.unset)
			}
		})
	}
}

func TestNew_AllowedOrigins(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_ORIGINS", "https://rabisk.example, http://localhost:5173")

	cfg, err := New()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("Expected 2 origins, got %v", cfg.AllowedOrigins)
	}
	if cfg.AllowedOrigins[1] != "http://localhost:5173" {
		t.Errorf("Expected origins to be trimmed, got %q", cfg.AllowedOrigins[1])
	}
}

func TestNew_ValidateDelay(t *testing.T) {
	setRequired(t)
	t.Setenv("VALIDATE_NOT_FOUND_DELAY_MS", "50")

	cfg, err := New()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.ValidateNotFoundDelay != 50*time.Millisecond {
		t.Errorf("Expected 50ms delay, got %v", cfg.ValidateNotFoundDelay)
	}
}

func TestNew_InvalidValidateDelay(t *testing.T) {
	setRequired(t)
	t.Setenv("VALIDATE_NOT_FOUND_DELAY_MS", "soon")

	if _, err := New(); err == nil {
		t.Errorf("Expected error for non-numeric delay")
	}
}
