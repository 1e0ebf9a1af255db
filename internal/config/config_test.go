package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "VAPI_BASE_URL", "ALLOW_UNSIGNED_WEBHOOKS", "CORS_ALLOWED_ORIGINS", "REMINDER_INTERVAL", "EMAIL_PROVIDER", "CLINIC_ID", "REMINDERS_INLINE"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.VapiBaseURL != "https://api.vapi.ai" {
		t.Fatalf("expected default vapi url, got %s", cfg.VapiBaseURL)
	}
	if cfg.AllowUnsignedWebhooks {
		t.Fatalf("expected unsigned webhooks to be rejected by default")
	}
	if !reflect.DeepEqual(cfg.CORSAllowedOrigins, []string{"*"}) {
		t.Fatalf("expected wildcard cors default, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.ReminderInterval != 5*time.Minute {
		t.Fatalf("expected default reminder interval, got %s", cfg.ReminderInterval)
	}
	if cfg.EmailProvider != "auto" {
		t.Fatalf("expected auto email provider, got %s", cfg.EmailProvider)
	}
	if cfg.ClinicID != "sai-clinic" {
		t.Fatalf("expected default clinic id, got %s", cfg.ClinicID)
	}
	if !cfg.RemindersInline {
		t.Fatalf("expected inline reminders by default")
	}
	if cfg.IsProduction() {
		t.Fatalf("development config reported as production")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("VAPI_WEBHOOK_SECRET", "shh")
	t.Setenv("ALLOW_UNSIGNED_WEBHOOKS", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")
	t.Setenv("REMINDER_LEAD_TIME", "2h")
	t.Setenv("EMAIL_PROVIDER", " SES ")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected production env")
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.VapiWebhookSecret != "shh" || !cfg.AllowUnsignedWebhooks {
		t.Fatalf("expected webhook overrides, got %q %v", cfg.VapiWebhookSecret, cfg.AllowUnsignedWebhooks)
	}
	if !reflect.DeepEqual(cfg.CORSAllowedOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Fatalf("unexpected cors origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rps override, got %v", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst != 20 {
		t.Fatalf("expected burst to fall back to default, got %d", cfg.RateLimitBurst)
	}
	if cfg.ReminderLeadTime != 2*time.Hour {
		t.Fatalf("expected lead time override, got %s", cfg.ReminderLeadTime)
	}
	if cfg.EmailProvider != "ses" {
		t.Fatalf("expected normalized email provider, got %q", cfg.EmailProvider)
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{ClinicTimezone: "Not/AZone"}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC fallback")
	}
	cfg.ClinicTimezone = "UTC"
	if cfg.Location().String() != "UTC" {
		t.Fatalf("expected UTC location, got %s", cfg.Location())
	}
}
