package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appconfig "github.com/wolfman30/dental-receptionist/internal/config"
	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		Env:                "test",
		ClinicTimezone:     "UTC",
		ClinicID:           "sai-clinic",
		CORSAllowedOrigins: []string{"https://dashboard.example"},
		RateLimitRPS:       50,
		RateLimitBurst:     50,
		EmailProvider:      "stub",
		ReminderInterval:   time.Minute,
		ReminderLeadTime:   24 * time.Hour,
		ReminderBatch:      10,
	}
}

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, m := setupMetrics()
	if handler == nil || m == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	m.ObserveWebhookEvent("call-started", "ok", time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "receptionist_webhook_events_total") {
		t.Fatalf("expected webhook counter to be exported")
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://dashboard.example/"})

	cases := map[string]bool{
		"":                          true,
		"https://dashboard.example": true,
		"https://evil.example":      false,
	}
	for origin, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/calls/stream", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		if got := check(req); got != want {
			t.Errorf("origin %q: expected %v, got %v", origin, want, got)
		}
	}

	if !originChecker([]string{"*"})(func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/calls/stream", nil)
		req.Header.Set("Origin", "https://anything.example")
		return req
	}()) {
		t.Fatalf("expected wildcard to admit any origin")
	}
}

func TestBuildAppInMemory(t *testing.T) {
	cfg := testConfig()
	cfg.SeedDemoData = true
	cfg.RemindersInline = true

	app, err := buildApp(context.Background(), cfg, logging.New("error"))
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer app.Close()

	rr := httptest.NewRecorder()
	app.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected healthy in-memory app, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	app.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/calls", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from /calls, got %d", rr.Code)
	}
	var resp struct {
		Sessions []struct {
			ID string `json:"id"`
		} `json:"sessions"`
		Total int `json:"total"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Sessions[0].ID != "call_123" {
		t.Fatalf("expected seeded demo call, got %+v", resp)
	}

	rr = httptest.NewRecorder()
	app.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/voice/assistant", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a voice platform key, got %d", rr.Code)
	}
}

func TestBuildAppRejectsMisconfiguredEmail(t *testing.T) {
	cfg := testConfig()
	cfg.EmailProvider = "sendgrid"

	if _, err := buildApp(context.Background(), cfg, logging.New("error")); err == nil {
		t.Fatalf("expected error when sendgrid is selected without a key")
	}
}

func TestApplicationStartStopsWithContext(t *testing.T) {
	app, err := buildApp(context.Background(), testConfig(), logging.New("error"))
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	app.Start(ctx)
	cancel()
}
