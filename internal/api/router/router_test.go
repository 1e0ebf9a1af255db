package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/dental-receptionist/internal/appointments"
	"github.com/wolfman30/dental-receptionist/internal/assistant"
	"github.com/wolfman30/dental-receptionist/internal/calls"
	httpmiddleware "github.com/wolfman30/dental-receptionist/internal/http/middleware"
	"github.com/wolfman30/dental-receptionist/internal/notify"
	"github.com/wolfman30/dental-receptionist/internal/observability/metrics"
	"github.com/wolfman30/dental-receptionist/internal/scheduling"
	"github.com/wolfman30/dental-receptionist/internal/vapi"
	"github.com/wolfman30/dental-receptionist/internal/webhook"
	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

func newTestRouter(t *testing.T, checks map[string]HealthCheck) http.Handler {
	t.Helper()
	return newLimitedTestRouter(t, checks, httpmiddleware.NewRateLimiter(100, 100))
}

func newLimitedTestRouter(t *testing.T, checks map[string]HealthCheck, limiter *httpmiddleware.RateLimiter) http.Handler {
	t.Helper()

	logger := logging.Default()
	reg := prometheus.NewRegistry()
	m := metrics.NewReceptionistMetrics(reg)

	repo := appointments.NewInMemoryRepository()
	booking := appointments.NewService(repo, logger, appointments.WithMetrics(m))
	slots := scheduling.NewGenerator(scheduling.DefaultOperatingHours())
	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{Metrics: m, Logger: logger})
	assistantSvc := assistant.NewService(assistant.Default(), assistant.DefaultClinicInfo(), assistant.NewMemoryStore(), logger)
	callSvc := calls.NewService(calls.NewMemoryRepository(), nil, logger)

	hook := webhook.NewRouter(webhook.RouterConfig{
		Booker:   booking,
		Slots:    slots,
		Clinic:   assistantSvc,
		Notifier: dispatcher,
		Calls:    callSvc,
		Metrics:  m,
		Logger:   logger,
	})

	return New(&Config{
		Logger: logger,
		Appointments: appointments.NewHandler(appointments.HandlerConfig{
			Service: booking, Requests: repo, Slots: slots, Confirmer: dispatcher, Logger: logger,
		}),
		Calls:              calls.NewHandler(callSvc, nil, logger),
		Assistant:          assistant.NewHandler(assistantSvc, logger),
		Webhook:            webhook.NewHandler(webhook.HandlerConfig{Router: hook, Secret: "shh", Logger: logger}),
		Voice:              vapi.NewHandler(nil, assistantSvc, logger),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		RateLimiter:        limiter,
		CORSAllowedOrigins: []string{"*"},
		HealthChecks:       checks,
	})
}

func serve(router http.Handler, method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := serve(router, http.MethodGet, "/health", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterHealthReportsFailingDependency(t *testing.T) {
	router := newTestRouter(t, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})

	rr := serve(router, http.MethodGet, "/health", nil, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" || resp.Checks["postgres"] != "ok" || resp.Checks["redis"] != "connection refused" {
		t.Fatalf("unexpected health body %+v", resp)
	}
}

func TestRouterBookingFlow(t *testing.T) {
	router := newTestRouter(t, nil)

	body := []byte(`{"patientName":"Jane","contactNumber":"555","preferredDate":"2025-01-10","preferredTime":"9:00 AM","isUrgent":true}`)
	rr := serve(router, http.MethodPost, "/bookings", body, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var created struct {
		Appointment appointments.Appointment `json:"appointment"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Appointment.Status != appointments.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", created.Appointment.Status)
	}

	rr = serve(router, http.MethodGet, "/bookings/"+created.Appointment.ID, nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected booking lookup to succeed, got %d", rr.Code)
	}

	rr = serve(router, http.MethodPost, "/appointments", []byte(`{"patientName":"Jane"}`), nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for incomplete request, got %d", rr.Code)
	}
}

func TestRouterCallsAndConfig(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := serve(router, http.MethodPost, "/calls", []byte(`{"callType":"emergency"}`), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from POST /calls, got %d", rr.Code)
	}
	rr = serve(router, http.MethodPut, "/calls", []byte(`{}`), nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 from PUT /calls without id, got %d", rr.Code)
	}
	rr = serve(router, http.MethodGet, "/calls?status=active", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from GET /calls, got %d", rr.Code)
	}

	rr = serve(router, http.MethodGet, "/calls/stream", nil, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from stream without hub, got %d", rr.Code)
	}

	rr = serve(router, http.MethodPut, "/config", []byte(`{"firstMessage":"Hi there"}`), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from PUT /config, got %d", rr.Code)
	}
	rr = serve(router, http.MethodGet, "/config", nil, nil)
	var cfg assistant.Config
	if err := json.Unmarshal(rr.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if cfg.FirstMessage != "Hi there" {
		t.Fatalf("expected updated first message, got %q", cfg.FirstMessage)
	}

	rr = serve(router, http.MethodPost, "/voice/assistant", nil, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without voice platform key, got %d", rr.Code)
	}
}

func TestRouterWebhookRequiresSignature(t *testing.T) {
	router := newTestRouter(t, nil)
	payload := []byte(`{"type":"function-call","functionCall":{"name":"getClinicInfo"}}`)

	rr := serve(router, http.MethodPost, "/webhook", payload, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without signature, got %d", rr.Code)
	}

	rr = serve(router, http.MethodPost, "/webhook", payload, map[string]string{webhook.SignatureHeader: webhook.Sign("shh", payload)})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with signature, got %d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte(`"clinic"`)) {
		t.Fatalf("expected clinic info in result: %s", rr.Body.String())
	}

	rr = serve(router, http.MethodGet, "/metrics", nil, nil)
	if !bytes.Contains(rr.Body.Bytes(), []byte("receptionist_webhook_events_total")) {
		t.Fatalf("expected webhook metrics to be exported")
	}
}

func TestRouterWebhookBypassesRateLimit(t *testing.T) {
	router := newLimitedTestRouter(t, nil, httpmiddleware.NewRateLimiter(1, 1))
	payload := []byte(`{"type":"function-call","functionCall":{"name":"getClinicInfo"}}`)
	signed := map[string]string{webhook.SignatureHeader: webhook.Sign("shh", payload)}

	for i := 0; i < 5; i++ {
		rr := serve(router, http.MethodPost, "/webhook", payload, signed)
		if rr.Code != http.StatusOK {
			t.Fatalf("webhook call %d: expected 200, got %d", i, rr.Code)
		}
	}

	if rr := serve(router, http.MethodGet, "/calls", nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("expected first dashboard request to pass, got %d", rr.Code)
	}
	if rr := serve(router, http.MethodGet, "/calls", nil, nil); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected dashboard requests to stay limited, got %d", rr.Code)
	}
}
