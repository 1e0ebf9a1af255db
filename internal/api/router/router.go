package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/dental-receptionist/internal/appointments"
	"github.com/wolfman30/dental-receptionist/internal/assistant"
	"github.com/wolfman30/dental-receptionist/internal/calls"
	httpmiddleware "github.com/wolfman30/dental-receptionist/internal/http/middleware"
	"github.com/wolfman30/dental-receptionist/internal/vapi"
	"github.com/wolfman30/dental-receptionist/internal/webhook"
	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

// HealthCheck probes one dependency for /health.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Appointments       *appointments.Handler
	Calls              *calls.Handler
	Assistant          *assistant.Handler
	Webhook            *webhook.Handler
	Voice              *vapi.Handler
	MetricsHandler     http.Handler
	RateLimiter        *httpmiddleware.RateLimiter
	CORSAllowedOrigins []string
	HealthChecks       map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthHandler(cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Group(func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(cfg.RateLimiter.Middleware)
		}
		api.Use(middleware.Compress(5, "application/json"))

		if h := cfg.Appointments; h != nil {
			api.Route("/appointments", func(r chi.Router) {
				r.Post("/", h.CreateRequest)
				r.Get("/", h.PublishedAvailability)
				r.Get("/{id}", h.GetRequest)
			})
			api.Get("/availability", h.Availability)
			api.Route("/bookings", func(r chi.Router) {
				r.Post("/", h.Book)
				r.Get("/", h.ListBookings)
				r.Get("/{id}", h.GetBooking)
				r.Patch("/{id}", h.UpdateBookingStatus)
			})
		}
		if h := cfg.Calls; h != nil {
			api.Route("/calls", func(r chi.Router) {
				r.Post("/", h.Start)
				r.Put("/", h.Update)
				r.Get("/", h.List)
			})
		}
		if h := cfg.Assistant; h != nil {
			api.Get("/config", h.GetConfig)
			api.Put("/config", h.UpdateConfig)
			api.Get("/clinic", h.GetClinic)
		}
		if h := cfg.Voice; h != nil {
			api.Route("/voice", func(r chi.Router) {
				r.Post("/assistant", h.CreateAssistant)
				r.Post("/calls", h.InitiateCall)
				r.Get("/calls/{callID}", h.GetCall)
			})
		}
	})

	// Platform callbacks are authenticated by signature and arrive in bursts
	// during a call, so they bypass the per-client limiter.
	if h := cfg.Webhook; h != nil {
		r.Post("/webhook", h.Handle)
	}

	// The live feed is a long-lived websocket, so it skips compression and
	// per-request rate limiting.
	if h := cfg.Calls; h != nil {
		r.Get("/calls/stream", h.Stream)
	}

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok"}
		if len(checks) > 0 {
			results := make(map[string]string, len(checks))
			for name, check := range checks {
				if err := check(ctx); err != nil {
					results[name] = err.Error()
					status = http.StatusServiceUnavailable
					body["status"] = "degraded"
					continue
				}
				results[name] = "ok"
			}
			body["checks"] = results
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
