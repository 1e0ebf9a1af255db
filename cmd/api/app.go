package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/dental-receptionist/cmd/mainconfig"
	"github.com/wolfman30/dental-receptionist/internal/api/router"
	"github.com/wolfman30/dental-receptionist/internal/appointments"
	"github.com/wolfman30/dental-receptionist/internal/archive"
	"github.com/wolfman30/dental-receptionist/internal/assistant"
	"github.com/wolfman30/dental-receptionist/internal/calls"
	appconfig "github.com/wolfman30/dental-receptionist/internal/config"
	httpmiddleware "github.com/wolfman30/dental-receptionist/internal/http/middleware"
	"github.com/wolfman30/dental-receptionist/internal/notify"
	"github.com/wolfman30/dental-receptionist/internal/observability/metrics"
	"github.com/wolfman30/dental-receptionist/internal/reminders"
	"github.com/wolfman30/dental-receptionist/internal/scheduling"
	"github.com/wolfman30/dental-receptionist/internal/vapi"
	"github.com/wolfman30/dental-receptionist/internal/webhook"
	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

type appointmentStore interface {
	appointments.Repository
	appointments.RequestRepository
}

// application holds the wired HTTP surface plus the background loops that
// share its dependencies.
type application struct {
	Handler  http.Handler
	Reminder *reminders.Worker
	Limiter  *httpmiddleware.RateLimiter
	Hub      *calls.Hub

	remindersInline bool

	pool   *pgxpool.Pool
	redis  *redis.Client
	logger *logging.Logger
}

func setupMetrics() (http.Handler, *metrics.ReceptionistMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewReceptionistMetrics(reg)
}

// originChecker admits websocket upgrades from the CORS allowlist. Requests
// without an Origin header are non-browser clients and are allowed.
func originChecker(allowed []string) func(r *http.Request) bool {
	match := httpmiddleware.OriginMatcher(allowed)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || match(origin)
	}
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*application, error) {
	metricsHandler, m := setupMetrics()
	loc := cfg.Location()
	app := &application{logger: logger, remindersInline: cfg.RemindersInline}
	checks := map[string]router.HealthCheck{}

	var apptStore appointmentStore
	if pool := mainconfig.ConnectPostgres(ctx, cfg.DatabaseURL, logger); pool != nil {
		app.pool = pool
		apptStore = appointments.NewPostgresRepository(pool)
		checks["postgres"] = func(ctx context.Context) error { return pool.Ping(ctx) }
		logger.Info("appointments stored in postgres")
	} else {
		apptStore = appointments.NewInMemoryRepository()
		logger.Warn("DATABASE_URL not set or unreachable; appointments are kept in memory")
	}

	var overrides assistant.OverrideStore = assistant.NewMemoryStore()
	var callRepo calls.Repository = calls.NewMemoryRepository()
	if rdb := mainconfig.NewRedisClient(cfg); rdb != nil {
		app.redis = rdb
		overrides = assistant.NewRedisStore(rdb)
		callRepo = calls.NewRedisRepository(rdb)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		logger.Info("call sessions and assistant overrides stored in redis", "addr", cfg.RedisAddr)
	}

	emailSender, err := mainconfig.NewEmailSender(ctx, cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	clinic := assistant.DefaultClinicInfo()
	assistantSvc := assistant.NewService(assistant.Default(), clinic, overrides, logger)
	booking := appointments.NewService(apptStore, logger,
		appointments.WithLocation(loc),
		appointments.WithMetrics(m),
	)
	slots := scheduling.NewGenerator(scheduling.DefaultOperatingHours())
	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		SMS:         mainconfig.NewSMSSender(cfg, logger),
		Email:       emailSender,
		ClinicInbox: cfg.ClinicInboxEmail,
		ClinicName:  clinic.Name,
		ClinicPhone: clinic.Location.Phone,
		Metrics:     m,
		Logger:      logger,
	})

	app.Hub = calls.NewHub(originChecker(cfg.CORSAllowedOrigins), logger)
	callSvc := calls.NewService(callRepo, app.Hub, logger)
	if cfg.SeedDemoData {
		if err := callSvc.SeedDemo(ctx); err != nil {
			logger.Warn("failed to seed demo call session", "error", err)
		}
	}

	routerCfg := webhook.RouterConfig{
		Booker:   booking,
		Slots:    slots,
		Clinic:   assistantSvc,
		Notifier: dispatcher,
		Calls:    callSvc,
		Metrics:  m,
		ClinicID: cfg.ClinicID,
		Location: loc,
		Logger:   logger,
	}
	if bucket := strings.TrimSpace(cfg.CallArchiveBucket); bucket != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		routerCfg.Archive = archive.NewStore(mainconfig.NewS3Client(awsCfg, cfg), bucket, logger)
		logger.Info("call transcripts archived to s3", "bucket", bucket)
	}

	if cfg.VapiWebhookSecret == "" {
		if cfg.AllowUnsignedWebhooks {
			logger.Warn("VAPI_WEBHOOK_SECRET not set; accepting unsigned webhooks")
		} else {
			logger.Warn("VAPI_WEBHOOK_SECRET not set; webhooks will be rejected until it is configured")
		}
	}

	voice, err := vapi.New(vapi.Config{
		APIKey:        cfg.VapiAPIKey,
		BaseURL:       cfg.VapiBaseURL,
		PhoneNumberID: cfg.VapiPhoneNumberID,
		Logger:        logger,
	})
	if err != nil {
		logger.Warn("voice platform client disabled", "error", err)
		voice = nil
	}

	app.Limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	app.Reminder = reminders.NewWorker(apptStore, dispatcher, logger).
		WithInterval(cfg.ReminderInterval).
		WithLeadTime(cfg.ReminderLeadTime).
		WithBatchSize(cfg.ReminderBatch).
		WithMetrics(m)

	app.Handler = router.New(&router.Config{
		Logger: logger,
		Appointments: appointments.NewHandler(appointments.HandlerConfig{
			Service:   booking,
			Requests:  apptStore,
			Slots:     slots,
			Confirmer: dispatcher,
			ClinicID:  cfg.ClinicID,
			Location:  loc,
			Logger:    logger,
		}),
		Calls:     calls.NewHandler(callSvc, app.Hub, logger),
		Assistant: assistant.NewHandler(assistantSvc, logger),
		Webhook: webhook.NewHandler(webhook.HandlerConfig{
			Router:        webhook.NewRouter(routerCfg),
			Secret:        cfg.VapiWebhookSecret,
			AllowUnsigned: cfg.AllowUnsignedWebhooks,
			Logger:        logger,
		}),
		Voice:              vapi.NewHandler(voice, assistantSvc, logger),
		MetricsHandler:     metricsHandler,
		RateLimiter:        app.Limiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		HealthChecks:       checks,
	})

	return app, nil
}

// Start launches the background loops. They stop when ctx is cancelled.
func (a *application) Start(ctx context.Context) {
	go a.Limiter.RunSweeper(ctx)
	if a.remindersInline {
		go a.Reminder.Run(ctx)
	} else {
		a.logger.Info("inline reminders disabled; expecting a separate reminder worker")
	}
}

func (a *application) Close() {
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis client", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
