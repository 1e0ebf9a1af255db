package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/dental-receptionist/cmd/mainconfig"
	"github.com/wolfman30/dental-receptionist/internal/appointments"
	"github.com/wolfman30/dental-receptionist/internal/assistant"
	appconfig "github.com/wolfman30/dental-receptionist/internal/config"
	"github.com/wolfman30/dental-receptionist/internal/notify"
	"github.com/wolfman30/dental-receptionist/internal/reminders"
	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).Component("reminder-worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reminders only make sense against the shared appointment store.
	pool := mainconfig.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	if pool == nil {
		logger.Error("reminder worker requires a reachable DATABASE_URL")
		os.Exit(1)
	}
	defer pool.Close()

	emailSender, err := mainconfig.NewEmailSender(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to configure email sender", "error", err)
		os.Exit(1)
	}

	clinic := assistant.DefaultClinicInfo()
	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		SMS:         mainconfig.NewSMSSender(cfg, logger),
		Email:       emailSender,
		ClinicInbox: cfg.ClinicInboxEmail,
		ClinicName:  clinic.Name,
		ClinicPhone: clinic.Location.Phone,
		Logger:      logger,
	})

	worker := reminders.NewWorker(appointments.NewPostgresRepository(pool), dispatcher, logger).
		WithInterval(cfg.ReminderInterval).
		WithLeadTime(cfg.ReminderLeadTime).
		WithBatchSize(cfg.ReminderBatch)

	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()
	logger.Info("reminder worker started", "interval", cfg.ReminderInterval, "lead_time", cfg.ReminderLeadTime)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down reminder worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	select {
	case <-done:
		logger.Info("reminder worker stopped")
	case <-doneCtx.Done():
		logger.Error("reminder worker shutdown timed out", "error", doneCtx.Err())
	}
}
