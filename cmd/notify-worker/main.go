package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-booking/internal/accounts"
	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/config"
	"github.com/hackgods/doctor-appointment-booking/internal/db"
	"github.com/hackgods/doctor-appointment-booking/internal/logger"
	"github.com/hackgods/doctor-appointment-booking/internal/metrics"
	"github.com/hackgods/doctor-appointment-booking/internal/notification"
	"github.com/hackgods/doctor-appointment-booking/internal/payment"
	"github.com/hackgods/doctor-appointment-booking/internal/waitlist"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("notify-worker stopped", zap.Error(err))
	}
}

func run(cfg config.Config, lg *zap.Logger) error {
	lg.Info("notify-worker starting up",
		zap.String("env", cfg.Env),
		zap.String("queue", cfg.NotifyQueue),
		zap.Int("max_retries", cfg.NotifyMaxRetries),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		return fmt.Errorf("postgres connection: %w", err)
	}
	defer pgPool.Close()
	lg.Info("connected to Postgres")

	amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("rabbitmq connection: %w", err)
	}
	defer amqpConn.Close()

	queue, err := notification.NewQueue(amqpConn, cfg.NotifyQueue, cfg.NotifyPrefetch, lg)
	if err != nil {
		return fmt.Errorf("notification queue: %w", err)
	}
	defer queue.Close()
	lg.Info("connected to RabbitMQ")

	reg := prometheus.NewRegistry()
	m := metrics.NewCollector(reg)

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           metrics.Handler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Warn("metrics server", zap.Error(err))
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(ctx)
	}()

	// The worker only reads the waitlist, so it needs no user directory.
	interested := waitlist.NewService(waitlist.NewPgRepository(pgPool), nil, lg.Named("waitlist"))

	dispatcher := notification.NewDispatcher(notification.DispatcherDeps{
		Appointments: appointment.NewPgRepository(pgPool),
		Users:        accounts.NewPgRepository(pgPool),
		Waitlist:     interested,
		Payments:     payment.NewPgRepository(pgPool),
		Mailer:       notification.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom),
		Publisher:    queue,
		Rules: appointment.Rules{
			BookingWindow:      cfg.BookingWindow,
			CancellationCutoff: cfg.CancellationCutoff,
			DailyCapacity:      cfg.DailyCapacity,
			Location:           cfg.Timezone,
		},
		MaxRetries: cfg.NotifyMaxRetries,
		Log:        lg.Named("dispatcher"),
		Metrics:    m,
	})

	err = queue.Consume(rootCtx, dispatcher.Process)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume: %w", err)
	}

	lg.Info("shutdown signal received, notify-worker stopped")
	return nil
}
