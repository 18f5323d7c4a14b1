package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-booking/internal/config"
	"github.com/hackgods/doctor-appointment-booking/internal/db"
	"github.com/hackgods/doctor-appointment-booking/internal/logger"
	"github.com/hackgods/doctor-appointment-booking/internal/notification"
	"github.com/hackgods/doctor-appointment-booking/internal/payment"
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
		lg.Fatal("payment-reconciler stopped", zap.Error(err))
	}
}

func run(cfg config.Config, lg *zap.Logger) error {
	lg.Info("payment-reconciler starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.ReconcileInterval),
		zap.Duration("older_than", cfg.ReconcileAfter),
	)

	if cfg.PayPalClientID == "" || cfg.PayPalClientSecret == "" {
		lg.Warn("paypal credentials not set, nothing to reconcile")
		return nil
	}

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

	provider, err := payment.NewPayPal(cfg.PayPalClientID, cfg.PayPalClientSecret, cfg.PayPalMode)
	if err != nil {
		return fmt.Errorf("paypal client: %w", err)
	}

	// Reconcile never creates payments, so it needs no appointment lookup.
	svc := payment.NewService(payment.NewPgRepository(pgPool), provider, nil,
		notification.NewNotifier(queue, nil), cfg.PublicBaseURL, lg.Named("payment"), nil)

	runOnce(rootCtx, lg, svc, cfg.ReconcileAfter)

	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			lg.Info("shutdown signal received, stopping payment-reconciler")
			return nil
		case <-ticker.C:
			runOnce(rootCtx, lg, svc, cfg.ReconcileAfter)
		}
	}
}

func runOnce(ctx context.Context, lg *zap.Logger, svc *payment.Service, olderThan time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	start := time.Now()
	n, err := svc.Reconcile(runCtx, olderThan)
	if err != nil {
		lg.Error("reconcile run error", zap.Error(err))
		return
	}
	lg.Info("reconcile run complete", zap.Int("settled", n), zap.Duration("took", time.Since(start)))
}
