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

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	migrate "github.com/rubenv/sql-migrate"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-booking/internal/accounts"
	"github.com/hackgods/doctor-appointment-booking/internal/api"
	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/auth"
	"github.com/hackgods/doctor-appointment-booking/internal/config"
	"github.com/hackgods/doctor-appointment-booking/internal/db"
	"github.com/hackgods/doctor-appointment-booking/internal/logger"
	"github.com/hackgods/doctor-appointment-booking/internal/metrics"
	"github.com/hackgods/doctor-appointment-booking/internal/notification"
	"github.com/hackgods/doctor-appointment-booking/internal/payment"
	redisclient "github.com/hackgods/doctor-appointment-booking/internal/redis"
	"github.com/hackgods/doctor-appointment-booking/internal/tracing"
	"github.com/hackgods/doctor-appointment-booking/internal/waitlist"
)

var version = "dev"

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
		lg.Fatal("api-server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, lg *zap.Logger) error {
	lg.Info("api-server starting up", zap.String("env", cfg.Env), zap.String("http_port", cfg.HTTPPort))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(rootCtx, tracing.Config{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: "doctor-appointment-api",
		SampleRate:  cfg.OTelSampleRate,
	})
	if err != nil {
		return fmt.Errorf("tracing init: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			lg.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN,
		db.WithMaxConns(int32(cfg.DBMaxConns)),
		db.WithQueryLog(lg.Named("pgx"), queryLogLevel(cfg.LogLevel)),
	)
	cancelPg()
	if err != nil {
		return fmt.Errorf("postgres connection: %w", err)
	}
	defer pgPool.Close()
	lg.Info("connected to Postgres")

	if cfg.AutoMigrate {
		n, err := db.Migrate(pgPool, migrate.Up, 0)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		lg.Info("migrations applied", zap.Int("count", n))
	}

	redisCtx, cancelRedis := context.WithTimeout(rootCtx, 5*time.Second)
	rdb, err := redisclient.NewRedisClient(redisCtx, redisclient.ClientOptions{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	cancelRedis()
	if err != nil {
		return fmt.Errorf("redis connection: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			lg.Warn("error closing redis", zap.Error(err))
		}
	}()
	lg.Info("connected to Redis")

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
	lg.Info("connected to RabbitMQ", zap.String("queue", cfg.NotifyQueue))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector(reg)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	notifier := notification.NewNotifier(queue, m)

	accountSvc := accounts.NewService(accounts.NewPgRepository(pgPool), tokens, lg.Named("accounts"))

	apptSvc := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		redisclient.NewRedisDayLocker(rdb, cfg.LockTTL, cfg.LockWait),
		accountSvc,
		notifier,
		rulesFrom(cfg),
		lg.Named("appointment"),
		m,
	)

	waitlistSvc := waitlist.NewService(waitlist.NewPgRepository(pgPool), accountSvc, lg.Named("waitlist"))

	provider, err := newProvider(cfg, lg)
	if err != nil {
		return err
	}
	paymentSvc := payment.NewService(payment.NewPgRepository(pgPool), provider, apptSvc, notifier, cfg.PublicBaseURL, lg.Named("payment"), m)

	health := api.NewHealthHandler(cfg.Env, version,
		api.Check{Name: "postgres", Critical: true, Ping: pgPool.Ping},
		api.Check{Name: "redis", Critical: true, Ping: redisclient.Pinger(rdb)},
		api.Check{Name: "rabbitmq", Ping: func(context.Context) error {
			if amqpConn.IsClosed() {
				return amqp.ErrClosed
			}
			return nil
		}},
	)

	router := api.NewRouter(api.RouterConfig{
		Accounts:       accountSvc,
		Appointments:   apptSvc,
		Waitlist:       waitlistSvc,
		Payments:       paymentSvc,
		Tokens:         tokens,
		Health:         health,
		Metrics:        m,
		Gatherer:       reg,
		Log:            lg.Named("http"),
		Location:       cfg.Timezone,
		RateLimitRPS:   cfg.RateLimitRPS,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
		lg.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	lg.Info("api-server stopped cleanly")
	return nil
}

func rulesFrom(cfg config.Config) appointment.Rules {
	return appointment.Rules{
		BookingWindow:      cfg.BookingWindow,
		CancellationCutoff: cfg.CancellationCutoff,
		DailyCapacity:      cfg.DailyCapacity,
		Location:           cfg.Timezone,
	}
}

// queryLogLevel keeps pgx query traces out of the log unless debugging.
func queryLogLevel(level string) tracelog.LogLevel {
	if level == "debug" {
		return tracelog.LogLevelDebug
	}
	return tracelog.LogLevelWarn
}

func newProvider(cfg config.Config, lg *zap.Logger) (payment.Provider, error) {
	if cfg.PayPalClientID == "" || cfg.PayPalClientSecret == "" {
		lg.Warn("paypal credentials not set, payments are disabled")
		return payment.DisabledProvider{}, nil
	}
	pp, err := payment.NewPayPal(cfg.PayPalClientID, cfg.PayPalClientSecret, cfg.PayPalMode)
	if err != nil {
		return nil, fmt.Errorf("paypal client: %w", err)
	}
	return pp, nil
}
