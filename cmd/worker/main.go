package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/medbook/booking-api/config"
	"github.com/medbook/booking-api/internal/app"
	"github.com/medbook/booking-api/internal/email"
	"github.com/medbook/booking-api/internal/service/notification"
	"github.com/medbook/booking-api/pkg/logger"
	"github.com/medbook/booking-api/pkg/metrics"
	"github.com/medbook/booking-api/pkg/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("worker failed")
	}
}

// run relays the outbox to Redis and mails cancellation notices. It needs the
// shared Postgres store and Redis; the in-memory setup relays inside the API.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	zl := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}).
		With().Str("worker_id", generateWorkerID()).Logger()

	if !cfg.Redis.Enabled || !strings.EqualFold(cfg.Database.Driver, "postgres") {
		return errors.New("the worker requires database.driver=postgres and redis.enabled=true")
	}
	loc, err := cfg.Clinic.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(cfg.Metrics.Namespace, registry)

	store, err := app.OpenStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	broker, err := app.OpenBroker(ctx, cfg.Redis, zl)
	if err != nil {
		return err
	}
	defer broker.Close()

	processor, err := worker.NewOutboxProcessor(store.Outbox, broker, cfg.Outbox.ToWorkerConfig(), zl, m)
	if err != nil {
		return err
	}
	cleanup := worker.NewOutboxCleanupWorker(store.Outbox, cfg.Outbox.Retention, time.Hour, zl)
	notifier := notification.NewService(broker, m, zl,
		email.NewCancellationSink(store.Users, newMailer(cfg.SMTP), loc))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := store.DB.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.HealthPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := notifier.Run(ctx); err != nil {
			zl.Error().Err(err).Msg("notification service stopped")
		}
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error().Err(err).Msg("health server failed")
		}
	}()

	zl.Info().Int("health_port", cfg.Metrics.HealthPort).Msg("worker started")
	<-ctx.Done()
	zl.Info().Msg("shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	wg.Wait()
	return nil
}

func newMailer(cfg config.SMTPConfig) email.Service {
	if !cfg.Enabled {
		return email.NewLogService()
	}
	return email.NewSMTPService(email.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	})
}

func generateWorkerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d", hostname, time.Now().UnixNano())
}
