package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/medbook/booking-api/config"
	"github.com/medbook/booking-api/internal/app"
	"github.com/medbook/booking-api/internal/email"
	adminHandler "github.com/medbook/booking-api/internal/handler/admin"
	appointmentHandler "github.com/medbook/booking-api/internal/handler/appointment"
	doctorHandler "github.com/medbook/booking-api/internal/handler/doctor"
	"github.com/medbook/booking-api/internal/handler/health"
	reviewHandler "github.com/medbook/booking-api/internal/handler/review"
	"github.com/medbook/booking-api/internal/middleware"
	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/realtime"
	"github.com/medbook/booking-api/internal/repository/postgres"
	"github.com/medbook/booking-api/internal/router"
	adminService "github.com/medbook/booking-api/internal/service/admin"
	appointmentService "github.com/medbook/booking-api/internal/service/appointment"
	"github.com/medbook/booking-api/internal/service/audit"
	"github.com/medbook/booking-api/internal/service/availability"
	doctorService "github.com/medbook/booking-api/internal/service/doctor"
	eventService "github.com/medbook/booking-api/internal/service/event"
	"github.com/medbook/booking-api/internal/service/notification"
	reviewService "github.com/medbook/booking-api/internal/service/review"
	scheduleService "github.com/medbook/booking-api/internal/service/schedule"
	slotService "github.com/medbook/booking-api/internal/service/slot"
	"github.com/medbook/booking-api/pkg/auth"
	"github.com/medbook/booking-api/pkg/logger"
	"github.com/medbook/booking-api/pkg/messaging"
	"github.com/medbook/booking-api/pkg/metrics"
	"github.com/medbook/booking-api/pkg/security"
	"github.com/medbook/booking-api/pkg/worker"
)

var configDir string

func main() {
	rootCmd := &cobra.Command{
		Use:   "booking-api",
		Short: "Medical appointment booking API",
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "directory containing config.yml")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configDir != "" {
		return config.LoadConfig(configDir)
	}
	return config.LoadConfig()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			db, err := postgres.NewDB(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
			log.Info().Msg("schema applied")
			return nil
		},
	}
}

// tokenCmd issues a signed token, for operators and local development. Sign
// in itself is handled by the identity provider in front of the API.
func tokenCmd() *cobra.Command {
	var (
		subject string
		role    string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			id, err := uuid.Parse(subject)
			if err != nil {
				return fmt.Errorf("invalid --subject: %w", err)
			}
			r := model.Role(role)
			if !r.Valid() {
				return fmt.Errorf("invalid --role %q", role)
			}
			token, err := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL).
				Issue(model.Principal{SubjectID: id, Role: r})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "user id")
	cmd.Flags().StringVar(&role, "role", string(model.RolePatient), "PATIENT, DOCTOR or ADMIN")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func runServer(cfg *config.Config) error {
	zl := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if err := middleware.RegisterValidators(); err != nil {
		return err
	}

	loc, err := cfg.Clinic.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auditLogger, err := audit.NewLogger(cfg.Audit.Path)
	if err != nil {
		return fmt.Errorf("failed to build audit logger: %w", err)
	}
	auditor := audit.NewService(auditLogger)
	defer func() { _ = auditor.Sync() }()

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
	if store.InMemory() {
		log.Warn().Msg("using the in-memory store; data is lost on restart")
	}

	broker, err := app.OpenBroker(ctx, cfg.Redis, zl)
	if err != nil {
		return err
	}
	defer broker.Close()

	// Services
	publisher := eventService.NewEventService(store.Outbox)
	avail := availability.NewService(store.Availability)
	doctors := doctorService.NewService(store.Doctors, store.Users, cfg.Cache.DoctorsTTL, m)
	appointments := appointmentService.NewService(store.Appointments, store.Doctors, avail, doctors, auditor, m, loc)
	slots := slotService.NewService(store.Doctors, store.Appointments, avail, doctors, loc, m)
	schedule := scheduleService.NewService(store.Availability, doctors, publisher, auditor, m, loc)
	reviews := reviewService.NewService(store.Reviews, store.Users, store.Doctors, store.Appointments, doctors, auditor)
	admins := adminService.NewService(store.Users, security.NewBcryptHasher(bcrypt.DefaultCost), doctors, auditor,
		model.Settings{AuthPersistence: cfg.Auth.Persistence})

	tokens := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	hub := realtime.NewHub()

	var pinger health.Pinger
	if store.DB != nil {
		pinger = store.DB
	}

	r := router.NewRouter(
		middleware.NewAuthMiddleware(tokens),
		health.NewHandler(pinger),
		realtime.NewHandler(hub, cfg.Security.AllowedOrigins),
		router.RouterConfig{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			RequestTimeout:   cfg.Server.RequestTimeout,
			MaxBodyBytes:     cfg.Server.MaxBodyBytes,
			CORSConfig:       middleware.DefaultCORSConfig(cfg.Security.AllowedOrigins),
			MetricsPrefix:    cfg.Metrics.Namespace + "_http",
			Registry:         registry,
		},
		doctorHandler.NewHandler(doctors, schedule, slots),
		appointmentHandler.NewHandler(appointments),
		reviewHandler.NewHandler(reviews),
		adminHandler.NewHandler(admins),
	)
	r.Setup()

	// Live pushes always come from the API process, which owns the sockets.
	sinks := []notification.Sink{realtime.NewSink(hub)}

	// Without Redis no other process can see the outbox, so the API relays
	// and mails by itself.
	if !cfg.Redis.Enabled {
		sinks = append(sinks, email.NewCancellationSink(store.Users, newMailer(cfg.SMTP), loc))
		if err := startOutboxWorkers(ctx, cfg, store, broker, zl, m); err != nil {
			return err
		}
	}

	notifier := notification.NewService(broker, m, zl, sinks...)
	go func() {
		if err := notifier.Run(ctx); err != nil {
			log.Error().Err(err).Msg("notification service stopped")
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exited properly")
	return nil
}

func startOutboxWorkers(ctx context.Context, cfg *config.Config, store *app.Store, broker messaging.Broker, zl zerolog.Logger, m *metrics.Metrics) error {
	processor, err := worker.NewOutboxProcessor(store.Outbox, broker, cfg.Outbox.ToWorkerConfig(), zl, m)
	if err != nil {
		return err
	}
	go processor.Start(ctx)

	cleanup := worker.NewOutboxCleanupWorker(store.Outbox, cfg.Outbox.Retention, time.Hour, zl)
	go cleanup.Start(ctx)
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
