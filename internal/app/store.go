// Package app assembles the storage and messaging backends shared by the
// api and worker binaries.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/medbook/booking-api/config"
	"github.com/medbook/booking-api/internal/repository"
	"github.com/medbook/booking-api/internal/repository/memory"
	"github.com/medbook/booking-api/internal/repository/postgres"
	"github.com/medbook/booking-api/pkg/messaging"
	membroker "github.com/medbook/booking-api/pkg/messaging/memory"
	"github.com/medbook/booking-api/pkg/messaging/redis"
)

// Store bundles the repositories of one backend.
type Store struct {
	Doctors      repository.DoctorRepository
	Users        repository.UserRepository
	Availability repository.AvailabilityRepository
	Appointments repository.AppointmentRepository
	Reviews      repository.ReviewRepository
	Outbox       repository.OutboxRepository

	// DB is nil for the in-memory backend.
	DB *sqlx.DB
}

// InMemory reports whether the store lives in this process only.
func (s *Store) InMemory() bool {
	return s.DB == nil
}

func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// OpenStore connects the backend named by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "memory":
		m := memory.NewStore()
		return &Store{
			Doctors:      m.Doctors(),
			Users:        m.Users(),
			Availability: m.Availability(),
			Appointments: m.Appointments(),
			Reviews:      m.Reviews(),
			Outbox:       m.Outbox(),
		}, nil
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &Store{
			Doctors:      postgres.NewDoctorRepository(db),
			Users:        postgres.NewUserRepository(db),
			Availability: postgres.NewAvailabilityRepository(db),
			Appointments: postgres.NewAppointmentRepository(db),
			Reviews:      postgres.NewReviewRepository(db),
			Outbox:       postgres.NewOutboxRepository(db),
			DB:           db,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// OpenBroker returns the Redis broker when enabled and an in-process one
// otherwise.
func OpenBroker(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (messaging.Broker, error) {
	if !cfg.Enabled {
		return membroker.NewBroker(), nil
	}
	return redis.NewRedisBroker(ctx, cfg.ToBrokerConfig(), logger)
}
