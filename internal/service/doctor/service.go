package doctor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/repository"
	"github.com/medbook/booking-api/pkg/errors"
	"github.com/medbook/booking-api/pkg/metrics"
)

const listKeyPrefix = "doctors:"

type Service struct {
	doctors repository.DoctorRepository
	users   repository.UserRepository
	cache   *gocache.Cache
	metrics *metrics.Metrics
}

func NewService(doctors repository.DoctorRepository, users repository.UserRepository, ttl time.Duration, m *metrics.Metrics) *Service {
	return &Service{
		doctors: doctors,
		users:   users,
		cache:   gocache.New(ttl, 2*ttl),
		metrics: m,
	}
}

// List returns the doctor directory, optionally narrowed to one
// specialization. Results are cached for the configured TTL.
func (s *Service) List(ctx context.Context, specialization string) ([]*model.Doctor, error) {
	key := listKeyPrefix + strings.ToLower(strings.TrimSpace(specialization))
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.DoctorCache.WithLabelValues("hit").Inc()
		return cached.([]*model.Doctor), nil
	}
	s.metrics.DoctorCache.WithLabelValues("miss").Inc()

	doctors, err := s.doctors.List(ctx, strings.TrimSpace(specialization))
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	s.cache.SetDefault(key, doctors)
	return doctors, nil
}

// Invalidate drops every cached listing.
func (s *Service) Invalidate() {
	s.cache.Flush()
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	return s.doctors.Get(ctx, id)
}

// OwnDoctorID returns the doctor profile linked to a DOCTOR principal.
func (s *Service) OwnDoctorID(ctx context.Context, p model.Principal) (uuid.UUID, error) {
	if !p.Is(model.RoleDoctor) {
		return uuid.Nil, errors.Forbidden("doctor role required")
	}
	user, err := s.users.Get(ctx, p.SubjectID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return uuid.Nil, errors.Forbidden("doctor profile missing")
		}
		return uuid.Nil, err
	}
	if user.DoctorID == nil {
		return uuid.Nil, errors.Forbidden("doctor profile missing")
	}
	return *user.DoctorID, nil
}

// OwnsDoctor reports whether p is the doctor behind doctorID.
func (s *Service) OwnsDoctor(ctx context.Context, p model.Principal, doctorID uuid.UUID) (bool, error) {
	if !p.Is(model.RoleDoctor) {
		return false, nil
	}
	own, err := s.OwnDoctorID(ctx, p)
	if err != nil {
		if errors.Is(err, errors.ErrForbidden) {
			return false, nil
		}
		return false, err
	}
	return own == doctorID, nil
}

// Me returns the profile of a DOCTOR principal.
func (s *Service) Me(ctx context.Context, p model.Principal) (*model.Doctor, error) {
	id, err := s.OwnDoctorID(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.doctors.Get(ctx, id)
}
