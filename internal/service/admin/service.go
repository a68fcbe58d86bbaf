// Package admin holds the back-office operations: doctor onboarding, the user
// list with review bans and deployment settings.
package admin

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/repository"
	"github.com/medbook/booking-api/internal/service/audit"
	"github.com/medbook/booking-api/pkg/errors"
	"github.com/medbook/booking-api/pkg/security"
)

// DirectoryCache is invalidated whenever a doctor joins.
type DirectoryCache interface {
	Invalidate()
}

type Service struct {
	users    repository.UserRepository
	hasher   security.PasswordHasher
	cache    DirectoryCache
	auditor  *audit.Service
	settings model.Settings
	now      func() time.Time
}

func NewService(
	users repository.UserRepository,
	hasher security.PasswordHasher,
	cache DirectoryCache,
	auditor *audit.Service,
	settings model.Settings,
) *Service {
	return &Service{
		users:    users,
		hasher:   hasher,
		cache:    cache,
		auditor:  auditor,
		settings: settings,
		now:      time.Now,
	}
}

func (s *Service) Settings(p model.Principal) (model.Settings, error) {
	if !p.Is(model.RoleAdmin) {
		return model.Settings{}, errors.Forbidden("admin role required")
	}
	return s.settings, nil
}

// CreateDoctor registers a doctor profile and its DOCTOR login together.
func (s *Service) CreateDoctor(ctx context.Context, p model.Principal, req *model.CreateDoctorRequest) (*model.DoctorAccount, error) {
	if !p.Is(model.RoleAdmin) {
		return nil, errors.Forbidden("admin role required")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, errors.Validation("invalid email %q", req.Email)
	}
	fullName := strings.TrimSpace(req.FullName)
	specialization := strings.TrimSpace(req.Specialization)
	if len(fullName) < 2 {
		return nil, errors.Validation("full_name must have at least 2 characters")
	}
	if len(specialization) < 2 {
		return nil, errors.Validation("specialization must have at least 2 characters")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if stderrors.Is(err, security.ErrPasswordTooShort) || stderrors.Is(err, security.ErrPasswordTooLong) {
			return nil, errors.Validation("password must have between %d and %d characters", security.MinPasswordLen, security.MaxPasswordLen)
		}
		return nil, errors.Internal(err)
	}

	now := s.now()
	doctor := &model.Doctor{Base: model.NewBase(now), FullName: fullName, Specialization: specialization}
	doctorID := doctor.ID
	user := &model.User{
		Base:         model.NewBase(now),
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleDoctor,
		DisplayName:  fullName,
		DoctorID:     &doctorID,
	}
	if err := s.users.CreateDoctorAccount(ctx, doctor, user); err != nil {
		return nil, err
	}
	s.cache.Invalidate()

	s.auditor.Log(ctx, p, "create_doctor", "doctor", doctor.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"user_id": user.ID.String(), "email": email},
	})
	return &model.DoctorAccount{Doctor: doctor, User: user}, nil
}

// ListUsers returns every patient and doctor, newest first.
func (s *Service) ListUsers(ctx context.Context, p model.Principal) ([]*model.User, error) {
	if !p.Is(model.RoleAdmin) {
		return nil, errors.Forbidden("admin role required")
	}
	users, err := s.users.List(ctx, &model.UserFilters{ExcludeRole: model.RoleAdmin})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *Service) SetReviewBan(ctx context.Context, p model.Principal, userID uuid.UUID, banned bool) (*model.User, error) {
	if !p.Is(model.RoleAdmin) {
		return nil, errors.Forbidden("admin role required")
	}
	user, err := s.users.SetReviewBan(ctx, userID, banned)
	if err != nil {
		return nil, err
	}
	s.auditor.Log(ctx, p, "set_review_ban", "user", userID, &audit.LogOptions{
		Metadata: map[string]interface{}{"banned": banned},
	})
	return user, nil
}
