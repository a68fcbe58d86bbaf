package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/pkg/errors"
)

type doctorRepository struct {
	s *Store
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.doctors[id]
	if !ok {
		return nil, errors.NotFound("doctor", nil)
	}
	cp := *d
	return &cp, nil
}

func (r *doctorRepository) List(ctx context.Context, specialization string) ([]*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.Doctor{}
	for _, d := range r.s.doctors {
		if specialization != "" && !strings.EqualFold(d.Specialization, specialization) {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

type userRepository struct {
	s *Store
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, errors.NotFound("user", nil)
	}
	return cloneUser(u), nil
}

func (r *userRepository) List(ctx context.Context, filters *model.UserFilters) ([]*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.User{}
	for _, u := range r.s.users {
		if filters != nil && filters.ExcludeRole != "" && u.Role == filters.ExcludeRole {
			continue
		}
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *userRepository) SetReviewBan(ctx context.Context, id uuid.UUID, banned bool) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, errors.NotFound("user", nil)
	}
	u.IsBannedFromReviews = banned
	u.UpdatedAt = r.s.now()
	return cloneUser(u), nil
}

func (r *userRepository) CreateDoctorAccount(ctx context.Context, doctor *model.Doctor, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return errors.Conflict("email %s is already registered", user.Email)
		}
	}
	cp := *doctor
	r.s.doctors[doctor.ID] = &cp
	r.s.users[user.ID] = cloneUser(user)
	return nil
}
