package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/pkg/errors"
)

type reviewRepository struct {
	s *Store
}

func (r *reviewRepository) Create(ctx context.Context, review *model.Review) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.reviews {
		if existing.DoctorID == review.DoctorID && existing.AuthorID == review.AuthorID {
			return errors.Conflict("review already exists for this doctor")
		}
	}
	r.s.reviews[review.ID] = cloneReview(review)
	return nil
}

func (r *reviewRepository) Get(ctx context.Context, id uuid.UUID) (*model.Review, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rv, ok := r.s.reviews[id]
	if !ok {
		return nil, errors.NotFound("review", nil)
	}
	return cloneReview(rv), nil
}

func (r *reviewRepository) SetReply(ctx context.Context, id uuid.UUID, reply string, at time.Time) (*model.Review, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rv, ok := r.s.reviews[id]
	if !ok {
		return nil, errors.NotFound("review", nil)
	}
	if rv.DoctorReply != nil {
		return nil, errors.Conflict("review already has a reply")
	}
	rv.DoctorReply = &reply
	rv.DoctorReplyAt = &at
	rv.UpdatedAt = at
	return cloneReview(rv), nil
}

func (r *reviewRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.ReviewView, error) {
	return r.list(func(rv *model.Review) bool { return rv.DoctorID == doctorID }), nil
}

func (r *reviewRepository) ListAll(ctx context.Context) ([]*model.ReviewView, error) {
	return r.list(func(*model.Review) bool { return true }), nil
}

func (r *reviewRepository) list(keep func(*model.Review) bool) []*model.ReviewView {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.ReviewView{}
	for _, rv := range r.s.reviews {
		if !keep(rv) {
			continue
		}
		view := &model.ReviewView{Review: *cloneReview(rv)}
		if u, ok := r.s.users[rv.AuthorID]; ok {
			view.AuthorName = u.DisplayName
		}
		out = append(out, view)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *reviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.reviews[id]; !ok {
		return errors.NotFound("review", nil)
	}
	delete(r.s.reviews, id)
	return nil
}
