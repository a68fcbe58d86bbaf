package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/repository"
	"github.com/medbook/booking-api/internal/service/audit"
	"github.com/medbook/booking-api/pkg/errors"
)

const (
	MaxCommentLength = 2000
	MinReplyLength   = 2
	anonymous        = "Anonymous"
)

// DoctorOwnership resolves the doctor profile of a DOCTOR principal.
type DoctorOwnership interface {
	OwnDoctorID(ctx context.Context, p model.Principal) (uuid.UUID, error)
}

type Service struct {
	reviews      repository.ReviewRepository
	users        repository.UserRepository
	doctors      repository.DoctorRepository
	appointments repository.AppointmentRepository
	owners       DoctorOwnership
	auditor      *audit.Service
	now          func() time.Time
}

func NewService(
	reviews repository.ReviewRepository,
	users repository.UserRepository,
	doctors repository.DoctorRepository,
	appointments repository.AppointmentRepository,
	owners DoctorOwnership,
	auditor *audit.Service,
) *Service {
	return &Service{
		reviews:      reviews,
		users:        users,
		doctors:      doctors,
		appointments: appointments,
		owners:       owners,
		auditor:      auditor,
		now:          time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create stores a review by a patient who has completed at least one visit
// with the doctor. Each patient may review a doctor once.
func (s *Service) Create(ctx context.Context, p model.Principal, req *model.CreateReviewRequest) (*model.Review, error) {
	if !p.Is(model.RolePatient) {
		return nil, errors.Forbidden("only patients can write reviews")
	}
	author, err := s.users.Get(ctx, p.SubjectID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.Unauthorized(fmt.Errorf("unknown user %s", p.SubjectID))
		}
		return nil, err
	}
	if author.IsBannedFromReviews {
		return nil, errors.Forbidden("user is banned from writing reviews")
	}

	if req.DoctorID == uuid.Nil {
		return nil, errors.Validation("doctor_id is required")
	}
	if req.Rating < model.MinRating || req.Rating > model.MaxRating {
		return nil, errors.Validation("rating must be between %d and %d", model.MinRating, model.MaxRating)
	}
	var comment *string
	if req.Comment != nil {
		c := strings.TrimSpace(*req.Comment)
		if len(c) > MaxCommentLength {
			return nil, errors.Validation("comment must have at most %d characters", MaxCommentLength)
		}
		if c != "" {
			comment = &c
		}
	}

	if _, err := s.doctors.Get(ctx, req.DoctorID); err != nil {
		return nil, err
	}
	visited, err := s.appointments.HasCompletedVisit(ctx, req.DoctorID, p.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to check visits: %w", err)
	}
	if !visited {
		return nil, errors.Forbidden("a completed visit with this doctor is required")
	}

	review := &model.Review{
		Base:     model.NewBase(s.now()),
		DoctorID: req.DoctorID,
		AuthorID: p.SubjectID,
		Rating:   req.Rating,
		Comment:  comment,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, err
	}
	s.auditor.Log(ctx, p, "create", "review", review.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"doctor_id": review.DoctorID.String(), "rating": review.Rating},
	})
	return review, nil
}

// Reply attaches the doctor's single public answer to a review of them.
func (s *Service) Reply(ctx context.Context, p model.Principal, reviewID uuid.UUID, req *model.ReplyRequest) (*model.Review, error) {
	doctorID, err := s.owners.OwnDoctorID(ctx, p)
	if err != nil {
		return nil, err
	}
	reply := strings.TrimSpace(req.Reply)
	if len(reply) < MinReplyLength {
		return nil, errors.Validation("reply must have at least %d characters", MinReplyLength)
	}
	if len(reply) > MaxCommentLength {
		return nil, errors.Validation("reply must have at most %d characters", MaxCommentLength)
	}

	review, err := s.reviews.Get(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.DoctorID != doctorID {
		return nil, errors.Forbidden("review is about another doctor")
	}
	updated, err := s.reviews.SetReply(ctx, reviewID, reply, s.now())
	if err != nil {
		return nil, err
	}
	s.auditor.Log(ctx, p, "reply", "review", reviewID, nil)
	return updated, nil
}

// ListForDoctor is the public list of a doctor's reviews, newest first.
func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.ReviewView, error) {
	if _, err := s.doctors.Get(ctx, doctorID); err != nil {
		return nil, err
	}
	views, err := s.reviews.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return withAuthorFallback(views), nil
}

// ListAll is the moderation queue.
func (s *Service) ListAll(ctx context.Context, p model.Principal) ([]*model.ReviewView, error) {
	if !p.Is(model.RoleAdmin) {
		return nil, errors.Forbidden("admin role required")
	}
	views, err := s.reviews.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return withAuthorFallback(views), nil
}

func (s *Service) Delete(ctx context.Context, p model.Principal, reviewID uuid.UUID) error {
	if !p.Is(model.RoleAdmin) {
		return errors.Forbidden("admin role required")
	}
	if err := s.reviews.Delete(ctx, reviewID); err != nil {
		return err
	}
	s.auditor.Log(ctx, p, "delete", "review", reviewID, nil)
	return nil
}

func withAuthorFallback(views []*model.ReviewView) []*model.ReviewView {
	for _, v := range views {
		if v.AuthorName == "" {
			v.AuthorName = anonymous
		}
	}
	return views
}
