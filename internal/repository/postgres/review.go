package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/repository"
	"github.com/medbook/booking-api/pkg/errors"
)

const reviewColumns = `r.id, r.doctor_id, r.author_id, r.rating, r.comment, r.doctor_reply, r.doctor_reply_at, r.created_at, r.updated_at`

type reviewRepository struct {
	BaseRepository
}

func NewReviewRepository(db *sqlx.DB) repository.ReviewRepository {
	return &reviewRepository{NewBaseRepository(db)}
}

func (r *reviewRepository) Create(ctx context.Context, review *model.Review) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO reviews (id, doctor_id, author_id, rating, comment, created_at, updated_at)
		VALUES (:id, :doctor_id, :author_id, :rating, :comment, :created_at, :updated_at)`, review)
	if err != nil {
		err = mapError(err, "failed to create review")
		if errors.Is(err, errors.ErrConflict) {
			return errors.Conflict("review already exists for this doctor")
		}
		return err
	}
	return nil
}

func (r *reviewRepository) Get(ctx context.Context, id uuid.UUID) (*model.Review, error) {
	var review model.Review
	if err := r.db.GetContext(ctx, &review, `SELECT `+reviewColumns+` FROM reviews r WHERE r.id = $1`, id); err != nil {
		return nil, notFound(err, "review")
	}
	return &review, nil
}

func (r *reviewRepository) SetReply(ctx context.Context, id uuid.UUID, reply string, at time.Time) (*model.Review, error) {
	var review model.Review
	err := r.db.GetContext(ctx, &review, `
		UPDATE reviews r SET doctor_reply = $1, doctor_reply_at = $2, updated_at = $2
		WHERE r.id = $3 AND r.doctor_reply IS NULL
		RETURNING `+reviewColumns, reply, at, id)
	if err == nil {
		return &review, nil
	}
	if err := notFound(err, "review"); !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, errors.Conflict("review already has a reply")
}

func (r *reviewRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.ReviewView, error) {
	reviews := []*model.ReviewView{}
	err := r.db.SelectContext(ctx, &reviews, `
		SELECT `+reviewColumns+`, COALESCE(u.display_name, '') AS author_name
		FROM reviews r
		LEFT JOIN users u ON u.id = r.author_id
		WHERE r.doctor_id = $1
		ORDER BY r.created_at DESC`, doctorID)
	if err != nil {
		return nil, mapError(err, "failed to list reviews")
	}
	return reviews, nil
}

func (r *reviewRepository) ListAll(ctx context.Context) ([]*model.ReviewView, error) {
	reviews := []*model.ReviewView{}
	err := r.db.SelectContext(ctx, &reviews, `
		SELECT `+reviewColumns+`, COALESCE(u.display_name, '') AS author_name
		FROM reviews r
		LEFT JOIN users u ON u.id = r.author_id
		ORDER BY r.created_at DESC`)
	if err != nil {
		return nil, mapError(err, "failed to list reviews")
	}
	return reviews, nil
}

func (r *reviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "failed to delete review")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return mapError(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.NotFound("review", nil)
	}
	return nil
}
