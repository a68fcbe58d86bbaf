package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/repository"
)

const userColumns = `id, email, password_hash, role, display_name, doctor_id, is_banned_from_reviews, created_at, updated_at`

type doctorRepository struct {
	BaseRepository
}

func NewDoctorRepository(db *sqlx.DB) repository.DoctorRepository {
	return &doctorRepository{NewBaseRepository(db)}
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	var d model.Doctor
	err := r.db.GetContext(ctx, &d, `
		SELECT id, full_name, specialization, created_at, updated_at
		FROM doctors WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "doctor")
	}
	return &d, nil
}

func (r *doctorRepository) List(ctx context.Context, specialization string) ([]*model.Doctor, error) {
	doctors := []*model.Doctor{}
	query := `SELECT id, full_name, specialization, created_at, updated_at FROM doctors`
	args := []interface{}{}
	if specialization != "" {
		query += ` WHERE lower(specialization) = lower($1)`
		args = append(args, specialization)
	}
	query += ` ORDER BY full_name ASC`

	if err := r.db.SelectContext(ctx, &doctors, query, args...); err != nil {
		return nil, mapError(err, "failed to list doctors")
	}
	return doctors, nil
}

type userRepository struct {
	BaseRepository
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{NewBaseRepository(db)}
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var u model.User
	if err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (r *userRepository) List(ctx context.Context, filters *model.UserFilters) ([]*model.User, error) {
	users := []*model.User{}
	query := `SELECT ` + userColumns + ` FROM users`
	args := []interface{}{}
	if filters != nil && filters.ExcludeRole != "" {
		query += ` WHERE role <> $1`
		args = append(args, filters.ExcludeRole)
	}
	query += ` ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, mapError(err, "failed to list users")
	}
	return users, nil
}

func (r *userRepository) SetReviewBan(ctx context.Context, id uuid.UUID, banned bool) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, `
		UPDATE users SET is_banned_from_reviews = $1, updated_at = $2
		WHERE id = $3
		RETURNING `+userColumns, banned, time.Now(), id)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (r *userRepository) CreateDoctorAccount(ctx context.Context, doctor *model.Doctor, user *model.User) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO doctors (id, full_name, specialization, created_at, updated_at)
			VALUES (:id, :full_name, :specialization, :created_at, :updated_at)`, doctor)
		if err != nil {
			return mapError(err, "failed to create doctor")
		}

		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO users (`+userColumns+`)
			VALUES (:id, :email, :password_hash, :role, :display_name, :doctor_id,
				:is_banned_from_reviews, :created_at, :updated_at)`, user)
		return mapError(err, "failed to create doctor user")
	})
}
