package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/pkg/errors"
)

// Postgres error codes the repositories translate into conflicts.
const (
	codeUniqueViolation      = "23505"
	codeExclusionViolation   = "23P01"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

// GetDB returns the database instance
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return r.withTxOptions(ctx, nil, fn)
}

// WithSerializableTx runs fn at SERIALIZABLE isolation.
func (r *BaseRepository) WithSerializableTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return r.withTxOptions(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, fn)
}

func (r *BaseRepository) withTxOptions(ctx context.Context, opts *sql.TxOptions, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, opts)
	if err != nil {
		return errors.Internal(fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapError(err, "failed to commit transaction")
	}
	return nil
}

// mapError turns driver errors into AppErrors. Errors that already are
// AppErrors pass through untouched.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}

	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeExclusionViolation, codeSerializationFailure, codeDeadlockDetected:
			return errors.NewConflict("slot already taken", err)
		case codeUniqueViolation:
			return errors.NewConflict("resource already exists", err)
		}
	}
	return errors.Internal(fmt.Errorf("%s: %w", msg, err))
}

// notFound maps sql.ErrNoRows to a NotFound AppError.
func notFound(err error, resource string) error {
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound(resource, nil)
	}
	return mapError(err, "failed to get "+resource)
}

func statusStrings(statuses []model.AppointmentStatus) pq.StringArray {
	out := make(pq.StringArray, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
