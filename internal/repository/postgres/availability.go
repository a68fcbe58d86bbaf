package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/repository"
)

type availabilityRepository struct {
	BaseRepository
}

func NewAvailabilityRepository(db *sqlx.DB) repository.AvailabilityRepository {
	return &availabilityRepository{NewBaseRepository(db)}
}

func (r *availabilityRepository) CreateRule(ctx context.Context, rule *model.AvailabilityRule) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO availability_rules (
			id, doctor_id, kind, date_from, date_to, days_of_week,
			rule_date, time_ranges, slot_minutes, created_at, updated_at
		) VALUES (
			:id, :doctor_id, :kind, :date_from, :date_to, :days_of_week,
			:rule_date, :time_ranges, :slot_minutes, :created_at, :updated_at
		)`, rule)
	return mapError(err, "failed to create availability rule")
}

func (r *availabilityRepository) ListRules(ctx context.Context, doctorID uuid.UUID) ([]*model.AvailabilityRule, error) {
	rules := []*model.AvailabilityRule{}
	err := r.db.SelectContext(ctx, &rules, `
		SELECT id, doctor_id, kind, date_from, date_to, days_of_week,
			rule_date, time_ranges, slot_minutes, created_at, updated_at
		FROM availability_rules
		WHERE doctor_id = $1
		ORDER BY created_at ASC`, doctorID)
	if err != nil {
		return nil, mapError(err, "failed to list availability rules")
	}
	return rules, nil
}

func (r *availabilityRepository) ListAbsences(ctx context.Context, doctorID uuid.UUID) ([]*model.Absence, error) {
	absences := []*model.Absence{}
	err := r.db.SelectContext(ctx, &absences, `
		SELECT id, doctor_id, date_from, date_to, reason, created_at, updated_at
		FROM absences
		WHERE doctor_id = $1
		ORDER BY date_from ASC`, doctorID)
	if err != nil {
		return nil, mapError(err, "failed to list absences")
	}
	return absences, nil
}

func (r *availabilityRepository) CreateAbsence(ctx context.Context, absence *model.Absence, window model.TimeWindow, cancelReason string) ([]*model.Appointment, error) {
	cancelled := []*model.Appointment{}
	err := r.WithSerializableTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO absences (id, doctor_id, date_from, date_to, reason, created_at, updated_at)
			VALUES (:id, :doctor_id, :date_from, :date_to, :reason, :created_at, :updated_at)`, absence)
		if err != nil {
			return mapError(err, "failed to create absence")
		}

		err = tx.SelectContext(ctx, &cancelled, `
			UPDATE appointments
			SET status = $1, cancel_reason = $2, updated_at = $3
			WHERE doctor_id = $4
			AND status = ANY($5)
			AND start_at >= $6
			AND start_at < $7
			RETURNING `+appointmentColumns,
			model.AppointmentStatusCancelled, cancelReason, absence.CreatedAt,
			absence.DoctorID, statusStrings(model.CancellableStatuses), window.From, window.To,
		)
		return mapError(err, "failed to cancel appointments")
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}
