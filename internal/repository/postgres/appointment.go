package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/repository"
	"github.com/medbook/booking-api/pkg/errors"
	"github.com/medbook/booking-api/pkg/timegrid"
)

const appointmentColumns = `
	id, doctor_id, patient_id, start_at, end_at, status, visit_type,
	patient_snapshot, notes_for_doctor, cancel_reason, created_at, updated_at`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{NewBaseRepository(db)}
}

func (r *appointmentRepository) Reserve(ctx context.Context, apt *model.Appointment, day timegrid.Date) error {
	return r.WithSerializableTx(ctx, func(tx *sqlx.Tx) error {
		var absent bool
		err := tx.GetContext(ctx, &absent, `
			SELECT EXISTS (
				SELECT 1 FROM absences
				WHERE doctor_id = $1 AND date_from <= $2 AND date_to >= $2
			)`, apt.DoctorID, day)
		if err != nil {
			return mapError(err, "failed to check absences")
		}
		if absent {
			return errors.Conflict("doctor is absent on %s", day)
		}

		var taken bool
		err = tx.GetContext(ctx, &taken, `
			SELECT EXISTS (
				SELECT 1 FROM appointments
				WHERE doctor_id = $1
				AND status = ANY($2)
				AND start_at < $3
				AND end_at > $4
			)`, apt.DoctorID, statusStrings(model.ActiveStatuses), apt.EndAt, apt.StartAt)
		if err != nil {
			return mapError(err, "failed to check conflicts")
		}
		if taken {
			return errors.Conflict("slot already taken")
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO appointments (`+appointmentColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			apt.ID, apt.DoctorID, apt.PatientID, apt.StartAt, apt.EndAt, apt.Status, apt.VisitType,
			apt.Patient, apt.NotesForDoctor, apt.CancelReason, apt.CreatedAt, apt.UpdatedAt,
		)
		return mapError(err, "failed to create appointment")
	})
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var apt model.Appointment
	err := r.db.GetContext(ctx, &apt, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "appointment")
	}
	return &apt, nil
}

func (r *appointmentRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, window model.TimeWindow, statuses []model.AppointmentStatus) ([]*model.Appointment, error) {
	appointments := []*model.Appointment{}
	err := r.db.SelectContext(ctx, &appointments, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		AND status = ANY($2)
		AND start_at < $3
		AND end_at > $4
		ORDER BY start_at ASC`,
		doctorID, statusStrings(statuses), window.To, window.From,
	)
	if err != nil {
		return nil, mapError(err, "failed to list doctor appointments")
	}
	return appointments, nil
}

func (r *appointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	appointments := []*model.Appointment{}
	err := r.db.SelectContext(ctx, &appointments, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY start_at DESC`, patientID)
	if err != nil {
		return nil, mapError(err, "failed to list patient appointments")
	}
	return appointments, nil
}

func (r *appointmentRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from []model.AppointmentStatus, to model.AppointmentStatus, cancelReason *string) (*model.Appointment, error) {
	var apt model.Appointment
	err := r.db.GetContext(ctx, &apt, `
		UPDATE appointments
		SET status = $1,
			cancel_reason = COALESCE($2, cancel_reason),
			updated_at = $3
		WHERE id = $4 AND status = ANY($5)
		RETURNING `+appointmentColumns,
		to, cancelReason, time.Now(), id, statusStrings(from),
	)
	if err == nil {
		return &apt, nil
	}

	if err := notFound(err, "appointment"); !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	// No row matched: either the appointment is gone or its status moved on.
	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, errors.Conflict("appointment is already %s", current.Status)
}

func (r *appointmentRepository) HasCompletedVisit(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND patient_id = $2 AND status = $3
		)`, doctorID, patientID, model.AppointmentStatusCompleted)
	if err != nil {
		return false, mapError(err, "failed to check completed visits")
	}
	return ok, nil
}
