package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/pkg/timegrid"
)

// All repository interfaces in one file. Lookups of a missing row return an
// errors.ErrNotFound AppError; lost races and uniqueness violations return
// errors.ErrConflict.
type (
	DoctorRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		List(ctx context.Context, specialization string) ([]*model.Doctor, error)
	}

	UserRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		List(ctx context.Context, filters *model.UserFilters) ([]*model.User, error)
		SetReviewBan(ctx context.Context, id uuid.UUID, banned bool) (*model.User, error)
		// CreateDoctorAccount stores the profile and its DOCTOR login together.
		CreateDoctorAccount(ctx context.Context, doctor *model.Doctor, user *model.User) error
	}

	AvailabilityRepository interface {
		CreateRule(ctx context.Context, rule *model.AvailabilityRule) error
		ListRules(ctx context.Context, doctorID uuid.UUID) ([]*model.AvailabilityRule, error)
		ListAbsences(ctx context.Context, doctorID uuid.UUID) ([]*model.Absence, error)
		// CreateAbsence stores the absence and, in the same transaction, cancels
		// every RESERVED or CONFIRMED appointment of the doctor starting inside
		// window. It returns the cancelled appointments.
		CreateAbsence(ctx context.Context, absence *model.Absence, window model.TimeWindow, cancelReason string) ([]*model.Appointment, error)
	}

	AppointmentRepository interface {
		// Reserve inserts apt unless the doctor is absent on day or an active
		// appointment overlaps it. Check and insert are atomic.
		Reserve(ctx context.Context, apt *model.Appointment, day timegrid.Date) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		ListByDoctor(ctx context.Context, doctorID uuid.UUID, window model.TimeWindow, statuses []model.AppointmentStatus) ([]*model.Appointment, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error)
		// TransitionStatus moves the appointment to `to` only while its status is
		// one of `from`.
		TransitionStatus(ctx context.Context, id uuid.UUID, from []model.AppointmentStatus, to model.AppointmentStatus, cancelReason *string) (*model.Appointment, error)
		HasCompletedVisit(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
	}

	ReviewRepository interface {
		Create(ctx context.Context, review *model.Review) error
		Get(ctx context.Context, id uuid.UUID) (*model.Review, error)
		SetReply(ctx context.Context, id uuid.UUID, reply string, at time.Time) (*model.Review, error)
		ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.ReviewView, error)
		ListAll(ctx context.Context) ([]*model.ReviewView, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending marks up to limit pending events as PROCESSING and
		// returns them. A PROCESSING row whose claim is older than lease is
		// claimed again, so a relay that died mid-batch does not strand it.
		ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
