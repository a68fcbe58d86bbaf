package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/repository"
	"github.com/medbook/booking-api/internal/service/audit"
	"github.com/medbook/booking-api/internal/service/availability"
	"github.com/medbook/booking-api/pkg/errors"
	"github.com/medbook/booking-api/pkg/metrics"
	"github.com/medbook/booking-api/pkg/timegrid"
)

// Business rules for reservations
const (
	MinDurationSlots = 1
	MaxDurationSlots = 24
	MaxNotesLength   = 2000
	MinAge           = 0
	MaxAge           = 120
)

// DoctorOwnership resolves the doctor profile of a DOCTOR principal.
type DoctorOwnership interface {
	OwnDoctorID(ctx context.Context, p model.Principal) (uuid.UUID, error)
}

type Service struct {
	repo         repository.AppointmentRepository
	doctors      repository.DoctorRepository
	availability *availability.Service
	owners       DoctorOwnership
	auditor      *audit.Service
	metrics      *metrics.Metrics
	loc          *time.Location
	now          func() time.Time
}

func NewService(
	repo repository.AppointmentRepository,
	doctors repository.DoctorRepository,
	avail *availability.Service,
	owners DoctorOwnership,
	auditor *audit.Service,
	m *metrics.Metrics,
	loc *time.Location,
) *Service {
	return &Service{
		repo:         repo,
		doctors:      doctors,
		availability: avail,
		owners:       owners,
		auditor:      auditor,
		metrics:      m,
		loc:          loc,
		now:          time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Reserve books a visit for the calling patient. The request must start in
// the future, fit entirely inside one range of one availability rule, avoid
// absences and not overlap any active appointment of the doctor.
func (s *Service) Reserve(ctx context.Context, p model.Principal, req *model.ReserveRequest) (*model.Appointment, error) {
	apt, err := s.reserve(ctx, p, req)
	s.metrics.Reservations.WithLabelValues(outcome(err)).Inc()
	return apt, err
}

func (s *Service) reserve(ctx context.Context, p model.Principal, req *model.ReserveRequest) (*model.Appointment, error) {
	if !p.Is(model.RolePatient) {
		return nil, errors.Forbidden("only patients can reserve appointments")
	}
	if err := validateReserveRequest(req); err != nil {
		return nil, err
	}

	start, err := ParseStartAt(req.StartAt, s.loc)
	if err != nil {
		return nil, errors.NewBadRequest("invalid startAt", err)
	}
	now := s.now()
	if !start.After(now) {
		return nil, errors.Validation("startAt must be in the future")
	}
	duration := time.Duration(req.DurationSlots) * model.BaseSlot
	end := start.Add(duration)

	if _, err := s.doctors.Get(ctx, req.DoctorID); err != nil {
		return nil, err
	}

	res, err := s.availability.ResolverFor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}

	local := start.In(s.loc)
	day := timegrid.DateOf(local)
	startMin := timegrid.MinuteOfDay(local)
	endMin := startMin + int(duration/time.Minute)

	if res.IsAbsent(day) {
		return nil, errors.Conflict("doctor is absent on %s", day)
	}
	if !res.Fits(day, startMin, endMin) {
		return nil, errors.Conflict("requested time %s-%s on %s is outside the doctor's availability",
			timegrid.MinutesToTime(startMin), timegrid.MinutesToTime(endMin%timegrid.MinutesPerDay), day)
	}

	apt := &model.Appointment{
		Base:           model.NewBase(now),
		DoctorID:       req.DoctorID,
		PatientID:      p.SubjectID,
		StartAt:        start,
		EndAt:          end,
		Status:         model.AppointmentStatusReserved,
		VisitType:      strings.TrimSpace(req.VisitType),
		Patient:        normalizeSnapshot(req.Patient),
		NotesForDoctor: req.NotesForDoctor,
	}
	if err := s.repo.Reserve(ctx, apt, day); err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, p, "reserve", "appointment", apt.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{
			"doctor_id": apt.DoctorID.String(),
			"start_at":  apt.StartAt,
			"end_at":    apt.EndAt,
		},
	})
	return apt, nil
}

// ParseStartAt accepts RFC 3339 timestamps and local wall-clock forms
// (YYYY-MM-DDTHH:MM[:SS]) interpreted in loc.
func ParseStartAt(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func validateReserveRequest(req *model.ReserveRequest) error {
	if req.DoctorID == uuid.Nil {
		return errors.Validation("doctorId is required")
	}
	if req.DurationSlots < MinDurationSlots || req.DurationSlots > MaxDurationSlots {
		return errors.Validation("durationSlots must be between %d and %d", MinDurationSlots, MaxDurationSlots)
	}
	if len(strings.TrimSpace(req.VisitType)) < 2 {
		return errors.Validation("visitType must have at least 2 characters")
	}
	if req.NotesForDoctor != nil && len(*req.NotesForDoctor) > MaxNotesLength {
		return errors.Validation("notesForDoctor must have at most %d characters", MaxNotesLength)
	}
	return validateSnapshot(req.Patient)
}

func validateSnapshot(p model.PatientSnapshot) error {
	if len(strings.TrimSpace(p.FullName)) < 2 {
		return errors.Validation("patient fullName must have at least 2 characters")
	}
	switch p.Gender {
	case model.GenderMale, model.GenderFemale, model.GenderOther:
	default:
		return errors.Validation("patient gender must be one of M, F, OTHER")
	}
	if p.Age < MinAge || p.Age > MaxAge {
		return errors.Validation("patient age must be between %d and %d", MinAge, MaxAge)
	}
	return nil
}

func normalizeSnapshot(p model.PatientSnapshot) model.PatientSnapshot {
	p.FullName = strings.TrimSpace(p.FullName)
	return p
}

func outcome(err error) string {
	if err == nil {
		return "created"
	}
	switch errors.CodeOf(err) {
	case errors.ErrConflict:
		return "conflict"
	case errors.ErrBadRequest:
		return "invalid"
	case errors.ErrForbidden:
		return "forbidden"
	case errors.ErrNotFound:
		return "not_found"
	default:
		return "error"
	}
}
