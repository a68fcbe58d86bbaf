package slot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/repository"
	"github.com/medbook/booking-api/internal/service/availability"
	"github.com/medbook/booking-api/pkg/errors"
	"github.com/medbook/booking-api/pkg/metrics"
	"github.com/medbook/booking-api/pkg/timegrid"
)

// OwnershipChecker links a DOCTOR principal to a doctor profile.
type OwnershipChecker interface {
	OwnsDoctor(ctx context.Context, p model.Principal, doctorID uuid.UUID) (bool, error)
}

type Service struct {
	doctors      repository.DoctorRepository
	appointments repository.AppointmentRepository
	availability *availability.Service
	owners       OwnershipChecker
	loc          *time.Location
	now          func() time.Time
	metrics      *metrics.Metrics
}

func NewService(
	doctors repository.DoctorRepository,
	appointments repository.AppointmentRepository,
	avail *availability.Service,
	owners OwnershipChecker,
	loc *time.Location,
	m *metrics.Metrics,
) *Service {
	return &Service{
		doctors:      doctors,
		appointments: appointments,
		availability: avail,
		owners:       owners,
		loc:          loc,
		now:          time.Now,
		metrics:      m,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Week builds the grid of doctorID for the week in q. Booking details are
// kept only for admins and the doctor who owns the calendar.
func (s *Service) Week(ctx context.Context, viewer model.Principal, doctorID uuid.UUID, q model.SlotQuery) (*model.WeekGrid, error) {
	timer := prometheus.NewTimer(s.metrics.GridBuildDuration)
	defer timer.ObserveDuration()

	slotMinutes := q.SlotMinutes
	if slotMinutes == 0 {
		slotMinutes = model.DefaultSlotMinutes
	}
	if slotMinutes < model.MinSlotMinutes || slotMinutes > model.MaxSlotMinutes {
		return nil, errors.Validation("slotMinutes must be between %d and %d", model.MinSlotMinutes, model.MaxSlotMinutes)
	}

	now := s.now()
	weekStart := timegrid.MondayOf(timegrid.DateOf(now.In(s.loc)))
	if q.WeekStart != "" {
		d, err := timegrid.ParseDate(q.WeekStart)
		if err != nil {
			return nil, errors.NewBadRequest("invalid weekStart", err)
		}
		weekStart = d
	}

	if _, err := s.doctors.Get(ctx, doctorID); err != nil {
		return nil, err
	}

	res, err := s.availability.ResolverFor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	window := model.TimeWindow{
		From: weekStart.In(s.loc),
		To:   weekStart.AddDays(daysPerWeek).In(s.loc),
	}
	appointments, err := s.appointments.ListByDoctor(ctx, doctorID, window, model.ActiveStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to load appointments: %w", err)
	}

	grid := Project(Params{
		DoctorID:    doctorID,
		WeekStart:   weekStart,
		SlotMinutes: slotMinutes,
		Now:         now,
		Location:    s.loc,
	}, res, appointments)

	if !viewer.Is(model.RoleAdmin) {
		owns, err := s.owners.OwnsDoctor(ctx, viewer, doctorID)
		if err != nil {
			return nil, err
		}
		if !owns {
			grid.Redact()
		}
	}
	return grid, nil
}
