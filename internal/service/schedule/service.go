// Package schedule manages a doctor's own availability rules and absences.
// Declaring an absence cancels every active visit inside it and announces
// each cancellation on the event bus.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/repository"
	"github.com/medbook/booking-api/internal/service/audit"
	"github.com/medbook/booking-api/pkg/errors"
	"github.com/medbook/booking-api/pkg/messaging"
	"github.com/medbook/booking-api/pkg/metrics"
	"github.com/medbook/booking-api/pkg/timegrid"
)

const (
	// AbsenceCancelReason is stored on appointments cancelled by an absence.
	AbsenceCancelReason = "Doctor reported an absence"
	// AbsenceNotice is the text sent to affected patients.
	AbsenceNotice = "The doctor cancelled the visit due to an absence."
)

// Doctors resolves the doctor profile behind a DOCTOR principal.
type Doctors interface {
	OwnDoctorID(ctx context.Context, p model.Principal) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
}

type Service struct {
	repo      repository.AvailabilityRepository
	doctors   Doctors
	publisher messaging.Publisher
	auditor   *audit.Service
	metrics   *metrics.Metrics
	loc       *time.Location
	now       func() time.Time
}

func NewService(
	repo repository.AvailabilityRepository,
	doctors Doctors,
	publisher messaging.Publisher,
	auditor *audit.Service,
	m *metrics.Metrics,
	loc *time.Location,
) *Service {
	return &Service{
		repo:      repo,
		doctors:   doctors,
		publisher: publisher,
		auditor:   auditor,
		metrics:   m,
		loc:       loc,
		now:       time.Now,
	}
}

// WithClock overrides the time source used to stamp new rules and absences.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AddRule stores a new availability rule for the calling doctor.
func (s *Service) AddRule(ctx context.Context, p model.Principal, req *model.CreateRuleRequest) (*model.AvailabilityRule, error) {
	doctorID, err := s.doctors.OwnDoctorID(ctx, p)
	if err != nil {
		return nil, err
	}
	rule, err := BuildRule(req)
	if err != nil {
		return nil, err
	}
	rule.Base = model.NewBase(s.now())
	rule.DoctorID = doctorID

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create availability rule: %w", err)
	}
	s.auditor.Log(ctx, p, "add_rule", "availability_rule", rule.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"kind": string(rule.Kind)},
	})
	return rule, nil
}

// BuildRule validates req and converts it to a rule without identity.
func BuildRule(req *model.CreateRuleRequest) (*model.AvailabilityRule, error) {
	rule := &model.AvailabilityRule{Kind: req.Kind, SlotMinutes: model.DefaultSlotMinutes}

	switch req.Kind {
	case model.RuleKindRecurring:
		if req.DateFrom == nil || req.DateTo == nil {
			return nil, errors.Validation("recurring rules need date_from and date_to")
		}
		from, err := timegrid.ParseDate(*req.DateFrom)
		if err != nil {
			return nil, errors.Validation("invalid date_from: %v", err)
		}
		to, err := timegrid.ParseDate(*req.DateTo)
		if err != nil {
			return nil, errors.Validation("invalid date_to: %v", err)
		}
		if to.Before(from) {
			return nil, errors.Validation("date_to must not be before date_from")
		}
		if len(req.DaysOfWeek) == 0 {
			return nil, errors.Validation("recurring rules need at least one day of week")
		}
		days := make(model.Weekdays, 0, len(req.DaysOfWeek))
		for _, d := range req.DaysOfWeek {
			wd := timegrid.Weekday(d)
			if !wd.Valid() {
				return nil, errors.Validation("day of week %d is outside 1..7", d)
			}
			if !days.Contains(wd) {
				days = append(days, wd)
			}
		}
		rule.DateFrom, rule.DateTo, rule.DaysOfWeek = &from, &to, days
	case model.RuleKindOneTime:
		if req.Date == nil {
			return nil, errors.Validation("one-time rules need a date")
		}
		date, err := timegrid.ParseDate(*req.Date)
		if err != nil {
			return nil, errors.Validation("invalid date: %v", err)
		}
		rule.Date = &date
	default:
		return nil, errors.Validation("kind must be RECURRING or ONE_TIME")
	}

	if len(req.TimeRanges) == 0 {
		return nil, errors.Validation("at least one time range is required")
	}
	for _, tr := range req.TimeRanges {
		rng, err := tr.Minutes()
		if err != nil {
			return nil, errors.Validation("invalid time range %s-%s: %v", tr.Start, tr.End, err)
		}
		if rng.End <= rng.Start {
			return nil, errors.Validation("time range %s-%s ends before it starts", tr.Start, tr.End)
		}
		rule.TimeRanges = append(rule.TimeRanges, tr)
	}

	if req.SlotMinutes != nil {
		if *req.SlotMinutes < model.MinSlotMinutes || *req.SlotMinutes > model.MaxSlotMinutes {
			return nil, errors.Validation("slot_minutes must be between %d and %d", model.MinSlotMinutes, model.MaxSlotMinutes)
		}
		rule.SlotMinutes = *req.SlotMinutes
	}
	return rule, nil
}

func (s *Service) ListRules(ctx context.Context, p model.Principal) ([]*model.AvailabilityRule, error) {
	doctorID, err := s.doctors.OwnDoctorID(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.repo.ListRules(ctx, doctorID)
}

func (s *Service) ListAbsences(ctx context.Context, p model.Principal) ([]*model.Absence, error) {
	doctorID, err := s.doctors.OwnDoctorID(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAbsences(ctx, doctorID)
}

// AddAbsence stores the absence and cancels, in the same write, every
// RESERVED or CONFIRMED appointment starting on one of its days. Each
// cancellation is then published; a failed publish is only logged.
func (s *Service) AddAbsence(ctx context.Context, p model.Principal, req *model.CreateAbsenceRequest) (*model.AbsenceResult, error) {
	doctorID, err := s.doctors.OwnDoctorID(ctx, p)
	if err != nil {
		return nil, err
	}

	from, err := timegrid.ParseDate(req.DateFrom)
	if err != nil {
		return nil, errors.Validation("invalid date_from: %v", err)
	}
	to, err := timegrid.ParseDate(req.DateTo)
	if err != nil {
		return nil, errors.Validation("invalid date_to: %v", err)
	}
	if to.Before(from) {
		return nil, errors.Validation("date_to must not be before date_from")
	}

	absence := &model.Absence{
		Base:     model.NewBase(s.now()),
		DoctorID: doctorID,
		DateFrom: from,
		DateTo:   to,
	}
	if req.Reason != nil {
		if reason := strings.TrimSpace(*req.Reason); reason != "" {
			absence.Reason = &reason
		}
	}

	window := model.TimeWindow{From: from.In(s.loc), To: to.AddDays(1).In(s.loc)}
	cancelled, err := s.repo.CreateAbsence(ctx, absence, window, AbsenceCancelReason)
	if err != nil {
		return nil, err
	}
	s.metrics.AbsenceCancellations.Add(float64(len(cancelled)))

	s.auditor.Log(ctx, p, "add_absence", "absence", absence.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{
			"date_from": from.String(),
			"date_to":   to.String(),
			"cancelled": len(cancelled),
		},
	})

	for _, apt := range cancelled {
		s.notifyCancelled(ctx, apt)
	}

	return &model.AbsenceResult{Absence: absence, Cancelled: len(cancelled)}, nil
}

func (s *Service) notifyCancelled(ctx context.Context, apt *model.Appointment) {
	event := model.AppointmentCancelledEvent{
		AppointmentID: apt.ID,
		PatientID:     apt.PatientID,
		DoctorID:      apt.DoctorID,
		StartAt:       apt.StartAt,
		Reason:        AbsenceNotice,
	}
	if err := s.publisher.Publish(ctx, model.EventAppointmentCancelled, event); err != nil {
		log.Error().Err(err).
			Str("appointment_id", apt.ID.String()).
			Str("patient_id", apt.PatientID.String()).
			Msg("Failed to publish appointment cancellation")
	}
}

// DoctorSchedule returns a doctor's raw rules and absences. Doctors may only
// read their own schedule.
func (s *Service) DoctorSchedule(ctx context.Context, viewer model.Principal, doctorID uuid.UUID) (*model.DoctorSchedule, error) {
	if viewer.Is(model.RoleDoctor) {
		own, err := s.doctors.OwnDoctorID(ctx, viewer)
		if err != nil {
			return nil, err
		}
		if own != doctorID {
			return nil, errors.Forbidden("doctors may only view their own schedule")
		}
	}
	if _, err := s.doctors.Get(ctx, doctorID); err != nil {
		return nil, err
	}

	rules, err := s.repo.ListRules(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	absences, err := s.repo.ListAbsences(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list absences: %w", err)
	}
	return &model.DoctorSchedule{DoctorID: doctorID, Rules: rules, Absences: absences}, nil
}
