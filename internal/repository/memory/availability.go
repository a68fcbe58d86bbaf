package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/medbook/booking-api/internal/model"
)

type availabilityRepository struct {
	s *Store
}

func (r *availabilityRepository) CreateRule(ctx context.Context, rule *model.AvailabilityRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.rules[rule.ID] = cloneRule(rule)
	return nil
}

func (r *availabilityRepository) ListRules(ctx context.Context, doctorID uuid.UUID) ([]*model.AvailabilityRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.AvailabilityRule{}
	for _, rule := range r.s.rules {
		if rule.DoctorID == doctorID {
			out = append(out, cloneRule(rule))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *availabilityRepository) ListAbsences(ctx context.Context, doctorID uuid.UUID) ([]*model.Absence, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.Absence{}
	for _, a := range r.s.absences {
		if a.DoctorID == doctorID {
			out = append(out, cloneAbsence(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateFrom.Before(out[j].DateFrom) })
	return out, nil
}

func (r *availabilityRepository) CreateAbsence(ctx context.Context, absence *model.Absence, window model.TimeWindow, cancelReason string) ([]*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.absences[absence.ID] = cloneAbsence(absence)

	cancelled := []*model.Appointment{}
	for _, a := range r.s.appointments {
		if a.DoctorID != absence.DoctorID || !a.Status.In(model.CancellableStatuses) || !window.Contains(a.StartAt) {
			continue
		}
		reason := cancelReason
		a.Status = model.AppointmentStatusCancelled
		a.CancelReason = &reason
		a.UpdatedAt = r.s.now()
		cancelled = append(cancelled, cloneAppointment(a))
	}
	sort.Slice(cancelled, func(i, j int) bool { return cancelled[i].StartAt.Before(cancelled[j].StartAt) })
	return cancelled, nil
}
