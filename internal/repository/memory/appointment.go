package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/pkg/errors"
	"github.com/medbook/booking-api/pkg/timegrid"
)

type appointmentRepository struct {
	s *Store
}

func (r *appointmentRepository) Reserve(ctx context.Context, apt *model.Appointment, day timegrid.Date) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, a := range r.s.absences {
		if a.DoctorID == apt.DoctorID && day.Within(a.DateFrom, a.DateTo) {
			return errors.Conflict("doctor is absent on %s", day)
		}
	}
	for _, existing := range r.s.appointments {
		if existing.DoctorID != apt.DoctorID || !existing.Status.In(model.ActiveStatuses) {
			continue
		}
		if timegrid.OverlapsTime(existing.StartAt, existing.EndAt, apt.StartAt, apt.EndAt) {
			return errors.Conflict("slot already taken")
		}
	}

	r.s.appointments[apt.ID] = cloneAppointment(apt)
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.appointments[id]
	if !ok {
		return nil, errors.NotFound("appointment", nil)
	}
	return cloneAppointment(a), nil
}

func (r *appointmentRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, window model.TimeWindow, statuses []model.AppointmentStatus) ([]*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.Appointment{}
	for _, a := range r.s.appointments {
		if a.DoctorID != doctorID || !a.Status.In(statuses) {
			continue
		}
		if timegrid.OverlapsTime(a.StartAt, a.EndAt, window.From, window.To) {
			out = append(out, cloneAppointment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (r *appointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.Appointment{}
	for _, a := range r.s.appointments {
		if a.PatientID == patientID {
			out = append(out, cloneAppointment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.After(out[j].StartAt) })
	return out, nil
}

func (r *appointmentRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from []model.AppointmentStatus, to model.AppointmentStatus, cancelReason *string) (*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.appointments[id]
	if !ok {
		return nil, errors.NotFound("appointment", nil)
	}
	if !a.Status.In(from) {
		return nil, errors.Conflict("appointment is already %s", a.Status)
	}
	a.Status = to
	if cancelReason != nil {
		v := *cancelReason
		a.CancelReason = &v
	}
	a.UpdatedAt = r.s.now()
	return cloneAppointment(a), nil
}

func (r *appointmentRepository) HasCompletedVisit(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, a := range r.s.appointments {
		if a.DoctorID == doctorID && a.PatientID == patientID && a.Status == model.AppointmentStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}
