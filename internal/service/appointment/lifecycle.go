package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/service/audit"
	"github.com/medbook/booking-api/pkg/errors"
)

// Pay confirms a RESERVED appointment of the calling patient.
func (s *Service) Pay(ctx context.Context, p model.Principal, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.ownedByPatient(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if apt.Status != model.AppointmentStatusReserved {
		return nil, errors.Validation("only RESERVED appointments can be paid, this one is %s", apt.Status)
	}
	return s.transition(ctx, p, "pay", apt, []model.AppointmentStatus{model.AppointmentStatusReserved}, model.AppointmentStatusConfirmed)
}

// Cancel cancels a RESERVED or CONFIRMED appointment of the calling patient.
func (s *Service) Cancel(ctx context.Context, p model.Principal, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.ownedByPatient(ctx, p, id)
	if err != nil {
		return nil, err
	}
	switch apt.Status {
	case model.AppointmentStatusCompleted:
		return nil, errors.Validation("a completed appointment cannot be cancelled")
	case model.AppointmentStatusCancelled:
		return nil, errors.Validation("appointment is already cancelled")
	}
	return s.transition(ctx, p, "cancel", apt, model.CancellableStatuses, model.AppointmentStatusCancelled)
}

// Complete marks a visit of the calling doctor as done.
func (s *Service) Complete(ctx context.Context, p model.Principal, id uuid.UUID) (*model.Appointment, error) {
	doctorID, err := s.owners.OwnDoctorID(ctx, p)
	if err != nil {
		return nil, err
	}
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.DoctorID != doctorID {
		return nil, errors.Forbidden("appointment belongs to another doctor")
	}
	switch apt.Status {
	case model.AppointmentStatusCancelled:
		return nil, errors.Validation("a cancelled appointment cannot be completed")
	case model.AppointmentStatusCompleted:
		return nil, errors.Validation("appointment is already completed")
	}
	return s.transition(ctx, p, "complete", apt, model.CancellableStatuses, model.AppointmentStatusCompleted)
}

// ListMine returns the calling patient's appointments, newest first.
func (s *Service) ListMine(ctx context.Context, p model.Principal) ([]*model.Appointment, error) {
	if !p.Is(model.RolePatient) {
		return nil, errors.Forbidden("only patients have appointments")
	}
	appointments, err := s.repo.ListByPatient(ctx, p.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (s *Service) ownedByPatient(ctx context.Context, p model.Principal, id uuid.UUID) (*model.Appointment, error) {
	if !p.Is(model.RolePatient) {
		return nil, errors.Forbidden("patient role required")
	}
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.PatientID != p.SubjectID {
		return nil, errors.Forbidden("appointment belongs to another patient")
	}
	return apt, nil
}

func (s *Service) transition(ctx context.Context, p model.Principal, action string, apt *model.Appointment, from []model.AppointmentStatus, to model.AppointmentStatus) (*model.Appointment, error) {
	updated, err := s.repo.TransitionStatus(ctx, apt.ID, from, to, nil)
	if err != nil {
		s.metrics.AppointmentTransitions.WithLabelValues(action, outcome(err)).Inc()
		return nil, err
	}
	s.metrics.AppointmentTransitions.WithLabelValues(action, "ok").Inc()

	s.auditor.Log(ctx, p, action, "appointment", apt.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{
			"from": string(apt.Status),
			"to":   string(to),
		},
	})
	return updated, nil
}
