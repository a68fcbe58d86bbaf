package email

import (
	"context"
	"fmt"
	"time"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/repository"
)

// CancellationSink mails the patient whose visit was cancelled.
type CancellationSink struct {
	users  repository.UserRepository
	mailer Service
	loc    *time.Location
}

func NewCancellationSink(users repository.UserRepository, mailer Service, loc *time.Location) *CancellationSink {
	return &CancellationSink{users: users, mailer: mailer, loc: loc}
}

func (s *CancellationSink) Name() string { return "email" }

func (s *CancellationSink) Deliver(ctx context.Context, event model.AppointmentCancelledEvent) error {
	patient, err := s.users.Get(ctx, event.PatientID)
	if err != nil {
		return fmt.Errorf("failed to load patient %s: %w", event.PatientID, err)
	}
	return s.mailer.Send(ctx, patient.Email, "Your appointment was cancelled", s.body(patient, event))
}

func (s *CancellationSink) body(patient *model.User, event model.AppointmentCancelledEvent) string {
	when := event.StartAt.In(s.loc).Format("Monday, 2 January 2006 at 15:04")
	return fmt.Sprintf("Hello %s,\n\nyour appointment on %s has been cancelled.\n%s\n\nPlease book a new time at your convenience.\n",
		patient.DisplayName, when, event.Reason)
}
