package email

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/testutil"
)

type sentMail struct {
	to, subject, body string
}

type recordingMailer struct {
	sent []sentMail
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

func TestCancellationSinkMailsPatient(t *testing.T) {
	f := testutil.NewFixture(t)
	mailer := &recordingMailer{}
	sink := NewCancellationSink(f.Store.Users(), mailer, f.Loc)

	err := sink.Deliver(context.Background(), model.AppointmentCancelledEvent{
		AppointmentID: uuid.New(),
		PatientID:     f.Patient.ID,
		DoctorID:      f.Doctor.ID,
		StartAt:       time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC),
		Reason:        "The doctor is away.",
	})
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "jan@mail.test", mailer.sent[0].to)
	assert.Contains(t, mailer.sent[0].body, "Wednesday, 3 January 2024 at 10:00")
	assert.Contains(t, mailer.sent[0].body, "The doctor is away.")
	assert.Equal(t, "email", sink.Name())
}

func TestCancellationSinkUnknownPatient(t *testing.T) {
	f := testutil.NewFixture(t)
	mailer := &recordingMailer{}
	sink := NewCancellationSink(f.Store.Users(), mailer, f.Loc)

	err := sink.Deliver(context.Background(), model.AppointmentCancelledEvent{PatientID: uuid.New()})
	assert.Error(t, err)
	assert.Empty(t, mailer.sent)
}
