package slot

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/service/availability"
	"github.com/medbook/booking-api/internal/service/doctor"
	"github.com/medbook/booking-api/internal/testutil"
	"github.com/medbook/booking-api/pkg/errors"
	"github.com/medbook/booking-api/pkg/metrics"
)

func newService(f *testutil.Fixture) *Service {
	m := metrics.NewNop()
	doctors := doctor.NewService(f.Store.Doctors(), f.Store.Users(), time.Minute, m)
	return NewService(
		f.Store.Doctors(),
		f.Store.Appointments(),
		availability.NewService(f.Store.Availability()),
		doctors,
		f.Loc,
		m,
	).WithClock(f.Clock())
}

func TestWeekDefaultsToCurrentMonday(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Now = time.Date(2024, 1, 4, 15, 0, 0, 0, time.UTC)
	svc := newService(f)

	grid, err := svc.Week(context.Background(), testutil.Principal(f.Patient), f.Doctor.ID, model.SlotQuery{})
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01", grid.WeekStart.String())
	assert.Equal(t, 30, grid.SlotMinutes)
	assert.Len(t, grid.TimeAxis, 6)
	assert.True(t, grid.Days[3].IsToday)
}

func TestWeekValidation(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := newService(f)
	ctx := context.Background()
	viewer := testutil.Principal(f.Patient)

	_, err := svc.Week(ctx, viewer, f.Doctor.ID, model.SlotQuery{SlotMinutes: 5})
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	_, err = svc.Week(ctx, viewer, f.Doctor.ID, model.SlotQuery{SlotMinutes: 90})
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	_, err = svc.Week(ctx, viewer, f.Doctor.ID, model.SlotQuery{WeekStart: "2024-13-01"})
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	_, err = svc.Week(ctx, viewer, uuid.New(), model.SlotQuery{})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestWeekIgnoresCancelledAppointments(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Book(f.Patient, "2024-01-03", "10:00", 1, model.AppointmentStatusCancelled)
	f.Book(f.Patient, "2024-01-03", "11:00", 1, model.AppointmentStatusCompleted)
	svc := newService(f)

	grid, err := svc.Week(context.Background(), testutil.Principal(f.Admin), f.Doctor.ID, model.SlotQuery{WeekStart: "2024-01-01"})
	require.NoError(t, err)

	wed := grid.Days[2]
	assert.Equal(t, model.SlotFree, wed.Cells[2].Status)
	assert.Equal(t, model.SlotBooked, wed.Cells[4].Status)
	assert.Equal(t, 1, wed.BookedCount)
}

func TestWeekRedactsBookingDetails(t *testing.T) {
	f := testutil.NewFixture(t)
	apt := f.Book(f.Patient, "2024-01-03", "10:00", 1, model.AppointmentStatusReserved)
	svc := newService(f)
	ctx := context.Background()
	q := model.SlotQuery{WeekStart: "2024-01-01"}

	strangerDoctorID := uuid.New()
	stranger := &model.User{Base: model.NewBase(f.Now), Role: model.RoleDoctor, DoctorID: &strangerDoctorID}
	f.Store.PutUser(stranger)

	tests := []struct {
		name    string
		viewer  model.Principal
		details bool
	}{
		{"owning doctor", testutil.Principal(f.DoctorUser), true},
		{"admin", testutil.Principal(f.Admin), true},
		{"patient", testutil.Principal(f.Patient), false},
		{"other doctor", testutil.Principal(stranger), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid, err := svc.Week(ctx, tt.viewer, f.Doctor.ID, q)
			require.NoError(t, err)

			cell := grid.Days[2].Cells[2]
			assert.Equal(t, model.SlotBooked, cell.Status)
			if tt.details {
				require.NotNil(t, cell.AppointmentID)
				assert.Equal(t, apt.ID, *cell.AppointmentID)
				assert.NotNil(t, cell.PatientSnapshot)
			} else {
				assert.Nil(t, cell.AppointmentID)
				assert.Nil(t, cell.PatientSnapshot)
				assert.Nil(t, cell.VisitType)
			}
		})
	}
}
