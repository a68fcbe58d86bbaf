package appointment

import (
	"context"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/service/audit"
	"github.com/medbook/booking-api/internal/service/availability"
	"github.com/medbook/booking-api/internal/service/doctor"
	"github.com/medbook/booking-api/internal/service/slot"
	"github.com/medbook/booking-api/internal/testutil"
	"github.com/medbook/booking-api/pkg/errors"
	"github.com/medbook/booking-api/pkg/metrics"
)

func newService(f *testutil.Fixture) *Service {
	m := metrics.NewNop()
	return NewService(
		f.Store.Appointments(),
		f.Store.Doctors(),
		availability.NewService(f.Store.Availability()),
		doctor.NewService(f.Store.Doctors(), f.Store.Users(), time.Minute, m),
		audit.NewService(zap.NewNop()),
		m,
		f.Loc,
	).WithClock(f.Clock())
}

func reserveRequest(f *testutil.Fixture, startAt string, slots int) *model.ReserveRequest {
	return &model.ReserveRequest{
		DoctorID:      f.Doctor.ID,
		StartAt:       startAt,
		DurationSlots: slots,
		VisitType:     "consultation",
		Patient:       model.PatientSnapshot{FullName: "Jan Kowalski", Gender: model.GenderMale, Age: 41},
	}
}

func TestReserveCreatesReservedAppointment(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := newService(f)

	apt, err := svc.Reserve(context.Background(), testutil.Principal(f.Patient), reserveRequest(f, "2024-01-03T10:00:00Z", 2))
	require.NoError(t, err)

	assert.Equal(t, model.AppointmentStatusReserved, apt.Status)
	assert.Equal(t, f.Patient.ID, apt.PatientID)
	assert.Equal(t, f.At("2024-01-03", "10:00"), apt.StartAt)
	assert.Equal(t, f.At("2024-01-03", "11:00"), apt.EndAt)

	stored, err := f.Store.Appointments().Get(context.Background(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jan Kowalski", stored.Patient.FullName)
}

func TestReserveAcceptsLocalWallClock(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := newService(f)

	apt, err := svc.Reserve(context.Background(), testutil.Principal(f.Patient), reserveRequest(f, "2024-01-03T11:30", 1))
	require.NoError(t, err)
	assert.Equal(t, f.At("2024-01-03", "11:30"), apt.StartAt)
}

func TestReserveRejections(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Book(f.OtherPatient, "2024-01-04", "10:00", 1, model.AppointmentStatusConfirmed)
	svc := newService(f)
	ctx := context.Background()
	patient := testutil.Principal(f.Patient)

	tests := []struct {
		name   string
		viewer model.Principal
		mutate func(r *model.ReserveRequest)
		code   errors.ErrorCode
	}{
		{"doctor cannot reserve", testutil.Principal(f.DoctorUser), nil, errors.ErrForbidden},
		{"admin cannot reserve", testutil.Principal(f.Admin), nil, errors.ErrForbidden},
		{"start in the past", patient, func(r *model.ReserveRequest) { r.StartAt = "2023-12-29T10:00:00Z" }, errors.ErrBadRequest},
		{"start equals now", patient, func(r *model.ReserveRequest) { r.StartAt = "2024-01-01T08:00:00Z" }, errors.ErrBadRequest},
		{"garbage start", patient, func(r *model.ReserveRequest) { r.StartAt = "tomorrow" }, errors.ErrBadRequest},
		{"zero slots", patient, func(r *model.ReserveRequest) { r.DurationSlots = 0 }, errors.ErrBadRequest},
		{"too many slots", patient, func(r *model.ReserveRequest) { r.DurationSlots = 25 }, errors.ErrBadRequest},
		{"short visit type", patient, func(r *model.ReserveRequest) { r.VisitType = "x" }, errors.ErrBadRequest},
		{"bad gender", patient, func(r *model.ReserveRequest) { r.Patient.Gender = "X" }, errors.ErrBadRequest},
		{"bad age", patient, func(r *model.ReserveRequest) { r.Patient.Age = 121 }, errors.ErrBadRequest},
		{"unknown doctor", patient, func(r *model.ReserveRequest) { r.DoctorID = uuid.New() }, errors.ErrNotFound},
		{"outside hours", patient, func(r *model.ReserveRequest) { r.StartAt = "2024-01-03T13:00:00Z" }, errors.ErrConflict},
		{"runs past closing", patient, func(r *model.ReserveRequest) { r.StartAt = "2024-01-03T11:30:00Z"; r.DurationSlots = 2 }, errors.ErrConflict},
		{"weekend", patient, func(r *model.ReserveRequest) { r.StartAt = "2024-01-06T10:00:00Z" }, errors.ErrConflict},
		{"overlaps booking", patient, func(r *model.ReserveRequest) { r.StartAt = "2024-01-04T09:30:00Z"; r.DurationSlots = 2 }, errors.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := reserveRequest(f, "2024-01-03T10:00:00Z", 1)
			if tt.mutate != nil {
				tt.mutate(req)
			}
			_, err := svc.Reserve(ctx, tt.viewer, req)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err), err.Error())
		})
	}
}

func TestReserveAfterCancellationFreesSlot(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Book(f.OtherPatient, "2024-01-03", "10:00", 1, model.AppointmentStatusCancelled)
	svc := newService(f)

	_, err := svc.Reserve(context.Background(), testutil.Principal(f.Patient), reserveRequest(f, "2024-01-03T10:00:00Z", 1))
	assert.NoError(t, err)
}

func TestReserveOnAbsentDay(t *testing.T) {
	f := testutil.NewFixture(t)
	_, err := f.Store.Availability().CreateAbsence(context.Background(), &model.Absence{
		Base:     model.NewBase(f.Now),
		DoctorID: f.Doctor.ID,
		DateFrom: "2024-01-03",
		DateTo:   "2024-01-05",
	}, model.TimeWindow{From: f.At("2024-01-03", "00:00"), To: f.At("2024-01-06", "00:00")}, "absent")
	require.NoError(t, err)
	svc := newService(f)

	_, err = svc.Reserve(context.Background(), testutil.Principal(f.Patient), reserveRequest(f, "2024-01-04T10:00:00Z", 1))
	assert.True(t, errors.Is(err, errors.ErrConflict))

	_, err = svc.Reserve(context.Background(), testutil.Principal(f.Patient), reserveRequest(f, "2024-01-08T10:00:00Z", 1))
	assert.NoError(t, err)
}

func TestConcurrentReservationsSameSlot(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := newService(f)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Reserve(ctx, testutil.Principal(f.Patient), reserveRequest(f, "2024-01-05T09:00:00Z", 2))
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, errors.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, conflicts)
}

// Two adjacent rules render as one continuous free block, but a visit that
// straddles the boundary does not fit a single rule range.
func TestAdjacentRulesShowFreeButRejectStraddlingVisit(t *testing.T) {
	f := testutil.NewFixture(t)
	f.AddRule(t, f.Doctor.ID, &model.AvailabilityRule{
		Kind:        model.RuleKindOneTime,
		Date:        testutil.DatePtr("2024-01-06"),
		TimeRanges:  model.TimeRanges{{Start: "09:00", End: "10:00"}},
		SlotMinutes: 30,
	})
	f.AddRule(t, f.Doctor.ID, &model.AvailabilityRule{
		Kind:        model.RuleKindOneTime,
		Date:        testutil.DatePtr("2024-01-06"),
		TimeRanges:  model.TimeRanges{{Start: "10:00", End: "11:00"}},
		SlotMinutes: 30,
	})
	m := metrics.NewNop()
	doctors := doctor.NewService(f.Store.Doctors(), f.Store.Users(), time.Minute, m)
	grid, err := slot.NewService(f.Store.Doctors(), f.Store.Appointments(), availability.NewService(f.Store.Availability()), doctors, f.Loc, m).
		WithClock(f.Clock()).
		Week(context.Background(), testutil.Principal(f.Patient), f.Doctor.ID, model.SlotQuery{WeekStart: "2024-01-01"})
	require.NoError(t, err)

	sat := grid.Days[5]
	for i := 0; i < 4; i++ {
		assert.Equal(t, model.SlotFree, sat.Cells[i].Status)
	}

	svc := newService(f)
	_, err = svc.Reserve(context.Background(), testutil.Principal(f.Patient), reserveRequest(f, "2024-01-06T09:30:00Z", 2))
	assert.True(t, errors.Is(err, errors.ErrConflict))

	_, err = svc.Reserve(context.Background(), testutil.Principal(f.Patient), reserveRequest(f, "2024-01-06T10:00:00Z", 2))
	assert.NoError(t, err)
}

func TestPay(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := newService(f)
	ctx := context.Background()
	reserved := f.Book(f.Patient, "2024-01-03", "09:00", 1, model.AppointmentStatusReserved)
	cancelled := f.Book(f.Patient, "2024-01-03", "10:00", 1, model.AppointmentStatusCancelled)

	_, err := svc.Pay(ctx, testutil.Principal(f.OtherPatient), reserved.ID)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	apt, err := svc.Pay(ctx, testutil.Principal(f.Patient), reserved.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, apt.Status)

	_, err = svc.Pay(ctx, testutil.Principal(f.Patient), reserved.ID)
	assert.True(t, errors.Is(err, errors.ErrBadRequest), "already confirmed")

	_, err = svc.Pay(ctx, testutil.Principal(f.Patient), cancelled.ID)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	_, err = svc.Pay(ctx, testutil.Principal(f.Patient), uuid.New())
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestCancel(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := newService(f)
	ctx := context.Background()
	confirmed := f.Book(f.Patient, "2024-01-03", "09:00", 1, model.AppointmentStatusConfirmed)
	completed := f.Book(f.Patient, "2024-01-03", "10:00", 1, model.AppointmentStatusCompleted)

	_, err := svc.Cancel(ctx, testutil.Principal(f.DoctorUser), confirmed.ID)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	apt, err := svc.Cancel(ctx, testutil.Principal(f.Patient), confirmed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, apt.Status)

	_, err = svc.Cancel(ctx, testutil.Principal(f.Patient), confirmed.ID)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	_, err = svc.Cancel(ctx, testutil.Principal(f.Patient), completed.ID)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestComplete(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := newService(f)
	ctx := context.Background()
	reserved := f.Book(f.Patient, "2024-01-03", "09:00", 1, model.AppointmentStatusReserved)
	cancelled := f.Book(f.Patient, "2024-01-03", "10:00", 1, model.AppointmentStatusCancelled)

	otherDoctorID := uuid.New()
	otherDoctor := &model.User{Base: model.NewBase(f.Now), Role: model.RoleDoctor, DoctorID: &otherDoctorID}
	f.Store.PutUser(otherDoctor)

	_, err := svc.Complete(ctx, testutil.Principal(f.Patient), reserved.ID)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	_, err = svc.Complete(ctx, testutil.Principal(otherDoctor), reserved.ID)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	apt, err := svc.Complete(ctx, testutil.Principal(f.DoctorUser), reserved.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, apt.Status)

	_, err = svc.Complete(ctx, testutil.Principal(f.DoctorUser), reserved.ID)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	_, err = svc.Complete(ctx, testutil.Principal(f.DoctorUser), cancelled.ID)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestListMine(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := newService(f)
	ctx := context.Background()
	early := f.Book(f.Patient, "2024-01-02", "09:00", 1, model.AppointmentStatusReserved)
	late := f.Book(f.Patient, "2024-01-09", "09:00", 1, model.AppointmentStatusCancelled)
	f.Book(f.OtherPatient, "2024-01-03", "09:00", 1, model.AppointmentStatusReserved)

	list, err := svc.ListMine(ctx, testutil.Principal(f.Patient))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, late.ID, list[0].ID)
	assert.Equal(t, early.ID, list[1].ID)

	_, err = svc.ListMine(ctx, testutil.Principal(f.Admin))
	assert.True(t, errors.Is(err, errors.ErrForbidden))
}

func TestParseStartAt(t *testing.T) {
	warsaw, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)

	got, err := ParseStartAt("2024-01-03T10:00", warsaw)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC), got.UTC())

	got, err = ParseStartAt("2024-07-03T10:00:00+02:00", warsaw)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 7, 3, 8, 0, 0, 0, time.UTC), got.UTC())

	_, err = ParseStartAt("03.01.2024 10:00", warsaw)
	assert.Error(t, err)
}
