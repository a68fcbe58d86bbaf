package slot

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/service/availability"
	"github.com/medbook/booking-api/internal/testutil"
	"github.com/medbook/booking-api/pkg/timegrid"
)

func weekdayRule() *model.AvailabilityRule {
	return &model.AvailabilityRule{
		Kind:     model.RuleKindRecurring,
		DateFrom: testutil.DatePtr("2024-01-01"),
		DateTo:   testutil.DatePtr("2024-01-31"),
		DaysOfWeek: model.Weekdays{
			timegrid.Monday, timegrid.Tuesday, timegrid.Wednesday, timegrid.Thursday, timegrid.Friday,
		},
		TimeRanges: model.TimeRanges{{Start: "09:00", End: "12:00"}},
	}
}

func params(now time.Time) Params {
	return Params{
		DoctorID:    uuid.New(),
		WeekStart:   timegrid.MustParseDate("2024-01-01"),
		SlotMinutes: 30,
		Now:         now,
		Location:    time.UTC,
	}
}

func statuses(day model.GridDay) []model.SlotStatus {
	out := make([]model.SlotStatus, len(day.Cells))
	for i, c := range day.Cells {
		out[i] = c.Status
	}
	return out
}

func repeat(s model.SlotStatus, n int) []model.SlotStatus {
	out := make([]model.SlotStatus, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func TestProjectWeekdayMornings(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	res := availability.NewResolver([]*model.AvailabilityRule{weekdayRule()}, nil)

	grid := Project(params(now), res, nil)

	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}, grid.TimeAxis)
	require.Len(t, grid.Days, 7)

	wed := grid.Days[2]
	assert.Equal(t, timegrid.MustParseDate("2024-01-03"), wed.Date)
	assert.Equal(t, timegrid.Wednesday, wed.DayOfWeek)
	assert.Equal(t, repeat(model.SlotFree, 6), statuses(wed))
	assert.Equal(t, 0, wed.BookedCount)

	sat := grid.Days[5]
	assert.Equal(t, repeat(model.SlotUnavailable, 6), statuses(sat))

	assert.True(t, grid.Days[0].IsToday)
	assert.False(t, wed.IsToday)
}

func TestProjectBookedCell(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	res := availability.NewResolver([]*model.AvailabilityRule{weekdayRule()}, nil)
	notes := "bring results"
	start := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
	apt := &model.Appointment{
		Base:           model.NewBase(now),
		StartAt:        start,
		EndAt:          start.Add(30 * time.Minute),
		Status:         model.AppointmentStatusReserved,
		VisitType:      "checkup",
		Patient:        model.PatientSnapshot{FullName: "Jan Kowalski", Gender: model.GenderMale, Age: 41},
		NotesForDoctor: &notes,
	}

	grid := Project(params(now), res, []*model.Appointment{apt})

	wed := grid.Days[2]
	assert.Equal(t, []model.SlotStatus{
		model.SlotFree, model.SlotFree, model.SlotBooked, model.SlotFree, model.SlotFree, model.SlotFree,
	}, statuses(wed))
	assert.Equal(t, 1, wed.BookedCount)

	booked := wed.Cells[2]
	require.NotNil(t, booked.AppointmentID)
	assert.Equal(t, apt.ID, *booked.AppointmentID)
	assert.Equal(t, "checkup", *booked.VisitType)
	assert.Equal(t, "Jan Kowalski", booked.PatientSnapshot.FullName)
	assert.Equal(t, "bring results", *booked.NotesForDoctor)
}

func TestProjectMultiSlotBookingCoversCells(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	res := availability.NewResolver([]*model.AvailabilityRule{weekdayRule()}, nil)
	start := time.Date(2024, 1, 4, 9, 30, 0, 0, time.UTC)
	apt := &model.Appointment{
		Base:    model.NewBase(now),
		StartAt: start,
		EndAt:   start.Add(90 * time.Minute),
		Status:  model.AppointmentStatusConfirmed,
	}

	grid := Project(params(now), res, []*model.Appointment{apt})

	assert.Equal(t, []model.SlotStatus{
		model.SlotFree, model.SlotBooked, model.SlotBooked, model.SlotBooked, model.SlotFree, model.SlotFree,
	}, statuses(grid.Days[3]))
	assert.Equal(t, 1, grid.Days[3].BookedCount)
}

func TestProjectCellSpanningTwoBookingsShowsLaterOne(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	res := availability.NewResolver([]*model.AvailabilityRule{weekdayRule()}, nil)
	at := func(h, m int) time.Time { return time.Date(2024, 1, 3, h, m, 0, 0, time.UTC) }
	early := &model.Appointment{Base: model.NewBase(now), StartAt: at(9, 15), EndAt: at(9, 45), Status: model.AppointmentStatusReserved}
	late := &model.Appointment{Base: model.NewBase(now), StartAt: at(9, 45), EndAt: at(10, 15), Status: model.AppointmentStatusReserved}

	for _, order := range [][]*model.Appointment{{early, late}, {late, early}} {
		grid := Project(params(now), res, order)

		cell := grid.Days[2].Cells[1]
		assert.Equal(t, "09:30", cell.Time)
		assert.Equal(t, model.SlotBooked, cell.Status)
		require.NotNil(t, cell.AppointmentID)
		assert.Equal(t, late.ID, *cell.AppointmentID)
		assert.Equal(t, 2, grid.Days[2].BookedCount)
	}
}

func TestProjectAbsentDay(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	res := availability.NewResolver(
		[]*model.AvailabilityRule{weekdayRule()},
		[]*model.Absence{{DateFrom: timegrid.MustParseDate("2024-01-03"), DateTo: timegrid.MustParseDate("2024-01-03")}},
	)

	grid := Project(params(now), res, nil)

	wed := grid.Days[2]
	assert.True(t, wed.IsAbsent)
	assert.Equal(t, repeat(model.SlotAbsent, 6), statuses(wed))
	assert.Equal(t, repeat(model.SlotFree, 6), statuses(grid.Days[3]))
	assert.Equal(t, repeat(model.SlotUnavailable, 6), statuses(grid.Days[6]), "ranges win over absence")
}

func TestProjectEmptyWeek(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	res := availability.NewResolver([]*model.AvailabilityRule{weekdayRule()}, nil)
	p := params(now)
	p.WeekStart = timegrid.MustParseDate("2024-02-05")

	grid := Project(p, res, nil)

	assert.Empty(t, grid.TimeAxis)
	assert.Empty(t, grid.Days)
	assert.NotNil(t, grid.TimeAxis)
	assert.NotNil(t, grid.Days)
}

func TestProjectIsPast(t *testing.T) {
	now := time.Date(2024, 1, 3, 10, 15, 0, 0, time.UTC)
	res := availability.NewResolver([]*model.AvailabilityRule{weekdayRule()}, nil)

	grid := Project(params(now), res, nil)

	wed := grid.Days[2]
	assert.True(t, wed.IsToday)
	assert.True(t, wed.Cells[0].IsPast)
	assert.True(t, wed.Cells[1].IsPast)
	assert.False(t, wed.Cells[2].IsPast, "10:00-10:30 is in progress")
	assert.True(t, grid.Days[1].Cells[5].IsPast)
	assert.False(t, grid.Days[3].Cells[0].IsPast)
}

func TestProjectSlotGranularity(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	res := availability.NewResolver([]*model.AvailabilityRule{weekdayRule()}, nil)

	p := params(now)
	p.SlotMinutes = 45
	grid := Project(p, res, nil)
	assert.Equal(t, []string{"09:00", "09:45", "10:30", "11:15"}, grid.TimeAxis)

	p.SlotMinutes = 60
	grid = Project(p, res, nil)
	assert.Equal(t, []string{"09:00", "10:00", "11:00"}, grid.TimeAxis)
}

func TestProjectUnionAxisAcrossDays(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	saturday := &model.AvailabilityRule{
		Kind:       model.RuleKindOneTime,
		Date:       testutil.DatePtr("2024-01-06"),
		TimeRanges: model.TimeRanges{{Start: "13:00", End: "14:00"}},
	}
	res := availability.NewResolver([]*model.AvailabilityRule{weekdayRule(), saturday}, nil)

	grid := Project(params(now), res, nil)

	require.Len(t, grid.TimeAxis, 10)
	assert.Equal(t, "09:00", grid.TimeAxis[0])
	assert.Equal(t, "13:30", grid.TimeAxis[9])

	sat := grid.Days[5]
	assert.Equal(t, model.SlotUnavailable, sat.Cells[0].Status)
	assert.Equal(t, model.SlotFree, sat.Cells[8].Status)
	assert.Equal(t, model.SlotFree, sat.Cells[9].Status)
	assert.Equal(t, model.SlotUnavailable, grid.Days[0].Cells[6].Status, "12:00 on monday")
}
