// Package testutil seeds an in-memory store with a small clinic used across
// service and handler tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/repository/memory"
	"github.com/medbook/booking-api/pkg/timegrid"
)

// Fixture is a clinic with one doctor working Monday to Friday 09:00-12:00
// through January 2024. The clock reads Monday 2024-01-01 08:00 UTC.
type Fixture struct {
	Store        *memory.Store
	Loc          *time.Location
	Now          time.Time
	Doctor       *model.Doctor
	DoctorUser   *model.User
	Patient      *model.User
	OtherPatient *model.User
	Admin        *model.User
}

func NewFixture(tb testing.TB) *Fixture {
	tb.Helper()

	f := &Fixture{
		Store: memory.NewStore(),
		Loc:   time.UTC,
		Now:   time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}

	f.Doctor = &model.Doctor{Base: model.NewBase(f.Now), FullName: "Dr Anna Nowak", Specialization: "Cardiology"}
	f.Store.PutDoctor(f.Doctor)

	doctorID := f.Doctor.ID
	f.DoctorUser = f.user(model.RoleDoctor, "anna@clinic.test", "Anna Nowak", &doctorID)
	f.Patient = f.user(model.RolePatient, "jan@mail.test", "Jan Kowalski", nil)
	f.OtherPatient = f.user(model.RolePatient, "ewa@mail.test", "Ewa Zielinska", nil)
	f.Admin = f.user(model.RoleAdmin, "admin@clinic.test", "Admin", nil)

	f.AddRule(tb, f.Doctor.ID, &model.AvailabilityRule{
		Kind:     model.RuleKindRecurring,
		DateFrom: DatePtr("2024-01-01"),
		DateTo:   DatePtr("2024-01-31"),
		DaysOfWeek: model.Weekdays{
			timegrid.Monday, timegrid.Tuesday, timegrid.Wednesday, timegrid.Thursday, timegrid.Friday,
		},
		TimeRanges:  model.TimeRanges{{Start: "09:00", End: "12:00"}},
		SlotMinutes: model.DefaultSlotMinutes,
	})
	return f
}

func (f *Fixture) user(role model.Role, email, name string, doctorID *uuid.UUID) *model.User {
	u := &model.User{
		Base:        model.NewBase(f.Now),
		Email:       email,
		Role:        role,
		DisplayName: name,
		DoctorID:    doctorID,
	}
	f.Store.PutUser(u)
	return u
}

// AddRule stores rule for doctorID.
func (f *Fixture) AddRule(tb testing.TB, doctorID uuid.UUID, rule *model.AvailabilityRule) {
	tb.Helper()
	rule.Base = model.NewBase(f.Now)
	rule.DoctorID = doctorID
	require.NoError(tb, f.Store.Availability().CreateRule(context.Background(), rule))
}

// Book stores an appointment directly, bypassing validation.
func (f *Fixture) Book(patient *model.User, date, hhmm string, slots int, status model.AppointmentStatus) *model.Appointment {
	start := f.At(date, hhmm)
	apt := &model.Appointment{
		Base:      model.NewBase(f.Now),
		DoctorID:  f.Doctor.ID,
		PatientID: patient.ID,
		StartAt:   start,
		EndAt:     start.Add(time.Duration(slots) * model.BaseSlot),
		Status:    status,
		VisitType: "consultation",
		Patient:   model.PatientSnapshot{FullName: patient.DisplayName, Gender: model.GenderOther, Age: 40},
	}
	f.Store.PutAppointment(apt)
	return apt
}

func (f *Fixture) Clock() func() time.Time {
	return func() time.Time { return f.Now }
}

// At returns the instant of date at hh:mm in the fixture location.
func (f *Fixture) At(date, hhmm string) time.Time {
	m, err := timegrid.TimeToMinutes(hhmm)
	if err != nil {
		panic(err)
	}
	return timegrid.MustParseDate(date).At(m, f.Loc)
}

func Principal(u *model.User) model.Principal {
	return model.Principal{SubjectID: u.ID, Role: u.Role}
}

func DatePtr(s string) *timegrid.Date {
	d := timegrid.MustParseDate(s)
	return &d
}
