// Package memory keeps every repository in process memory behind one mutex.
// It backs the "memory" database driver and the service tests.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/repository"
)

type Store struct {
	mu           sync.RWMutex
	doctors      map[uuid.UUID]*model.Doctor
	users        map[uuid.UUID]*model.User
	rules        map[uuid.UUID]*model.AvailabilityRule
	absences     map[uuid.UUID]*model.Absence
	appointments map[uuid.UUID]*model.Appointment
	reviews      map[uuid.UUID]*model.Review
	outbox       []*model.OutboxEvent

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		doctors:      make(map[uuid.UUID]*model.Doctor),
		users:        make(map[uuid.UUID]*model.User),
		rules:        make(map[uuid.UUID]*model.AvailabilityRule),
		absences:     make(map[uuid.UUID]*model.Absence),
		appointments: make(map[uuid.UUID]*model.Appointment),
		reviews:      make(map[uuid.UUID]*model.Review),
		now:          time.Now,
	}
}

// SetClock replaces the time source used to stamp updated rows.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Doctors() repository.DoctorRepository           { return &doctorRepository{s} }
func (s *Store) Users() repository.UserRepository               { return &userRepository{s} }
func (s *Store) Availability() repository.AvailabilityRepository { return &availabilityRepository{s} }
func (s *Store) Appointments() repository.AppointmentRepository { return &appointmentRepository{s} }
func (s *Store) Reviews() repository.ReviewRepository           { return &reviewRepository{s} }
func (s *Store) Outbox() repository.OutboxRepository            { return &outboxRepository{s} }

// PutDoctor inserts or replaces a doctor profile.
func (s *Store) PutDoctor(d *model.Doctor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.doctors[d.ID] = &cp
}

// PutUser inserts or replaces a user.
func (s *Store) PutUser(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = cloneUser(u)
}

// PutAppointment stores an appointment as is, bypassing reservation checks.
func (s *Store) PutAppointment(a *model.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments[a.ID] = cloneAppointment(a)
}

func cloneUser(u *model.User) *model.User {
	cp := *u
	if u.DoctorID != nil {
		id := *u.DoctorID
		cp.DoctorID = &id
	}
	return &cp
}

func cloneAppointment(a *model.Appointment) *model.Appointment {
	cp := *a
	if a.NotesForDoctor != nil {
		v := *a.NotesForDoctor
		cp.NotesForDoctor = &v
	}
	if a.CancelReason != nil {
		v := *a.CancelReason
		cp.CancelReason = &v
	}
	return &cp
}

func cloneRule(r *model.AvailabilityRule) *model.AvailabilityRule {
	cp := *r
	cp.DaysOfWeek = append(model.Weekdays(nil), r.DaysOfWeek...)
	cp.TimeRanges = append(model.TimeRanges(nil), r.TimeRanges...)
	return &cp
}

func cloneAbsence(a *model.Absence) *model.Absence {
	cp := *a
	return &cp
}

func cloneReview(r *model.Review) *model.Review {
	cp := *r
	return &cp
}

// OutboxEvents returns a snapshot of the outbox in insertion order.
func (s *Store) OutboxEvents() []model.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.OutboxEvent, 0, len(s.outbox))
	for _, e := range s.outbox {
		out = append(out, *e)
	}
	return out
}
