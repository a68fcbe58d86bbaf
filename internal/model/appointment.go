package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusReserved  AppointmentStatus = "RESERVED"
	AppointmentStatusConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentStatusCancelled AppointmentStatus = "CANCELLED"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
)

// ActiveStatuses occupy the doctor's time.
var ActiveStatuses = []AppointmentStatus{
	AppointmentStatusReserved,
	AppointmentStatusConfirmed,
	AppointmentStatusCompleted,
}

// CancellableStatuses may still be cancelled by the patient or an absence.
var CancellableStatuses = []AppointmentStatus{
	AppointmentStatusReserved,
	AppointmentStatusConfirmed,
}

func (s AppointmentStatus) In(set []AppointmentStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// BaseSlot is the unit reservations are sized in.
const BaseSlot = 30 * time.Minute

type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderOther  Gender = "OTHER"
)

// PatientSnapshot is copied onto the appointment at booking time and never
// changes afterwards.
type PatientSnapshot struct {
	FullName string `json:"full_name" binding:"required,min=2"`
	Gender   Gender `json:"gender" binding:"required,oneof=M F OTHER"`
	Age      int    `json:"age" binding:"min=0,max=120"`
}

func (p PatientSnapshot) Value() (driver.Value, error) {
	return jsonValue(p)
}

func (p *PatientSnapshot) Scan(src interface{}) error {
	return scanJSON(src, p)
}

type Appointment struct {
	Base
	DoctorID       uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	PatientID      uuid.UUID         `db:"patient_id" json:"patient_id"`
	StartAt        time.Time         `db:"start_at" json:"start_at"`
	EndAt          time.Time         `db:"end_at" json:"end_at"`
	Status         AppointmentStatus `db:"status" json:"status"`
	VisitType      string            `db:"visit_type" json:"visit_type"`
	Patient        PatientSnapshot   `db:"patient_snapshot" json:"patient_snapshot"`
	NotesForDoctor *string           `db:"notes_for_doctor" json:"notes_for_doctor,omitempty"`
	CancelReason   *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
}

type ReserveRequest struct {
	DoctorID       uuid.UUID       `json:"doctor_id" binding:"required"`
	StartAt        string          `json:"start_at" binding:"required,min=16"`
	DurationSlots  int             `json:"duration_slots" binding:"required,min=1,max=24"`
	VisitType      string          `json:"visit_type" binding:"required,min=2"`
	Patient        PatientSnapshot `json:"patient_snapshot" binding:"required"`
	NotesForDoctor *string         `json:"notes_for_doctor,omitempty" binding:"omitempty,max=2000"`
}

// AppointmentCancelledEvent is published for every appointment cancelled by
// a doctor absence.
type AppointmentCancelledEvent struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	StartAt       time.Time `json:"start_at"`
	Reason        string    `json:"reason"`
}

const EventAppointmentCancelled = "appointment.cancelled"
