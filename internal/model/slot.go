package model

import (
	"github.com/google/uuid"

	"github.com/medbook/booking-api/pkg/timegrid"
)

type SlotStatus string

const (
	SlotFree        SlotStatus = "FREE"
	SlotBooked      SlotStatus = "BOOKED"
	SlotAbsent      SlotStatus = "ABSENT"
	SlotUnavailable SlotStatus = "UNAVAILABLE"
)

type SlotCell struct {
	Time            string           `json:"time"`
	Status          SlotStatus       `json:"status"`
	IsPast          bool             `json:"is_past"`
	AppointmentID   *uuid.UUID       `json:"appointment_id,omitempty"`
	VisitType       *string          `json:"visit_type,omitempty"`
	PatientSnapshot *PatientSnapshot `json:"patient_snapshot,omitempty"`
	NotesForDoctor  *string          `json:"notes_for_doctor,omitempty"`
}

type GridDay struct {
	Date        timegrid.Date    `json:"date"`
	DayOfWeek   timegrid.Weekday `json:"dow"`
	IsToday     bool             `json:"is_today"`
	IsAbsent    bool             `json:"is_absent"`
	BookedCount int              `json:"booked_count"`
	Cells       []SlotCell       `json:"cells"`
}

type WeekGrid struct {
	DoctorID    uuid.UUID     `json:"doctor_id"`
	WeekStart   timegrid.Date `json:"week_start"`
	SlotMinutes int           `json:"slot_minutes"`
	TimeAxis    []string      `json:"time_axis"`
	Days        []GridDay     `json:"days"`
}

// Redact strips booking details so the grid only shows occupancy.
func (g *WeekGrid) Redact() {
	for d := range g.Days {
		for c := range g.Days[d].Cells {
			cell := &g.Days[d].Cells[c]
			cell.AppointmentID = nil
			cell.VisitType = nil
			cell.PatientSnapshot = nil
			cell.NotesForDoctor = nil
		}
	}
}

// SlotQuery carries the optional week view parameters.
type SlotQuery struct {
	WeekStart   string `form:"weekStart" binding:"omitempty,ymd"`
	SlotMinutes int    `form:"slotMinutes" binding:"omitempty,min=10,max=60"`
}
