package model

import (
	"database/sql/driver"

	"github.com/google/uuid"

	"github.com/medbook/booking-api/pkg/timegrid"
)

type RuleKind string

const (
	RuleKindRecurring RuleKind = "RECURRING"
	RuleKindOneTime   RuleKind = "ONE_TIME"
)

const (
	DefaultSlotMinutes = 30
	MinSlotMinutes     = 10
	MaxSlotMinutes     = 60
)

// TimeRange is a pair of "HH:MM" wall-clock times.
type TimeRange struct {
	Start string `json:"start" binding:"required,hhmm"`
	End   string `json:"end" binding:"required,hhmm"`
}

// Minutes converts the pair to a minute range.
func (t TimeRange) Minutes() (timegrid.Range, error) {
	start, err := timegrid.TimeToMinutes(t.Start)
	if err != nil {
		return timegrid.Range{}, err
	}
	end, err := timegrid.TimeToMinutes(t.End)
	if err != nil {
		return timegrid.Range{}, err
	}
	return timegrid.Range{Start: start, End: end}, nil
}

type TimeRanges []TimeRange

func (t TimeRanges) Value() (driver.Value, error) {
	return jsonValue(t)
}

func (t *TimeRanges) Scan(src interface{}) error {
	return scanJSON(src, t)
}

type Weekdays []timegrid.Weekday

func (w Weekdays) Value() (driver.Value, error) {
	return jsonValue(w)
}

func (w *Weekdays) Scan(src interface{}) error {
	return scanJSON(src, w)
}

func (w Weekdays) Contains(d timegrid.Weekday) bool {
	for _, v := range w {
		if v == d {
			return true
		}
	}
	return false
}

// AvailabilityRule opens the doctor's calendar either on a weekly pattern
// between two dates or on one specific date. Rules are never edited.
type AvailabilityRule struct {
	Base
	DoctorID    uuid.UUID      `db:"doctor_id" json:"doctor_id"`
	Kind        RuleKind       `db:"kind" json:"kind"`
	DateFrom    *timegrid.Date `db:"date_from" json:"date_from,omitempty"`
	DateTo      *timegrid.Date `db:"date_to" json:"date_to,omitempty"`
	DaysOfWeek  Weekdays       `db:"days_of_week" json:"days_of_week,omitempty"`
	Date        *timegrid.Date `db:"rule_date" json:"date,omitempty"`
	TimeRanges  TimeRanges     `db:"time_ranges" json:"time_ranges"`
	SlotMinutes int            `db:"slot_minutes" json:"slot_minutes"`
}

// Absence blocks every day from DateFrom to DateTo inclusive.
type Absence struct {
	Base
	DoctorID uuid.UUID     `db:"doctor_id" json:"doctor_id"`
	DateFrom timegrid.Date `db:"date_from" json:"date_from"`
	DateTo   timegrid.Date `db:"date_to" json:"date_to"`
	Reason   *string       `db:"reason" json:"reason,omitempty"`
}

type CreateRuleRequest struct {
	Kind        RuleKind    `json:"kind" binding:"required,oneof=RECURRING ONE_TIME"`
	DateFrom    *string     `json:"date_from,omitempty" binding:"omitempty,ymd"`
	DateTo      *string     `json:"date_to,omitempty" binding:"omitempty,ymd"`
	DaysOfWeek  []int       `json:"days_of_week,omitempty" binding:"omitempty,dive,min=1,max=7"`
	Date        *string     `json:"date,omitempty" binding:"omitempty,ymd"`
	TimeRanges  []TimeRange `json:"time_ranges" binding:"required,min=1,dive"`
	SlotMinutes *int        `json:"slot_minutes,omitempty" binding:"omitempty,min=10,max=60"`
}

type CreateAbsenceRequest struct {
	DateFrom string  `json:"date_from" binding:"required,ymd"`
	DateTo   string  `json:"date_to" binding:"required,ymd"`
	Reason   *string `json:"reason,omitempty" binding:"omitempty,max=500"`
}

// AbsenceResult reports how many visits an absence cancelled.
type AbsenceResult struct {
	Absence   *Absence `json:"absence"`
	Cancelled int      `json:"cancelled_appointments"`
}

// DoctorSchedule is the raw availability of a doctor.
type DoctorSchedule struct {
	DoctorID uuid.UUID           `json:"doctor_id"`
	Rules    []*AvailabilityRule `json:"rules"`
	Absences []*Absence          `json:"absences"`
}
