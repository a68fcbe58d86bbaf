// Package slot turns a doctor's availability and bookings into the weekly grid
// shown to patients and doctors.
package slot

import (
	"time"

	"github.com/google/uuid"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/service/availability"
	"github.com/medbook/booking-api/pkg/timegrid"
)

const daysPerWeek = 7

// Params describes one grid computation.
type Params struct {
	DoctorID    uuid.UUID
	WeekStart   timegrid.Date
	SlotMinutes int
	Now         time.Time
	Location    *time.Location
}

// Project builds the week grid. appointments must already be restricted to
// active statuses; any order is accepted.
func Project(p Params, res *availability.Resolver, appointments []*model.Appointment) *model.WeekGrid {
	grid := &model.WeekGrid{
		DoctorID:    p.DoctorID,
		WeekStart:   p.WeekStart,
		SlotMinutes: p.SlotMinutes,
		TimeAxis:    []string{},
		Days:        []model.GridDay{},
	}

	dates := make([]timegrid.Date, daysPerWeek)
	ranges := make([][]timegrid.Range, daysPerWeek)
	globalMin, globalMax := timegrid.MinutesPerDay, -1
	for i := range dates {
		dates[i] = p.WeekStart.AddDays(i)
		ranges[i] = res.OpenRanges(dates[i])
		for _, r := range ranges[i] {
			if r.Start < globalMin {
				globalMin = r.Start
			}
			if r.End > globalMax {
				globalMax = r.End
			}
		}
	}
	if globalMax < 0 {
		return grid
	}

	var axis []int
	for m := globalMin; m+p.SlotMinutes <= globalMax; m += p.SlotMinutes {
		axis = append(axis, m)
		grid.TimeAxis = append(grid.TimeAxis, timegrid.MinutesToTime(m))
	}

	today := timegrid.DateOf(p.Now.In(p.Location))
	for i, date := range dates {
		day := model.GridDay{
			Date:      date,
			DayOfWeek: date.Weekday(),
			IsToday:   date == today,
			IsAbsent:  res.IsAbsent(date),
			Cells:     make([]model.SlotCell, 0, len(axis)),
		}
		for _, a := range appointments {
			if timegrid.DateOf(a.StartAt.In(p.Location)) == date {
				day.BookedCount++
			}
		}

		for _, m := range axis {
			start := date.At(m, p.Location)
			end := date.At(m+p.SlotMinutes, p.Location)
			cell := model.SlotCell{
				Time:   timegrid.MinutesToTime(m),
				IsPast: end.Before(p.Now),
			}

			switch {
			case !insideAny(ranges[i], m, m+p.SlotMinutes):
				cell.Status = model.SlotUnavailable
			case day.IsAbsent:
				cell.Status = model.SlotAbsent
			default:
				if apt := latestOverlap(appointments, start, end); apt != nil {
					cell.Status = model.SlotBooked
					id := apt.ID
					visitType := apt.VisitType
					snapshot := apt.Patient
					cell.AppointmentID = &id
					cell.VisitType = &visitType
					cell.PatientSnapshot = &snapshot
					cell.NotesForDoctor = apt.NotesForDoctor
				} else {
					cell.Status = model.SlotFree
				}
			}
			day.Cells = append(day.Cells, cell)
		}
		grid.Days = append(grid.Days, day)
	}
	return grid
}

func insideAny(ranges []timegrid.Range, start, end int) bool {
	for _, r := range ranges {
		if r.Contains(start, end) {
			return true
		}
	}
	return false
}

// latestOverlap picks the latest-starting appointment overlapping the cell,
// independent of input order.
func latestOverlap(appointments []*model.Appointment, start, end time.Time) *model.Appointment {
	var found *model.Appointment
	for _, a := range appointments {
		if !timegrid.OverlapsTime(start, end, a.StartAt, a.EndAt) {
			continue
		}
		if found == nil || !a.StartAt.Before(found.StartAt) {
			found = a
		}
	}
	return found
}
