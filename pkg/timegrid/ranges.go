// Package timegrid holds the calendar and minute-of-day arithmetic shared by
// availability resolution, slot projection and reservation checks.
package timegrid

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

const MinutesPerDay = 24 * 60

// Range is a half-open interval of minutes after midnight.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether [start, end] lies inside r.
func (r Range) Contains(start, end int) bool {
	return start >= r.Start && end <= r.End
}

// TimeToMinutes converts "HH:MM" to minutes after midnight.
func TimeToMinutes(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(s[3:])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// MinutesToTime formats minutes after midnight as zero-padded "HH:MM".
func MinutesToTime(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// MinuteOfDay returns the minutes elapsed since midnight of t in t's location.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// MergeRanges drops empty or inverted ranges and coalesces the rest, so the
// result is sorted, disjoint and never touching.
func MergeRanges(ranges []Range) []Range {
	valid := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.End > r.Start {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return []Range{}
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].Start < valid[j].Start })

	merged := []Range{valid[0]}
	for _, r := range valid[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// Overlaps tests half-open intervals, so back-to-back intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// OverlapsTime is Overlaps for instants.
func OverlapsTime(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
