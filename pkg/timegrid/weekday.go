package timegrid

import (
	"fmt"
	"time"
)

// Weekday numbers days the way availability rules store them: Monday is 1 and
// Sunday is 7.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// WeekdayOf returns the day of week of t in t's own location.
func WeekdayOf(t time.Time) Weekday {
	wd := t.Weekday()
	if wd == time.Sunday {
		return Sunday
	}
	return Weekday(wd)
}

// ParseWeekday accepts the numeric form 1..7.
func ParseWeekday(n int) (Weekday, error) {
	w := Weekday(n)
	if !w.Valid() {
		return 0, fmt.Errorf("invalid day of week %d: expected 1..7", n)
	}
	return w, nil
}

func (w Weekday) Valid() bool {
	return w >= Monday && w <= Sunday
}

func (w Weekday) String() string {
	if !w.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	return weekdayNames[w]
}
