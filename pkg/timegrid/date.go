package timegrid

import (
	"database/sql/driver"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day in the fixed-width YYYY-MM-DD form. Because the form
// is fixed width, string order equals chronological order; only values built
// by ParseDate or DateOf are guaranteed to be well formed.
type Date string

// ParseDate validates s as a real calendar date.
func ParseDate(s string) (Date, error) {
	if len(s) != len(dateLayout) {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(s), nil
}

// MustParseDate panics on malformed input. Intended for constants and tests.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

func (d Date) String() string {
	return string(d)
}

// Valid reports whether d is a well-formed calendar date.
func (d Date) Valid() bool {
	_, err := ParseDate(string(d))
	return err == nil
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	t, err := time.ParseInLocation(dateLayout, string(d), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// At returns the instant minutes after midnight of d in loc.
func (d Date) At(minutes int, loc *time.Location) time.Time {
	t := d.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, minutes, 0, 0, loc)
}

// AddDays moves d by n calendar days.
func (d Date) AddDays(n int) Date {
	t := d.In(time.UTC)
	return DateOf(t.AddDate(0, 0, n))
}

// Weekday returns the ISO weekday of d.
func (d Date) Weekday() Weekday {
	return WeekdayOf(d.In(time.UTC))
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	return d < o
}

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool {
	return d > o
}

// Within reports whether from <= d <= to.
func (d Date) Within(from, to Date) bool {
	return from <= d && d <= to
}

// MondayOf returns the Monday starting the week that contains d.
func MondayOf(d Date) Date {
	return d.AddDays(-(int(d.Weekday()) - 1))
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case time.Time:
		*d = DateOf(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return string(d), nil
}
