package gym

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DAY BUCKET - calendar day in a fixed location
// =============================================================================

// DayLayout is the wire and storage format of a day key.
const DayLayout = "2006-01-02"

// Day is a calendar day in a location. Every attendance record belongs to
// exactly one Day; time of day is discarded. The calendar parts are the
// identity of the bucket, so a day whose midnight is skipped by a DST change
// still keeps its own date.
type Day struct {
	year  int
	month time.Month
	day   int
	loc   *time.Location
}

func newDay(year int, month time.Month, day int, loc *time.Location) Day {
	if loc == nil {
		loc = time.Local
	}
	// normalize overflow such as January 32 without touching the zone
	y, m, d := time.Date(year, month, day, 12, 0, 0, 0, time.UTC).Date()
	return Day{year: y, month: m, day: d, loc: loc}
}

// DayOf returns the day bucket containing t, as seen from loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return newDay(y, m, d, loc)
}

// NewDay builds a day from its calendar parts.
func NewDay(year int, month time.Month, day int, loc *time.Location) Day {
	return newDay(year, month, day, loc)
}

// ParseDay accepts "YYYY-MM-DD" or a full RFC 3339 timestamp. Timestamps are
// converted to loc before truncation so that "2024-03-01T23:30:00-05:00"
// lands in the bucket the local calendar shows.
func ParseDay(raw string, loc *time.Location) (Day, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(DayLayout, raw); err == nil {
		y, m, d := t.Date()
		return newDay(y, m, d, loc), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return DayOf(t, loc), nil
	}
	return Day{}, &ValidationError{
		Field:   "date",
		Message: fmt.Sprintf("Invalid date %q (use YYYY-MM-DD)", raw),
	}
}

// Start is the first instant of the bucket: local midnight, or the end of
// the DST gap when midnight does not exist.
func (d Day) Start() time.Time {
	t := time.Date(d.year, d.month, d.day, 0, 0, 0, 0, d.loc)
	if y, m, dd := t.Date(); y != d.year || m != d.month || dd != d.day {
		_, t = t.ZoneBounds()
	}
	return t
}

// AddDays moves by whole calendar days.
func (d Day) AddDays(n int) Day {
	return newDay(d.year, d.month, d.day+n, d.loc)
}

func (d Day) Key() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.year, int(d.month), d.day)
}

func (d Day) Weekday() time.Weekday {
	return time.Date(d.year, d.month, d.day, 12, 0, 0, 0, time.UTC).Weekday()
}

func (d Day) Location() *time.Location { return d.loc }
func (d Day) IsZero() bool             { return d.month == 0 }
func (d Day) String() string           { return d.Key() }

func (d Day) Equal(other Day) bool  { return d.Key() == other.Key() }
func (d Day) Before(other Day) bool { return d.Key() < other.Key() }
func (d Day) After(other Day) bool  { return d.Key() > other.Key() }

// DayRange is an inclusive span of day buckets. A zero bound is open.
type DayRange struct {
	From Day
	To   Day
}

// Validate rejects ranges whose end precedes their start.
func (r DayRange) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return &ValidationError{Field: "endDate", Message: "endDate must not be before startDate"}
	}
	return nil
}
