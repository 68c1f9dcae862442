package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is a naive calendar date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses "YYYY-MM-DD" made of three dash-separated positive integers.
// Components are not required to be zero padded, but must name a real calendar day.
func ParseDate(text string) (Date, bool) {
	parts := strings.Split(strings.TrimSpace(text), "-")
	if len(parts) != 3 {
		return Date{}, false
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v <= 0 {
			return Date{}, false
		}
		n[i] = v
	}
	d := Date{Year: n[0], Month: time.Month(n[1]), Day: n[2]}
	t := d.Midnight(time.UTC)
	if t.Year() != d.Year || t.Month() != d.Month || t.Day() != d.Day {
		return Date{}, false
	}
	return d, true
}

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Midnight returns 00:00 of the date in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// At returns the date at the given clock time in loc.
func (d Date) At(c Clock, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, loc)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// EndAt returns the instant a meeting on d from start to end finishes. An end earlier than
// the start falls on the following day, matching Span.
func EndAt(d Date, start, end Clock, loc *time.Location) time.Time {
	t := d.At(end, loc)
	if end.Minutes() < start.Minutes() {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// DeleteAt returns the purge instant for a meeting: one minute past EndAt.
func DeleteAt(d Date, start, end Clock, loc *time.Location) time.Time {
	return EndAt(d, start, end, loc).Add(time.Minute)
}
