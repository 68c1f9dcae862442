package schedule

import "time"

// Status is the lifecycle state of a meeting derived from wall-clock time.
type Status string

const (
	StatusUpcoming  Status = "Upcoming"
	StatusOngoing   Status = "Ongoing"
	StatusCompleted Status = "Completed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUpcoming, StatusOngoing, StatusCompleted:
		return true
	}
	return false
}

// StatusAt derives the status of a meeting on date d ending at endText, as seen at now.
// The meeting counts as started once its day has begun, so the first instant of the day
// is still Upcoming. Both boundaries are built in now's location. An unparsable end time
// yields StatusUpcoming.
func StatusAt(d Date, endText string, now time.Time) Status {
	end, ok := ParseClock(endText)
	if !ok {
		return StatusUpcoming
	}
	loc := now.Location()
	startAt := d.Midnight(loc)
	endAt := d.At(end, loc)
	switch {
	case !now.After(startAt):
		return StatusUpcoming
	case now.After(endAt):
		return StatusCompleted
	default:
		return StatusOngoing
	}
}
