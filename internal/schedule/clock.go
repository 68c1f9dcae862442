// Package schedule holds the wall-clock arithmetic behind meetings: 12-hour time parsing,
// bounded durations and derived lifecycle status. Everything here is pure and naive
// about time zones.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s?(AM|PM)$`)

// Clock is a 24-hour time of day.
type Clock struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// String formats the clock back into the canonical "H:MM AM|PM" form.
func (c Clock) String() string {
	meridiem := "AM"
	hour := c.Hour
	if hour >= 12 {
		meridiem = "PM"
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d:%02d %s", hour, c.Minute, meridiem)
}

// ParseClock parses a 12-hour clock string such as "9:05 am" or "11:30PM".
// It reports false for anything that does not match exactly, including hour 0,
// hours above 12, minutes above 59, one-digit minutes and a missing meridiem.
func ParseClock(text string) (Clock, bool) {
	m := clockPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(text)))
	if m == nil {
		return Clock{}, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return Clock{}, false
	}
	switch {
	case m[3] == "PM" && hour < 12:
		hour += 12
	case m[3] == "AM" && hour == 12:
		hour = 0
	}
	return Clock{Hour: hour, Minute: minute}, true
}
