package schedule

// MaxDurationMinutes caps every derived meeting duration.
const MaxDurationMinutes = 120

const minutesPerDay = 24 * 60

// Duration returns the minutes between start and end, treating an end earlier than
// the start as the next day. Spans longer than MaxDurationMinutes are truncated.
// It returns 0 when either text fails to parse, which callers must not read as a
// real zero-length meeting.
func Duration(startText, endText string) int {
	start, ok := ParseClock(startText)
	if !ok {
		return 0
	}
	end, ok := ParseClock(endText)
	if !ok {
		return 0
	}
	return Span(start, end)
}

// Span is Duration for already parsed clocks.
func Span(start, end Clock) int {
	s, e := start.Minutes(), end.Minutes()
	d := e - s
	if e < s {
		d = minutesPerDay - s + e
	}
	if d > MaxDurationMinutes {
		d = MaxDurationMinutes
	}
	return d
}
