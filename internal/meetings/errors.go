package meetings

import "errors"

var (
	// ErrUnauthorized is returned when the actor's role may not perform the operation.
	ErrUnauthorized = errors.New("not authorized")
	// ErrNotFound is returned when the referenced meeting does not exist.
	ErrNotFound = errors.New("meeting not found")
	// ErrInvalidTimeFormat is returned for start/end text that is not "H:MM AM|PM".
	ErrInvalidTimeFormat = errors.New("invalid time format")
	// ErrInvalidDateFormat is returned for date text that is not "YYYY-MM-DD".
	ErrInvalidDateFormat = errors.New("invalid date format")
	// ErrNoValidParticipants is returned when no requested id resolves to a student.
	ErrNoValidParticipants = errors.New("no valid students found")
)
