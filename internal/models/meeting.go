package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/classmeet/backend/internal/schedule"
)

// Meeting is a scheduled, time-boxed class meeting.
type Meeting struct {
	ID        uuid.UUID `json:"id"`
	ClassName string    `json:"class_name"`
	// Date holds the calendar day at 00:00; the location carries no meaning.
	Date         time.Time     `json:"date"`
	StartTime    string        `json:"start_time"`
	EndTime      string        `json:"end_time"`
	Duration     int           `json:"duration"`
	DeleteAt     time.Time     `json:"delete_at"`
	Participants []Participant `json:"participants"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Participant links a user to a meeting. The meeting owns only the reference.
type Participant struct {
	UserID  uuid.UUID `json:"user_id"`
	AddedAt time.Time `json:"added_at"`
}

// Day returns the meeting's calendar date.
func (m *Meeting) Day() schedule.Date {
	return schedule.DateOf(m.Date)
}

// Status derives the live status of the meeting at now.
func (m *Meeting) Status(now time.Time) schedule.Status {
	return schedule.StatusAt(m.Day(), m.EndTime, now)
}

// HasParticipant reports whether userID is already allocated.
func (m *Meeting) HasParticipant(userID uuid.UUID) bool {
	for _, p := range m.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// ParticipantIDs returns the allocated user ids in insertion order.
func (m *Meeting) ParticipantIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m.Participants))
	for _, p := range m.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// Clone returns a deep copy so notification snapshots are not affected by later edits.
func (m *Meeting) Clone() *Meeting {
	c := *m
	c.Participants = append([]Participant(nil), m.Participants...)
	return &c
}

// NotificationType identifies the kind of message sent to a participant.
type NotificationType string

const (
	NotificationNew        NotificationType = "new"
	NotificationRemoved    NotificationType = "removed"
	NotificationReschedule NotificationType = "reschedule"
	NotificationCancel     NotificationType = "cancel"
)

// NotificationExtra carries per-recipient data attached to a notification.
type NotificationExtra struct {
	// Link is the one-time access link, set for NotificationNew only.
	Link string
	// Credential is the onboarding password, present on a user's first invitation only.
	Credential string
}
