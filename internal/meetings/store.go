package meetings

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/classmeet/backend/internal/models"
)

// Filter narrows FindMany. Zero value matches every meeting.
type Filter struct {
	// DeleteBefore matches meetings whose delete_at is at or before the instant.
	DeleteBefore *time.Time
	// ParticipantID matches meetings the user is allocated to.
	ParticipantID *uuid.UUID
}

// Store is the durable record store for meetings. Find returns nil, nil when absent.
// Save inserts when ID is uuid.Nil (assigning it) and replaces the record otherwise,
// keeping participant ids unique.
type Store interface {
	Find(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
	FindMany(ctx context.Context, f Filter) ([]*models.Meeting, error)
	Save(ctx context.Context, m *models.Meeting) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Directory resolves participant references against the user system.
// ClaimOnboardingCredential atomically clears and returns a pending credential, or "" when
// none is pending. RestoreOnboardingCredential puts back one whose delivery failed.
type Directory interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.User, error)
	ClaimOnboardingCredential(ctx context.Context, userID uuid.UUID) (string, error)
	RestoreOnboardingCredential(ctx context.Context, userID uuid.UUID, credential string) error
}

// Notifier delivers one typed notification to one participant. A returned error is a
// delivery failure for that recipient only.
type Notifier interface {
	Send(ctx context.Context, to *models.User, kind models.NotificationType, meeting *models.Meeting, extra models.NotificationExtra) error
}

// LinkIssuer creates a fresh one-time access link for a participant.
type LinkIssuer interface {
	Issue(ctx context.Context, meeting *models.Meeting, userID uuid.UUID) (string, error)
}

// Publisher broadcasts meeting events to live subscribers.
type Publisher interface {
	PublishMeetingEvent(meetingID uuid.UUID, event string, payload interface{})
}

// Event names published after each mutation.
const (
	EventParticipantsChanged = "meeting.participants_changed"
	EventRescheduled         = "meeting.rescheduled"
	EventCancelled           = "meeting.cancelled"
)
