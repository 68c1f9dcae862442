package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records every meeting notification attempt. The rendered body is kept so a
// failed message can be resent as-is.
type EmailLog struct {
	ID             uuid.UUID        `json:"id"`
	MeetingID      *uuid.UUID       `json:"meeting_id,omitempty"`
	UserID         *uuid.UUID       `json:"user_id,omitempty"`
	EmailType      NotificationType `json:"email_type"`
	RecipientEmail string           `json:"recipient_email"`
	Subject        string           `json:"subject,omitempty"`
	BodyHTML       string           `json:"-"`
	Status         string           `json:"status"`
	Attempts       int              `json:"attempts"`
	SentAt         *time.Time       `json:"sent_at,omitempty"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}
