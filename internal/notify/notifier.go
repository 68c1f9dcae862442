package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classmeet/backend/internal/models"
)

// DefaultTimeout bounds a single delivery when none is configured.
const DefaultTimeout = 15 * time.Second

// ErrLogNotFound is returned by Resend for an unknown log id.
var ErrLogNotFound = errors.New("email log not found")

// LogStore records delivery attempts.
type LogStore interface {
	Create(ctx context.Context, l *models.EmailLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.EmailLog, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// EmailNotifier renders meeting notifications and sends them through a Mailer,
// keeping an email_logs row per message.
type EmailNotifier struct {
	mailer  Mailer
	logs    LogStore
	timeout time.Duration
	logger  *zap.Logger
}

// NewEmailNotifier creates a notifier. logs may be nil to skip recording.
func NewEmailNotifier(mailer Mailer, logs LogStore, timeout time.Duration, logger *zap.Logger) *EmailNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &EmailNotifier{mailer: mailer, logs: logs, timeout: timeout, logger: logger}
}

// Send delivers one notification. The returned error is this recipient's failure only.
func (n *EmailNotifier) Send(ctx context.Context, to *models.User, kind models.NotificationType, m *models.Meeting, extra models.NotificationExtra) error {
	subject, html, err := Render(kind, to, m, extra)
	if err != nil {
		return err
	}
	meetingID, userID := m.ID, to.ID
	log := &models.EmailLog{
		MeetingID:      &meetingID,
		UserID:         &userID,
		EmailType:      kind,
		RecipientEmail: to.Email,
		Subject:        subject,
		BodyHTML:       html,
		Status:         models.EmailLogStatusPending,
	}
	if n.logs != nil {
		if err := n.logs.Create(ctx, log); err != nil {
			n.logger.Warn("record email log failed", zap.Error(err), zap.String("recipient", to.Email))
			log.ID = uuid.Nil
		}
	}
	return n.deliver(ctx, log)
}

// Resend delivers a recorded message again using its stored subject and body.
func (n *EmailNotifier) Resend(ctx context.Context, logID uuid.UUID) error {
	if n.logs == nil {
		return ErrLogNotFound
	}
	log, err := n.logs.GetByID(ctx, logID)
	if err != nil {
		return fmt.Errorf("load email log: %w", err)
	}
	if log == nil {
		return ErrLogNotFound
	}
	if log.Status == models.EmailLogStatusSent {
		return nil
	}
	return n.deliver(ctx, log)
}

func (n *EmailNotifier) deliver(ctx context.Context, log *models.EmailLog) error {
	sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	sendErr := n.mailer.Send(sendCtx, log.RecipientEmail, log.Subject, log.BodyHTML)
	if n.logs == nil || log.ID == uuid.Nil {
		return sendErr
	}
	if sendErr != nil {
		if err := n.logs.MarkFailed(ctx, log.ID, sendErr.Error()); err != nil {
			n.logger.Warn("mark email failed", zap.Error(err), zap.String("log_id", log.ID.String()))
		}
		return sendErr
	}
	if err := n.logs.MarkSent(ctx, log.ID); err != nil {
		n.logger.Warn("mark email sent", zap.Error(err), zap.String("log_id", log.ID.String()))
	}
	return nil
}
