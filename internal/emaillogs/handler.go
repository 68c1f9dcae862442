package emaillogs

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classmeet/backend/internal/models"
	"github.com/classmeet/backend/pkg/queue"
	"github.com/classmeet/backend/pkg/response"
)

// Lister reads email logs.
type Lister interface {
	ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]*models.EmailLog, error)
}

// Enqueuer hands resend jobs to the worker.
type Enqueuer interface {
	EnqueueEmailResend(ctx context.Context, payload queue.EmailResendPayload) error
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo   Lister
	queue  Enqueuer
	logger *zap.Logger
}

// NewHandler creates an email logs handler. q may be nil when no worker is deployed.
func NewHandler(repo Lister, q Enqueuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, queue: q, logger: logger}
}

// ListByMeeting handles GET /meetings/:id/emails.
func (h *Handler) ListByMeeting(c *gin.Context) {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	logs, err := h.repo.ListByMeeting(c.Request.Context(), meetingID)
	if err != nil {
		h.logger.Error("list email logs failed", zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}
	if logs == nil {
		logs = []*models.EmailLog{}
	}
	response.OK(c, logs)
}

// ResendRequest is the body for POST /meetings/:id/emails/resend. Without log_ids every
// failed log of the meeting is queued.
type ResendRequest struct {
	LogIDs []string `json:"log_ids"`
}

// Resend handles POST /meetings/:id/emails/resend.
func (h *Handler) Resend(c *gin.Context) {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	if h.queue == nil {
		response.ServiceUnavailable(c, "email worker not configured")
		return
	}
	var req ResendRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	ctx := c.Request.Context()
	logs, err := h.repo.ListByMeeting(ctx, meetingID)
	if err != nil {
		h.logger.Error("list email logs failed", zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}

	wanted := make(map[uuid.UUID]bool, len(req.LogIDs))
	for _, s := range req.LogIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid log id: "+s)
			return
		}
		wanted[id] = true
	}

	queued := 0
	for _, l := range logs {
		if l.Status == models.EmailLogStatusSent {
			continue
		}
		if len(wanted) > 0 && !wanted[l.ID] {
			continue
		}
		if err := h.queue.EnqueueEmailResend(ctx, queue.EmailResendPayload{LogID: l.ID, MeetingID: meetingID}); err != nil {
			h.logger.Error("enqueue email resend failed", zap.Error(err), zap.String("log_id", l.ID.String()))
			response.Internal(c, "failed to queue resend")
			return
		}
		queued++
	}
	response.Accepted(c, gin.H{"message": "resend queued", "queued": queued})
}
