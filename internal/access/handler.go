package access

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classmeet/backend/internal/models"
	"github.com/classmeet/backend/pkg/response"
)

// MeetingFinder looks up the meeting a link belongs to.
type MeetingFinder interface {
	Find(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
}

// Handler handles access link HTTP endpoints.
type Handler struct {
	store    Store
	meetings MeetingFinder
	logger   *zap.Logger
	now      func() time.Time
}

// NewHandler creates an access link handler.
func NewHandler(store Store, meetings MeetingFinder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, meetings: meetings, logger: logger, now: time.Now}
}

// Validate handles GET /links/:token/validate. A link is accepted once.
func (h *Handler) Validate(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		response.BadRequest(c, "token required")
		return
	}
	ctx := c.Request.Context()

	l, err := h.store.GetByToken(ctx, token)
	if err != nil {
		h.logger.Error("get access link failed", zap.Error(err))
		response.Internal(c, "failed to validate link")
		return
	}
	if l == nil {
		response.NotFound(c, "invalid link")
		return
	}
	if l.UsedAt != nil {
		response.BadRequest(c, "link already used")
		return
	}
	if h.now().After(l.ExpiresAt) {
		response.BadRequest(c, "link expired")
		return
	}

	m, err := h.meetings.Find(ctx, l.MeetingID)
	if err != nil {
		h.logger.Error("find meeting for link failed", zap.Error(err), zap.String("meeting_id", l.MeetingID.String()))
		response.Internal(c, "failed to validate link")
		return
	}
	if m == nil || !m.HasParticipant(l.UserID) {
		response.NotFound(c, "meeting not found")
		return
	}

	ok, err := h.store.MarkUsed(ctx, l)
	if err != nil {
		h.logger.Error("mark access link used failed", zap.Error(err))
		response.Internal(c, "failed to validate link")
		return
	}
	if !ok {
		response.BadRequest(c, "link already used")
		return
	}

	response.OK(c, gin.H{
		"valid":      true,
		"meeting_id": m.ID,
		"user_id":    l.UserID,
		"class_name": m.ClassName,
		"date":       m.Day().String(),
		"start_time": m.StartTime,
		"end_time":   m.EndTime,
	})
}
