package meetings

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classmeet/backend/internal/middleware"
	"github.com/classmeet/backend/internal/models"
	"github.com/classmeet/backend/internal/schedule"
	"github.com/classmeet/backend/pkg/response"
)

// CreateRequest is the body for POST /meetings.
type CreateRequest struct {
	ClassName string `json:"class_name" binding:"required"`
	Date      string `json:"date" binding:"required"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
}

// ParticipantsRequest is the body for allocate and remove.
type ParticipantsRequest struct {
	StudentIDs []string `json:"student_ids" binding:"required,min=1"`
}

// RescheduleRequest is the body for PATCH /meetings/:id/reschedule.
type RescheduleRequest struct {
	Date      *string `json:"date"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
}

// Handler handles meeting HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a meetings handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /meetings (owner or admin).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m, err := h.svc.Create(c.Request.Context(), CreateInput{
		ClassName: req.ClassName,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}, middleware.ActorRole(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, gin.H{"message": "Meeting created successfully", "meeting": NewView(m, h.svc.Now())})
}

// List handles GET /meetings. Students only see meetings they are allocated to.
// Query ?status=Upcoming|Ongoing|Completed filters on the derived status.
func (h *Handler) List(c *gin.Context) {
	var f Filter
	if middleware.ActorRole(c) == models.RoleStudent {
		id := middleware.ActorID(c)
		f.ParticipantID = &id
	}
	want := schedule.Status(c.Query("status"))
	if want != "" && !want.Valid() {
		response.BadRequest(c, "invalid status")
		return
	}
	list, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, Views(list, h.svc.Now(), want))
}

// GetByID handles GET /meetings/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	m, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if middleware.ActorRole(c) == models.RoleStudent && !m.HasParticipant(middleware.ActorID(c)) {
		response.NotFound(c, ErrNotFound.Error())
		return
	}
	response.OK(c, NewView(m, h.svc.Now()))
}

// Allocate handles POST /meetings/:id/allocate.
func (h *Handler) Allocate(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	ids, ok := participantIDs(c)
	if !ok {
		return
	}
	res, err := h.svc.Allocate(c.Request.Context(), id, ids, middleware.ActorRole(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{
		"message":         "Student allocation completed",
		"meeting_id":      id,
		"allocated_count": res.AllocatedCount,
		"email_results":   res.Results,
	})
}

// Remove handles POST /meetings/:id/remove.
func (h *Handler) Remove(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	ids, ok := participantIDs(c)
	if !ok {
		return
	}
	res, err := h.svc.Remove(c.Request.Context(), id, ids, middleware.ActorRole(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{
		"message":       "Students removed",
		"removed_count": res.Count,
		"meeting":       NewView(res.Meeting, h.svc.Now()),
		"email_results": res.Results,
	})
}

// Reschedule handles PATCH /meetings/:id/reschedule.
func (h *Handler) Reschedule(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	var req RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Reschedule(c.Request.Context(), id, RescheduleInput{
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}, middleware.ActorRole(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{
		"message":       "Meeting rescheduled",
		"meeting":       NewView(res.Meeting, h.svc.Now()),
		"email_results": res.Results,
	})
}

// Delete handles DELETE /meetings/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	res, err := h.svc.Delete(c.Request.Context(), id, middleware.ActorRole(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Meeting deleted", "email_results": res.Results})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrInvalidTimeFormat), errors.Is(err, ErrInvalidDateFormat), errors.Is(err, ErrNoValidParticipants):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error("meeting operation failed", zap.Error(err), zap.String("path", c.FullPath()))
		_ = c.Error(err)
		response.Internal(c, "internal error")
	}
}

func meetingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return uuid.Nil, false
	}
	return id, true
}

func participantIDs(c *gin.Context) ([]uuid.UUID, bool) {
	var req ParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "student_ids required")
		return nil, false
	}
	ids := make([]uuid.UUID, 0, len(req.StudentIDs))
	for _, s := range req.StudentIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, true
}
