// Package analytics serves aggregate meeting figures.
package analytics

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/classmeet/backend/internal/meetings"
	"github.com/classmeet/backend/internal/models"
	"github.com/classmeet/backend/internal/schedule"
	"github.com/classmeet/backend/pkg/response"
)

// MeetingLister is the meeting read path.
type MeetingLister interface {
	FindMany(ctx context.Context, f meetings.Filter) ([]*models.Meeting, error)
}

// EmailCounter returns delivery totals by status.
type EmailCounter interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// Summary is the JSON shape for GET /meetings/summary.
type Summary struct {
	TotalMeetings     int                     `json:"total_meetings"`
	ByStatus          map[schedule.Status]int `json:"by_status"`
	TotalParticipants int                     `json:"total_participants"`
	AvgDuration       float64                 `json:"avg_duration_minutes"`
	EmailsSent        int                     `json:"emails_sent"`
	EmailsFailed      int                     `json:"emails_failed"`
	EmailsPending     int                     `json:"emails_pending"`
}

// Summarize derives statuses at now and aggregates the list.
func Summarize(list []*models.Meeting, emails map[string]int, now time.Time) Summary {
	s := Summary{
		TotalMeetings: len(list),
		ByStatus: map[schedule.Status]int{
			schedule.StatusUpcoming:  0,
			schedule.StatusOngoing:   0,
			schedule.StatusCompleted: 0,
		},
		EmailsSent:    emails[models.EmailLogStatusSent],
		EmailsFailed:  emails[models.EmailLogStatusFailed],
		EmailsPending: emails[models.EmailLogStatusPending],
	}
	minutes := 0
	for _, m := range list {
		s.ByStatus[m.Status(now)]++
		s.TotalParticipants += len(m.Participants)
		minutes += m.Duration
	}
	if len(list) > 0 {
		s.AvgDuration = float64(minutes) / float64(len(list))
	}
	return s
}

// Handler handles GET /meetings/summary.
type Handler struct {
	meetings MeetingLister
	emails   EmailCounter
	now      func() time.Time
	logger   *zap.Logger
}

// NewHandler creates an analytics handler. emails may be nil.
func NewHandler(m MeetingLister, emails EmailCounter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{meetings: m, emails: emails, now: time.Now, logger: logger}
}

// Summary handles GET /meetings/summary (owner or admin).
func (h *Handler) Summary(c *gin.Context) {
	ctx := c.Request.Context()
	list, err := h.meetings.FindMany(ctx, meetings.Filter{})
	if err != nil {
		h.logger.Error("summary: list meetings failed", zap.Error(err))
		response.Internal(c, "failed to load summary")
		return
	}
	var counts map[string]int
	if h.emails != nil {
		if counts, err = h.emails.CountByStatus(ctx); err != nil {
			h.logger.Error("summary: count emails failed", zap.Error(err))
			response.Internal(c, "failed to load summary")
			return
		}
	}
	response.OK(c, Summarize(list, counts, h.now()))
}
