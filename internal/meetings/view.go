package meetings

import (
	"time"

	"github.com/google/uuid"

	"github.com/classmeet/backend/internal/models"
	"github.com/classmeet/backend/internal/schedule"
)

// View is a meeting as returned by the read path, with its live status.
type View struct {
	ID           uuid.UUID            `json:"id"`
	ClassName    string               `json:"class_name"`
	Date         string               `json:"date"`
	StartTime    string               `json:"start_time"`
	EndTime      string               `json:"end_time"`
	Duration     int                  `json:"duration"`
	DeleteAt     time.Time            `json:"delete_at"`
	Status       schedule.Status      `json:"status"`
	Participants []models.Participant `json:"participants"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// NewView derives the status of m at now.
func NewView(m *models.Meeting, now time.Time) View {
	participants := m.Participants
	if participants == nil {
		participants = []models.Participant{}
	}
	return View{
		ID:           m.ID,
		ClassName:    m.ClassName,
		Date:         m.Day().String(),
		StartTime:    m.StartTime,
		EndTime:      m.EndTime,
		Duration:     m.Duration,
		DeleteAt:     m.DeleteAt,
		Status:       m.Status(now),
		Participants: participants,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// Views derives statuses for a list, keeping only those equal to want when it is non-empty.
func Views(list []*models.Meeting, now time.Time, want schedule.Status) []View {
	out := make([]View, 0, len(list))
	for _, m := range list {
		v := NewView(m, now)
		if want != "" && v.Status != want {
			continue
		}
		out = append(out, v)
	}
	return out
}
