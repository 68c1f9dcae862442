package meetings

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/classmeet/backend/internal/models"
)

// RecipientStatus is the per-recipient outcome of a notification.
type RecipientStatus string

const (
	RecipientSent             RecipientStatus = "sent"
	RecipientFailed           RecipientStatus = "failed"
	RecipientAlreadyAllocated RecipientStatus = "already_allocated"
)

// RecipientResult reports what happened for one participant.
type RecipientResult struct {
	UserID uuid.UUID       `json:"user_id"`
	Email  string          `json:"student"`
	Status RecipientStatus `json:"status"`
	Error  string          `json:"error,omitempty"`
}

type delivery struct {
	index int
	user  *models.User
}

func alreadyAllocated(u *models.User) RecipientResult {
	return RecipientResult{UserID: u.ID, Email: u.Email, Status: RecipientAlreadyAllocated}
}

// fanOut runs send for every delivery with bounded parallelism and writes each outcome into
// results at the delivery's index. Sends are detached from ctx cancellation; only the
// notifier's own timeout stops them.
func (s *Service) fanOut(ctx context.Context, deliveries []delivery, results []RecipientResult, send func(context.Context, *models.User) error) {
	if len(deliveries) == 0 {
		return
	}
	sendCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, d := range deliveries {
		d := d
		g.Go(func() error {
			r := RecipientResult{UserID: d.user.ID, Email: d.user.Email, Status: RecipientSent}
			if err := send(sendCtx, d.user); err != nil {
				r.Status = RecipientFailed
				r.Error = err.Error()
				s.logger.Warn("notification failed",
					zap.String("user_id", d.user.ID.String()),
					zap.String("email", d.user.Email),
					zap.Error(err),
				)
			}
			results[d.index] = r
			return nil
		})
	}
	_ = g.Wait()
}
