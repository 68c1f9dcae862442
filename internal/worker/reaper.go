package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classmeet/backend/internal/meetings"
	"github.com/classmeet/backend/internal/models"
	"github.com/classmeet/backend/internal/schedule"
	"github.com/classmeet/backend/pkg/storage"
)

// MeetingStore is what the reaper needs from the record store.
type MeetingStore interface {
	FindMany(ctx context.Context, f meetings.Filter) ([]*models.Meeting, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status schedule.Status) error
}

// Archiver keeps a copy of a meeting before it is purged.
type Archiver interface {
	PutJSON(ctx context.Context, key string, v interface{}) error
}

// Reaper snapshots derived status for indexing and purges meetings past delete_at.
type Reaper struct {
	store    MeetingStore
	archiver Archiver
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewReaper creates a reaper. archiver may be nil.
func NewReaper(store MeetingStore, archiver Archiver, interval time.Duration, logger *zap.Logger) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{store: store, archiver: archiver, interval: interval, now: time.Now, logger: logger}
}

// SetClock overrides the time source.
func (r *Reaper) SetClock(now func() time.Time) { r.now = now }

// Sweep runs one pass and returns how many meetings were synced and purged.
func (r *Reaper) Sweep(ctx context.Context) (synced, purged int, err error) {
	now := r.now()

	expired, err := r.store.FindMany(ctx, meetings.Filter{DeleteBefore: &now})
	if err != nil {
		return 0, 0, err
	}
	for _, m := range expired {
		if r.archiver != nil {
			if err := r.archiver.PutJSON(ctx, storage.MeetingKey(m.ID.String(), m.Date), meetings.NewView(m, now)); err != nil {
				r.logger.Warn("archive meeting failed, keeping it", zap.String("meeting_id", m.ID.String()), zap.Error(err))
				continue
			}
		}
		if err := r.store.Delete(ctx, m.ID); err != nil {
			r.logger.Warn("purge meeting failed", zap.String("meeting_id", m.ID.String()), zap.Error(err))
			continue
		}
		purged++
	}

	all, err := r.store.FindMany(ctx, meetings.Filter{})
	if err != nil {
		return 0, purged, err
	}
	for _, m := range all {
		if err := r.store.UpdateStatus(ctx, m.ID, m.Status(now)); err != nil {
			r.logger.Warn("status sync failed", zap.String("meeting_id", m.ID.String()), zap.Error(err))
			continue
		}
		synced++
	}
	return synced, purged, nil
}

// Run sweeps every interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		synced, purged, err := r.Sweep(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Error("reaper sweep failed", zap.Error(err))
		} else if purged > 0 {
			r.logger.Info("reaper sweep", zap.Int("synced", synced), zap.Int("purged", purged))
		}
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopping")
			return
		case <-ticker.C:
		}
	}
}
