package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classmeet/backend/internal/notify"
	"github.com/classmeet/backend/pkg/queue"
)

// JobQueue is the queue the email processor drains.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Resender delivers a recorded email again.
type Resender interface {
	Resend(ctx context.Context, logID uuid.UUID) error
}

// EmailProcessor processes email resend jobs from the queue.
type EmailProcessor struct {
	resender Resender
	queue    JobQueue
	backoff  time.Duration
	logger   *zap.Logger
}

// NewEmailProcessor creates an email resend processor.
func NewEmailProcessor(resender Resender, q JobQueue, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{resender: resender, queue: q, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmailResend {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailResendPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	err := p.resender.Resend(ctx, payload.LogID)
	if errors.Is(err, notify.ErrLogNotFound) {
		p.logger.Warn("email log gone, dropping job", zap.String("log_id", payload.LogID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("resend %s: %w", payload.LogID, err)
	}
	p.logger.Info("email resent", zap.String("log_id", payload.LogID.String()), zap.String("meeting_id", payload.MeetingID.String()))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(context.WithoutCancel(ctx), job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
