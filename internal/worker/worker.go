package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/mailer"
	"github.com/learnhub/backend/pkg/queue"
)

const dequeueTimeout = 5 * time.Second

// ErrPermanent marks a job that will never succeed; it is dropped instead of retried.
var ErrPermanent = errors.New("permanent job failure")

// JobSource is the queue the processor drains.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// LogRecorder persists delivery outcomes.
type LogRecorder interface {
	Create(ctx context.Context, el *models.EmailLog) error
}

// EmailProcessor renders and sends queued email jobs, recording each attempt in email_logs.
type EmailProcessor struct {
	templates *mailer.Templates
	sender    mailer.Sender
	logs      LogRecorder
	queue     JobSource
	backoff   time.Duration
	logger    *zap.Logger
}

// NewEmailProcessor creates an email job processor.
func NewEmailProcessor(templates *mailer.Templates, sender mailer.Sender, logs LogRecorder, q JobSource, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{templates: templates, sender: sender, logs: logs, queue: q, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("%w: unknown job type %s", ErrPermanent, job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("%w: unmarshal payload: %v", ErrPermanent, err)
	}
	out, err := p.templates.Render(payload.EmailType, mailer.TemplateData{
		RecipientName: payload.RecipientName,
		Data:          payload.Data,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}

	sendErr := p.sender.Send(ctx, mailer.Message{
		ToName:    payload.RecipientName,
		ToAddress: payload.RecipientEmail,
		Subject:   out.Subject,
		Text:      out.Text,
		HTML:      out.HTML,
	})

	el := &models.EmailLog{
		RegistrationID: payload.RegistrationID,
		OrderID:        payload.OrderID,
		EmailType:      payload.EmailType,
		RecipientEmail: payload.RecipientEmail,
		Subject:        out.Subject,
		Status:         models.EmailLogStatusSent,
	}
	if sendErr != nil {
		el.Status = models.EmailLogStatusFailed
		el.ErrorMessage = sendErr.Error()
	} else {
		now := time.Now()
		el.SentAt = &now
	}
	if err := p.logs.Create(ctx, el); err != nil {
		p.logger.Warn("record email log failed", zap.String("job_id", job.ID), zap.Error(err))
	}

	if sendErr != nil {
		if errors.Is(sendErr, mailer.ErrNoRecipient) {
			return fmt.Errorf("%w: %v", ErrPermanent, sendErr)
		}
		return fmt.Errorf("send email: %w", sendErr)
	}
	p.logger.Info("email sent", zap.String("job_id", job.ID), zap.String("email_type", payload.EmailType), zap.String("to", payload.RecipientEmail))
	return nil
}

// Run drains the queue until ctx is cancelled: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	p.logger.Info("email worker started")
	for {
		if ctx.Err() != nil {
			p.logger.Info("email worker stopping")
			return
		}

		job, err := p.queue.Dequeue(ctx, dequeueTimeout)
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

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Int("attempt", job.Attempt))
		err = p.Process(ctx, job)
		switch {
		case err == nil:
		case errors.Is(err, ErrPermanent):
			p.logger.Error("job dropped", zap.String("job_id", job.ID), zap.Error(err))
		default:
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
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
