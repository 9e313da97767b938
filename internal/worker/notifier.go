package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mingle-rounds/backend/internal/models"
	"github.com/mingle-rounds/backend/internal/notifications"
	"github.com/mingle-rounds/backend/pkg/queue"
)

// Sender delivers one notification to its recipient. Implementations wrap
// an email or push provider.
type Sender interface {
	Send(ctx context.Context, payload queue.NotificationPayload) error
}

// LogSender writes notifications to the log instead of delivering them.
// The default in environments without a mail provider configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs the notification.
func (s *LogSender) Send(_ context.Context, payload queue.NotificationPayload) error {
	s.logger.Info("notification",
		zap.String("type", string(payload.Type)),
		zap.String("recipient", payload.RecipientEmail),
		zap.String("subject", payload.Subject))
	return nil
}

// NotificationProcessor drains the notification queue: dequeue, send, log
// the delivery attempt, retry on failure.
type NotificationProcessor struct {
	queue  *queue.Queue
	sender Sender
	logs   *notifications.Repository
	logger *zap.Logger
}

// NewNotificationProcessor creates a notification processor.
func NewNotificationProcessor(q *queue.Queue, sender Sender, logs *notifications.Repository, logger *zap.Logger) *NotificationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationProcessor{queue: q, sender: sender, logs: logs, logger: logger}
}

// Process executes one notification job.
func (p *NotificationProcessor) Process(ctx context.Context, job *queue.Job) error {
	var payload queue.NotificationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	log := &models.NotificationLog{
		SessionID:      payload.SessionID,
		RegistrationID: payload.RegistrationID,
		Type:           string(payload.Type),
		RecipientEmail: payload.RecipientEmail,
		Subject:        payload.Subject,
	}
	if err := p.sender.Send(ctx, payload); err != nil {
		if logErr := p.logs.RecordFailed(ctx, log, err.Error()); logErr != nil {
			p.logger.Error("record failed notification", zap.Error(logErr))
		}
		return fmt.Errorf("send: %w", err)
	}
	if err := p.logs.RecordSent(ctx, log); err != nil {
		p.logger.Error("record sent notification", zap.Error(err))
	}
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *NotificationProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
