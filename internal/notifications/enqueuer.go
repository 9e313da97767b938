package notifications

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mingle-rounds/backend/internal/matching"
	"github.com/mingle-rounds/backend/internal/models"
	"github.com/mingle-rounds/backend/pkg/queue"
)

// Enqueuer turns matching outcomes into queued notification jobs. Delivery
// itself happens in the worker; a queue failure here is logged and skipped
// so the matching path never blocks on Redis.
type Enqueuer struct {
	queue  *queue.Queue
	logger *zap.Logger
}

// NewEnqueuer creates a notification enqueuer.
func NewEnqueuer(q *queue.Queue, logger *zap.Logger) *Enqueuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enqueuer{queue: q, logger: logger}
}

// NotifyMatchOutcomes enqueues one match_result job per participant who
// opted in to notifications.
func (e *Enqueuer) NotifyMatchOutcomes(ctx context.Context, round *models.Round, outcomes []matching.Outcome) {
	for _, o := range outcomes {
		if !o.Participant.NotifyEnabled {
			continue
		}
		subject, body := matchResultMessage(o)
		payload := queue.NotificationPayload{
			Type:           queue.JobTypeMatchResult,
			SessionID:      o.Registration.SessionID,
			RoundID:        round.ID,
			RegistrationID: o.Registration.ID,
			RecipientEmail: o.Participant.Email,
			Subject:        subject,
			Body:           body,
		}
		if err := e.queue.EnqueueNotification(ctx, payload); err != nil {
			e.logger.Error("enqueue match result notification failed",
				zap.String("registration_id", o.Registration.ID.String()), zap.Error(err))
		}
	}
}

func matchResultMessage(o matching.Outcome) (subject, body string) {
	switch o.Registration.Status {
	case models.StatusMatched:
		subject = "You have been matched"
		if len(o.Registration.PartnerNames) == 1 {
			body = fmt.Sprintf("You are meeting %s this round.", o.Registration.PartnerNames[0])
		} else {
			body = fmt.Sprintf("You are meeting %s this round.", strings.Join(o.Registration.PartnerNames, ", "))
		}
	default:
		subject = "No match this round"
		body = o.Registration.StatusReason
	}
	return subject, body
}
