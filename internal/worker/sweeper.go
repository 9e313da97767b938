package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mingle-rounds/backend/internal/matching"
	"github.com/mingle-rounds/backend/internal/models"
	"github.com/mingle-rounds/backend/internal/participants"
	"github.com/mingle-rounds/backend/internal/registrations"
	"github.com/mingle-rounds/backend/internal/sessions"
	"github.com/mingle-rounds/backend/pkg/queue"
)

// Matcher runs matching for a round. Satisfied by matching.Orchestrator.
type Matcher interface {
	Run(ctx context.Context, sessionID, roundID uuid.UUID) (matching.Result, error)
}

// Sweeper is the scheduled safety net behind the opportunistic trigger. On
// every tick it runs matching for due rounds that still lack a completed
// lock, and enqueues confirmation reminders for rounds whose window just
// opened.
type Sweeper struct {
	sessions      *sessions.Repository
	registrations *registrations.Repository
	participants  *participants.Repository
	matcher       Matcher
	queue         *queue.Queue
	interval      time.Duration
	lookback      time.Duration
	logger        *zap.Logger
}

// NewSweeper creates a sweeper. queue may be nil, which disables reminders.
func NewSweeper(sessionsRepo *sessions.Repository, registrationsRepo *registrations.Repository, participantsRepo *participants.Repository, matcher Matcher, q *queue.Queue, interval, lookback time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		sessions:      sessionsRepo,
		registrations: registrationsRepo,
		participants:  participantsRepo,
		matcher:       matcher,
		queue:         q,
		interval:      interval,
		lookback:      lookback,
		logger:        logger,
	}
}

// Run ticks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopping")
			return
		case <-ticker.C:
			s.Sweep(ctx, time.Now())
		}
	}
}

// Sweep runs one pass: due matching runs, then confirmation reminders.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) {
	s.sweepMatching(ctx, now)
	s.sweepReminders(ctx, now)
}

func (s *Sweeper) sweepMatching(ctx context.Context, now time.Time) {
	due, err := s.sessions.ListDueRounds(ctx, now, s.lookback)
	if err != nil {
		s.logger.Error("list due rounds failed", zap.Error(err))
		return
	}
	for _, round := range due {
		res, err := s.matcher.Run(ctx, round.SessionID, round.ID)
		if err != nil {
			s.logger.Error("scheduled matching run failed",
				zap.String("round_id", round.ID.String()), zap.Error(err))
			continue
		}
		if !res.AlreadyCompleted {
			s.logger.Info("scheduled matching run completed",
				zap.String("round_id", round.ID.String()),
				zap.Int("matches", res.MatchCount),
				zap.Int("unmatched", res.UnmatchedCount))
		}
	}
}

func (s *Sweeper) sweepReminders(ctx context.Context, now time.Time) {
	if s.queue == nil {
		return
	}
	opening, err := s.sessions.ListRoundsOpeningConfirmation(ctx, now)
	if err != nil {
		s.logger.Error("list opening rounds failed", zap.Error(err))
		return
	}
	for _, round := range opening {
		claimed, err := s.sessions.ClaimReminder(ctx, round.ID)
		if err != nil {
			s.logger.Error("claim reminder failed", zap.String("round_id", round.ID.String()), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}
		if err := s.enqueueReminders(ctx, &round); err != nil {
			s.logger.Error("enqueue confirmation reminders failed",
				zap.String("round_id", round.ID.String()), zap.Error(err))
		}
	}
}

// enqueueReminders queues one confirmation_open job per opted-in registrant.
func (s *Sweeper) enqueueReminders(ctx context.Context, round *models.Round) error {
	regs, err := s.registrations.ListForRound(ctx, round.ID)
	if err != nil {
		return fmt.Errorf("list registrations: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(regs))
	for _, reg := range regs {
		if reg.Status == models.StatusRegistered && reg.NotifyEnabled {
			ids = append(ids, reg.ParticipantID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	people, err := s.participants.GetMany(ctx, ids)
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}

	subject := "Confirm your attendance"
	body := fmt.Sprintf("Your round starts at %s. Confirm now to be matched.", round.StartsAt.Format(time.RFC1123))
	for _, reg := range regs {
		p, ok := people[reg.ParticipantID]
		if !ok {
			continue
		}
		if reg.Status != models.StatusRegistered || !reg.NotifyEnabled {
			continue
		}
		payload := queue.NotificationPayload{
			Type:           queue.JobTypeConfirmationOpen,
			SessionID:      reg.SessionID,
			RoundID:        round.ID,
			RegistrationID: reg.ID,
			RecipientEmail: p.Email,
			Subject:        subject,
			Body:           body,
		}
		if err := s.queue.EnqueueNotification(ctx, payload); err != nil {
			s.logger.Error("enqueue reminder failed",
				zap.String("registration_id", reg.ID.String()), zap.Error(err))
		}
	}
	return nil
}
