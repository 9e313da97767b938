package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mingle-rounds/backend/internal/matching"
	"github.com/mingle-rounds/backend/internal/models"
)

// Store is the persistence surface the reconciler needs.
type Store interface {
	// UpdateStatus writes a reconciled status and reason.
	UpdateStatus(ctx context.Context, registrationID uuid.UUID, status models.RegistrationStatus, reason string) error
	// MatchingCompleted reports whether a completed matching lock exists
	// for the round.
	MatchingCompleted(ctx context.Context, sessionID, roundID uuid.UUID) (bool, error)
}

// Matcher runs matching for a round. Satisfied by matching.Orchestrator.
type Matcher interface {
	Run(ctx context.Context, sessionID, roundID uuid.UUID) (matching.Result, error)
}

// Reconciler recomputes a registration's status from the clock whenever a
// dashboard is served. It only ever writes two statuses, unconfirmed and
// completed, and refuses to touch anything a user action or a matching run
// has already decided.
type Reconciler struct {
	store         Store
	matcher       Matcher
	grace         time.Duration
	triggerWindow time.Duration
	logger        *zap.Logger
}

// New creates a reconciler. matcher may be nil, which disables the
// opportunistic matching trigger.
func New(store Store, matcher Matcher, grace, triggerWindow time.Duration, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		store:         store,
		matcher:       matcher,
		grace:         grace,
		triggerWindow: triggerWindow,
		logger:        logger,
	}
}

// Reconcile inspects one registration against its round and the clock,
// persists a corrected status when one applies, and mutates reg to match.
// It returns whether a correction was written.
func (r *Reconciler) Reconcile(ctx context.Context, reg *models.Registration, round *models.Round, now time.Time) (bool, error) {
	r.maybeTriggerMatching(ctx, reg, round, now)

	candidate, reason := r.candidate(reg, round, now)
	if candidate == "" {
		return false, nil
	}

	// Layered guards. The candidate computation already respects them, but
	// a reconciler that overwrites a decided outcome corrupts real results,
	// so each guard holds independently.
	if reg.Status.Protected() {
		return false, nil
	}
	if candidate == models.StatusUnconfirmed && reg.ConfirmedAt != nil {
		return false, nil
	}
	if candidate != models.StatusUnconfirmed && candidate != models.StatusCompleted {
		return false, nil
	}

	if err := r.store.UpdateStatus(ctx, reg.ID, candidate, reason); err != nil {
		return false, err
	}
	reg.Status = candidate
	reg.StatusReason = reason
	return true, nil
}

// candidate derives the clock-implied status, or "" when the current status
// stands.
func (r *Reconciler) candidate(reg *models.Registration, round *models.Round, now time.Time) (models.RegistrationStatus, string) {
	switch reg.Status {
	case models.StatusRegistered:
		if round.CompletedBy(now, r.grace) {
			return models.StatusCompleted, matching.ReasonRoundCompleted
		}
		if round.Started(now) {
			return models.StatusUnconfirmed, matching.ReasonNotConfirmed
		}
	case models.StatusUnconfirmed:
		// Not terminal, so the passage of round end + grace still closes it.
		if round.CompletedBy(now, r.grace) {
			return models.StatusCompleted, matching.ReasonRoundCompleted
		}
	}
	return "", ""
}

// maybeTriggerMatching fires the matching run in the background when a
// dashboard view lands inside the trigger window after T-0 and no completed
// lock exists yet. The matching lock makes duplicate fires harmless.
func (r *Reconciler) maybeTriggerMatching(ctx context.Context, reg *models.Registration, round *models.Round, now time.Time) {
	if r.matcher == nil {
		return
	}
	if now.Before(round.StartsAt) || now.After(round.StartsAt.Add(r.triggerWindow)) {
		return
	}
	done, err := r.store.MatchingCompleted(ctx, reg.SessionID, round.ID)
	if err != nil {
		r.logger.Warn("matching lock check failed", zap.String("round_id", round.ID.String()), zap.Error(err))
		return
	}
	if done {
		return
	}
	sessionID, roundID := reg.SessionID, round.ID
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("matching trigger panicked",
					zap.String("round_id", roundID.String()), zap.Any("panic", rec))
			}
		}()
		if _, err := r.matcher.Run(context.Background(), sessionID, roundID); err != nil {
			r.logger.Error("opportunistic matching run failed",
				zap.String("round_id", roundID.String()), zap.Error(err))
		}
	}()
}
