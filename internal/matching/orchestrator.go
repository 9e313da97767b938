package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mingle-rounds/backend/internal/models"
)

// Reason strings surfaced to participants on terminal non-match outcomes.
const (
	ReasonNotConfirmed   = "attendance was not confirmed before the round started"
	ReasonSoloConfirmed  = "nobody else confirmed attendance for this round"
	ReasonNoGroupFormed  = "no group could be formed for this round"
	ReasonRoundCompleted = "the round ended"
)

// Result is the outcome of one Run invocation.
type Result struct {
	MatchCount       int  `json:"match_count"`
	UnmatchedCount   int  `json:"unmatched_count"`
	AlreadyCompleted bool `json:"already_completed"`
	SoloParticipant  bool `json:"solo_participant"`
}

// EventPublisher pushes round events to connected dashboards. Optional.
type EventPublisher interface {
	PublishRoundEvent(roundID uuid.UUID, event string, payload interface{})
}

// Outcome pairs a registration's final matching state with its participant,
// for notification fan-out after a successful run.
type Outcome struct {
	Registration models.Registration
	Participant  models.Participant
}

// Notifier receives the per-participant outcomes of a completed run. Optional.
// Implementations must not block the matching path on delivery.
type Notifier interface {
	NotifyMatchOutcomes(ctx context.Context, round *models.Round, outcomes []Outcome)
}

// Orchestrator is the entry point invoked once per round at T-0. It is safe
// to call repeatedly and concurrently: the matching lock guarantees at most
// one successful run per round.
type Orchestrator struct {
	store          Store
	weights        ScoreWeights
	staleLockAfter time.Duration
	events         EventPublisher
	notifier       Notifier
	logger         *zap.Logger
	now            func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWeights overrides the default score weights.
func WithWeights(w ScoreWeights) Option {
	return func(o *Orchestrator) { o.weights = w }
}

// WithStaleLockAfter sets how old a running lock claim must be before a new
// run may take it over.
func WithStaleLockAfter(d time.Duration) Option {
	return func(o *Orchestrator) { o.staleLockAfter = d }
}

// WithEvents sets the realtime event publisher.
func WithEvents(p EventPublisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

// WithNotifier sets the notification fan-out.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates a matching orchestrator.
func NewOrchestrator(store Store, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		store:          store,
		weights:        DefaultWeights,
		staleLockAfter: 10 * time.Minute,
		logger:         logger,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes matching for the round. Steps are strictly sequential; any
// storage error aborts before the lock is finalized, which keeps a genuinely
// failed run safe to retry from scratch.
func (o *Orchestrator) Run(ctx context.Context, sessionID, roundID uuid.UUID) (Result, error) {
	session, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	round, err := o.store.GetRound(ctx, sessionID, roundID)
	if err != nil {
		return Result{}, err
	}

	acquired, existing, err := o.store.AcquireLock(ctx, sessionID, roundID, o.now().Add(-o.staleLockAfter))
	if err != nil {
		return Result{}, fmt.Errorf("acquire matching lock: %w", err)
	}
	if !acquired && existing == nil {
		// The blocking claim was released mid-acquire; one more attempt
		// settles who owns the round.
		acquired, existing, err = o.store.AcquireLock(ctx, sessionID, roundID, o.now().Add(-o.staleLockAfter))
		if err != nil {
			return Result{}, fmt.Errorf("acquire matching lock: %w", err)
		}
	}
	if !acquired {
		if existing == nil {
			return Result{}, fmt.Errorf("matching lock for round %s is contended, retry", roundID)
		}
		o.logger.Info("matching already executed or in flight",
			zap.String("round_id", roundID.String()),
			zap.String("lock_state", string(existing.State)))
		return Result{AlreadyCompleted: true}, nil
	}

	finalized := false
	defer func() {
		if finalized {
			return
		}
		// Drop the running claim so a later trigger retries the full run.
		if relErr := o.store.ReleaseLock(context.WithoutCancel(ctx), sessionID, roundID); relErr != nil {
			o.logger.Error("release matching lock failed",
				zap.String("round_id", roundID.String()), zap.Error(relErr))
		}
	}()

	regs, err := o.store.ListRegistrationsForRound(ctx, sessionID, roundID)
	if err != nil {
		return Result{}, fmt.Errorf("load registrations: %w", err)
	}

	// Anyone still merely registered at T-0 missed the confirmation window.
	// One-way transition; the lock guarantees it never runs twice.
	var confirmed []models.Registration
	for i := range regs {
		switch regs[i].Status {
		case models.StatusRegistered:
			if err := o.store.UpdateRegistration(ctx, regs[i].ID, StatusChange{
				Status: models.StatusUnconfirmed,
				Reason: ReasonNotConfirmed,
			}); err != nil {
				return Result{}, fmt.Errorf("reclassify unconfirmed: %w", err)
			}
		case models.StatusConfirmed:
			confirmed = append(confirmed, regs[i])
		}
	}

	if len(confirmed) == 0 {
		if err := o.store.CompleteLock(ctx, sessionID, roundID, LockResult{}); err != nil {
			return Result{}, fmt.Errorf("complete matching lock: %w", err)
		}
		finalized = true
		o.logger.Info("matching completed with no confirmed participants",
			zap.String("round_id", roundID.String()))
		return Result{}, nil
	}

	if len(confirmed) == 1 {
		if err := o.store.UpdateRegistration(ctx, confirmed[0].ID, StatusChange{
			Status: models.StatusNoMatch,
			Reason: ReasonSoloConfirmed,
		}); err != nil {
			return Result{}, fmt.Errorf("mark solo participant: %w", err)
		}
		res := LockResult{UnmatchedCount: 1, SoloParticipant: true}
		if err := o.store.CompleteLock(ctx, sessionID, roundID, res); err != nil {
			return Result{}, fmt.Errorf("complete matching lock: %w", err)
		}
		finalized = true
		o.logger.Info("matching completed with a solo participant",
			zap.String("round_id", roundID.String()),
			zap.String("participant_id", confirmed[0].ParticipantID.String()))
		return Result{UnmatchedCount: 1, SoloParticipant: true}, nil
	}

	result, outcomes, err := o.matchConfirmed(ctx, session, round, confirmed)
	if err != nil {
		return Result{}, err
	}

	if err := o.store.CompleteLock(ctx, sessionID, roundID, LockResult{
		MatchCount:     result.MatchCount,
		UnmatchedCount: result.UnmatchedCount,
	}); err != nil {
		return Result{}, fmt.Errorf("complete matching lock: %w", err)
	}
	finalized = true

	o.logger.Info("matching completed",
		zap.String("session_id", sessionID.String()),
		zap.String("round_id", roundID.String()),
		zap.Int("matches", result.MatchCount),
		zap.Int("unmatched", result.UnmatchedCount))

	if o.events != nil {
		o.events.PublishRoundEvent(roundID, "matching_completed", result)
	}
	if o.notifier != nil {
		o.notifier.NotifyMatchOutcomes(ctx, round, outcomes)
	}
	return result, nil
}

// matchConfirmed runs history, scoring, grouping, and persistence for two or
// more confirmed registrations.
func (o *Orchestrator) matchConfirmed(ctx context.Context, session *models.Session, round *models.Round, confirmed []models.Registration) (Result, []Outcome, error) {
	regByParticipant := make(map[uuid.UUID]*models.Registration, len(confirmed))
	pool := make([]uuid.UUID, 0, len(confirmed))
	for i := range confirmed {
		regByParticipant[confirmed[i].ParticipantID] = &confirmed[i]
		pool = append(pool, confirmed[i].ParticipantID)
	}
	// Stable candidate order makes tie-breaking deterministic across runs.
	sort.Slice(pool, func(i, j int) bool { return pool[i].String() < pool[j].String() })

	participants, err := o.store.GetParticipants(ctx, pool)
	if err != nil {
		return Result{}, nil, fmt.Errorf("load participants: %w", err)
	}

	priorMatches, err := o.store.ListMatchesForSession(ctx, session.ID)
	if err != nil {
		return Result{}, nil, fmt.Errorf("load session matches: %w", err)
	}
	history := BuildMeetingHistory(priorMatches)
	scorer := NewScorer(o.weights, session.MatchingPolicy, history)

	score := func(a, b uuid.UUID) int {
		pa, pb := participants[a], participants[b]
		return scorer.Score(&pa, &pb)
	}
	groups, leftover := BuildGroups(pool, score, round.GroupSize)

	points, err := o.store.ListMeetingPoints(ctx, session.ID)
	if err != nil {
		return Result{}, nil, fmt.Errorf("load meeting points: %w", err)
	}

	names := func(group []uuid.UUID, self uuid.UUID) []string {
		out := make([]string, 0, len(group)-1)
		for _, id := range group {
			if id != self {
				out = append(out, participants[id].FullName)
			}
		}
		return out
	}

	matches := make([]*models.Match, 0, len(groups))
	for gi, group := range groups {
		var pointID *uuid.UUID
		if len(points) > 0 {
			id := points[gi%len(points)].ID
			pointID = &id
		}
		m := &models.Match{
			SessionID:      session.ID,
			RoundID:        round.ID,
			MeetingPointID: pointID,
			MemberIDs:      group,
		}
		if err := o.store.CreateMatch(ctx, m); err != nil {
			return Result{}, nil, fmt.Errorf("create match: %w", err)
		}
		matches = append(matches, m)
		for _, pid := range group {
			if err := o.applyMatched(ctx, regByParticipant[pid], m, names(group, pid)); err != nil {
				return Result{}, nil, err
			}
		}
	}

	// A single leftover after at least one group formed is absorbed into the
	// smallest group rather than left unmatched. Every member of that group
	// gets a refreshed partner list.
	unmatched := 0
	if len(leftover) == 1 && len(matches) > 0 {
		idx := SmallestGroup(groupsOf(matches))
		m := matches[idx]
		extra := leftover[0]
		if err := o.store.AppendMatchMember(ctx, m.ID, extra); err != nil {
			return Result{}, nil, fmt.Errorf("absorb leftover: %w", err)
		}
		m.MemberIDs = append(m.MemberIDs, extra)
		for _, pid := range m.MemberIDs {
			if err := o.applyMatched(ctx, regByParticipant[pid], m, names(m.MemberIDs, pid)); err != nil {
				return Result{}, nil, err
			}
		}
		leftover = nil
	}
	for _, pid := range leftover {
		reg := regByParticipant[pid]
		if err := o.store.UpdateRegistration(ctx, reg.ID, StatusChange{
			Status: models.StatusNoMatch,
			Reason: ReasonNoGroupFormed,
		}); err != nil {
			return Result{}, nil, fmt.Errorf("mark unmatched: %w", err)
		}
		reg.Status = models.StatusNoMatch
		reg.StatusReason = ReasonNoGroupFormed
		unmatched++
	}

	// Exhaustiveness: nothing confirmed may survive the run unclassified.
	for _, reg := range regByParticipant {
		if reg.Status == models.StatusConfirmed {
			if err := o.store.UpdateRegistration(ctx, reg.ID, StatusChange{
				Status: models.StatusNoMatch,
				Reason: ReasonNoGroupFormed,
			}); err != nil {
				return Result{}, nil, fmt.Errorf("mark unaccounted: %w", err)
			}
			reg.Status = models.StatusNoMatch
			reg.StatusReason = ReasonNoGroupFormed
			unmatched++
		}
	}

	outcomes := make([]Outcome, 0, len(confirmed))
	for _, pid := range pool {
		outcomes = append(outcomes, Outcome{
			Registration: *regByParticipant[pid],
			Participant:  participants[pid],
		})
	}
	return Result{MatchCount: len(matches), UnmatchedCount: unmatched}, outcomes, nil
}

// applyMatched persists and mirrors the matched state onto the registration.
func (o *Orchestrator) applyMatched(ctx context.Context, reg *models.Registration, m *models.Match, partners []string) error {
	if err := o.store.UpdateRegistration(ctx, reg.ID, StatusChange{
		Status:         models.StatusMatched,
		MatchID:        &m.ID,
		PartnerNames:   partners,
		MeetingPointID: m.MeetingPointID,
	}); err != nil {
		return fmt.Errorf("mark matched: %w", err)
	}
	reg.Status = models.StatusMatched
	reg.MatchID = &m.ID
	reg.PartnerNames = partners
	reg.MeetingPointID = m.MeetingPointID
	return nil
}

func groupsOf(matches []*models.Match) [][]uuid.UUID {
	out := make([][]uuid.UUID, len(matches))
	for i, m := range matches {
		out[i] = m.MemberIDs
	}
	return out
}
