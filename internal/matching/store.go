package matching

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mingle-rounds/backend/internal/models"
)

// StatusChange carries the fields a matching run writes to a registration.
// Nil pointers and nil slices leave the corresponding column untouched.
type StatusChange struct {
	Status         models.RegistrationStatus
	Reason         string
	MatchID        *uuid.UUID
	PartnerNames   []string
	MeetingPointID *uuid.UUID
}

// LockResult carries the final counts written to a completed matching lock.
type LockResult struct {
	MatchCount      int
	UnmatchedCount  int
	SoloParticipant bool
}

// Store is everything the orchestrator needs from persistence. The
// production implementation is the pgx Repository in this package; tests
// use an in-memory fake.
type Store interface {
	GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error)
	GetRound(ctx context.Context, sessionID, roundID uuid.UUID) (*models.Round, error)

	// AcquireLock atomically claims the matching lock for the round.
	// It returns (true, nil, nil) when this caller won the claim, either by
	// inserting a fresh running record or by taking over a running record
	// older than staleBefore. Otherwise it returns (false, existing, nil)
	// with the lock that blocked the claim.
	AcquireLock(ctx context.Context, sessionID, roundID uuid.UUID, staleBefore time.Time) (bool, *models.MatchingLock, error)
	// CompleteLock finalizes the claim with result counts. After this call
	// the lock permanently short-circuits every future run for the round.
	CompleteLock(ctx context.Context, sessionID, roundID uuid.UUID, res LockResult) error
	// ReleaseLock deletes a running claim so a failed run can be retried.
	ReleaseLock(ctx context.Context, sessionID, roundID uuid.UUID) error

	ListRegistrationsForRound(ctx context.Context, sessionID, roundID uuid.UUID) ([]models.Registration, error)
	UpdateRegistration(ctx context.Context, registrationID uuid.UUID, change StatusChange) error

	ListMatchesForSession(ctx context.Context, sessionID uuid.UUID) ([]models.Match, error)
	CreateMatch(ctx context.Context, m *models.Match) error
	// AppendMatchMember absorbs a leftover participant into an existing
	// match. The only permitted post-creation mutation of a match.
	AppendMatchMember(ctx context.Context, matchID, participantID uuid.UUID) error

	GetParticipants(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Participant, error)
	ListMeetingPoints(ctx context.Context, sessionID uuid.UUID) ([]models.MeetingPoint, error)
}
