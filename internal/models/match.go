package models

import (
	"time"

	"github.com/google/uuid"
)

// Match is one group produced by a matching run. Matches are immutable
// after creation, with a single exception: one leftover participant per
// round may be absorbed into the smallest existing match.
type Match struct {
	ID             uuid.UUID   `json:"id"`
	SessionID      uuid.UUID   `json:"session_id"`
	RoundID        uuid.UUID   `json:"round_id"`
	MeetingPointID *uuid.UUID  `json:"meeting_point_id,omitempty"`
	MemberIDs      []uuid.UUID `json:"member_ids"`
	CreatedAt      time.Time   `json:"created_at"`
}

// MatchingLockState is the lifecycle of a matching lock record.
type MatchingLockState string

const (
	// LockRunning: a matching run has claimed the round and is in flight.
	LockRunning MatchingLockState = "running"
	// LockCompleted: matching finished; the record is the permanent
	// idempotency guard for the round.
	LockCompleted MatchingLockState = "completed"
)

// MatchingLock records that matching has executed (or is executing) for a
// round. Its presence, inserted atomically, guarantees at most one
// successful matching run per round.
type MatchingLock struct {
	SessionID       uuid.UUID         `json:"session_id"`
	RoundID         uuid.UUID         `json:"round_id"`
	State           MatchingLockState `json:"state"`
	MatchCount      int               `json:"match_count"`
	UnmatchedCount  int               `json:"unmatched_count"`
	SoloParticipant bool              `json:"solo_participant"`
	StartedAt       time.Time         `json:"started_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}
