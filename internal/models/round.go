package models

import (
	"time"

	"github.com/google/uuid"
)

// Round is a single timed networking slot within a session. Matching for
// the round runs once at StartsAt (T-0).
type Round struct {
	ID                        uuid.UUID `json:"id"`
	SessionID                 uuid.UUID `json:"session_id"`
	StartsAt                  time.Time `json:"starts_at"`
	DurationMinutes           int       `json:"duration_minutes"`
	GroupSize                 int       `json:"group_size"`
	ConfirmationWindowMinutes int       `json:"confirmation_window_minutes"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// EndsAt returns the scheduled end of the round.
func (r *Round) EndsAt() time.Time {
	return r.StartsAt.Add(time.Duration(r.DurationMinutes) * time.Minute)
}

// ConfirmationOpensAt returns when participants may start confirming
// attendance. The window closes at StartsAt.
func (r *Round) ConfirmationOpensAt() time.Time {
	return r.StartsAt.Add(-time.Duration(r.ConfirmationWindowMinutes) * time.Minute)
}

// Started reports whether the round has reached T-0.
func (r *Round) Started(now time.Time) bool {
	return !now.Before(r.StartsAt)
}

// CompletedBy reports whether the round is over once the grace period
// after its end time has passed.
func (r *Round) CompletedBy(now time.Time, grace time.Duration) bool {
	return now.After(r.EndsAt().Add(grace))
}
