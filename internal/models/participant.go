package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a person enrolled in a session. Participants authenticate
// with a per-session access token rather than a user account; the token is
// looked up through a unique index, never scanned.
type Participant struct {
	ID            uuid.UUID `json:"id"`
	SessionID     uuid.UUID `json:"session_id"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	Team          string    `json:"team,omitempty"`
	Topics        []string  `json:"topics,omitempty"`
	NotifyEnabled bool      `json:"notify_enabled"`
	AccessToken   string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
