package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchingPolicy controls how the pairing scorer treats team membership.
type MatchingPolicy string

const (
	// PolicyAcrossTeams rewards pairs from different teams.
	PolicyAcrossTeams MatchingPolicy = "across_teams"
	// PolicyWithinTeam rewards pairs from the same team.
	PolicyWithinTeam MatchingPolicy = "within_team"
)

// Valid reports whether the policy is a known value.
func (p MatchingPolicy) Valid() bool {
	return p == PolicyAcrossTeams || p == PolicyWithinTeam
}

// Session is a networking event: a cohort of participants and a series
// of timed rounds, owned by an organizer (optionally via an organization).
type Session struct {
	ID             uuid.UUID      `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	MatchingPolicy MatchingPolicy `json:"matching_policy"`
	CreatedBy      uuid.UUID      `json:"created_by"`
	OrganizationID *uuid.UUID     `json:"organization_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// MeetingPoint is a named physical spot where a matched group meets.
// Matches are assigned meeting points round-robin in Position order.
type MeetingPoint struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
}
