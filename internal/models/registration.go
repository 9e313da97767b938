package models

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the participant-visible state of a registration.
type RegistrationStatus string

const (
	// StatusRegistered: signed up, attendance not yet confirmed.
	StatusRegistered RegistrationStatus = "registered"
	// StatusConfirmed: attendance confirmed before T-0.
	StatusConfirmed RegistrationStatus = "confirmed"
	// StatusUnconfirmed: the confirmation window closed without a confirmation.
	StatusUnconfirmed RegistrationStatus = "unconfirmed"
	// StatusMatched: assigned to a group by the matching run.
	StatusMatched RegistrationStatus = "matched"
	// StatusNoMatch: confirmed but no group could be formed.
	StatusNoMatch RegistrationStatus = "no_match"
	// StatusCheckedIn: arrived at the meeting point.
	StatusCheckedIn RegistrationStatus = "checked_in"
	// StatusAwaitingMeet: every group member checked in, waiting for mutual
	// confirmation that the group actually met.
	StatusAwaitingMeet RegistrationStatus = "awaiting_meet"
	// StatusMet: the group mutually confirmed the meeting.
	StatusMet RegistrationStatus = "met"
	// StatusMissed: matched but never showed up.
	StatusMissed RegistrationStatus = "missed"
	// StatusLeftAlone: showed up but the rest of the group did not.
	StatusLeftAlone RegistrationStatus = "left_alone"
	// StatusCompleted: the round ended without a terminal outcome.
	StatusCompleted RegistrationStatus = "completed"
	// StatusCancelled: withdrawn by the participant.
	StatusCancelled RegistrationStatus = "cancelled"
)

// Terminal reports whether the status is an end state that no transition,
// user- or system-initiated, may leave.
func (s RegistrationStatus) Terminal() bool {
	switch s {
	case StatusNoMatch, StatusMet, StatusMissed, StatusLeftAlone, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Protected reports whether the status may never be overwritten by a
// background recomputation. Covers all terminal states plus every
// user-initiated state.
func (s RegistrationStatus) Protected() bool {
	switch s {
	case StatusConfirmed, StatusMatched, StatusCheckedIn, StatusAwaitingMeet, StatusMet:
		return true
	}
	return s.Terminal()
}

// Registration links a participant to one round of a session. At most one
// registration exists per (participant, round).
type Registration struct {
	ID             uuid.UUID          `json:"id"`
	ParticipantID  uuid.UUID          `json:"participant_id"`
	SessionID      uuid.UUID          `json:"session_id"`
	RoundID        uuid.UUID          `json:"round_id"`
	Status         RegistrationStatus `json:"status"`
	StatusReason   string             `json:"status_reason,omitempty"`
	MatchID        *uuid.UUID         `json:"match_id,omitempty"`
	PartnerNames   []string           `json:"partner_names,omitempty"`
	MeetingPointID *uuid.UUID         `json:"meeting_point_id,omitempty"`
	NotifyEnabled  bool               `json:"notify_enabled"`
	RegisteredAt   time.Time          `json:"registered_at"`
	ConfirmedAt    *time.Time         `json:"confirmed_at,omitempty"`
	CheckedInAt    *time.Time         `json:"checked_in_at,omitempty"`
	MetConfirmedAt *time.Time         `json:"met_confirmed_at,omitempty"`
	UpdatedAt      time.Time          `json:"updated_at"`
}
