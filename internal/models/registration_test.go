package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistrationStatus_Terminal(t *testing.T) {
	terminal := []RegistrationStatus{
		StatusNoMatch, StatusMet, StatusMissed, StatusLeftAlone, StatusCompleted, StatusCancelled,
	}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), "%s should be terminal", s)
	}

	open := []RegistrationStatus{
		StatusRegistered, StatusConfirmed, StatusUnconfirmed, StatusMatched, StatusCheckedIn, StatusAwaitingMeet,
	}
	for _, s := range open {
		assert.False(t, s.Terminal(), "%s should not be terminal", s)
	}
}

func TestRegistrationStatus_Protected(t *testing.T) {
	// Every terminal state and every user-initiated state is protected.
	protected := []RegistrationStatus{
		StatusConfirmed, StatusMatched, StatusCheckedIn, StatusAwaitingMeet,
		StatusMet, StatusNoMatch, StatusMissed, StatusLeftAlone, StatusCompleted, StatusCancelled,
	}
	for _, s := range protected {
		assert.True(t, s.Protected(), "%s should be protected", s)
	}

	assert.False(t, StatusRegistered.Protected())
	assert.False(t, StatusUnconfirmed.Protected())
}
