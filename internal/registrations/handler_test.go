package registrations

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mingle-rounds/backend/internal/models"
)

func TestConfirmSettled_AdvancedStatusesSucceedOnRepeat(t *testing.T) {
	settled := []models.RegistrationStatus{
		models.StatusConfirmed,
		models.StatusMatched,
		models.StatusNoMatch,
		models.StatusCheckedIn,
		models.StatusAwaitingMeet,
		models.StatusMet,
		models.StatusMissed,
		models.StatusLeftAlone,
		models.StatusCompleted,
	}
	for _, s := range settled {
		assert.True(t, confirmSettled(s), "repeat confirm on %s must short-circuit to success", s)
	}
}

func TestConfirmSettled_UnadvancedStatusesFallThrough(t *testing.T) {
	// These still go through the window checks and the conditional update.
	for _, s := range []models.RegistrationStatus{
		models.StatusRegistered,
		models.StatusUnconfirmed,
		models.StatusCancelled,
	} {
		assert.False(t, confirmSettled(s), "confirm on %s must not short-circuit", s)
	}
}

func TestCheckInSettled_RepeatCheckInIsNoOp(t *testing.T) {
	for _, s := range []models.RegistrationStatus{
		models.StatusCheckedIn,
		models.StatusAwaitingMeet,
		models.StatusMet,
	} {
		assert.True(t, checkInSettled(s), "repeat check-in on %s must short-circuit to success", s)
	}
}

func TestCheckInSettled_MatchedStillGoesThroughTransition(t *testing.T) {
	for _, s := range []models.RegistrationStatus{
		models.StatusRegistered,
		models.StatusConfirmed,
		models.StatusMatched,
		models.StatusNoMatch,
		models.StatusMissed,
		models.StatusLeftAlone,
		models.StatusCompleted,
		models.StatusCancelled,
	} {
		assert.False(t, checkInSettled(s), "check-in on %s must not short-circuit", s)
	}
}
