package matching

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mingle-rounds/backend/internal/models"
)

func TestBuildMeetingHistory_RecordsAllCoMemberPairs(t *testing.T) {
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	matches := []models.Match{
		{MemberIDs: []uuid.UUID{a, b, c}},
		{MemberIDs: []uuid.UUID{c, d}},
	}

	h := BuildMeetingHistory(matches)

	assert.True(t, h.Met(a, b))
	assert.True(t, h.Met(b, a))
	assert.True(t, h.Met(a, c))
	assert.True(t, h.Met(b, c))
	assert.True(t, h.Met(c, d))
	assert.False(t, h.Met(a, d))
	assert.False(t, h.Met(b, d))
}

func TestBuildMeetingHistory_Empty(t *testing.T) {
	h := BuildMeetingHistory(nil)
	assert.False(t, h.Met(uuid.New(), uuid.New()))
}
