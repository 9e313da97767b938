package matching

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mingle-rounds/backend/internal/models"
)

func participant(team string, topics ...string) *models.Participant {
	return &models.Participant{ID: uuid.New(), Team: team, Topics: topics}
}

func TestScorer_Score_AllBonuses(t *testing.T) {
	a := participant("red", "go", "coffee")
	b := participant("blue", "Coffee")

	s := NewScorer(DefaultWeights, models.PolicyAcrossTeams, make(MeetingHistory))
	assert.Equal(t, 60, s.Score(a, b))
	assert.Equal(t, s.Score(a, b), s.Score(b, a))
}

func TestScorer_Score_NoveltyDominates(t *testing.T) {
	// A met pair with full affinity and topic overlap still scores below a
	// novel pair with neither bonus.
	a := participant("red", "go")
	b := participant("blue", "go")
	c := participant("", "")

	h := make(MeetingHistory)
	h.record(a.ID, b.ID)
	h.record(b.ID, a.ID)

	s := NewScorer(DefaultWeights, models.PolicyAcrossTeams, h)
	met := s.Score(a, b)
	novel := s.Score(a, c)
	assert.Equal(t, 30, met)
	assert.Equal(t, 30, novel)
	assert.GreaterOrEqual(t, novel, met)
}

func TestScorer_Score_TeamPolicy(t *testing.T) {
	sameA := participant("red")
	sameB := participant("red")
	crossB := participant("blue")
	noTeam := participant("")

	across := NewScorer(DefaultWeights, models.PolicyAcrossTeams, make(MeetingHistory))
	assert.Equal(t, 50, across.Score(sameA, crossB))
	assert.Equal(t, 30, across.Score(sameA, sameB))
	assert.Equal(t, 30, across.Score(sameA, noTeam))

	within := NewScorer(DefaultWeights, models.PolicyWithinTeam, make(MeetingHistory))
	assert.Equal(t, 50, within.Score(sameA, sameB))
	assert.Equal(t, 30, within.Score(sameA, crossB))
	assert.Equal(t, 30, within.Score(sameA, noTeam))
}

func TestScorer_Score_TopicBonusIsFlat(t *testing.T) {
	one := participant("", "go", "music", "chess")
	many := participant("", "GO", "Music", "CHESS")
	single := participant("", "go")

	s := NewScorer(DefaultWeights, models.PolicyAcrossTeams, make(MeetingHistory))
	assert.Equal(t, s.Score(one, single), s.Score(one, many))
}
