package matching

import (
	"strings"

	"github.com/mingle-rounds/backend/internal/models"
)

// ScoreWeights are the additive pairing bonuses. Policy constants, tunable
// through configuration without changing the algorithm's structure.
type ScoreWeights struct {
	Novelty      int // pair has not met before in this session
	TeamAffinity int // pair satisfies the session's team policy
	TopicOverlap int // pair shares at least one topic (capped, not per topic)
}

// DefaultWeights: novelty dominates team affinity, which dominates topics.
var DefaultWeights = ScoreWeights{Novelty: 30, TeamAffinity: 20, TopicOverlap: 10}

// Scorer computes symmetric compatibility scores for unordered pairs of
// confirmed participants.
type Scorer struct {
	weights ScoreWeights
	policy  models.MatchingPolicy
	history MeetingHistory
}

// NewScorer creates a scorer for one matching run.
func NewScorer(weights ScoreWeights, policy models.MatchingPolicy, history MeetingHistory) *Scorer {
	return &Scorer{weights: weights, policy: policy, history: history}
}

// Score returns the pair score for a and b. Symmetric: Score(a,b) == Score(b,a).
func (s *Scorer) Score(a, b *models.Participant) int {
	score := 0
	if !s.history.Met(a.ID, b.ID) {
		score += s.weights.Novelty
	}
	if teamAffinity(s.policy, a.Team, b.Team) {
		score += s.weights.TeamAffinity
	}
	if sharesTopic(a.Topics, b.Topics) {
		score += s.weights.TopicOverlap
	}
	return score
}

// teamAffinity applies the session policy. Participants without a team
// assignment never earn the bonus.
func teamAffinity(policy models.MatchingPolicy, teamA, teamB string) bool {
	if teamA == "" || teamB == "" {
		return false
	}
	switch policy {
	case models.PolicyAcrossTeams:
		return teamA != teamB
	case models.PolicyWithinTeam:
		return teamA == teamB
	}
	return false
}

// sharesTopic reports whether the two topic lists overlap, case-insensitively.
// The bonus is flat regardless of how many topics overlap.
func sharesTopic(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	for _, t := range b {
		if _, ok := set[strings.ToLower(strings.TrimSpace(t))]; ok {
			return true
		}
	}
	return false
}
