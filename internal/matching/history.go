package matching

import (
	"github.com/google/uuid"

	"github.com/mingle-rounds/backend/internal/models"
)

// MeetingHistory maps a participant to the set of participants they have
// already shared a match with in the current session.
type MeetingHistory map[uuid.UUID]map[uuid.UUID]struct{}

// Met reports whether a and b have been matched together before.
func (h MeetingHistory) Met(a, b uuid.UUID) bool {
	if set, ok := h[a]; ok {
		if _, ok := set[b]; ok {
			return true
		}
	}
	return false
}

func (h MeetingHistory) record(a, b uuid.UUID) {
	set, ok := h[a]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		h[a] = set
	}
	set[b] = struct{}{}
}

// BuildMeetingHistory replays every match of the session and records mutual
// membership for every unordered pair of co-members. Recomputed fresh on
// each matching run; at expected session sizes the replay is cheaper than
// keeping an incrementally maintained structure correct.
func BuildMeetingHistory(matches []models.Match) MeetingHistory {
	h := make(MeetingHistory)
	for _, m := range matches {
		for i := 0; i < len(m.MemberIDs); i++ {
			for j := i + 1; j < len(m.MemberIDs); j++ {
				h.record(m.MemberIDs[i], m.MemberIDs[j])
				h.record(m.MemberIDs[j], m.MemberIDs[i])
			}
		}
	}
	return h
}
