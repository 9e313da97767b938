package matching

import (
	"sort"

	"github.com/google/uuid"
)

// ScoreFunc returns the symmetric pair score for two participants.
type ScoreFunc func(a, b uuid.UUID) int

// BuildGroups greedily partitions the candidate pool into disjoint groups
// of size k and returns the groups plus leftover participants. The input
// order is the tie-break order, so callers must pass a deterministically
// sorted pool for reproducible runs. Knowingly greedy: a global assignment
// solver does not earn its complexity at group sizes 2-6.
func BuildGroups(pool []uuid.UUID, score ScoreFunc, k int) (groups [][]uuid.UUID, leftover []uuid.UUID) {
	if k < 2 {
		k = 2
	}
	remaining := make([]uuid.UUID, len(pool))
	copy(remaining, pool)

	for len(remaining) >= k {
		var group []uuid.UUID
		if k == 2 {
			group = bestPair(remaining, score)
		} else {
			group = bestSeededGroup(remaining, score, k)
		}
		if group == nil {
			break
		}
		groups = append(groups, group)
		remaining = removeAll(remaining, group)
	}
	return groups, remaining
}

// bestPair returns the globally best-scoring pair, ties broken by input order.
func bestPair(remaining []uuid.UUID, score ScoreFunc) []uuid.UUID {
	bestScore := -1
	var bi, bj int
	for i := 0; i < len(remaining); i++ {
		for j := i + 1; j < len(remaining); j++ {
			if s := score(remaining[i], remaining[j]); s > bestScore {
				bestScore, bi, bj = s, i, j
			}
		}
	}
	if bestScore < 0 {
		return nil
	}
	return []uuid.UUID{remaining[bi], remaining[bj]}
}

// bestSeededGroup enumerates all pairs sorted by score descending, grows a
// greedy group from each seed pair, and returns the best-scoring complete
// group found.
func bestSeededGroup(remaining []uuid.UUID, score ScoreFunc, k int) []uuid.UUID {
	type seed struct {
		i, j  int
		score int
	}
	var seeds []seed
	for i := 0; i < len(remaining); i++ {
		for j := i + 1; j < len(remaining); j++ {
			seeds = append(seeds, seed{i: i, j: j, score: score(remaining[i], remaining[j])})
		}
	}
	// Stable sort keeps the (i, j) enumeration order for equal scores.
	sort.SliceStable(seeds, func(a, b int) bool { return seeds[a].score > seeds[b].score })

	bestTotal := -1
	var best []uuid.UUID
	for _, sd := range seeds {
		group := []uuid.UUID{remaining[sd.i], remaining[sd.j]}
		used := map[uuid.UUID]struct{}{group[0]: {}, group[1]: {}}
		total := sd.score

		for len(group) < k {
			addScore := -1
			var add uuid.UUID
			found := false
			for _, cand := range remaining {
				if _, ok := used[cand]; ok {
					continue
				}
				sum := 0
				for _, member := range group {
					sum += score(cand, member)
				}
				if sum > addScore {
					addScore, add, found = sum, cand, true
				}
			}
			if !found {
				break
			}
			group = append(group, add)
			used[add] = struct{}{}
			total += addScore
		}
		if len(group) == k && total > bestTotal {
			bestTotal = total
			best = group
		}
	}
	return best
}

// SmallestGroup returns the index of the group with the fewest members,
// ties broken by position. Used for leftover absorption.
func SmallestGroup(groups [][]uuid.UUID) int {
	idx := 0
	for i, g := range groups {
		if len(g) < len(groups[idx]) {
			idx = i
		}
	}
	return idx
}

func removeAll(pool []uuid.UUID, members []uuid.UUID) []uuid.UUID {
	drop := make(map[uuid.UUID]struct{}, len(members))
	for _, m := range members {
		drop[m] = struct{}{}
	}
	out := pool[:0]
	for _, id := range pool {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
