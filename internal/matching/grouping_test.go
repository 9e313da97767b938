package matching

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func uniformScore(uuid.UUID, uuid.UUID) int { return 1 }

func TestBuildGroups_Pairs(t *testing.T) {
	pool := ids(6)
	groups, leftover := BuildGroups(pool, ScoreFunc(uniformScore), 2)

	require.Len(t, groups, 3)
	assert.Empty(t, leftover)
	seen := map[uuid.UUID]bool{}
	for _, g := range groups {
		require.Len(t, g, 2)
		for _, id := range g {
			assert.False(t, seen[id], "participant assigned twice")
			seen[id] = true
		}
	}
	assert.Len(t, seen, 6)
}

func TestBuildGroups_PicksBestPairFirst(t *testing.T) {
	pool := ids(4)
	score := func(a, b uuid.UUID) int {
		if (a == pool[1] && b == pool[3]) || (a == pool[3] && b == pool[1]) {
			return 100
		}
		return 1
	}
	groups, leftover := BuildGroups(pool, score, 2)

	require.Len(t, groups, 2)
	assert.Empty(t, leftover)
	assert.ElementsMatch(t, []uuid.UUID{pool[1], pool[3]}, groups[0])
	assert.ElementsMatch(t, []uuid.UUID{pool[0], pool[2]}, groups[1])
}

func TestBuildGroups_OddPoolLeavesOneOver(t *testing.T) {
	groups, leftover := BuildGroups(ids(7), ScoreFunc(uniformScore), 2)
	assert.Len(t, groups, 3)
	assert.Len(t, leftover, 1)
}

func TestBuildGroups_LargerGroupSize(t *testing.T) {
	groups, leftover := BuildGroups(ids(10), ScoreFunc(uniformScore), 4)
	require.Len(t, groups, 2)
	for _, g := range groups {
		assert.Len(t, g, 4)
	}
	assert.Len(t, leftover, 2)
}

func TestBuildGroups_PoolSmallerThanGroupSize(t *testing.T) {
	pool := ids(3)
	groups, leftover := BuildGroups(pool, ScoreFunc(uniformScore), 4)
	assert.Empty(t, groups)
	assert.Len(t, leftover, 3)
}

func TestBuildGroups_EmptyPool(t *testing.T) {
	groups, leftover := BuildGroups(nil, ScoreFunc(uniformScore), 2)
	assert.Empty(t, groups)
	assert.Empty(t, leftover)
}

func TestBuildGroups_TieBreakByInputOrder(t *testing.T) {
	pool := ids(4)
	first, _ := BuildGroups(pool, ScoreFunc(uniformScore), 2)
	second, _ := BuildGroups(pool, ScoreFunc(uniformScore), 2)
	assert.Equal(t, first, second)
	// With uniform scores the first enumerated pair wins.
	assert.Equal(t, []uuid.UUID{pool[0], pool[1]}, first[0])
}

func TestSmallestGroup(t *testing.T) {
	a, b, c := ids(3), ids(2), ids(2)
	assert.Equal(t, 1, SmallestGroup([][]uuid.UUID{a, b, c}))
	assert.Equal(t, 0, SmallestGroup([][]uuid.UUID{b, c}))
}
