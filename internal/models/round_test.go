package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRound_Windows(t *testing.T) {
	start := time.Date(2026, 3, 12, 18, 0, 0, 0, time.UTC)
	r := &Round{
		StartsAt:                  start,
		DurationMinutes:           10,
		ConfirmationWindowMinutes: 15,
	}

	assert.Equal(t, start.Add(10*time.Minute), r.EndsAt())
	assert.Equal(t, start.Add(-15*time.Minute), r.ConfirmationOpensAt())

	assert.False(t, r.Started(start.Add(-time.Second)))
	assert.True(t, r.Started(start))
	assert.True(t, r.Started(start.Add(time.Minute)))

	grace := 30 * time.Minute
	assert.False(t, r.CompletedBy(r.EndsAt(), grace))
	assert.False(t, r.CompletedBy(r.EndsAt().Add(grace), grace))
	assert.True(t, r.CompletedBy(r.EndsAt().Add(grace+time.Second), grace))
}
