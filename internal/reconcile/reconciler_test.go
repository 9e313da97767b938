package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mingle-rounds/backend/internal/matching"
	"github.com/mingle-rounds/backend/internal/models"
)

type fakeStore struct {
	mu       sync.Mutex
	updates  map[uuid.UUID]models.RegistrationStatus
	reasons  map[uuid.UUID]string
	complete map[uuid.UUID]bool
}

func newReconcileStore() *fakeStore {
	return &fakeStore{
		updates:  make(map[uuid.UUID]models.RegistrationStatus),
		reasons:  make(map[uuid.UUID]string),
		complete: make(map[uuid.UUID]bool),
	}
}

func (f *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, status models.RegistrationStatus, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[id] = status
	f.reasons[id] = reason
	return nil
}

func (f *fakeStore) MatchingCompleted(_ context.Context, _, roundID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.complete[roundID], nil
}

type fakeMatcher struct {
	fired chan uuid.UUID
}

func (f *fakeMatcher) Run(_ context.Context, _, roundID uuid.UUID) (matching.Result, error) {
	f.fired <- roundID
	return matching.Result{}, nil
}

func testRound(startsAt time.Time) *models.Round {
	return &models.Round{
		ID:              uuid.New(),
		SessionID:       uuid.New(),
		StartsAt:        startsAt,
		DurationMinutes: 10,
	}
}

func testRegistration(round *models.Round, status models.RegistrationStatus) *models.Registration {
	return &models.Registration{
		ID:            uuid.New(),
		ParticipantID: uuid.New(),
		SessionID:     round.SessionID,
		RoundID:       round.ID,
		Status:        status,
	}
}

const (
	grace  = 30 * time.Minute
	window = 2 * time.Minute
)

func TestReconciler_RegisteredPastStartBecomesUnconfirmed(t *testing.T) {
	store := newReconcileStore()
	r := New(store, nil, grace, window, zap.NewNop())

	round := testRound(time.Now().Add(-5 * time.Minute))
	reg := testRegistration(round, models.StatusRegistered)

	changed, err := r.Reconcile(context.Background(), reg, round, time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.StatusUnconfirmed, reg.Status)
	assert.Equal(t, matching.ReasonNotConfirmed, reg.StatusReason)
	assert.Equal(t, models.StatusUnconfirmed, store.updates[reg.ID])
}

func TestReconciler_RegisteredLongAfterEndBecomesCompleted(t *testing.T) {
	store := newReconcileStore()
	r := New(store, nil, grace, window, zap.NewNop())

	round := testRound(time.Now().Add(-2 * time.Hour))
	reg := testRegistration(round, models.StatusRegistered)

	changed, err := r.Reconcile(context.Background(), reg, round, time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.StatusCompleted, reg.Status)
}

func TestReconciler_UnconfirmedAfterGraceBecomesCompleted(t *testing.T) {
	// unconfirmed is neither terminal nor protected, so the round ending
	// closes it out too.
	store := newReconcileStore()
	r := New(store, nil, grace, window, zap.NewNop())

	round := testRound(time.Now().Add(-3 * time.Hour))
	reg := testRegistration(round, models.StatusUnconfirmed)

	changed, err := r.Reconcile(context.Background(), reg, round, time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.StatusCompleted, reg.Status)
	assert.Equal(t, matching.ReasonRoundCompleted, reg.StatusReason)
	assert.Equal(t, models.StatusCompleted, store.updates[reg.ID])
}

func TestReconciler_UnconfirmedInsideGraceStands(t *testing.T) {
	store := newReconcileStore()
	r := New(store, nil, grace, window, zap.NewNop())

	round := testRound(time.Now().Add(-15 * time.Minute))
	reg := testRegistration(round, models.StatusUnconfirmed)

	changed, err := r.Reconcile(context.Background(), reg, round, time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.StatusUnconfirmed, reg.Status)
	assert.Empty(t, store.updates)
}

func TestReconciler_BeforeStartNothingChanges(t *testing.T) {
	store := newReconcileStore()
	r := New(store, nil, grace, window, zap.NewNop())

	round := testRound(time.Now().Add(time.Hour))
	reg := testRegistration(round, models.StatusRegistered)

	changed, err := r.Reconcile(context.Background(), reg, round, time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.StatusRegistered, reg.Status)
	assert.Empty(t, store.updates)
}

func TestReconciler_NeverOverwritesProtectedStatuses(t *testing.T) {
	protected := []models.RegistrationStatus{
		models.StatusConfirmed,
		models.StatusMatched,
		models.StatusCheckedIn,
		models.StatusAwaitingMeet,
		models.StatusMet,
		models.StatusNoMatch,
		models.StatusMissed,
		models.StatusLeftAlone,
		models.StatusCancelled,
	}
	round := testRound(time.Now().Add(-3 * time.Hour))
	store := newReconcileStore()
	r := New(store, nil, grace, window, zap.NewNop())

	for _, status := range protected {
		reg := testRegistration(round, status)
		changed, err := r.Reconcile(context.Background(), reg, round, time.Now())
		require.NoError(t, err)
		assert.False(t, changed, "status %s must survive reconciliation", status)
		assert.Equal(t, status, reg.Status)
	}
	assert.Empty(t, store.updates)
}

func TestReconciler_MetWithoutConfirmedAtStaysMet(t *testing.T) {
	// A met outcome recorded without a confirmation timestamp still stands.
	store := newReconcileStore()
	r := New(store, nil, grace, window, zap.NewNop())

	round := testRound(time.Now().Add(-3 * time.Hour))
	reg := testRegistration(round, models.StatusMet)
	require.Nil(t, reg.ConfirmedAt)

	changed, err := r.Reconcile(context.Background(), reg, round, time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.StatusMet, reg.Status)
}

func TestReconciler_ConfirmedAtGuardBlocksUnconfirmed(t *testing.T) {
	// Status still 'registered' but a confirmation timestamp exists: a
	// concurrent confirm is in flight, so the downgrade must not happen.
	store := newReconcileStore()
	r := New(store, nil, grace, window, zap.NewNop())

	round := testRound(time.Now().Add(-5 * time.Minute))
	reg := testRegistration(round, models.StatusRegistered)
	now := time.Now()
	reg.ConfirmedAt = &now

	changed, err := r.Reconcile(context.Background(), reg, round, now)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.StatusRegistered, reg.Status)
}

func TestReconciler_TriggersMatchingInWindow(t *testing.T) {
	store := newReconcileStore()
	matcher := &fakeMatcher{fired: make(chan uuid.UUID, 1)}
	r := New(store, matcher, grace, window, zap.NewNop())

	round := testRound(time.Now().Add(-time.Minute))
	reg := testRegistration(round, models.StatusRegistered)

	_, err := r.Reconcile(context.Background(), reg, round, time.Now())
	require.NoError(t, err)

	select {
	case fired := <-matcher.fired:
		assert.Equal(t, round.ID, fired)
	case <-time.After(time.Second):
		t.Fatal("matching trigger did not fire")
	}
}

func TestReconciler_NoTriggerOutsideWindow(t *testing.T) {
	store := newReconcileStore()
	matcher := &fakeMatcher{fired: make(chan uuid.UUID, 1)}
	r := New(store, matcher, grace, window, zap.NewNop())

	round := testRound(time.Now().Add(-10 * time.Minute))
	reg := testRegistration(round, models.StatusRegistered)

	_, err := r.Reconcile(context.Background(), reg, round, time.Now())
	require.NoError(t, err)

	select {
	case <-matcher.fired:
		t.Fatal("matching must not fire outside the trigger window")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReconciler_NoTriggerWhenMatchingCompleted(t *testing.T) {
	store := newReconcileStore()
	matcher := &fakeMatcher{fired: make(chan uuid.UUID, 1)}
	r := New(store, matcher, grace, window, zap.NewNop())

	round := testRound(time.Now().Add(-time.Minute))
	store.complete[round.ID] = true
	reg := testRegistration(round, models.StatusRegistered)

	_, err := r.Reconcile(context.Background(), reg, round, time.Now())
	require.NoError(t, err)

	select {
	case <-matcher.fired:
		t.Fatal("matching must not fire once a completed lock exists")
	case <-time.After(50 * time.Millisecond):
	}
}
