package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mingle-rounds/backend/internal/models"
)

var errTestInjected = errors.New("injected failure")

func newTestOrchestrator(store Store, opts ...Option) *Orchestrator {
	return NewOrchestrator(store, zap.NewNop(), opts...)
}

func TestOrchestrator_Run_PairsAbsorbOddLeftover(t *testing.T) {
	f := newFakeStore()
	s := f.addSession(models.PolicyAcrossTeams)
	r := f.addRound(s.ID, 2)
	for _, name := range []string{"ana", "ben", "cio", "dia", "eli"} {
		p := f.addParticipant(s.ID, name, "")
		f.addRegistration(p, r.ID, models.StatusConfirmed)
	}

	res, err := newTestOrchestrator(f).Run(context.Background(), s.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.MatchCount)
	assert.Equal(t, 0, res.UnmatchedCount)
	assert.False(t, res.AlreadyCompleted)

	// Five confirmed, pair size 2: two matches, one of them a trio.
	sizes := []int{len(f.matches[0].MemberIDs), len(f.matches[1].MemberIDs)}
	assert.ElementsMatch(t, []int{2, 3}, sizes)

	for _, reg := range f.registrations {
		assert.Equal(t, models.StatusMatched, reg.Status)
		require.NotNil(t, reg.MatchID)
		assert.NotEmpty(t, reg.PartnerNames)
	}

	lock := f.lock(s.ID, r.ID)
	require.NotNil(t, lock)
	assert.Equal(t, models.LockCompleted, lock.State)
	assert.Equal(t, 2, lock.MatchCount)
	assert.Equal(t, 0, lock.UnmatchedCount)
}

func TestOrchestrator_Run_TrioMemberSeesTwoPartners(t *testing.T) {
	f := newFakeStore()
	s := f.addSession(models.PolicyAcrossTeams)
	r := f.addRound(s.ID, 2)
	for _, name := range []string{"ana", "ben", "cio"} {
		p := f.addParticipant(s.ID, name, "")
		f.addRegistration(p, r.ID, models.StatusConfirmed)
	}

	res, err := newTestOrchestrator(f).Run(context.Background(), s.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.MatchCount)
	assert.Equal(t, 0, res.UnmatchedCount)

	require.Len(t, f.matches, 1)
	assert.Len(t, f.matches[0].MemberIDs, 3)
	for _, reg := range f.registrations {
		assert.Equal(t, models.StatusMatched, reg.Status)
		assert.Len(t, reg.PartnerNames, 2)
	}
}

func TestOrchestrator_Run_SoloParticipant(t *testing.T) {
	f := newFakeStore()
	s := f.addSession(models.PolicyAcrossTeams)
	r := f.addRound(s.ID, 2)
	p := f.addParticipant(s.ID, "ana", "")
	reg := f.addRegistration(p, r.ID, models.StatusConfirmed)

	res, err := newTestOrchestrator(f).Run(context.Background(), s.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.MatchCount)
	assert.Equal(t, 1, res.UnmatchedCount)
	assert.True(t, res.SoloParticipant)

	assert.Equal(t, models.StatusNoMatch, reg.Status)
	assert.Equal(t, ReasonSoloConfirmed, reg.StatusReason)

	lock := f.lock(s.ID, r.ID)
	require.NotNil(t, lock)
	assert.Equal(t, models.LockCompleted, lock.State)
	assert.True(t, lock.SoloParticipant)
}

func TestOrchestrator_Run_NobodyConfirmed(t *testing.T) {
	f := newFakeStore()
	s := f.addSession(models.PolicyAcrossTeams)
	r := f.addRound(s.ID, 2)
	var regs []*models.Registration
	for _, name := range []string{"ana", "ben", "cio"} {
		p := f.addParticipant(s.ID, name, "")
		regs = append(regs, f.addRegistration(p, r.ID, models.StatusRegistered))
	}

	res, err := newTestOrchestrator(f).Run(context.Background(), s.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	for _, reg := range regs {
		assert.Equal(t, models.StatusUnconfirmed, reg.Status)
		assert.Equal(t, ReasonNotConfirmed, reg.StatusReason)
	}
	assert.Empty(t, f.matches)

	lock := f.lock(s.ID, r.ID)
	require.NotNil(t, lock)
	assert.Equal(t, models.LockCompleted, lock.State)
	assert.Equal(t, 0, lock.MatchCount)
}

func TestOrchestrator_Run_SecondRunShortCircuits(t *testing.T) {
	f := newFakeStore()
	s := f.addSession(models.PolicyAcrossTeams)
	r := f.addRound(s.ID, 2)
	for _, name := range []string{"ana", "ben", "cio", "dia"} {
		p := f.addParticipant(s.ID, name, "")
		f.addRegistration(p, r.ID, models.StatusConfirmed)
	}

	o := newTestOrchestrator(f)
	first, err := o.Run(context.Background(), s.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, first.MatchCount)

	matchesBefore := len(f.matches)
	updatesBefore := f.updateCalls

	second, err := o.Run(context.Background(), s.ID, r.ID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyCompleted)
	assert.Equal(t, 0, second.MatchCount)

	// No new matches and no registration writes on the repeat run.
	assert.Equal(t, matchesBefore, len(f.matches))
	assert.Equal(t, updatesBefore, f.updateCalls)
}

func TestOrchestrator_Run_EveryConfirmedGetsOutcome(t *testing.T) {
	f := newFakeStore()
	s := f.addSession(models.PolicyAcrossTeams)
	r := f.addRound(s.ID, 4)
	for i := 0; i < 6; i++ {
		p := f.addParticipant(s.ID, string(rune('a'+i)), "")
		f.addRegistration(p, r.ID, models.StatusConfirmed)
	}

	res, err := newTestOrchestrator(f).Run(context.Background(), s.ID, r.ID)
	require.NoError(t, err)

	// Group size 4 with 6 confirmed: one group of four, two leftovers that
	// cannot be absorbed (absorption is single-leftover only).
	assert.Equal(t, 1, res.MatchCount)
	assert.Equal(t, 2, res.UnmatchedCount)

	matched, noMatch := 0, 0
	for _, reg := range f.registrations {
		switch reg.Status {
		case models.StatusMatched:
			matched++
		case models.StatusNoMatch:
			noMatch++
			assert.Equal(t, ReasonNoGroupFormed, reg.StatusReason)
		default:
			t.Fatalf("registration left in status %s", reg.Status)
		}
	}
	assert.Equal(t, 4, matched)
	assert.Equal(t, 2, noMatch)
}

func TestOrchestrator_Run_NoveltyPreferred(t *testing.T) {
	f := newFakeStore()
	s := f.addSession(models.PolicyAcrossTeams)

	ana := f.addParticipant(s.ID, "ana", "")
	ben := f.addParticipant(s.ID, "ben", "")
	cio := f.addParticipant(s.ID, "cio", "")
	dia := f.addParticipant(s.ID, "dia", "")

	// Prior round: ana+ben and cio+dia already met.
	prior := f.addRound(s.ID, 2)
	f.matches = append(f.matches,
		&models.Match{ID: uuid.New(), SessionID: s.ID, RoundID: prior.ID, MemberIDs: []uuid.UUID{ana.ID, ben.ID}},
		&models.Match{ID: uuid.New(), SessionID: s.ID, RoundID: prior.ID, MemberIDs: []uuid.UUID{cio.ID, dia.ID}},
	)

	r := f.addRound(s.ID, 2)
	regs := map[uuid.UUID]*models.Registration{}
	for _, p := range []models.Participant{ana, ben, cio, dia} {
		regs[p.ID] = f.addRegistration(p, r.ID, models.StatusConfirmed)
	}

	res, err := newTestOrchestrator(f).Run(context.Background(), s.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.MatchCount)

	// The repeat pairs must be avoided: ana's new partner is cio or dia.
	anaMatch := regs[ana.ID].MatchID
	benMatch := regs[ben.ID].MatchID
	require.NotNil(t, anaMatch)
	require.NotNil(t, benMatch)
	assert.NotEqual(t, *anaMatch, *benMatch)
	assert.NotEqual(t, *regs[cio.ID].MatchID, *regs[dia.ID].MatchID)
}

func TestOrchestrator_Run_MeetingPointsRoundRobin(t *testing.T) {
	f := newFakeStore()
	s := f.addSession(models.PolicyAcrossTeams)
	f.meetingPoints = []models.MeetingPoint{
		{ID: uuid.New(), SessionID: s.ID, Name: "lobby", Position: 1},
		{ID: uuid.New(), SessionID: s.ID, Name: "terrace", Position: 2},
	}
	r := f.addRound(s.ID, 2)
	for i := 0; i < 6; i++ {
		p := f.addParticipant(s.ID, string(rune('a'+i)), "")
		f.addRegistration(p, r.ID, models.StatusConfirmed)
	}

	res, err := newTestOrchestrator(f).Run(context.Background(), s.ID, r.ID)
	require.NoError(t, err)
	require.Equal(t, 3, res.MatchCount)

	counts := map[uuid.UUID]int{}
	for _, m := range f.matches {
		require.NotNil(t, m.MeetingPointID)
		counts[*m.MeetingPointID]++
	}
	assert.Equal(t, 2, counts[f.meetingPoints[0].ID])
	assert.Equal(t, 1, counts[f.meetingPoints[1].ID])
}

func TestOrchestrator_Run_FailedRunReleasesLock(t *testing.T) {
	f := newFakeStore()
	s := f.addSession(models.PolicyAcrossTeams)
	r := f.addRound(s.ID, 2)
	p := f.addParticipant(s.ID, "ana", "")
	f.addRegistration(p, r.ID, models.StatusConfirmed)

	f.failCompleteLock = true
	_, err := newTestOrchestrator(f).Run(context.Background(), s.ID, r.ID)
	require.Error(t, err)

	// The running claim is gone, so a retry can run again.
	assert.Nil(t, f.lock(s.ID, r.ID))

	f.failCompleteLock = false
	res, err := newTestOrchestrator(f).Run(context.Background(), s.ID, r.ID)
	require.NoError(t, err)
	assert.False(t, res.AlreadyCompleted)

	lock := f.lock(s.ID, r.ID)
	require.NotNil(t, lock)
	assert.Equal(t, models.LockCompleted, lock.State)
}

func TestOrchestrator_Run_UnknownRound(t *testing.T) {
	f := newFakeStore()
	s := f.addSession(models.PolicyAcrossTeams)

	_, err := newTestOrchestrator(f).Run(context.Background(), s.ID, uuid.New())
	assert.ErrorIs(t, err, ErrRoundNotFound)

	_, err = newTestOrchestrator(f).Run(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestOrchestrator_Run_DeterministicAcrossRuns(t *testing.T) {
	build := func() (*fakeStore, uuid.UUID, uuid.UUID, []uuid.UUID) {
		f := newFakeStore()
		s := f.addSession(models.PolicyAcrossTeams)
		r := f.addRound(s.ID, 2)
		ids := make([]uuid.UUID, 0, 4)
		for _, seed := range []string{"11111111", "22222222", "33333333", "44444444"} {
			p := models.Participant{
				ID:        uuid.MustParse(seed[:8] + "-0000-0000-0000-000000000000"),
				SessionID: s.ID,
				FullName:  seed,
			}
			f.participants[p.ID] = p
			f.addRegistration(p, r.ID, models.StatusConfirmed)
			ids = append(ids, p.ID)
		}
		return f, s.ID, r.ID, ids
	}

	pairing := func() map[uuid.UUID]uuid.UUID {
		f, sid, rid, _ := build()
		_, err := newTestOrchestrator(f).Run(context.Background(), sid, rid)
		require.NoError(t, err)
		out := map[uuid.UUID]uuid.UUID{}
		for _, reg := range f.registrations {
			out[reg.ParticipantID] = *reg.MatchID
		}
		// Match IDs differ between runs; normalize to partner identity.
		partner := map[uuid.UUID]uuid.UUID{}
		for a, ma := range out {
			for b, mb := range out {
				if a != b && ma == mb {
					partner[a] = b
				}
			}
		}
		return partner
	}

	assert.Equal(t, pairing(), pairing())
}

func TestOrchestrator_Run_RetriesAcquireWhenClaimVanishes(t *testing.T) {
	// A failed concurrent run deletes its claim between the insert and the
	// read. The retry must win the lock and run matching rather than report
	// the round as already completed.
	f := newFakeStore()
	s := f.addSession(models.PolicyAcrossTeams)
	r := f.addRound(s.ID, 2)
	for _, name := range []string{"ana", "ben"} {
		p := f.addParticipant(s.ID, name, "")
		f.addRegistration(p, r.ID, models.StatusConfirmed)
	}
	f.acquireMisses = 1

	res, err := newTestOrchestrator(f).Run(context.Background(), s.ID, r.ID)
	require.NoError(t, err)
	assert.False(t, res.AlreadyCompleted)
	assert.Equal(t, 1, res.MatchCount)

	lock := f.lock(s.ID, r.ID)
	require.NotNil(t, lock)
	assert.Equal(t, models.LockCompleted, lock.State)
}
