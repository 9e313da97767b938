package matching

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mingle-rounds/backend/internal/models"
)

// fakeStore is an in-memory Store for orchestrator tests.
type fakeStore struct {
	mu sync.Mutex

	sessions      map[uuid.UUID]*models.Session
	rounds        map[uuid.UUID]*models.Round
	participants  map[uuid.UUID]models.Participant
	registrations map[uuid.UUID]*models.Registration
	matches       []*models.Match
	meetingPoints []models.MeetingPoint
	locks         map[[2]uuid.UUID]*models.MatchingLock

	failCompleteLock bool
	updateCalls      int
	acquireMisses    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:      make(map[uuid.UUID]*models.Session),
		rounds:        make(map[uuid.UUID]*models.Round),
		participants:  make(map[uuid.UUID]models.Participant),
		registrations: make(map[uuid.UUID]*models.Registration),
		locks:         make(map[[2]uuid.UUID]*models.MatchingLock),
	}
}

func (f *fakeStore) addSession(policy models.MatchingPolicy) *models.Session {
	s := &models.Session{ID: uuid.New(), Title: "test session", MatchingPolicy: policy}
	f.sessions[s.ID] = s
	return s
}

func (f *fakeStore) addRound(sessionID uuid.UUID, groupSize int) *models.Round {
	r := &models.Round{
		ID:                        uuid.New(),
		SessionID:                 sessionID,
		StartsAt:                  time.Now(),
		DurationMinutes:           10,
		GroupSize:                 groupSize,
		ConfirmationWindowMinutes: 15,
	}
	f.rounds[r.ID] = r
	return r
}

func (f *fakeStore) addParticipant(sessionID uuid.UUID, name, team string, topics ...string) models.Participant {
	p := models.Participant{
		ID:        uuid.New(),
		SessionID: sessionID,
		Email:     name + "@example.com",
		FullName:  name,
		Team:      team,
		Topics:    topics,
	}
	f.participants[p.ID] = p
	return p
}

func (f *fakeStore) addRegistration(p models.Participant, roundID uuid.UUID, status models.RegistrationStatus) *models.Registration {
	reg := &models.Registration{
		ID:            uuid.New(),
		ParticipantID: p.ID,
		SessionID:     p.SessionID,
		RoundID:       roundID,
		Status:        status,
	}
	f.registrations[reg.ID] = reg
	return reg
}

func (f *fakeStore) GetSession(_ context.Context, sessionID uuid.UUID) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) GetRound(_ context.Context, sessionID, roundID uuid.UUID) (*models.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rounds[roundID]
	if !ok || r.SessionID != sessionID {
		return nil, ErrRoundNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) AcquireLock(_ context.Context, sessionID, roundID uuid.UUID, staleBefore time.Time) (bool, *models.MatchingLock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireMisses > 0 {
		// Mimics a blocking claim deleted between the insert and the read.
		f.acquireMisses--
		return false, nil, nil
	}
	key := [2]uuid.UUID{sessionID, roundID}
	if l, ok := f.locks[key]; ok {
		if l.State == models.LockRunning && l.StartedAt.Before(staleBefore) {
			l.StartedAt = time.Now()
			return true, nil, nil
		}
		cp := *l
		return false, &cp, nil
	}
	f.locks[key] = &models.MatchingLock{
		SessionID: sessionID,
		RoundID:   roundID,
		State:     models.LockRunning,
		StartedAt: time.Now(),
	}
	return true, nil, nil
}

func (f *fakeStore) CompleteLock(_ context.Context, sessionID, roundID uuid.UUID, res LockResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCompleteLock {
		return errTestInjected
	}
	l := f.locks[[2]uuid.UUID{sessionID, roundID}]
	now := time.Now()
	l.State = models.LockCompleted
	l.MatchCount = res.MatchCount
	l.UnmatchedCount = res.UnmatchedCount
	l.SoloParticipant = res.SoloParticipant
	l.CompletedAt = &now
	return nil
}

func (f *fakeStore) ReleaseLock(_ context.Context, sessionID, roundID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]uuid.UUID{sessionID, roundID}
	if l, ok := f.locks[key]; ok && l.State == models.LockRunning {
		delete(f.locks, key)
	}
	return nil
}

func (f *fakeStore) ListRegistrationsForRound(_ context.Context, sessionID, roundID uuid.UUID) ([]models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Registration
	for _, reg := range f.registrations {
		if reg.SessionID == sessionID && reg.RoundID == roundID {
			out = append(out, *reg)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateRegistration(_ context.Context, registrationID uuid.UUID, change StatusChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	reg := f.registrations[registrationID]
	reg.Status = change.Status
	reg.StatusReason = change.Reason
	reg.MatchID = change.MatchID
	reg.PartnerNames = change.PartnerNames
	reg.MeetingPointID = change.MeetingPointID
	return nil
}

func (f *fakeStore) ListMatchesForSession(_ context.Context, sessionID uuid.UUID) ([]models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Match
	for _, m := range f.matches {
		if m.SessionID == sessionID {
			cp := *m
			cp.MemberIDs = append([]uuid.UUID(nil), m.MemberIDs...)
			out = append(out, cp)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateMatch(_ context.Context, m *models.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	cp := *m
	cp.MemberIDs = append([]uuid.UUID(nil), m.MemberIDs...)
	f.matches = append(f.matches, &cp)
	return nil
}

func (f *fakeStore) AppendMatchMember(_ context.Context, matchID, participantID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.matches {
		if m.ID == matchID {
			m.MemberIDs = append(m.MemberIDs, participantID)
			return nil
		}
	}
	return errTestInjected
}

func (f *fakeStore) GetParticipants(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]models.Participant, len(ids))
	for _, id := range ids {
		if p, ok := f.participants[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeStore) ListMeetingPoints(_ context.Context, sessionID uuid.UUID) ([]models.MeetingPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MeetingPoint
	for _, mp := range f.meetingPoints {
		if mp.SessionID == sessionID {
			out = append(out, mp)
		}
	}
	return out, nil
}

func (f *fakeStore) lock(sessionID, roundID uuid.UUID) *models.MatchingLock {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locks[[2]uuid.UUID{sessionID, roundID}]
}
