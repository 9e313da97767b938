package matching

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mingle-rounds/backend/internal/models"
)

// Repository is the pgx-backed Store used in production.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a matching repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetSession returns the session or ErrSessionNotFound.
func (r *Repository) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	const q = `SELECT id, title, description, matching_policy, created_by, organization_id, created_at, updated_at
		FROM sessions WHERE id = $1`
	var s models.Session
	err := r.pool.QueryRow(ctx, q, sessionID).
		Scan(&s.ID, &s.Title, &s.Description, &s.MatchingPolicy, &s.CreatedBy, &s.OrganizationID, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetRound returns the round scoped to its session or ErrRoundNotFound.
func (r *Repository) GetRound(ctx context.Context, sessionID, roundID uuid.UUID) (*models.Round, error) {
	const q = `SELECT id, session_id, starts_at, duration_minutes, group_size, confirmation_window_minutes, created_at, updated_at
		FROM rounds WHERE id = $1 AND session_id = $2`
	var rd models.Round
	err := r.pool.QueryRow(ctx, q, roundID, sessionID).
		Scan(&rd.ID, &rd.SessionID, &rd.StartsAt, &rd.DurationMinutes, &rd.GroupSize, &rd.ConfirmationWindowMinutes, &rd.CreatedAt, &rd.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRoundNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rd, nil
}

// AcquireLock claims the matching lock with a single atomic insert. When
// the insert loses to an existing row, a second statement attempts takeover
// of a running claim older than staleBefore; completed claims are never
// taken over.
func (r *Repository) AcquireLock(ctx context.Context, sessionID, roundID uuid.UUID, staleBefore time.Time) (bool, *models.MatchingLock, error) {
	const insert = `INSERT INTO matching_locks (session_id, round_id, state, started_at)
		VALUES ($1, $2, 'running', NOW())
		ON CONFLICT (session_id, round_id) DO NOTHING`
	tag, err := r.pool.Exec(ctx, insert, sessionID, roundID)
	if err != nil {
		return false, nil, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil, nil
	}

	const takeover = `UPDATE matching_locks SET started_at = NOW()
		WHERE session_id = $1 AND round_id = $2 AND state = 'running' AND started_at < $3`
	tag, err = r.pool.Exec(ctx, takeover, sessionID, roundID, staleBefore)
	if err != nil {
		return false, nil, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil, nil
	}

	const get = `SELECT session_id, round_id, state, match_count, unmatched_count, solo_participant, started_at, completed_at
		FROM matching_locks WHERE session_id = $1 AND round_id = $2`
	var l models.MatchingLock
	err = r.pool.QueryRow(ctx, get, sessionID, roundID).
		Scan(&l.SessionID, &l.RoundID, &l.State, &l.MatchCount, &l.UnmatchedCount, &l.SoloParticipant, &l.StartedAt, &l.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// The blocking claim was released between statements.
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return false, &l, nil
}

// CompleteLock finalizes a running claim with the run's counts.
func (r *Repository) CompleteLock(ctx context.Context, sessionID, roundID uuid.UUID, res LockResult) error {
	const q = `UPDATE matching_locks
		SET state = 'completed', match_count = $3, unmatched_count = $4, solo_participant = $5, completed_at = NOW()
		WHERE session_id = $1 AND round_id = $2 AND state = 'running'`
	tag, err := r.pool.Exec(ctx, q, sessionID, roundID, res.MatchCount, res.UnmatchedCount, res.SoloParticipant)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("matching lock not held")
	}
	return nil
}

// ReleaseLock deletes a running claim. Completed locks are permanent.
func (r *Repository) ReleaseLock(ctx context.Context, sessionID, roundID uuid.UUID) error {
	const q = `DELETE FROM matching_locks
		WHERE session_id = $1 AND round_id = $2 AND state = 'running'`
	_, err := r.pool.Exec(ctx, q, sessionID, roundID)
	return err
}

// GetLock returns the matching lock for a round, or nil when matching has
// not run.
func (r *Repository) GetLock(ctx context.Context, sessionID, roundID uuid.UUID) (*models.MatchingLock, error) {
	const q = `SELECT session_id, round_id, state, match_count, unmatched_count, solo_participant, started_at, completed_at
		FROM matching_locks WHERE session_id = $1 AND round_id = $2`
	var l models.MatchingLock
	err := r.pool.QueryRow(ctx, q, sessionID, roundID).
		Scan(&l.SessionID, &l.RoundID, &l.State, &l.MatchCount, &l.UnmatchedCount, &l.SoloParticipant, &l.StartedAt, &l.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListRegistrationsForRound returns every registration of the round.
func (r *Repository) ListRegistrationsForRound(ctx context.Context, sessionID, roundID uuid.UUID) ([]models.Registration, error) {
	const q = `SELECT id, participant_id, session_id, round_id, status, status_reason, match_id, partner_names,
			meeting_point_id, notify_enabled, registered_at, confirmed_at, checked_in_at, met_confirmed_at, updated_at
		FROM registrations WHERE session_id = $1 AND round_id = $2`
	rows, err := r.pool.Query(ctx, q, sessionID, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		var reg models.Registration
		if err := rows.Scan(&reg.ID, &reg.ParticipantID, &reg.SessionID, &reg.RoundID, &reg.Status, &reg.StatusReason,
			&reg.MatchID, &reg.PartnerNames, &reg.MeetingPointID, &reg.NotifyEnabled,
			&reg.RegisteredAt, &reg.ConfirmedAt, &reg.CheckedInAt, &reg.MetConfirmedAt, &reg.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, reg)
	}
	return list, rows.Err()
}

// UpdateRegistration writes the matching outcome to a registration. Partner
// names and match pointers are written as given, including nil, so a status
// change fully replaces the previous matching result.
func (r *Repository) UpdateRegistration(ctx context.Context, registrationID uuid.UUID, change StatusChange) error {
	const q = `UPDATE registrations
		SET status = $2, status_reason = $3, match_id = $4, partner_names = $5, meeting_point_id = $6, updated_at = NOW()
		WHERE id = $1`
	names := change.PartnerNames
	if names == nil {
		names = []string{}
	}
	_, err := r.pool.Exec(ctx, q, registrationID,
		string(change.Status), change.Reason, change.MatchID, names, change.MeetingPointID)
	return err
}

// ListMatchesForSession returns every match of the session with member IDs
// assembled from the join table. Feeds meeting history replay.
func (r *Repository) ListMatchesForSession(ctx context.Context, sessionID uuid.UUID) ([]models.Match, error) {
	const q = `SELECT id, session_id, round_id, meeting_point_id, created_at
		FROM matches WHERE session_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var matches []models.Match
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var m models.Match
		if err := rows.Scan(&m.ID, &m.SessionID, &m.RoundID, &m.MeetingPointID, &m.CreatedAt); err != nil {
			return nil, err
		}
		index[m.ID] = len(matches)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	const members = `SELECT mm.match_id, mm.participant_id
		FROM match_members mm
		JOIN matches m ON m.id = mm.match_id
		WHERE m.session_id = $1`
	mrows, err := r.pool.Query(ctx, members, sessionID)
	if err != nil {
		return nil, err
	}
	defer mrows.Close()
	for mrows.Next() {
		var matchID, participantID uuid.UUID
		if err := mrows.Scan(&matchID, &participantID); err != nil {
			return nil, err
		}
		if i, ok := index[matchID]; ok {
			matches[i].MemberIDs = append(matches[i].MemberIDs, participantID)
		}
	}
	return matches, mrows.Err()
}

// CreateMatch inserts the match and its members in one transaction.
func (r *Repository) CreateMatch(ctx context.Context, m *models.Match) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO matches (session_id, round_id, meeting_point_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	if err := tx.QueryRow(ctx, q, m.SessionID, m.RoundID, m.MeetingPointID).Scan(&m.ID, &m.CreatedAt); err != nil {
		return err
	}
	const member = `INSERT INTO match_members (match_id, participant_id) VALUES ($1, $2)`
	for _, pid := range m.MemberIDs {
		if _, err := tx.Exec(ctx, member, m.ID, pid); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// AppendMatchMember adds one participant to an existing match.
func (r *Repository) AppendMatchMember(ctx context.Context, matchID, participantID uuid.UUID) error {
	const q = `INSERT INTO match_members (match_id, participant_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`
	_, err := r.pool.Exec(ctx, q, matchID, participantID)
	return err
}

// GetParticipants loads the given participants keyed by ID.
func (r *Repository) GetParticipants(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Participant, error) {
	const q = `SELECT id, session_id, email, full_name, team, topics, notify_enabled, access_token, created_at, updated_at
		FROM participants WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]models.Participant, len(ids))
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Email, &p.FullName, &p.Team, &p.Topics,
			&p.NotifyEnabled, &p.AccessToken, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// ListMeetingPoints returns the session's meeting points in position order.
func (r *Repository) ListMeetingPoints(ctx context.Context, sessionID uuid.UUID) ([]models.MeetingPoint, error) {
	const q = `SELECT id, session_id, name, description, position, created_at
		FROM meeting_points WHERE session_id = $1 ORDER BY position ASC, created_at ASC`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.MeetingPoint
	for rows.Next() {
		var mp models.MeetingPoint
		if err := rows.Scan(&mp.ID, &mp.SessionID, &mp.Name, &mp.Description, &mp.Position, &mp.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, mp)
	}
	return list, rows.Err()
}
