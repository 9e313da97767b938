package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mingle-rounds/backend/internal/models"
)

// ErrNotFound is returned when a session or round does not exist.
var ErrNotFound = errors.New("not found")

// Repository handles session, round, and meeting point persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new session.
func (r *Repository) Create(ctx context.Context, s *models.Session) error {
	const q = `INSERT INTO sessions (title, description, matching_policy, created_by, organization_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.Title, s.Description, string(s.MatchingPolicy), s.CreatedBy, s.OrganizationID).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns a session by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const q = `SELECT id, title, description, matching_policy, created_by, organization_id, created_at, updated_at
		FROM sessions WHERE id = $1`
	var s models.Session
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&s.ID, &s.Title, &s.Description, &s.MatchingPolicy, &s.CreatedBy, &s.OrganizationID, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListForUser returns sessions the user created or co-owns via an organization.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	const q = `SELECT DISTINCT s.id, s.title, s.description, s.matching_policy, s.created_by, s.organization_id, s.created_at, s.updated_at
		FROM sessions s
		LEFT JOIN organization_users ou ON ou.organization_id = s.organization_id
		WHERE s.created_by = $1 OR ou.user_id = $1
		ORDER BY s.created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.MatchingPolicy, &s.CreatedBy, &s.OrganizationID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Update mutates session title, description, and matching policy.
func (r *Repository) Update(ctx context.Context, s *models.Session) error {
	const q = `UPDATE sessions SET title = $2, description = $3, matching_policy = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, s.ID, s.Title, s.Description, string(s.MatchingPolicy)).Scan(&s.UpdatedAt)
}

// Delete removes a session and everything under it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// CreateRound inserts a round into a session.
func (r *Repository) CreateRound(ctx context.Context, rd *models.Round) error {
	const q = `INSERT INTO rounds (session_id, starts_at, duration_minutes, group_size, confirmation_window_minutes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, rd.SessionID, rd.StartsAt, rd.DurationMinutes, rd.GroupSize, rd.ConfirmationWindowMinutes).
		Scan(&rd.ID, &rd.CreatedAt, &rd.UpdatedAt)
}

// GetRound returns a round scoped to its session.
func (r *Repository) GetRound(ctx context.Context, sessionID, roundID uuid.UUID) (*models.Round, error) {
	const q = `SELECT id, session_id, starts_at, duration_minutes, group_size, confirmation_window_minutes, created_at, updated_at
		FROM rounds WHERE id = $1 AND session_id = $2`
	var rd models.Round
	err := r.pool.QueryRow(ctx, q, roundID, sessionID).
		Scan(&rd.ID, &rd.SessionID, &rd.StartsAt, &rd.DurationMinutes, &rd.GroupSize, &rd.ConfirmationWindowMinutes, &rd.CreatedAt, &rd.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rd, nil
}

// ListRounds returns all rounds of a session in start order.
func (r *Repository) ListRounds(ctx context.Context, sessionID uuid.UUID) ([]models.Round, error) {
	const q = `SELECT id, session_id, starts_at, duration_minutes, group_size, confirmation_window_minutes, created_at, updated_at
		FROM rounds WHERE session_id = $1 ORDER BY starts_at ASC`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Round
	for rows.Next() {
		var rd models.Round
		if err := rows.Scan(&rd.ID, &rd.SessionID, &rd.StartsAt, &rd.DurationMinutes, &rd.GroupSize, &rd.ConfirmationWindowMinutes, &rd.CreatedAt, &rd.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, rd)
	}
	return list, rows.Err()
}

// UpdateRound mutates a round's schedule fields.
func (r *Repository) UpdateRound(ctx context.Context, rd *models.Round) error {
	const q = `UPDATE rounds SET starts_at = $3, duration_minutes = $4, group_size = $5, confirmation_window_minutes = $6, updated_at = NOW()
		WHERE id = $1 AND session_id = $2
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, rd.ID, rd.SessionID, rd.StartsAt, rd.DurationMinutes, rd.GroupSize, rd.ConfirmationWindowMinutes).
		Scan(&rd.UpdatedAt)
}

// ListDueRounds returns rounds whose start time is within (now-lookback, now]
// and which have no completed matching lock. Used by the worker sweep as the
// fallback trigger for rounds nobody polls.
func (r *Repository) ListDueRounds(ctx context.Context, now time.Time, lookback time.Duration) ([]models.Round, error) {
	const q = `SELECT r.id, r.session_id, r.starts_at, r.duration_minutes, r.group_size, r.confirmation_window_minutes, r.created_at, r.updated_at
		FROM rounds r
		LEFT JOIN matching_locks l ON l.round_id = r.id AND l.state = 'completed'
		WHERE r.starts_at <= $1 AND r.starts_at > $2 AND l.round_id IS NULL
		ORDER BY r.starts_at ASC`
	rows, err := r.pool.Query(ctx, q, now, now.Add(-lookback))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Round
	for rows.Next() {
		var rd models.Round
		if err := rows.Scan(&rd.ID, &rd.SessionID, &rd.StartsAt, &rd.DurationMinutes, &rd.GroupSize, &rd.ConfirmationWindowMinutes, &rd.CreatedAt, &rd.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, rd)
	}
	return list, rows.Err()
}

// ClaimReminder marks the round's confirmation reminder as sent. Returns
// false if another worker already claimed it.
func (r *Repository) ClaimReminder(ctx context.Context, roundID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE rounds SET reminder_sent_at = NOW() WHERE id = $1 AND reminder_sent_at IS NULL`, roundID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListRoundsOpeningConfirmation returns rounds whose confirmation window has
// opened but whose reminder has not been claimed yet.
func (r *Repository) ListRoundsOpeningConfirmation(ctx context.Context, now time.Time) ([]models.Round, error) {
	const q = `SELECT id, session_id, starts_at, duration_minutes, group_size, confirmation_window_minutes, created_at, updated_at
		FROM rounds
		WHERE reminder_sent_at IS NULL
		  AND starts_at > $1
		  AND starts_at - (confirmation_window_minutes * INTERVAL '1 minute') <= $1
		ORDER BY starts_at ASC`
	rows, err := r.pool.Query(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Round
	for rows.Next() {
		var rd models.Round
		if err := rows.Scan(&rd.ID, &rd.SessionID, &rd.StartsAt, &rd.DurationMinutes, &rd.GroupSize, &rd.ConfirmationWindowMinutes, &rd.CreatedAt, &rd.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, rd)
	}
	return list, rows.Err()
}

// CreateMeetingPoint inserts a meeting point for a session.
func (r *Repository) CreateMeetingPoint(ctx context.Context, mp *models.MeetingPoint) error {
	const q = `INSERT INTO meeting_points (session_id, name, description, position)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, mp.SessionID, mp.Name, mp.Description, mp.Position).
		Scan(&mp.ID, &mp.CreatedAt)
}

// ListMeetingPoints returns a session's meeting points in position order.
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

// DeleteMeetingPoint removes a meeting point.
func (r *Repository) DeleteMeetingPoint(ctx context.Context, sessionID, pointID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM meeting_points WHERE id = $1 AND session_id = $2`, pointID, sessionID)
	return err
}
