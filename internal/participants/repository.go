package participants

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mingle-rounds/backend/internal/models"
)

// ErrNotFound is returned when a participant does not exist.
var ErrNotFound = errors.New("participant not found")

// Repository handles participant persistence. Email and access token
// lookups go through unique indexes.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a participants repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const participantCols = `id, session_id, email, full_name, team, topics, notify_enabled, access_token, created_at, updated_at`

func scanParticipant(row pgx.Row) (*models.Participant, error) {
	var p models.Participant
	err := row.Scan(&p.ID, &p.SessionID, &p.Email, &p.FullName, &p.Team, &p.Topics, &p.NotifyEnabled, &p.AccessToken, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a participant (unique per session+email). Re-registering
// the same email refreshes the profile but keeps the identity and token.
func (r *Repository) Create(ctx context.Context, p *models.Participant) error {
	const q = `INSERT INTO participants (session_id, email, full_name, team, topics, notify_enabled, access_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, email) DO UPDATE
			SET full_name = EXCLUDED.full_name, team = EXCLUDED.team, topics = EXCLUDED.topics, updated_at = NOW()
		RETURNING id, access_token, notify_enabled, created_at, updated_at`
	if p.Topics == nil {
		p.Topics = []string{}
	}
	return r.pool.QueryRow(ctx, q, p.SessionID, p.Email, p.FullName, p.Team, p.Topics, p.NotifyEnabled, p.AccessToken).
		Scan(&p.ID, &p.AccessToken, &p.NotifyEnabled, &p.CreatedAt, &p.UpdatedAt)
}

// GetByID returns a participant by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	return scanParticipant(r.pool.QueryRow(ctx,
		`SELECT `+participantCols+` FROM participants WHERE id = $1`, id))
}

// GetByToken returns a participant by access token.
func (r *Repository) GetByToken(ctx context.Context, token string) (*models.Participant, error) {
	return scanParticipant(r.pool.QueryRow(ctx,
		`SELECT `+participantCols+` FROM participants WHERE access_token = $1`, token))
}

// GetByEmail returns a participant by session and email.
func (r *Repository) GetByEmail(ctx context.Context, sessionID uuid.UUID, email string) (*models.Participant, error) {
	return scanParticipant(r.pool.QueryRow(ctx,
		`SELECT `+participantCols+` FROM participants WHERE session_id = $1 AND email = $2`, sessionID, email))
}

// ListBySession returns all participants of a session.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+participantCols+` FROM participants WHERE session_id = $1 ORDER BY full_name, email`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Email, &p.FullName, &p.Team, &p.Topics, &p.NotifyEnabled, &p.AccessToken, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// GetMany returns participants by ID, keyed by ID.
func (r *Repository) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+participantCols+` FROM participants WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]models.Participant, len(ids))
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Email, &p.FullName, &p.Team, &p.Topics, &p.NotifyEnabled, &p.AccessToken, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// UpdateProfile mutates team, topics, and notification preference.
func (r *Repository) UpdateProfile(ctx context.Context, p *models.Participant) error {
	const q = `UPDATE participants SET team = $2, topics = $3, notify_enabled = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, p.ID, p.Team, p.Topics, p.NotifyEnabled).Scan(&p.UpdatedAt)
}
