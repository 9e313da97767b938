package registrations

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mingle-rounds/backend/internal/models"
)

var (
	// ErrNotFound is returned when a registration does not exist.
	ErrNotFound = errors.New("registration not found")
	// ErrNoTransition is returned when a conditional status update matched
	// no row, meaning the registration was not in the required state.
	ErrNoTransition = errors.New("registration not in a state that allows this transition")
)

const regCols = `id, participant_id, session_id, round_id, status, status_reason, match_id, partner_names,
	meeting_point_id, notify_enabled, registered_at, confirmed_at, checked_in_at, met_confirmed_at, updated_at`

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	err := row.Scan(&reg.ID, &reg.ParticipantID, &reg.SessionID, &reg.RoundID, &reg.Status, &reg.StatusReason,
		&reg.MatchID, &reg.PartnerNames, &reg.MeetingPointID, &reg.NotifyEnabled,
		&reg.RegisteredAt, &reg.ConfirmedAt, &reg.CheckedInAt, &reg.MetConfirmedAt, &reg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// Repository handles registration persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create registers a participant for a round. Registering twice returns the
// existing registration unchanged.
func (r *Repository) Create(ctx context.Context, participantID, sessionID, roundID uuid.UUID, notify bool) (*models.Registration, error) {
	const q = `INSERT INTO registrations (participant_id, session_id, round_id, status, notify_enabled)
		VALUES ($1, $2, $3, 'registered', $4)
		ON CONFLICT (participant_id, round_id) DO NOTHING`
	if _, err := r.pool.Exec(ctx, q, participantID, sessionID, roundID, notify); err != nil {
		return nil, err
	}
	return r.GetForParticipantRound(ctx, participantID, roundID)
}

// GetByID returns a registration by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	const q = `SELECT ` + regCols + ` FROM registrations WHERE id = $1`
	return scanRegistration(r.pool.QueryRow(ctx, q, id))
}

// GetForParticipantRound returns the participant's registration for a round.
func (r *Repository) GetForParticipantRound(ctx context.Context, participantID, roundID uuid.UUID) (*models.Registration, error) {
	const q = `SELECT ` + regCols + ` FROM registrations WHERE participant_id = $1 AND round_id = $2`
	return scanRegistration(r.pool.QueryRow(ctx, q, participantID, roundID))
}

// ListForParticipant returns all registrations of a participant, newest
// round first.
func (r *Repository) ListForParticipant(ctx context.Context, participantID uuid.UUID) ([]models.Registration, error) {
	const q = `SELECT ` + regCols + ` FROM registrations WHERE participant_id = $1 ORDER BY registered_at DESC`
	return r.list(ctx, q, participantID)
}

// ListForRound returns every registration of a round.
func (r *Repository) ListForRound(ctx context.Context, roundID uuid.UUID) ([]models.Registration, error) {
	const q = `SELECT ` + regCols + ` FROM registrations WHERE round_id = $1`
	return r.list(ctx, q, roundID)
}

// ListForMatch returns the registrations of every member of a match.
func (r *Repository) ListForMatch(ctx context.Context, matchID uuid.UUID) ([]models.Registration, error) {
	const q = `SELECT ` + regCols + ` FROM registrations WHERE match_id = $1`
	return r.list(ctx, q, matchID)
}

func (r *Repository) list(ctx context.Context, q string, args ...interface{}) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Registration
	for rows.Next() {
		var reg models.Registration
		if err := rows.Scan(&reg.ID, &reg.ParticipantID, &reg.SessionID, &reg.RoundID, &reg.Status, &reg.StatusReason,
			&reg.MatchID, &reg.PartnerNames, &reg.MeetingPointID, &reg.NotifyEnabled,
			&reg.RegisteredAt, &reg.ConfirmedAt, &reg.CheckedInAt, &reg.MetConfirmedAt, &reg.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

// Confirm moves registered to confirmed. The WHERE clause carries the state
// precondition so a concurrent matching run cannot be overwritten.
func (r *Repository) Confirm(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE registrations SET status = 'confirmed', confirmed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'registered'`
	return r.conditional(ctx, q, id)
}

// CheckIn moves matched to checked_in.
func (r *Repository) CheckIn(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE registrations SET status = 'checked_in', checked_in_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'matched'`
	return r.conditional(ctx, q, id)
}

// MarkMeetConfirmed stamps met_confirmed_at for a checked-in or waiting
// member.
func (r *Repository) MarkMeetConfirmed(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE registrations SET met_confirmed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('checked_in', 'awaiting_meet') AND met_confirmed_at IS NULL`
	return r.conditional(ctx, q, id)
}

// SetStatus writes a status and reason unconditionally by ID.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status models.RegistrationStatus, reason string) error {
	const q = `UPDATE registrations SET status = $2, status_reason = $3, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, string(status), reason)
	return err
}

// SetStatusAll writes a status for a set of registrations in one statement.
func (r *Repository) SetStatusAll(ctx context.Context, ids []uuid.UUID, status models.RegistrationStatus, reason string) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `UPDATE registrations SET status = $2, status_reason = $3, updated_at = NOW() WHERE id = ANY($1)`
	_, err := r.pool.Exec(ctx, q, ids, string(status), reason)
	return err
}

// Cancel withdraws a registration unless it already reached an end state.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE registrations SET status = 'cancelled', status_reason = '', updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('no_match', 'met', 'missed', 'left_alone', 'completed', 'cancelled')`
	return r.conditional(ctx, q, id)
}

func (r *Repository) conditional(ctx context.Context, q string, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoTransition
	}
	return nil
}
