package reconcile

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mingle-rounds/backend/internal/models"
)

// Repository is the pgx-backed Store used in production.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a reconcile repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpdateStatus writes a reconciled status, guarded in SQL as well: only a
// registration still in 'registered' or 'unconfirmed' may be reconciled.
func (r *Repository) UpdateStatus(ctx context.Context, registrationID uuid.UUID, status models.RegistrationStatus, reason string) error {
	const q = `UPDATE registrations SET status = $2, status_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status IN ('registered', 'unconfirmed') AND confirmed_at IS NULL`
	_, err := r.pool.Exec(ctx, q, registrationID, string(status), reason)
	return err
}

// MatchingCompleted reports whether a completed matching lock exists for
// the round.
func (r *Repository) MatchingCompleted(ctx context.Context, sessionID, roundID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM matching_locks
		WHERE session_id = $1 AND round_id = $2 AND state = 'completed')`
	var done bool
	err := r.pool.QueryRow(ctx, q, sessionID, roundID).Scan(&done)
	return done, err
}
