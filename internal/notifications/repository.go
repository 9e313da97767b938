package notifications

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mingle-rounds/backend/internal/models"
)

// Repository handles notification log persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notifications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordSent logs a successful delivery.
func (r *Repository) RecordSent(ctx context.Context, log *models.NotificationLog) error {
	const q = `INSERT INTO notification_logs (session_id, registration_id, type, recipient_email, subject, status, sent_at)
		VALUES ($1, $2, $3, $4, $5, 'sent', NOW())
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, log.SessionID, log.RegistrationID, log.Type, log.RecipientEmail, log.Subject).
		Scan(&log.ID, &log.CreatedAt)
}

// RecordFailed logs a delivery failure.
func (r *Repository) RecordFailed(ctx context.Context, log *models.NotificationLog, errMsg string) error {
	const q = `INSERT INTO notification_logs (session_id, registration_id, type, recipient_email, subject, status, error_message)
		VALUES ($1, $2, $3, $4, $5, 'failed', $6)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, log.SessionID, log.RegistrationID, log.Type, log.RecipientEmail, log.Subject, errMsg).
		Scan(&log.ID, &log.CreatedAt)
}

// ListBySession returns a session's notification logs, newest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.NotificationLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `SELECT id, session_id, registration_id, type, recipient_email, subject, status, sent_at, error_message, created_at
		FROM notification_logs WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.NotificationLog
	for rows.Next() {
		var l models.NotificationLog
		if err := rows.Scan(&l.ID, &l.SessionID, &l.RegistrationID, &l.Type, &l.RecipientEmail, &l.Subject,
			&l.Status, &l.SentAt, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}
