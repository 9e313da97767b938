package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationLog records a notification delivery attempt for a
// registration (match results, confirmation reminders).
type NotificationLog struct {
	ID             uuid.UUID  `json:"id"`
	SessionID      uuid.UUID  `json:"session_id"`
	RegistrationID uuid.UUID  `json:"registration_id"`
	Type           string     `json:"type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"` // sent | failed
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
