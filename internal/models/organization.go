package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization roles for organization_users.role.
const (
	OrgRoleOwner   = "owner"
	OrgRoleManager = "manager"
)

// Organization is a team of organizers that can co-own sessions.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
