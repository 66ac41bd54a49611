package user

import (
	"time"

	"github.com/google/uuid"
)

// Status is the account lifecycle state carried inside access tokens.
type Status string

const (
	StatusUnverified Status = "UNVERIFIED"
	StatusActive     Status = "ACTIVE"
	StatusSuspended  Status = "SUSPENDED"
)

type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	PasswordHash *string    `json:"-"` // Never expose password hash in JSON; nil for OAuth-only accounts
	Name         string     `json:"name"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"-"`
}
