package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Bun table models. Repositories map these to their domain types; nothing
// outside the repository layer touches them.

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Email        string     `bun:"email,notnull,unique"`
	PasswordHash *string    `bun:"password_hash"` // NULL for OAuth-only accounts
	Name         string     `bun:"name,notnull"`
	Status       string     `bun:"status,notnull,default:'UNVERIFIED'"`
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	DeletedAt    *time.Time `bun:"deleted_at"`
}

type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rt"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	TokenHash string    `bun:"token_hash,notnull,unique"`
	UserID    uuid.UUID `bun:"user_id,notnull,type:uuid"`
	Family    uuid.UUID `bun:"family,notnull,type:uuid"`
	Revoked   bool      `bun:"revoked,notnull,default:false"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ActionToken backs both email verification and password reset tokens.
// One row per (user, purpose) at most; replaced on re-issue, deleted on use.
type ActionToken struct {
	bun.BaseModel `bun:"table:action_tokens,alias:at"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	TokenHash string    `bun:"token_hash,notnull,unique"`
	UserID    uuid.UUID `bun:"user_id,notnull,type:uuid"`
	Purpose   string    `bun:"purpose,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

type Group struct {
	bun.BaseModel `bun:"table:groups,alias:g"`

	ID          uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Name        string    `bun:"name,notnull"`
	CreatedByID uuid.UUID `bun:"created_by_id,notnull,type:uuid"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

type GroupMember struct {
	bun.BaseModel `bun:"table:group_members,alias:gm"`

	GroupID   uuid.UUID `bun:"group_id,pk,type:uuid"`
	UserID    uuid.UUID `bun:"user_id,pk,type:uuid"`
	Role      string    `bun:"role,notnull,default:'MEMBER'"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:t"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Title       string     `bun:"title,notnull"`
	Description string     `bun:"description"`
	Status      string     `bun:"status,notnull"`
	GroupID     uuid.UUID  `bun:"group_id,notnull,type:uuid"`
	CreatedByID uuid.UUID  `bun:"created_by_id,notnull,type:uuid"`
	AssigneeID  *uuid.UUID `bun:"assignee_id,type:uuid"`
	AcceptedAt  *time.Time `bun:"accepted_at"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	DeletedAt   *time.Time `bun:"deleted_at"`
}
