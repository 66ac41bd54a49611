package group

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrGroupNotFound    = errors.New("group not found")
	ErrNotAMember       = errors.New("user is not a member of this group")
	ErrNotAdmin         = errors.New("admin role required")
	ErrAlreadyMember    = errors.New("user is already a member of this group")
	ErrLastAdminRemoval = errors.New("cannot remove the last admin of a group")
	ErrNameRequired     = errors.New("group name is required")
)

// Role is a member's authority level inside a group.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

type Group struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type Member struct {
	GroupID  uuid.UUID `json:"group_id"`
	UserID   uuid.UUID `json:"user_id"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}
