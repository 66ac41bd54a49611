package group

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/redmonkez12/taskhive/internal/user"
)

// ErrUserNotFound is returned when a membership change targets an unknown or
// deleted account.
var ErrUserNotFound = errors.New("user not found")

// ErrInvalidRole is returned when a membership change names an unknown role.
var ErrInvalidRole = errors.New("invalid role")

// Store is the slice of the repository the service needs.
type Store interface {
	Create(ctx context.Context, name string, createdBy uuid.UUID) (*Group, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Group, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*Group, error)
	AddMember(ctx context.Context, groupID, userID uuid.UUID, role Role) (*Member, error)
	GetMember(ctx context.Context, groupID, userID uuid.UUID) (*Member, error)
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]*Member, error)
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error
}

// UserDirectory resolves account existence for membership changes.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// Service handles group business logic and is the single authority on
// membership: task authorization delegates here instead of reading
// membership rows itself.
type Service struct {
	store Store
	users UserDirectory
}

func NewService(store Store, users UserDirectory) *Service {
	return &Service{store: store, users: users}
}

// Create makes a new group with the caller as its first admin
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, name string) (*Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	return s.store.Create(ctx, name, actorID)
}

// Get returns a group, visible to members only
func (s *Service) Get(ctx context.Context, actorID, groupID uuid.UUID) (*Group, error) {
	if err := s.AssertMember(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	return s.store.GetByID(ctx, groupID)
}

// ListForUser returns all groups the caller belongs to
func (s *Service) ListForUser(ctx context.Context, actorID uuid.UUID) ([]*Group, error) {
	return s.store.ListForUser(ctx, actorID)
}

// AddMember enrolls a user into the group. Admin only.
func (s *Service) AddMember(ctx context.Context, actorID, groupID, targetID uuid.UUID, role Role) (*Member, error) {
	if err := s.AssertAdmin(ctx, groupID, actorID); err != nil {
		return nil, err
	}

	if role == "" {
		role = RoleMember
	}
	if role != RoleAdmin && role != RoleMember {
		return nil, ErrInvalidRole
	}

	// Deleted accounts are invisible here, so a membership can never point
	// at a dead user.
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	return s.store.AddMember(ctx, groupID, targetID, role)
}

// ListMembers returns the group's members, visible to members only
func (s *Service) ListMembers(ctx context.Context, actorID, groupID uuid.UUID) ([]*Member, error) {
	if err := s.AssertMember(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, groupID)
}

// RemoveMember removes a user from the group. Members may remove themselves;
// removing anyone else requires admin. The last-admin guard lives in the
// store's delete statement.
func (s *Service) RemoveMember(ctx context.Context, actorID, groupID, targetID uuid.UUID) error {
	if actorID == targetID {
		if err := s.AssertMember(ctx, groupID, actorID); err != nil {
			return err
		}
	} else {
		if err := s.AssertAdmin(ctx, groupID, actorID); err != nil {
			return err
		}
	}

	return s.store.RemoveMember(ctx, groupID, targetID)
}

// AssertMember returns nil only if the user is a member of the group
func (s *Service) AssertMember(ctx context.Context, groupID, userID uuid.UUID) error {
	_, err := s.store.GetMember(ctx, groupID, userID)
	return err
}

// AssertAdmin returns nil only if the user is an admin of the group
func (s *Service) AssertAdmin(ctx context.Context, groupID, userID uuid.UUID) error {
	member, err := s.store.GetMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if member.Role != RoleAdmin {
		return ErrNotAdmin
	}
	return nil
}
