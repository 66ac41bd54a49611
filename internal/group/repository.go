package group

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/taskhive/internal/database"
)

// Repository handles group and membership persistence
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create stores a new group and enrolls the creator as its first admin in
// one transaction, so no group ever exists without an admin.
func (r *Repository) Create(ctx context.Context, name string, createdBy uuid.UUID) (*Group, error) {
	dbGroup := &database.Group{
		ID:          uuid.New(),
		Name:        name,
		CreatedByID: createdBy,
	}

	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(dbGroup).Returning("*").Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert group: %w", err)
		}

		member := &database.GroupMember{
			GroupID: dbGroup.ID,
			UserID:  createdBy,
			Role:    string(RoleAdmin),
		}
		if _, err := tx.NewInsert().Model(member).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert creator membership: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return mapDBGroupToModel(dbGroup), nil
}

// GetByID retrieves a group by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Group, error) {
	dbGroup := new(database.Group)

	err := r.db.NewSelect().
		Model(dbGroup).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	return mapDBGroupToModel(dbGroup), nil
}

// ListForUser retrieves all groups the user is a member of
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Group, error) {
	var dbGroups []*database.Group

	err := r.db.NewSelect().
		Model(&dbGroups).
		Join("JOIN group_members AS gm ON gm.group_id = g.id").
		Where("gm.user_id = ?", userID).
		Order("g.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	groups := make([]*Group, 0, len(dbGroups))
	for _, dbGroup := range dbGroups {
		groups = append(groups, mapDBGroupToModel(dbGroup))
	}
	return groups, nil
}

// AddMember enrolls a user into a group with the given role
func (r *Repository) AddMember(ctx context.Context, groupID, userID uuid.UUID, role Role) (*Member, error) {
	dbMember := &database.GroupMember{
		GroupID: groupID,
		UserID:  userID,
		Role:    string(role),
	}

	_, err := r.db.NewInsert().Model(dbMember).Returning("*").Exec(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique constraint") {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("failed to insert membership: %w", err)
	}

	return mapDBMemberToModel(dbMember), nil
}

// GetMember retrieves a single membership row
func (r *Repository) GetMember(ctx context.Context, groupID, userID uuid.UUID) (*Member, error) {
	dbMember := new(database.GroupMember)

	err := r.db.NewSelect().
		Model(dbMember).
		Where("group_id = ?", groupID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotAMember
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return mapDBMemberToModel(dbMember), nil
}

// ListMembers retrieves all memberships of a group
func (r *Repository) ListMembers(ctx context.Context, groupID uuid.UUID) ([]*Member, error) {
	var dbMembers []*database.GroupMember

	err := r.db.NewSelect().
		Model(&dbMembers).
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	members := make([]*Member, 0, len(dbMembers))
	for _, dbMember := range dbMembers {
		members = append(members, mapDBMemberToModel(dbMember))
	}
	return members, nil
}

// RemoveMember deletes a membership. The delete itself carries the last-admin
// guard: an admin row is only removed while another live admin row exists in
// the same group, so two concurrent removals cannot empty the admin set.
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*database.GroupMember)(nil)).
		Where("group_id = ?", groupID).
		Where("user_id = ?", userID).
		Where("(role <> ? OR (SELECT count(*) FROM group_members WHERE group_id = ? AND role = ?) > 1)",
			string(RoleAdmin), groupID, string(RoleAdmin)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either the row never existed or the guard refused to delete the
		// last admin. Look at the row to tell the two apart.
		if _, err := r.GetMember(ctx, groupID, userID); err != nil {
			if errors.Is(err, ErrNotAMember) {
				return ErrNotAMember
			}
			return err
		}
		return ErrLastAdminRemoval
	}

	return nil
}

func mapDBGroupToModel(dbGroup *database.Group) *Group {
	return &Group{
		ID:        dbGroup.ID,
		Name:      dbGroup.Name,
		CreatedBy: dbGroup.CreatedByID,
		CreatedAt: dbGroup.CreatedAt,
	}
}

func mapDBMemberToModel(dbMember *database.GroupMember) *Member {
	return &Member{
		GroupID:  dbMember.GroupID,
		UserID:   dbMember.UserID,
		Role:     Role(dbMember.Role),
		JoinedAt: dbMember.CreatedAt,
	}
}
