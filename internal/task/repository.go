package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/taskhive/internal/database"
)

// Repository handles task persistence. Soft-deleted rows are invisible to
// every query here.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create stores a new task
func (r *Repository) Create(ctx context.Context, t *Task) (*Task, error) {
	dbTask := &database.Task{
		ID:          uuid.New(),
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		GroupID:     t.GroupID,
		CreatedByID: t.CreatedBy,
		AssigneeID:  t.AssigneeID,
	}

	_, err := r.db.NewInsert().Model(dbTask).Returning("*").Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}

	return mapDBTaskToModel(dbTask), nil
}

// GetByID retrieves a task by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	dbTask := new(database.Task)

	err := r.db.NewSelect().
		Model(dbTask).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return mapDBTaskToModel(dbTask), nil
}

// ListForGroup retrieves all live tasks of a group
func (r *Repository) ListForGroup(ctx context.Context, groupID uuid.UUID) ([]*Task, error) {
	var dbTasks []*database.Task

	err := r.db.NewSelect().
		Model(&dbTasks).
		Where("group_id = ?", groupID).
		Where("deleted_at IS NULL").
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]*Task, 0, len(dbTasks))
	for _, dbTask := range dbTasks {
		tasks = append(tasks, mapDBTaskToModel(dbTask))
	}
	return tasks, nil
}

// Update rewrites a task's title and description
func (r *Repository) Update(ctx context.Context, id uuid.UUID, title, description string) (*Task, error) {
	dbTask := new(database.Task)

	err := r.db.NewUpdate().
		Model(dbTask).
		Set("title = ?", title).
		Set("description = ?", description).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Returning("*").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return mapDBTaskToModel(dbTask), nil
}

// UpdateStatus moves a task from one status to another. The expected current
// status is part of the statement, so a concurrent move loses cleanly instead
// of overwriting.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Task, error) {
	dbTask := new(database.Task)

	err := r.db.NewUpdate().
		Model(dbTask).
		Set("status = ?", string(to)).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status = ?", string(from)).
		Where("deleted_at IS NULL").
		Returning("*").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	return mapDBTaskToModel(dbTask), nil
}

// Accept moves a pending task to OPEN and stamps the acceptance time in the
// same conditional statement
func (r *Repository) Accept(ctx context.Context, id uuid.UUID) (*Task, error) {
	dbTask := new(database.Task)
	now := time.Now()

	err := r.db.NewUpdate().
		Model(dbTask).
		Set("status = ?", string(StatusOpen)).
		Set("accepted_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", string(StatusPendingAcceptance)).
		Where("deleted_at IS NULL").
		Returning("*").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("failed to accept task: %w", err)
	}

	return mapDBTaskToModel(dbTask), nil
}

// Assign points a task at a new assignee and restarts the acceptance
// handshake: status returns to PENDING_ACCEPTANCE and the old acceptance
// stamp is cleared.
func (r *Repository) Assign(ctx context.Context, id uuid.UUID, assigneeID uuid.UUID) (*Task, error) {
	dbTask := new(database.Task)

	err := r.db.NewUpdate().
		Model(dbTask).
		Set("assignee_id = ?", assigneeID).
		Set("status = ?", string(StatusPendingAcceptance)).
		Set("accepted_at = NULL").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Returning("*").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to assign task: %w", err)
	}

	return mapDBTaskToModel(dbTask), nil
}

// SoftDelete hides a task from all further queries
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewUpdate().
		Model((*database.Task)(nil)).
		Set("deleted_at = ?", time.Now()).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrTaskNotFound
	}

	return nil
}

func mapDBTaskToModel(dbTask *database.Task) *Task {
	return &Task{
		ID:          dbTask.ID,
		Title:       dbTask.Title,
		Description: dbTask.Description,
		Status:      Status(dbTask.Status),
		GroupID:     dbTask.GroupID,
		CreatedBy:   dbTask.CreatedByID,
		AssigneeID:  dbTask.AssigneeID,
		AcceptedAt:  dbTask.AcceptedAt,
		CreatedAt:   dbTask.CreatedAt,
		UpdatedAt:   dbTask.UpdatedAt,
	}
}
