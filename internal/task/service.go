package task

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/redmonkez12/taskhive/internal/logging"
	"github.com/redmonkez12/taskhive/internal/notify"
	"github.com/redmonkez12/taskhive/internal/user"
)

// ErrAssigneeNotMember is returned when a task is pointed at a user outside
// the group.
var ErrAssigneeNotMember = errors.New("assignee is not a member of this group")

// Store is the slice of the repository the service needs.
type Store interface {
	Create(ctx context.Context, t *Task) (*Task, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	ListForGroup(ctx context.Context, groupID uuid.UUID) ([]*Task, error)
	Update(ctx context.Context, id uuid.UUID, title, description string) (*Task, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Task, error)
	Accept(ctx context.Context, id uuid.UUID) (*Task, error)
	Assign(ctx context.Context, id uuid.UUID, assigneeID uuid.UUID) (*Task, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// MembershipAuthority answers membership questions. Group membership is
// decided in exactly one place; task authorization only ever asks.
type MembershipAuthority interface {
	AssertMember(ctx context.Context, groupID, userID uuid.UUID) error
}

// UserDirectory resolves recipient addresses for assignment notifications.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// Service handles task business logic: visibility, the lifecycle state
// machine, the acceptance handshake, and creator-only mutations.
type Service struct {
	store             Store
	membership        MembershipAuthority
	users             UserDirectory
	publisher         notify.Publisher
	logger            *logging.Logger
	assignmentEnabled bool
}

func NewService(
	store Store,
	membership MembershipAuthority,
	users UserDirectory,
	publisher notify.Publisher,
	logger *logging.Logger,
	assignmentEnabled bool,
) *Service {
	return &Service{
		store:             store,
		membership:        membership,
		users:             users,
		publisher:         publisher,
		logger:            logger,
		assignmentEnabled: assignmentEnabled,
	}
}

// Create makes a new task in a group. An assigned task starts in
// PENDING_ACCEPTANCE and waits for the assignee; an unassigned one starts
// OPEN.
func (s *Service) Create(ctx context.Context, actorID, groupID uuid.UUID, title, description string, assigneeID *uuid.UUID) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	if err := s.membership.AssertMember(ctx, groupID, actorID); err != nil {
		return nil, err
	}

	status := StatusOpen
	if assigneeID != nil {
		if !s.assignmentEnabled {
			return nil, ErrFeatureDisabled
		}
		if err := s.membership.AssertMember(ctx, groupID, *assigneeID); err != nil {
			return nil, ErrAssigneeNotMember
		}
		status = StatusPendingAcceptance
	}

	created, err := s.store.Create(ctx, &Task{
		Title:       title,
		Description: description,
		Status:      status,
		GroupID:     groupID,
		CreatedBy:   actorID,
		AssigneeID:  assigneeID,
	})
	if err != nil {
		return nil, err
	}

	if assigneeID != nil {
		s.notifyAssignee(ctx, created, *assigneeID)
	}

	return created, nil
}

// GetByID returns a task, visible to group members only
func (s *Service) GetByID(ctx context.Context, actorID, taskID uuid.UUID) (*Task, error) {
	t, err := s.store.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.membership.AssertMember(ctx, t.GroupID, actorID); err != nil {
		// Non-members don't learn whether the task exists
		return nil, ErrTaskNotFound
	}
	return t, nil
}

// ListForGroup returns all live tasks of a group, members only
func (s *Service) ListForGroup(ctx context.Context, actorID, groupID uuid.UUID) ([]*Task, error) {
	if err := s.membership.AssertMember(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	return s.store.ListForGroup(ctx, groupID)
}

// UpdateStatus moves a task along the lifecycle graph. Any group member may
// move a task; only structural validity is checked. Accept exists separately
// because it stamps the acceptance time and is assignee-only.
func (s *Service) UpdateStatus(ctx context.Context, actorID, taskID uuid.UUID, to Status) (*Task, error) {
	if !IsValidStatus(to) {
		return nil, ErrInvalidStatus
	}

	t, err := s.GetByID(ctx, actorID, taskID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(t.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}

	updated, err := s.store.UpdateStatus(ctx, taskID, t.Status, to)
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			// The task moved under us between read and write
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
		}
		return nil, err
	}

	return updated, nil
}

// Accept completes the assignment handshake. Only the assignee may accept,
// and only while the task is still pending.
func (s *Service) Accept(ctx context.Context, actorID, taskID uuid.UUID) (*Task, error) {
	t, err := s.GetByID(ctx, actorID, taskID)
	if err != nil {
		return nil, err
	}

	if t.AssigneeID == nil || *t.AssigneeID != actorID {
		return nil, ErrForbidden
	}
	if t.Status != StatusPendingAcceptance {
		return nil, ErrInvalidState
	}

	return s.store.Accept(ctx, taskID)
}

// Assign points a task at a new assignee. Creator only; restarts the
// acceptance handshake.
func (s *Service) Assign(ctx context.Context, actorID, taskID, assigneeID uuid.UUID) (*Task, error) {
	if !s.assignmentEnabled {
		return nil, ErrFeatureDisabled
	}

	t, err := s.GetByID(ctx, actorID, taskID)
	if err != nil {
		return nil, err
	}

	if t.CreatedBy != actorID {
		return nil, ErrForbidden
	}
	if t.Status == StatusClosed {
		return nil, ErrInvalidState
	}

	if err := s.membership.AssertMember(ctx, t.GroupID, assigneeID); err != nil {
		return nil, ErrAssigneeNotMember
	}

	updated, err := s.store.Assign(ctx, taskID, assigneeID)
	if err != nil {
		return nil, err
	}

	s.notifyAssignee(ctx, updated, assigneeID)

	return updated, nil
}

// Update rewrites a task's title and description. Creator only.
func (s *Service) Update(ctx context.Context, actorID, taskID uuid.UUID, title, description string) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	t, err := s.GetByID(ctx, actorID, taskID)
	if err != nil {
		return nil, err
	}
	if t.CreatedBy != actorID {
		return nil, ErrForbidden
	}

	return s.store.Update(ctx, taskID, title, description)
}

// Delete soft-deletes a task. Creator only.
func (s *Service) Delete(ctx context.Context, actorID, taskID uuid.UUID) error {
	t, err := s.GetByID(ctx, actorID, taskID)
	if err != nil {
		return err
	}
	if t.CreatedBy != actorID {
		return ErrForbidden
	}

	return s.store.SoftDelete(ctx, taskID)
}

// notifyAssignee enqueues an assignment email. Failures are logged and
// dropped; a dead queue never fails the assignment itself.
func (s *Service) notifyAssignee(ctx context.Context, t *Task, assigneeID uuid.UUID) {
	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		s.logger.Warn("failed to resolve assignee for notification",
			"task_id", t.ID,
			"assignee_id", assigneeID,
			"error", err.Error(),
		)
		return
	}

	err = s.publisher.Publish(ctx, notify.Message{
		Kind:      notify.KindTaskAssigned,
		Recipient: assignee.Email,
		Data: map[string]string{
			"task_id":    t.ID.String(),
			"task_title": t.Title,
		},
	})
	if err != nil {
		s.logger.Warn("failed to enqueue assignment notification",
			"task_id", t.ID,
			"error", err.Error(),
		)
	}
}
