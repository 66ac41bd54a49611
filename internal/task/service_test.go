package task

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/taskhive/internal/group"
	"github.com/redmonkez12/taskhive/internal/logging"
	"github.com/redmonkez12/taskhive/internal/notify"
	"github.com/redmonkez12/taskhive/internal/user"
)

// --- fakes -----------------------------------------------------------------

type fakeStore struct {
	byID map[uuid.UUID]*Task
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: make(map[uuid.UUID]*Task)}
}

func (s *fakeStore) Create(ctx context.Context, t *Task) (*Task, error) {
	stored := *t
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	s.byID[stored.ID] = &stored
	return &stored, nil
}

func (s *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	t, ok := s.byID[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return t, nil
}

func (s *fakeStore) ListForGroup(ctx context.Context, groupID uuid.UUID) ([]*Task, error) {
	var out []*Task
	for _, t := range s.byID {
		if t.GroupID == groupID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) Update(ctx context.Context, id uuid.UUID, title, description string) (*Task, error) {
	t, ok := s.byID[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	t.Title = title
	t.Description = description
	return t, nil
}

func (s *fakeStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Task, error) {
	t, ok := s.byID[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if t.Status != from {
		return nil, ErrInvalidState
	}
	t.Status = to
	return t, nil
}

func (s *fakeStore) Accept(ctx context.Context, id uuid.UUID) (*Task, error) {
	t, ok := s.byID[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if t.Status != StatusPendingAcceptance {
		return nil, ErrInvalidState
	}
	now := time.Now()
	t.Status = StatusOpen
	t.AcceptedAt = &now
	return t, nil
}

func (s *fakeStore) Assign(ctx context.Context, id uuid.UUID, assigneeID uuid.UUID) (*Task, error) {
	t, ok := s.byID[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	t.AssigneeID = &assigneeID
	t.Status = StatusPendingAcceptance
	t.AcceptedAt = nil
	return t, nil
}

func (s *fakeStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.byID[id]; !ok {
		return ErrTaskNotFound
	}
	delete(s.byID, id)
	return nil
}

type fakeMembership struct {
	members map[uuid.UUID]map[uuid.UUID]bool
}

func newFakeMembership() *fakeMembership {
	return &fakeMembership{members: make(map[uuid.UUID]map[uuid.UUID]bool)}
}

func (m *fakeMembership) add(groupID, userID uuid.UUID) {
	if m.members[groupID] == nil {
		m.members[groupID] = make(map[uuid.UUID]bool)
	}
	m.members[groupID][userID] = true
}

func (m *fakeMembership) AssertMember(ctx context.Context, groupID, userID uuid.UUID) error {
	if !m.members[groupID][userID] {
		return group.ErrNotAMember
	}
	return nil
}

type fakeDirectory struct {
	byID map[uuid.UUID]*user.User
}

func (d *fakeDirectory) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := d.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

type fakeTaskPublisher struct {
	messages []notify.Message
	fail     bool
}

func (p *fakeTaskPublisher) Publish(ctx context.Context, msg notify.Message) error {
	if p.fail {
		return assert.AnError
	}
	p.messages = append(p.messages, msg)
	return nil
}

// --- harness ---------------------------------------------------------------

type taskHarness struct {
	store      *fakeStore
	membership *fakeMembership
	publisher  *fakeTaskPublisher
	svc        *Service

	groupID  uuid.UUID
	creator  uuid.UUID
	assignee uuid.UUID
	outsider uuid.UUID
}

func newTaskHarness(t *testing.T, assignmentEnabled bool) *taskHarness {
	t.Helper()

	h := &taskHarness{
		store:      newFakeStore(),
		membership: newFakeMembership(),
		publisher:  &fakeTaskPublisher{},
		groupID:    uuid.New(),
		creator:    uuid.New(),
		assignee:   uuid.New(),
		outsider:   uuid.New(),
	}

	h.membership.add(h.groupID, h.creator)
	h.membership.add(h.groupID, h.assignee)

	directory := &fakeDirectory{byID: map[uuid.UUID]*user.User{
		h.creator:  {ID: h.creator, Email: "creator@example.com", Status: user.StatusActive},
		h.assignee: {ID: h.assignee, Email: "assignee@example.com", Status: user.StatusActive},
	}}

	h.svc = NewService(
		h.store,
		h.membership,
		directory,
		h.publisher,
		logging.NewLogger(true),
		assignmentEnabled,
	)
	return h
}

// --- tests -----------------------------------------------------------------

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("unassigned task starts open", func(t *testing.T) {
		h := newTaskHarness(t, true)

		created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", nil)
		require.NoError(t, err)

		assert.Equal(t, StatusOpen, created.Status)
		assert.Nil(t, created.AssigneeID)
		assert.Empty(t, h.publisher.messages)
	})

	t.Run("assigned task starts pending and notifies the assignee", func(t *testing.T) {
		h := newTaskHarness(t, true)

		created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", &h.assignee)
		require.NoError(t, err)

		assert.Equal(t, StatusPendingAcceptance, created.Status)
		require.NotNil(t, created.AssigneeID)
		assert.Equal(t, h.assignee, *created.AssigneeID)

		require.Len(t, h.publisher.messages, 1)
		msg := h.publisher.messages[0]
		assert.Equal(t, notify.KindTaskAssigned, msg.Kind)
		assert.Equal(t, "assignee@example.com", msg.Recipient)
		assert.Equal(t, created.ID.String(), msg.Data["task_id"])
	})

	t.Run("assignment feature disabled", func(t *testing.T) {
		h := newTaskHarness(t, false)

		_, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", &h.assignee)
		assert.ErrorIs(t, err, ErrFeatureDisabled)

		// Unassigned creation still works with the feature off
		_, err = h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", nil)
		assert.NoError(t, err)
	})

	t.Run("assignee outside the group", func(t *testing.T) {
		h := newTaskHarness(t, true)

		_, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", &h.outsider)
		assert.ErrorIs(t, err, ErrAssigneeNotMember)
	})

	t.Run("non-member cannot create", func(t *testing.T) {
		h := newTaskHarness(t, true)

		_, err := h.svc.Create(ctx, h.outsider, h.groupID, "Fix the build", "", nil)
		assert.ErrorIs(t, err, group.ErrNotAMember)
	})

	t.Run("title required", func(t *testing.T) {
		h := newTaskHarness(t, true)

		_, err := h.svc.Create(ctx, h.creator, h.groupID, "   ", "", nil)
		assert.ErrorIs(t, err, ErrTitleRequired)
	})

	t.Run("queue failure does not fail creation", func(t *testing.T) {
		h := newTaskHarness(t, true)
		h.publisher.fail = true

		created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", &h.assignee)
		require.NoError(t, err)
		assert.Equal(t, StatusPendingAcceptance, created.Status)
	})
}

func TestGetByID(t *testing.T) {
	ctx := context.Background()
	h := newTaskHarness(t, true)

	created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", nil)
	require.NoError(t, err)

	t.Run("member sees the task", func(t *testing.T) {
		got, err := h.svc.GetByID(ctx, h.assignee, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("non-member sees not found, not forbidden", func(t *testing.T) {
		_, err := h.svc.GetByID(ctx, h.outsider, created.ID)
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("any member may move a task along the graph", func(t *testing.T) {
		h := newTaskHarness(t, true)
		created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", nil)
		require.NoError(t, err)

		moved, err := h.svc.UpdateStatus(ctx, h.assignee, created.ID, StatusInProgress)
		require.NoError(t, err)
		assert.Equal(t, StatusInProgress, moved.Status)

		moved, err = h.svc.UpdateStatus(ctx, h.assignee, created.ID, StatusCompleted)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, moved.Status)
	})

	t.Run("illegal move", func(t *testing.T) {
		h := newTaskHarness(t, true)
		created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", nil)
		require.NoError(t, err)

		_, err = h.svc.UpdateStatus(ctx, h.creator, created.ID, StatusCompleted)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("closed tasks stay closed", func(t *testing.T) {
		h := newTaskHarness(t, true)
		created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", nil)
		require.NoError(t, err)

		_, err = h.svc.UpdateStatus(ctx, h.creator, created.ID, StatusClosed)
		require.NoError(t, err)

		_, err = h.svc.UpdateStatus(ctx, h.creator, created.ID, StatusOpen)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("opening a pending task by status update skips the acceptance stamp", func(t *testing.T) {
		h := newTaskHarness(t, true)
		created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", &h.assignee)
		require.NoError(t, err)

		moved, err := h.svc.UpdateStatus(ctx, h.assignee, created.ID, StatusOpen)
		require.NoError(t, err)
		assert.Equal(t, StatusOpen, moved.Status)
		assert.Nil(t, moved.AcceptedAt)
	})

	t.Run("unknown status", func(t *testing.T) {
		h := newTaskHarness(t, true)
		created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", nil)
		require.NoError(t, err)

		_, err = h.svc.UpdateStatus(ctx, h.creator, created.ID, "ARCHIVED")
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})
}

func TestAccept(t *testing.T) {
	ctx := context.Background()

	t.Run("assignee accepts and the time is stamped", func(t *testing.T) {
		h := newTaskHarness(t, true)
		created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", &h.assignee)
		require.NoError(t, err)

		accepted, err := h.svc.Accept(ctx, h.assignee, created.ID)
		require.NoError(t, err)

		assert.Equal(t, StatusOpen, accepted.Status)
		require.NotNil(t, accepted.AcceptedAt)
	})

	t.Run("only the assignee may accept", func(t *testing.T) {
		h := newTaskHarness(t, true)
		created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", &h.assignee)
		require.NoError(t, err)

		_, err = h.svc.Accept(ctx, h.creator, created.ID)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unassigned task cannot be accepted", func(t *testing.T) {
		h := newTaskHarness(t, true)
		created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", nil)
		require.NoError(t, err)

		_, err = h.svc.Accept(ctx, h.creator, created.ID)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("accept is one-shot", func(t *testing.T) {
		h := newTaskHarness(t, true)
		created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", &h.assignee)
		require.NoError(t, err)

		_, err = h.svc.Accept(ctx, h.assignee, created.ID)
		require.NoError(t, err)

		_, err = h.svc.Accept(ctx, h.assignee, created.ID)
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestAssign(t *testing.T) {
	ctx := context.Background()

	t.Run("creator reassigns and the handshake restarts", func(t *testing.T) {
		h := newTaskHarness(t, true)
		created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", &h.assignee)
		require.NoError(t, err)

		_, err = h.svc.Accept(ctx, h.assignee, created.ID)
		require.NoError(t, err)

		reassigned, err := h.svc.Assign(ctx, h.creator, created.ID, h.assignee)
		require.NoError(t, err)

		assert.Equal(t, StatusPendingAcceptance, reassigned.Status)
		assert.Nil(t, reassigned.AcceptedAt)
		assert.Len(t, h.publisher.messages, 2)
	})

	t.Run("only the creator may assign", func(t *testing.T) {
		h := newTaskHarness(t, true)
		created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", nil)
		require.NoError(t, err)

		_, err = h.svc.Assign(ctx, h.assignee, created.ID, h.assignee)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("closed tasks cannot be assigned", func(t *testing.T) {
		h := newTaskHarness(t, true)
		created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", nil)
		require.NoError(t, err)

		_, err = h.svc.UpdateStatus(ctx, h.creator, created.ID, StatusClosed)
		require.NoError(t, err)

		_, err = h.svc.Assign(ctx, h.creator, created.ID, h.assignee)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("feature gate", func(t *testing.T) {
		h := newTaskHarness(t, false)
		created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", nil)
		require.NoError(t, err)

		_, err = h.svc.Assign(ctx, h.creator, created.ID, h.assignee)
		assert.ErrorIs(t, err, ErrFeatureDisabled)
	})

	t.Run("assignee must be a member", func(t *testing.T) {
		h := newTaskHarness(t, true)
		created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", nil)
		require.NoError(t, err)

		_, err = h.svc.Assign(ctx, h.creator, created.ID, h.outsider)
		assert.ErrorIs(t, err, ErrAssigneeNotMember)
	})
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("creator updates", func(t *testing.T) {
		h := newTaskHarness(t, true)
		created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", nil)
		require.NoError(t, err)

		updated, err := h.svc.Update(ctx, h.creator, created.ID, "Fix the release build", "it only breaks on tags")
		require.NoError(t, err)
		assert.Equal(t, "Fix the release build", updated.Title)
	})

	t.Run("non-creator member cannot update or delete", func(t *testing.T) {
		h := newTaskHarness(t, true)
		created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", nil)
		require.NoError(t, err)

		_, err = h.svc.Update(ctx, h.assignee, created.ID, "Hijacked", "")
		assert.ErrorIs(t, err, ErrForbidden)

		err = h.svc.Delete(ctx, h.assignee, created.ID)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("creator deletes and the task disappears", func(t *testing.T) {
		h := newTaskHarness(t, true)
		created, err := h.svc.Create(ctx, h.creator, h.groupID, "Fix the build", "", nil)
		require.NoError(t, err)

		require.NoError(t, h.svc.Delete(ctx, h.creator, created.ID))

		_, err = h.svc.GetByID(ctx, h.creator, created.ID)
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}
