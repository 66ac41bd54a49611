package group

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/taskhive/internal/user"
)

// --- fakes -----------------------------------------------------------------

type memberKey struct {
	groupID uuid.UUID
	userID  uuid.UUID
}

type fakeStore struct {
	groups  map[uuid.UUID]*Group
	members map[memberKey]*Member
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		groups:  make(map[uuid.UUID]*Group),
		members: make(map[memberKey]*Member),
	}
}

func (s *fakeStore) Create(ctx context.Context, name string, createdBy uuid.UUID) (*Group, error) {
	g := &Group{
		ID:        uuid.New(),
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}
	s.groups[g.ID] = g
	s.members[memberKey{g.ID, createdBy}] = &Member{
		GroupID:  g.ID,
		UserID:   createdBy,
		Role:     RoleAdmin,
		JoinedAt: g.CreatedAt,
	}
	return g, nil
}

func (s *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*Group, error) {
	g, ok := s.groups[id]
	if !ok {
		return nil, ErrGroupNotFound
	}
	return g, nil
}

func (s *fakeStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Group, error) {
	var out []*Group
	for key, m := range s.members {
		if m.UserID == userID {
			out = append(out, s.groups[key.groupID])
		}
	}
	return out, nil
}

func (s *fakeStore) AddMember(ctx context.Context, groupID, userID uuid.UUID, role Role) (*Member, error) {
	key := memberKey{groupID, userID}
	if _, ok := s.members[key]; ok {
		return nil, ErrAlreadyMember
	}
	m := &Member{
		GroupID:  groupID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now(),
	}
	s.members[key] = m
	return m, nil
}

func (s *fakeStore) GetMember(ctx context.Context, groupID, userID uuid.UUID) (*Member, error) {
	m, ok := s.members[memberKey{groupID, userID}]
	if !ok {
		return nil, ErrNotAMember
	}
	return m, nil
}

func (s *fakeStore) ListMembers(ctx context.Context, groupID uuid.UUID) ([]*Member, error) {
	var out []*Member
	for _, m := range s.members {
		if m.GroupID == groupID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	key := memberKey{groupID, userID}
	m, ok := s.members[key]
	if !ok {
		return ErrNotAMember
	}
	if m.Role == RoleAdmin && s.adminCount(groupID) <= 1 {
		return ErrLastAdminRemoval
	}
	delete(s.members, key)
	return nil
}

func (s *fakeStore) adminCount(groupID uuid.UUID) int {
	n := 0
	for _, m := range s.members {
		if m.GroupID == groupID && m.Role == RoleAdmin {
			n++
		}
	}
	return n
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

// --- harness ---------------------------------------------------------------

type groupHarness struct {
	store     *fakeStore
	directory *fakeDirectory
	svc       *Service

	admin  uuid.UUID
	member uuid.UUID
}

func newGroupHarness(t *testing.T) *groupHarness {
	t.Helper()

	h := &groupHarness{
		store:  newFakeStore(),
		admin:  uuid.New(),
		member: uuid.New(),
	}
	h.directory = &fakeDirectory{byID: map[uuid.UUID]*user.User{
		h.admin:  {ID: h.admin, Email: "admin@example.com", Status: user.StatusActive},
		h.member: {ID: h.member, Email: "member@example.com", Status: user.StatusActive},
	}}
	h.svc = NewService(h.store, h.directory)
	return h
}

func (h *groupHarness) createGroup(t *testing.T) *Group {
	t.Helper()
	g, err := h.svc.Create(context.Background(), h.admin, "Engineering")
	require.NoError(t, err)
	return g
}

// --- tests -----------------------------------------------------------------

func TestCreateGroup(t *testing.T) {
	ctx := context.Background()

	t.Run("creator becomes the first admin", func(t *testing.T) {
		h := newGroupHarness(t)
		g := h.createGroup(t)

		assert.Equal(t, "Engineering", g.Name)
		assert.Equal(t, h.admin, g.CreatedBy)
		assert.NoError(t, h.svc.AssertAdmin(ctx, g.ID, h.admin))
	})

	t.Run("name required", func(t *testing.T) {
		h := newGroupHarness(t)

		_, err := h.svc.Create(ctx, h.admin, "   ")
		assert.ErrorIs(t, err, ErrNameRequired)
	})
}

func TestGetGroup(t *testing.T) {
	ctx := context.Background()
	h := newGroupHarness(t)
	g := h.createGroup(t)

	t.Run("member sees the group", func(t *testing.T) {
		got, err := h.svc.Get(ctx, h.admin, g.ID)
		require.NoError(t, err)
		assert.Equal(t, g.ID, got.ID)
	})

	t.Run("outsider is refused", func(t *testing.T) {
		_, err := h.svc.Get(ctx, uuid.New(), g.ID)
		assert.ErrorIs(t, err, ErrNotAMember)
	})
}

func TestAddMember(t *testing.T) {
	ctx := context.Background()

	t.Run("admin adds a member with default role", func(t *testing.T) {
		h := newGroupHarness(t)
		g := h.createGroup(t)

		m, err := h.svc.AddMember(ctx, h.admin, g.ID, h.member, "")
		require.NoError(t, err)
		assert.Equal(t, RoleMember, m.Role)
	})

	t.Run("admin promotes a second admin", func(t *testing.T) {
		h := newGroupHarness(t)
		g := h.createGroup(t)

		m, err := h.svc.AddMember(ctx, h.admin, g.ID, h.member, RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, RoleAdmin, m.Role)
	})

	t.Run("plain member cannot add", func(t *testing.T) {
		h := newGroupHarness(t)
		g := h.createGroup(t)
		_, err := h.svc.AddMember(ctx, h.admin, g.ID, h.member, "")
		require.NoError(t, err)

		_, err = h.svc.AddMember(ctx, h.member, g.ID, uuid.New(), "")
		assert.ErrorIs(t, err, ErrNotAdmin)
	})

	t.Run("unknown target user", func(t *testing.T) {
		h := newGroupHarness(t)
		g := h.createGroup(t)

		_, err := h.svc.AddMember(ctx, h.admin, g.ID, uuid.New(), "")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("unknown role", func(t *testing.T) {
		h := newGroupHarness(t)
		g := h.createGroup(t)

		_, err := h.svc.AddMember(ctx, h.admin, g.ID, h.member, "OWNER")
		assert.ErrorIs(t, err, ErrInvalidRole)
	})

	t.Run("already a member", func(t *testing.T) {
		h := newGroupHarness(t)
		g := h.createGroup(t)
		_, err := h.svc.AddMember(ctx, h.admin, g.ID, h.member, "")
		require.NoError(t, err)

		_, err = h.svc.AddMember(ctx, h.admin, g.ID, h.member, "")
		assert.ErrorIs(t, err, ErrAlreadyMember)
	})
}

func TestRemoveMember(t *testing.T) {
	ctx := context.Background()

	t.Run("admin removes a member", func(t *testing.T) {
		h := newGroupHarness(t)
		g := h.createGroup(t)
		_, err := h.svc.AddMember(ctx, h.admin, g.ID, h.member, "")
		require.NoError(t, err)

		require.NoError(t, h.svc.RemoveMember(ctx, h.admin, g.ID, h.member))
		assert.ErrorIs(t, h.svc.AssertMember(ctx, g.ID, h.member), ErrNotAMember)
	})

	t.Run("member leaves on their own", func(t *testing.T) {
		h := newGroupHarness(t)
		g := h.createGroup(t)
		_, err := h.svc.AddMember(ctx, h.admin, g.ID, h.member, "")
		require.NoError(t, err)

		require.NoError(t, h.svc.RemoveMember(ctx, h.member, g.ID, h.member))
	})

	t.Run("member cannot remove someone else", func(t *testing.T) {
		h := newGroupHarness(t)
		g := h.createGroup(t)
		_, err := h.svc.AddMember(ctx, h.admin, g.ID, h.member, "")
		require.NoError(t, err)

		err = h.svc.RemoveMember(ctx, h.member, g.ID, h.admin)
		assert.ErrorIs(t, err, ErrNotAdmin)
	})

	t.Run("last admin cannot be removed", func(t *testing.T) {
		h := newGroupHarness(t)
		g := h.createGroup(t)

		err := h.svc.RemoveMember(ctx, h.admin, g.ID, h.admin)
		assert.ErrorIs(t, err, ErrLastAdminRemoval)
	})

	t.Run("admin may leave once another admin exists", func(t *testing.T) {
		h := newGroupHarness(t)
		g := h.createGroup(t)
		_, err := h.svc.AddMember(ctx, h.admin, g.ID, h.member, RoleAdmin)
		require.NoError(t, err)

		require.NoError(t, h.svc.RemoveMember(ctx, h.admin, g.ID, h.admin))
		assert.NoError(t, h.svc.AssertAdmin(ctx, g.ID, h.member))
	})
}

func TestAssertions(t *testing.T) {
	ctx := context.Background()
	h := newGroupHarness(t)
	g := h.createGroup(t)
	_, err := h.svc.AddMember(ctx, h.admin, g.ID, h.member, "")
	require.NoError(t, err)

	assert.NoError(t, h.svc.AssertMember(ctx, g.ID, h.member))
	assert.ErrorIs(t, h.svc.AssertAdmin(ctx, g.ID, h.member), ErrNotAdmin)
	assert.ErrorIs(t, h.svc.AssertMember(ctx, g.ID, uuid.New()), ErrNotAMember)
}
