package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/taskhive/internal/logging"
	"github.com/redmonkez12/taskhive/internal/notify"
	"github.com/redmonkez12/taskhive/internal/user"
)

// --- fakes -----------------------------------------------------------------

type fakeUserStore struct {
	byID map[uuid.UUID]*user.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byID: make(map[uuid.UUID]*user.User)}
}

func (s *fakeUserStore) Create(ctx context.Context, email, passwordHash, name string) (*user.User, error) {
	for _, u := range s.byID {
		if u.Email == email {
			return nil, user.ErrDuplicateEmail
		}
	}
	u := &user.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: &passwordHash,
		Name:         name,
		Status:       user.StatusUnverified,
	}
	s.byID[u.ID] = u
	return u, nil
}

func (s *fakeUserStore) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	for _, u := range s.byID {
		if u.Email == email && u.DeletedAt == nil {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := s.byID[id]
	if !ok || u.DeletedAt != nil {
		return nil, user.ErrNotFound
	}
	return u, nil
}

type fakeActionTokenStore struct {
	byID map[uuid.UUID]*ActionToken
}

func newFakeActionTokenStore() *fakeActionTokenStore {
	return &fakeActionTokenStore{byID: make(map[uuid.UUID]*ActionToken)}
}

func (s *fakeActionTokenStore) Replace(ctx context.Context, token *ActionToken) error {
	for id, t := range s.byID {
		if t.UserID == token.UserID && t.Purpose == token.Purpose {
			delete(s.byID, id)
		}
	}
	s.byID[token.ID] = token
	return nil
}

func (s *fakeActionTokenStore) GetByHash(ctx context.Context, tokenHash string, purpose ActionTokenPurpose) (*ActionToken, error) {
	for _, t := range s.byID {
		if t.TokenHash == tokenHash && t.Purpose == purpose {
			return t, nil
		}
	}
	return nil, ErrActionTokenNotFound
}

func (s *fakeActionTokenStore) Delete(ctx context.Context, id uuid.UUID) error {
	delete(s.byID, id)
	return nil
}

type fakeSessionStore struct {
	byID    map[uuid.UUID]*RefreshToken
	users   *fakeUserStore
	actions *fakeActionTokenStore
}

func newFakeSessionStore(users *fakeUserStore, actions *fakeActionTokenStore) *fakeSessionStore {
	return &fakeSessionStore{
		byID:    make(map[uuid.UUID]*RefreshToken),
		users:   users,
		actions: actions,
	}
}

func (s *fakeSessionStore) Store(ctx context.Context, token *RefreshToken) error {
	s.byID[token.ID] = token
	return nil
}

func (s *fakeSessionStore) GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	for _, t := range s.byID {
		if t.TokenHash == tokenHash {
			return t, nil
		}
	}
	return nil, ErrRefreshTokenNotFound
}

func (s *fakeSessionStore) Rotate(ctx context.Context, oldID uuid.UUID, next *RefreshToken) error {
	old, ok := s.byID[oldID]
	if !ok || old.Revoked {
		return ErrRefreshTokenRevoked
	}
	old.Revoked = true
	s.byID[next.ID] = next
	return nil
}

func (s *fakeSessionStore) RevokeFamily(ctx context.Context, family uuid.UUID) error {
	for _, t := range s.byID {
		if t.Family == family {
			t.Revoked = true
		}
	}
	return nil
}

func (s *fakeSessionStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	for _, t := range s.byID {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (s *fakeSessionStore) CompleteEmailVerification(ctx context.Context, userID, tokenID uuid.UUID) error {
	u, ok := s.users.byID[userID]
	if !ok {
		return user.ErrNotFound
	}
	u.Status = user.StatusActive
	delete(s.actions.byID, tokenID)
	return nil
}

func (s *fakeSessionStore) CompletePasswordReset(ctx context.Context, userID, tokenID uuid.UUID, passwordHash string) error {
	u, ok := s.users.byID[userID]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordHash = &passwordHash
	delete(s.actions.byID, tokenID)
	return s.RevokeAllForUser(ctx, userID)
}

type fakePublisher struct {
	messages []notify.Message
	fail     bool
}

func (p *fakePublisher) Publish(ctx context.Context, msg notify.Message) error {
	if p.fail {
		return assert.AnError
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakePublisher) last(t *testing.T) notify.Message {
	t.Helper()
	require.NotEmpty(t, p.messages)
	return p.messages[len(p.messages)-1]
}

// --- harness ---------------------------------------------------------------

type serviceHarness struct {
	users     *fakeUserStore
	sessions  *fakeSessionStore
	actions   *fakeActionTokenStore
	publisher *fakePublisher
	tokens    TokenService
	svc       *Service
}

func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()

	users := newFakeUserStore()
	actions := newFakeActionTokenStore()
	sessions := newFakeSessionStore(users, actions)
	publisher := &fakePublisher{}

	tokens, err := NewJWTService(testAccessSecret, testRefreshSecret)
	require.NoError(t, err)

	svc := NewService(
		users,
		sessions,
		actions,
		tokens,
		publisher,
		logging.NewLogger(true),
		15*time.Minute,
		7*24*time.Hour,
	)

	return &serviceHarness{
		users:     users,
		sessions:  sessions,
		actions:   actions,
		publisher: publisher,
		tokens:    tokens,
		svc:       svc,
	}
}

func (h *serviceHarness) addUser(t *testing.T, email, password string, status user.Status) *user.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	u := &user.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: &hash,
		Name:         "Test User",
		Status:       status,
	}
	h.users.byID[u.ID] = u
	return u
}

// --- tests -----------------------------------------------------------------

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates unverified account and sends verification", func(t *testing.T) {
		h := newServiceHarness(t)

		u, err := h.svc.Register(ctx, "Alice@Example.COM ", "password123", "Alice")
		require.NoError(t, err)

		assert.Equal(t, "alice@example.com", u.Email)
		assert.Equal(t, user.StatusUnverified, u.Status)

		msg := h.publisher.last(t)
		assert.Equal(t, notify.KindVerificationEmail, msg.Kind)
		assert.Equal(t, "alice@example.com", msg.Recipient)

		// The queued raw token must match the stored hash
		stored, err := h.actions.GetByHash(ctx, hashToken(msg.Data["token"]), PurposeEmailVerification)
		require.NoError(t, err)
		assert.Equal(t, u.ID, stored.UserID)
	})

	t.Run("duplicate email", func(t *testing.T) {
		h := newServiceHarness(t)
		h.addUser(t, "alice@example.com", "password123", user.StatusActive)

		_, err := h.svc.Register(ctx, "alice@example.com", "password123", "Alice")
		assert.ErrorIs(t, err, user.ErrDuplicateEmail)
	})

	t.Run("validation", func(t *testing.T) {
		h := newServiceHarness(t)

		_, err := h.svc.Register(ctx, "", "password123", "Alice")
		assert.ErrorIs(t, err, ErrEmailRequired)

		_, err = h.svc.Register(ctx, "not-an-email", "password123", "Alice")
		assert.ErrorIs(t, err, ErrInvalidEmailFormat)

		_, err = h.svc.Register(ctx, "alice@example.com", "", "Alice")
		assert.ErrorIs(t, err, ErrPasswordRequired)

		_, err = h.svc.Register(ctx, "alice@example.com", "short", "Alice")
		assert.ErrorIs(t, err, ErrPasswordTooShort)

		_, err = h.svc.Register(ctx, "alice@example.com", "password123", "  ")
		assert.ErrorIs(t, err, ErrNameRequired)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		h := newServiceHarness(t)
		u := h.addUser(t, "alice@example.com", "password123", user.StatusActive)

		tokens, err := h.svc.Login(ctx, "alice@example.com", "password123")
		require.NoError(t, err)

		assert.Equal(t, "Bearer", tokens.TokenType)
		assert.Equal(t, int64(900), tokens.ExpiresIn)

		claims, err := h.tokens.VerifyAccessToken(tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, u.ID.String(), claims.UserID)
		assert.Equal(t, "ACTIVE", claims.Status)

		// The refresh token is persisted by hash, never raw
		stored, err := h.sessions.GetByHash(ctx, hashToken(tokens.RefreshToken))
		require.NoError(t, err)
		assert.Equal(t, u.ID, stored.UserID)
		assert.False(t, stored.Revoked)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		h := newServiceHarness(t)
		h.addUser(t, "alice@example.com", "password123", user.StatusActive)

		_, errUnknown := h.svc.Login(ctx, "nobody@example.com", "password123")
		_, errWrong := h.svc.Login(ctx, "alice@example.com", "wrongpassword")

		assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
		assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	})

	t.Run("suspended rejected before password check", func(t *testing.T) {
		h := newServiceHarness(t)
		h.addUser(t, "mallory@example.com", "password123", user.StatusSuspended)

		_, err := h.svc.Login(ctx, "mallory@example.com", "wrongpassword")
		assert.ErrorIs(t, err, ErrAccountSuspended)
	})

	t.Run("unverified rejected only after password verifies", func(t *testing.T) {
		h := newServiceHarness(t)
		h.addUser(t, "bob@example.com", "password123", user.StatusUnverified)

		_, err := h.svc.Login(ctx, "bob@example.com", "password123")
		assert.ErrorIs(t, err, ErrAccountNotVerified)

		_, err = h.svc.Login(ctx, "bob@example.com", "wrongpassword")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("account without password", func(t *testing.T) {
		h := newServiceHarness(t)
		u := h.addUser(t, "oauth@example.com", "password123", user.StatusActive)
		u.PasswordHash = nil

		_, err := h.svc.Login(ctx, "oauth@example.com", "password123")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("each login opens a fresh family", func(t *testing.T) {
		h := newServiceHarness(t)
		h.addUser(t, "alice@example.com", "password123", user.StatusActive)

		first, err := h.svc.Login(ctx, "alice@example.com", "password123")
		require.NoError(t, err)
		second, err := h.svc.Login(ctx, "alice@example.com", "password123")
		require.NoError(t, err)

		firstClaims, err := h.tokens.VerifyRefreshToken(first.RefreshToken)
		require.NoError(t, err)
		secondClaims, err := h.tokens.VerifyRefreshToken(second.RefreshToken)
		require.NoError(t, err)

		assert.NotEqual(t, firstClaims.Family, secondClaims.Family)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("rotation issues a new pair in the same family", func(t *testing.T) {
		h := newServiceHarness(t)
		h.addUser(t, "alice@example.com", "password123", user.StatusActive)

		login, err := h.svc.Login(ctx, "alice@example.com", "password123")
		require.NoError(t, err)

		refreshed, err := h.svc.Refresh(ctx, login.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

		oldClaims, err := h.tokens.VerifyRefreshToken(login.RefreshToken)
		require.NoError(t, err)
		newClaims, err := h.tokens.VerifyRefreshToken(refreshed.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, oldClaims.Family, newClaims.Family)

		// The rotated-away token is revoked in storage
		old, err := h.sessions.GetByHash(ctx, hashToken(login.RefreshToken))
		require.NoError(t, err)
		assert.True(t, old.Revoked)
	})

	t.Run("reuse burns the whole family", func(t *testing.T) {
		h := newServiceHarness(t)
		h.addUser(t, "alice@example.com", "password123", user.StatusActive)

		login, err := h.svc.Login(ctx, "alice@example.com", "password123")
		require.NoError(t, err)

		refreshed, err := h.svc.Refresh(ctx, login.RefreshToken)
		require.NoError(t, err)

		// Presenting the already-rotated token is a replay
		_, err = h.svc.Refresh(ctx, login.RefreshToken)
		assert.ErrorIs(t, err, ErrTokenReuseDetected)

		// The freshest token dies with its family
		_, err = h.svc.Refresh(ctx, refreshed.RefreshToken)
		assert.ErrorIs(t, err, ErrTokenReuseDetected)
	})

	t.Run("valid signature without a stored record is a replay", func(t *testing.T) {
		h := newServiceHarness(t)
		u := h.addUser(t, "alice@example.com", "password123", user.StatusActive)

		phantom, err := h.tokens.CreateRefreshToken(u.ID, uuid.New(), uuid.New(), time.Hour)
		require.NoError(t, err)

		_, err = h.svc.Refresh(ctx, phantom)
		assert.ErrorIs(t, err, ErrTokenReuseDetected)
	})

	t.Run("suspension blocks rotation", func(t *testing.T) {
		h := newServiceHarness(t)
		u := h.addUser(t, "alice@example.com", "password123", user.StatusActive)

		login, err := h.svc.Login(ctx, "alice@example.com", "password123")
		require.NoError(t, err)

		u.Status = user.StatusSuspended

		_, err = h.svc.Refresh(ctx, login.RefreshToken)
		assert.ErrorIs(t, err, ErrAccountSuspended)

		// No rotation happened: the presented token is still live
		stored, err := h.sessions.GetByHash(ctx, hashToken(login.RefreshToken))
		require.NoError(t, err)
		assert.False(t, stored.Revoked)
	})

	t.Run("expired claims", func(t *testing.T) {
		h := newServiceHarness(t)
		u := h.addUser(t, "alice@example.com", "password123", user.StatusActive)

		expired, err := h.tokens.CreateRefreshToken(u.ID, uuid.New(), uuid.New(), -time.Minute)
		require.NoError(t, err)

		_, err = h.svc.Refresh(ctx, expired)
		assert.ErrorIs(t, err, ErrRefreshTokenExpired)
	})

	t.Run("garbage token", func(t *testing.T) {
		h := newServiceHarness(t)

		_, err := h.svc.Refresh(ctx, "not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes the presented family", func(t *testing.T) {
		h := newServiceHarness(t)
		h.addUser(t, "alice@example.com", "password123", user.StatusActive)

		login, err := h.svc.Login(ctx, "alice@example.com", "password123")
		require.NoError(t, err)

		require.NoError(t, h.svc.Logout(ctx, login.RefreshToken))

		_, err = h.svc.Refresh(ctx, login.RefreshToken)
		assert.ErrorIs(t, err, ErrTokenReuseDetected)
	})

	t.Run("best effort", func(t *testing.T) {
		h := newServiceHarness(t)

		assert.NoError(t, h.svc.Logout(ctx, ""))
		assert.NoError(t, h.svc.Logout(ctx, "not-a-token"))
	})

	t.Run("idempotent", func(t *testing.T) {
		h := newServiceHarness(t)
		h.addUser(t, "alice@example.com", "password123", user.StatusActive)

		login, err := h.svc.Login(ctx, "alice@example.com", "password123")
		require.NoError(t, err)

		require.NoError(t, h.svc.Logout(ctx, login.RefreshToken))
		assert.NoError(t, h.svc.Logout(ctx, login.RefreshToken))
	})
}

func TestVerifyEmail(t *testing.T) {
	ctx := context.Background()

	register := func(t *testing.T, h *serviceHarness) (*user.User, string) {
		t.Helper()
		u, err := h.svc.Register(ctx, "alice@example.com", "password123", "Alice")
		require.NoError(t, err)
		return u, h.publisher.last(t).Data["token"]
	}

	t.Run("activates the account and consumes the token", func(t *testing.T) {
		h := newServiceHarness(t)
		u, rawToken := register(t, h)

		require.NoError(t, h.svc.VerifyEmail(ctx, rawToken))
		assert.Equal(t, user.StatusActive, h.users.byID[u.ID].Status)

		// One-shot: the token is gone
		err := h.svc.VerifyEmail(ctx, rawToken)
		assert.ErrorIs(t, err, ErrInvalidVerificationToken)
	})

	t.Run("expired token is deleted on sight", func(t *testing.T) {
		h := newServiceHarness(t)
		_, rawToken := register(t, h)

		h.svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

		err := h.svc.VerifyEmail(ctx, rawToken)
		assert.ErrorIs(t, err, ErrVerificationTokenExpired)
		assert.Empty(t, h.actions.byID)
	})

	t.Run("already verified", func(t *testing.T) {
		h := newServiceHarness(t)
		u, rawToken := register(t, h)
		u.Status = user.StatusActive

		err := h.svc.VerifyEmail(ctx, rawToken)
		assert.ErrorIs(t, err, ErrEmailAlreadyVerified)
	})

	t.Run("unknown token", func(t *testing.T) {
		h := newServiceHarness(t)

		err := h.svc.VerifyEmail(ctx, "nonsense")
		assert.ErrorIs(t, err, ErrInvalidVerificationToken)
	})
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown email looks exactly like success", func(t *testing.T) {
		h := newServiceHarness(t)

		assert.NoError(t, h.svc.RequestPasswordReset(ctx, "nobody@example.com"))
		assert.Empty(t, h.publisher.messages)
	})

	t.Run("full reset flow revokes every session", func(t *testing.T) {
		h := newServiceHarness(t)
		h.addUser(t, "alice@example.com", "password123", user.StatusActive)

		login, err := h.svc.Login(ctx, "alice@example.com", "password123")
		require.NoError(t, err)

		require.NoError(t, h.svc.RequestPasswordReset(ctx, "alice@example.com"))
		msg := h.publisher.last(t)
		require.Equal(t, notify.KindPasswordResetEmail, msg.Kind)

		require.NoError(t, h.svc.ResetPassword(ctx, msg.Data["token"], "new-password-456"))

		// Old password is dead, new one works
		_, err = h.svc.Login(ctx, "alice@example.com", "password123")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = h.svc.Login(ctx, "alice@example.com", "new-password-456")
		assert.NoError(t, err)

		// Pre-reset sessions are revoked
		_, err = h.svc.Refresh(ctx, login.RefreshToken)
		assert.ErrorIs(t, err, ErrTokenReuseDetected)

		// The reset token is one-shot
		err = h.svc.ResetPassword(ctx, msg.Data["token"], "another-password")
		assert.ErrorIs(t, err, ErrInvalidResetToken)
	})

	t.Run("expired reset token", func(t *testing.T) {
		h := newServiceHarness(t)
		h.addUser(t, "alice@example.com", "password123", user.StatusActive)

		require.NoError(t, h.svc.RequestPasswordReset(ctx, "alice@example.com"))
		msg := h.publisher.last(t)

		h.svc.now = func() time.Time { return time.Now().Add(16 * time.Minute) }

		err := h.svc.ResetPassword(ctx, msg.Data["token"], "new-password-456")
		assert.ErrorIs(t, err, ErrInvalidResetToken)
	})

	t.Run("password validation", func(t *testing.T) {
		h := newServiceHarness(t)

		err := h.svc.ResetPassword(ctx, "token", "")
		assert.ErrorIs(t, err, ErrPasswordRequired)

		err = h.svc.ResetPassword(ctx, "token", "short")
		assert.ErrorIs(t, err, ErrPasswordTooShort)
	})
}

func TestResendVerification(t *testing.T) {
	ctx := context.Background()

	t.Run("unverified user gets a fresh token", func(t *testing.T) {
		h := newServiceHarness(t)
		h.addUser(t, "bob@example.com", "password123", user.StatusUnverified)

		require.NoError(t, h.svc.ResendVerification(ctx, "bob@example.com"))
		msg := h.publisher.last(t)
		assert.Equal(t, notify.KindVerificationEmail, msg.Kind)
	})

	t.Run("active and unknown accounts are silent", func(t *testing.T) {
		h := newServiceHarness(t)
		h.addUser(t, "alice@example.com", "password123", user.StatusActive)

		assert.NoError(t, h.svc.ResendVerification(ctx, "alice@example.com"))
		assert.NoError(t, h.svc.ResendVerification(ctx, "nobody@example.com"))
		assert.Empty(t, h.publisher.messages)
	})
}

// A dead queue must never fail the mutation that triggered the notification.
func TestNotificationFailureDoesNotFailRegistration(t *testing.T) {
	ctx := context.Background()
	h := newServiceHarness(t)
	h.publisher.fail = true

	u, err := h.svc.Register(ctx, "alice@example.com", "password123", "Alice")
	require.NoError(t, err)
	assert.Equal(t, user.StatusUnverified, u.Status)
}
