package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/taskhive/internal/logging"
	"github.com/redmonkez12/taskhive/internal/notify"
	"github.com/redmonkez12/taskhive/internal/user"
)

var (
	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrAccountSuspended         = errors.New("account is suspended")
	ErrAccountNotVerified       = errors.New("email not verified, please check your inbox")
	ErrTokenReuseDetected       = errors.New("refresh token reuse detected")
	ErrEmailRequired            = errors.New("email is required")
	ErrPasswordRequired         = errors.New("password is required")
	ErrPasswordTooShort         = errors.New("password must be at least 8 characters")
	ErrNameRequired             = errors.New("name is required")
	ErrInvalidEmailFormat       = errors.New("invalid email format")
	ErrInvalidVerificationToken = errors.New("invalid verification token")
	ErrVerificationTokenExpired = errors.New("verification token has expired")
	ErrEmailAlreadyVerified     = errors.New("email already verified")
	ErrInvalidResetToken        = errors.New("invalid or expired reset token")
)

const (
	opaqueTokenBytes      = 32
	verificationTokenTTL  = 24 * time.Hour
	// Reset tokens are a higher-value target (account takeover), so their
	// window is much shorter than verification.
	passwordResetTokenTTL = 15 * time.Minute
)

// UserStore is the slice of the user repository the session manager needs.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash, name string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// SessionStore persists refresh token families.
type SessionStore interface {
	Store(ctx context.Context, token *RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	Rotate(ctx context.Context, oldID uuid.UUID, next *RefreshToken) error
	RevokeFamily(ctx context.Context, family uuid.UUID) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
	CompleteEmailVerification(ctx context.Context, userID, tokenID uuid.UUID) error
	CompletePasswordReset(ctx context.Context, userID, tokenID uuid.UUID, passwordHash string) error
}

// ActionTokenStore persists one-shot email tokens.
type ActionTokenStore interface {
	Replace(ctx context.Context, token *ActionToken) error
	GetByHash(ctx context.Context, tokenHash string, purpose ActionTokenPurpose) (*ActionToken, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// AuthTokens is the (access, refresh) pair issued together and rotated together.
type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Service handles authentication business logic: credential verification,
// token pair issuance, refresh rotation with reuse detection, and the
// email-token flows.
type Service struct {
	users                UserStore
	sessions             SessionStore
	actionTokens         ActionTokenStore
	tokenService         TokenService
	publisher            notify.Publisher
	logger               *logging.Logger
	accessTokenDuration  time.Duration
	refreshTokenDuration time.Duration
	now                  func() time.Time
}

func NewService(
	users UserStore,
	sessions SessionStore,
	actionTokens ActionTokenStore,
	tokenService TokenService,
	publisher notify.Publisher,
	logger *logging.Logger,
	accessTokenDuration time.Duration,
	refreshTokenDuration time.Duration,
) *Service {
	return &Service{
		users:                users,
		sessions:             sessions,
		actionTokens:         actionTokens,
		tokenService:         tokenService,
		publisher:            publisher,
		logger:               logger,
		accessTokenDuration:  accessTokenDuration,
		refreshTokenDuration: refreshTokenDuration,
		now:                  time.Now,
	}
}

// Register creates a new UNVERIFIED account and enqueues a verification email
func (s *Service) Register(ctx context.Context, email, password, name string) (*user.User, error) {
	email = normalizeEmail(email)

	if email == "" {
		return nil, ErrEmailRequired
	}
	if len(email) > 254 {
		return nil, ErrInvalidEmailFormat
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmailFormat
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	if len(password) < 8 {
		return nil, ErrPasswordTooShort
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrNameRequired
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser, err := s.users.Create(ctx, email, passwordHash, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, user.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Verification token issuance is best-effort; the user can always
	// request a resend.
	if err := s.issueVerificationToken(ctx, newUser); err != nil {
		s.logger.Warn("failed to issue verification token", "email", email, "error", err.Error())
	}

	return newUser, nil
}

// Login authenticates a user and opens a fresh refresh-token family.
// Unknown email and wrong password return the same generic error so callers
// cannot enumerate accounts; suspended accounts are rejected before the
// password hash is even checked.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthTokens, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	// Soft-deleted accounts are invisible to the store, so they fall into
	// the generic invalid-credentials path here.
	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if existingUser.Status == user.StatusSuspended {
		return nil, ErrAccountSuspended
	}

	if existingUser.PasswordHash == nil || !VerifyPassword(*existingUser.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	if existingUser.Status == user.StatusUnverified {
		return nil, ErrAccountNotVerified
	}

	// New login, new family
	tokens, err := s.issueTokenPair(ctx, existingUser, uuid.New())
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	return tokens, nil
}

// Refresh rotates a refresh token and issues a new (access, refresh) pair.
// Signature and claims are verified before any storage lookup; a token whose
// claims are valid but whose hash is unknown or already revoked is treated
// as a replay and burns the entire family.
func (s *Service) Refresh(ctx context.Context, rawToken string) (*AuthTokens, error) {
	claims, err := s.tokenService.VerifyRefreshToken(rawToken)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return nil, ErrRefreshTokenExpired
		}
		return nil, ErrInvalidToken
	}

	subject, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	family, err := uuid.Parse(claims.Family)
	if err != nil {
		return nil, ErrInvalidToken
	}

	stored, err := s.sessions.GetByHash(ctx, hashToken(rawToken))
	if err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) {
			// Valid signature, no record: this token was rotated away and
			// deleted or the record is gone. Someone is replaying history.
			s.burnFamily(ctx, family, subject)
			return nil, ErrTokenReuseDetected
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	if stored.Revoked {
		s.burnFamily(ctx, family, subject)
		return nil, ErrTokenReuseDetected
	}

	if stored.UserID != subject || stored.Family != family {
		return nil, ErrInvalidToken
	}

	if s.now().After(stored.ExpiresAt) {
		return nil, ErrRefreshTokenExpired
	}

	// Re-read the user so a status change or suspension is picked up on
	// rotation, before the access token would have expired on its own.
	existingUser, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.burnFamily(ctx, family, subject)
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if existingUser.Status == user.StatusSuspended {
		return nil, ErrAccountSuspended
	}

	tokens, rotateErr := s.rotateTokenPair(ctx, existingUser, stored)
	if rotateErr != nil {
		if errors.Is(rotateErr, ErrRefreshTokenRevoked) {
			// Lost a race with another rotation of the same token: that is
			// a concurrent replay, same response as any other reuse.
			s.burnFamily(ctx, family, subject)
			return nil, ErrTokenReuseDetected
		}
		return nil, fmt.Errorf("failed to rotate tokens: %w", rotateErr)
	}

	return tokens, nil
}

// Logout revokes the family of the presented refresh token. Best-effort: an
// absent or invalid token still results in a successful logout (the caller
// clears its client-side state either way).
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	if strings.TrimSpace(rawToken) == "" {
		return nil
	}

	if _, err := s.tokenService.VerifyRefreshToken(rawToken); err != nil {
		return nil
	}

	stored, err := s.sessions.GetByHash(ctx, hashToken(rawToken))
	if err != nil {
		return nil
	}

	return s.sessions.RevokeFamily(ctx, stored.Family)
}

// VerifyEmail consumes a verification token and activates the account
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) error {
	token, err := s.actionTokens.GetByHash(ctx, hashToken(rawToken), PurposeEmailVerification)
	if err != nil {
		if errors.Is(err, ErrActionTokenNotFound) {
			return ErrInvalidVerificationToken
		}
		return fmt.Errorf("failed to get verification token: %w", err)
	}

	if s.now().After(token.ExpiresAt) {
		// Expired tokens are deleted on sight
		if err := s.actionTokens.Delete(ctx, token.ID); err != nil {
			s.logger.Warn("failed to delete expired verification token", "error", err.Error())
		}
		return ErrVerificationTokenExpired
	}

	existingUser, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidVerificationToken
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if existingUser.Status != user.StatusUnverified {
		if err := s.actionTokens.Delete(ctx, token.ID); err != nil {
			s.logger.Warn("failed to delete verification token", "error", err.Error())
		}
		return ErrEmailAlreadyVerified
	}

	// Status flip and token consumption happen in one transaction
	if err := s.sessions.CompleteEmailVerification(ctx, existingUser.ID, token.ID); err != nil {
		return fmt.Errorf("failed to verify email: %w", err)
	}

	return nil
}

// RequestPasswordReset initiates the password reset process
// Always returns nil to prevent email enumeration attacks
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	existingUser, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		// Don't reveal if user exists
		if !errors.Is(err, user.ErrNotFound) {
			s.logger.Warn("failed to get user for password reset", "error", err.Error())
		}
		return nil
	}

	token, err := GenerateOpaqueToken(opaqueTokenBytes)
	if err != nil {
		s.logger.Warn("failed to generate password reset token", "error", err.Error())
		return nil
	}

	actionToken := &ActionToken{
		ID:        uuid.New(),
		TokenHash: token.Hash,
		UserID:    existingUser.ID,
		Purpose:   PurposePasswordReset,
		ExpiresAt: s.now().Add(passwordResetTokenTTL),
	}
	if err := s.actionTokens.Replace(ctx, actionToken); err != nil {
		s.logger.Warn("failed to store password reset token", "error", err.Error())
		return nil
	}

	s.enqueue(ctx, notify.Message{
		Kind:      notify.KindPasswordResetEmail,
		Recipient: existingUser.Email,
		Data:      map[string]string{"token": token.Raw},
	})

	return nil
}

// ResetPassword consumes a reset token, updates the password, and revokes
// every refresh-token family of the user in one atomic unit.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if newPassword == "" {
		return ErrPasswordRequired
	}
	if len(newPassword) < 8 {
		return ErrPasswordTooShort
	}

	token, err := s.actionTokens.GetByHash(ctx, hashToken(rawToken), PurposePasswordReset)
	if err != nil {
		if errors.Is(err, ErrActionTokenNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("failed to get password reset token: %w", err)
	}

	if s.now().After(token.ExpiresAt) {
		if err := s.actionTokens.Delete(ctx, token.ID); err != nil {
			s.logger.Warn("failed to delete expired reset token", "error", err.Error())
		}
		return ErrInvalidResetToken
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.sessions.CompletePasswordReset(ctx, token.UserID, token.ID, passwordHash); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	return nil
}

// ResendVerification issues a fresh verification token for an unverified
// account. Always returns nil to prevent email enumeration attacks.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	existingUser, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			s.logger.Warn("failed to get user for resend verification", "error", err.Error())
		}
		return nil
	}

	if existingUser.Status != user.StatusUnverified {
		// Don't reveal that the email is already verified
		return nil
	}

	if err := s.issueVerificationToken(ctx, existingUser); err != nil {
		s.logger.Warn("failed to issue verification token", "error", err.Error())
	}

	return nil
}

// issueTokenPair creates a refresh token in the given family and a matching
// access token signed against the user's current email and status.
func (s *Service) issueTokenPair(ctx context.Context, u *user.User, family uuid.UUID) (*AuthTokens, error) {
	tokenID := uuid.New()

	rawRefresh, err := s.tokenService.CreateRefreshToken(u.ID, tokenID, family, s.refreshTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	record := &RefreshToken{
		ID:        tokenID,
		TokenHash: hashToken(rawRefresh),
		UserID:    u.ID,
		Family:    family,
		ExpiresAt: s.now().Add(s.refreshTokenDuration),
	}
	if err := s.sessions.Store(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return s.finishTokenPair(u, rawRefresh)
}

// rotateTokenPair revokes old and stores its successor atomically, then signs
// the matching access token.
func (s *Service) rotateTokenPair(ctx context.Context, u *user.User, old *RefreshToken) (*AuthTokens, error) {
	tokenID := uuid.New()

	rawRefresh, err := s.tokenService.CreateRefreshToken(u.ID, tokenID, old.Family, s.refreshTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	next := &RefreshToken{
		ID:        tokenID,
		TokenHash: hashToken(rawRefresh),
		UserID:    u.ID,
		Family:    old.Family,
		ExpiresAt: s.now().Add(s.refreshTokenDuration),
	}
	if err := s.sessions.Rotate(ctx, old.ID, next); err != nil {
		return nil, err
	}

	return s.finishTokenPair(u, rawRefresh)
}

func (s *Service) finishTokenPair(u *user.User, rawRefresh string) (*AuthTokens, error) {
	accessToken, err := s.tokenService.CreateAccessToken(u.ID, u.Email, string(u.Status), s.accessTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	return &AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: rawRefresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTokenDuration.Seconds()),
	}, nil
}

func (s *Service) issueVerificationToken(ctx context.Context, u *user.User) error {
	token, err := GenerateOpaqueToken(opaqueTokenBytes)
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}

	actionToken := &ActionToken{
		ID:        uuid.New(),
		TokenHash: token.Hash,
		UserID:    u.ID,
		Purpose:   PurposeEmailVerification,
		ExpiresAt: s.now().Add(verificationTokenTTL),
	}
	if err := s.actionTokens.Replace(ctx, actionToken); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}

	s.enqueue(ctx, notify.Message{
		Kind:      notify.KindVerificationEmail,
		Recipient: u.Email,
		Data:      map[string]string{"token": token.Raw},
	})

	return nil
}

// burnFamily revokes a whole rotation family in response to detected reuse.
// The attacker may hold other tokens from the family's history, so nothing
// less than the full chain is safe to leave alive.
func (s *Service) burnFamily(ctx context.Context, family, userID uuid.UUID) {
	if err := s.sessions.RevokeFamily(ctx, family); err != nil {
		s.logger.Error("failed to revoke token family after reuse",
			"family", family,
			"user_id", userID,
			"error", err.Error(),
		)
		return
	}

	s.logger.Warn("refresh token reuse detected, family revoked",
		"family", family,
		"user_id", userID,
	)
}

// enqueue publishes a notification, swallowing failures: a dead queue must
// never fail or roll back the mutation that triggered the notification.
func (s *Service) enqueue(ctx context.Context, msg notify.Message) {
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Warn("failed to enqueue notification",
			"kind", msg.Kind,
			"error", err.Error(),
		)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
