package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token has been revoked")
	ErrRefreshTokenExpired  = errors.New("refresh token has expired")
	ErrActionTokenNotFound  = errors.New("action token not found")
)

// RefreshToken is one link in a rotation family: the chain of tokens produced
// by successive refreshes from a single login. At most one non-revoked token
// exists per family; rotation revokes the predecessor in the same transaction
// that creates the successor.
type RefreshToken struct {
	ID        uuid.UUID
	TokenHash string // SHA-256 of the signed token, never the raw token
	UserID    uuid.UUID
	Family    uuid.UUID
	Revoked   bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t *RefreshToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// ActionTokenPurpose distinguishes the two one-shot email token kinds.
type ActionTokenPurpose string

const (
	PurposeEmailVerification ActionTokenPurpose = "EMAIL_VERIFICATION"
	PurposePasswordReset     ActionTokenPurpose = "PASSWORD_RESET"
)

// ActionToken is a persisted opaque token: email verification or password
// reset. Single active token per (user, purpose); consumed on use.
type ActionToken struct {
	ID        uuid.UUID
	TokenHash string
	UserID    uuid.UUID
	Purpose   ActionTokenPurpose
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t *ActionToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}
