package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// AccessClaims are the self-contained claims of a short-lived access token.
// Status is carried redundantly so route guards can enforce "must be ACTIVE"
// without a database round trip; a suspension therefore only takes effect
// once the token expires or the session rotates, whichever comes first.
type AccessClaims struct {
	UserID    string    `json:"user_id"` // UUID stored as string in token
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// RefreshClaims are the self-contained claims of a refresh token: the subject,
// the token's own ID, and the rotation family it belongs to. Verifying these
// never touches the database; only the revocation check does.
type RefreshClaims struct {
	UserID    string    `json:"user_id"`
	TokenID   string    `json:"token_id"`
	Family    string    `json:"family"`
	ExpiresAt time.Time `json:"exp"`
}

// TokenService defines the interface for token creation and validation.
// Implementations are PasetoService (PASETO v4.local) and JWTService (HS256),
// selected by config; both keep access and refresh key material separate.
type TokenService interface {
	CreateAccessToken(userID uuid.UUID, email, status string, duration time.Duration) (string, error)
	VerifyAccessToken(tokenStr string) (*AccessClaims, error)
	CreateRefreshToken(userID, tokenID, family uuid.UUID, duration time.Duration) (string, error)
	VerifyRefreshToken(tokenStr string) (*RefreshClaims, error)
}
