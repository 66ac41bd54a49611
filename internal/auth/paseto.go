package auth

import (
	"errors"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/google/uuid"
)

// PasetoService implements TokenService with PASETO v4.local tokens
// (symmetric encryption with XChaCha20-Poly1305). Access and refresh tokens
// are encrypted under distinct keys so one kind can never pass as the other.
type PasetoService struct {
	accessKey  paseto.V4SymmetricKey
	refreshKey paseto.V4SymmetricKey
}

func NewPasetoService(accessSecret, refreshSecret []byte) (*PasetoService, error) {
	accessKey, err := symmetricKey(accessSecret)
	if err != nil {
		return nil, fmt.Errorf("access key: %w", err)
	}
	refreshKey, err := symmetricKey(refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("refresh key: %w", err)
	}

	return &PasetoService{
		accessKey:  accessKey,
		refreshKey: refreshKey,
	}, nil
}

func symmetricKey(secret []byte) (paseto.V4SymmetricKey, error) {
	if len(secret) != 32 {
		return paseto.V4SymmetricKey{}, fmt.Errorf("symmetric key must be exactly 32 bytes, got %d", len(secret))
	}
	return paseto.V4SymmetricKeyFromBytes(secret)
}

// CreateAccessToken generates a new PASETO v4.local access token
func (s *PasetoService) CreateAccessToken(userID uuid.UUID, email, status string, duration time.Duration) (string, error) {
	now := time.Now()

	token := paseto.NewToken()
	token.SetIssuedAt(now)
	token.SetExpiration(now.Add(duration))
	token.SetString("user_id", userID.String())
	token.SetString("email", email)
	token.SetString("status", status)

	return token.V4Encrypt(s.accessKey, nil), nil
}

// VerifyAccessToken validates an access token and returns its claims
func (s *PasetoService) VerifyAccessToken(tokenStr string) (*AccessClaims, error) {
	token, err := parseV4Local(s.accessKey, tokenStr)
	if err != nil {
		return nil, err
	}

	userID, err := token.GetString("user_id")
	if err != nil {
		return nil, ErrInvalidToken
	}

	email, err := token.GetString("email")
	if err != nil {
		return nil, ErrInvalidToken
	}

	status, err := token.GetString("status")
	if err != nil {
		return nil, ErrInvalidToken
	}

	issuedAt, err := token.GetIssuedAt()
	if err != nil {
		return nil, ErrInvalidToken
	}

	expiresAt, err := token.GetExpiration()
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &AccessClaims{
		UserID:    userID,
		Email:     email,
		Status:    status,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// CreateRefreshToken generates a new PASETO v4.local refresh token carrying
// the token ID and rotation family
func (s *PasetoService) CreateRefreshToken(userID, tokenID, family uuid.UUID, duration time.Duration) (string, error) {
	now := time.Now()

	token := paseto.NewToken()
	token.SetIssuedAt(now)
	token.SetExpiration(now.Add(duration))
	token.SetString("user_id", userID.String())
	token.SetString("token_id", tokenID.String())
	token.SetString("family", family.String())

	return token.V4Encrypt(s.refreshKey, nil), nil
}

// VerifyRefreshToken validates a refresh token and returns its claims
func (s *PasetoService) VerifyRefreshToken(tokenStr string) (*RefreshClaims, error) {
	token, err := parseV4Local(s.refreshKey, tokenStr)
	if err != nil {
		return nil, err
	}

	userID, err := token.GetString("user_id")
	if err != nil {
		return nil, ErrInvalidToken
	}

	tokenID, err := token.GetString("token_id")
	if err != nil {
		return nil, ErrInvalidToken
	}

	family, err := token.GetString("family")
	if err != nil {
		return nil, ErrInvalidToken
	}

	expiresAt, err := token.GetExpiration()
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &RefreshClaims{
		UserID:    userID,
		TokenID:   tokenID,
		Family:    family,
		ExpiresAt: expiresAt,
	}, nil
}

func parseV4Local(key paseto.V4SymmetricKey, tokenStr string) (*paseto.Token, error) {
	parser := paseto.NewParser()

	token, err := parser.ParseV4Local(key, tokenStr, nil)
	if err != nil {
		// The parser checks expiration by default; distinguish expired from invalid
		if errors.Is(err, &paseto.RuleError{}) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	return token, nil
}
