package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTService implements TokenService with HS256-signed JWTs. Like the PASETO
// implementation, access and refresh tokens are signed with distinct secrets.
type JWTService struct {
	accessSecret  []byte
	refreshSecret []byte
}

func NewJWTService(accessSecret, refreshSecret []byte) (*JWTService, error) {
	if len(accessSecret) != 32 {
		return nil, fmt.Errorf("access secret must be exactly 32 bytes, got %d", len(accessSecret))
	}
	if len(refreshSecret) != 32 {
		return nil, fmt.Errorf("refresh secret must be exactly 32 bytes, got %d", len(refreshSecret))
	}

	return &JWTService{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
	}, nil
}

type accessJWTClaims struct {
	Email  string `json:"email"`
	Status string `json:"status"`
	jwt.RegisteredClaims
}

type refreshJWTClaims struct {
	Family string `json:"family"`
	jwt.RegisteredClaims
}

// CreateAccessToken signs a new HS256 access token
func (s *JWTService) CreateAccessToken(userID uuid.UUID, email, status string, duration time.Duration) (string, error) {
	now := time.Now()

	claims := accessJWTClaims{
		Email:  email,
		Status: status,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
}

// VerifyAccessToken validates an access token and returns its claims
func (s *JWTService) VerifyAccessToken(tokenStr string) (*AccessClaims, error) {
	claims := new(accessJWTClaims)
	if err := s.parse(tokenStr, claims, s.accessSecret); err != nil {
		return nil, err
	}

	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}

	return &AccessClaims{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Status:    claims.Status,
		IssuedAt:  issuedAt,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// CreateRefreshToken signs a new HS256 refresh token carrying the token ID
// (as jti) and rotation family
func (s *JWTService) CreateRefreshToken(userID, tokenID, family uuid.UUID, duration time.Duration) (string, error) {
	now := time.Now()

	claims := refreshJWTClaims{
		Family: family.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        tokenID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
}

// VerifyRefreshToken validates a refresh token and returns its claims
func (s *JWTService) VerifyRefreshToken(tokenStr string) (*RefreshClaims, error) {
	claims := new(refreshJWTClaims)
	if err := s.parse(tokenStr, claims, s.refreshSecret); err != nil {
		return nil, err
	}

	if claims.Subject == "" || claims.ID == "" || claims.Family == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	return &RefreshClaims{
		UserID:    claims.Subject,
		TokenID:   claims.ID,
		Family:    claims.Family,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *JWTService) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
