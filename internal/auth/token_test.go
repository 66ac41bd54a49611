package auth

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testAccessSecret  = bytes.Repeat([]byte{0xA1}, 32)
	testRefreshSecret = bytes.Repeat([]byte{0xB2}, 32)
)

func tokenServices(t *testing.T) map[string]TokenService {
	t.Helper()

	jwtService, err := NewJWTService(testAccessSecret, testRefreshSecret)
	require.NoError(t, err)

	pasetoService, err := NewPasetoService(testAccessSecret, testRefreshSecret)
	require.NoError(t, err)

	return map[string]TokenService{
		"jwt":    jwtService,
		"paseto": pasetoService,
	}
}

func TestTokenServiceRejectsShortSecrets(t *testing.T) {
	_, err := NewJWTService([]byte("too short"), testRefreshSecret)
	assert.Error(t, err)

	_, err = NewPasetoService(testAccessSecret, []byte("too short"))
	assert.Error(t, err)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	userID := uuid.New()

	for name, svc := range tokenServices(t) {
		t.Run(name, func(t *testing.T) {
			token, err := svc.CreateAccessToken(userID, "alice@example.com", "ACTIVE", 15*time.Minute)
			require.NoError(t, err)
			require.NotEmpty(t, token)

			claims, err := svc.VerifyAccessToken(token)
			require.NoError(t, err)
			assert.Equal(t, userID.String(), claims.UserID)
			assert.Equal(t, "alice@example.com", claims.Email)
			assert.Equal(t, "ACTIVE", claims.Status)
			assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt, time.Minute)
		})
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	userID := uuid.New()
	tokenID := uuid.New()
	family := uuid.New()

	for name, svc := range tokenServices(t) {
		t.Run(name, func(t *testing.T) {
			token, err := svc.CreateRefreshToken(userID, tokenID, family, 7*24*time.Hour)
			require.NoError(t, err)

			claims, err := svc.VerifyRefreshToken(token)
			require.NoError(t, err)
			assert.Equal(t, userID.String(), claims.UserID)
			assert.Equal(t, tokenID.String(), claims.TokenID)
			assert.Equal(t, family.String(), claims.Family)
		})
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	for name, svc := range tokenServices(t) {
		t.Run(name, func(t *testing.T) {
			token, err := svc.CreateAccessToken(uuid.New(), "alice@example.com", "ACTIVE", -time.Minute)
			require.NoError(t, err)

			_, err = svc.VerifyAccessToken(token)
			assert.ErrorIs(t, err, ErrExpiredToken)
		})
	}
}

func TestVerifyGarbageToken(t *testing.T) {
	for name, svc := range tokenServices(t) {
		t.Run(name, func(t *testing.T) {
			_, err := svc.VerifyAccessToken("not-a-token")
			assert.ErrorIs(t, err, ErrInvalidToken)

			_, err = svc.VerifyRefreshToken("")
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

// A refresh token must never verify as an access token: the two kinds are
// signed under distinct secrets.
func TestTokenKindsDoNotCross(t *testing.T) {
	for name, svc := range tokenServices(t) {
		t.Run(name, func(t *testing.T) {
			refresh, err := svc.CreateRefreshToken(uuid.New(), uuid.New(), uuid.New(), time.Hour)
			require.NoError(t, err)

			_, err = svc.VerifyAccessToken(refresh)
			assert.Error(t, err)

			access, err := svc.CreateAccessToken(uuid.New(), "alice@example.com", "ACTIVE", time.Hour)
			require.NoError(t, err)

			_, err = svc.VerifyRefreshToken(access)
			assert.Error(t, err)
		})
	}
}

// Tokens signed by one scheme must not verify under the other even with the
// same key material.
func TestSchemesDoNotCross(t *testing.T) {
	services := tokenServices(t)

	access, err := services["jwt"].CreateAccessToken(uuid.New(), "alice@example.com", "ACTIVE", time.Hour)
	require.NoError(t, err)

	_, err = services["paseto"].VerifyAccessToken(access)
	assert.Error(t, err)
}
