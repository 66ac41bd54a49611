package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// OpaqueToken is a random, unguessable token handed out in email links.
// Raw goes to the recipient; only Hash is ever persisted, so a database
// leak alone cannot redeem a token.
type OpaqueToken struct {
	Raw  string
	Hash string
}

// GenerateOpaqueToken creates a cryptographically random token of byteLength
// random bytes together with the SHA-256 hash under which it is stored.
func GenerateOpaqueToken(byteLength int) (*OpaqueToken, error) {
	b := make([]byte, byteLength)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}

	raw := base64.URLEncoding.EncodeToString(b)
	return &OpaqueToken{Raw: raw, Hash: hashToken(raw)}, nil
}

// VerifyOpaqueToken reports whether raw hashes to storedHash. The comparison
// is constant-time to avoid a timing side-channel on the hash bytes.
func VerifyOpaqueToken(raw, storedHash string) bool {
	stored, err := hex.DecodeString(storedHash)
	if err != nil {
		return false
	}

	sum := sha256.Sum256([]byte(raw))
	return subtle.ConstantTimeCompare(sum[:], stored) == 1
}

// hashToken returns the hex-encoded SHA-256 of a token. Used for both opaque
// email tokens and signed refresh tokens before they touch storage.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
