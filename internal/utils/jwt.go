package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA-256 hashing for refresh tokens
	"encoding/hex"  // hex encoding functions
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"       // unique token IDs (jti claim)
)

// AccessToken represents a signed JWT access token along with its
// expiry. Access tokens are short-lived, carry the principal in their
// claims and are never persisted server-side; validity is determined
// purely by signature and expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long-lived opaque capability token used
// to obtain new access tokens. Raw goes back to the client; only the
// SHA-256 hash of Raw is persisted in the cache.
type RefreshToken struct {
	Raw string    // raw token value returned to the client
	Exp time.Time // UTC expiration time
}

// Claims carried by an access token. Mirrors the principal attached
// to authenticated requests.
type Claims struct {
	UserID uint64
	Email  string
	Role   string
}

// NewAccessToken builds and signs an HS256 JWT for a user. The JWT
// includes subject (sub), email, role, expiration (exp), issued at
// (iat) and a unique token ID (jti), so two tokens minted within the
// same second are still distinct values.
func NewAccessToken(secret string, cl Claims, ttl time.Duration) (AccessToken, error) {
	exp := time.Now().UTC().Add(ttl)
	claims := jwt.MapClaims{
		"sub":   cl.UserID,
		"email": cl.Email,
		"role":  cl.Role,
		"exp":   exp.Unix(),
		"iat":   time.Now().UTC().Unix(),
		"jti":   uuid.NewString(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken validates an HS256 JWT and returns its claims.
// Tokens signed with a different method are rejected.
func ParseAccessToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, errors.New("invalid token")
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid claims")
	}
	var cl Claims
	if sub, ok := mc["sub"].(float64); ok {
		cl.UserID = uint64(sub)
	}
	cl.Email, _ = mc["email"].(string)
	cl.Role, _ = mc["role"].(string)
	if cl.UserID == 0 {
		return Claims{}, errors.New("missing subject")
	}
	return cl, nil
}

// NewRefreshToken returns a cryptographically secure random token
// (64 bytes, hex encoded) and its expiration time. The value is a
// pure capability token, not a signed structure.
func NewRefreshToken(ttl time.Duration) (RefreshToken, error) {
	raw, err := randomHex(64) // 64 bytes -> 128 hex chars
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: raw,
		Exp: time.Now().UTC().Add(ttl),
	}, nil
}

// HashRefreshRaw returns the SHA-256 hash of the raw refresh token as
// a hex string. Storing only the hash prevents a leaked cache dump
// from being replayed as live sessions.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
