package utils

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed HS256 JWT together with its expiry. Owners send it
// as a Bearer token on the document management API.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// RefreshToken is the raw refresh value handed to the client. Only its
// SHA-256 digest is ever stored.
type RefreshToken struct {
	Raw string
	Exp time.Time
}

// NewAccessToken signs a JWT carrying the user id as subject and the role.
func NewAccessToken(secret, userID, role string, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken validates raw against secret and returns the subject and
// role claims.
func ParseAccessToken(secret, raw string) (userID, role string, err error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", "", err
	}
	if !tok.Valid {
		return "", "", jwt.ErrTokenInvalidClaims
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", jwt.ErrTokenInvalidClaims
	}
	sub, _ := claims["sub"].(string)
	role, _ = claims["role"].(string)
	if sub == "" {
		return "", "", jwt.ErrTokenInvalidSubject
	}
	return sub, role, nil
}

// NewRefreshToken returns 48 random bytes as hex (96 chars) expiring after
// ttlDays.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
	raw, err := randomHex(48)
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: raw,
		Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
	}, nil
}

// HashRefreshRaw is the digest stored for a refresh token.
func HashRefreshRaw(raw string) string { return HashString(raw) }

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
