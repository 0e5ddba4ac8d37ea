// Package auth issues and validates the session tokens that guard the
// bridge.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims are the standard claims plus the session the token was issued to.
type Claims struct {
	jwt.RegisteredClaims
	Session string `json:"session"`
}

// GenerateToken signs an HS256 token for session, valid for ttl.
func GenerateToken(session string, secretKey []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Session: session,
	})

	return token.SignedString(secretKey)
}

// ValidateToken checks the signature and expiry of tokenString and returns
// its session.
func ValidateToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "", ErrTokenExpired
	}
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	return claims.Session, nil
}
