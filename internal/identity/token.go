package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims represents the access token claims the cart cares about
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ParseAccessToken checks that a token is structurally usable: it decodes,
// names a user (user_id or sub) and is not past its exp. The signature is
// not verified here; the auth service and the cart service own that.
func ParseAccessToken(tokenString string, now time.Time) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(now) {
		return nil, ErrExpiredToken
	}

	return claims, nil
}
