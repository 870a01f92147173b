package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieSigner seals a session id into a tamper-evident cookie value.
// The cookie carries nothing but the id; the session row stays
// authoritative for expiry and ownership.
type CookieSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewCookieSigner creates a new cookie signer
func NewCookieSigner(secret string, ttl time.Duration) *CookieSigner {
	return &CookieSigner{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Seal signs a session id into a cookie value
func (s *CookieSigner) Seal(sessionID string) (string, error) {
	claims := jwt.MapClaims{
		"sid": sessionID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	value, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %w", err)
	}

	return value, nil
}

// Open verifies a cookie value and returns the session id it carries
func (s *CookieSigner) Open(value string) (string, error) {
	token, err := jwt.Parse(value, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse session cookie: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid session cookie")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid session cookie claims")
	}

	sessionID, ok := claims["sid"].(string)
	if !ok || sessionID == "" {
		return "", fmt.Errorf("missing session id in cookie")
	}

	return sessionID, nil
}

// TTL returns the cookie lifetime in seconds, for Set-Cookie Max-Age.
func (s *CookieSigner) TTL() int {
	return int(s.ttl.Seconds())
}
