// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminSubject is the subject of every admin session token.
const AdminSubject = "admin"

// Sessions signs and verifies admin session tokens with an ed25519 key pair
// generated at startup. A zero ttl issues tokens without expiry.
type Sessions struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
	ttl     time.Duration
	now     func() time.Time
}

func NewSessions(ttl time.Duration) (*Sessions, error) {
	public, private, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Sessions{private: private, public: public, ttl: ttl, now: time.Now}, nil
}

// Issue creates a signed token for subject.
func (s *Sessions) Issue(subject string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(s.now()),
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(s.now().Add(s.ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.private)
}

// Verify returns the subject of a valid token.
func (s *Sessions) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	t, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.public, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", errors.New("missing sub in jwt")
	}
	return claims.Subject, nil
}
