// Package auth issues session tokens and keeps provider OAuth tokens sealed
// at rest.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	// CookieName is the session cookie set by the login flow.
	CookieName = "session"
	issuer     = "listenparty"
)

var ErrInvalidSession = errors.New("invalid session token")

// Sessions signs and verifies HS256 session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token identifying username.
func (s *Sessions) Issue(username string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Parse verifies token and returns the username it identifies.
func (s *Sessions) Parse(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.Subject == "" || claims.Issuer != issuer {
		return "", ErrInvalidSession
	}
	return claims.Subject, nil
}

// Identify resolves the username of r from the session cookie, a bearer
// header or the token query parameter, in that order. Missing or invalid
// tokens yield an anonymous caller.
func (s *Sessions) Identify(r *http.Request) (string, bool) {
	for _, tok := range candidates(r) {
		if username, err := s.Parse(tok); err == nil {
			return username, true
		}
	}
	return "", false
}

func candidates(r *http.Request) []string {
	var out []string
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		out = append(out, c.Value)
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		out = append(out, strings.TrimPrefix(h, "Bearer "))
	}
	if q := r.URL.Query().Get("token"); q != "" {
		out = append(out, q)
	}
	return out
}
