// Package auth verifies identity-provider ID tokens and issues session cookies.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned for ID tokens or session tokens that fail verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNoSession is returned when a request carries no session cookie.
	ErrNoSession = errors.New("no session")
)

const sessionIssuer = "prepwise"

// IDClaims are the identity-provider claims PrepWise relies on.
// Subject is the provider uid.
type IDClaims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// IDTokenVerifier checks HS256 ID tokens minted by the identity provider.
type IDTokenVerifier struct {
	key      []byte
	issuer   string
	audience string
	now      func() time.Time
}

// NewIDTokenVerifier creates a verifier. Empty issuer or audience are not checked.
func NewIDTokenVerifier(secret, issuer, audience string) *IDTokenVerifier {
	return &IDTokenVerifier{
		key:      []byte(secret),
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
}

// Verify parses raw and returns its claims.
func (v *IDTokenVerifier) Verify(raw string) (*IDClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &IDClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, v.keyFunc, opts...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

func (v *IDTokenVerifier) keyFunc(*jwt.Token) (any, error) {
	return v.key, nil
}

// SessionClaims are carried by the session cookie. Subject is the user ID.
type SessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Session is a freshly issued session token.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// SessionIssuer mints and verifies session tokens.
type SessionIssuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewSessionIssuer creates an issuer whose sessions last ttl.
func NewSessionIssuer(secret string, ttl time.Duration) *SessionIssuer {
	return &SessionIssuer{
		key: []byte(secret),
		ttl: ttl,
		now: time.Now,
	}
}

// TTL returns the session lifetime.
func (s *SessionIssuer) TTL() time.Duration {
	return s.ttl
}

// Issue mints a session for the identity in claims.
func (s *SessionIssuer) Issue(claims *IDClaims) (*Session, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		Email: claims.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    sessionIssuer,
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &Session{Token: signed, ExpiresAt: expires}, nil
}

// Verify checks a session token and returns its claims.
func (s *SessionIssuer) Verify(raw string) (*SessionClaims, error) {
	if raw == "" {
		return nil, ErrNoSession
	}
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
