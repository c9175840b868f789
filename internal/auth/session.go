package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every session-token rejection: bad signature,
// expired, malformed, or wrong token type. Callers get no finer detail.
var ErrInvalidToken = errors.New("auth: invalid session token")

const tokenTypeAccess = "access"

type sessionClaims struct {
	ClientID  string `json:"client_id"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies self-contained bearer tokens. There is no
// server-side token store; revocation is by expiry only.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

// NewSessions builds the session authority. The signing secret must be
// non-empty; lifetime and verification leeway come from configuration.
func NewSessions(secret string, ttl, leeway time.Duration) (*Sessions, error) {
	if secret == "" {
		return nil, errors.New("auth: session secret is empty")
	}
	return &Sessions{
		secret: []byte(secret),
		ttl:    ttl,
		leeway: leeway,
		now:    time.Now,
	}, nil
}

// TTL returns the configured token lifetime.
func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the client and returns it with its lifetime in
// seconds.
func (s *Sessions) Issue(clientID string) (string, int64, error) {
	now := s.now()
	claims := sessionClaims{
		ClientID:  clientID,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", 0, fmt.Errorf("auth: sign session token: %w", err)
	}
	return token, int64(s.ttl.Seconds()), nil
}

// Verify checks the token signature, lifetime (with leeway), and type, and
// returns the embedded client id. The signing method is pinned to HS256 so a
// token cannot downgrade the verification algorithm.
func (s *Sessions) Verify(token string) (string, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(s.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.TokenType != tokenTypeAccess || claims.ClientID == "" {
		return "", ErrInvalidToken
	}
	return claims.ClientID, nil
}
