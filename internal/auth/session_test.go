package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestSessions(t *testing.T) *Sessions {
	t.Helper()
	s, err := NewSessions("test-session-secret", 1200*time.Second, 60*time.Second)
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	return s
}

func TestNewSessionsRejectsEmptySecret(t *testing.T) {
	if _, err := NewSessions("", time.Minute, 0); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestSessions(t)

	token, expiresIn, err := s.Issue("dashboard")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if expiresIn != 1200 {
		t.Fatalf("expiresIn = %d, want 1200", expiresIn)
	}

	clientID, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if clientID != "dashboard" {
		t.Fatalf("clientID = %q, want dashboard", clientID)
	}
}

func TestSessionExpiryAndLeeway(t *testing.T) {
	s := newTestSessions(t)
	issued := time.Unix(1700000000, 0)

	s.now = func() time.Time { return issued }
	token, _, err := s.Issue("dashboard")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Inside ttl+leeway: still valid.
	s.now = func() time.Time { return issued.Add(1200*time.Second + 59*time.Second) }
	if _, err := s.Verify(token); err != nil {
		t.Fatalf("Verify within leeway: %v", err)
	}

	// Past ttl+leeway: rejected.
	s.now = func() time.Time { return issued.Add(1200*time.Second + 61*time.Second) }
	if _, err := s.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestSessionRejectsForeignSecret(t *testing.T) {
	s := newTestSessions(t)
	other, err := NewSessions("a-different-secret", 1200*time.Second, 0)
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}

	token, _, err := other.Issue("dashboard")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := s.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestSessionRejectsUnexpectedAlgorithm(t *testing.T) {
	s := newTestSessions(t)

	// Same secret, different HMAC variant: the verifier pins HS256.
	claims := sessionClaims{
		ClientID:  "dashboard",
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "dashboard",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString(s.secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := s.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestSessionRejectsWrongTokenType(t *testing.T) {
	s := newTestSessions(t)

	claims := sessionClaims{
		ClientID:  "dashboard",
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "dashboard",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := s.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestSessionRejectsMissingExpiry(t *testing.T) {
	s := newTestSessions(t)

	claims := sessionClaims{
		ClientID:  "dashboard",
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "dashboard",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := s.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestSessionRejectsGarbage(t *testing.T) {
	s := newTestSessions(t)
	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := s.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Verify(%q) err = %v, want ErrInvalidToken", token, err)
		}
	}
}
