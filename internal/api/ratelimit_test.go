package api

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/steampulse/steampulse/internal/auth"
)

func newTestSessions(t *testing.T) *auth.Sessions {
	t.Helper()
	sessions, err := auth.NewSessions(sessionSecret, 1200*time.Second, 60*time.Second)
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	return sessions
}

func TestRateLimiterRejectsBeyondBurst(t *testing.T) {
	rl := newRateLimiter(newTestSessions(t), 3, 60, 30)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := rl.middleware(limitLogin, ok)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	assertEqual(t, "status", rec.Code, http.StatusTooManyRequests)

	retryAfter := rec.Header().Get("Retry-After")
	if retryAfter == "" {
		t.Fatal("429 response is missing Retry-After")
	}
	secs, err := strconv.Atoi(retryAfter)
	if err != nil || secs < 1 {
		t.Errorf("Retry-After = %q, want an integer >= 1", retryAfter)
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := newRateLimiter(newTestSessions(t), 1, 60, 30)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := rl.middleware(limitLogin, ok)

	first := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	first.RemoteAddr = "203.0.113.10:4000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, first)
	assertEqual(t, "first caller status", rec.Code, http.StatusOK)

	blocked := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	blocked.RemoteAddr = "203.0.113.10:4001" // same host, same bucket
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, blocked)
	assertEqual(t, "same caller status", rec.Code, http.StatusTooManyRequests)

	other := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	other.RemoteAddr = "203.0.113.99:4000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assertEqual(t, "other caller status", rec.Code, http.StatusOK)
}

func TestRateLimiterCategoriesAreIndependent(t *testing.T) {
	rl := newRateLimiter(newTestSessions(t), 1, 1, 1)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	login := rl.middleware(limitLogin, ok)
	read := rl.middleware(limitRead, ok)

	rec := httptest.NewRecorder()
	login.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	assertEqual(t, "login status", rec.Code, http.StatusOK)

	// The login bucket is exhausted; the read bucket for the same caller
	// is not.
	rec = httptest.NewRecorder()
	read.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watchlist", nil))
	assertEqual(t, "read status", rec.Code, http.StatusOK)

	rec = httptest.NewRecorder()
	login.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	assertEqual(t, "second login status", rec.Code, http.StatusTooManyRequests)
}

func TestRateLimiterBucketsByBearerClient(t *testing.T) {
	sessions := newTestSessions(t)
	rl := newRateLimiter(sessions, 1, 60, 30)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := rl.middleware(limitLogin, ok)

	token, _, err := sessions.Issue(testClientID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Exhaust the IP bucket.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	assertEqual(t, "ip caller status", rec.Code, http.StatusOK)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	assertEqual(t, "ip caller blocked", rec.Code, http.StatusTooManyRequests)

	// The same peer with a valid bearer lands in the client bucket.
	withToken := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	withToken.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, withToken)
	assertEqual(t, "bearer caller status", rec.Code, http.StatusOK)
}
