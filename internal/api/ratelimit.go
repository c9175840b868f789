package api

import (
	"math"
	"net/http"
	"strconv"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/time/rate"

	"github.com/steampulse/steampulse/internal/auth"
)

// limitCategory selects which per-minute budget a route draws from.
type limitCategory string

const (
	limitLogin limitCategory = "login"
	limitRead  limitCategory = "read"
	limitWrite limitCategory = "write"
)

// rateLimiter keeps one token bucket per (category, caller) pair. Callers
// are identified by auth.RequestKey: the bearer's client id when a valid
// token is presented, the peer IP otherwise.
type rateLimiter struct {
	sessions *auth.Sessions
	perMin   map[limitCategory]int
	buckets  *xsync.Map[string, *rate.Limiter]
}

func newRateLimiter(sessions *auth.Sessions, loginPerMin, readPerMin, writePerMin int) *rateLimiter {
	return &rateLimiter{
		sessions: sessions,
		perMin: map[limitCategory]int{
			limitLogin: loginPerMin,
			limitRead:  readPerMin,
			limitWrite: writePerMin,
		},
		buckets: xsync.NewMap[string, *rate.Limiter](),
	}
}

func (rl *rateLimiter) limiterFor(category limitCategory, key string) *rate.Limiter {
	perMin := rl.perMin[category]
	bucketKey := string(category) + "|" + key
	lim, _ := rl.buckets.LoadOrCompute(bucketKey, func() (*rate.Limiter, bool) {
		return rate.NewLimiter(rate.Limit(float64(perMin)/60), perMin), false
	})
	return lim
}

// middleware rejects over-budget requests with 429 and a Retry-After hint
// derived from the reservation delay. The reservation is canceled on
// rejection so a blocked request does not consume a token.
func (rl *rateLimiter) middleware(category limitCategory, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lim := rl.limiterFor(category, auth.RequestKey(rl.sessions, r))
		res := lim.Reserve()
		if !res.OK() {
			WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
