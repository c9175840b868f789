package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/steampulse/steampulse/internal/auth"
	"github.com/steampulse/steampulse/internal/metrics"
)

// gate runs the per-request authentication layers: the signed-request check
// on every gated route and the bearer check on /api/* routes.
type gate struct {
	verifier     *auth.Verifier
	sessions     *auth.Sessions
	maxBodyBytes int64
	metrics      *metrics.Set
}

// signed enforces the body-size cap, verifies the request signature against
// the exact raw body bytes, and hands the handler an identical body.
// Oversized bodies fail with 413 before any hashing happens.
func (g *gate) signed(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.maxBodyBytes > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, g.maxBodyBytes)
		}
		var body []byte
		if r.Body != nil {
			var err error
			body, err = io.ReadAll(r.Body)
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					writePayloadTooLarge(w, maxErr.Limit)
					return
				}
				writeBadRequest(w, "failed to read request body")
				return
			}
		}

		if verr := g.verifier.Verify(auth.SignedRequestFrom(r, body)); verr != nil {
			g.metrics.ObserveAuthFailure(verr.Kind)
			WriteError(w, verr.Status, verr.Reason)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// bearer requires a valid session token whose client id matches the
// signature's X-Client-Id, so one client's token cannot authorize another
// client's signature.
func (g *gate) bearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r)
		if token == "" {
			WriteError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		clientID, err := g.sessions.Verify(token)
		if err != nil {
			WriteError(w, http.StatusUnauthorized, "invalid session token")
			return
		}
		if clientID != r.Header.Get(auth.HeaderClientID) {
			WriteError(w, http.StatusForbidden, "session token does not match signing client")
			return
		}
		next.ServeHTTP(w, r)
	})
}
