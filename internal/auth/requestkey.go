package auth

import (
	"net"
	"net/http"
	"strings"
)

// BearerToken extracts the bearer token from the Authorization header, or ""
// when the header is absent or not a bearer scheme.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}

// RequestKey derives the rate-limit bucket key for a request: the client id
// from a valid bearer token when one is presented, else the peer address.
// Token decoding goes through the same Verify rules (leeway included) as the
// endpoint checks, so a token the endpoint accepts is never bucketed by IP.
func RequestKey(s *Sessions, r *http.Request) string {
	if token := BearerToken(r); token != "" {
		if clientID, err := s.Verify(token); err == nil {
			return "client:" + clientID
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
