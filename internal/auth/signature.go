package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Signature header names. Lookup through http.Header is case-insensitive.
const (
	HeaderClientID  = "X-Client-Id"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
	HeaderSignature = "X-Signature"
)

// timestampWindow is the maximum accepted distance between the request
// timestamp and server time, in either direction.
const timestampWindow = 60 * time.Second

// minNonceBytes is the entropy floor for nonces after decoding.
const minNonceBytes = 16

// VerifyError is a signed-request rejection. Reason is safe to echo to the
// client; Status is the HTTP status the rejection maps to; Kind is a stable
// snake_case identifier for logs and counters.
type VerifyError struct {
	Status int
	Kind   string
	Reason string
}

func (e *VerifyError) Error() string {
	return e.Reason
}

var (
	errMissingHeaders = &VerifyError{Status: http.StatusUnauthorized, Kind: "missing_headers", Reason: "missing signature headers"}
	errUnknownClient  = &VerifyError{Status: http.StatusForbidden, Kind: "unknown_client", Reason: "unknown client"}
	errBadTimestamp   = &VerifyError{Status: http.StatusUnauthorized, Kind: "bad_timestamp", Reason: "invalid timestamp"}
	errStaleRequest   = &VerifyError{Status: http.StatusUnauthorized, Kind: "stale_timestamp", Reason: "request timestamp outside allowed window"}
	errBadNonce       = &VerifyError{Status: http.StatusUnauthorized, Kind: "bad_nonce", Reason: "invalid nonce"}
	errReplayedNonce  = &VerifyError{Status: http.StatusForbidden, Kind: "replayed_nonce", Reason: "nonce already used"}
	errBadSignature   = &VerifyError{Status: http.StatusUnauthorized, Kind: "bad_signature", Reason: "invalid signature"}
)

// SignedRequest carries the inputs of one signed-request verification.
type SignedRequest struct {
	Method    string
	Path      string
	Body      []byte
	ClientID  string
	Timestamp string
	Nonce     string
	Signature string
}

// SignedRequestFrom extracts the verification inputs from an HTTP request.
// body must be the exact raw request-body bytes.
func SignedRequestFrom(r *http.Request, body []byte) SignedRequest {
	return SignedRequest{
		Method:    r.Method,
		Path:      r.URL.Path,
		Body:      body,
		ClientID:  r.Header.Get(HeaderClientID),
		Timestamp: r.Header.Get(HeaderTimestamp),
		Nonce:     r.Header.Get(HeaderNonce),
		Signature: r.Header.Get(HeaderSignature),
	}
}

// CanonicalMessage builds the exact string that is signed:
//
//	METHOD|PATH|HEX(SHA256(body))|TIMESTAMP|NONCE
//
// PATH is the raw request path without the query string; an absent body
// hashes as the empty byte string.
func CanonicalMessage(method, path string, body []byte, timestamp, nonce string) string {
	sum := sha256.Sum256(body)
	return strings.ToUpper(method) + "|" + path + "|" + hex.EncodeToString(sum[:]) + "|" + timestamp + "|" + nonce
}

// Sign computes BASE64(HMAC-SHA256(secret, canonical message)).
func Sign(secret, method, path string, body []byte, timestamp, nonce string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(CanonicalMessage(method, path, body, timestamp, nonce)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verifier runs the signed-request check against the client registry and
// the nonce ledger.
type Verifier struct {
	registry *Registry
	nonces   *NonceLedger
	now      func() time.Time
}

// NewVerifier wires the verifier to its registry and ledger.
func NewVerifier(registry *Registry, nonces *NonceLedger) *Verifier {
	return &Verifier{registry: registry, nonces: nonces, now: time.Now}
}

// Verify checks a signed request. The checks run in a fixed order: header
// presence, client lookup, timestamp gate, nonce consumption, signature
// compare. The nonce is consumed before the signature is checked, so a
// fresh nonce on a badly signed request is still burned; stale or malformed
// requests never touch the ledger.
func (v *Verifier) Verify(r SignedRequest) *VerifyError {
	if r.ClientID == "" || r.Timestamp == "" || r.Nonce == "" || r.Signature == "" {
		return errMissingHeaders
	}

	secret, ok := v.registry.Secret(r.ClientID)
	if !ok {
		return errUnknownClient
	}

	ts, err := strconv.ParseInt(r.Timestamp, 10, 64)
	if err != nil {
		return errBadTimestamp
	}
	skew := v.now().Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(timestampWindow.Seconds()) {
		return errStaleRequest
	}

	if !validNonce(r.Nonce) {
		return errBadNonce
	}
	if !v.nonces.Consume(r.Nonce) {
		return errReplayedNonce
	}

	supplied, err := decodeSignature(r.Signature)
	if err != nil {
		return errBadSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(CanonicalMessage(r.Method, r.Path, r.Body, r.Timestamp, r.Nonce)))
	if !hmac.Equal(supplied, mac.Sum(nil)) {
		return errBadSignature
	}
	return nil
}

// decodeSignature accepts standard base64 and, for clients that url-encode,
// the url-safe alphabet.
func decodeSignature(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

// validNonce accepts hex or url-safe base64 (padded or not) carrying at
// least minNonceBytes of entropy. A string that is decodable under several
// encodings passes if any decoding meets the floor.
func validNonce(nonce string) bool {
	if b, err := hex.DecodeString(nonce); err == nil && len(b) >= minNonceBytes {
		return true
	}
	if b, err := base64.RawURLEncoding.DecodeString(nonce); err == nil && len(b) >= minNonceBytes {
		return true
	}
	if b, err := base64.URLEncoding.DecodeString(nonce); err == nil && len(b) >= minNonceBytes {
		return true
	}
	return false
}
