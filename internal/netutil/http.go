// Package netutil provides the shared HTTP plumbing for upstream adapters:
// an HTTP/2-enabled client, typed request errors, and bounded retry.
package netutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http2"
)

// DefaultTimeout is the per-request ceiling applied when the caller's
// context carries no deadline.
const DefaultTimeout = 10 * time.Second

// HTTPStatusError indicates the server responded, but with an unexpected
// HTTP status code. This is a non-network failure.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("netutil: unexpected status %d from %s", e.StatusCode, e.URL)
}

// NonRetryableError indicates request setup failed before any transport
// attempt was made (for example, malformed URL).
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("netutil: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NewClient builds an HTTP client with explicit dial/TLS timeouts and
// HTTP/2 negotiation over TLS.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		// Falls back to HTTP/1.1; only happens when TLSNextProto was preset.
		log.Printf("[netutil] http2 configure failed, using HTTP/1.1: %v", err)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// GetJSON issues a GET and decodes a JSON response body into out.
// Non-200 statuses return an *HTTPStatusError.
func GetJSON(ctx context.Context, client *http.Client, rawURL string, out any) error {
	return doJSON(ctx, client, http.MethodGet, rawURL, "", "", nil, out)
}

// GetJSONBearer is GetJSON with an Authorization: Bearer header.
func GetJSONBearer(ctx context.Context, client *http.Client, rawURL, token string, out any) error {
	return doJSON(ctx, client, http.MethodGet, rawURL, token, "", nil, out)
}

// PostFormJSON issues a form-encoded POST and decodes a JSON response body
// into out.
func PostFormJSON(ctx context.Context, client *http.Client, rawURL string, form url.Values, out any) error {
	body := form.Encode()
	return doJSON(ctx, client, http.MethodPost, rawURL, "", "application/x-www-form-urlencoded", strings.NewReader(body), out)
}

func doJSON(ctx context.Context, client *http.Client, method, rawURL, bearer, contentType string, body io.Reader, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return &NonRetryableError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("netutil: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &HTTPStatusError{StatusCode: resp.StatusCode, URL: redactQuery(rawURL)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("netutil: decode %s: %w", redactQuery(rawURL), err)
	}
	return nil
}

// redactQuery strips the query string so keys never end up in errors or logs.
func redactQuery(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
