package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Accepted appid range for every route that takes one.
const (
	minAppID = 1
	maxAppID = 10_000_000
)

type requestBodyTooLargeError struct {
	Limit int64
}

func (e *requestBodyTooLargeError) Error() string {
	return fmt.Sprintf("request body too large (max %d bytes)", e.Limit)
}

// DecodeBody decodes the JSON request body into v, rejecting unknown fields
// and trailing garbage.
func DecodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("request body is required")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &requestBodyTooLargeError{Limit: maxErr.Limit}
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &requestBodyTooLargeError{Limit: maxErr.Limit}
		}
		return fmt.Errorf("invalid request body: must contain a single JSON value")
	}
	return nil
}

// appIDPathValue parses the {appid} path segment and enforces the accepted
// range.
func appIDPathValue(r *http.Request) (int64, error) {
	raw := r.PathValue("appid")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || !validAppID(id) {
		return 0, fmt.Errorf("appid: must be an integer between %d and %d", minAppID, maxAppID)
	}
	return id, nil
}

func validAppID(id int64) bool {
	return id >= minAppID && id <= maxAppID
}

// intQueryInRange parses an optional integer query parameter, applying the
// default when absent and rejecting values outside [lo, hi].
func intQueryInRange(r *http.Request, key string, def, lo, hi int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: must be an integer", key)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%s: must be between %d and %d", key, lo, hi)
	}
	return n, nil
}

// historyLimit parses the optional limit parameter of the raw-history route.
// Any non-negative value is accepted here; the store clamps oversized limits.
func historyLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("limit: must be a non-negative integer")
	}
	return n, nil
}
