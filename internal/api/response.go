// Package api implements the signed HTTP surface: login, watchlist and
// game reads, upstream pass-throughs, and the public health endpoints.
package api

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the error envelope for every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// WriteError writes the error envelope. detail must be safe to show a
// client; raw errors belong in the server log only.
func WriteError(w http.ResponseWriter, status int, detail string) {
	WriteJSON(w, status, ErrorResponse{Detail: detail})
}
