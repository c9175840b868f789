package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

func writeBadRequest(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusBadRequest, detail)
}

func writeNotFound(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusNotFound, detail)
}

func writePayloadTooLarge(w http.ResponseWriter, limit int64) {
	detail := "request body too large"
	if limit > 0 {
		detail = "request body too large (max " + strconv.FormatInt(limit, 10) + " bytes)"
	}
	WriteError(w, http.StatusRequestEntityTooLarge, detail)
}

// writeDecodeError maps DecodeBody failures: an oversized body keeps its 413,
// everything else is a 400 with the decoder's message.
func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *requestBodyTooLargeError
	if errors.As(err, &tooLarge) {
		writePayloadTooLarge(w, tooLarge.Limit)
		return
	}
	writeBadRequest(w, err.Error())
}

// writeStorageUnavailable answers 503 for persistence failures. The real
// error stays in the server log.
func writeStorageUnavailable(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("[api] %s %s: storage: %v", r.Method, r.URL.Path, err)
	WriteError(w, http.StatusServiceUnavailable, "storage unavailable")
}

// writeUpstreamUnavailable answers 503 for provider failures.
func writeUpstreamUnavailable(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("[api] %s %s: upstream: %v", r.Method, r.URL.Path, err)
	WriteError(w, http.StatusServiceUnavailable, "upstream service unavailable")
}

// writeInternalError answers a generic 500 carrying an opaque correlation id;
// the id and the wrapped error are logged together so the line can be found
// from a client report.
func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	id := uuid.NewString()
	log.Printf("[api] %s %s: internal error (id: %s): %v", r.Method, r.URL.Path, id, err)
	WriteError(w, http.StatusInternalServerError, "internal server error (id: "+id+")")
}
