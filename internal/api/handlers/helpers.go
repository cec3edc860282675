// Package handlers holds the HTTP handlers of the chatd API. Each handler
// declares the narrow service interface it consumes so tests can stub it.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	headerContentType = "Content-Type"
	mimeJSON          = "application/json"
)

const (
	defaultPaginationLimit = 25
	maxPaginationLimit     = 100
)

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set(headerContentType, mimeJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		http.Error(w, `{"error":"failed to encode error response"}`, http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response body with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set(headerContentType, mimeJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// parseLimit extracts and caps the limit query parameter.
func parseLimit(r *http.Request) int {
	limit := defaultPaginationLimit
	if lim, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && lim > 0 {
		if lim > maxPaginationLimit {
			lim = maxPaginationLimit
		}
		limit = lim
	}
	return limit
}
