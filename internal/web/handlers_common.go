package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// parseIntParam parses an integer query parameter, returning defaultVal when
// it is missing, malformed or below 1.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseFileID reads the {fileId} route parameter. A malformed id cannot name
// a stored dataset, so callers treat it as not found.
func parseFileID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "fileId"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
