package web

// errors.go maps service errors to HTTP responses.
//
// Client errors carry the message the client can act on: the parser's
// validation errors, the transport rejection reason, or "CSV file not found".
// Server errors carry "Error <action>" plus the mapped user message and
// support code from core.MapError. The technical error is only logged.

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/csvstore/internal/core"
	"github.com/JonMunkholm/csvstore/internal/logging"
)

const msgFileNotFound = "CSV file not found"

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error   string   `json:"error,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	Details string   `json:"details,omitempty"`
	Action  string   `json:"action,omitempty"`
	Code    string   `json:"code,omitempty"`
}

// errorResponse picks the status and body for err. action describes the
// failed operation, e.g. "retrieving CSV files".
func errorResponse(err error, action string) (int, ErrorResponse) {
	var ve *core.ValidationError
	var te *core.TransportError

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ErrorResponse{Errors: ve.Errors}
	case errors.As(err, &te):
		return http.StatusBadRequest, ErrorResponse{Error: te.Reason}
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: msgFileNotFound}
	case errors.Is(err, core.ErrFileTooLarge):
		msg := core.MapError(err)
		return http.StatusBadRequest, ErrorResponse{Error: msg.Message, Action: msg.Action, Code: msg.Code}
	case errors.Is(err, core.ErrTooManyUploads):
		msg := core.MapError(err)
		return http.StatusServiceUnavailable, ErrorResponse{Error: msg.Message, Action: msg.Action, Code: msg.Code}
	}

	msg := core.MapError(err)
	return http.StatusInternalServerError, ErrorResponse{
		Error:   "Error " + action,
		Details: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
}

// respondError logs err with the request context and writes the mapped
// response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, action string) {
	status, body := errorResponse(err, action)

	log := logging.WithFields(r.Context(),
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
	)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.Error("request failed", "code", body.Code)
	} else {
		log.Warn("request rejected")
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", s.retryAfter())
	}
	writeJSON(w, status, body)
}
