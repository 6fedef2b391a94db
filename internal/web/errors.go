package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err), optionally with an explicit status
//  3. Error is mapped via core.MapError to a coded user message
//  4. Technical error + context is logged with request ID for correlation
//  5. The user message is written as JSON

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/statements/internal/core"
	"github.com/JonMunkholm/statements/internal/extract"
	"github.com/JonMunkholm/statements/internal/fetch"
	"github.com/JonMunkholm/statements/internal/logging"
	"github.com/JonMunkholm/statements/internal/schemas"
	"github.com/JonMunkholm/statements/internal/store"
	"github.com/JonMunkholm/statements/internal/tabular"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// badRequest marks an error as the client's fault.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

// statusFor picks the HTTP status for an error.
func statusFor(err error) int {
	var (
		parseErr  *tabular.ParseError
		statusErr *fetch.StatusError
		maxErr    *http.MaxBytesError
		bad       badRequest
	)

	switch {
	case errors.As(err, &maxErr), errors.Is(err, fetch.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &parseErr),
		errors.Is(err, core.ErrInvalidDocument),
		errors.Is(err, schemas.ErrInvalid):
		return http.StatusUnprocessableEntity
	case errors.As(err, &bad),
		errors.Is(err, fetch.ErrLocalDisabled),
		errors.Is(err, fetch.ErrUnsupportedScheme):
		return http.StatusBadRequest
	case errors.As(err, &statusErr):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrTooManyRuns),
		errors.Is(err, core.ErrNoExtractor),
		errors.Is(err, extract.ErrToolNotFound):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrNotConfigured), errors.Is(err, core.ErrNoFetcher):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the technical error server-side and writes a coded
// user message. Status 0 means statusFor(err).
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	}
	if status >= 500 {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if status == http.StatusServiceUnavailable && errors.Is(err, core.ErrTooManyRuns) {
		w.Header().Set("Retry-After", strconv.Itoa(int(s.cfg.Runs.MaxWaitTime.Seconds())+1))
	}
	respondErrorJSON(w, userMsg, status)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
