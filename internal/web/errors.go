package web

// errors.go turns service errors into responses. The technical error is
// logged with the request id; the client only sees the mapped message,
// as JSON for API requests and as an error page otherwise.

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/stockroom/internal/core"
	"github.com/JonMunkholm/stockroom/internal/web/templates"
	"github.com/go-chi/chi/v5/middleware"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Action  string       `json:"action,omitempty"`
	Code    string       `json:"code"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// FieldError names one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// statusFor picks the HTTP status for a service error.
func statusFor(err error) int {
	var ve core.ValidationError
	var ves core.ValidationErrors
	switch {
	case errors.Is(err, core.ErrInUse):
		return http.StatusConflict
	case errors.As(err, &ves), errors.As(err, &ve),
		errors.Is(err, core.ErrInvalidQuantity),
		errors.Is(err, core.ErrSoftDeleteUnsupported),
		errors.Is(err, core.ErrCreateDisabled):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrInactiveUser), errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrInsufficientStock), errors.Is(err, core.ErrDuplicateUser):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrUnknownTable):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// fail responds with the status statusFor derives from err.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.respondError(w, r, err, statusFor(err))
}

// respondError logs err server-side and renders its user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	level := slog.LevelWarn
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	if wantsJSON(r) {
		respondErrorJSON(w, userMsg, statusCode, fieldErrors(err)...)
		return
	}
	s.respondErrorHTML(w, r, userMsg, statusCode)
}

func fieldErrors(err error) []FieldError {
	var ves core.ValidationErrors
	if errors.As(err, &ves) {
		out := make([]FieldError, len(ves))
		for i, ve := range ves {
			out[i] = FieldError{Field: ve.Field, Value: ve.Value, Message: ve.Message}
		}
		return out
	}
	var ve core.ValidationError
	if errors.As(err, &ve) {
		return []FieldError{{Field: ve.Field, Value: ve.Value, Message: ve.Message}}
	}
	return nil
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int, fields ...FieldError) {
	writeJSONStatus(w, statusCode, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Fields:  fields,
	})
}

// respondErrorHTML renders the error inside the application shell.
func (s *Server) respondErrorHTML(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	p := s.page(r, "Error", "")
	s.renderStatus(w, r, statusCode, templates.ErrorPage(p, msg))
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return isJSONBody(r)
}

// isJSONBody reports whether the request carries a JSON payload.
func isJSONBody(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}
