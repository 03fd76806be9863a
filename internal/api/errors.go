package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/servicedesk-core/internal/auth"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest          = "bad_request"
	ErrCodeNotFound            = "not_found"
	ErrCodeUnauthorized        = "unauthorised"
	ErrCodeForbidden           = "forbidden"
	ErrCodeInternal            = "internal_error"
	ErrCodeValidation          = "validation_error"
	ErrCodeMissingField        = "missing_field"
	ErrCodeDuplicateIdentifier = "duplicate_identifier"
	ErrCodeInvalidCredentials  = "invalid_credentials"
	ErrCodeInvalidRefresh      = "invalid_refresh_token"
)

// Fixed client-facing messages. Token failures never say which check failed.
const (
	msgUnauthorised       = "unauthorised"
	msgInvalidCredentials = "invalid credentials"
	msgInvalidRefresh     = "invalid refresh token"
	msgInternal           = "internal server error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes the one 401 body the API ever returns for a
// missing or rejected access token.
func writeUnauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, msgUnauthorised)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, auth.ErrForbidden.Error())
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, msgInternal)
}

// registerError maps a Register failure to a response.
// It reports false for errors that must be logged as server faults.
func registerError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, auth.ErrMissingField):
		writeError(w, http.StatusBadRequest, ErrCodeMissingField, "email and password are required")
	case errors.Is(err, auth.ErrDuplicateIdentifier):
		writeError(w, http.StatusBadRequest, ErrCodeDuplicateIdentifier, "user already exists")
	case errors.Is(err, auth.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "email is not a valid address")
	case errors.Is(err, auth.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "role must be resident or manager")
	default:
		writeInternalError(w)
		return false
	}
	return true
}

// loginError maps a Login failure to a response.
func loginError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, auth.ErrMissingField):
		writeError(w, http.StatusBadRequest, ErrCodeMissingField, "email and password are required")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, msgInvalidCredentials)
	default:
		writeInternalError(w)
		return false
	}
	return true
}

// refreshError maps a Refresh failure to a response. Every token problem
// collapses into the same 401.
func refreshError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, auth.ErrMissingField):
		writeError(w, http.StatusBadRequest, ErrCodeMissingField, "refreshToken is required")
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		writeError(w, http.StatusUnauthorized, ErrCodeInvalidRefresh, msgInvalidRefresh)
	default:
		writeInternalError(w)
		return false
	}
	return true
}
