package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/maksimkurb/netstate/src/internal/errors"
)

// ErrorCode represents standard API error codes. Engine failures use the
// error kind as their code.
type ErrorCode string

const (
	// ErrCodeInvalidRequest indicates malformed or invalid request data.
	ErrCodeInvalidRequest ErrorCode = "InvalidRequest"

	// ErrCodeForbidden indicates the client is not allowed to use the API.
	ErrCodeForbidden ErrorCode = "Forbidden"

	// ErrCodeInternalError indicates an internal server error.
	ErrCodeInternalError ErrorCode = "Internal"
)

// APIError represents a structured API error response.
type APIError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps an APIError for JSON responses.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// NewAPIError creates a new APIError with the given code and message.
func NewAPIError(code ErrorCode, message string) APIError {
	return APIError{
		Code:    code,
		Message: message,
		Details: nil,
	}
}

// WithDetails adds details to an APIError.
func (e APIError) WithDetails(details map[string]interface{}) APIError {
	e.Details = details
	return e
}

// WriteError writes an error response to the HTTP response writer.
func WriteError(w http.ResponseWriter, statusCode int, err APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: err})
}

// WriteInvalidRequest writes a 400 Bad Request error.
func WriteInvalidRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, NewAPIError(ErrCodeInvalidRequest, message))
}

// WriteForbidden writes a 403 Forbidden error.
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, NewAPIError(ErrCodeForbidden, message))
}

// WriteInternalError writes a 500 Internal Server Error.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, NewAPIError(ErrCodeInternalError, message))
}

// WriteEngineError writes an engine failure with the call's log attached.
func WriteEngineError(w http.ResponseWriter, err error, entries []string) {
	kind := errors.KindOf(err)
	msg := err.Error()
	var e *errors.Error
	if stderrors.As(err, &e) {
		msg = e.Detail()
	}
	if entries == nil {
		entries = []string{}
	}
	apiErr := NewAPIError(ErrorCode(kind), msg).WithDetails(map[string]interface{}{"log": entries})
	WriteError(w, statusForKind(kind), apiErr)
}

// statusForKind maps an engine error kind to an HTTP status code.
func statusForKind(kind errors.Kind) int {
	switch kind {
	case errors.KindInvalidArgument:
		return http.StatusBadRequest
	case errors.KindPermissionDenied:
		return http.StatusForbidden
	case errors.KindVerificationFailure:
		return http.StatusConflict
	case errors.KindTimeout:
		return http.StatusGatewayTimeout
	case errors.KindNotSupported:
		return http.StatusNotImplemented
	case errors.KindKernelRejection:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
