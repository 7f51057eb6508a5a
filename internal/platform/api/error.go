package api

import (
	"net/http"
)

// ErrorResponse is the envelope every non-2xx JSON body uses:
//
//	{"error":{"code":"NOT_FOUND","message":"...","request_id":"..."}}
type ErrorResponse struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message, requestID string, details map[string]any) {
	WriteJSON(w, status, ErrorResponse{Error: APIError{Code: code, Message: message, Details: details, RequestID: requestID}})
}

func BadRequest(w http.ResponseWriter, code, message, requestID string, details map[string]any) {
	WriteError(w, http.StatusBadRequest, code, message, requestID, details)
}

// ValidationFailed reports one rejected input field. Details map the field
// name to the reason so clients can point at the offending input.
func ValidationFailed(w http.ResponseWriter, field, reason, requestID string) {
	var details map[string]any
	if field != "" {
		details = map[string]any{field: reason}
	}
	BadRequest(w, "VALIDATION_FAILED", "invalid "+field+": "+reason, requestID, details)
}

func Unauthorized(w http.ResponseWriter, code, message, requestID string) {
	WriteError(w, http.StatusUnauthorized, code, message, requestID, nil)
}

func Forbidden(w http.ResponseWriter, code, message, requestID string) {
	WriteError(w, http.StatusForbidden, code, message, requestID, nil)
}

func NotFound(w http.ResponseWriter, code, message, requestID string) {
	WriteError(w, http.StatusNotFound, code, message, requestID, nil)
}

// Unprocessable reports a well-formed request the domain refuses, such as a
// reply nested past the depth ceiling.
func Unprocessable(w http.ResponseWriter, code, message, requestID string, details map[string]any) {
	WriteError(w, http.StatusUnprocessableEntity, code, message, requestID, details)
}

// Internal never leaks the cause; callers log it against the request id.
func Internal(w http.ResponseWriter, requestID string) {
	WriteError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error", requestID, nil)
}
