package errors

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the envelope every failed request answers with.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

// WriteError renders code at its HTTP status. Retryable is derived from
// the code, never from the caller.
func WriteError(w http.ResponseWriter, code ErrorCode, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code.HTTPStatus())
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		Retryable: code.IsRetryable(),
		Details:   details,
	}})
}

func WriteSimpleError(w http.ResponseWriter, code ErrorCode, message string) {
	WriteError(w, code, message, nil)
}

// WriteFieldErrors reports per-field validation failures as
// details.fields, keyed by JSON field name.
func WriteFieldErrors(w http.ResponseWriter, message string, fields map[string]string) {
	if len(fields) == 0 {
		WriteSimpleError(w, ErrCodeInvalidField, message)
		return
	}
	WriteError(w, ErrCodeInvalidField, message, map[string]any{"fields": fields})
}
