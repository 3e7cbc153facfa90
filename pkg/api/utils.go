package api

import (
	stdliberrors "errors"
	"net/http"
	"time"

	"encoding/json"

	apperrors "github.com/Ganeshg1313/askandsay-server/pkg/errors"
)

// respondJSON sends a JSON response with appropriate headers.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// respondError sends a structured JSON error response. Application errors
// carry their own code and user-facing message; everything else falls
// back to the raw error text.
func respondError(w http.ResponseWriter, status int, err error) {
	response := struct {
		Error     string `json:"error"`
		Status    int    `json:"status"`
		Code      string `json:"code,omitempty"`
		Retryable bool   `json:"retryable,omitempty"`
		Timestamp string `json:"timestamp"`
	}{
		Status:    status,
		Error:     http.StatusText(status),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	var appErr *apperrors.Error
	if stdliberrors.As(err, &appErr) {
		response.Code = string(appErr.Code)
		response.Retryable = appErr.Retryable
		if appErr.UserMessage != "" {
			response.Error = appErr.UserMessage
		} else if appErr.Message != "" {
			response.Error = appErr.Message
		}
	} else if err != nil {
		response.Error = err.Error()
	}

	respondJSON(w, status, response)
}

// statusForError maps application error codes to HTTP statuses.
func statusForError(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeInvalidProject:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeNotFound, apperrors.ErrCodeProjectNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict:
		return http.StatusConflict
	case apperrors.ErrCodeAITimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeAIError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError picks the status from the error code.
func respondServiceError(w http.ResponseWriter, err error) {
	respondError(w, statusForError(err), err)
}
