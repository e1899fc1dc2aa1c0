// Package respond writes the JSON bodies shared by the middleware and the
// endpoint handlers.
package respond

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BlackMission/gatekeeper/internal/domain"
)

// Now is the clock used for error timestamps.
var Now = time.Now

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error         string `json:"error"`
	Code          string `json:"code"`
	Timestamp     string `json:"timestamp"`
	AllowedDomain string `json:"allowedDomain,omitempty"`
	UserDomain    string `json:"userDomain,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already sent; a failed write can only be logged.
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("writing JSON response failed", zap.Int("status", status), zap.Error(err))
	}
}

// Error writes an error body. Domain metadata from a typed error is copied
// into the body.
func Error(w http.ResponseWriter, status int, code domain.Code, message string, err error) {
	body := ErrorBody{
		Error:     message,
		Code:      string(code),
		Timestamp: Now().UTC().Format(time.RFC3339),
	}
	if typed, ok := domain.AsError(err); ok && typed.Metadata != nil {
		body.AllowedDomain = typed.Metadata[domain.MetaAllowedDomain]
		body.UserDomain = typed.Metadata[domain.MetaUserDomain]
	}
	JSON(w, status, body)
}

// DomainError writes a typed error with its own status and a user-safe message.
// Untyped errors become a 500 without exposing their text.
func DomainError(w http.ResponseWriter, err error) {
	typed, ok := domain.AsError(err)
	if !ok {
		Error(w, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
		return
	}
	Error(w, typed.Status(), typed.Code, domain.UserMessage(err), err)
}
