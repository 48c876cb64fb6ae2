// Package response provides the JSON response envelope and maps classified
// errors onto HTTP statuses.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/radif/mediaservice/internal/apperror"
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the standard API response envelope.
type Envelope struct {
	Status  string        `json:"status" example:"success"`
	Message string        `json:"message,omitempty"`
	Data    interface{}   `json:"data,omitempty"`
	Errors  []ErrorDetail `json:"errors,omitempty"`
}

// ErrorDetail is one machine-readable entry of a failed response.
type ErrorDetail struct {
	Kind   string `json:"kind" example:"validation"`
	Reason string `json:"reason,omitempty" example:"type_not_allowed"`
}

// JSON writes a JSON-encoded payload with the given HTTP status code.
func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// OK writes a 200 response with data.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, Envelope{Status: StatusSuccess, Data: data})
}

// Error writes an error envelope with the given status and message.
func Error(w http.ResponseWriter, status int, message string, details ...ErrorDetail) {
	JSON(w, status, Envelope{Status: StatusError, Message: message, Errors: details})
}

// StatusFor returns the HTTP status for a classified error.
func StatusFor(e *apperror.Error) int {
	switch e.Kind {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindAuth:
		if e.Reason == apperror.ReasonForbidden {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case apperror.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Fail renders err. Storage and unknown failures are logged with full detail and
// reach the caller only as a generic message.
func Fail(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	e := apperror.From(err)
	status := StatusFor(e)

	message := e.Message
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(e.Err).
			Str("kind", string(e.Kind)).
			Str("detail", e.Detail).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		message = "internal server error"
	}

	Error(w, status, message, ErrorDetail{Kind: string(e.Kind), Reason: e.Reason})
}
