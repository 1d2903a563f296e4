// Package httputil provides HTTP middleware and response helpers for the
// sandbox API. Responses follow the NestJS conventions the real backend
// uses: bodies are not wrapped, and errors look like
// {"statusCode": 409, "message": "...", "error": "Conflict"}.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bissquit/campus/internal/pkg/validate"
)

// ErrorBody is the error response shape.
type ErrorBody struct {
	StatusCode int         `json:"statusCode"`
	Message    interface{} `json:"message"`
	Error      string      `json:"error"`
}

// JSON writes data as a JSON response.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// Text writes a plain text response.
func Text(w http.ResponseWriter, statusCode int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(text)); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// Error writes an error response carrying a single message.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{
		StatusCode: status,
		Message:    message,
		Error:      http.StatusText(status),
	})
}

// ValidationError writes a 400 response. Field errors are reported as a
// list of messages, anything else as a single message.
func ValidationError(w http.ResponseWriter, err error) {
	var message interface{} = err.Error()

	var verrs validate.Errors
	if errors.As(err, &verrs) {
		message = verrs.Messages()
	}

	JSON(w, http.StatusBadRequest, ErrorBody{
		StatusCode: http.StatusBadRequest,
		Message:    message,
		Error:      http.StatusText(http.StatusBadRequest),
	})
}
