package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// RequestError is returned for any failed API call: a non-2xx response or
// a transport failure (StatusCode 0, Err set).
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string // server-supplied message, may be empty
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Message != "":
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	case e.StatusCode > 0 && e.Err != nil:
		return fmt.Sprintf("%s %s: status %d: %v", e.Method, e.Path, e.StatusCode, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: request failed", e.Method, e.Path)
}

func (e *RequestError) Unwrap() error { return e.Err }

// IsNotFound reports whether the server answered 404.
func (e *RequestError) IsNotFound() bool { return e.StatusCode == http.StatusNotFound }

// IsConflict reports whether the server answered 409.
func (e *RequestError) IsConflict() bool { return e.StatusCode == http.StatusConflict }

// IsUnauthorized reports whether the server rejected the credentials.
func (e *RequestError) IsUnauthorized() bool { return e.StatusCode == http.StatusUnauthorized }

// RemoteMessage returns the server message carried by err, if any.
func RemoteMessage(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Message
	}
	return ""
}

// MessageOr returns the server message carried by err, or fallback.
func MessageOr(err error, fallback string) string {
	if msg := RemoteMessage(err); msg != "" {
		return msg
	}
	return fallback
}

// extractMessage understands {"message": "..."}, {"message": ["a", "b"]}
// and {"error": {"message": "..."}} bodies.
func extractMessage(body []byte) string {
	var envelope struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}

	if msg := decodeMessage(envelope.Message); msg != "" {
		return msg
	}

	var nested struct {
		Message json.RawMessage `json:"message"`
	}
	if len(envelope.Error) > 0 && json.Unmarshal(envelope.Error, &nested) == nil {
		return decodeMessage(nested.Message)
	}
	return ""
}

func decodeMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return ""
}
