package clients

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConnection is returned when the game service cannot be reached or fails server-side.
	ErrConnection = errors.New("connection error")

	// ErrNotFound is returned for an unknown game id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidAction is returned when the service rejects the requested transition.
	ErrInvalidAction = errors.New("invalid action")
)

// APIError describes a non-2xx response from the game service.
type APIError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Detail     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("API returned status code: %d (%s %s): %s", e.StatusCode, e.Method, e.Endpoint, e.Detail)
	}
	return fmt.Sprintf("API returned status code: %d (%s %s), response: %s", e.StatusCode, e.Method, e.Endpoint, e.Body)
}

// Unwrap maps the status code onto the error taxonomy.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return ErrInvalidAction
	default:
		return ErrConnection
	}
}

func newAPIError(method, endpoint string, status int, body []byte) *APIError {
	return &APIError{
		Method:     method,
		Endpoint:   endpoint,
		StatusCode: status,
		Detail:     extractDetail(body),
		Body:       string(body),
	}
}

// extractDetail pulls a human readable reason out of the usual error bodies:
// {"detail": "..."}, {"message": "..."} or {"error": "..."}. Validation errors
// with a list detail are flattened to their first msg.
func extractDetail(body []byte) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"detail", "message", "error"} {
		switch v := payload[key].(type) {
		case string:
			return v
		case []interface{}:
			if len(v) == 0 {
				continue
			}
			if first, ok := v[0].(map[string]interface{}); ok {
				if msg, ok := first["msg"].(string); ok {
					return msg
				}
			}
		}
	}
	return ""
}
