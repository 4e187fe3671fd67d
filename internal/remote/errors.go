package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// RemoteError is any failure talking to the backend. StatusCode is zero when
// no HTTP response was received.
type RemoteError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NotFound reports whether the backend answered 404.
func (e *RemoteError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// AsRemoteError extracts a *RemoteError from err.
func AsRemoteError(err error) (*RemoteError, bool) {
	var rerr *RemoteError
	if errors.As(err, &rerr) {
		return rerr, true
	}
	return nil, false
}

// statusFallback is the message used when the body carries none.
func statusFallback(code int) string {
	if text := http.StatusText(code); text != "" {
		return fmt.Sprintf("status %d %s", code, text)
	}
	return fmt.Sprintf("status %d", code)
}

// newHTTPError builds the error for a non-2xx response, preferring the
// body's message field.
func newHTTPError(code int, body []byte) *RemoteError {
	var payload struct {
		Message string `json:"message"`
	}
	msg := statusFallback(code)
	if err := json.Unmarshal(body, &payload); err == nil {
		if m := strings.TrimSpace(payload.Message); m != "" {
			msg = m
		}
	}
	return &RemoteError{StatusCode: code, Message: msg}
}

func newTransportError(err error) *RemoteError {
	return &RemoteError{Message: "network error: " + err.Error(), Err: err}
}
