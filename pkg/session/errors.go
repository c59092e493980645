package session

import (
	"fmt"
)

// HTTPError is the uniform failure for any request the server answered with
// an error status. Reason is the server's machine-readable reason code from
// the error body, 0 when the body carried none.
type HTTPError struct {
	Method  string
	Path    string
	Status  int
	Reason  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d, reason %d: %s", e.Method, e.Path, e.Status, e.Reason, e.Message)
}

// ConnectionError is returned when the request never produced an HTTP
// response: connect timeouts, resolution failures, exhausted retries.
// The retry/timeout configuration in force is attached for diagnostics.
type ConnectionError struct {
	Op     string
	Err    error
	Config RetryTimeoutConfig
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed during %s (connect timeout %s, %d retries): %v",
		e.Op, e.Config.ConnectTimeout, e.Config.ConnectRetries, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ClientAuthError indicates a credential problem detected before any
// request was sent (e.g. missing userid or password).
type ClientAuthError struct {
	Message string
}

func (e *ClientAuthError) Error() string {
	return "authentication not possible: " + e.Message
}

// ServerAuthError indicates the server rejected the presented credentials.
type ServerAuthError struct {
	Message string
	HTTP    *HTTPError
}

func (e *ServerAuthError) Error() string {
	return "authentication rejected by server: " + e.Message
}

func (e *ServerAuthError) Unwrap() error {
	if e.HTTP == nil {
		return nil
	}
	return e.HTTP
}
