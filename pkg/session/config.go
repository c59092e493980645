package session

import "time"

// RetryTimeoutConfig carries the transport-level retry and timeout knobs.
// The resource model passes this through untouched; only the transport
// implementation acts on it, and errors report the values in force.
type RetryTimeoutConfig struct {
	// ConnectTimeout bounds the TCP/TLS connection establishment.
	ConnectTimeout time.Duration
	// ConnectRetries is the number of connection attempts after the first.
	ConnectRetries int
	// OperationTimeout bounds a single request/response round trip.
	OperationTimeout time.Duration
	// StatusTimeout bounds waiting for an asynchronous job to reach a
	// terminal status.
	StatusTimeout time.Duration
}

// DefaultRetryTimeoutConfig returns the defaults applied when a caller
// supplies no configuration.
func DefaultRetryTimeoutConfig() RetryTimeoutConfig {
	return RetryTimeoutConfig{
		ConnectTimeout:   30 * time.Second,
		ConnectRetries:   2,
		OperationTimeout: 3600 * time.Second,
		StatusTimeout:    900 * time.Second,
	}
}
