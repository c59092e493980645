// Package session provides the transport collaborator used by the resource
// model: a narrow Get/Post/Delete interface over JSON bodies, a live HTTP
// implementation with logon/logoff, and the shared error taxonomy
// (connection, authentication, protocol).
//
// Retry, backoff, TLS, and pooling belong to this layer or below it, never
// to the resource model. The RetryTimeoutConfig is carried through to
// errors for diagnostics but is not interpreted by callers.
package session
