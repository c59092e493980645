// Package notify consumes the push-notification channel of the management
// service through a narrow interface: given a topic and credentials, a
// Receiver yields an unbounded, non-restartable sequence of parsed
// (headers, message) pairs.
//
// The receiver runs as an independent background task owning its own
// connection and never blocks the resource model. The sequence ends only
// on Close or an unrecoverable transport error; closing an already-closed
// receiver fails with ErrAlreadyClosed.
package notify
