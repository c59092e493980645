package session

import (
	"context"
	"encoding/json"
)

// Transport is the narrow collaborator the resource model talks through.
// Implementations fail uniformly with *HTTPError for server-answered
// errors and *ConnectionError when no response was produced.
type Transport interface {
	// Get fetches the JSON representation at path (which may carry a
	// query string).
	Get(ctx context.Context, path string) (json.RawMessage, error)

	// Post sends body as JSON to path and returns the response body,
	// which is empty for operations without a result.
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)

	// Delete removes the object at path.
	Delete(ctx context.Context, path string) error
}

// BulkRequest is one element of an ordered bulk-get batch.
type BulkRequest struct {
	// ID correlates the request with its result; opaque to the server.
	ID string
	// Path is the URI to fetch.
	Path string
}

// BulkResult is the per-item outcome of a bulk get. Order matches the
// request batch. A non-nil Err carries the item's failure; Body is only
// valid when Err is nil.
type BulkResult struct {
	ID     string
	Status int
	Body   json.RawMessage
	Err    *HTTPError
}

// BulkGetter is the optional aggregation capability of a Transport.
// Callers type-assert for it and fall back to sequential Gets when the
// transport does not provide it.
type BulkGetter interface {
	BulkGet(ctx context.Context, reqs []BulkRequest) ([]BulkResult, error)
}
