// Package fake implements the deterministic in-memory stand-in for the
// remote management service.
//
// An Engine holds the authoritative object tree: every node has a kind, a
// stable auto-assigned identifier, a URI derived from its parent, and a
// property bag. Nodes strongly own their children (delete cascades); a
// node refers to its parent only by URI, never by a strong cycle.
//
// The engine is exposed in two ways: directly, for building fixtures, and
// through Transport, which adapts it to session.Transport so the resource
// model runs unchanged against it with the same addressing, filtering,
// property-view, and error semantics as the live service. The engine is a
// plain single-threaded object graph; concurrent use needs external
// synchronization.
package fake
