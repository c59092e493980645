// Package resource implements the generic client-side resource model: a
// tree of addressable resources mirroring the remote hierarchy, with one
// Manager per resource kind and parent.
//
// There is no per-kind subtype. A single engine is parameterized by Kind
// metadata (path segment, id/uri/name property names, server-filterable
// names), and kinds are selected through an explicit Registry rather than
// constructed attribute names. Managers operate through an injected
// session.Transport, so the same model runs against the live service and
// the faked backend.
package resource
