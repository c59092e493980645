package fake

import (
	"slices"

	"github.com/getconsole/consolekit/pkg/props"
	"github.com/getconsole/consolekit/pkg/resource"
)

// Node is the authoritative server-side twin of a client Resource. It
// strongly owns its children; the parent link is a plain URI, resolved
// through the engine index when needed.
type Node struct {
	kind      resource.Kind
	oid       string
	uri       string
	parentURI string
	props     *props.Map
	children  map[string][]*Node
}

// Kind returns the node's kind metadata.
func (n *Node) Kind() resource.Kind {
	return n.kind
}

// OID returns the bare identifier, unique among same-kind siblings.
func (n *Node) OID() string {
	return n.oid
}

// URI returns the derived URI: parent URI + kind segment + OID.
func (n *Node) URI() string {
	return n.uri
}

// ParentURI returns the owning parent's URI.
func (n *Node) ParentURI() string {
	return n.parentURI
}

// Props returns the full property bag. Callers must not mutate it
// directly; use Engine.Update.
func (n *Node) Props() *props.Map {
	return n.props
}

// PartialProps returns the abbreviated listing view: identity, name, and
// the server-filterable properties, in the bag's own order.
func (n *Node) PartialProps() *props.Map {
	keep := []string{n.kind.URIProp, n.kind.NameProp}
	keep = append(keep, n.kind.QueryProps...)
	out := props.New()
	n.props.Each(func(k string, v any) bool {
		if slices.Contains(keep, k) {
			out.Set(k, v)
		}
		return true
	})
	return out
}

// ChildNodes returns the child collection for a kind tag, in insertion
// order. The slice is a copy.
func (n *Node) ChildNodes(tag string) []*Node {
	nodes := n.children[tag]
	out := make([]*Node, len(nodes))
	copy(out, nodes)
	return out
}

// walk visits n and every descendant, depth-first.
func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, nodes := range n.children {
		for _, child := range nodes {
			child.walk(fn)
		}
	}
}
