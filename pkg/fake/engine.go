package fake

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/getconsole/consolekit/internal/id"
	"github.com/getconsole/consolekit/pkg/filter"
	"github.com/getconsole/consolekit/pkg/props"
	"github.com/getconsole/consolekit/pkg/resource"
	"github.com/getconsole/consolekit/pkg/session"
)

// ConsoleURI is the fixed URI of the root object.
const ConsoleURI = "/api/console"

// consoleKind is the synthetic kind of the root node. The root is not
// listable; it only anchors the top-level collections.
func consoleKind(reg *resource.Registry) resource.Kind {
	return resource.Kind{
		Name:       "console",
		Collection: "console",
		Segment:    "console",
		OIDProp:    "object-id",
		URIProp:    "object-uri",
		NameProp:   "name",
		Children:   reg.TopLevel(),
	}
}

// Engine is the in-memory object graph standing in for the remote service.
type Engine struct {
	registry   *resource.Registry
	root       *Node
	index      map[string]*Node
	tombstones map[string]struct{}
	obs        Observer
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRegistry replaces the default kind registry.
func WithRegistry(reg *resource.Registry) EngineOption {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithObserver installs an operation observer.
func WithObserver(obs Observer) EngineOption {
	return func(e *Engine) {
		e.obs = obs
	}
}

// NewEngine creates an engine holding only the root console object.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		index:      make(map[string]*Node),
		tombstones: make(map[string]struct{}),
		obs:        NoopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = resource.DefaultRegistry()
	}

	kind := consoleKind(e.registry)
	rootProps := props.New()
	rootProps.Set("class", kind.Name)
	rootProps.Set(kind.URIProp, ConsoleURI)
	rootProps.Set(kind.NameProp, "console")
	e.root = &Node{
		kind:     kind,
		uri:      ConsoleURI,
		props:    rootProps,
		children: make(map[string][]*Node),
	}
	e.index[ConsoleURI] = e.root
	return e
}

// Registry returns the kind registry in use.
func (e *Engine) Registry() *resource.Registry {
	return e.registry
}

// Root returns the root console node.
func (e *Engine) Root() *Node {
	return e.root
}

// Add creates a node of the given kind tag under parent (nil means the
// root). Required properties are validated; the identifier is taken from
// the properties when supplied, auto-generated otherwise; the URI is
// derived from the parent URI, the kind's path segment, and the id.
func (e *Engine) Add(parent *Node, tag string, p *props.Map) (*Node, error) {
	if parent == nil {
		parent = e.root
	}
	kind, ok := e.registry.Kind(tag)
	if !ok {
		return nil, &ValidationError{Kind: tag, Message: "unknown kind"}
	}
	if !slices.Contains(parent.kind.Children, tag) {
		return nil, &ValidationError{Kind: tag, Message: fmt.Sprintf("not a child collection of %s", parent.kind.Name)}
	}

	if p == nil {
		p = props.New()
	}
	for _, required := range kind.RequiredProps {
		if !p.Has(required) {
			return nil, &ValidationError{Kind: tag, Property: required, Message: "required property missing"}
		}
	}

	oid := p.GetString(kind.OIDProp)
	if oid == "" {
		oid = id.OID()
	}
	for _, sibling := range parent.children[tag] {
		if sibling.oid == oid {
			return nil, &ConflictError{Kind: tag, OID: oid}
		}
	}

	base := parent.uri + "/" + kind.Segment
	if parent == e.root {
		base = "/api/" + kind.Segment
	}
	uri := base + "/" + oid

	bag := props.New()
	bag.Set("class", kind.Name)
	bag.Set(kind.OIDProp, oid)
	bag.Set(kind.URIProp, uri)
	if parent != e.root {
		bag.Set("parent", parent.uri)
	}
	bag.Merge(p.Clone())
	// Identity wins over caller input.
	bag.Set(kind.OIDProp, oid)
	bag.Set(kind.URIProp, uri)

	node := &Node{
		kind:      kind,
		oid:       oid,
		uri:       uri,
		parentURI: parent.uri,
		props:     bag,
		children:  make(map[string][]*Node),
	}
	parent.children[tag] = append(parent.children[tag], node)
	e.index[uri] = node
	e.obs.OnAdd(kind.Name, uri)
	return node, nil
}

// GetByURI returns the node at uri. A URI that was valid once but whose
// object (or an ancestor) has been deleted fails with
// *CeasedExistenceError; a never-allocated URI with *NotFoundError.
func (e *Engine) GetByURI(uri string) (*Node, error) {
	if node, ok := e.index[uri]; ok {
		e.obs.OnGet(uri)
		return node, nil
	}
	if _, ok := e.tombstones[uri]; ok {
		return nil, &CeasedExistenceError{URI: uri}
	}
	return nil, &NotFoundError{URI: uri}
}

// List returns parent's children of the given kind tag that match
// filterArgs, in insertion order. The same matcher serves the criteria the
// real server would evaluate server-side and everything else.
func (e *Engine) List(parent *Node, tag string, filterArgs filter.Args) ([]*Node, error) {
	if parent == nil {
		parent = e.root
	}
	matched := make([]*Node, 0, len(parent.children[tag]))
	for _, node := range parent.children[tag] {
		ok, err := filter.Matches(node.props, filterArgs)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, node)
		}
	}
	e.obs.OnList(tag, len(matched))
	return matched, nil
}

// Select lists children and additionally applies a compiled expression
// predicate.
func (e *Engine) Select(parent *Node, tag string, filterArgs filter.Args, where *filter.Where) ([]*Node, error) {
	nodes, err := e.List(parent, tag, filterArgs)
	if err != nil {
		return nil, err
	}
	if where == nil {
		return nodes, nil
	}
	kept := nodes[:0]
	for _, node := range nodes {
		ok, err := where.Eval(node.props)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, node)
		}
	}
	return kept, nil
}

// Update merges delta into the node's property bag. Identity properties
// cannot be changed.
func (e *Engine) Update(uri string, delta *props.Map) error {
	node, ok := e.index[uri]
	if !ok {
		if _, gone := e.tombstones[uri]; gone {
			return &CeasedExistenceError{URI: uri}
		}
		return &NotFoundError{URI: uri}
	}
	node.props.Merge(delta)
	node.props.Set(node.kind.OIDProp, node.oid)
	node.props.Set(node.kind.URIProp, node.uri)
	return nil
}

// Delete removes the node at uri and all its descendants, and detaches it
// from its parent's collection. Deleted URIs are never reused: later
// lookups fail with *CeasedExistenceError.
func (e *Engine) Delete(uri string) error {
	node, ok := e.index[uri]
	if !ok {
		if _, gone := e.tombstones[uri]; gone {
			return &CeasedExistenceError{URI: uri}
		}
		return &NotFoundError{URI: uri}
	}
	if node == e.root {
		return &ValidationError{Kind: node.kind.Name, Message: "the root object cannot be deleted"}
	}

	node.walk(func(n *Node) {
		delete(e.index, n.uri)
		e.tombstones[n.uri] = struct{}{}
	})

	parent := e.index[node.parentURI]
	if parent != nil {
		tag := node.kind.Name
		siblings := parent.children[tag]
		for i, sibling := range siblings {
			if sibling == node {
				parent.children[tag] = append(siblings[:i], siblings[i+1:]...)
				break
			}
		}
	}
	e.obs.OnDelete(node.kind.Name, uri)
	return nil
}

// BulkGet serves an ordered batch of by-URI fetches with per-item
// success/failure aggregation, mirroring the live aggregation service.
func (e *Engine) BulkGet(reqs []session.BulkRequest) []session.BulkResult {
	results := make([]session.BulkResult, len(reqs))
	for i, req := range reqs {
		node, err := e.GetByURI(req.Path)
		if err != nil {
			results[i] = session.BulkResult{
				ID:     req.ID,
				Status: http.StatusNotFound,
				Err:    httpError(http.MethodGet, req.Path, err),
			}
			continue
		}
		body, merr := json.Marshal(node.props)
		if merr != nil {
			results[i] = session.BulkResult{
				ID:     req.ID,
				Status: http.StatusInternalServerError,
				Err:    &session.HTTPError{Method: http.MethodGet, Path: req.Path, Status: http.StatusInternalServerError, Message: merr.Error()},
			}
			continue
		}
		results[i] = session.BulkResult{ID: req.ID, Status: http.StatusOK, Body: body}
	}
	return results
}
