package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/getconsole/consolekit/pkg/props"
)

// Resource is one addressable object in the remote hierarchy. It is owned
// by exactly one Manager and mutated in place: update and refresh preserve
// the identity of the Resource value callers hold.
type Resource struct {
	manager *Manager
	uri     string
	oid     string
	props   *props.Map
	full    bool
	fetched time.Time

	children map[string]*Manager
}

// URI returns the resource URI. Read-only, assigned at creation, never
// reused.
func (r *Resource) URI() string {
	return r.uri
}

// OID returns the bare object identifier, unique among siblings of the
// same kind.
func (r *Resource) OID() string {
	return r.oid
}

// Manager returns the owning manager.
func (r *Resource) Manager() *Manager {
	return r.manager
}

// Properties returns the live property bag. It always holds the uri
// property and, once known, the name property. Mutating it directly does
// not propagate to the server; use UpdateProperties.
func (r *Resource) Properties() *props.Map {
	return r.props
}

// Full reports whether the bag holds the complete property set rather
// than the abbreviated listing set.
func (r *Resource) Full() bool {
	return r.full
}

// LastFetch returns when properties were last fetched from the backend,
// zero if never.
func (r *Resource) LastFetch() time.Time {
	return r.fetched
}

// Name returns the resource name, fetching the full property set once if
// the name is not yet materialized.
func (r *Resource) Name(ctx context.Context) (string, error) {
	if name := r.props.GetString(r.manager.kind.NameProp); name != "" {
		return name, nil
	}
	if err := r.PullFullProperties(ctx); err != nil {
		return "", err
	}
	name := r.props.GetString(r.manager.kind.NameProp)
	r.manager.cache.Update(name, r.uri)
	return name, nil
}

// Prop returns one property value, fetching the full property set once if
// the property is absent and the bag is still partial.
func (r *Resource) Prop(ctx context.Context, name string) (any, error) {
	if v, ok := r.props.Get(name); ok {
		return v, nil
	}
	if r.full {
		return nil, fmt.Errorf("%s %s has no property %q", r.manager.kind.Name, r.uri, name)
	}
	if err := r.PullFullProperties(ctx); err != nil {
		return nil, err
	}
	v, ok := r.props.Get(name)
	if !ok {
		return nil, fmt.Errorf("%s %s has no property %q", r.manager.kind.Name, r.uri, name)
	}
	return v, nil
}

// PullFullProperties unconditionally re-fetches by URI, replaces the bag
// wholesale, and marks it full.
func (r *Resource) PullFullProperties(ctx context.Context) error {
	body, err := r.manager.transport.Get(ctx, r.uri)
	if err != nil {
		return err
	}
	fresh := props.New()
	if err := json.Unmarshal(body, fresh); err != nil {
		return fmt.Errorf("decode %s %s properties: %w", r.manager.kind.Name, r.uri, err)
	}
	r.props = fresh
	r.ensureIdentity()
	r.full = true
	r.fetched = r.manager.now()
	return nil
}

// UpdateProperties sends delta to the server and merges it into the local
// bag immediately, so callers observe their own write before any refresh.
// A name change moves the owner cache entry: the old name stops resolving
// and the new name resolves to this resource at once.
func (r *Resource) UpdateProperties(ctx context.Context, delta *props.Map) error {
	oldName := r.props.GetString(r.manager.kind.NameProp)

	if _, err := r.manager.transport.Post(ctx, r.uri, delta); err != nil {
		return err
	}

	r.props.Merge(delta)
	r.ensureIdentity()

	if newName := r.props.GetString(r.manager.kind.NameProp); newName != oldName {
		r.manager.cache.Delete(oldName)
		r.manager.cache.Update(newName, r.uri)
	}
	return nil
}

// Delete removes the resource on the server and purges its name from the
// owner cache. The local Resource value becomes stale.
func (r *Resource) Delete(ctx context.Context) error {
	if err := r.manager.transport.Delete(ctx, r.uri); err != nil {
		return err
	}
	r.manager.cache.Delete(r.props.GetString(r.manager.kind.NameProp))
	return nil
}

// Children returns the manager for the child collection of the given kind
// tag. Managers are memoized per resource.
func (r *Resource) Children(tag string) (*Manager, error) {
	if m, ok := r.children[tag]; ok {
		return m, nil
	}
	kind, ok := r.manager.registry.Kind(tag)
	if !ok {
		return nil, fmt.Errorf("unknown resource kind %q", tag)
	}
	allowed := false
	for _, child := range r.manager.kind.Children {
		if child == tag {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("kind %q has no child collection %q", r.manager.kind.Name, tag)
	}
	m := newManager(r.manager.transport, r.manager.registry, kind, r, r.manager.ttl, r.manager.log, r.manager.now)
	if r.children == nil {
		r.children = make(map[string]*Manager)
	}
	r.children[tag] = m
	return m, nil
}

// String renders the resource for diagnostics.
func (r *Resource) String() string {
	return fmt.Sprintf("%s(uri=%s)", r.manager.kind.Name, r.uri)
}

// LogValue implements slog.LogValuer.
func (r *Resource) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("kind", r.manager.kind.Name),
		slog.String("uri", r.uri),
	)
}

// ensureIdentity keeps the uri and oid properties populated in the bag.
func (r *Resource) ensureIdentity() {
	if !r.props.Has(r.manager.kind.URIProp) {
		r.props.Set(r.manager.kind.URIProp, r.uri)
	}
	if r.oid != "" && !r.props.Has(r.manager.kind.OIDProp) {
		r.props.Set(r.manager.kind.OIDProp, r.oid)
	}
}
