package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getconsole/consolekit/pkg/filter"
	"github.com/getconsole/consolekit/pkg/props"
	"github.com/getconsole/consolekit/pkg/session"
)

// Manager is the collection and factory for resources of one kind under
// one parent. It holds the per-kind metadata, the name→URI cache, and the
// base path all operations address.
type Manager struct {
	transport session.Transport
	registry  *Registry
	kind      Kind
	parent    *Resource
	basePath  string
	cache     *NameCache
	ttl       time.Duration
	log       *slog.Logger
	now       func() time.Time
}

func newManager(t session.Transport, reg *Registry, kind Kind, parent *Resource, ttl time.Duration, log *slog.Logger, now func() time.Time) *Manager {
	m := &Manager{
		transport: t,
		registry:  reg,
		kind:      kind,
		parent:    parent,
		ttl:       ttl,
		log:       log,
		now:       now,
	}
	if parent != nil {
		m.basePath = parent.URI() + "/" + kind.Segment
	} else {
		m.basePath = "/api/" + kind.Segment
	}
	m.cache = newNameCache(m, ttl, now)
	return m
}

// Kind returns the per-kind metadata.
func (m *Manager) Kind() Kind {
	return m.kind
}

// Parent returns the owning parent resource, nil for top-level managers.
func (m *Manager) Parent() *Resource {
	return m.parent
}

// ParentURI returns the parent resource URI, "" for top-level managers.
func (m *Manager) ParentURI() string {
	if m.parent == nil {
		return ""
	}
	return m.parent.URI()
}

// BasePath returns the collection path all operations address.
func (m *Manager) BasePath() string {
	return m.basePath
}

// Cache returns the manager's name→URI cache.
func (m *Manager) Cache() *NameCache {
	return m.cache
}

// List returns the resources matching filterArgs, in server order. The
// result is never nil. Criteria the server can evaluate go into the query
// string; the rest are evaluated locally against the fetched properties.
// With full set, every resource's complete property set is fetched, via
// the transport's bulk capability when it has one.
func (m *Manager) List(ctx context.Context, full bool, filterArgs filter.Args) ([]*Resource, error) {
	query, clientArgs := filter.Divide(m.kind.QueryProps, filterArgs)

	body, err := m.transport.Get(ctx, m.basePath+query)
	if err != nil {
		return nil, err
	}

	items, err := m.decodeCollection(body)
	if err != nil {
		return nil, err
	}

	resources := make([]*Resource, 0, len(items))
	for _, p := range items {
		r, err := m.resourceFromProps(p)
		if err != nil {
			return nil, err
		}
		resources = append(resources, r)
	}

	if full {
		if err := m.pullFullAll(ctx, resources); err != nil {
			return nil, err
		}
	}

	if len(clientArgs) > 0 {
		kept := resources[:0]
		for _, r := range resources {
			matched, err := filter.Matches(r.props, clientArgs)
			if err != nil {
				return nil, err
			}
			if matched {
				kept = append(kept, r)
			}
		}
		resources = kept
	}

	m.cache.UpdateFrom(resources)
	m.log.Debug("listed resources", "kind", m.kind.Name, "count", len(resources))
	return resources, nil
}

// Find returns the single resource matching criteria. Zero matches fail
// with *NotFoundError, more than one with *NoUniqueMatchError; both carry
// the criteria and parent identity. Criteria consisting of exactly the
// name property resolve through the name cache first.
func (m *Manager) Find(ctx context.Context, criteria filter.Args) (*Resource, error) {
	if name, ok := m.nameOnly(criteria); ok {
		return m.FindByName(ctx, name)
	}

	matches, err := m.List(ctx, false, criteria)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, &NotFoundError{Kind: m.kind.Name, Criteria: criteria, Parent: m.ParentURI()}
	case 1:
		return matches[0], nil
	default:
		uris := make([]string, len(matches))
		for i, r := range matches {
			uris[i] = r.URI()
		}
		return nil, &NoUniqueMatchError{Kind: m.kind.Name, Criteria: criteria, Parent: m.ParentURI(), URIs: uris}
	}
}

// FindByName resolves name through the cache (one list on miss or expiry)
// and returns a resource with the minimal property set.
func (m *Manager) FindByName(ctx context.Context, name string) (*Resource, error) {
	uri, err := m.cache.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	p := props.New()
	p.Set(m.kind.NameProp, name)
	p.Set(m.kind.URIProp, uri)
	return m.resourceFromProps(p)
}

// ListWhere lists with a compiled expression predicate evaluated locally,
// in addition to regular filter criteria.
func (m *Manager) ListWhere(ctx context.Context, filterArgs filter.Args, where *filter.Where) ([]*Resource, error) {
	resources, err := m.List(ctx, false, filterArgs)
	if err != nil {
		return nil, err
	}
	if where == nil {
		return resources, nil
	}
	kept := resources[:0]
	for _, r := range resources {
		ok, err := where.Eval(r.props)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// Create creates a resource from properties. The returned resource already
// merges the server-assigned identifiers with the caller's input, so it is
// usable without a refresh.
func (m *Manager) Create(ctx context.Context, properties *props.Map) (*Resource, error) {
	body, err := m.transport.Post(ctx, m.basePath, properties)
	if err != nil {
		return nil, err
	}

	merged := properties.Clone()
	if len(body) > 0 {
		assigned := props.New()
		if err := json.Unmarshal(body, assigned); err != nil {
			return nil, fmt.Errorf("decode create response for %s: %w", m.kind.Name, err)
		}
		merged.Merge(assigned)
	}

	r, err := m.resourceFromProps(merged)
	if err != nil {
		return nil, err
	}
	m.cache.Update(merged.GetString(m.kind.NameProp), r.URI())
	m.log.Debug("created resource", "resource", r)
	return r, nil
}

// nameOnly reports whether criteria reduce to exactly the name property
// with a plain string value.
func (m *Manager) nameOnly(criteria filter.Args) (string, bool) {
	if len(criteria) != 1 {
		return "", false
	}
	v, ok := criteria[m.kind.NameProp]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// decodeCollection parses a listing response body into one property bag
// per item. An empty body is an empty collection.
func (m *Manager) decodeCollection(body json.RawMessage) ([]*props.Map, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode %s listing: %w", m.kind.Name, err)
	}
	raw, ok := envelope[m.kind.Collection]
	if !ok {
		return nil, nil
	}
	var rawItems []json.RawMessage
	if err := json.Unmarshal(raw, &rawItems); err != nil {
		return nil, fmt.Errorf("decode %s listing items: %w", m.kind.Name, err)
	}
	items := make([]*props.Map, len(rawItems))
	for i, ri := range rawItems {
		p := props.New()
		if err := json.Unmarshal(ri, p); err != nil {
			return nil, fmt.Errorf("decode %s listing item %d: %w", m.kind.Name, i, err)
		}
		items[i] = p
	}
	return items, nil
}

// resourceFromProps builds a Resource from a property bag that carries at
// least the uri property. The oid falls back to the trailing URI segment.
func (m *Manager) resourceFromProps(p *props.Map) (*Resource, error) {
	uri := p.GetString(m.kind.URIProp)
	if uri == "" {
		return nil, fmt.Errorf("%s item is missing the %q property", m.kind.Name, m.kind.URIProp)
	}
	oid := p.GetString(m.kind.OIDProp)
	if oid == "" {
		if i := strings.LastIndexByte(uri, '/'); i >= 0 {
			oid = uri[i+1:]
		}
		p.Set(m.kind.OIDProp, oid)
	}
	r := &Resource{
		manager: m,
		uri:     uri,
		oid:     oid,
		props:   p,
		fetched: m.now(),
	}
	return r, nil
}

// pullFullAll replaces every resource's bag with its full property set.
// A transport with bulk capability serves the batch in one call; items the
// batch reports as failed fall back to an individual fetch so one bad item
// does not lose the batch.
func (m *Manager) pullFullAll(ctx context.Context, resources []*Resource) error {
	if len(resources) == 0 {
		return nil
	}

	bg, ok := m.transport.(session.BulkGetter)
	if ok {
		reqs := make([]session.BulkRequest, len(resources))
		for i, r := range resources {
			reqs[i] = session.BulkRequest{ID: r.OID(), Path: r.URI()}
		}
		results, err := bg.BulkGet(ctx, reqs)
		if err == nil {
			byID := make(map[string]session.BulkResult, len(results))
			for _, res := range results {
				byID[res.ID] = res
			}
			for _, r := range resources {
				res, found := byID[r.OID()]
				if !found || res.Err != nil {
					if err := r.PullFullProperties(ctx); err != nil {
						return err
					}
					continue
				}
				fresh := props.New()
				if err := json.Unmarshal(res.Body, fresh); err != nil {
					return fmt.Errorf("decode bulk properties for %s: %w", r.URI(), err)
				}
				r.props = fresh
				r.ensureIdentity()
				r.full = true
				r.fetched = m.now()
			}
			return nil
		}
		m.log.Debug("bulk fetch unavailable, falling back to sequential", "error", err)
	}

	for _, r := range resources {
		if err := r.PullFullProperties(ctx); err != nil {
			return err
		}
	}
	return nil
}
