package resource

import (
	"context"
	"time"

	"github.com/getconsole/consolekit/pkg/filter"
)

// NameCache maps resource names to URIs for one Manager. Expiry is lazy
// and wholesale: one shared invalidated-at timestamp covers the whole map,
// and an expired or missing entry triggers exactly one full list and a
// complete map replacement, never a per-entry fetch.
//
// The cache is not guarded internally; concurrent use of a Manager needs
// external synchronization.
type NameCache struct {
	manager       *Manager
	ttl           time.Duration
	uris          map[string]string
	invalidatedAt time.Time
	now           func() time.Time
}

func newNameCache(m *Manager, ttl time.Duration, now func() time.Time) *NameCache {
	return &NameCache{
		manager:       m,
		ttl:           ttl,
		uris:          make(map[string]string),
		invalidatedAt: now(),
		now:           now,
	}
}

// Get returns the URI for name. A present, unexpired entry is returned
// without any remote call; otherwise the cache is refreshed from one
// list() and the lookup retried. A name still absent after the refresh is
// a *NotFoundError.
func (c *NameCache) Get(ctx context.Context, name string) (string, error) {
	if uri, ok := c.uris[name]; ok && !c.expired() {
		return uri, nil
	}
	if err := c.Refresh(ctx); err != nil {
		return "", err
	}
	if uri, ok := c.uris[name]; ok {
		return uri, nil
	}
	return "", &NotFoundError{
		Kind:     c.manager.kind.Name,
		Criteria: filter.Args{c.manager.kind.NameProp: name},
		Parent:   c.manager.ParentURI(),
	}
}

// Invalidate clears the map and resets the timestamp without listing.
func (c *NameCache) Invalidate() {
	c.uris = make(map[string]string)
	c.invalidatedAt = c.now()
}

// Refresh invalidates and repopulates from one list().
func (c *NameCache) Refresh(ctx context.Context) error {
	c.Invalidate()
	resources, err := c.manager.List(ctx, false, nil)
	if err != nil {
		return err
	}
	c.UpdateFrom(resources)
	return nil
}

// Update upserts one mapping without listing. An empty name is a no-op.
func (c *NameCache) Update(name, uri string) {
	if name == "" {
		return
	}
	c.uris[name] = uri
}

// UpdateFrom upserts a mapping for every resource whose name is already
// materialized, without listing.
func (c *NameCache) UpdateFrom(resources []*Resource) {
	for _, r := range resources {
		if name := r.props.GetString(c.manager.kind.NameProp); name != "" {
			c.uris[name] = r.URI()
		}
	}
}

// Delete removes one mapping. Deleting an absent or empty name is a no-op.
func (c *NameCache) Delete(name string) {
	if name == "" {
		return
	}
	delete(c.uris, name)
}

// Len returns the number of cached mappings.
func (c *NameCache) Len() int {
	return len(c.uris)
}

func (c *NameCache) expired() bool {
	return c.now().Sub(c.invalidatedAt) > c.ttl
}
