package resource

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getconsole/consolekit/pkg/logging"
	"github.com/getconsole/consolekit/pkg/session"
)

// DefaultCacheTTL is the name→URI cache time-to-live applied when the
// caller does not override it.
const DefaultCacheTTL = 5 * time.Minute

// Client is the root of the resource model: it owns one top-level Manager
// per registered top-level kind, all sharing one transport.
type Client struct {
	transport session.Transport
	registry  *Registry
	ttl       time.Duration
	log       *slog.Logger
	now       func() time.Time
	managers  map[string]*Manager
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRegistry replaces the default kind registry.
func WithRegistry(reg *Registry) ClientOption {
	return func(c *Client) {
		c.registry = reg
	}
}

// WithCacheTTL sets the name→URI cache time-to-live for all managers.
func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.ttl = ttl
	}
}

// WithLogger sets the logger shared by all managers.
func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// WithClock overrides the time source. Cache TTL tests use this.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a client over the given transport.
func NewClient(t session.Transport, opts ...ClientOption) *Client {
	c := &Client{
		transport: t,
		registry:  DefaultRegistry(),
		ttl:       DefaultCacheTTL,
		log:       logging.Discard(),
		now:       time.Now,
		managers:  make(map[string]*Manager),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the kind registry in use.
func (c *Client) Registry() *Registry {
	return c.registry
}

// Manager returns the top-level manager for the given kind tag.
// Managers are memoized; repeated calls return the same instance and
// therefore the same name cache.
func (c *Client) Manager(tag string) (*Manager, error) {
	if m, ok := c.managers[tag]; ok {
		return m, nil
	}
	kind, ok := c.registry.Kind(tag)
	if !ok {
		return nil, fmt.Errorf("unknown resource kind %q", tag)
	}
	topLevel := false
	for _, t := range c.registry.TopLevel() {
		if t == tag {
			topLevel = true
			break
		}
	}
	if !topLevel {
		return nil, fmt.Errorf("kind %q is not addressable at the API root", tag)
	}
	m := newManager(c.transport, c.registry, kind, nil, c.ttl, c.log, c.now)
	c.managers[tag] = m
	return m, nil
}
