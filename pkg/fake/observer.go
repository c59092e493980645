package fake

import "sync"

// Observer defines hooks invoked after engine operations. Tests use a
// CountingObserver to assert how many backend calls an operation caused.
type Observer interface {
	// OnAdd is called after a node is added.
	OnAdd(kind, uri string)

	// OnList is called after a collection listing, with the result size.
	OnList(kind string, count int)

	// OnGet is called after a by-URI fetch.
	OnGet(uri string)

	// OnDelete is called after a node (and its subtree) is deleted.
	OnDelete(kind, uri string)
}

// NoopObserver is the default no-op Observer.
type NoopObserver struct{}

func (NoopObserver) OnAdd(kind, uri string)      {}
func (NoopObserver) OnList(kind string, n int)   {}
func (NoopObserver) OnGet(uri string)            {}
func (NoopObserver) OnDelete(kind, uri string)   {}

// CountingObserver counts operations per kind/URI. Safe for concurrent
// use, although the engine itself is single-threaded.
type CountingObserver struct {
	mu      sync.Mutex
	adds    map[string]int
	lists   map[string]int
	gets    map[string]int
	deletes map[string]int
}

// NewCountingObserver creates an empty CountingObserver.
func NewCountingObserver() *CountingObserver {
	return &CountingObserver{
		adds:    make(map[string]int),
		lists:   make(map[string]int),
		gets:    make(map[string]int),
		deletes: make(map[string]int),
	}
}

func (c *CountingObserver) OnAdd(kind, uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adds[kind]++
}

func (c *CountingObserver) OnList(kind string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists[kind]++
}

func (c *CountingObserver) OnGet(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets[uri]++
}

func (c *CountingObserver) OnDelete(kind, uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes[kind]++
}

// Adds returns how many nodes of kind were added.
func (c *CountingObserver) Adds(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adds[kind]
}

// Lists returns how many listings of kind were served.
func (c *CountingObserver) Lists(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lists[kind]
}

// Gets returns how many by-URI fetches of uri were served.
func (c *CountingObserver) Gets(uri string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets[uri]
}

// Deletes returns how many nodes of kind were deleted.
func (c *CountingObserver) Deletes(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deletes[kind]
}
