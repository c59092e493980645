package resource_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getconsole/consolekit/pkg/fake"
	"github.com/getconsole/consolekit/pkg/filter"
	"github.com/getconsole/consolekit/pkg/props"
	"github.com/getconsole/consolekit/pkg/resource"
	"github.com/getconsole/consolekit/pkg/session"
)

// testEnv wires a client against a fresh fake backend with a counting
// observer and a controllable clock.
type testEnv struct {
	engine *fake.Engine
	obs    *fake.CountingObserver
	client *resource.Client
	now    time.Time
}

func newTestEnv(t *testing.T, opts ...resource.ClientOption) *testEnv {
	t.Helper()
	env := &testEnv{
		obs: fake.NewCountingObserver(),
		now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	env.engine = fake.NewEngine(fake.WithObserver(env.obs))
	opts = append([]resource.ClientOption{
		resource.WithClock(func() time.Time { return env.now }),
	}, opts...)
	env.client = resource.NewClient(fake.NewTransport(env.engine), opts...)
	return env
}

func (env *testEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

func (env *testEnv) cpcs(t *testing.T) *resource.Manager {
	t.Helper()
	m, err := env.client.Manager("cpc")
	require.NoError(t, err)
	return m
}

func (env *testEnv) addCPC(t *testing.T, name string, extra ...any) *fake.Node {
	t.Helper()
	pairs := append([]any{"name", name}, extra...)
	node, err := env.engine.Add(nil, "cpc", props.FromPairs(pairs...))
	require.NoError(t, err)
	return node
}

func TestManager_ListScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cpcs := env.cpcs(t)

	cpc1 := env.addCPC(t, "CPC1")

	matched, err := cpcs.List(ctx, false, filter.Args{"name": "CPC1"})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, cpc1.URI(), matched[0].URI())

	require.NoError(t, matched[0].Delete(ctx))

	remaining, err := cpcs.List(ctx, false, nil)
	require.NoError(t, err)
	assert.NotNil(t, remaining)
	assert.Empty(t, remaining)
}

func TestManager_List_PartialProperties(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addCPC(t, "CPC1", "description", "hidden in listings")

	listed, err := env.cpcs(t).List(ctx, false, nil)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	r := listed[0]
	assert.False(t, r.Full())
	assert.True(t, r.Properties().Has("object-uri"))
	assert.True(t, r.Properties().Has("name"))
	assert.False(t, r.Properties().Has("description"))
	assert.NotEmpty(t, r.OID())
}

func TestManager_List_FullProperties_Bulk(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addCPC(t, "CPC1", "description", "first")
	env.addCPC(t, "CPC2", "description", "second")

	listed, err := env.cpcs(t).List(ctx, true, nil)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	for _, r := range listed {
		assert.True(t, r.Full())
		assert.True(t, r.Properties().Has("description"))
	}
}

// noBulkTransport hides the fake transport's bulk capability, forcing the
// sequential fallback path.
type noBulkTransport struct {
	t *fake.Transport
}

func (n *noBulkTransport) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return n.t.Get(ctx, path)
}

func (n *noBulkTransport) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return n.t.Post(ctx, path, body)
}

func (n *noBulkTransport) Delete(ctx context.Context, path string) error {
	return n.t.Delete(ctx, path)
}

func TestManager_List_FullProperties_SequentialFallback(t *testing.T) {
	engine := fake.NewEngine()
	_, err := engine.Add(nil, "cpc", props.FromPairs("name", "CPC1", "description", "d"))
	require.NoError(t, err)

	client := resource.NewClient(&noBulkTransport{t: fake.NewTransport(engine)})
	cpcs, err := client.Manager("cpc")
	require.NoError(t, err)

	listed, err := cpcs.List(context.Background(), true, nil)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.True(t, listed[0].Full())
	assert.Equal(t, "d", listed[0].Properties().GetString("description"))
}

func TestManager_List_ClientSideFilter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addCPC(t, "CPC1", "description", "keep")
	env.addCPC(t, "CPC2", "description", "drop")

	// "description" is not server-filterable for cpc, and not part of the
	// partial listing view, so full properties are needed.
	listed, err := env.cpcs(t).List(ctx, true, filter.Args{"description": "keep"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "CPC1", listed[0].Properties().GetString("name"))
}

func TestManager_Find_NameUsesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addCPC(t, "CPC1")
	env.addCPC(t, "CPC2")
	cpcs := env.cpcs(t)

	r1, err := cpcs.Find(ctx, filter.Args{"name": "CPC1"})
	require.NoError(t, err)
	name, err := r1.Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "CPC1", name)
	assert.Equal(t, 1, env.obs.Lists("cpc"), "cache miss does exactly one list")

	// Second lookup, still unexpired: served from the cache.
	r2, err := cpcs.Find(ctx, filter.Args{"name": "CPC2"})
	require.NoError(t, err)
	assert.NotEqual(t, r1.URI(), r2.URI())
	assert.Equal(t, 1, env.obs.Lists("cpc"), "unexpired lookups must not list again")
}

func TestManager_Find_CacheTTLExpiry(t *testing.T) {
	env := newTestEnv(t, resource.WithCacheTTL(time.Minute))
	ctx := context.Background()
	env.addCPC(t, "CPC1")
	env.addCPC(t, "CPC2")
	cpcs := env.cpcs(t)

	_, err := cpcs.FindByName(ctx, "CPC1")
	require.NoError(t, err)
	require.Equal(t, 1, env.obs.Lists("cpc"))

	env.advance(2 * time.Minute)

	// Expired: the next get does exactly one new wholesale list.
	_, err = cpcs.FindByName(ctx, "CPC2")
	require.NoError(t, err)
	assert.Equal(t, 2, env.obs.Lists("cpc"))

	// The wholesale replacement covered every name, not just CPC2.
	_, err = cpcs.FindByName(ctx, "CPC1")
	require.NoError(t, err)
	assert.Equal(t, 2, env.obs.Lists("cpc"))
}

func TestManager_Find_NotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addCPC(t, "CPC1")

	_, err := env.cpcs(t).Find(ctx, filter.Args{"name": "GHOST"})

	var nf *resource.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "cpc", nf.Kind)
	assert.Equal(t, filter.Args{"name": "GHOST"}, nf.Criteria)
}

func TestManager_Find_NoUniqueMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addCPC(t, "CPC1")
	env.addCPC(t, "CPC2")

	// A name list is an OR criterion, not a cache lookup.
	_, err := env.cpcs(t).Find(ctx, filter.Args{"name": []any{"CPC1", "CPC2"}})

	var multi *resource.NoUniqueMatchError
	require.ErrorAs(t, err, &multi)
	assert.Equal(t, "cpc", multi.Kind)
	assert.Len(t, multi.URIs, 2)
}

func TestManager_Create_MergesServerAssignedIdentity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.cpcs(t).Create(ctx, props.FromPairs("name", "NEW", "description", "fresh"))
	require.NoError(t, err)

	// Usable without a refresh: identity and caller input both present.
	assert.NotEmpty(t, created.URI())
	assert.NotEmpty(t, created.OID())
	assert.Equal(t, "NEW", created.Properties().GetString("name"))
	assert.Equal(t, "fresh", created.Properties().GetString("description"))

	// The name resolves through the cache without a list.
	found, err := env.cpcs(t).FindByName(ctx, "NEW")
	require.NoError(t, err)
	assert.Equal(t, created.URI(), found.URI())
	assert.Equal(t, 0, env.obs.Lists("cpc"))
}

func TestResource_PullFullProperties(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addCPC(t, "CPC1", "description", "full only")

	listed, err := env.cpcs(t).List(ctx, false, nil)
	require.NoError(t, err)
	r := listed[0]
	require.False(t, r.Full())

	before := r.LastFetch()
	env.advance(time.Second)
	require.NoError(t, r.PullFullProperties(ctx))

	assert.True(t, r.Full())
	assert.Equal(t, "full only", r.Properties().GetString("description"))
	assert.True(t, r.LastFetch().After(before))
	assert.True(t, r.Properties().Has("object-uri"), "identity survives wholesale replacement")
}

func TestResource_PropLazyFetch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addCPC(t, "CPC1", "description", "lazy")

	listed, err := env.cpcs(t).List(ctx, false, nil)
	require.NoError(t, err)
	r := listed[0]

	v, err := r.Prop(ctx, "description")
	require.NoError(t, err)
	assert.Equal(t, "lazy", v)
	assert.True(t, r.Full(), "lazy property access fetches the full set once")

	_, err = r.Prop(ctx, "no-such-property")
	require.Error(t, err)
}

func TestResource_UpdateProperties_RenameMovesCacheEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addCPC(t, "OLD")
	cpcs := env.cpcs(t)

	r, err := cpcs.FindByName(ctx, "OLD")
	require.NoError(t, err)
	listsBefore := env.obs.Lists("cpc")

	require.NoError(t, r.UpdateProperties(ctx, props.FromPairs("name", "NEW")))

	// Caller sees the write immediately, before any refresh.
	assert.Equal(t, "NEW", r.Properties().GetString("name"))

	// New name resolves without listing.
	found, err := cpcs.FindByName(ctx, "NEW")
	require.NoError(t, err)
	assert.Equal(t, r.URI(), found.URI())
	assert.Equal(t, listsBefore, env.obs.Lists("cpc"))

	// Old name fails; the miss does exactly one list.
	_, err = cpcs.FindByName(ctx, "OLD")
	var nf *resource.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, listsBefore+1, env.obs.Lists("cpc"))
}

func TestResource_Delete_PurgesCacheEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addCPC(t, "CPC1")
	cpcs := env.cpcs(t)

	r, err := cpcs.FindByName(ctx, "CPC1")
	require.NoError(t, err)
	listsBefore := env.obs.Lists("cpc")

	require.NoError(t, r.Delete(ctx))

	// The miss triggers exactly one list, which returns zero matches.
	_, err = cpcs.FindByName(ctx, "CPC1")
	var nf *resource.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, listsBefore+1, env.obs.Lists("cpc"))
}

func TestResource_ChildManagers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cpcNode := env.addCPC(t, "CPC1")

	cpc, err := env.cpcs(t).FindByName(ctx, "CPC1")
	require.NoError(t, err)

	partitions, err := cpc.Children("partition")
	require.NoError(t, err)
	assert.Equal(t, cpcNode.URI()+"/partitions", partitions.BasePath())
	assert.Equal(t, cpcNode.URI(), partitions.ParentURI())

	created, err := partitions.Create(ctx, props.FromPairs("name", "PART1", "status", "stopped"))
	require.NoError(t, err)
	assert.Contains(t, created.URI(), cpcNode.URI()+"/partitions/")

	// The same child manager instance is handed out again.
	again, err := cpc.Children("partition")
	require.NoError(t, err)
	assert.Same(t, partitions, again)

	// Unknown and non-child kinds are rejected.
	_, err = cpc.Children("widget")
	assert.Error(t, err)
	_, err = cpc.Children("nic")
	assert.Error(t, err)
}

func TestResource_ErrorPropagation_CeasedExistence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addCPC(t, "CPC1")
	cpcs := env.cpcs(t)

	r, err := cpcs.FindByName(ctx, "CPC1")
	require.NoError(t, err)
	require.NoError(t, env.engine.Delete(r.URI()))

	err = r.PullFullProperties(ctx)
	var httpErr *session.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 404, httpErr.Status)
	assert.Equal(t, 2, httpErr.Reason, "ceased existence is distinguishable from plain not-found")
}

func TestManager_ListWhere(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cpcNode := env.addCPC(t, "CPC1")
	_, err := env.engine.Add(cpcNode, "partition", props.FromPairs("name", "PART1", "status", "active"))
	require.NoError(t, err)
	_, err = env.engine.Add(cpcNode, "partition", props.FromPairs("name", "PART2", "status", "stopped"))
	require.NoError(t, err)

	cpc, err := env.cpcs(t).FindByName(ctx, "CPC1")
	require.NoError(t, err)
	partitions, err := cpc.Children("partition")
	require.NoError(t, err)

	// status is part of the partition listing view, so the predicate can
	// run against partial properties.
	where, err := filter.CompileWhere(`status == "stopped"`)
	require.NoError(t, err)

	matched, err := partitions.ListWhere(ctx, nil, where)
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "PART2", matched[0].Properties().GetString("name"))

	// A nil predicate degrades to a plain list.
	all, err := partitions.ListWhere(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
