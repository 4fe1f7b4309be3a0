package services_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kenoir/weco-concept-explorer/application/ports"
	"github.com/kenoir/weco-concept-explorer/application/services"
	"github.com/kenoir/weco-concept-explorer/domain/concept"
	"github.com/kenoir/weco-concept-explorer/domain/events"
	"github.com/kenoir/weco-concept-explorer/domain/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("not found")

// fakeResolver serves records from a map and fails for unknown ids
type fakeResolver struct {
	mu      sync.Mutex
	records map[string]*concept.Record
	calls   map[string]int
}

func newFakeResolver(records ...*concept.Record) *fakeResolver {
	r := &fakeResolver{
		records: make(map[string]*concept.Record),
		calls:   make(map[string]int),
	}
	for _, rec := range records {
		r.records[rec.ID] = rec
	}
	return r
}

func (r *fakeResolver) Resolve(ctx context.Context, id string) (*concept.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[id]++
	rec, ok := r.records[id]
	if !ok {
		return nil, errNotFound
	}
	return rec, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	for _, e := range evts {
		_ = p.Publish(ctx, e)
	}
	return nil
}

func stub(id string) concept.Stub {
	return concept.Stub{ID: id, Label: id, Type: "Subject"}
}

func record(id string, related ...string) *concept.Record {
	r := &concept.Record{ID: id, Label: id, Type: "Subject"}
	if len(related) > 0 {
		stubs := make([]concept.Stub, 0, len(related))
		for _, rel := range related {
			stubs = append(stubs, stub(rel))
		}
		r.RelatedConcepts = map[string][]concept.Stub{"relatedTo": stubs}
	}
	return r
}

func newBuilder(resolver *fakeResolver) *services.GraphBuilder {
	return services.NewGraphBuilder(resolver, nil, nil, nil, services.BuilderOptions{})
}

func nodeIDs(g *graph.Data) []string {
	var ids []string
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestBuild_SingleRelatedConcept(t *testing.T) {
	root := &concept.Record{
		ID: "A", Label: "A", Type: "t",
		RelatedConcepts: map[string][]concept.Stub{"x": {{ID: "B", Label: "B", Type: "t"}}},
	}
	resolver := newFakeResolver(&concept.Record{ID: "B", Label: "B", Type: "t"})

	g, err := newBuilder(resolver).Build(context.Background(), root, 2)
	require.NoError(t, err)

	require.NoError(t, g.Validate())
	assert.ElementsMatch(t, []string{"A", "B"}, nodeIDs(g))
	a, _ := g.Node("A")
	b, _ := g.Node("B")
	assert.True(t, a.IsRoot)
	assert.Equal(t, 0, a.Depth)
	assert.False(t, b.IsRoot)
	assert.Equal(t, 1, b.Depth)
	assert.Equal(t, []graph.Edge{{Source: "A", Target: "B"}}, g.Edges())
}

func TestBuild_ResolverFailureDropsCandidate(t *testing.T) {
	root := record("A", "B")
	resolver := newFakeResolver()

	g, err := newBuilder(resolver).Build(context.Background(), root, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, nodeIDs(g))
	assert.Empty(t, g.Edges())
	assert.True(t, g.IsEmpty())
}

func TestBuild_RootWithoutRelations(t *testing.T) {
	g, err := newBuilder(newFakeResolver()).Build(context.Background(), record("A"), 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, nodeIDs(g))
	assert.Empty(t, g.Edges())
	assert.True(t, g.IsEmpty())
}

func TestBuild_NilRoot(t *testing.T) {
	resolver := newFakeResolver(record("A"))

	g, err := newBuilder(resolver).Build(context.Background(), nil, 2)
	require.ErrorIs(t, err, services.ErrNoRoot)

	assert.Nil(t, g)
	assert.Empty(t, resolver.calls)
}

func TestBuild_MalformedStubsContributeNothing(t *testing.T) {
	root := &concept.Record{
		ID: "A", Label: "A", Type: "t",
		RelatedConcepts: map[string][]concept.Stub{
			"relatedTo": {
				{ID: "B", Label: "B"},
				{ID: "C", Type: "t"},
				{Label: "D", Type: "t"},
			},
		},
	}
	resolver := newFakeResolver(record("B"), record("C"), record("D"))

	g, err := newBuilder(resolver).Build(context.Background(), root, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, nodeIDs(g))
	assert.Empty(t, g.Edges())
	assert.Empty(t, resolver.calls, "malformed stubs must not be looked up")
}

func TestBuild_DepthIsBounded(t *testing.T) {
	resolver := newFakeResolver(
		record("B", "C"),
		record("C", "D"),
		record("D", "E"),
	)

	g, err := newBuilder(resolver).Build(context.Background(), record("A", "B"), 2)
	require.NoError(t, err)

	require.NoError(t, g.Validate())
	assert.ElementsMatch(t, []string{"A", "B", "C"}, nodeIDs(g))
	for _, n := range g.Nodes() {
		if n.ID == "A" {
			continue
		}
		assert.Contains(t, []int{1, 2}, n.Depth, "node %s", n.ID)
		assert.False(t, n.IsRoot)
	}
	assert.Zero(t, resolver.calls["D"], "depth-2 nodes are leaves by policy")
}

func TestBuild_FirstDiscoveryDepthIsPermanent(t *testing.T) {
	// C is reachable directly from A and again through B.
	resolver := newFakeResolver(
		record("B", "C"),
		record("C"),
	)

	g, err := newBuilder(resolver).Build(context.Background(), record("A", "B", "C"), 2)
	require.NoError(t, err)

	c, ok := g.Node("C")
	require.True(t, ok)
	assert.Equal(t, 1, c.Depth)
	assert.True(t, g.HasEdge("A", "C"))
	assert.True(t, g.HasEdge("B", "C"), "re-discovery still adds an edge")
	assert.Equal(t, 3, g.NodeCount())
}

func TestBuild_MirroredEdgesAreKept(t *testing.T) {
	resolver := newFakeResolver(
		record("A", "B"),
		record("B", "A"),
	)

	g, err := newBuilder(resolver).Build(context.Background(), record("A", "B"), 2)
	require.NoError(t, err)

	assert.ElementsMatch(t, []graph.Edge{
		{Source: "A", Target: "B"},
		{Source: "B", Target: "A"},
	}, g.Edges())
	a, _ := g.Node("A")
	assert.True(t, a.IsRoot, "root is never demoted by re-discovery")
	assert.Equal(t, 0, a.Depth)
}

func TestBuild_DuplicateCandidatesYieldOneNode(t *testing.T) {
	root := &concept.Record{
		ID: "A", Label: "A", Type: "t",
		RelatedConcepts: map[string][]concept.Stub{
			"broaderThan": {stub("B")},
			"relatedTo":   {stub("B"), stub("B")},
		},
	}

	g, err := newBuilder(newFakeResolver(record("B"))).Build(context.Background(), root, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 1, g.EdgeCount())
}

func TestBuild_Idempotent(t *testing.T) {
	resolver := newFakeResolver(
		record("B", "C", "D", "A"),
		record("C", "B"),
		record("D"),
		record("E", "B"),
	)
	root := record("A", "B", "E", "missing")
	builder := newBuilder(resolver)

	first, err := builder.Build(context.Background(), root, 2)
	require.NoError(t, err)
	second, err := builder.Build(context.Background(), root, 2)
	require.NoError(t, err)

	assert.ElementsMatch(t, first.Nodes(), second.Nodes())
	assert.ElementsMatch(t, first.Edges(), second.Edges())
}

func TestBuild_DefaultDepthWhenNonPositive(t *testing.T) {
	resolver := newFakeResolver(record("B", "C"), record("C", "D"), record("D"))

	g, err := newBuilder(resolver).Build(context.Background(), record("A", "B"), 0)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"A", "B", "C"}, nodeIDs(g))
}

func TestBuild_StepLookupsRunConcurrently(t *testing.T) {
	const fanOut = 3
	var inFlight, maxInFlight atomic.Int32
	arrived := make(chan struct{}, fanOut)
	release := make(chan struct{})

	resolver := func(ctx context.Context, id string) (*concept.Record, error) {
		n := inFlight.Add(1)
		for {
			old := maxInFlight.Load()
			if n <= old || maxInFlight.CompareAndSwap(old, n) {
				break
			}
		}
		arrived <- struct{}{}
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		inFlight.Add(-1)
		return record(id), nil
	}

	go func() {
		for i := 0; i < fanOut; i++ {
			<-arrived
		}
		close(release)
	}()

	builder := services.NewGraphBuilder(ports.ResolverFunc(resolver), nil, nil, nil, services.BuilderOptions{})
	g, err := builder.Build(context.Background(), record("A", "B", "C", "D"), 1)
	require.NoError(t, err)

	assert.Equal(t, int32(fanOut), maxInFlight.Load())
	assert.Equal(t, 4, g.NodeCount())
}

func TestBuild_AbandonedOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	resolver := func(ctx context.Context, id string) (*concept.Record, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}

	builder := services.NewGraphBuilder(ports.ResolverFunc(resolver), nil, nil, nil, services.BuilderOptions{})
	_, err := builder.Build(ctx, record("A", "B"), 2)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_PublishesGraphBuilt(t *testing.T) {
	publisher := &recordingPublisher{}
	builder := services.NewGraphBuilder(newFakeResolver(record("B")), publisher, nil, nil, services.BuilderOptions{})

	_, err := builder.Build(context.Background(), record("A", "B", "missing"), 2)
	require.NoError(t, err)

	require.Len(t, publisher.events, 1)
	built, ok := publisher.events[0].(events.GraphBuilt)
	require.True(t, ok)
	assert.Equal(t, "graph.built", built.GetEventType())
	assert.Equal(t, "A", built.RootID)
	assert.Equal(t, 2, built.NodeCount)
	assert.Equal(t, 1, built.EdgeCount)
	assert.Equal(t, 1, built.Dropped)
}
