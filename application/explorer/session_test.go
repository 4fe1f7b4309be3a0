package explorer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kenoir/weco-concept-explorer/application/interaction"
	"github.com/kenoir/weco-concept-explorer/application/ports"
	"github.com/kenoir/weco-concept-explorer/application/services"
	"github.com/kenoir/weco-concept-explorer/domain/concept"
	"github.com/kenoir/weco-concept-explorer/domain/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errNotFound      = fmt.Errorf("missing: %w", ports.ErrConceptNotFound)
	errCatalogueDown = errors.New("catalogue down")
)

func stub(id string) concept.Stub {
	return concept.Stub{ID: id, Label: id, Type: "Subject"}
}

func rec(id string, related ...string) *concept.Record {
	r := &concept.Record{ID: id, Label: id, Type: "Subject"}
	for _, other := range related {
		if r.RelatedConcepts == nil {
			r.RelatedConcepts = map[string][]concept.Stub{}
		}
		r.RelatedConcepts["related"] = append(r.RelatedConcepts["related"], stub(other))
	}
	return r
}

type catalogue struct {
	records map[string]*concept.Record
	// gates blocks resolution of an id until the channel is closed
	gates map[string]chan struct{}
}

func (c *catalogue) Resolve(ctx context.Context, id string) (*concept.Record, error) {
	if gate, ok := c.gates[id]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	switch id {
	case "broken":
		return nil, errCatalogueDown
	case "ghost":
		return nil, nil
	}
	r, ok := c.records[id]
	if !ok {
		return nil, errNotFound
	}
	return r, nil
}

type recordingSink struct {
	mu   sync.Mutex
	msgs []Message
}

func (s *recordingSink) Send(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *recordingSink) statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Status
	for _, m := range s.msgs {
		if m.Type == MessageStatus {
			out = append(out, *m.Status)
		}
	}
	return out
}

func (s *recordingSink) lastStatus() Status {
	st := s.statuses()
	if len(st) == 0 {
		return Status{}
	}
	return st[len(st)-1]
}

func (s *recordingSink) errorsSent() []ErrorInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ErrorInfo
	for _, m := range s.msgs {
		if m.Type == MessageError {
			out = append(out, *m.Error)
		}
	}
	return out
}

func (s *recordingSink) lastFrame() (interaction.Scene, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.msgs) - 1; i >= 0; i-- {
		if s.msgs[i].Type == MessageFrame {
			return *s.msgs[i].Scene, true
		}
	}
	return interaction.Scene{}, false
}

func (s *recordingSink) indexOfStatus(state, rootID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.msgs {
		if m.Type == MessageStatus && m.Status.State == state && m.Status.RootID == rootID {
			return i
		}
	}
	return -1
}

// framesAfter returns the scenes sent after message i, up to the next status.
func (s *recordingSink) framesAfter(i int) []interaction.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []interaction.Scene
	for _, m := range s.msgs[i+1:] {
		if m.Type == MessageStatus {
			break
		}
		if m.Type == MessageFrame {
			out = append(out, *m.Scene)
		}
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, es []events.DomainEvent) error {
	for _, e := range es {
		_ = p.Publish(ctx, e)
	}
	return nil
}

func (p *recordingPublisher) rerooted() []events.ExplorationRerooted {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.ExplorationRerooted
	for _, e := range p.events {
		if r, ok := e.(events.ExplorationRerooted); ok {
			out = append(out, r)
		}
	}
	return out
}

func startSession(t *testing.T, resolver ports.ConceptResolver, pub ports.EventPublisher) (*Session, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	s := NewSession(Dependencies{
		Resolver:  resolver,
		Builder:   services.NewGraphBuilder(resolver, nil, nil, nil, services.BuilderOptions{}),
		Publisher: pub,
		Settings: func() Settings {
			st := DefaultSettings()
			st.FrameInterval = time.Millisecond
			st.RecenterDuration = time.Millisecond
			return st
		},
	}, sink)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	go func() { _ = s.Run(ctx) }()
	return s, sink
}

func waitForState(t *testing.T, sink *recordingSink, state, rootID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		st := sink.lastStatus()
		return st.State == state && st.RootID == rootID
	}, 2*time.Second, time.Millisecond, "waiting for %s of %s", state, rootID)
}

func testCatalogue() *catalogue {
	return &catalogue{records: map[string]*concept.Record{
		"A": rec("A", "B", "C"),
		"B": rec("B", "A", "D"),
		"C": rec("C"),
		"D": rec("D"),
		"E": rec("E"),
	}}
}

func TestSession_ExploreBuildsAndStreamsFrames(t *testing.T) {
	s, sink := startSession(t, testCatalogue(), nil)

	require.NoError(t, s.Explore("A", 0))
	waitForState(t, sink, StateReady, "A")

	st := sink.statuses()
	assert.Equal(t, StateLoading, st[0].State)
	assert.Equal(t, 4, sink.lastStatus().Nodes)

	require.Eventually(t, func() bool {
		scene, ok := sink.lastFrame()
		return ok && scene.Settled && len(scene.Nodes) == 4
	}, 5*time.Second, 5*time.Millisecond)

	scene, _ := sink.lastFrame()
	assert.Equal(t, "A", scene.SelectedID)
}

func TestSession_EmptyGraph(t *testing.T) {
	s, sink := startSession(t, testCatalogue(), nil)

	require.NoError(t, s.Explore("E", 0))
	waitForState(t, sink, StateEmpty, "E")

	scene, ok := sink.lastFrame()
	require.True(t, ok)
	assert.Equal(t, interaction.EmptyStateMessage, scene.EmptyMessage)
}

func TestSession_RootFailures(t *testing.T) {
	tests := []struct {
		name string
		root string
		code string
	}{
		{"not in catalogue", "missing", "ROOT_NOT_FOUND"},
		{"resolver returns no record", "ghost", "ROOT_NOT_FOUND"},
		{"catalogue failing", "broken", "ROOT_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, sink := startSession(t, testCatalogue(), nil)

			require.NoError(t, s.Explore(tt.root, 0))
			waitForState(t, sink, StateFailed, tt.root)

			errs := sink.errorsSent()
			require.Len(t, errs, 1)
			assert.Equal(t, tt.code, errs[0].Code)
		})
	}
}

func TestSession_NewRootClearsPreviousGraph(t *testing.T) {
	cat := testCatalogue()
	gate := make(chan struct{})
	cat.gates = map[string]chan struct{}{"E": gate}
	s, sink := startSession(t, cat, nil)

	require.NoError(t, s.Explore("A", 0))
	waitForState(t, sink, StateReady, "A")

	require.NoError(t, s.Explore("E", 0))
	waitForState(t, sink, StateLoading, "E")
	loadingAt := sink.indexOfStatus(StateLoading, "E")
	require.GreaterOrEqual(t, loadingAt, 0)

	// Nodes of the old graph no longer respond while the new root loads.
	require.NoError(t, s.Dispatch(interaction.Event{Kind: interaction.EventHoverStart, NodeID: "C"}))
	time.Sleep(30 * time.Millisecond)

	frames := sink.framesAfter(loadingAt)
	require.NotEmpty(t, frames)
	for _, scene := range frames {
		assert.True(t, scene.Blank)
		assert.Empty(t, scene.Nodes)
		assert.Empty(t, scene.Links)
		assert.False(t, scene.Tooltip.Visible)
	}

	close(gate)
	waitForState(t, sink, StateEmpty, "E")
}

func TestSession_ClickReroots(t *testing.T) {
	pub := &recordingPublisher{}
	s, sink := startSession(t, testCatalogue(), pub)

	require.NoError(t, s.Explore("A", 0))
	waitForState(t, sink, StateReady, "A")

	// Clicking the current selection does nothing.
	require.NoError(t, s.Dispatch(interaction.Event{Kind: interaction.EventClick, NodeID: "A"}))
	require.NoError(t, s.Dispatch(interaction.Event{Kind: interaction.EventClick, NodeID: "B"}))
	waitForState(t, sink, StateReady, "B")

	rr := pub.rerooted()
	require.Len(t, rr, 2)
	assert.Equal(t, "", rr[0].PreviousID)
	assert.Equal(t, "A", rr[1].PreviousID)
	assert.Equal(t, "B", rr[1].RootID)
	assert.Equal(t, s.ID(), rr[1].SessionID)
}

func TestSession_StaleBuildIsDiscarded(t *testing.T) {
	cat := testCatalogue()
	slow := make(chan struct{})
	cat.gates = map[string]chan struct{}{"C": slow}
	s, sink := startSession(t, cat, nil)

	require.NoError(t, s.Explore("C", 0))
	require.NoError(t, s.Explore("A", 0))
	waitForState(t, sink, StateReady, "A")
	close(slow)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "A", sink.lastStatus().RootID)
	for _, st := range sink.statuses() {
		if st.RootID == "C" {
			assert.Equal(t, StateLoading, st.State)
		}
	}
}

func TestSession_PinAndResize(t *testing.T) {
	s, sink := startSession(t, testCatalogue(), nil)

	require.NoError(t, s.Explore("A", 0))
	waitForState(t, sink, StateReady, "A")

	require.NoError(t, s.SetPinned("C", true))
	assert.ErrorIs(t, s.SetPinned("nope", true), interaction.ErrUnknownNode)

	require.NoError(t, s.Resize(interaction.Surface{Width: 1024, Height: 100}))
	require.Eventually(t, func() bool {
		scene, ok := sink.lastFrame()
		return ok && scene.Surface.Width == 1024 && scene.Surface.Height == interaction.MinSurfaceHeight
	}, 2*time.Second, time.Millisecond)
}

func TestSession_ClosedSessionRejectsInput(t *testing.T) {
	s, _ := startSession(t, testCatalogue(), nil)
	s.Close()
	<-s.Done()

	assert.ErrorIs(t, s.Explore("A", 0), ErrClosed)
	assert.ErrorIs(t, s.Dispatch(interaction.Event{Kind: interaction.EventHoverEnd}), ErrClosed)
}

func TestSession_SinkFailureEndsRun(t *testing.T) {
	s := NewSession(Dependencies{
		Resolver: testCatalogue(),
		Builder:  services.NewGraphBuilder(testCatalogue(), nil, nil, nil, services.BuilderOptions{}),
	}, SinkFunc(func(Message) error { return errors.New("client gone") }))

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	require.NoError(t, s.Explore("A", 0))

	select {
	case err := <-done:
		assert.EqualError(t, err, "client gone")
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after sink failure")
	}
}
