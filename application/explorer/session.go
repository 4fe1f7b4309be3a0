// Package explorer hosts interactive exploration sessions. A session owns
// the fetch, build, simulate and render cycle for one client and re-roots
// the exploration when a node is clicked.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kenoir/weco-concept-explorer/application/interaction"
	"github.com/kenoir/weco-concept-explorer/application/ports"
	"github.com/kenoir/weco-concept-explorer/domain/concept"
	"github.com/kenoir/weco-concept-explorer/domain/events"
	"github.com/kenoir/weco-concept-explorer/domain/graph"
	"github.com/kenoir/weco-concept-explorer/domain/layout"
	"github.com/kenoir/weco-concept-explorer/pkg/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultFrameInterval is the animation frame period.
const DefaultFrameInterval = 33 * time.Millisecond

// ErrClosed is returned when input arrives after the session has stopped.
var ErrClosed = errors.New("session closed")

// Builder expands a root record into a graph.
type Builder interface {
	Build(ctx context.Context, root *concept.Record, maxDepth int) (*graph.Data, error)
}

// Settings are read each time a graph is loaded, so reloaded layout
// configuration reaches running sessions on their next re-root.
type Settings struct {
	Layout           layout.Params
	Zoom             interaction.ZoomExtent
	RecenterDuration time.Duration
	MaxDepth         int
	FrameInterval    time.Duration
}

// SettingsFunc returns the settings in force.
type SettingsFunc func() Settings

// Dependencies are the collaborators of a session.
type Dependencies struct {
	Resolver  ports.ConceptResolver
	Builder   Builder
	Publisher ports.EventPublisher
	Settings  SettingsFunc
	Metrics   *observability.Collector
	Logger    *zap.Logger
}

// Sink receives everything a session emits. It is only called from the
// session goroutine.
type Sink interface {
	Send(msg Message) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(msg Message) error

// Send calls f(msg).
func (f SinkFunc) Send(msg Message) error { return f(msg) }

// Message types sent to the client.
const (
	MessageFrame  = "frame"
	MessageStatus = "status"
	MessageError  = "error"
)

// Session states reported in status messages.
const (
	StateLoading = "loading"
	StateReady   = "ready"
	StateEmpty   = "empty"
	StateFailed  = "failed"
)

// Message is one outbound session message.
type Message struct {
	Type   string             `json:"type"`
	Scene  *interaction.Scene `json:"scene,omitempty"`
	Status *Status            `json:"status,omitempty"`
	Error  *ErrorInfo         `json:"error,omitempty"`
}

// Status reports the progress of the current exploration.
type Status struct {
	State  string `json:"state"`
	RootID string `json:"rootId,omitempty"`
	Nodes  int    `json:"nodes,omitempty"`
	Edges  int    `json:"edges,omitempty"`
}

// ErrorInfo describes a host-level failure such as an unavailable root.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// mailbox commands
type (
	exploreCmd struct {
		conceptID string
		depth     int
	}
	resizeCmd  struct{ surface interaction.Surface }
	pointerCmd struct {
		event interaction.Event
		reply chan error
	}
	pinCmd struct {
		nodeID string
		pinned bool
		reply  chan error
	}
	builtMsg struct {
		generation uint64
		rootID     string
		data       *graph.Data
		err        error
	}
)

// Session is an actor: Run owns the controller, the simulation and the
// scene, and every input reaches it through the mailbox.
type Session struct {
	id      string
	deps    Dependencies
	sink    Sink
	logger  *zap.Logger
	mailbox chan any
	done    chan struct{}
	closed  chan struct{}
	once    sync.Once

	// owned by the Run goroutine
	runCtx      context.Context
	ctrl        *interaction.Controller
	surface     interaction.Surface
	rootID      string
	depth       int
	generation  uint64
	cancelBuild context.CancelFunc
	dirty       bool
	sendErr     error
}

// NewSession creates a session. Nothing happens until Run is called.
func NewSession(deps Dependencies, sink Sink) *Session {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Settings == nil {
		deps.Settings = DefaultSettings
	}
	id := uuid.New().String()
	s := &Session{
		id:      id,
		deps:    deps,
		sink:    sink,
		logger:  deps.Logger.With(zap.String("sessionID", id)),
		mailbox: make(chan any, 64),
		done:    make(chan struct{}),
		closed:  make(chan struct{}),
		runCtx:  context.Background(),
		surface: interaction.Surface{}.Normalize(),
	}
	s.ctrl = interaction.NewController(s.controllerOptions(s.deps.Settings()))
	return s
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		Layout:           layout.DefaultParams(),
		Zoom:             interaction.DefaultZoomExtent,
		RecenterDuration: interaction.DefaultRecenterDuration,
		MaxDepth:         2,
		FrameInterval:    DefaultFrameInterval,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Explore requests a new root. depth <= 0 uses the configured depth.
func (s *Session) Explore(conceptID string, depth int) error {
	return s.post(exploreCmd{conceptID: conceptID, depth: depth})
}

// Resize changes the drawing surface.
func (s *Session) Resize(surface interaction.Surface) error {
	return s.post(resizeCmd{surface: surface})
}

// Dispatch forwards a pointer event and waits until it has been applied.
func (s *Session) Dispatch(ev interaction.Event) error {
	reply := make(chan error, 1)
	if err := s.post(pointerCmd{event: ev, reply: reply}); err != nil {
		return err
	}
	return s.await(reply)
}

// SetPinned toggles the pinned flag of a node.
func (s *Session) SetPinned(nodeID string, pinned bool) error {
	reply := make(chan error, 1)
	if err := s.post(pinCmd{nodeID: nodeID, pinned: pinned, reply: reply}); err != nil {
		return err
	}
	return s.await(reply)
}

// Close stops the session. Run returns shortly after.
func (s *Session) Close() {
	s.once.Do(func() { close(s.done) })
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} { return s.closed }

func (s *Session) post(cmd any) error {
	select {
	case s.mailbox <- cmd:
		return nil
	case <-s.done:
		return ErrClosed
	case <-s.closed:
		return ErrClosed
	}
}

func (s *Session) await(reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-s.closed:
		return ErrClosed
	}
}

// Run is the session loop. It returns when ctx ends, Close is called or the
// sink fails.
func (s *Session) Run(ctx context.Context) error {
	s.runCtx = ctx
	s.deps.Metrics.SessionOpened()
	s.logger.Info("Exploration session started")
	defer func() {
		if s.cancelBuild != nil {
			s.cancelBuild()
		}
		s.ctrl.Close()
		s.deps.Metrics.SessionClosed()
		s.logger.Info("Exploration session ended")
		close(s.closed)
	}()

	interval := s.deps.Settings().FrameInterval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case cmd := <-s.mailbox:
			s.handle(ctx, cmd)
		case <-ticker.C:
			s.frame()
		}
		if s.sendErr != nil {
			return s.sendErr
		}
	}
}

func (s *Session) handle(ctx context.Context, cmd any) {
	switch c := cmd.(type) {
	case exploreCmd:
		s.explore(ctx, c.conceptID, c.depth)
	case resizeCmd:
		s.surface = c.surface.Normalize()
		s.ctrl.Resize(s.surface)
		s.dirty = true
	case pointerCmd:
		err := s.ctrl.Dispatch(c.event)
		s.dirty = true
		c.reply <- err
	case pinCmd:
		err := s.ctrl.SetPinned(c.nodeID, c.pinned)
		s.dirty = true
		c.reply <- err
	case builtMsg:
		s.loaded(c)
	default:
		s.logger.Warn("Unknown session command", zap.String("type", fmt.Sprintf("%T", cmd)))
	}
}

// explore cancels any build in flight and starts a new one. It also runs
// from the controller's click callback, inside the loop.
func (s *Session) explore(ctx context.Context, conceptID string, depth int) {
	if conceptID == "" {
		s.send(Message{Type: MessageError, Error: &ErrorInfo{Code: "INVALID_CONCEPT", Message: "concept id is required"}})
		return
	}
	if s.cancelBuild != nil {
		s.cancelBuild()
	}
	// The old graph stops moving and is cleared before the new build starts.
	s.ctrl.Close()
	s.dirty = true
	if depth <= 0 {
		depth = s.deps.Settings().MaxDepth
	}

	previous := s.rootID
	s.rootID = conceptID
	s.depth = depth
	s.generation++
	gen := s.generation

	buildCtx, cancel := context.WithCancel(ctx)
	s.cancelBuild = cancel

	s.logger.Debug("Exploring concept",
		zap.String("conceptID", conceptID),
		zap.String("previousID", previous),
		zap.Uint64("generation", gen))
	s.send(Message{Type: MessageStatus, Status: &Status{State: StateLoading, RootID: conceptID}})
	s.frame()
	s.publish(ctx, events.NewExplorationRerooted(s.id, previous, conceptID, time.Now()))

	go s.build(buildCtx, gen, conceptID, depth)
}

// build runs off the loop and reports back through the mailbox.
func (s *Session) build(ctx context.Context, gen uint64, conceptID string, depth int) {
	result := builtMsg{generation: gen, rootID: conceptID}

	root, err := resolveRoot(ctx, s.deps.Resolver, conceptID)
	if err != nil {
		result.err = err
	} else {
		result.data, result.err = s.deps.Builder.Build(ctx, root, depth)
	}

	select {
	case s.mailbox <- result:
	case <-s.done:
	case <-s.closed:
	}
}

func (s *Session) loaded(msg builtMsg) {
	if msg.generation != s.generation {
		s.logger.Debug("Discarding stale build",
			zap.String("rootID", msg.rootID),
			zap.Uint64("generation", msg.generation))
		return
	}
	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			return
		}
		s.logger.Warn("Root concept unavailable",
			zap.String("rootID", msg.rootID),
			zap.Error(msg.err))
		s.send(Message{Type: MessageStatus, Status: &Status{State: StateFailed, RootID: msg.rootID}})
		code := "ROOT_UNAVAILABLE"
		if errors.Is(msg.err, ErrRootNotFound) {
			code = "ROOT_NOT_FOUND"
		}
		s.send(Message{Type: MessageError, Error: &ErrorInfo{
			Code:    code,
			Message: fmt.Sprintf("concept %q could not be loaded", msg.rootID),
		}})
		return
	}

	s.ctrl.Close()
	s.ctrl = interaction.NewController(s.controllerOptions(s.deps.Settings()))
	s.ctrl.Load(msg.data, msg.rootID, s.surface)

	state := StateReady
	if msg.data.IsEmpty() {
		state = StateEmpty
	}
	s.send(Message{Type: MessageStatus, Status: &Status{
		State:  state,
		RootID: msg.rootID,
		Nodes:  msg.data.NodeCount(),
		Edges:  msg.data.EdgeCount(),
	}})
	s.dirty = true
	s.frame()
}

// frame advances the animation and sends a scene when something changed.
func (s *Session) frame() {
	if s.ctrl.Animating() {
		before := s.ctrl.Ticks()
		s.ctrl.Tick()
		s.deps.Metrics.RecordTicks(s.ctrl.Ticks() - before)
		s.dirty = true
	}
	if !s.dirty {
		return
	}
	s.dirty = false
	scene := s.ctrl.Scene()
	s.send(Message{Type: MessageFrame, Scene: &scene})
}

func (s *Session) send(msg Message) {
	if s.sendErr != nil {
		return
	}
	if err := s.sink.Send(msg); err != nil {
		s.logger.Debug("Session sink failed", zap.Error(err))
		s.sendErr = err
	}
}

func (s *Session) publish(ctx context.Context, event events.DomainEvent) {
	if s.deps.Publisher == nil {
		return
	}
	if err := s.deps.Publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("eventType", event.GetEventType()),
			zap.Error(err))
	}
}

func (s *Session) controllerOptions(settings Settings) interaction.Options {
	return interaction.Options{
		Layout:           settings.Layout,
		Zoom:             settings.Zoom,
		RecenterDuration: settings.RecenterDuration,
		Logger:           s.logger,
		OnNodeClick: func(id string) {
			s.explore(s.runCtx, id, s.depth)
		},
	}
}
