// Package interaction turns a laid-out graph into drawable scenes and applies
// pointer input to the running simulation and the pan/zoom view.
package interaction

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kenoir/weco-concept-explorer/domain/graph"
	"github.com/kenoir/weco-concept-explorer/domain/layout"

	"go.uber.org/zap"
)

// DefaultRecenterDuration is how long the recenter animation runs.
const DefaultRecenterDuration = 500 * time.Millisecond

// unpinReheat is the energy given back to a settled layout when a pinned
// node is released.
const unpinReheat = 0.1

var (
	ErrNoGraph     = errors.New("no graph loaded")
	ErrUnknownNode = errors.New("unknown node")
)

// Options configures a Controller.
type Options struct {
	Layout           layout.Params
	Zoom             ZoomExtent
	RecenterDuration time.Duration

	// OnNodeClick is invoked with the id of a clicked node other than the
	// current selection. The controller never changes the graph itself.
	OnNodeClick func(id string)

	Now    func() time.Time
	Logger *zap.Logger
}

type dragGesture struct {
	nodeID string
	// offset from the pointer to the node centre, in layout coordinates
	offX, offY float64
	// last pointer position while panning
	lastX, lastY float64
}

// Controller owns one simulation at a time together with the view, the
// selection and any gesture in progress. It is not safe for concurrent use.
type Controller struct {
	opts   Options
	logger *zap.Logger

	surface Surface
	data    *graph.Data
	sim     *layout.Simulation

	selectedID string
	highlight  Highlight
	pinned     map[string]bool

	view       View
	anim       *transition
	recentered bool

	drag    *dragGesture
	tooltip Tooltip
}

// NewController creates a controller with nothing loaded.
func NewController(opts Options) *Controller {
	if opts.Zoom.Min <= 0 || opts.Zoom.Max < opts.Zoom.Min {
		opts.Zoom = DefaultZoomExtent
	}
	if opts.RecenterDuration <= 0 {
		opts.RecenterDuration = DefaultRecenterDuration
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		opts:    opts,
		logger:  logger,
		surface: Surface{}.Normalize(),
		view:    IdentityView,
		pinned:  make(map[string]bool),
	}
}

// Load replaces the current graph. The previous simulation is halted and
// all view state is reset before the new one starts. A nil graph leaves the
// controller with nothing to draw; a root-only graph shows the empty state.
func (c *Controller) Load(data *graph.Data, selectedID string, surface Surface) {
	c.teardown()
	c.surface = surface.Normalize()
	c.data = data
	c.selectedID = selectedID
	c.highlight = NewHighlight(data, selectedID)

	if data == nil || data.IsEmpty() {
		return
	}
	c.sim = layout.NewSimulation(data, c.opts.Layout)
	c.logger.Debug("Layout started",
		zap.String("rootID", data.RootID()),
		zap.Int("nodes", data.NodeCount()),
		zap.Int("edges", data.EdgeCount()))
}

// Close halts the simulation and clears the scene.
func (c *Controller) Close() {
	c.teardown()
	c.data = nil
	c.selectedID = ""
	c.highlight = Highlight{}
}

func (c *Controller) teardown() {
	if c.sim != nil {
		c.sim.Stop()
		c.sim = nil
	}
	c.view = IdentityView
	c.anim = nil
	c.recentered = false
	c.drag = nil
	c.tooltip = Tooltip{}
	c.pinned = make(map[string]bool)
}

// Resize changes the drawing surface. Layout coordinates are unaffected.
func (c *Controller) Resize(surface Surface) {
	c.surface = surface.Normalize()
}

// SetSelected changes the emphasised node. If the layout has already
// settled the view recenters on the new selection straight away.
func (c *Controller) SetSelected(id string) {
	if id == c.selectedID {
		return
	}
	c.selectedID = id
	c.highlight = NewHighlight(c.data, id)
	c.recentered = false
	if c.sim != nil && !c.sim.Running() {
		c.recenter(c.opts.Now())
	}
}

// Tick advances the view animation and the simulation by one frame and
// reports whether anything is still moving.
func (c *Controller) Tick() bool {
	now := c.opts.Now()
	if c.anim != nil {
		v, done := c.anim.at(now)
		c.view = v
		if done {
			c.anim = nil
		}
	}
	if c.sim != nil && c.sim.Tick() {
		c.logger.Debug("Layout settled",
			zap.String("rootID", c.data.RootID()),
			zap.Int("ticks", c.sim.Ticks()))
		c.recenter(now)
	}
	return c.Animating()
}

// Animating reports whether the simulation or a view transition is running.
func (c *Controller) Animating() bool {
	return (c.sim != nil && c.sim.Running()) || c.anim != nil
}

// recenter starts the one-time translation that brings the selected node's
// settled position to the drawing origin.
func (c *Controller) recenter(now time.Time) {
	if c.recentered || c.selectedID == "" || c.sim == nil {
		return
	}
	b, ok := c.sim.Body(c.selectedID)
	if !ok {
		return
	}
	c.recentered = true
	k := c.view.K
	c.anim = &transition{
		from:     c.view,
		to:       View{X: -k * b.X, Y: -k * b.Y, K: k},
		start:    now,
		duration: c.opts.RecenterDuration,
	}
}

// Dispatch applies one pointer event synchronously.
func (c *Controller) Dispatch(ev Event) error {
	id := c.target(ev)

	switch ev.Kind {
	case EventClick:
		if id != "" && id != c.selectedID && c.opts.OnNodeClick != nil {
			c.opts.OnNodeClick(id)
		}
	case EventHoverStart:
		c.hover(id, ev.X, ev.Y)
	case EventHoverEnd:
		c.tooltip = Tooltip{}
	case EventDragStart:
		c.dragStart(id, ev.X, ev.Y)
	case EventDragMove:
		c.dragMove(ev.X, ev.Y)
	case EventDragEnd:
		c.dragEnd()
	case EventWheel:
		factor := ev.Scale
		if factor <= 0 {
			factor = wheelFactor(ev.DeltaY)
		}
		c.zoom(ev.X, ev.Y, c.view.K*factor)
	default:
		return fmt.Errorf("unsupported event kind %v", ev.Kind)
	}
	return nil
}

func (c *Controller) target(ev Event) string {
	if ev.NodeID != "" {
		if c.sim != nil {
			if _, ok := c.sim.Body(ev.NodeID); ok {
				return ev.NodeID
			}
		}
		return ""
	}
	id, _ := c.HitTest(ev.X, ev.Y)
	return id
}

func (c *Controller) hover(id string, x, y float64) {
	if id == "" {
		c.tooltip = Tooltip{}
		return
	}
	n, _ := c.data.Node(id)
	c.tooltip = Tooltip{Visible: true, Label: n.Label, ID: n.ID, X: x + 10, Y: y - 15}
}

func (c *Controller) dragStart(id string, x, y float64) {
	if c.drag != nil {
		c.dragEnd()
	}
	if id == "" || c.sim == nil {
		c.anim = nil
		c.drag = &dragGesture{lastX: x, lastY: y}
		return
	}

	c.sim.SetAlphaTarget(c.sim.Params().DragAlphaTarget)
	c.sim.Restart()

	b, _ := c.sim.Body(id)
	lx, ly := c.view.Invert(x, y)
	c.drag = &dragGesture{nodeID: id, offX: b.X - lx, offY: b.Y - ly}
	c.sim.Pin(id, b.X, b.Y)
}

func (c *Controller) dragMove(x, y float64) {
	if c.drag == nil {
		return
	}
	if c.drag.nodeID == "" {
		c.anim = nil
		c.view = c.view.Translate(x-c.drag.lastX, y-c.drag.lastY)
		c.drag.lastX, c.drag.lastY = x, y
		return
	}
	if c.sim == nil {
		return
	}
	lx, ly := c.view.Invert(x, y)
	c.sim.Pin(c.drag.nodeID, lx+c.drag.offX, ly+c.drag.offY)
}

func (c *Controller) dragEnd() {
	if c.drag == nil {
		return
	}
	id := c.drag.nodeID
	c.drag = nil
	if id == "" || c.sim == nil {
		return
	}
	c.sim.SetAlphaTarget(0)
	if !c.pinned[id] {
		c.sim.Unpin(id)
	}
}

func (c *Controller) zoom(px, py, k float64) {
	c.anim = nil
	c.view = c.view.ZoomAt(px, py, c.opts.Zoom.clamp(k))
}

// SetPinned sets the node's explicit pinned flag. A pinned node keeps its
// position after a drag is released; unpinning returns it to the physics.
func (c *Controller) SetPinned(id string, pinned bool) error {
	if c.sim == nil {
		return ErrNoGraph
	}
	b, ok := c.sim.Body(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	if pinned {
		c.pinned[id] = true
		if !b.Fixed {
			c.sim.Pin(id, b.X, b.Y)
		}
		return nil
	}
	delete(c.pinned, id)
	if c.drag != nil && c.drag.nodeID == id {
		return nil
	}
	if b.Fixed {
		c.sim.Unpin(id)
		c.sim.Reheat(unpinReheat)
	}
	return nil
}

// IsPinned reports the node's explicit pinned flag.
func (c *Controller) IsPinned(id string) bool { return c.pinned[id] }

// HitTest returns the topmost node whose circle or label plate contains the
// surface point.
func (c *Controller) HitTest(x, y float64) (string, bool) {
	if c.sim == nil {
		return "", false
	}
	lx, ly := c.view.Invert(x, y)
	bodies := c.sim.Bodies()
	for i := len(bodies) - 1; i >= 0; i-- {
		b := bodies[i]
		dx, dy := lx-b.X, ly-b.Y

		n, _ := c.data.Node(b.ID)
		r := roleRadius[RoleOf(n, c.selectedID)]
		if math.Hypot(dx, dy) <= r {
			return b.ID, true
		}

		w := layout.TextWidth(b.Label) + 8
		if dx >= labelPlateX && dx <= labelPlateX+w && dy >= labelPlateY && dy <= labelPlateY+labelPlateHeight {
			return b.ID, true
		}
	}
	return "", false
}

// Scene builds the current frame from live body positions.
func (c *Controller) Scene() Scene {
	s := Scene{
		Surface:    c.surface,
		ViewBox:    c.surface.ViewBox(),
		View:       c.view,
		SelectedID: c.selectedID,
		Tooltip:    c.tooltip,
		Links:      []LinkShape{},
		Nodes:      []NodeShape{},
	}
	if c.data == nil {
		s.Blank = true
		s.Settled = true
		return s
	}
	s.RootID = c.data.RootID()
	if c.sim == nil {
		s.EmptyMessage = EmptyStateMessage
		s.Settled = true
		return s
	}
	s.Settled = !c.sim.Running()

	for _, e := range c.data.Edges() {
		src, okS := c.sim.Body(e.Source)
		tgt, okT := c.sim.Body(e.Target)
		if !okS || !okT {
			continue
		}
		s.Links = append(s.Links, LinkShape{
			Source: e.Source,
			Target: e.Target,
			X1:     src.X,
			Y1:     src.Y,
			X2:     tgt.X,
			Y2:     tgt.Y,
			Style:  edgeStyle(c.highlight.Edge(e)),
		})
	}

	for _, n := range c.data.Nodes() {
		b, ok := c.sim.Body(n.ID)
		if !ok {
			continue
		}
		role := RoleOf(n, c.selectedID)
		emphasised := c.highlight.Node(n.ID)
		selected := role == RoleSelected
		s.Nodes = append(s.Nodes, NodeShape{
			ID:     n.ID,
			Label:  n.Label,
			X:      b.X,
			Y:      b.Y,
			Pinned: b.Fixed,
			Circle: circleStyle(role, emphasised),
			Plate:  plateStyle(selected, emphasised, layout.TextWidth(n.Label)),
			Text:   textStyle(selected, emphasised),
		})
	}
	return s
}

// View returns the current pan/zoom transform.
func (c *Controller) View() View { return c.view }

// SelectedID returns the emphasised node id.
func (c *Controller) SelectedID() string { return c.selectedID }

// Graph returns the loaded graph, or nil.
func (c *Controller) Graph() *graph.Data { return c.data }

// Body returns the live physics state of a node.
func (c *Controller) Body(id string) (layout.Body, bool) {
	if c.sim == nil {
		return layout.Body{}, false
	}
	return c.sim.Body(id)
}

// Ticks returns the number of simulation ticks run for the current graph.
func (c *Controller) Ticks() int {
	if c.sim == nil {
		return 0
	}
	return c.sim.Ticks()
}
