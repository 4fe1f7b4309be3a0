package layout

import (
	"math"

	"github.com/kenoir/weco-concept-explorer/domain/graph"
)

// Body is the physics state of one node. Bodies live in the simulation's
// arena and are never shared between simulations.
type Body struct {
	ID     string
	Label  string
	Depth  int
	IsRoot bool

	X, Y   float64
	VX, VY float64

	// Fixed bodies are held at (FX, FY) instead of being moved by forces.
	Fixed  bool
	FX, FY float64

	Radius float64
}

type link struct {
	source, target int
	strength       float64
	bias           float64
}

// Simulation is an iterative force-directed layout over one graph snapshot.
// It is not safe for concurrent use; the owner drives it from one goroutine.
type Simulation struct {
	params Params

	bodies []Body
	index  map[string]int
	links  []link

	alpha       float64
	alphaTarget float64
	running     bool
	halted      bool
	ticks       int

	rng lcg
}

// NewSimulation creates a running simulation for the graph. Bodies start on
// a phyllotaxis spiral around the origin, in the graph's discovery order.
func NewSimulation(data *graph.Data, params Params) *Simulation {
	params = params.withDefaults()
	nodes := data.Nodes()

	s := &Simulation{
		params:  params,
		bodies:  make([]Body, len(nodes)),
		index:   make(map[string]int, len(nodes)),
		alpha:   1,
		running: true,
		rng:     lcg{state: params.Seed},
	}

	initialAngle := math.Pi * (3 - math.Sqrt(5))
	for i, n := range nodes {
		radius := 10 * math.Sqrt(0.5+float64(i))
		angle := float64(i) * initialAngle
		s.bodies[i] = Body{
			ID:     n.ID,
			Label:  n.Label,
			Depth:  n.Depth,
			IsRoot: n.IsRoot,
			X:      radius * math.Cos(angle),
			Y:      radius * math.Sin(angle),
			Radius: CollisionRadius(n.IsRoot, n.Depth, n.Label, params.CollisionPadding),
		}
		s.index[n.ID] = i
	}

	s.initLinks(data.Edges())
	return s
}

func (s *Simulation) initLinks(edges []graph.Edge) {
	count := make([]int, len(s.bodies))
	for _, e := range edges {
		si, okS := s.index[e.Source]
		ti, okT := s.index[e.Target]
		if !okS || !okT || si == ti {
			continue
		}
		count[si]++
		count[ti]++
		s.links = append(s.links, link{source: si, target: ti})
	}
	for i := range s.links {
		l := &s.links[i]
		cs, ct := float64(count[l.source]), float64(count[l.target])
		l.strength = 1 / math.Min(cs, ct)
		l.bias = cs / (cs + ct)
	}
}

// Tick advances the simulation by one iteration. It reports true exactly once
// per cool-down: on the tick where alpha falls below AlphaMin and the
// simulation settles. A settled or halted simulation does not move.
func (s *Simulation) Tick() (settled bool) {
	if !s.running || s.halted {
		return false
	}

	s.alpha += (s.alphaTarget - s.alpha) * s.params.AlphaDecay
	s.applyLink()
	s.applyManyBody()
	s.applyCenter()
	s.applyCollide()
	s.integrate()
	s.ticks++

	if s.alpha < s.params.AlphaMin {
		s.running = false
		return true
	}
	return false
}

// RunUntilSettled ticks until the simulation settles or MaxTicks is reached
// and returns the number of ticks performed.
func (s *Simulation) RunUntilSettled() int {
	n := 0
	for s.Running() && n < s.params.MaxTicks {
		n++
		if s.Tick() {
			break
		}
	}
	return n
}

func (s *Simulation) integrate() {
	decay := 1 - s.params.VelocityDecay
	for i := range s.bodies {
		b := &s.bodies[i]
		if b.Fixed {
			b.X, b.VX = b.FX, 0
			b.Y, b.VY = b.FY, 0
			continue
		}
		b.VX *= decay
		b.VY *= decay
		b.X += b.VX
		b.Y += b.VY
	}
}

// Running reports whether the simulation is still moving bodies.
func (s *Simulation) Running() bool { return s.running && !s.halted }

// Halted reports whether Stop has been called.
func (s *Simulation) Halted() bool { return s.halted }

// Alpha returns the current energy of the simulation.
func (s *Simulation) Alpha() float64 { return s.alpha }

// AlphaTarget returns the energy the simulation decays towards.
func (s *Simulation) AlphaTarget() float64 { return s.alphaTarget }

// Ticks returns the number of ticks performed so far.
func (s *Simulation) Ticks() int { return s.ticks }

// Params returns the effective parameters.
func (s *Simulation) Params() Params { return s.params }

// SetAlphaTarget sets the energy the simulation decays towards. Values above
// AlphaMin keep the simulation running indefinitely.
func (s *Simulation) SetAlphaTarget(target float64) {
	s.alphaTarget = target
}

// Restart resumes a settled simulation from its current alpha.
func (s *Simulation) Restart() {
	if s.halted {
		return
	}
	s.running = true
}

// Reheat raises alpha to at least the given value and restarts.
func (s *Simulation) Reheat(alpha float64) {
	if alpha > s.alpha {
		s.alpha = alpha
	}
	s.Restart()
}

// Stop halts the simulation permanently. A halted simulation ignores Tick,
// Restart and mutations.
func (s *Simulation) Stop() {
	s.halted = true
	s.running = false
}

// Len returns the number of bodies.
func (s *Simulation) Len() int { return len(s.bodies) }

// Body returns a copy of the body with the given id.
func (s *Simulation) Body(id string) (Body, bool) {
	i, ok := s.index[id]
	if !ok {
		return Body{}, false
	}
	return s.bodies[i], true
}

// Bodies returns a snapshot of all bodies in graph discovery order.
func (s *Simulation) Bodies() []Body {
	out := make([]Body, len(s.bodies))
	copy(out, s.bodies)
	return out
}

// Pin holds a body at (x, y) until Unpin is called.
func (s *Simulation) Pin(id string, x, y float64) bool {
	i, ok := s.index[id]
	if !ok || s.halted {
		return false
	}
	b := &s.bodies[i]
	b.Fixed = true
	b.FX, b.FY = x, y
	return true
}

// Unpin returns a body to physics control.
func (s *Simulation) Unpin(id string) bool {
	i, ok := s.index[id]
	if !ok || s.halted {
		return false
	}
	b := &s.bodies[i]
	b.Fixed = false
	b.FX, b.FY = 0, 0
	return true
}

// Centroid returns the mean body position.
func (s *Simulation) Centroid() (float64, float64) {
	if len(s.bodies) == 0 {
		return 0, 0
	}
	var sx, sy float64
	for _, b := range s.bodies {
		sx += b.X
		sy += b.Y
	}
	n := float64(len(s.bodies))
	return sx / n, sy / n
}

// lcg is the linear congruential generator used for jiggle, seeded so that
// identical inputs produce identical layouts.
type lcg struct {
	state uint32
}

func (g *lcg) next() float64 {
	g.state = 1664525*g.state + 1013904223
	return float64(g.state) / 4294967296
}

// jiggle returns a tiny random offset used to separate coincident points.
func (s *Simulation) jiggle() float64 {
	return (s.rng.next() - 0.5) * 1e-6
}
