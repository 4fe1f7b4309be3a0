package interaction

import (
	"math"
	"time"
)

// MinSurfaceHeight is the smallest height a surface is drawn at.
const MinSurfaceHeight = 350

const defaultSurfaceWidth = 800

// Surface is the drawing area measured by the host.
type Surface struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Normalize applies the minimum height and a default width.
func (s Surface) Normalize() Surface {
	if s.Width <= 0 {
		s.Width = defaultSurfaceWidth
	}
	if s.Height < MinSurfaceHeight {
		s.Height = MinSurfaceHeight
	}
	return s
}

// ViewBox is [-w/2, -h/2, w, h], which puts the layout origin at the centre.
func (s Surface) ViewBox() [4]float64 {
	return [4]float64{-s.Width / 2, -s.Height / 2, s.Width, s.Height}
}

// View is the pan/zoom transform applied on top of layout coordinates:
// surface = K*layout + (X, Y).
type View struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	K float64 `json:"k"`
}

// IdentityView has no translation and unit scale.
var IdentityView = View{K: 1}

// Apply maps a layout point to surface coordinates.
func (v View) Apply(x, y float64) (float64, float64) {
	return v.K*x + v.X, v.K*y + v.Y
}

// Invert maps a surface point back to layout coordinates.
func (v View) Invert(x, y float64) (float64, float64) {
	return (x - v.X) / v.K, (y - v.Y) / v.K
}

// ZoomAt scales the view to k while keeping the layout point under the
// surface point (px, py) fixed.
func (v View) ZoomAt(px, py, k float64) View {
	lx, ly := v.Invert(px, py)
	return View{X: px - lx*k, Y: py - ly*k, K: k}
}

// Translate pans the view by a surface delta.
func (v View) Translate(dx, dy float64) View {
	v.X += dx
	v.Y += dy
	return v
}

// ZoomExtent bounds the view scale.
type ZoomExtent struct {
	Min float64
	Max float64
}

// DefaultZoomExtent is [0.3, 5].
var DefaultZoomExtent = ZoomExtent{Min: 0.3, Max: 5}

func (z ZoomExtent) clamp(k float64) float64 {
	return math.Max(z.Min, math.Min(z.Max, k))
}

// wheelFactor converts a wheel delta into a multiplicative zoom step.
func wheelFactor(deltaY float64) float64 {
	return math.Pow(2, -deltaY*0.002)
}

// transition animates the view between two transforms.
type transition struct {
	from, to View
	start    time.Time
	duration time.Duration
}

// at returns the interpolated view and whether the transition has finished.
func (t *transition) at(now time.Time) (View, bool) {
	if t.duration <= 0 {
		return t.to, true
	}
	p := float64(now.Sub(t.start)) / float64(t.duration)
	if p >= 1 {
		return t.to, true
	}
	if p < 0 {
		p = 0
	}
	e := easeCubicInOut(p)
	return View{
		X: t.from.X + (t.to.X-t.from.X)*e,
		Y: t.from.Y + (t.to.Y-t.from.Y)*e,
		K: t.from.K + (t.to.K-t.from.K)*e,
	}, false
}

func easeCubicInOut(t float64) float64 {
	t *= 2
	if t <= 1 {
		return t * t * t / 2
	}
	t -= 2
	return (t*t*t + 2) / 2
}
