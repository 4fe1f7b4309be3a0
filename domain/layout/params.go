package layout

import (
	"math"
	"unicode/utf8"
)

// Params tunes the force simulation. Zero values are replaced by the
// defaults from DefaultParams when a simulation is created.
type Params struct {
	LinkDistance     float64 `yaml:"link_distance" json:"link_distance" validate:"gte=0"`
	ChargeStrength   float64 `yaml:"charge_strength" json:"charge_strength" validate:"lte=0"`
	CollisionPadding float64 `yaml:"collision_padding" json:"collision_padding" validate:"gte=0"`
	AlphaMin         float64 `yaml:"alpha_min" json:"alpha_min" validate:"gte=0,lt=1"`
	AlphaDecay       float64 `yaml:"alpha_decay" json:"alpha_decay" validate:"gte=0,lt=1"`
	VelocityDecay    float64 `yaml:"velocity_decay" json:"velocity_decay" validate:"gte=0,lt=1"`
	DragAlphaTarget  float64 `yaml:"drag_alpha_target" json:"drag_alpha_target" validate:"gte=0,lte=1"`
	MaxTicks         int     `yaml:"max_ticks" json:"max_ticks" validate:"gte=0"`
	Seed             uint32  `yaml:"seed" json:"seed"`
}

// DefaultParams returns the reference tuning: link distance 80, charge -150,
// alpha decaying from 1 to 0.001 over roughly 300 ticks.
func DefaultParams() Params {
	return Params{
		LinkDistance:     80,
		ChargeStrength:   -150,
		CollisionPadding: 8,
		AlphaMin:         0.001,
		AlphaDecay:       1 - math.Pow(0.001, 1.0/300),
		VelocityDecay:    0.4,
		DragAlphaTarget:  0.3,
		MaxTicks:         1000,
		Seed:             1,
	}
}

// withDefaults fills zero fields from DefaultParams.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.LinkDistance == 0 {
		p.LinkDistance = d.LinkDistance
	}
	if p.ChargeStrength == 0 {
		p.ChargeStrength = d.ChargeStrength
	}
	if p.CollisionPadding == 0 {
		p.CollisionPadding = d.CollisionPadding
	}
	if p.AlphaMin == 0 {
		p.AlphaMin = d.AlphaMin
	}
	if p.AlphaDecay == 0 {
		p.AlphaDecay = 1 - math.Pow(p.AlphaMin, 1.0/300)
	}
	if p.VelocityDecay == 0 {
		p.VelocityDecay = d.VelocityDecay
	}
	if p.DragAlphaTarget == 0 {
		p.DragAlphaTarget = d.DragAlphaTarget
	}
	if p.MaxTicks == 0 {
		p.MaxTicks = d.MaxTicks
	}
	if p.Seed == 0 {
		p.Seed = d.Seed
	}
	return p
}

// TextWidth approximates the rendered width of a label: 7 units per
// character, never less than 30.
func TextWidth(label string) float64 {
	return math.Max(30, 7*float64(utf8.RuneCountInString(label)))
}

// BaseRadius is the circle radius a node gets from its role in the graph.
func BaseRadius(isRoot bool, depth int) float64 {
	switch {
	case isRoot:
		return 8
	case depth == 1:
		return 6
	default:
		return 4
	}
}

// CollisionRadius is the footprint of a node plus its label, padded so that
// labels do not overlap neighbouring nodes.
func CollisionRadius(isRoot bool, depth int, label string, padding float64) float64 {
	base := BaseRadius(isRoot, depth)
	tw := TextWidth(label)
	return math.Sqrt(base*base+(tw*tw)/16) + padding
}
