package layout

import "math"

// distanceMin2 keeps many-body forces finite for near-coincident bodies.
const distanceMin2 = 1.0

// applyLink pulls linked bodies towards LinkDistance, sharing the correction
// between endpoints by degree.
func (s *Simulation) applyLink() {
	for _, l := range s.links {
		src, tgt := &s.bodies[l.source], &s.bodies[l.target]

		x := tgt.X + tgt.VX - src.X - src.VX
		if x == 0 {
			x = s.jiggle()
		}
		y := tgt.Y + tgt.VY - src.Y - src.VY
		if y == 0 {
			y = s.jiggle()
		}

		d := math.Sqrt(x*x + y*y)
		d = (d - s.params.LinkDistance) / d * s.alpha * l.strength
		x *= d
		y *= d

		b := l.bias
		tgt.VX -= x * b
		tgt.VY -= y * b
		b = 1 - b
		src.VX += x * b
		src.VY += y * b
	}
}

// applyManyBody applies the pairwise charge between every two bodies.
// Graphs here are a few hundred nodes at most, so the exact O(n²) sum is used.
func (s *Simulation) applyManyBody() {
	strength := s.params.ChargeStrength
	for i := range s.bodies {
		bi := &s.bodies[i]
		for j := range s.bodies {
			if i == j {
				continue
			}
			bj := &s.bodies[j]

			x := bj.X - bi.X
			y := bj.Y - bi.Y
			l := x*x + y*y
			if x == 0 {
				x = s.jiggle()
				l += x * x
			}
			if y == 0 {
				y = s.jiggle()
				l += y * y
			}
			if l < distanceMin2 {
				l = math.Sqrt(distanceMin2 * l)
			}

			w := strength * s.alpha / l
			bi.VX += x * w
			bi.VY += y * w
		}
	}
}

// applyCenter translates every body so the centroid sits on the origin.
func (s *Simulation) applyCenter() {
	if len(s.bodies) == 0 {
		return
	}
	cx, cy := s.Centroid()
	for i := range s.bodies {
		s.bodies[i].X -= cx
		s.bodies[i].Y -= cy
	}
}

// applyCollide separates bodies whose collision circles overlap, using the
// positions they are about to move to.
func (s *Simulation) applyCollide() {
	for i := range s.bodies {
		bi := &s.bodies[i]
		ri := bi.Radius
		ri2 := ri * ri
		xi := bi.X + bi.VX
		yi := bi.Y + bi.VY

		for j := i + 1; j < len(s.bodies); j++ {
			bj := &s.bodies[j]
			rj := bj.Radius
			r := ri + rj

			x := xi - bj.X - bj.VX
			y := yi - bj.Y - bj.VY
			l := x*x + y*y
			if l >= r*r {
				continue
			}

			if x == 0 {
				x = s.jiggle()
				l += x * x
			}
			if y == 0 {
				y = s.jiggle()
				l += y * y
			}
			l = math.Sqrt(l)
			l = (r - l) / l
			x *= l
			y *= l

			share := (rj * rj) / (ri2 + rj*rj)
			bi.VX += x * share
			bi.VY += y * share
			share = 1 - share
			bj.VX -= x * share
			bj.VY -= y * share
		}
	}
}
