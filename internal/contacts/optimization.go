package contacts

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/geometry"
)

// SurfacePoint is the closest point of some surface to a query point.
// Bary is only meaningful when the surface is itself a simplex.
type SurfacePoint struct {
	Bary     mgl32.Vec4
	Point    mgl32.Vec3
	Normal   mgl32.Vec3
	Distance float32
}

// SurfaceQuery returns the surface point closest to p.
type SurfaceQuery func(p mgl32.Vec3) SurfacePoint

// Simplex is a gathered copy of one simplex's particle data.
type Simplex struct {
	Size      int
	Positions [4]mgl32.Vec3
	Radii     [4]float32
}

// Point returns the barycentric point and interpolated radius.
func (s *Simplex) Point(b mgl32.Vec4) (mgl32.Vec3, float32) {
	var p mgl32.Vec3
	var r float32
	for i := 0; i < s.Size; i++ {
		p = p.Add(s.Positions[i].Mul(b[i]))
		r += s.Radii[i] * b[i]
	}
	return p, r
}

// Optimize finds barycentric coordinates on s whose swept sphere lies
// closest to the surface described by query, using Frank-Wolfe iterations
// started at bary. The returned surface point's distance already subtracts
// the simplex radius at the optimum.
func Optimize(query SurfaceQuery, s *Simplex, bary mgl32.Vec4, iterations int, tolerance float32) (mgl32.Vec4, SurfacePoint) {
	if s.Size <= 1 {
		bary = mgl32.Vec4{1, 0, 0, 0}
		p, r := s.Point(bary)
		sp := query(p)
		sp.Distance -= r
		return bary, sp
	}

	for k := 0; k < iterations; k++ {
		p, _ := s.Point(bary)
		sp := query(p)

		// linear minimization oracle: vertex whose sphere reaches furthest
		// towards the surface
		best, bestVal := 0, float32(math.MaxFloat32)
		var current float32
		for i := 0; i < s.Size; i++ {
			v := s.Positions[i].Dot(sp.Normal) - s.Radii[i]
			current += bary[i] * v
			if v < bestVal {
				best, bestVal = i, v
			}
		}
		if current-bestVal < tolerance {
			break
		}

		step := 2 / float32(k+2)
		for i := 0; i < s.Size; i++ {
			bary[i] *= 1 - step
		}
		bary[best] += step
	}

	p, r := s.Point(bary)
	sp := query(p)
	sp.Distance -= r
	return bary, sp
}

// ClosestPointOnSimplex returns the closest point of s's core (ignoring
// radii) to p and its barycentric coordinates.
func ClosestPointOnSimplex(s *Simplex, p mgl32.Vec3) (mgl32.Vec3, mgl32.Vec4) {
	switch s.Size {
	case 1:
		return s.Positions[0], mgl32.Vec4{1, 0, 0, 0}
	case 2:
		c, t := geometry.ClosestPointOnSegment(p, s.Positions[0], s.Positions[1])
		return c, mgl32.Vec4{1 - t, t, 0, 0}
	case 3:
		c, b := geometry.ClosestPointOnTriangle(p, s.Positions[0], s.Positions[1], s.Positions[2])
		return c, b.Vec4(0)
	case 4:
		return closestPointOnTetrahedron(s, p)
	}
	return p, mgl32.Vec4{}
}

var tetFaces = [4][3]int{{0, 1, 2}, {0, 3, 1}, {0, 2, 3}, {1, 3, 2}}

func closestPointOnTetrahedron(s *Simplex, p mgl32.Vec3) (mgl32.Vec3, mgl32.Vec4) {
	a, b, c, d := s.Positions[0], s.Positions[1], s.Positions[2], s.Positions[3]
	m := mgl32.Mat3FromCols(b.Sub(a), c.Sub(a), d.Sub(a))
	if det := m.Det(); math.Abs(float64(det)) > 1e-12 {
		l := m.Inv().Mul3x1(p.Sub(a))
		if l[0] >= 0 && l[1] >= 0 && l[2] >= 0 && l[0]+l[1]+l[2] <= 1 {
			return p, mgl32.Vec4{1 - l[0] - l[1] - l[2], l[0], l[1], l[2]}
		}
	}

	best := float32(math.MaxFloat32)
	var bp mgl32.Vec3
	var bb mgl32.Vec4
	for _, f := range tetFaces {
		cp, fb := geometry.ClosestPointOnTriangle(p, s.Positions[f[0]], s.Positions[f[1]], s.Positions[f[2]])
		if dist := p.Sub(cp).LenSqr(); dist < best {
			best = dist
			bp = cp
			bb = mgl32.Vec4{}
			bb[f[0]], bb[f[1]], bb[f[2]] = fb[0], fb[1], fb[2]
		}
	}
	return bp, bb
}

// SimplexQuery turns simplex s into a SurfaceQuery. Radii are interpolated
// at the closest core point.
func SimplexQuery(s *Simplex) SurfaceQuery {
	return func(p mgl32.Vec3) SurfacePoint {
		c, b := ClosestPointOnSimplex(s, p)
		_, r := s.Point(b)
		d := p.Sub(c)
		l := d.Len()
		n := mgl32.Vec3{0, 1, 0}
		if l > 1e-7 {
			n = d.Mul(1 / l)
		}
		return SurfacePoint{Bary: b, Point: c.Add(n.Mul(r)), Normal: n, Distance: l - r}
	}
}
