package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// BarycentricPoint returns Σ b[i]·p[i] over the first len(p) vertices.
func BarycentricPoint(p []mgl32.Vec3, b mgl32.Vec4) mgl32.Vec3 {
	var out mgl32.Vec3
	for i := range p {
		out = out.Add(p[i].Mul(b[i]))
	}
	return out
}

// BarycentricWeightSq is Σ b[i]² over size vertices. Multiplying it by
// per-vertex inverse masses gives the effective inverse mass at the point.
func BarycentricWeightSq(b mgl32.Vec4, size int) float32 {
	var s float32
	for i := 0; i < size; i++ {
		s += b[i] * b[i]
	}
	return s
}

// SimplexCentroid returns uniform barycentric weights for size vertices.
func SimplexCentroid(size int) mgl32.Vec4 {
	var b mgl32.Vec4
	if size < 1 {
		return b
	}
	w := 1 / float32(size)
	for i := 0; i < size && i < 4; i++ {
		b[i] = w
	}
	return b
}

// ClosestPointOnSegment returns the closest point to p on segment ab and its
// parameter along the segment.
func ClosestPointOnSegment(p, a, b mgl32.Vec3) (mgl32.Vec3, float32) {
	ab := b.Sub(a)
	den := ab.Dot(ab)
	if den < 1e-12 {
		return a, 0
	}
	t := p.Sub(a).Dot(ab) / den
	t = float32(math.Max(0, math.Min(1, float64(t))))
	return a.Add(ab.Mul(t)), t
}

// ClosestPointOnTriangle returns the closest point to p on triangle abc and
// its barycentric coordinates.
func ClosestPointOnTriangle(p, a, b, c mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)
	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a, mgl32.Vec3{1, 0, 0}
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b, mgl32.Vec3{0, 1, 0}
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return a.Add(ab.Mul(v)), mgl32.Vec3{1 - v, v, 0}
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c, mgl32.Vec3{0, 0, 1}
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return a.Add(ac.Mul(w)), mgl32.Vec3{1 - w, 0, w}
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return b.Add(c.Sub(b).Mul(w)), mgl32.Vec3{0, 1 - w, w}
	}

	den := 1 / (va + vb + vc)
	v := vb * den
	w := vc * den
	return a.Add(ab.Mul(v)).Add(ac.Mul(w)), mgl32.Vec3{1 - v - w, v, w}
}

// TriangleNormal returns the unit normal of abc, or zero when degenerate.
func TriangleNormal(a, b, c mgl32.Vec3) mgl32.Vec3 {
	return safeNormalize(b.Sub(a).Cross(c.Sub(a)))
}

// SignedTetVolume returns the signed volume of the tetrahedron formed by
// the origin and triangle abc.
func SignedTetVolume(a, b, c mgl32.Vec3) float32 {
	return a.Cross(b).Dot(c) / 6
}

// RayTriangle intersects a ray with triangle abc using Möller–Trumbore and
// returns the hit parameter.
func RayTriangle(origin, dir, a, b, c mgl32.Vec3) (float32, bool) {
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	h := dir.Cross(e2)
	det := e1.Dot(h)
	if det > -1e-8 && det < 1e-8 {
		return 0, false
	}
	inv := 1 / det
	s := origin.Sub(a)
	u := inv * s.Dot(h)
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := inv * dir.Dot(q)
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := inv * e2.Dot(q)
	return t, t >= 0
}

// EllipsoidRadius returns the extent of an ellipsoid with principal radii
// and orientation q along the unit direction n.
func EllipsoidRadius(n mgl32.Vec3, q mgl32.Quat, radii mgl32.Vec3) float32 {
	local := q.Conjugate().Rotate(n)
	d := mgl32.Vec3{local[0] / radii[0], local[1] / radii[1], local[2] / radii[2]}
	sq := d.Dot(d)
	if sq > 1e-12 && !math.IsInf(float64(sq), 0) {
		return float32(math.Sqrt(float64(1 / sq)))
	}
	return radii[0]
}
