package collider

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/geometry"
)

// Evaluate returns the closest point on collider s to world point p.
// maxDistance bounds the search for geometry backed shapes; ok is false when
// nothing lies within it or the referenced geometry is missing.
func Evaluate(s Shape, t geometry.AffineTransform, g *Geometry, p mgl32.Vec3, maxDistance float32) (sp SurfacePoint, ok bool) {
	local := t.InverseTransformPoint(p)

	var lp, ln mgl32.Vec3
	switch s.Type {
	case Sphere:
		lp, ln = evaluateSphere(s, local)
		ok = true
	case Box:
		lp, ln = evaluateBox(s, local)
		ok = true
	case Capsule:
		lp, ln = evaluateCapsule(s, local)
		ok = true
	case HeightMap:
		hf := g.heightField(s.DataIndex)
		if hf == nil {
			return sp, false
		}
		lp, ln, ok = hf.closest(s, local)
	case TriangleMesh:
		m := g.mesh(s.DataIndex)
		if m == nil {
			return sp, false
		}
		radius := maxDistance / minScale(t.Scale)
		lp, ln, ok = m.closest(local, radius)
	case SignedDistanceField:
		f, found := g.distanceField(s.DataIndex)
		if !found {
			return sp, false
		}
		lp, ln, ok = f.closest(local)
	default:
		return sp, false
	}
	if !ok {
		return sp, false
	}

	sp.Point = t.TransformPoint(lp)
	sp.Normal = t.TransformNormal(ln)
	sp.Distance = p.Sub(sp.Point).Dot(sp.Normal)
	return sp, true
}

func minScale(s mgl32.Vec3) float32 {
	m := float32(math.Min(math.Abs(float64(s[0])), math.Min(math.Abs(float64(s[1])), math.Abs(float64(s[2])))))
	if m < 1e-6 {
		return 1
	}
	return m
}

func evaluateSphere(s Shape, p mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	d := p.Sub(s.Center)
	l := d.Len()
	n := mgl32.Vec3{0, 1, 0}
	if l > 1e-7 {
		n = d.Mul(1 / l)
	}
	return s.Center.Add(n.Mul(s.Size[0])), n
}

func evaluateBox(s Shape, p mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	h := s.Size.Mul(0.5)
	d := p.Sub(s.Center)

	inside := true
	for i := 0; i < 3; i++ {
		if d[i] < -h[i] || d[i] > h[i] {
			inside = false
			break
		}
	}

	if !inside {
		c := d
		for i := 0; i < 3; i++ {
			c[i] = float32(math.Max(float64(-h[i]), math.Min(float64(h[i]), float64(d[i]))))
		}
		n := safeDir(d.Sub(c), mgl32.Vec3{0, 1, 0})
		return c.Add(s.Center), n
	}

	// inside: project onto the nearest face
	axis, best := 0, float32(math.MaxFloat32)
	for i := 0; i < 3; i++ {
		if gap := h[i] - float32(math.Abs(float64(d[i]))); gap < best {
			axis, best = i, gap
		}
	}
	var n mgl32.Vec3
	c := d
	if d[axis] >= 0 {
		n[axis] = 1
		c[axis] = h[axis]
	} else {
		n[axis] = -1
		c[axis] = -h[axis]
	}
	return c.Add(s.Center), n
}

func evaluateCapsule(s Shape, p mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	a, b := capsuleSegment(s)
	c, _ := geometry.ClosestPointOnSegment(p, a, b)
	d := p.Sub(c)
	var fallback mgl32.Vec3
	fallback[(capsuleAxis(s)+1)%3] = 1
	n := safeDir(d, fallback)
	return c.Add(n.Mul(s.Size[0])), n
}

func safeDir(v, fallback mgl32.Vec3) mgl32.Vec3 {
	l := v.Len()
	if l < 1e-7 {
		return fallback
	}
	return v.Mul(1 / l)
}
