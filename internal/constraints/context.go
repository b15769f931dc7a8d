package constraints

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/collider"
	"github.com/san-kum/flexsim/internal/contacts"
	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/geometry"
	"github.com/san-kum/flexsim/internal/particles"
)

// Stats counts numerical problems absorbed while solving. Counters are
// updated from worker goroutines.
type Stats struct {
	NaNCorrections        atomic.Int64
	DegenerateConstraints atomic.Int64
	BatchOverflow         atomic.Int64
}

// Context is the per step view the constraint families read and write.
type Context struct {
	Particles *particles.Data
	Simplices []int
	Counts    contacts.SimplexCounts
	Params    flex.SolverParameters
	Materials []flex.CollisionMaterial

	Shapes      []collider.Shape
	Transforms  []geometry.AffineTransform
	Rigidbodies []collider.Rigidbody
	World       *collider.World

	Stats *Stats
}

func (c *Context) degenerate() {
	if c.Stats != nil {
		c.Stats.DegenerateConstraints.Add(1)
	}
}

func (c *Context) is2D() bool { return c.Params.Mode == flex.Mode2D }

const applyChunk = 256

// apply commits the averaged position and orientation deltas of every
// particle. Non finite deltas are dropped and counted.
func (c *Context) apply(sor float32) {
	d := c.Particles
	flex.ParallelFor(d.Len(), applyChunk, func(start, end int) {
		var nan int64
		for i := start; i < end; i++ {
			if d.PositionCounts[i] > 0 {
				if !flex.Vec4Finite(d.PositionDeltas[i]) {
					d.PositionDeltas[i] = mgl32.Vec4{}
					d.PositionCounts[i] = 0
					nan++
				} else {
					d.ApplyPositionDelta(i, sor)
					if c.is2D() {
						d.Positions[i][2] = 0
					}
				}
			}
			if d.OrientationCounts[i] > 0 {
				q := d.OrientationDeltas[i]
				if !flex.Vec4Finite(mgl32.Vec4{q.V[0], q.V[1], q.V[2], q.W}) {
					d.OrientationDeltas[i] = mgl32.Quat{}
					d.OrientationCounts[i] = 0
					nan++
				} else {
					d.ApplyOrientationDelta(i, sor)
				}
			}
		}
		if nan > 0 && c.Stats != nil {
			c.Stats.NaNCorrections.Add(nan)
		}
	})
}

// simplexPoint returns the barycentric position of simplex s and the
// barycentric sum of inverse masses Σ b²w.
func (c *Context) simplexPoint(s int, bary mgl32.Vec4) (mgl32.Vec3, float32, float32) {
	start, size := c.Counts.StartAndSize(s)
	var p mgl32.Vec3
	var w, r float32
	d := c.Particles
	for k := 0; k < size; k++ {
		i := c.Simplices[start+k]
		p = p.Add(d.Positions[i].Vec3().Mul(bary[k]))
		w += bary[k] * bary[k] * d.InvMasses[i]
		r += bary[k] * flex.Max(d.Radii[i][0], flex.Max(d.Radii[i][1], d.Radii[i][2]))
	}
	return p, w, r
}

// simplexDisplacement is the barycentric displacement of simplex s since
// the substep started.
func (c *Context) simplexDisplacement(s int, bary mgl32.Vec4) mgl32.Vec3 {
	start, size := c.Counts.StartAndSize(s)
	var v mgl32.Vec3
	d := c.Particles
	for k := 0; k < size; k++ {
		i := c.Simplices[start+k]
		v = v.Add(d.Positions[i].Sub(d.PrevPositions[i]).Vec3().Mul(bary[k]))
	}
	return v
}

// simplexRadius returns the contact radius of simplex s along n. Single
// particles use their ellipsoid extent.
func (c *Context) simplexRadius(s int, bary mgl32.Vec4, n mgl32.Vec3, r float32) float32 {
	start, size := c.Counts.StartAndSize(s)
	if size != 1 {
		return r
	}
	i := c.Simplices[start]
	radii := contacts.ClampRadii(c.Particles.Radii[i], c.Params.MaxAnisotropy)
	return geometry.EllipsoidRadius(n, c.Particles.Orientations[i], radii)
}

// addSimplexDelta distributes correction dir*magnitude over the particles
// of simplex s weighted by barycentric coordinate and inverse mass.
func (c *Context) addSimplexDelta(s int, bary mgl32.Vec4, delta mgl32.Vec3) {
	start, size := c.Counts.StartAndSize(s)
	d := c.Particles
	for k := 0; k < size; k++ {
		i := c.Simplices[start+k]
		if w := d.InvMasses[i]; w > 0 {
			d.AddPositionDelta(i, delta.Mul(bary[k]*w))
		}
	}
}

// simplexMaterial returns the material index of the first particle of s.
func (c *Context) simplexMaterial(s int) int {
	start, _ := c.Counts.StartAndSize(s)
	return int(c.Particles.MaterialIndices[c.Simplices[start]])
}

func (c *Context) material(a, b int) flex.CollisionMaterial {
	if a >= len(c.Materials) {
		a = -1
	}
	if b >= len(c.Materials) {
		b = -1
	}
	return flex.CombineMaterials(c.Materials, a, b)
}

// xpbd returns the multiplier change for constraint value cval, current
// multiplier lambda, gradient weight w and compliance over h².
func xpbd(cval, lambda, w, compliance, h float32) float32 {
	alpha := compliance / (h * h)
	den := w + alpha
	if den <= 0 {
		return 0
	}
	return (-cval - alpha*lambda) / den
}
