package contacts

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/collider"
	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/geometry"
	"github.com/san-kum/flexsim/internal/grid"
)

// ColliderGrid indexes collider bounds per level. It is rebuilt every step
// since colliders may move arbitrarily between steps.
type ColliderGrid struct {
	grid *grid.MultilevelGrid[int]
}

func NewColliderGrid() *ColliderGrid {
	return &ColliderGrid{grid: grid.New[int](256)}
}

// Update inserts every non-trigger collider into the cells its bounds span
// at the level matching its size.
func (g *ColliderGrid) Update(w *collider.World, is2D bool) {
	g.grid.Clear()
	shapes := w.Shapes()
	bounds := w.Bounds()
	for i, s := range shapes {
		b := bounds[i]
		if s.Trigger || b.IsEmpty() {
			continue
		}
		if is2D {
			b = b.Flatten()
		}
		level := grid.GridLevelForSize(b.MaxAxisLength())
		g.grid.AddToCells(grid.GetCellCoordsForBoundsAtLevel(b, level), i)
	}
}

// CellCount is the number of non-empty cells.
func (g *ColliderGrid) CellCount() int { return g.grid.CellCount() }

// candidates appends the colliders sharing a cell with b, deduplicated and
// sorted.
func (g *ColliderGrid) candidates(b geometry.Aabb, levels []int32, out []int) []int {
	out = out[:0]
	for _, level := range levels {
		span := grid.GetCellCoordsForBoundsAtLevel(b, level)
		span.Each(func(c grid.CellCoords) {
			ci, ok := g.grid.TryGetCellIndex(c)
			if !ok {
				return
			}
			for _, id := range g.grid.Cell(ci).Contents {
				dup := false
				for _, e := range out {
					if e == id {
						dup = true
						break
					}
				}
				if !dup {
					out = append(out, id)
				}
			}
		})
	}
	sort.Ints(out)
	return out
}

// GenerateContacts produces simplex-collider contacts for every simplex
// whose bounds overlap a collider's bounds. simplexBounds come from the
// particle grid update of the same step.
func (g *ColliderGrid) GenerateContacts(in *Input, w *collider.World, simplexBounds []geometry.Aabb) []Contact {
	n := len(simplexBounds)
	if n == 0 || g.grid.CellCount() == 0 {
		return nil
	}
	levels := g.grid.Levels()
	shapes := w.Shapes()
	transforms := w.Transforms()
	colliderBounds := w.Bounds()
	rigidbodies := w.Rigidbodies()

	chunks := make([][]Contact, flex.ChunkCount(n, chunkSize))
	flex.ParallelChunks(n, chunkSize, func(ci, start, end int) {
		var ids []int
		for a := start; a < end; a++ {
			sb := simplexBounds[a]
			if sb.IsEmpty() {
				continue
			}
			ids = g.candidates(sb, levels, ids)
			for _, id := range ids {
				if !sb.Overlaps(colliderBounds[id]) {
					continue
				}
				if c, ok := colliderContact(in, a, id, shapes[id], transforms[id], &w.Geometry, rigidbodies); ok {
					chunks[ci] = append(chunks[ci], c)
				}
			}
		}
	})

	var out []Contact
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// ColliderQuery wraps collider evaluation as a SurfaceQuery.
func ColliderQuery(s collider.Shape, t geometry.AffineTransform, geo *collider.Geometry, maxDistance float32, is2D bool) SurfaceQuery {
	return func(p mgl32.Vec3) SurfacePoint {
		sp, ok := collider.Evaluate(s, t, geo, p, maxDistance)
		if !ok {
			return SurfacePoint{Point: p, Normal: mgl32.Vec3{0, 1, 0}, Distance: maxDistance * 2}
		}
		if is2D {
			sp.Normal[2] = 0
			sp.Normal = flex.SafeNormalize(sp.Normal)
		}
		return SurfacePoint{Point: sp.Point, Normal: sp.Normal, Distance: sp.Distance}
	}
}

func colliderContact(in *Input, a, id int, s collider.Shape, t geometry.AffineTransform, geo *collider.Geometry, rigidbodies []collider.Rigidbody) (Contact, bool) {
	var sa Simplex
	pa := in.gather(a, &sa)
	if len(pa) == 0 {
		return Contact{}, false
	}
	_, _, filter := in.simplexGroup(pa)
	if !flex.FiltersCollide(filter, s.Filter) {
		return Contact{}, false
	}

	maxDistance := in.Params.CollisionMargin + s.ContactOffset
	for _, p := range pa {
		v := in.Particles.Velocities[p].Vec3().Len() * in.Dt * in.Params.ContinuousCollisionDetection
		maxDistance = flex.Max(maxDistance, v+maxRadius(in.Particles.Radii[p])+in.Params.CollisionMargin)
	}
	maxDistance += maxRadiusOf(&sa)

	query := ColliderQuery(s, t, geo, maxDistance, in.is2D())
	bary, sp := Optimize(query, &sa, centroid(sa.Size), in.Params.SurfaceCollisionIterations, in.Params.SurfaceCollisionTolerance)
	if len(pa) == 1 {
		p := in.Particles
		ra := maxRadius(p.Radii[pa[0]])
		ea := geometry.EllipsoidRadius(sp.Normal, p.Orientations[pa[0]], ClampRadii(p.Radii[pa[0]], in.Params.MaxAnisotropy))
		sp.Distance += ra - ea
	}
	sp.Distance -= s.ContactOffset

	point, _ := sa.Point(bary)
	va := in.simplexVelocity(pa, bary)
	var vb mgl32.Vec3
	if s.Rigidbody >= 0 && s.Rigidbody < len(rigidbodies) {
		vb = rigidbodies[s.Rigidbody].VelocityAtPoint(point)
	}
	if !speculative(sp.Distance, va.Sub(vb).Dot(sp.Normal), in) {
		return Contact{}, false
	}

	c := Contact{
		BodyA:    a,
		BodyB:    id,
		PointA:   bary,
		PointB:   sp.Point.Vec4(0),
		Normal:   sp.Normal.Vec4(0),
		Distance: sp.Distance,
	}
	c.CalculateBasis(va.Sub(vb))

	rolling := false
	if len(pa) == 1 {
		if m := int(in.Particles.MaterialIndices[pa[0]]); m >= 0 && m < len(in.Materials) {
			rolling = in.Materials[m].RollingContacts && in.Particles.InvRotationalMasses[pa[0]] > 0
		}
	}
	p0 := pa[0]
	contactPoint := point.Sub(sp.Normal.Mul(maxRadius(in.Particles.Radii[p0]))).Vec4(0)
	c.CalculateContactMassesA(in.simplexInvMass(pa, bary), in.Particles.InvInertiaTensors[p0],
		in.Particles.Positions[p0], in.Particles.Orientations[p0], contactPoint, rolling)
	c.CalculateContactMassesB(0, mgl32.Vec4{}, mgl32.Vec4{}, mgl32.QuatIdent(), mgl32.Vec4{}, false)
	return c, true
}

func maxRadiusOf(s *Simplex) float32 {
	var r float32
	for i := 0; i < s.Size; i++ {
		r = flex.Max(r, s.Radii[i])
	}
	return r
}
