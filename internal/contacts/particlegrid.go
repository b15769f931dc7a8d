package contacts

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/geometry"
	"github.com/san-kum/flexsim/internal/grid"
)

const chunkSize = 64

// ParticleGrid indexes simplices in a multilevel grid and finds pairs
// within collision range.
type ParticleGrid struct {
	grid       *grid.MultilevelGrid[int]
	cellCoords []grid.CellCoords
	bounds     []geometry.Aabb
	placed     []bool

	// scratch for the moving simplices pass
	newCoords []grid.CellCoords
}

func NewParticleGrid() *ParticleGrid {
	return &ParticleGrid{grid: grid.New[int](1024)}
}

// Update recomputes simplex bounds and cells and moves simplices whose cell
// changed.
func (g *ParticleGrid) Update(in *Input) {
	n := in.Counts.SimplexCount()
	if n != len(g.cellCoords) {
		g.grid.Clear()
		g.cellCoords = make([]grid.CellCoords, n)
		g.bounds = make([]geometry.Aabb, n)
		g.placed = make([]bool, n)
		g.newCoords = make([]grid.CellCoords, n)
	}
	g.calculateCellCoords(in)
	g.updateGrid()
}

func (g *ParticleGrid) calculateCellCoords(in *Input) {
	flex.ParallelFor(len(g.bounds), chunkSize, func(start, end int) {
		for i := start; i < end; i++ {
			b := in.SimplexBounds(i)
			g.bounds[i] = b
			if b.IsEmpty() {
				g.newCoords[i] = grid.CellCoords{}
				continue
			}
			level := grid.GridLevelForSize(b.MaxAxisLength())
			c := grid.CellAt(b.Center(), level)
			if in.is2D() {
				c.Z = 0
			}
			g.newCoords[i] = c
		}
	})
}

func (g *ParticleGrid) updateGrid() {
	for i, c := range g.newCoords {
		if g.placed[i] && g.cellCoords[i] == c {
			continue
		}
		if g.placed[i] {
			old := g.cellCoords[i]
			g.grid.RemoveFromCells(grid.CellSpan{Min: old, Max: old}, i)
		}
		if g.bounds[i].IsEmpty() {
			g.placed[i] = false
			continue
		}
		g.grid.AddToCells(grid.CellSpan{Min: c, Max: c}, i)
		g.cellCoords[i] = c
		g.placed[i] = true
	}
	g.grid.RemoveEmpty()
}

// Bounds returns the bounds computed by the last Update.
func (g *ParticleGrid) Bounds() []geometry.Aabb { return g.bounds }

// CellCount is the number of non-empty cells.
func (g *ParticleGrid) CellCount() int { return g.grid.CellCount() }

// DebugCells returns the coordinates of every non-empty cell.
func (g *ParticleGrid) DebugCells() []grid.CellCoords {
	out := make([]grid.CellCoords, g.grid.CellCount())
	for i := range out {
		out[i] = g.grid.Cell(i).Coords
	}
	return out
}

// Query returns the simplices whose bounds overlap b, in ascending order.
func (g *ParticleGrid) Query(b geometry.Aabb) []int {
	var out []int
	for _, level := range g.grid.Levels() {
		// a simplex's bounds may reach half a cell past its own cell
		half := grid.CellSizeOfLevel(level) * 0.5
		span := grid.GetCellCoordsForBoundsAtLevel(b.Expand(half), level)
		span.Each(func(c grid.CellCoords) {
			ci, ok := g.grid.TryGetCellIndex(c)
			if !ok {
				return
			}
			for _, s := range g.grid.Cell(ci).Contents {
				if g.bounds[s].Overlaps(b) {
					out = append(out, s)
				}
			}
		})
	}
	sort.Ints(out)
	return out
}

// Result collects the output of one contact generation pass.
type Result struct {
	Contacts []Contact
	Fluid    []FluidInteraction
}

type chunkResult struct {
	contacts []Contact
	fluid    []FluidInteraction
}

// GenerateContacts finds all simplex pairs in range. Every unordered pair
// is visited once: same cell with a higher index, half the neighbouring
// cells of the same level, and the 27 (9 in 2D) cells around the parent
// at every coarser populated level. Output order follows simplex order.
func (g *ParticleGrid) GenerateContacts(in *Input) Result {
	n := len(g.cellCoords)
	levels := g.grid.Levels()

	half := HalfOffsets(in.is2D())
	full := FullOffsets(in.is2D())

	chunks := make([]chunkResult, flex.ChunkCount(n, chunkSize))
	flex.ParallelChunks(n, chunkSize, func(ci, start, end int) {
		out := &chunks[ci]
		var candidates []int
		for a := start; a < end; a++ {
			if !g.placed[a] {
				continue
			}
			candidates = candidates[:0]
			ca := g.cellCoords[a]

			if idx, ok := g.grid.TryGetCellIndex(ca); ok {
				for _, b := range g.grid.Cell(idx).Contents {
					if b > a {
						candidates = append(candidates, b)
					}
				}
			}
			for _, o := range half {
				if idx, ok := g.grid.TryGetCellIndex(o.Apply(ca)); ok {
					candidates = append(candidates, g.grid.Cell(idx).Contents...)
				}
			}
			for _, level := range levels {
				if level <= ca.Level {
					continue
				}
				parent := grid.GetParentCellCoords(ca, level)
				for _, o := range full {
					if idx, ok := g.grid.TryGetCellIndex(o.Apply(parent)); ok {
						candidates = append(candidates, g.grid.Cell(idx).Contents...)
					}
				}
			}

			// stable order within a simplex
			sort.Ints(candidates)
			for _, b := range candidates {
				if !g.bounds[a].Overlaps(g.bounds[b]) {
					continue
				}
				g.narrowPhase(in, a, b, out)
			}
		}
	})

	var res Result
	for _, c := range chunks {
		res.Contacts = append(res.Contacts, c.contacts...)
		res.Fluid = append(res.Fluid, c.fluid...)
	}
	return res
}

func sharesParticle(a, b []int) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func (g *ParticleGrid) narrowPhase(in *Input, a, b int, out *chunkResult) {
	var sa, sb Simplex
	pa := in.gather(a, &sa)
	pb := in.gather(b, &sb)
	if len(pa) == 0 || len(pb) == 0 || sharesParticle(pa, pb) {
		return
	}

	groupA, flagsA, filterA := in.simplexGroup(pa)
	groupB, flagsB, filterB := in.simplexGroup(pb)
	if !flex.FiltersCollide(filterA, filterB) {
		return
	}
	if groupA == groupB && flagsA&flagsB&flex.SelfCollide == 0 {
		return
	}

	if flagsA&flagsB&flex.Fluid != 0 && len(pa) == 1 && len(pb) == 1 {
		ia, ib := pa[0], pb[0]
		h := flex.Max(in.Particles.SmoothingRadii[ia], in.Particles.SmoothingRadii[ib])
		if sa.Positions[0].Sub(sb.Positions[0]).LenSqr() <= h*h {
			out.fluid = append(out.fluid, FluidInteraction{ParticleA: ia, ParticleB: ib})
		}
		return
	}

	iterations := in.Params.SurfaceCollisionIterations
	tolerance := in.Params.SurfaceCollisionTolerance
	baryA, sp := Optimize(SimplexQuery(&sb), &sa, centroid(sa.Size), iterations, tolerance)

	normal := sp.Normal
	dist := sp.Distance
	if len(pa) == 1 && len(pb) == 1 {
		dist = g.pointPointDistance(in, pa[0], pb[0], normal, dist)
	}
	if in.is2D() {
		normal[2] = 0
		normal = flex.SafeNormalize(normal)
	}

	va := in.simplexVelocity(pa, baryA)
	vb := in.simplexVelocity(pb, sp.Bary)
	if !speculative(dist, va.Sub(vb).Dot(normal), in) {
		return
	}

	c := Contact{
		BodyA:    a,
		BodyB:    b,
		PointA:   baryA,
		PointB:   sp.Bary,
		Normal:   normal.Vec4(0),
		Distance: dist,
	}
	c.CalculateBasis(va.Sub(vb))
	c.CalculateContactMassesA(in.simplexInvMass(pa, baryA), mgl32.Vec4{}, mgl32.Vec4{}, mgl32.QuatIdent(), mgl32.Vec4{}, false)
	c.CalculateContactMassesB(in.simplexInvMass(pb, sp.Bary), mgl32.Vec4{}, mgl32.Vec4{}, mgl32.QuatIdent(), mgl32.Vec4{}, false)
	out.contacts = append(out.contacts, c)
}

// pointPointDistance replaces spherical radii with ellipsoid extents along
// the contact normal.
func (g *ParticleGrid) pointPointDistance(in *Input, a, b int, n mgl32.Vec3, dist float32) float32 {
	p := in.Particles
	ra := maxRadius(p.Radii[a])
	rb := maxRadius(p.Radii[b])
	ea := geometry.EllipsoidRadius(n, p.Orientations[a], ClampRadii(p.Radii[a], in.Params.MaxAnisotropy))
	eb := geometry.EllipsoidRadius(n.Mul(-1), p.Orientations[b], ClampRadii(p.Radii[b], in.Params.MaxAnisotropy))
	return dist + (ra - ea) + (rb - eb)
}

// speculative reports whether a pair with gap dist and normal approach
// velocity vn may touch within the step.
func speculative(dist, vn float32, in *Input) bool {
	predicted := dist + flex.Min(vn, 0)*in.Dt*in.Params.ContinuousCollisionDetection
	return flex.Min(dist, predicted) <= in.Params.CollisionMargin
}

func centroid(size int) mgl32.Vec4 { return geometry.SimplexCentroid(size) }

// HalfOffsets returns the half neighbourhood for the simulation mode.
func HalfOffsets(is2D bool) []grid.Offset3 {
	if is2D {
		return grid.HalfNeighbours2D[:]
	}
	return grid.HalfNeighbours3D[:]
}

// FullOffsets returns the full neighbourhood including the centre.
func FullOffsets(is2D bool) []grid.Offset3 {
	if is2D {
		return grid.FullNeighbours2D[:]
	}
	return grid.FullNeighbours3D[:]
}
