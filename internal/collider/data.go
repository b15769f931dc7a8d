package collider

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/geometry"
)

// MeshData is a baked triangle mesh in collider space.
type MeshData struct {
	Vertices  []mgl32.Vec3
	Triangles [][3]int32
	// TwoSided meshes report unsigned distances; closed meshes use the
	// triangle winding to tell inside from outside.
	TwoSided bool

	Bounds geometry.Aabb
	bih    *BIH
}

// NewMeshData validates the mesh and builds its hierarchy.
func NewMeshData(vertices []mgl32.Vec3, triangles [][3]int32, twoSided bool) (*MeshData, error) {
	if len(vertices) == 0 || len(triangles) == 0 {
		return nil, &flex.GeometryError{Shape: "trianglemesh", Reason: "empty mesh"}
	}
	tb := make([]geometry.Aabb, len(triangles))
	bounds := geometry.EmptyAabb()
	for i, tri := range triangles {
		for _, v := range tri {
			if v < 0 || int(v) >= len(vertices) {
				return nil, &flex.GeometryError{
					Shape:  "trianglemesh",
					Reason: fmt.Sprintf("triangle %d references vertex %d of %d", i, v, len(vertices)),
				}
			}
		}
		tb[i] = geometry.AabbFromPoints(vertices[tri[0]], vertices[tri[1]], vertices[tri[2]])
		bounds = bounds.EncapsulateBounds(tb[i])
	}
	return &MeshData{
		Vertices:  vertices,
		Triangles: triangles,
		TwoSided:  twoSided,
		Bounds:    bounds,
		bih:       BuildBIH(tb),
	}, nil
}

func (m *MeshData) closest(p mgl32.Vec3, radius float32) (mgl32.Vec3, mgl32.Vec3, bool) {
	best := float32(math.MaxFloat32)
	var bp, bn mgl32.Vec3
	found := false

	m.bih.Query(geometry.AabbFromPoint(p, radius), func(i int) bool {
		tri := m.Triangles[i]
		a, b, c := m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]]
		cp, _ := geometry.ClosestPointOnTriangle(p, a, b, c)
		d := p.Sub(cp).LenSqr()
		if d < best {
			best = d
			bp = cp
			face := geometry.TriangleNormal(a, b, c)
			n := safeDir(p.Sub(cp), face)
			if !m.TwoSided && n.Dot(face) < 0 {
				n = n.Mul(-1)
			}
			bn = n
			found = true
		}
		return true
	})
	if !found || best > radius*radius {
		return bp, bn, false
	}
	return bp, bn, true
}

// HeightFieldData stores a regular grid of normalized heights. Samples are
// row major, Resolution[0] columns along x and Resolution[1] rows along z.
type HeightFieldData struct {
	Resolution [2]int
	Samples    []float32

	minSample, maxSample float32
}

func NewHeightFieldData(resolution [2]int, samples []float32) (*HeightFieldData, error) {
	if resolution[0] < 2 || resolution[1] < 2 {
		return nil, &flex.GeometryError{Shape: "heightmap", Reason: "resolution below 2x2"}
	}
	if len(samples) != resolution[0]*resolution[1] {
		return nil, &flex.GeometryError{
			Shape:  "heightmap",
			Reason: fmt.Sprintf("%d samples for %dx%d grid", len(samples), resolution[0], resolution[1]),
		}
	}
	hf := &HeightFieldData{Resolution: resolution, Samples: samples}
	hf.minSample, hf.maxSample = float32(math.Inf(1)), float32(math.Inf(-1))
	for _, s := range samples {
		if !flex.IsFinite(s) {
			return nil, &flex.GeometryError{Shape: "heightmap", Reason: "non-finite sample"}
		}
		hf.minSample = min(hf.minSample, s)
		hf.maxSample = max(hf.maxSample, s)
	}
	return hf, nil
}

func (h *HeightFieldData) vertex(s Shape, x, z int) mgl32.Vec3 {
	cw := s.Size[0] / float32(h.Resolution[0]-1)
	cd := s.Size[2] / float32(h.Resolution[1]-1)
	return mgl32.Vec3{
		float32(x) * cw,
		h.Samples[z*h.Resolution[0]+x] * s.Size[1],
		float32(z) * cd,
	}.Add(s.Center)
}

// closest searches the triangles of the cells around p's footprint. Points
// below the surface report a negative distance through the upward normal.
func (h *HeightFieldData) closest(s Shape, p mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3, bool) {
	cw := s.Size[0] / float32(h.Resolution[0]-1)
	cd := s.Size[2] / float32(h.Resolution[1]-1)
	q := p.Sub(s.Center)
	cx := flex.Clamp(int(math.Floor(float64(q[0]/cw))), 0, h.Resolution[0]-2)
	cz := flex.Clamp(int(math.Floor(float64(q[2]/cd))), 0, h.Resolution[1]-2)

	best := float32(math.MaxFloat32)
	var bp, bn mgl32.Vec3
	for z := max(cz-1, 0); z <= min(cz+1, h.Resolution[1]-2); z++ {
		for x := max(cx-1, 0); x <= min(cx+1, h.Resolution[0]-2); x++ {
			v00 := h.vertex(s, x, z)
			v10 := h.vertex(s, x+1, z)
			v01 := h.vertex(s, x, z+1)
			v11 := h.vertex(s, x+1, z+1)
			for _, tri := range [2][3]mgl32.Vec3{{v00, v01, v11}, {v00, v11, v10}} {
				cp, _ := geometry.ClosestPointOnTriangle(p, tri[0], tri[1], tri[2])
				if d := p.Sub(cp).LenSqr(); d < best {
					best = d
					bp = cp
					face := geometry.TriangleNormal(tri[0], tri[1], tri[2])
					n := safeDir(p.Sub(cp), face)
					if n.Dot(face) < 0 {
						n = n.Mul(-1)
					}
					bn = n
				}
			}
		}
	}
	return bp, bn, best < math.MaxFloat32
}

// DistanceFieldNode is one cube of an adaptive signed distance octree.
// Corners holds the distance at the eight cube corners, corner k lying on
// the +x side when bit 0 of k is set, +y for bit 1 and +z for bit 2.
// Children are eight consecutive nodes starting at FirstChild, which is
// relative to the field's first node and -1 for leaves.
type DistanceFieldNode struct {
	Center     mgl32.Vec3
	HalfSize   float32
	Corners    [8]float32
	FirstChild int32
}

func (n *DistanceFieldNode) leaf() bool { return n.FirstChild < 0 }

func (n *DistanceFieldNode) octant(p mgl32.Vec3) int32 {
	var k int32
	for a := 0; a < 3; a++ {
		if p[a] >= n.Center[a] {
			k |= 1 << a
		}
	}
	return k
}

func (n *DistanceFieldNode) interpolate(p mgl32.Vec3) float32 {
	lo := n.Center.Sub(mgl32.Vec3{n.HalfSize, n.HalfSize, n.HalfSize})
	t := p.Sub(lo).Mul(1 / (2 * n.HalfSize))
	for a := 0; a < 3; a++ {
		t[a] = flex.Clamp(t[a], 0, 1)
	}
	c := n.Corners
	x00 := flex.Lerp(c[0], c[1], t[0])
	x10 := flex.Lerp(c[2], c[3], t[0])
	x01 := flex.Lerp(c[4], c[5], t[0])
	x11 := flex.Lerp(c[6], c[7], t[0])
	return flex.Lerp(flex.Lerp(x00, x10, t[1]), flex.Lerp(x01, x11, t[1]), t[2])
}

func cornerOffset(k int, h float32) mgl32.Vec3 {
	o := mgl32.Vec3{-h, -h, -h}
	for a := 0; a < 3; a++ {
		if k&(1<<a) != 0 {
			o[a] = h
		}
	}
	return o
}

// DistanceFieldData is a baked distance octree. Nodes[0] is the root. A
// field added to a World is copied into the shared Geometry node pool.
type DistanceFieldData struct {
	Nodes []DistanceFieldNode
}

// NewDistanceFieldData checks that nodes form a well shaped octree.
func NewDistanceFieldData(nodes []DistanceFieldNode) (*DistanceFieldData, error) {
	if len(nodes) == 0 {
		return nil, &flex.GeometryError{Shape: "sdf", Reason: "no nodes"}
	}
	for i := range nodes {
		n := &nodes[i]
		if n.HalfSize <= 0 {
			return nil, &flex.GeometryError{Shape: "sdf", Reason: fmt.Sprintf("node %d has non-positive size", i)}
		}
		if !n.leaf() && (int(n.FirstChild) <= i || int(n.FirstChild)+8 > len(nodes)) {
			return nil, &flex.GeometryError{Shape: "sdf", Reason: fmt.Sprintf("node %d children out of range", i)}
		}
	}
	return &DistanceFieldData{Nodes: nodes}, nil
}

// BakeDistanceField samples fn into an octree over the cube enclosing
// bounds. Nodes are split down to cellSize where the surface may cross
// them or where trilinear interpolation misses fn by more than a tenth of
// a cell. Far from the surface the tree stays coarse.
func BakeDistanceField(bounds geometry.Aabb, cellSize float32, fn func(mgl32.Vec3) float32) (*DistanceFieldData, error) {
	if cellSize <= 0 {
		return nil, &flex.GeometryError{Shape: "sdf", Reason: "non-positive cell size"}
	}
	if bounds.IsEmpty() {
		return nil, &flex.GeometryError{Shape: "sdf", Reason: "empty bounds"}
	}
	b := &sdfBaker{fn: fn, cellSize: cellSize, tolerance: cellSize * 0.1}
	half := flex.Max(bounds.MaxAxisLength()*0.5, cellSize*0.5)
	b.nodes = append(b.nodes, DistanceFieldNode{})
	b.build(0, bounds.Center(), half)
	return NewDistanceFieldData(b.nodes)
}

type sdfBaker struct {
	fn        func(mgl32.Vec3) float32
	cellSize  float32
	tolerance float32
	nodes     []DistanceFieldNode
}

func (b *sdfBaker) build(i int, center mgl32.Vec3, half float32) {
	n := DistanceFieldNode{Center: center, HalfSize: half, FirstChild: -1}
	for k := 0; k < 8; k++ {
		n.Corners[k] = b.fn(center.Add(cornerOffset(k, half)))
	}
	if b.split(&n) {
		first := len(b.nodes)
		n.FirstChild = int32(first)
		b.nodes = append(b.nodes, make([]DistanceFieldNode, 8)...)
		b.nodes[i] = n
		h := half * 0.5
		for k := 0; k < 8; k++ {
			b.build(first+k, center.Add(cornerOffset(k, h)), h)
		}
		return
	}
	b.nodes[i] = n
}

func (b *sdfBaker) split(n *DistanceFieldNode) bool {
	if 2*n.HalfSize <= b.cellSize {
		return false
	}
	d := b.fn(n.Center)
	if flex.Abs(d) < n.HalfSize*float32(math.Sqrt(3)) {
		return true
	}
	checks := [...]mgl32.Vec3{
		{}, {n.HalfSize, 0, 0}, {-n.HalfSize, 0, 0},
		{0, n.HalfSize, 0}, {0, -n.HalfSize, 0},
		{0, 0, n.HalfSize}, {0, 0, -n.HalfSize},
	}
	for _, o := range checks {
		p := n.Center.Add(o)
		if flex.Abs(n.interpolate(p)-b.fn(p)) > b.tolerance {
			return true
		}
	}
	return false
}

func (f DistanceFieldData) Bounds() geometry.Aabb {
	r := f.Nodes[0]
	h := mgl32.Vec3{r.HalfSize, r.HalfSize, r.HalfSize}
	return geometry.Aabb{Min: r.Center.Sub(h), Max: r.Center.Add(h)}
}

// leafAt descends from the root to the leaf containing p, which must lie
// inside the root cube.
func (f DistanceFieldData) leafAt(p mgl32.Vec3) *DistanceFieldNode {
	n := &f.Nodes[0]
	for !n.leaf() {
		n = &f.Nodes[n.FirstChild+n.octant(p)]
	}
	return n
}

// Sample returns the interpolated distance at p. Points outside the root
// cube are clamped to it and the clamping distance is added.
func (f DistanceFieldData) Sample(p mgl32.Vec3) float32 {
	c := f.Bounds().ClosestPoint(p)
	outside := p.Sub(c).Len()
	return f.leafAt(c).interpolate(c) + outside
}

// Gradient is the central difference gradient of Sample, stepped by half
// the leaf size at p.
func (f DistanceFieldData) Gradient(p mgl32.Vec3) mgl32.Vec3 {
	e := f.leafAt(f.Bounds().ClosestPoint(p)).HalfSize * 0.5
	return mgl32.Vec3{
		f.Sample(p.Add(mgl32.Vec3{e, 0, 0})) - f.Sample(p.Sub(mgl32.Vec3{e, 0, 0})),
		f.Sample(p.Add(mgl32.Vec3{0, e, 0})) - f.Sample(p.Sub(mgl32.Vec3{0, e, 0})),
		f.Sample(p.Add(mgl32.Vec3{0, 0, e})) - f.Sample(p.Sub(mgl32.Vec3{0, 0, e})),
	}.Mul(1 / (2 * e))
}

func (f DistanceFieldData) closest(p mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3, bool) {
	d := f.Sample(p)
	n := safeDir(f.Gradient(p), mgl32.Vec3{0, 1, 0})
	return p.Sub(n.Mul(d)), n, true
}

// DistanceFieldHeader locates one field inside Geometry.DistanceFieldNodes.
type DistanceFieldHeader struct {
	FirstNode int
	NodeCount int
}

// Geometry owns the baked data referenced by Shape.DataIndex. Distance
// fields share a single node pool and are addressed through headers.
type Geometry struct {
	Meshes             []*MeshData
	HeightFields       []*HeightFieldData
	DistanceFields     []DistanceFieldHeader
	DistanceFieldNodes []DistanceFieldNode
}

func (g *Geometry) mesh(i int) *MeshData {
	if g == nil || i < 0 || i >= len(g.Meshes) {
		return nil
	}
	return g.Meshes[i]
}

func (g *Geometry) heightField(i int) *HeightFieldData {
	if g == nil || i < 0 || i >= len(g.HeightFields) {
		return nil
	}
	return g.HeightFields[i]
}

func (g *Geometry) distanceField(i int) (DistanceFieldData, bool) {
	if g == nil || i < 0 || i >= len(g.DistanceFields) {
		return DistanceFieldData{}, false
	}
	h := g.DistanceFields[i]
	return DistanceFieldData{Nodes: g.DistanceFieldNodes[h.FirstNode : h.FirstNode+h.NodeCount]}, true
}
