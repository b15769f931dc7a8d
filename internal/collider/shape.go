// Package collider holds collider shapes, the baked geometry they reference
// and the World that owns them. Collider evaluation is a closed switch over
// ShapeType returning the closest surface point in solver space.
package collider

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/geometry"
)

type ShapeType int

const (
	Sphere ShapeType = iota
	Box
	Capsule
	HeightMap
	TriangleMesh
	SignedDistanceField
)

func (s ShapeType) String() string {
	switch s {
	case Sphere:
		return "sphere"
	case Box:
		return "box"
	case Capsule:
		return "capsule"
	case HeightMap:
		return "heightmap"
	case TriangleMesh:
		return "trianglemesh"
	case SignedDistanceField:
		return "sdf"
	}
	return "unknown"
}

// Shape is the dense, solver-facing description of a collider. Size is
// interpreted per type:
//
//	Sphere        Size.X radius
//	Box           Size full extents
//	Capsule       Size.X radius, Size.Y total height, Size.Z axis (0, 1 or 2)
//	HeightMap     Size.X width, Size.Y height scale, Size.Z depth
//	TriangleMesh  unused, vertices are in collider space
//	SDF           unused
type Shape struct {
	Type          ShapeType
	Center        mgl32.Vec3
	Size          mgl32.Vec3
	ContactOffset float32
	// DataIndex selects baked geometry for meshes, height maps and SDFs.
	DataIndex int
	Rigidbody int
	Material  int
	Filter    uint32
	Trigger   bool
}

// Rigidbody is the velocity state of a body colliders may be attached to.
// Coupling is one way: the solver reads it and never writes back.
type Rigidbody struct {
	LinearVelocity  mgl32.Vec3
	AngularVelocity mgl32.Vec3
	CenterOfMass    mgl32.Vec3
	InverseMass     float32
	Kinematic       bool
}

// VelocityAtPoint returns the body's velocity at world point p.
func (r Rigidbody) VelocityAtPoint(p mgl32.Vec3) mgl32.Vec3 {
	return r.LinearVelocity.Add(r.AngularVelocity.Cross(p.Sub(r.CenterOfMass)))
}

// SurfacePoint is the result of evaluating a collider at a query point.
// Distance is signed: negative inside the collider.
type SurfacePoint struct {
	Point    mgl32.Vec3
	Normal   mgl32.Vec3
	Distance float32
}

func capsuleAxis(s Shape) int {
	a := int(s.Size[2])
	if a < 0 || a > 2 {
		return 1
	}
	return a
}

func capsuleSegment(s Shape) (mgl32.Vec3, mgl32.Vec3) {
	half := s.Size[1]*0.5 - s.Size[0]
	if half < 0 {
		half = 0
	}
	var d mgl32.Vec3
	d[capsuleAxis(s)] = half
	return s.Center.Sub(d), s.Center.Add(d)
}

// LocalBounds returns the bounds of s in collider space.
func LocalBounds(s Shape, g *Geometry) geometry.Aabb {
	switch s.Type {
	case Sphere:
		return geometry.AabbFromPoint(s.Center, s.Size[0])
	case Box:
		h := s.Size.Mul(0.5)
		return geometry.Aabb{Min: s.Center.Sub(h), Max: s.Center.Add(h)}
	case Capsule:
		a, b := capsuleSegment(s)
		return geometry.AabbFromPoints(a, b).Expand(s.Size[0])
	case HeightMap:
		if hf := g.heightField(s.DataIndex); hf != nil {
			return geometry.Aabb{
				Min: mgl32.Vec3{0, hf.minSample * s.Size[1], 0}.Add(s.Center),
				Max: mgl32.Vec3{s.Size[0], hf.maxSample * s.Size[1], s.Size[2]}.Add(s.Center),
			}
		}
	case TriangleMesh:
		if m := g.mesh(s.DataIndex); m != nil {
			return m.Bounds
		}
	case SignedDistanceField:
		if f, ok := g.distanceField(s.DataIndex); ok {
			return f.Bounds()
		}
	}
	return geometry.EmptyAabb()
}

// WorldBounds returns the solver-space bounds of s expanded by its contact
// offset.
func WorldBounds(s Shape, t geometry.AffineTransform, g *Geometry) geometry.Aabb {
	b := LocalBounds(s, g)
	if b.IsEmpty() {
		return b
	}
	return b.Transform(t).Expand(s.ContactOffset)
}
