package collider

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/geometry"
)

// Desc describes a collider as registered by the caller. Material and
// Rigidbody are optional; flex.InvalidHandle means none.
type Desc struct {
	Type          ShapeType
	Center        mgl32.Vec3
	Size          mgl32.Vec3
	ContactOffset float32
	DataIndex     int
	Rigidbody     flex.Handle
	Material      flex.Handle
	Filter        uint32
	Trigger       bool
}

// dense is a swap-remove array addressed through generation checked
// handles. The arena maps a handle to the dense index of its value.
type dense[T any] struct {
	arena  flex.Arena[int]
	values []T
	owners []flex.Handle
}

func (d *dense[T]) add(v T) flex.Handle {
	h := d.arena.Add(len(d.values))
	d.values = append(d.values, v)
	d.owners = append(d.owners, h)
	return h
}

func (d *dense[T]) index(h flex.Handle) (int, error) {
	return d.arena.Get(h)
}

func (d *dense[T]) remove(h flex.Handle) (int, error) {
	i, err := d.arena.Get(h)
	if err != nil {
		return -1, err
	}
	last := len(d.values) - 1
	if i != last {
		d.values[i] = d.values[last]
		d.owners[i] = d.owners[last]
		if err := d.arena.Set(d.owners[i], i); err != nil {
			return -1, err
		}
	}
	var zero T
	d.values[last] = zero
	d.values = d.values[:last]
	d.owners = d.owners[:last]
	return i, d.arena.Remove(h)
}

// World owns colliders, their transforms, materials and rigidbodies. It is
// mutated between steps only; the solver reads it concurrently while
// stepping.
type World struct {
	Geometry Geometry

	colliders   dense[Desc]
	transforms  []geometry.AffineTransform
	materials   dense[flex.CollisionMaterial]
	rigidbodies dense[Rigidbody]

	shapes []Shape
	bounds []geometry.Aabb
	dirty  bool
}

// NewWorld returns an empty collider world.
func NewWorld() *World {
	return &World{}
}

func (w *World) validate(d Desc) error {
	name := d.Type.String()
	switch d.Type {
	case Sphere:
		if d.Size[0] <= 0 {
			return &flex.GeometryError{Shape: name, Reason: "non-positive radius"}
		}
	case Box:
		if d.Size[0] < 0 || d.Size[1] < 0 || d.Size[2] < 0 {
			return &flex.GeometryError{Shape: name, Reason: "negative extents"}
		}
	case Capsule:
		if d.Size[0] <= 0 || d.Size[1] < 0 {
			return &flex.GeometryError{Shape: name, Reason: "non-positive radius or negative height"}
		}
	case HeightMap:
		if w.Geometry.heightField(d.DataIndex) == nil {
			return &flex.GeometryError{Shape: name, Reason: fmt.Sprintf("no height field %d", d.DataIndex)}
		}
		if d.Size[0] <= 0 || d.Size[2] <= 0 {
			return &flex.GeometryError{Shape: name, Reason: "non-positive footprint"}
		}
	case TriangleMesh:
		if w.Geometry.mesh(d.DataIndex) == nil {
			return &flex.GeometryError{Shape: name, Reason: fmt.Sprintf("no mesh %d", d.DataIndex)}
		}
	case SignedDistanceField:
		if _, ok := w.Geometry.distanceField(d.DataIndex); !ok {
			return &flex.GeometryError{Shape: name, Reason: fmt.Sprintf("no distance field %d", d.DataIndex)}
		}
	default:
		return &flex.GeometryError{Shape: name, Reason: "unknown shape type"}
	}
	if d.ContactOffset < 0 {
		return &flex.GeometryError{Shape: name, Reason: "negative contact offset"}
	}
	if d.Material.Valid() {
		if _, err := w.materials.index(d.Material); err != nil {
			return fmt.Errorf("collider material: %w", err)
		}
	}
	if d.Rigidbody.Valid() {
		if _, err := w.rigidbodies.index(d.Rigidbody); err != nil {
			return fmt.Errorf("collider rigidbody: %w", err)
		}
	}
	return nil
}

func validTransform(t geometry.AffineTransform) error {
	if t.Scale[0] == 0 || t.Scale[1] == 0 || t.Scale[2] == 0 {
		return &flex.GeometryError{Shape: "transform", Reason: "zero scale"}
	}
	if !flex.Vec3Finite(t.Translation) || !flex.Vec3Finite(t.Scale) {
		return &flex.GeometryError{Shape: "transform", Reason: "non-finite component"}
	}
	return nil
}

// AddCollider validates d and registers it. Nothing is modified on error.
func (w *World) AddCollider(d Desc, t geometry.AffineTransform) (flex.Handle, error) {
	if err := w.validate(d); err != nil {
		return flex.InvalidHandle, err
	}
	if err := validTransform(t); err != nil {
		return flex.InvalidHandle, err
	}
	h := w.colliders.add(d)
	w.transforms = append(w.transforms, t)
	w.dirty = true
	return h, nil
}

// UpdateCollider replaces the description of an existing collider.
func (w *World) UpdateCollider(h flex.Handle, d Desc) error {
	i, err := w.colliders.index(h)
	if err != nil {
		return err
	}
	if err := w.validate(d); err != nil {
		return err
	}
	w.colliders.values[i] = d
	w.dirty = true
	return nil
}

// SetTransform moves a collider.
func (w *World) SetTransform(h flex.Handle, t geometry.AffineTransform) error {
	i, err := w.colliders.index(h)
	if err != nil {
		return err
	}
	if err := validTransform(t); err != nil {
		return err
	}
	w.transforms[i] = t
	w.dirty = true
	return nil
}

// Transform returns the current transform of a collider.
func (w *World) Transform(h flex.Handle) (geometry.AffineTransform, error) {
	i, err := w.colliders.index(h)
	if err != nil {
		return geometry.AffineTransform{}, err
	}
	return w.transforms[i], nil
}

// ColliderIndex returns the dense index of a collider, valid until the next
// removal.
func (w *World) ColliderIndex(h flex.Handle) (int, error) {
	return w.colliders.index(h)
}

func (w *World) RemoveCollider(h flex.Handle) error {
	i, err := w.colliders.index(h)
	if err != nil {
		return err
	}
	last := len(w.transforms) - 1
	w.transforms[i] = w.transforms[last]
	w.transforms = w.transforms[:last]
	if _, err := w.colliders.remove(h); err != nil {
		return err
	}
	w.dirty = true
	return nil
}

func (w *World) AddMaterial(m flex.CollisionMaterial) flex.Handle {
	w.dirty = true
	return w.materials.add(m)
}

func (w *World) SetMaterial(h flex.Handle, m flex.CollisionMaterial) error {
	i, err := w.materials.index(h)
	if err != nil {
		return err
	}
	w.materials.values[i] = m
	return nil
}

// RemoveMaterial releases a material. Colliders still referencing it fall
// back to no material.
func (w *World) RemoveMaterial(h flex.Handle) error {
	if _, err := w.materials.remove(h); err != nil {
		return err
	}
	w.dirty = true
	return nil
}

// MaterialIndex resolves a material handle to its dense index.
func (w *World) MaterialIndex(h flex.Handle) (int, error) {
	return w.materials.index(h)
}

func (w *World) AddRigidbody(r Rigidbody) flex.Handle {
	w.dirty = true
	return w.rigidbodies.add(r)
}

func (w *World) SetRigidbody(h flex.Handle, r Rigidbody) error {
	i, err := w.rigidbodies.index(h)
	if err != nil {
		return err
	}
	w.rigidbodies.values[i] = r
	return nil
}

func (w *World) RemoveRigidbody(h flex.Handle) error {
	if _, err := w.rigidbodies.remove(h); err != nil {
		return err
	}
	w.dirty = true
	return nil
}

// AddMesh bakes a triangle mesh and returns its data index.
func (w *World) AddMesh(vertices []mgl32.Vec3, triangles [][3]int32, twoSided bool) (int, error) {
	m, err := NewMeshData(vertices, triangles, twoSided)
	if err != nil {
		return -1, err
	}
	w.Geometry.Meshes = append(w.Geometry.Meshes, m)
	return len(w.Geometry.Meshes) - 1, nil
}

func (w *World) AddHeightField(resolution [2]int, samples []float32) (int, error) {
	hf, err := NewHeightFieldData(resolution, samples)
	if err != nil {
		return -1, err
	}
	w.Geometry.HeightFields = append(w.Geometry.HeightFields, hf)
	return len(w.Geometry.HeightFields) - 1, nil
}

// AddDistanceField copies f into the shared node pool and returns the
// index colliders use as DataIndex.
func (w *World) AddDistanceField(f *DistanceFieldData) (int, error) {
	if f == nil {
		return -1, &flex.GeometryError{Shape: "sdf", Reason: "nil field"}
	}
	if _, err := NewDistanceFieldData(f.Nodes); err != nil {
		return -1, err
	}
	g := &w.Geometry
	g.DistanceFields = append(g.DistanceFields, DistanceFieldHeader{
		FirstNode: len(g.DistanceFieldNodes),
		NodeCount: len(f.Nodes),
	})
	g.DistanceFieldNodes = append(g.DistanceFieldNodes, f.Nodes...)
	return len(g.DistanceFields) - 1, nil
}

// Advance moves colliders attached to kinematic rigidbodies by their
// velocities.
func (w *World) Advance(dt float32) {
	for i, d := range w.colliders.values {
		if !d.Rigidbody.Valid() {
			continue
		}
		ri, err := w.rigidbodies.index(d.Rigidbody)
		if err != nil {
			continue
		}
		rb := w.rigidbodies.values[ri]
		if !rb.Kinematic {
			continue
		}
		w.transforms[i] = w.transforms[i].Integrate(rb.LinearVelocity, rb.AngularVelocity, dt)
		w.dirty = true
	}
	for i := range w.rigidbodies.values {
		rb := &w.rigidbodies.values[i]
		if rb.Kinematic {
			rb.CenterOfMass = rb.CenterOfMass.Add(rb.LinearVelocity.Mul(dt))
		}
	}
}

// UpdateBounds refreshes the dense shape and bounds arrays.
func (w *World) UpdateBounds() {
	n := len(w.colliders.values)
	if cap(w.shapes) < n {
		w.shapes = make([]Shape, n)
		w.bounds = make([]geometry.Aabb, n)
	}
	w.shapes = w.shapes[:n]
	w.bounds = w.bounds[:n]

	for i, d := range w.colliders.values {
		s := Shape{
			Type:          d.Type,
			Center:        d.Center,
			Size:          d.Size,
			ContactOffset: d.ContactOffset,
			DataIndex:     d.DataIndex,
			Rigidbody:     -1,
			Material:      -1,
			Filter:        d.Filter,
			Trigger:       d.Trigger,
		}
		if d.Rigidbody.Valid() {
			if ri, err := w.rigidbodies.index(d.Rigidbody); err == nil {
				s.Rigidbody = ri
			}
		}
		if d.Material.Valid() {
			if mi, err := w.materials.index(d.Material); err == nil {
				s.Material = mi
			}
		}
		w.shapes[i] = s
		w.bounds[i] = WorldBounds(s, w.transforms[i], &w.Geometry)
	}
	w.dirty = false
}

func (w *World) sync() {
	if w.dirty || len(w.shapes) != len(w.colliders.values) {
		w.UpdateBounds()
	}
}

// ColliderCount is the number of live colliders.
func (w *World) ColliderCount() int { return len(w.colliders.values) }

// Shapes returns the dense shape array. The slice is owned by the world.
func (w *World) Shapes() []Shape {
	w.sync()
	return w.shapes
}

func (w *World) Transforms() []geometry.AffineTransform { return w.transforms }

func (w *World) Bounds() []geometry.Aabb {
	w.sync()
	return w.bounds
}

func (w *World) Materials() []flex.CollisionMaterial { return w.materials.values }

func (w *World) Rigidbodies() []Rigidbody { return w.rigidbodies.values }

// NewDesc returns a description with no material, no rigidbody and a filter
// that collides with everything.
func NewDesc(t ShapeType) Desc {
	return Desc{
		Type:      t,
		DataIndex: -1,
		Rigidbody: flex.InvalidHandle,
		Material:  flex.InvalidHandle,
		Filter:    flex.DefaultFilter,
	}
}

func SphereDesc(center mgl32.Vec3, radius float32) Desc {
	d := NewDesc(Sphere)
	d.Center = center
	d.Size = mgl32.Vec3{radius, 0, 0}
	return d
}

func BoxDesc(center, size mgl32.Vec3) Desc {
	d := NewDesc(Box)
	d.Center = center
	d.Size = size
	return d
}

// CapsuleDesc describes a capsule of total height along axis 0, 1 or 2.
func CapsuleDesc(center mgl32.Vec3, radius, height float32, axis int) Desc {
	d := NewDesc(Capsule)
	d.Center = center
	d.Size = mgl32.Vec3{radius, height, float32(axis)}
	return d
}

func HeightMapDesc(data int, size mgl32.Vec3) Desc {
	d := NewDesc(HeightMap)
	d.DataIndex = data
	d.Size = size
	return d
}

func MeshDesc(data int) Desc {
	d := NewDesc(TriangleMesh)
	d.DataIndex = data
	return d
}

func DistanceFieldDesc(data int) Desc {
	d := NewDesc(SignedDistanceField)
	d.DataIndex = data
	return d
}
