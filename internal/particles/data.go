// Package particles stores particle state as parallel arrays. Every array
// has one entry per particle slot; Validate checks that they agree before
// the solver touches them.
package particles

import (
	"fmt"
	"slices"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/flex"
)

// Data is struct-of-arrays particle storage. Positions and velocities are
// Vec4 with an unused w so they map onto GPU friendly layouts.
type Data struct {
	Positions       []mgl32.Vec4
	PrevPositions   []mgl32.Vec4
	RestPositions   []mgl32.Vec4
	StartPositions  []mgl32.Vec4
	RenderPositions []mgl32.Vec4

	Orientations       []mgl32.Quat
	PrevOrientations   []mgl32.Quat
	RestOrientations   []mgl32.Quat
	StartOrientations  []mgl32.Quat
	RenderOrientations []mgl32.Quat

	Velocities        []mgl32.Vec4
	AngularVelocities []mgl32.Vec4

	InvMasses           []float32
	InvRotationalMasses []float32
	InvInertiaTensors   []mgl32.Vec4
	// Radii holds the three principal radii of each particle's ellipsoid.
	Radii []mgl32.Vec4

	Phases          []uint32
	Filters         []uint32
	// Materials holds each particle's collision material handle.
	// MaterialIndices caches the dense index it resolved to at the start of
	// the step, -1 when unset or stale.
	Materials       []flex.Handle
	MaterialIndices []int32

	ExternalForces  []mgl32.Vec4
	ExternalTorques []mgl32.Vec4
	Wind            []mgl32.Vec4
	Normals         []mgl32.Vec4

	SmoothingRadii []float32
	RestDensities  []float32
	Viscosities    []float32
	// FluidData: x density, y lambda, z volume, w unused.
	FluidData []mgl32.Vec4

	PositionDeltas    []mgl32.Vec4
	PositionCounts    []int32
	OrientationDeltas []mgl32.Quat
	OrientationCounts []int32

	SleepCounters []int32
	Active        []bool

	refs []int32
	free []int
}

// Len is the number of particle slots, allocated or free.
func (d *Data) Len() int { return len(d.Positions) }

// Validate reports the first array whose length differs from Positions.
func (d *Data) Validate() error {
	n := len(d.Positions)
	check := []struct {
		name string
		len  int
	}{
		{"PrevPositions", len(d.PrevPositions)},
		{"RestPositions", len(d.RestPositions)},
		{"StartPositions", len(d.StartPositions)},
		{"RenderPositions", len(d.RenderPositions)},
		{"Orientations", len(d.Orientations)},
		{"PrevOrientations", len(d.PrevOrientations)},
		{"RestOrientations", len(d.RestOrientations)},
		{"StartOrientations", len(d.StartOrientations)},
		{"RenderOrientations", len(d.RenderOrientations)},
		{"Velocities", len(d.Velocities)},
		{"AngularVelocities", len(d.AngularVelocities)},
		{"InvMasses", len(d.InvMasses)},
		{"InvRotationalMasses", len(d.InvRotationalMasses)},
		{"InvInertiaTensors", len(d.InvInertiaTensors)},
		{"Radii", len(d.Radii)},
		{"Phases", len(d.Phases)},
		{"Filters", len(d.Filters)},
		{"Materials", len(d.Materials)},
		{"MaterialIndices", len(d.MaterialIndices)},
		{"ExternalForces", len(d.ExternalForces)},
		{"ExternalTorques", len(d.ExternalTorques)},
		{"Wind", len(d.Wind)},
		{"Normals", len(d.Normals)},
		{"SmoothingRadii", len(d.SmoothingRadii)},
		{"RestDensities", len(d.RestDensities)},
		{"Viscosities", len(d.Viscosities)},
		{"FluidData", len(d.FluidData)},
		{"PositionDeltas", len(d.PositionDeltas)},
		{"PositionCounts", len(d.PositionCounts)},
		{"OrientationDeltas", len(d.OrientationDeltas)},
		{"OrientationCounts", len(d.OrientationCounts)},
		{"SleepCounters", len(d.SleepCounters)},
		{"Active", len(d.Active)},
	}
	for _, c := range check {
		if c.len != n {
			return &flex.DataModelError{Field: c.name, Want: n, Got: c.len}
		}
	}
	return nil
}

func grow[T any](s []T, n int, fill T) []T {
	for len(s) < n {
		s = append(s, fill)
	}
	return s
}

// resize extends every array to n slots. New slots are inactive, static
// and unit sized.
func (d *Data) resize(n int) {
	id := mgl32.QuatIdent()
	var zero mgl32.Vec4
	d.Positions = grow(d.Positions, n, zero)
	d.PrevPositions = grow(d.PrevPositions, n, zero)
	d.RestPositions = grow(d.RestPositions, n, zero)
	d.StartPositions = grow(d.StartPositions, n, zero)
	d.RenderPositions = grow(d.RenderPositions, n, zero)
	d.Orientations = grow(d.Orientations, n, id)
	d.PrevOrientations = grow(d.PrevOrientations, n, id)
	d.RestOrientations = grow(d.RestOrientations, n, id)
	d.StartOrientations = grow(d.StartOrientations, n, id)
	d.RenderOrientations = grow(d.RenderOrientations, n, id)
	d.Velocities = grow(d.Velocities, n, zero)
	d.AngularVelocities = grow(d.AngularVelocities, n, zero)
	d.InvMasses = grow(d.InvMasses, n, 0)
	d.InvRotationalMasses = grow(d.InvRotationalMasses, n, 0)
	d.InvInertiaTensors = grow(d.InvInertiaTensors, n, zero)
	d.Radii = grow(d.Radii, n, mgl32.Vec4{0.1, 0.1, 0.1, 0})
	d.Phases = grow(d.Phases, n, 0)
	d.Filters = grow(d.Filters, n, flex.DefaultFilter)
	d.Materials = grow(d.Materials, n, flex.InvalidHandle)
	d.MaterialIndices = grow(d.MaterialIndices, n, -1)
	d.ExternalForces = grow(d.ExternalForces, n, zero)
	d.ExternalTorques = grow(d.ExternalTorques, n, zero)
	d.Wind = grow(d.Wind, n, zero)
	d.Normals = grow(d.Normals, n, zero)
	d.SmoothingRadii = grow(d.SmoothingRadii, n, 0)
	d.RestDensities = grow(d.RestDensities, n, 0)
	d.Viscosities = grow(d.Viscosities, n, 0)
	d.FluidData = grow(d.FluidData, n, zero)
	d.PositionDeltas = grow(d.PositionDeltas, n, zero)
	d.PositionCounts = grow(d.PositionCounts, n, 0)
	d.OrientationDeltas = grow(d.OrientationDeltas, n, mgl32.Quat{})
	d.OrientationCounts = grow(d.OrientationCounts, n, 0)
	d.SleepCounters = grow(d.SleepCounters, n, 0)
	d.Active = grow(d.Active, n, false)
	d.refs = grow(d.refs, n, 0)
}

func reserve[T any](s []T, n int) []T {
	return slices.Grow(s, max(0, n-len(s)))
}

// NewData returns empty storage with room for capacity particles. Allocate
// grows past it when needed.
func NewData(capacity int) *Data {
	d := &Data{}
	d.Reserve(capacity)
	return d
}

// Reserve makes room for n slots without changing Len.
func (d *Data) Reserve(n int) {
	d.Positions = reserve(d.Positions, n)
	d.PrevPositions = reserve(d.PrevPositions, n)
	d.RestPositions = reserve(d.RestPositions, n)
	d.StartPositions = reserve(d.StartPositions, n)
	d.RenderPositions = reserve(d.RenderPositions, n)
	d.Orientations = reserve(d.Orientations, n)
	d.PrevOrientations = reserve(d.PrevOrientations, n)
	d.RestOrientations = reserve(d.RestOrientations, n)
	d.StartOrientations = reserve(d.StartOrientations, n)
	d.RenderOrientations = reserve(d.RenderOrientations, n)
	d.Velocities = reserve(d.Velocities, n)
	d.AngularVelocities = reserve(d.AngularVelocities, n)
	d.InvMasses = reserve(d.InvMasses, n)
	d.InvRotationalMasses = reserve(d.InvRotationalMasses, n)
	d.InvInertiaTensors = reserve(d.InvInertiaTensors, n)
	d.Radii = reserve(d.Radii, n)
	d.Phases = reserve(d.Phases, n)
	d.Filters = reserve(d.Filters, n)
	d.Materials = reserve(d.Materials, n)
	d.MaterialIndices = reserve(d.MaterialIndices, n)
	d.ExternalForces = reserve(d.ExternalForces, n)
	d.ExternalTorques = reserve(d.ExternalTorques, n)
	d.Wind = reserve(d.Wind, n)
	d.Normals = reserve(d.Normals, n)
	d.SmoothingRadii = reserve(d.SmoothingRadii, n)
	d.RestDensities = reserve(d.RestDensities, n)
	d.Viscosities = reserve(d.Viscosities, n)
	d.FluidData = reserve(d.FluidData, n)
	d.PositionDeltas = reserve(d.PositionDeltas, n)
	d.PositionCounts = reserve(d.PositionCounts, n)
	d.OrientationDeltas = reserve(d.OrientationDeltas, n)
	d.OrientationCounts = reserve(d.OrientationCounts, n)
	d.SleepCounters = reserve(d.SleepCounters, n)
	d.Active = reserve(d.Active, n)
	d.refs = reserve(d.refs, n)
}

// Range is a set of particle slots handed out by Allocate. Slots need not
// be contiguous.
type Range struct {
	Indices []int
}

func (r Range) Len() int { return len(r.Indices) }

// Allocate activates count slots, reusing freed slots lowest index first
// before growing the arrays.
func (d *Data) Allocate(count int) Range {
	r := Range{Indices: make([]int, 0, count)}
	for len(r.Indices) < count && len(d.free) > 0 {
		r.Indices = append(r.Indices, d.free[0])
		d.free = d.free[1:]
	}
	if rest := count - len(r.Indices); rest > 0 {
		start := d.Len()
		d.resize(start + rest)
		for i := start; i < start+rest; i++ {
			r.Indices = append(r.Indices, i)
		}
	}
	for _, i := range r.Indices {
		d.reset(i)
		d.Active[i] = true
	}
	return r
}

func (d *Data) reset(i int) {
	var zero mgl32.Vec4
	id := mgl32.QuatIdent()
	d.Positions[i], d.PrevPositions[i], d.RestPositions[i] = zero, zero, zero
	d.StartPositions[i], d.RenderPositions[i] = zero, zero
	d.Orientations[i], d.PrevOrientations[i], d.RestOrientations[i] = id, id, id
	d.StartOrientations[i], d.RenderOrientations[i] = id, id
	d.Velocities[i], d.AngularVelocities[i] = zero, zero
	d.InvMasses[i], d.InvRotationalMasses[i] = 0, 0
	d.InvInertiaTensors[i] = zero
	d.Radii[i] = mgl32.Vec4{0.1, 0.1, 0.1, 0}
	d.Phases[i] = 0
	d.Filters[i] = flex.DefaultFilter
	d.Materials[i], d.MaterialIndices[i] = flex.InvalidHandle, -1
	d.ExternalForces[i], d.ExternalTorques[i], d.Wind[i], d.Normals[i] = zero, zero, zero, zero
	d.SmoothingRadii[i], d.RestDensities[i], d.Viscosities[i] = 0, 0, 0
	d.FluidData[i] = zero
	d.PositionDeltas[i], d.PositionCounts[i] = zero, 0
	d.OrientationDeltas[i], d.OrientationCounts[i] = mgl32.Quat{}, 0
	d.SleepCounters[i] = 0
	d.refs[i] = 0
}

// Release frees the slots of r. It fails without changing anything if any
// slot is out of range, already free, or referenced by a constraint.
func (d *Data) Release(r Range) error {
	for _, i := range r.Indices {
		if err := flex.CheckIndex("particle", i, d.Len()); err != nil {
			return err
		}
		if !d.Active[i] {
			return &flex.IndexError{Kind: "inactive particle", Index: i, Len: d.Len()}
		}
		if d.refs[i] > 0 {
			return fmt.Errorf("%w: particle %d", flex.ErrParticleReferenced, i)
		}
	}
	for _, i := range r.Indices {
		d.Active[i] = false
		d.InvMasses[i] = 0
		d.InvRotationalMasses[i] = 0
		d.Velocities[i] = mgl32.Vec4{}
		d.free = append(d.free, i)
	}
	sort.Ints(d.free)
	return nil
}

// Retain marks particles as referenced by a constraint.
func (d *Data) Retain(indices ...int) error {
	for _, i := range indices {
		if err := flex.CheckIndex("particle", i, d.Len()); err != nil {
			return err
		}
	}
	for _, i := range indices {
		d.refs[i]++
	}
	return nil
}

// Unretain drops a constraint reference. Extra calls are ignored.
func (d *Data) Unretain(indices ...int) {
	for _, i := range indices {
		if i >= 0 && i < len(d.refs) && d.refs[i] > 0 {
			d.refs[i]--
		}
	}
}

// RefCount returns the number of constraints referencing particle i.
func (d *Data) RefCount(i int) int {
	if i < 0 || i >= len(d.refs) {
		return 0
	}
	return int(d.refs[i])
}

// ActiveIndices returns the allocated slots in ascending order.
func (d *Data) ActiveIndices() []int {
	out := make([]int, 0, d.Len()-len(d.free))
	for i, a := range d.Active {
		if a {
			out = append(out, i)
		}
	}
	return out
}

// Clear drops every particle and releases the arrays.
func (d *Data) Clear() {
	*d = Data{}
}
