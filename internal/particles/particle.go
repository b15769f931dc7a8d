package particles

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/flex"
)

// Particle is a convenience bundle for initializing one slot.
type Particle struct {
	Position    mgl32.Vec3
	Velocity    mgl32.Vec3
	Orientation mgl32.Quat
	// InvMass of zero pins the particle.
	InvMass float32
	// InvRotationalMass of zero disables orientation integration.
	InvRotationalMass float32
	Radius            float32
	// Radii overrides Radius with principal radii when non zero.
	Radii    mgl32.Vec3
	Group    int
	Flags    flex.ParticleFlags
	Filter   uint32
	// Material is flex.InvalidHandle for none.
	Material flex.Handle

	SmoothingRadius float32
	RestDensity     float32
	Viscosity       float32
}

// Set writes p into slot i, also as its previous, rest and start state.
func (d *Data) Set(i int, p Particle) error {
	if err := flex.CheckIndex("particle", i, d.Len()); err != nil {
		return err
	}
	pos := p.Position.Vec4(0)
	d.Positions[i] = pos
	d.PrevPositions[i] = pos
	d.RestPositions[i] = pos
	d.StartPositions[i] = pos
	d.RenderPositions[i] = pos

	q := p.Orientation
	if q == (mgl32.Quat{}) {
		q = mgl32.QuatIdent()
	}
	d.Orientations[i] = q
	d.PrevOrientations[i] = q
	d.RestOrientations[i] = q
	d.StartOrientations[i] = q
	d.RenderOrientations[i] = q

	d.Velocities[i] = p.Velocity.Vec4(0)
	d.InvMasses[i] = p.InvMass
	d.InvRotationalMasses[i] = p.InvRotationalMass

	radii := p.Radii
	if radii == (mgl32.Vec3{}) {
		radii = mgl32.Vec3{p.Radius, p.Radius, p.Radius}
	}
	d.Radii[i] = radii.Vec4(0)
	d.InvInertiaTensors[i] = inertia(p.InvRotationalMass, radii)

	d.Phases[i] = flex.MakePhase(p.Group, p.Flags)
	d.Filters[i] = p.Filter
	if p.Filter == 0 {
		d.Filters[i] = flex.DefaultFilter
	}
	d.Materials[i] = p.Material
	d.MaterialIndices[i] = -1
	d.SmoothingRadii[i] = p.SmoothingRadius
	d.RestDensities[i] = p.RestDensity
	d.Viscosities[i] = p.Viscosity
	return nil
}

// inertia returns the inverse inertia diagonal of a solid ellipsoid.
func inertia(invMass float32, r mgl32.Vec3) mgl32.Vec4 {
	if invMass == 0 {
		return mgl32.Vec4{}
	}
	x, y, z := r[0]*r[0], r[1]*r[1], r[2]*r[2]
	inv := func(a float32) float32 {
		if a < flex.Epsilon {
			return 0
		}
		return 5 * invMass / a
	}
	return mgl32.Vec4{inv(y + z), inv(x + z), inv(x + y), 0}
}

// Position returns the xyz position of particle i.
func (d *Data) Position(i int) mgl32.Vec3 { return d.Positions[i].Vec3() }

// IsFluid reports whether particle i carries the fluid flag.
func (d *Data) IsFluid(i int) bool {
	return flex.PhaseFlags(d.Phases[i])&flex.Fluid != 0
}

// ResolveMaterials refreshes MaterialIndices from the material handles.
// Handles that do not resolve, because they are unset or their material
// was removed, give -1.
func (d *Data) ResolveMaterials(index func(flex.Handle) (int, error)) {
	for i, h := range d.Materials {
		d.MaterialIndices[i] = -1
		if !d.Active[i] || !h.Valid() {
			continue
		}
		if m, err := index(h); err == nil {
			d.MaterialIndices[i] = int32(m)
		}
	}
}

// IsSleeping reports whether particle i is asleep after threshold
// consecutive slow steps.
func (d *Data) IsSleeping(i, steps int) bool {
	return steps > 0 && int(d.SleepCounters[i]) >= steps
}

// Wake resets the sleep counter of particle i.
func (d *Data) Wake(i int) { d.SleepCounters[i] = 0 }

// AddPositionDelta accumulates a correction for particle i.
func (d *Data) AddPositionDelta(i int, delta mgl32.Vec3) {
	d.PositionDeltas[i] = d.PositionDeltas[i].Add(delta.Vec4(0))
	d.PositionCounts[i]++
}

// AddOrientationDelta accumulates an orientation correction for particle i.
func (d *Data) AddOrientationDelta(i int, delta mgl32.Quat) {
	d.OrientationDeltas[i] = d.OrientationDeltas[i].Add(delta)
	d.OrientationCounts[i]++
}

// ApplyPositionDelta commits the averaged accumulated correction of
// particle i scaled by sor and clears the accumulator.
func (d *Data) ApplyPositionDelta(i int, sor float32) {
	if c := d.PositionCounts[i]; c > 0 {
		delta := d.PositionDeltas[i].Mul(sor / float32(c))
		d.Positions[i] = d.Positions[i].Add(mgl32.Vec4{delta[0], delta[1], delta[2], 0})
		d.PositionDeltas[i] = mgl32.Vec4{}
		d.PositionCounts[i] = 0
	}
}

// ApplyOrientationDelta commits and renormalizes the averaged orientation
// correction of particle i.
func (d *Data) ApplyOrientationDelta(i int, sor float32) {
	if c := d.OrientationCounts[i]; c > 0 {
		delta := d.OrientationDeltas[i].Scale(sor / float32(c))
		d.Orientations[i] = d.Orientations[i].Add(delta).Normalize()
		d.OrientationDeltas[i] = mgl32.Quat{}
		d.OrientationCounts[i] = 0
	}
}
