package contacts

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/geometry"
	"github.com/san-kum/flexsim/internal/particles"
)

// Input bundles what contact generation reads. Nothing in it is written.
type Input struct {
	Particles *particles.Data
	Simplices []int
	Counts    SimplexCounts
	Params    flex.SolverParameters
	Materials []flex.CollisionMaterial
	// Dt is the full step length used for the speculative sweep.
	Dt float32
}

func (in *Input) is2D() bool { return in.Params.Mode == flex.Mode2D }

// simplexParticles returns the particle indices of simplex i, dropping
// out-of-range entries.
func (in *Input) simplexParticles(i int, buf *[4]int) []int {
	start, size := in.Counts.StartAndSize(i)
	n := 0
	pc := in.Particles.Len()
	for k := 0; k < size; k++ {
		idx := start + k
		if idx >= len(in.Simplices) {
			break
		}
		if p := in.Simplices[idx]; p >= 0 && p < pc {
			buf[n] = p
			n++
		}
	}
	return buf[:n]
}

// maxRadius clamps anisotropy and returns the largest principal radius.
func maxRadius(r mgl32.Vec4) float32 {
	return flex.Max(r[0], flex.Max(r[1], r[2]))
}

// ClampRadii limits the ratio between largest and smallest principal
// radius to maxAnisotropy.
func ClampRadii(r mgl32.Vec4, maxAnisotropy float32) mgl32.Vec3 {
	m := maxRadius(r)
	lo := m / flex.Max(maxAnisotropy, 1)
	return mgl32.Vec3{flex.Max(r[0], lo), flex.Max(r[1], lo), flex.Max(r[2], lo)}
}

// gather copies a simplex's positions and radii.
func (in *Input) gather(i int, s *Simplex) []int {
	var buf [4]int
	ps := in.simplexParticles(i, &buf)
	s.Size = len(ps)
	for k, p := range ps {
		s.Positions[k] = in.Particles.Positions[p].Vec3()
		s.Radii[k] = maxRadius(in.Particles.Radii[p])
		if in.is2D() {
			s.Positions[k][2] = 0
		}
	}
	return ps
}

// SimplexBounds returns the bounds of simplex i swept by the particles'
// velocities over the step and expanded by the collision margin.
func (in *Input) SimplexBounds(i int) geometry.Aabb {
	var buf [4]int
	b := geometry.EmptyAabb()
	ccd := in.Params.ContinuousCollisionDetection
	for _, p := range in.simplexParticles(i, &buf) {
		pos := in.Particles.Positions[p].Vec3()
		pb := geometry.AabbFromPoint(pos, maxRadius(in.Particles.Radii[p]))
		pb = pb.Sweep(in.Particles.Velocities[p].Vec3().Mul(in.Dt * ccd))
		b = b.EncapsulateBounds(pb)
	}
	b = b.Expand(in.Params.CollisionMargin)
	if in.is2D() {
		b = b.Flatten()
	}
	return b
}

// simplexGroup returns phase data of the first particle of a simplex.
func (in *Input) simplexGroup(ps []int) (group int, flags flex.ParticleFlags, filter uint32) {
	if len(ps) == 0 {
		return -1, 0, 0
	}
	p := in.Particles.Phases[ps[0]]
	group = flex.PhaseGroup(p)
	filter = in.Particles.Filters[ps[0]]
	for _, q := range ps {
		flags |= flex.PhaseFlags(in.Particles.Phases[q])
	}
	// fluid only when all particles are fluid
	for _, q := range ps {
		if !in.Particles.IsFluid(q) {
			flags &^= flex.Fluid
		}
	}
	return group, flags, filter
}

// simplexVelocity returns the barycentric velocity of a simplex.
func (in *Input) simplexVelocity(ps []int, b mgl32.Vec4) mgl32.Vec3 {
	var v mgl32.Vec3
	for k, p := range ps {
		v = v.Add(in.Particles.Velocities[p].Vec3().Mul(b[k]))
	}
	return v
}

// simplexInvMass returns Σ b²w for a simplex.
func (in *Input) simplexInvMass(ps []int, b mgl32.Vec4) float32 {
	var w float32
	for k, p := range ps {
		w += b[k] * b[k] * in.Particles.InvMasses[p]
	}
	return w
}
