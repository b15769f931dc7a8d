package solver

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/constraints"
	"github.com/san-kum/flexsim/internal/contacts"
	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/geometry"
)

const particleChunk = 128

// Solve advances the simulation by stepDt split into substeps. The
// particle data model is validated first; on error nothing is modified.
func (s *Solver) Solve(stepDt float32, substeps int) error {
	if s.destroyed {
		return flex.ErrDestroyed
	}
	if err := s.particles.Validate(); err != nil {
		return err
	}
	if !(stepDt > 0) || math.IsInf(float64(stepDt), 0) {
		return fmt.Errorf("%w: step dt %g", flex.ErrInvalidConfig, stepDt)
	}
	if substeps < 1 {
		return fmt.Errorf("%w: substeps %d < 1", flex.ErrInvalidConfig, substeps)
	}
	h := stepDt / float32(substeps)
	prev := s.Stats()

	s.setStage(Predicting)
	s.particles.ResolveMaterials(s.world.MaterialIndex)
	s.refreshSimplices()
	s.beginStep()

	s.setStage(ContactGenerating)
	in := s.contactInput(stepDt)
	s.particleGrid.Update(in)
	res := s.particleGrid.GenerateContacts(in)
	s.colliderGrid.Update(s.world, s.params.Mode == flex.Mode2D)
	colliderContacts := s.colliderGrid.GenerateContacts(in, s.world, s.particleGrid.Bounds())
	s.wakeTouched(colliderContacts)

	s.setStage(Batching)
	ctx := s.context()
	overflow := s.set.SetContacts(ctx, res.Contacts, colliderContacts, res.Fluid)
	overflow += s.set.Rebatch()

	for i := 0; i < substeps; i++ {
		s.setStage(Solving)
		s.predict(h)
		s.set.Initialize()
		for _, t := range flex.SolveOrder {
			s.set.Step(t, ctx, stepDt, h, substeps)
		}
		s.setStage(VelocityUpdating)
		s.updateVelocities(h)
	}
	s.set.Density.ApplyViscosity(ctx)
	s.last.SleepingParticles = s.updateSleep()
	s.resetForces()

	s.setStage(Interpolating)
	s.lastDt = stepDt
	s.Interpolate(0)
	s.prevTransforms = append(s.prevTransforms[:0], s.world.Transforms()...)

	s.last.ParticleContacts = len(res.Contacts)
	s.last.ColliderContacts = len(colliderContacts)
	s.last.FluidPairs = len(res.Fluid)
	s.steps++
	s.report(overflow, prev)
	s.setStage(Idle)
	return nil
}

func (s *Solver) contactInput(stepDt float32) *contacts.Input {
	return &contacts.Input{
		Particles: s.particles,
		Simplices: s.simplices,
		Counts:    s.counts,
		Params:    s.params,
		Materials: s.world.Materials(),
		Dt:        stepDt,
	}
}

func (s *Solver) context() *constraints.Context {
	return &constraints.Context{
		Particles:   s.particles,
		Simplices:   s.simplices,
		Counts:      s.counts,
		Params:      s.params,
		Materials:   s.world.Materials(),
		Shapes:      s.world.Shapes(),
		Transforms:  s.world.Transforms(),
		Rigidbodies: s.world.Rigidbodies(),
		World:       s.world,
		Stats:       &s.counters,
	}
}

// beginStep snapshots the start state used for interpolation and
// refreshes triangle normals.
func (s *Solver) beginStep() {
	pd := s.particles
	flex.ParallelFor(pd.Len(), particleChunk, func(start, end int) {
		for i := start; i < end; i++ {
			pd.StartPositions[i] = pd.Positions[i]
			pd.StartOrientations[i] = pd.Orientations[i]
		}
	})
	s.updateNormals()
}

// wakeTouched wakes particles in contact with a collider that moved since
// the last step or belongs to a moving rigidbody.
func (s *Solver) wakeTouched(cs []contacts.Contact) {
	if len(cs) == 0 {
		return
	}
	shapes := s.world.Shapes()
	transforms := s.world.Transforms()
	rigidbodies := s.world.Rigidbodies()
	sameLayout := len(s.prevTransforms) == len(transforms)
	pd := s.particles

	for i := range cs {
		c := &cs[i]
		if c.BodyB < 0 || c.BodyB >= len(shapes) {
			continue
		}
		moving := sameLayout && transforms[c.BodyB] != s.prevTransforms[c.BodyB]
		if rb := shapes[c.BodyB].Rigidbody; !moving && rb >= 0 && rb < len(rigidbodies) {
			moving = rigidbodies[rb].VelocityAtPoint(c.PointB.Vec3()).LenSqr() > 0
		}
		if !moving {
			continue
		}
		start, size := s.counts.StartAndSize(c.BodyA)
		for k := 0; k < size; k++ {
			if p := s.simplices[start+k]; p >= 0 && p < pd.Len() {
				pd.Wake(p)
			}
		}
	}
}

// predict integrates external accelerations over one substep. Sleeping
// particles hold still.
func (s *Solver) predict(h float32) {
	pd := s.particles
	gravity := s.params.Gravity
	is2D := s.params.Mode == flex.Mode2D
	sleepSteps := s.params.SleepSteps
	frame := &s.frame

	flex.ParallelFor(pd.Len(), particleChunk, func(start, end int) {
		for i := start; i < end; i++ {
			if !pd.Active[i] {
				continue
			}
			pd.PrevPositions[i] = pd.Positions[i]
			pd.PrevOrientations[i] = pd.Orientations[i]
			if pd.IsSleeping(i, sleepSteps) {
				pd.Velocities[i] = mgl32.Vec4{}
				pd.AngularVelocities[i] = mgl32.Vec4{}
				continue
			}

			if w := pd.InvMasses[i]; w > 0 {
				x := pd.Position(i)
				v := pd.Velocities[i].Vec3()
				a := gravity.Add(pd.ExternalForces[i].Vec3().Mul(w))
				a = a.Add(frame.acceleration(x, v))
				v = v.Add(a.Mul(h))
				if is2D {
					v[2] = 0
				}
				pd.Velocities[i] = v.Vec4(0)
				pd.Positions[i] = x.Add(v.Mul(h)).Vec4(pd.Positions[i][3])
			}

			if wq := pd.InvRotationalMasses[i]; wq > 0 {
				q := pd.Orientations[i]
				omega := pd.AngularVelocities[i].Vec3()
				if torque := pd.ExternalTorques[i].Vec3(); torque != (mgl32.Vec3{}) {
					local := q.Conjugate().Rotate(torque)
					alpha := q.Rotate(geometry.MulElem(local, pd.InvInertiaTensors[i].Vec3()))
					omega = omega.Add(alpha.Mul(h))
				}
				omega = omega.Add(frame.angularAcceleration().Mul(h))
				if is2D {
					omega[0], omega[1] = 0, 0
				}
				pd.AngularVelocities[i] = omega.Vec4(0)
				pd.Orientations[i] = geometry.IntegrateOrientation(q, omega, h)
			}
		}
	})
}

// updateVelocities derives velocities from the substep displacement.
// Particles whose state turned non-finite are reset to the substep start.
func (s *Solver) updateVelocities(h float32) {
	pd := s.particles
	damping := float32(math.Pow(float64(1-s.params.Damping), float64(h)))
	is2D := s.params.Mode == flex.Mode2D

	flex.ParallelFor(pd.Len(), particleChunk, func(start, end int) {
		var nan int64
		for i := start; i < end; i++ {
			if !pd.Active[i] {
				continue
			}
			v := pd.Positions[i].Sub(pd.PrevPositions[i]).Vec3().Mul(1 / h)
			if !flex.Vec3Finite(v) || !flex.Vec4Finite(pd.Positions[i]) {
				pd.Positions[i] = pd.PrevPositions[i]
				v = mgl32.Vec3{}
				nan++
			}
			v = v.Mul(damping)
			if is2D {
				v[2] = 0
			}
			pd.Velocities[i] = v.Vec4(0)

			if pd.InvRotationalMasses[i] > 0 {
				omega := geometry.AngularVelocityBetween(pd.PrevOrientations[i], pd.Orientations[i], h)
				q := pd.Orientations[i]
				if !flex.Vec3Finite(omega) || !flex.Vec4Finite(mgl32.Vec4{q.V[0], q.V[1], q.V[2], q.W}) {
					pd.Orientations[i] = pd.PrevOrientations[i]
					omega = mgl32.Vec3{}
					nan++
				}
				pd.AngularVelocities[i] = omega.Mul(damping).Vec4(0)
			}
		}
		if nan > 0 {
			s.counters.NaNCorrections.Add(nan)
		}
	})
}

// updateSleep counts consecutive steps each particle spent with both its
// linear and angular speed below the threshold and returns how many are
// asleep.
func (s *Solver) updateSleep() int {
	pd := s.particles
	threshold := s.params.SleepThreshold
	sleeping := 0
	for i := 0; i < pd.Len(); i++ {
		if !pd.Active[i] || pd.InvMasses[i] == 0 {
			continue
		}
		speed := flex.Max(pd.Velocities[i].Vec3().Len(), pd.AngularVelocities[i].Vec3().Len())
		if speed < threshold {
			if pd.SleepCounters[i] < math.MaxInt32 {
				pd.SleepCounters[i]++
			}
		} else {
			pd.SleepCounters[i] = 0
		}
		if pd.IsSleeping(i, s.params.SleepSteps) {
			sleeping++
		}
	}
	return sleeping
}

// resetForces clears per-step external forces and torques.
func (s *Solver) resetForces() {
	pd := s.particles
	clear(pd.ExternalForces)
	clear(pd.ExternalTorques)
}
