package solver_test

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/flexsim/internal/collider"
	"github.com/san-kum/flexsim/internal/contacts"
	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/geometry"
	"github.com/san-kum/flexsim/internal/particles"
	"github.com/san-kum/flexsim/internal/solver"
)

func zeroGravity() flex.SolverParameters {
	p := flex.DefaultSolverParameters()
	p.Gravity = mgl32.Vec3{}
	return p
}

func addParticles(s *solver.Solver, positions ...mgl32.Vec3) []int {
	r, err := s.AddParticles(len(positions))
	Expect(err).NotTo(HaveOccurred())
	for k, i := range r.Indices {
		Expect(s.SetParticle(i, particles.Particle{
			Position: positions[k], InvMass: 1, Radius: 0.1, Material: flex.InvalidHandle,
		})).To(Succeed())
	}
	return r.Indices
}

func momentum(pd *particles.Data) mgl32.Vec3 {
	var p mgl32.Vec3
	for i := 0; i < pd.Len(); i++ {
		if pd.Active[i] && pd.InvMasses[i] > 0 {
			p = p.Add(pd.Velocities[i].Vec3().Mul(1 / pd.InvMasses[i]))
		}
	}
	return p
}

var _ = Describe("Solver", func() {
	var s *solver.Solver

	BeforeEach(func() {
		var err error
		s, err = solver.New(zeroGravity(), nil)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("distance constraints", func() {
		It("resolves the two particle scenario in one step", func() {
			ids := addParticles(s, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{2, 0, 0})
			_, err := s.Constraints().Distance.Add(ids[0], ids[1], 1, 0, 0)
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Solve(1.0/60, 1)).To(Succeed())

			pd := s.Particles()
			Expect(pd.Position(ids[0]).ApproxEqualThreshold(mgl32.Vec3{0.5, 0, 0}, 1e-5)).To(BeTrue())
			Expect(pd.Position(ids[1]).ApproxEqualThreshold(mgl32.Vec3{1.5, 0, 0}, 1e-5)).To(BeTrue())
			Expect(momentum(pd).Len()).To(BeNumerically("<", 1e-3))
		})

		It("converges from arbitrary separations", func() {
			rng := rand.New(rand.NewSource(3))
			for k := 0; k < 20; k++ {
				sep := 0.01 + rng.Float32()*9.99
				s, err := solver.New(zeroGravity(), nil)
				Expect(err).NotTo(HaveOccurred())
				ids := addParticles(s, mgl32.Vec3{}, mgl32.Vec3{0, sep, 0})
				_, err = s.Constraints().Distance.Add(ids[0], ids[1], 1, 0, 0)
				Expect(err).NotTo(HaveOccurred())

				Expect(s.Solve(1.0/60, 1)).To(Succeed())
				d := s.Particles().Position(ids[1]).Sub(s.Particles().Position(ids[0])).Len()
				Expect(d).To(BeNumerically("~", 1, 1e-4), "separation %v", sep)
			}
		})

		It("conserves linear momentum of a spinning triangle", func() {
			ids := addParticles(s,
				mgl32.Vec3{1, 0, 0},
				mgl32.Vec3{-0.5, 0, 0.866},
				mgl32.Vec3{-0.5, 0, -0.866})
			pd := s.Particles()
			spin := mgl32.Vec3{0, 2, 0}
			for _, i := range ids {
				pd.Velocities[i] = spin.Cross(pd.Position(i)).Vec4(0)
			}
			cs := s.Constraints()
			for k := range ids {
				_, err := cs.Distance.Add(ids[k], ids[(k+1)%3], -1, 0, 0)
				Expect(err).NotTo(HaveOccurred())
			}

			for step := 0; step < 1000; step++ {
				Expect(s.Solve(1.0/60, 2)).To(Succeed())
			}
			Expect(momentum(pd).Len()).To(BeNumerically("<", 1e-3))
			for k := range ids {
				d := pd.Position(ids[k]).Sub(pd.Position(ids[(k+1)%3])).Len()
				Expect(d).To(BeNumerically("~", math.Sqrt(3), 1e-2))
			}
			Expect(s.Stats().NaNCorrections).To(BeZero())
		})
	})

	Describe("data model", func() {
		It("rejects inconsistent arrays before mutating anything", func() {
			ids := addParticles(s, mgl32.Vec3{}, mgl32.Vec3{1, 0, 0})
			pd := s.Particles()
			pd.Velocities[ids[0]] = mgl32.Vec4{1, 0, 0, 0}
			pd.Wind = pd.Wind[:1]

			err := s.Solve(1.0/60, 1)
			Expect(err).To(MatchError(flex.ErrDataModel))
			var dm *flex.DataModelError
			Expect(errors.As(err, &dm)).To(BeTrue())
			Expect(dm.Field).To(Equal("Wind"))
			Expect(pd.Position(ids[0])).To(Equal(mgl32.Vec3{}))
			Expect(s.Stats().Steps).To(BeZero())
		})

		It("refuses to release referenced particles", func() {
			ids := addParticles(s, mgl32.Vec3{}, mgl32.Vec3{1, 0, 0})
			_, err := s.Constraints().Distance.Add(ids[0], ids[1], -1, 0, 0)
			Expect(err).NotTo(HaveOccurred())

			err = s.RemoveParticles(particles.Range{Indices: []int{ids[0]}})
			Expect(err).To(MatchError(flex.ErrParticleReferenced))
		})

		It("reuses released slots lowest index first", func() {
			addParticles(s, mgl32.Vec3{}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{2, 0, 0})
			Expect(s.RemoveParticles(particles.Range{Indices: []int{2, 0}})).To(Succeed())
			r, err := s.AddParticles(3)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Indices).To(Equal([]int{0, 2, 3}))
		})

		It("grows past the particle capacity", func() {
			p := zeroGravity()
			p.ParticleCapacity = 2
			s, err := solver.New(p, nil)
			Expect(err).NotTo(HaveOccurred())
			r, err := s.AddParticles(3)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Indices).To(Equal([]int{0, 1, 2}))
			Expect(s.Particles().Len()).To(Equal(3))
			Expect(s.Particles().Validate()).To(Succeed())

			r, err = s.AddParticles(1500)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Len()).To(Equal(1500))
			Expect(s.Particles().Len()).To(Equal(1503))
			Expect(s.Particles().Validate()).To(Succeed())
		})

		It("validates simplices", func() {
			addParticles(s, mgl32.Vec3{}, mgl32.Vec3{1, 0, 0})
			err := s.SetSimplices([]int{0, 7}, contacts.SimplexCounts{Edges: 1})
			Expect(err).To(MatchError(flex.ErrIndexOutOfRange))
		})

		It("stops working after Destroy", func() {
			addParticles(s, mgl32.Vec3{})
			s.Destroy()
			Expect(s.Solve(1.0/60, 1)).To(MatchError(flex.ErrDestroyed))
			_, err := s.AddParticles(1)
			Expect(err).To(MatchError(flex.ErrDestroyed))
		})

		It("rejects bad step arguments", func() {
			Expect(s.Solve(0, 1)).To(MatchError(flex.ErrInvalidConfig))
			Expect(s.Solve(1.0/60, 0)).To(MatchError(flex.ErrInvalidConfig))
		})
	})

	Describe("stages", func() {
		It("reports every stage of a step in order", func() {
			var seen []solver.Stage
			s.AddObserver(solver.ObserverFunc(func(st solver.Stage, _ int64) {
				if len(seen) == 0 || seen[len(seen)-1] != st {
					seen = append(seen, st)
				}
			}))
			addParticles(s, mgl32.Vec3{})
			Expect(s.Solve(1.0/60, 1)).To(Succeed())
			Expect(seen).To(Equal([]solver.Stage{
				solver.Predicting, solver.ContactGenerating, solver.Batching,
				solver.Solving, solver.VelocityUpdating, solver.Interpolating, solver.Idle,
			}))
			Expect(s.Stage()).To(Equal(solver.Idle))
		})
	})

	Describe("gravity and collisions", func() {
		var (
			world *collider.World
			floor flex.Handle
		)

		BeforeEach(func() {
			world = collider.NewWorld()
			var err error
			floor, err = world.AddCollider(collider.BoxDesc(mgl32.Vec3{0, -0.5, 0}, mgl32.Vec3{10, 1, 10}), geometry.Identity())
			Expect(err).NotTo(HaveOccurred())
			s, err = solver.New(flex.DefaultSolverParameters(), world)
			Expect(err).NotTo(HaveOccurred())
		})

		It("falls under gravity", func() {
			ids := addParticles(s, mgl32.Vec3{0, 5, 0})
			Expect(s.Solve(0.1, 1)).To(Succeed())
			v := s.Particles().Velocities[ids[0]]
			Expect(v[1]).To(BeNumerically("~", -0.981, 1e-4))
		})

		It("rests on a collider, sleeps, and wakes when the collider moves", func() {
			ids := addParticles(s, mgl32.Vec3{0, 0.1, 0})
			pd := s.Particles()
			for i := 0; i < 10; i++ {
				Expect(s.Solve(1.0/60, 4)).To(Succeed())
			}
			Expect(pd.Positions[ids[0]][1]).To(BeNumerically("~", 0.1, 1e-3))
			Expect(pd.IsSleeping(ids[0], s.Parameters().SleepSteps)).To(BeTrue())
			Expect(s.Stats().SleepingParticles).To(Equal(1))

			Expect(world.SetTransform(floor, geometry.Translate(mgl32.Vec3{0, 0.05, 0}))).To(Succeed())
			Expect(s.Solve(1.0/60, 4)).To(Succeed())

			Expect(pd.SleepCounters[ids[0]]).To(BeZero())
			Expect(pd.Positions[ids[0]][1]).To(BeNumerically(">", 0.12))
		})

		It("keeps sleeping particles still", func() {
			ids := addParticles(s, mgl32.Vec3{0, 0.1, 0})
			for i := 0; i < 5; i++ {
				Expect(s.Solve(1.0/60, 4)).To(Succeed())
			}
			pd := s.Particles()
			Expect(pd.IsSleeping(ids[0], s.Parameters().SleepSteps)).To(BeTrue())
			before := pd.Position(ids[0])
			Expect(s.Solve(1.0/60, 4)).To(Succeed())
			Expect(pd.Position(ids[0]).ApproxEqualThreshold(before, 1e-6)).To(BeTrue())
		})
	})

	Describe("materials", func() {
		It("invalidates particle materials when the material is removed", func() {
			world := collider.NewWorld()
			ice := world.AddMaterial(flex.CollisionMaterial{DynamicFriction: 0})
			rubber := world.AddMaterial(flex.CollisionMaterial{DynamicFriction: 0.9})
			s, err := solver.New(zeroGravity(), world)
			Expect(err).NotTo(HaveOccurred())

			r, err := s.AddParticles(2)
			Expect(err).NotTo(HaveOccurred())
			for k, m := range []flex.Handle{ice, rubber} {
				Expect(s.SetParticle(r.Indices[k], particles.Particle{
					Position: mgl32.Vec3{float32(k), 0, 0}, InvMass: 1, Radius: 0.1, Material: m,
				})).To(Succeed())
			}
			pd := s.Particles()

			Expect(s.Solve(1.0/60, 1)).To(Succeed())
			Expect(pd.MaterialIndices[r.Indices[0]]).To(BeEquivalentTo(0))
			Expect(pd.MaterialIndices[r.Indices[1]]).To(BeEquivalentTo(1))

			Expect(world.RemoveMaterial(ice)).To(Succeed())
			Expect(s.Solve(1.0/60, 1)).To(Succeed())

			Expect(pd.MaterialIndices[r.Indices[0]]).To(BeEquivalentTo(-1))
			rubberIndex := pd.MaterialIndices[r.Indices[1]]
			Expect(rubberIndex).To(BeEquivalentTo(0))
			Expect(world.Materials()[rubberIndex].DynamicFriction).To(BeNumerically("~", 0.9))
			Expect(flex.CombineMaterials(world.Materials(), int(pd.MaterialIndices[r.Indices[0]]), -1)).To(Equal(flex.CollisionMaterial{}))
		})
	})

	Describe("sleeping", func() {
		threshold := flex.DefaultSolverParameters().SleepThreshold

		It("keeps a free particle above the speed threshold moving", func() {
			ids := addParticles(s, mgl32.Vec3{})
			pd := s.Particles()
			pd.Velocities[ids[0]] = mgl32.Vec4{10 * threshold, 0, 0, 0}

			for i := 0; i < 4; i++ {
				Expect(s.Solve(1.0/60, 1)).To(Succeed())
			}
			Expect(pd.IsSleeping(ids[0], s.Parameters().SleepSteps)).To(BeFalse())
			Expect(pd.SleepCounters[ids[0]]).To(BeZero())
			Expect(pd.Positions[ids[0]][0]).To(BeNumerically("~", 4*10*threshold/60, 1e-6))
			Expect(pd.Velocities[ids[0]][0]).To(BeNumerically("~", 10*threshold, 1e-6))
		})

		It("puts a particle below the speed threshold to sleep", func() {
			ids := addParticles(s, mgl32.Vec3{})
			pd := s.Particles()
			pd.Velocities[ids[0]] = mgl32.Vec4{threshold / 10, 0, 0, 0}

			Expect(s.Solve(1.0/60, 1)).To(Succeed())
			Expect(pd.IsSleeping(ids[0], s.Parameters().SleepSteps)).To(BeTrue())
			Expect(s.Stats().SleepingParticles).To(Equal(1))
		})

		It("counts angular speed", func() {
			ids := addParticles(s, mgl32.Vec3{})
			pd := s.Particles()
			pd.InvRotationalMasses[ids[0]] = 1
			pd.InvInertiaTensors[ids[0]] = mgl32.Vec4{1, 1, 1, 0}
			pd.AngularVelocities[ids[0]] = mgl32.Vec4{0, 10 * threshold, 0, 0}

			Expect(s.Solve(1.0/60, 1)).To(Succeed())
			Expect(pd.SleepCounters[ids[0]]).To(BeZero())
		})
	})

	Describe("interpolation", func() {
		It("blends render positions between step start and end", func() {
			p := zeroGravity()
			p.Interpolation = flex.InterpolationLinear
			p.SleepThreshold = 0
			s, err := solver.New(p, nil)
			Expect(err).NotTo(HaveOccurred())
			ids := addParticles(s, mgl32.Vec3{})
			s.Particles().Velocities[ids[0]] = mgl32.Vec4{1, 0, 0, 0}

			Expect(s.Solve(0.1, 1)).To(Succeed())
			s.Interpolate(0.05)
			snap := s.Snapshot()
			Expect(snap.Positions).To(HaveLen(1))
			Expect(snap.Positions[0][0]).To(BeNumerically("~", 0.05, 1e-5))
			Expect(snap.PrincipalAxes[0][0]).To(Equal(mgl32.Vec4{1, 0, 0, 0.1}))
		})
	})

	Describe("Updater", func() {
		It("steps fixed increments and carries the remainder", func() {
			addParticles(s, mgl32.Vec3{})
			u := solver.NewUpdater(0.01, 1, s)
			n, err := u.Update(0.025)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
			Expect(u.Accumulated()).To(BeNumerically("~", 0.005, 1e-6))
			Expect(s.Stats().Steps).To(BeEquivalentTo(2))
		})

		It("drops surplus steps after a slow frame", func() {
			addParticles(s, mgl32.Vec3{})
			u := solver.NewUpdater(0.01, 1, s)
			u.MaxStepsPerFrame = 3
			n, err := u.Update(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(3))
			Expect(u.Accumulated()).To(BeNumerically("<=", 0.01))
		})
	})

	Describe("Ensemble", func() {
		It("steps independent solvers concurrently", func() {
			var solvers []*solver.Solver
			for k := 0; k < 4; k++ {
				s, err := solver.New(flex.DefaultSolverParameters(), nil)
				Expect(err).NotTo(HaveOccurred())
				addParticles(s, mgl32.Vec3{0, float32(k), 0})
				solvers = append(solvers, s)
			}
			e := solver.NewEnsemble(solvers...)
			e.SetLimit(2)
			Expect(e.Run(context.Background(), 10, 1.0/60, 2)).To(Succeed())
			for _, s := range solvers {
				Expect(s.Stats().Steps).To(BeEquivalentTo(10))
			}
		})

		It("stops on cancellation", func() {
			s, err := solver.New(flex.DefaultSolverParameters(), nil)
			Expect(err).NotTo(HaveOccurred())
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			Expect(solver.NewEnsemble(s).Run(ctx, 10, 1.0/60, 1)).To(MatchError(context.Canceled))
		})
	})

	Describe("inertial frame", func() {
		It("pushes particles against the frame's acceleration", func() {
			ids := addParticles(s, mgl32.Vec3{})
			id := mgl32.QuatIdent()
			one := mgl32.Vec3{1, 1, 1}
			s.InitializeFrame(mgl32.Vec3{}, one, id)
			s.UpdateFrame(mgl32.Vec3{1, 0, 0}, one, id, 1)
			s.ApplyFrame(1, 1)

			Expect(s.Solve(0.1, 1)).To(Succeed())
			Expect(s.Particles().Velocities[ids[0]][0]).To(BeNumerically("<", 0))
		})
	})
})
