package constraints

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/flexsim/internal/collider"
	"github.com/san-kum/flexsim/internal/contacts"
	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/geometry"
	"github.com/san-kum/flexsim/internal/particles"
)

func newTestData(t *testing.T, positions ...mgl32.Vec3) *particles.Data {
	t.Helper()
	d := &particles.Data{}
	r := d.Allocate(len(positions))
	for k, i := range r.Indices {
		require.NoError(t, d.Set(i, particles.Particle{Position: positions[k], InvMass: 1, Radius: 0.1}))
	}
	return d
}

func newContext(d *particles.Data) *Context {
	simplices, counts := contacts.PointSimplices(d.ActiveIndices())
	return &Context{
		Particles: d,
		Simplices: simplices,
		Counts:    counts,
		Params:    flex.DefaultSolverParameters(),
		Stats:     &Stats{},
	}
}

func step(s *Set, ctx *Context, t flex.ConstraintType, h float32) {
	s.Rebatch()
	s.Initialize()
	s.Step(t, ctx, h, h, 1)
}

func TestDistanceTwoParticles(t *testing.T) {
	d := newTestData(t, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{2, 0, 0})
	s := NewSet(d, flex.MaxBatchCount)
	_, err := s.Distance.Add(0, 1, 1, 0, 0)
	require.NoError(t, err)

	step(s, newContext(d), flex.Distance, 0.01)

	assert.InDelta(t, 0.5, d.Positions[0][0], 1e-5)
	assert.InDelta(t, 1.5, d.Positions[1][0], 1e-5)
	assert.InDelta(t, 1.0, d.Position(1).Sub(d.Position(0)).Len(), 1e-4)
}

func TestDistanceConverges(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for k := 0; k < 50; k++ {
		sep := 0.01 + rng.Float32()*(10-0.01)
		dir := mgl32.Vec3{rng.Float32() - 0.5, rng.Float32() - 0.5, rng.Float32() - 0.5}.Normalize()
		d := newTestData(t, mgl32.Vec3{}, dir.Mul(sep))
		s := NewSet(d, flex.MaxBatchCount)
		_, err := s.Distance.Add(0, 1, 1, 0, 0)
		require.NoError(t, err)

		step(s, newContext(d), flex.Distance, 1.0/240)
		assert.InDelta(t, 1.0, d.Position(1).Sub(d.Position(0)).Len(), 1e-4, "separation %v", sep)
	}
}

func TestDistanceMaxCompression(t *testing.T) {
	d := newTestData(t, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0.8, 0, 0})
	s := NewSet(d, flex.MaxBatchCount)
	_, err := s.Distance.Add(0, 1, 1, 0, 0.5)
	require.NoError(t, err)

	step(s, newContext(d), flex.Distance, 0.01)
	assert.InDelta(t, 0.8, d.Position(1).Sub(d.Position(0)).Len(), 1e-6)
}

func TestRebatchKeepsConstraintData(t *testing.T) {
	const n = 200
	pos := make([]mgl32.Vec3, n)
	for i := range pos {
		pos[i] = mgl32.Vec3{float32(i), 0, 0}
	}
	d := newTestData(t, pos...)
	s := NewSet(d, flex.MaxBatchCount)

	rng := rand.New(rand.NewSource(7))
	for _, i := range rng.Perm(n - 1) {
		_, err := s.Distance.Add(i, i+1, float32(i), 0, 0)
		require.NoError(t, err)
	}
	// a few longer range springs to force more colours
	for k := 0; k < 100; k++ {
		a, b := rng.Intn(n), rng.Intn(n)
		if a == b {
			continue
		}
		_, err := s.Distance.Add(a, b, float32(1000+k), 0, 0)
		require.NoError(t, err)
	}
	total := s.Distance.Len()
	overflow := s.Rebatch()

	assert.Equal(t, total, s.Distance.Len())
	for i := 0; i < s.Distance.Len(); i++ {
		ps := s.Distance.Particles(i)
		rest := s.Distance.RestLengths[i]
		if rest < 1000 {
			assert.Equal(t, rest, float32(min(ps[0], ps[1])), "constraint %d moved without its data", i)
		}
	}

	solved := 0
	for _, b := range s.Distance.Batches() {
		seen := map[int]bool{}
		for i := b.StartIndex; i < b.StartIndex+b.ConstraintCount; i++ {
			for _, p := range s.Distance.Particles(i) {
				require.False(t, seen[p], "particle %d twice in batch", p)
				seen[p] = true
			}
		}
		solved += b.ConstraintCount
	}
	assert.Equal(t, total, solved+overflow)
}

func TestRemoveReleasesParticles(t *testing.T) {
	d := newTestData(t, mgl32.Vec3{}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{2, 0, 0})
	s := NewSet(d, flex.MaxBatchCount)
	_, err := s.Distance.Add(0, 1, -1, 0, 0)
	require.NoError(t, err)
	_, err = s.Bending.Add(0, 2, 1, -1, 0, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, d.RefCount(0))

	err = d.Release(particles.Range{Indices: []int{0}})
	assert.ErrorIs(t, err, flex.ErrParticleReferenced)

	require.NoError(t, s.Distance.Remove(0))
	assert.Equal(t, 1, d.RefCount(0))
	s.Clear()
	assert.Equal(t, 0, d.RefCount(0))
	require.NoError(t, d.Release(particles.Range{Indices: []int{0}}))

	assert.ErrorIs(t, s.Distance.Remove(3), flex.ErrIndexOutOfRange)
}

func TestAddRejectsBadParticle(t *testing.T) {
	d := newTestData(t, mgl32.Vec3{})
	s := NewSet(d, flex.MaxBatchCount)
	_, err := s.Distance.Add(0, 5, 1, 0, 0)
	assert.ErrorIs(t, err, flex.ErrIndexOutOfRange)
	assert.Equal(t, 0, s.Distance.Len())
	assert.Equal(t, 0, d.RefCount(0))
}

func TestChainSolvesAllEdges(t *testing.T) {
	d := newTestData(t,
		mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1.5, 0, 0}, mgl32.Vec3{3, 0.2, 0},
		mgl32.Vec3{4.5, 0, 0}, mgl32.Vec3{6, 0, 0.3})
	d.InvMasses[0] = 0
	s := NewSet(d, flex.MaxBatchCount)
	_, err := s.Chain.Add([]int{0, 1, 2, 3, 4}, []float32{1, 1, 1, 1}, 0)
	require.NoError(t, err)

	ctx := newContext(d)
	for k := 0; k < 10; k++ {
		step(s, ctx, flex.Chain, 0.01)
	}
	for e := 0; e < 4; e++ {
		assert.InDelta(t, 1, d.Position(e+1).Sub(d.Position(e)).Len(), 1e-3, "edge %d", e)
	}
	assert.Equal(t, mgl32.Vec3{}, d.Position(0))
}

func TestChainRejectsShortInput(t *testing.T) {
	d := newTestData(t, mgl32.Vec3{}, mgl32.Vec3{1, 0, 0})
	s := NewSet(d, flex.MaxBatchCount)
	_, err := s.Chain.Add([]int{0}, nil, 0)
	assert.ErrorIs(t, err, flex.ErrDataModel)
	_, err = s.Chain.Add([]int{0, 1}, []float32{1, 2}, 0)
	assert.ErrorIs(t, err, flex.ErrDataModel)
}

func TestThomas(t *testing.T) {
	// [2 -1 0; -1 2 -1; 0 -1 2] x = [1 0 1] -> x = [1 1 1]
	lower := []float32{0, -1, -1}
	diag := []float32{2, 2, 2}
	upper := []float32{-1, -1, 0}
	rhs := []float32{1, 0, 1}
	require.True(t, thomas(lower, diag, upper, rhs))
	for _, x := range rhs {
		assert.InDelta(t, 1, x, 1e-6)
	}
}

func tetrahedron(t *testing.T, scale float32) (*particles.Data, []int) {
	d := newTestData(t,
		mgl32.Vec3{0, 0, 0}.Mul(scale), mgl32.Vec3{1, 0, 0}.Mul(scale),
		mgl32.Vec3{0, 1, 0}.Mul(scale), mgl32.Vec3{0, 0, 1}.Mul(scale))
	// outward winding
	tris := []int{0, 2, 1, 0, 1, 3, 0, 3, 2, 1, 2, 3}
	return d, tris
}

func TestVolumeRestores(t *testing.T) {
	d, tris := tetrahedron(t, 1)
	rest := meshVolume(d, tris)
	require.InDelta(t, 1.0/6, rest, 1e-6)

	for i := 0; i < 4; i++ {
		d.Positions[i] = d.Positions[i].Mul(1.3)
	}
	s := NewSet(d, flex.MaxBatchCount)
	_, err := s.Volume.Add(tris, rest, 1, 0)
	require.NoError(t, err)

	ctx := newContext(d)
	for k := 0; k < 20; k++ {
		step(s, ctx, flex.Volume, 0.01)
	}
	assert.InDelta(t, rest, meshVolume(d, tris), 1e-4)
}

func TestShapeMatchingKeepsRigidMotion(t *testing.T) {
	d, _ := tetrahedron(t, 1)
	s := NewSet(d, flex.MaxBatchCount)
	_, err := s.ShapeMatching.Add([]int{0, 1, 2, 3}, 1, 0, 0)
	require.NoError(t, err)

	rot := mgl32.QuatRotate(0.7, mgl32.Vec3{0, 1, 0})
	offset := mgl32.Vec3{3, 1, -2}
	for i := 0; i < 4; i++ {
		d.Positions[i] = rot.Rotate(d.Position(i)).Add(offset).Vec4(0)
	}
	com := centerOfMass(d, []int{0, 1, 2, 3})

	step(s, newContext(d), flex.ShapeMatching, 0.01)
	assert.True(t, centerOfMass(d, []int{0, 1, 2, 3}).ApproxEqualThreshold(com, 1e-5))
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			rest := s.ShapeMatching.RestShape[i].Sub(s.ShapeMatching.RestShape[j]).Len()
			assert.InDelta(t, rest, d.Position(i).Sub(d.Position(j)).Len(), 1e-4, "edge %d-%d", i, j)
		}
	}
}

func TestShapeMatchingRestoresShape(t *testing.T) {
	d, _ := tetrahedron(t, 1)
	s := NewSet(d, flex.MaxBatchCount)
	_, err := s.ShapeMatching.Add([]int{0, 1, 2, 3}, 1, 0, 0)
	require.NoError(t, err)

	edge := d.Position(1).Sub(d.Position(0)).Len()
	d.Positions[1] = mgl32.Vec4{1.5, 0, 0, 0}
	step(s, newContext(d), flex.ShapeMatching, 0.01)
	assert.InDelta(t, edge, d.Position(1).Sub(d.Position(0)).Len(), 1e-3)
}

func TestColliderCollisionPushesOut(t *testing.T) {
	d := newTestData(t, mgl32.Vec3{0, 0.05, 0})
	ctx := newContext(d)
	ctx.Shapes = []collider.Shape{{Type: collider.Box, Rigidbody: -1, Material: -1}}

	c := contacts.Contact{BodyA: 0, BodyB: 0, PointA: mgl32.Vec4{1, 0, 0, 0}, Normal: mgl32.Vec4{0, 1, 0, 0}}
	c.CalculateBasis(mgl32.Vec3{})
	c.CalculateContactMassesA(1, mgl32.Vec4{}, mgl32.Vec4{}, mgl32.QuatIdent(), mgl32.Vec4{}, false)

	s := NewSet(d, flex.MaxBatchCount)
	s.SetContacts(ctx, nil, []contacts.Contact{c}, nil)
	step(s, ctx, flex.Collision, 0.01)

	assert.InDelta(t, 0.1, d.Positions[0][1], 1e-5)
	assert.Greater(t, s.ColliderContacts.Contacts()[0].NormalLambda, float32(0))
}

func TestSpeculativeContactDoesNotPull(t *testing.T) {
	d := newTestData(t, mgl32.Vec3{0, 0.15, 0})
	ctx := newContext(d)
	ctx.Shapes = []collider.Shape{{Type: collider.Box, Rigidbody: -1, Material: -1}}
	c := contacts.Contact{BodyA: 0, PointA: mgl32.Vec4{1, 0, 0, 0}, Normal: mgl32.Vec4{0, 1, 0, 0}, NormalInvMassA: 1}

	s := NewSet(d, flex.MaxBatchCount)
	s.SetContacts(ctx, nil, []contacts.Contact{c}, nil)
	step(s, ctx, flex.Collision, 0.01)
	assert.InDelta(t, 0.15, d.Positions[0][1], 1e-6)
}

func TestParticleCollisionSeparates(t *testing.T) {
	d := newTestData(t, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0.1, 0, 0})
	ctx := newContext(d)

	c := contacts.Contact{
		BodyA: 1, BodyB: 0,
		PointA: mgl32.Vec4{1, 0, 0, 0}, PointB: mgl32.Vec4{1, 0, 0, 0},
		Normal: mgl32.Vec4{1, 0, 0, 0}, NormalInvMassA: 1, NormalInvMassB: 1,
	}
	s := NewSet(d, flex.MaxBatchCount)
	s.SetContacts(ctx, []contacts.Contact{c}, nil, nil)
	step(s, ctx, flex.ParticleCollision, 0.01)

	assert.InDelta(t, 0.2, d.Position(1).Sub(d.Position(0)).Len(), 1e-5)
	// equal masses move symmetrically
	assert.InDelta(t, -0.05, d.Positions[0][0], 1e-5)
}

func TestPinFollowsCollider(t *testing.T) {
	d := newTestData(t, mgl32.Vec3{0, 0, 0})
	w := collider.NewWorld()
	h, err := w.AddCollider(collider.SphereDesc(mgl32.Vec3{}, 0.5), geometry.Translate(mgl32.Vec3{0, 2, 0}))
	require.NoError(t, err)

	ctx := newContext(d)
	ctx.World = w
	ctx.Shapes = w.Shapes()
	ctx.Transforms = w.Transforms()

	s := NewSet(d, flex.MaxBatchCount)
	_, err = s.Pin.Add(0, h, mgl32.Vec3{1, 0, 0}, mgl32.Quat{}, 0, 0, 0)
	require.NoError(t, err)

	step(s, ctx, flex.Pin, 0.01)
	assert.True(t, d.Position(0).ApproxEqualThreshold(mgl32.Vec3{1, 2, 0}, 1e-5), "got %v", d.Position(0))
}

func TestPinBreaks(t *testing.T) {
	d := newTestData(t, mgl32.Vec3{0, 0, 0})
	w := collider.NewWorld()
	h, err := w.AddCollider(collider.SphereDesc(mgl32.Vec3{}, 0.5), geometry.Translate(mgl32.Vec3{0, 10, 0}))
	require.NoError(t, err)

	ctx := newContext(d)
	ctx.World = w
	ctx.Transforms = w.Transforms()

	s := NewSet(d, flex.MaxBatchCount)
	_, err = s.Pin.Add(0, h, mgl32.Vec3{}, mgl32.Quat{}, 0, 0, 1)
	require.NoError(t, err)

	step(s, ctx, flex.Pin, 0.01)
	assert.True(t, s.Pin.Broken[0])
	assert.Equal(t, mgl32.Vec3{}, d.Position(0))
}

func TestDensityPushesCompressedFluidApart(t *testing.T) {
	d := &particles.Data{}
	d.Allocate(2)
	for i, x := range []float32{0, 0.05} {
		require.NoError(t, d.Set(i, particles.Particle{
			Position: mgl32.Vec3{x, 0, 0}, InvMass: 1, Radius: 0.05,
			Flags: flex.Fluid, SmoothingRadius: 0.2, RestDensity: 1,
		}))
	}
	ctx := newContext(d)
	s := NewSet(d, flex.MaxBatchCount)
	s.SetContacts(ctx, nil, nil, []contacts.FluidInteraction{{ParticleA: 0, ParticleB: 1}})
	require.Equal(t, []int{0, 1}, s.Density.FluidParticles())

	before := d.Position(1).Sub(d.Position(0)).Len()
	step(s, ctx, flex.Density, 0.01)
	after := d.Position(1).Sub(d.Position(0)).Len()
	assert.Greater(t, after, before)
	// symmetric masses keep the centre in place
	assert.InDelta(t, 0.025, (d.Positions[0][0]+d.Positions[1][0])/2, 1e-5)
}

func TestKernels(t *testing.T) {
	k := kernels{}
	assert.Equal(t, float32(0), k.poly6(1, 1))
	assert.Greater(t, k.poly6(0, 1), k.poly6(0.25, 1))
	g := k.spikyGrad(mgl32.Vec3{0.5, 0, 0}, 1)
	assert.Less(t, g[0], float32(0))
	assert.Equal(t, mgl32.Vec3{}, k.spikyGrad(mgl32.Vec3{2, 0, 0}, 1))
}

func TestBendTwistRestoresDarboux(t *testing.T) {
	d := newTestData(t, mgl32.Vec3{}, mgl32.Vec3{1, 0, 0})
	d.InvRotationalMasses[0], d.InvRotationalMasses[1] = 1, 1
	s := NewSet(d, flex.MaxBatchCount)
	_, err := s.BendTwist.Add(0, 1, mgl32.Vec3{}, 0, 0)
	require.NoError(t, err)

	d.Orientations[1] = mgl32.QuatRotate(0.2, mgl32.Vec3{0, 0, 1})
	ctx := newContext(d)
	for k := 0; k < 20; k++ {
		step(s, ctx, flex.BendTwist, 0.01)
	}
	rel := d.Orientations[0].Conjugate().Mul(d.Orientations[1])
	assert.InDelta(t, 1, flex.Abs(rel.W), 1e-3)
}

func TestStretchShearPullsSegmentToRestLength(t *testing.T) {
	d := newTestData(t, mgl32.Vec3{}, mgl32.Vec3{0, 0, 1.5}, mgl32.Vec3{0, 0, 0.75})
	s := NewSet(d, flex.MaxBatchCount)
	_, err := s.StretchShear.Add(0, 1, 2, 1, mgl32.Quat{}, mgl32.Vec3{})
	require.NoError(t, err)

	ctx := newContext(d)
	for k := 0; k < 10; k++ {
		step(s, ctx, flex.StretchShear, 0.01)
	}
	assert.InDelta(t, 1, d.Position(1).Sub(d.Position(0)).Len(), 1e-3)
}

func TestTetherOnlyPulls(t *testing.T) {
	d := newTestData(t, mgl32.Vec3{}, mgl32.Vec3{0.5, 0, 0})
	d.InvMasses[1] = 0
	s := NewSet(d, flex.MaxBatchCount)
	_, err := s.Tether.Add(0, 1, 1, 1, 0)
	require.NoError(t, err)

	ctx := newContext(d)
	step(s, ctx, flex.Tether, 0.01)
	assert.Equal(t, mgl32.Vec3{}, d.Position(0))

	d.Positions[0] = mgl32.Vec4{-2, 0, 0, 0}
	step(s, ctx, flex.Tether, 0.01)
	assert.InDelta(t, -0.5, d.Positions[0][0], 1e-5)
}

func TestDisabledTypeIsSkipped(t *testing.T) {
	d := newTestData(t, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{2, 0, 0})
	s := NewSet(d, flex.MaxBatchCount)
	_, err := s.Distance.Add(0, 1, 1, 0, 0)
	require.NoError(t, err)
	s.Params[flex.Distance].Enabled = false

	step(s, newContext(d), flex.Distance, 0.01)
	assert.Equal(t, float32(2), d.Positions[1][0])
}

func TestBendingPlasticity(t *testing.T) {
	tests := []struct {
		name  string
		yield float32
		creep float32
		moves bool
	}{
		{"elastic", 0.1, 0, false},
		{"below yield", 1, 1, false},
		{"creeps", 0.1, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestData(t, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{2, 0, 0}, mgl32.Vec3{1, 1, 0})
			s := NewSet(d, flex.MaxBatchCount)
			_, err := s.Bending.Add(0, 1, 2, 0, 0, 0, tt.yield, tt.creep)
			require.NoError(t, err)

			step(s, newContext(d), flex.Bending, 0.01)

			rest := s.Bending.RestBends[0]
			if tt.moves {
				assert.Greater(t, rest, float32(0))
				assert.Less(t, rest, float32(2.0/3))
			} else {
				assert.Equal(t, float32(0), rest)
			}
		})
	}
}
