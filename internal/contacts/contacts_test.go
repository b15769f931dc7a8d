package contacts

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/flexsim/internal/collider"
	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/geometry"
	"github.com/san-kum/flexsim/internal/particles"
)

func TestStartAndSize(t *testing.T) {
	c := SimplexCounts{Points: 2, Edges: 2, Triangles: 1, Tetrahedra: 1}
	tests := []struct{ i, start, size int }{
		{0, 0, 1},
		{1, 1, 1},
		{2, 2, 2},
		{3, 4, 2},
		{4, 6, 3},
		{5, 9, 4},
	}
	for _, tt := range tests {
		s, n := c.StartAndSize(tt.i)
		assert.Equal(t, tt.start, s, "start of %d", tt.i)
		assert.Equal(t, tt.size, n, "size of %d", tt.i)
	}
	assert.Equal(t, 13, c.IndexCount())
	assert.Equal(t, 6, c.SimplexCount())
}

func TestValidateSimplices(t *testing.T) {
	c := SimplexCounts{Points: 1, Edges: 1}
	require.NoError(t, c.Validate([]int{0, 1, 2}, 3))
	assert.ErrorIs(t, c.Validate([]int{0, 1, 5}, 3), flex.ErrIndexOutOfRange)
	assert.ErrorIs(t, c.Validate([]int{0, 1}, 3), flex.ErrDataModel)
}

func TestSolvePenetration(t *testing.T) {
	c := Contact{Normal: mgl32.Vec4{0, 1, 0, 0}, NormalInvMassA: 1, NormalInvMassB: 1}

	// 0.2 deep, no depenetration limit
	dl := c.SolvePenetration(mgl32.Vec3{0, -0.2, 0}, mgl32.Vec3{}, 100)
	assert.InDelta(t, 0.1, dl, 1e-6)

	// separated: accumulated lambda cannot go negative
	c.ResetLambdas()
	dl = c.SolvePenetration(mgl32.Vec3{0, 0.5, 0}, mgl32.Vec3{}, 100)
	assert.Equal(t, float32(0), dl)
	assert.Equal(t, float32(0), c.NormalLambda)

	// depenetration capped at 0.05 per substep
	c.ResetLambdas()
	dl = c.SolvePenetration(mgl32.Vec3{0, -1, 0}, mgl32.Vec3{}, 0.05)
	assert.InDelta(t, 0.025, dl, 1e-6)
}

func TestSolveFrictionCone(t *testing.T) {
	c := Contact{Normal: mgl32.Vec4{0, 1, 0, 0}}
	c.CalculateBasis(mgl32.Vec3{1, 0, 0})
	c.CalculateContactMassesA(1, mgl32.Vec4{}, mgl32.Vec4{}, mgl32.QuatIdent(), mgl32.Vec4{}, false)
	c.NormalLambda = 1

	// small slip is fully removed by static friction
	dt, db := c.SolveFriction(mgl32.Vec3{0.1, 0, 0}, 0.5, 0.3)
	assert.InDelta(t, -0.1, dt, 1e-6)
	assert.InDelta(t, 0, db, 1e-6)

	// large slip is limited to the dynamic cone
	c.TangentLambda, c.BitangentLambda = 0, 0
	dt, _ = c.SolveFriction(mgl32.Vec3{2, 0, 0}, 0.5, 0.3)
	assert.InDelta(t, -0.3, dt, 1e-5)
}

func TestOptimizeSegmentAgainstPlane(t *testing.T) {
	// tilted segment above a box top: the lower end should win
	s := Simplex{Size: 2, Positions: [4]mgl32.Vec3{{0, 1, 0}, {1, 2, 0}}, Radii: [4]float32{0.1, 0.1}}
	box := collider.Shape{Type: collider.Box, Size: mgl32.Vec3{10, 1, 10}, Center: mgl32.Vec3{0, -0.5, 0}}
	q := ColliderQuery(box, geometry.Identity(), nil, 10, false)

	bary, sp := Optimize(q, &s, geometry.SimplexCentroid(2), 16, 1e-4)
	assert.Greater(t, bary[0], float32(0.9))
	assert.InDelta(t, 0.9, sp.Distance, 0.05)
}

func TestClosestPointOnTetrahedron(t *testing.T) {
	s := Simplex{Size: 4, Positions: [4]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}

	p, b := ClosestPointOnSimplex(&s, mgl32.Vec3{0.1, 0.1, 0.1})
	assert.Equal(t, mgl32.Vec3{0.1, 0.1, 0.1}, p)
	assert.InDelta(t, 1, b[0]+b[1]+b[2]+b[3], 1e-5)

	p, _ = ClosestPointOnSimplex(&s, mgl32.Vec3{0.2, 0.2, -1})
	assert.InDelta(t, 0, p[2], 1e-5)
}

func randomInput(rng *rand.Rand, n int, spread float32) *Input {
	d := &particles.Data{}
	r := d.Allocate(n)
	for _, i := range r.Indices {
		_ = d.Set(i, particles.Particle{
			Position: mgl32.Vec3{rng.Float32() * spread, rng.Float32() * spread, rng.Float32() * spread},
			InvMass:  1,
			Radius:   0.05 + rng.Float32()*0.2,
			Group:    i,
		})
	}
	simplices, counts := PointSimplices(r.Indices)
	return &Input{Particles: d, Simplices: simplices, Counts: counts, Params: flex.DefaultSolverParameters(), Dt: 0.02}
}

type pair struct{ a, b int }

func TestGridMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	in := randomInput(rng, 400, 4)

	g := NewParticleGrid()
	g.Update(in)
	res := g.GenerateContacts(in)

	got := map[pair]bool{}
	for _, c := range res.Contacts {
		p := pair{min(c.BodyA, c.BodyB), max(c.BodyA, c.BodyB)}
		require.False(t, got[p], "pair %v generated twice", p)
		got[p] = true
	}

	n := in.Counts.SimplexCount()
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			pa, pb := in.Particles.Position(a), in.Particles.Position(b)
			ra, rb := in.Particles.Radii[a][0], in.Particles.Radii[b][0]
			gap := pa.Sub(pb).Len() - ra - rb - in.Params.CollisionMargin
			// skip pairs sitting on the rounding boundary
			if gap > -1e-4 && gap < 1e-4 {
				continue
			}
			assert.Equal(t, gap < 0, got[pair{a, b}], "pair %d-%d gap %v", a, b, gap)
		}
	}
}

func TestGenerateContactsDeterministic(t *testing.T) {
	run := func() []Contact {
		in := randomInput(rand.New(rand.NewSource(11)), 300, 3)
		g := NewParticleGrid()
		g.Update(in)
		return g.GenerateContacts(in).Contacts
	}
	a, b := run(), run()
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].BodyA, b[i].BodyA)
		assert.Equal(t, a[i].BodyB, b[i].BodyB)
	}
}

func TestSameGroupWithoutSelfCollision(t *testing.T) {
	d := &particles.Data{}
	r := d.Allocate(2)
	_ = d.Set(0, particles.Particle{Position: mgl32.Vec3{0, 0, 0}, InvMass: 1, Radius: 0.1, Group: 1})
	_ = d.Set(1, particles.Particle{Position: mgl32.Vec3{0.1, 0, 0}, InvMass: 1, Radius: 0.1, Group: 1})
	simplices, counts := PointSimplices(r.Indices)
	in := &Input{Particles: d, Simplices: simplices, Counts: counts, Params: flex.DefaultSolverParameters(), Dt: 0.01}

	g := NewParticleGrid()
	g.Update(in)
	assert.Empty(t, g.GenerateContacts(in).Contacts)

	d.Phases[0] = flex.MakePhase(1, flex.SelfCollide)
	d.Phases[1] = flex.MakePhase(1, flex.SelfCollide)
	assert.Len(t, g.GenerateContacts(in).Contacts, 1)
}

func TestFluidPairs(t *testing.T) {
	d := &particles.Data{}
	r := d.Allocate(3)
	for i, x := range []float32{0, 0.15, 1} {
		_ = d.Set(i, particles.Particle{
			Position: mgl32.Vec3{x, 0, 0}, InvMass: 1, Radius: 0.05,
			Group: 0, Flags: flex.Fluid | flex.SelfCollide, SmoothingRadius: 0.2, RestDensity: 1000,
		})
	}
	simplices, counts := PointSimplices(r.Indices)
	in := &Input{Particles: d, Simplices: simplices, Counts: counts, Params: flex.DefaultSolverParameters(), Dt: 0.01}
	// bounds must cover the smoothing radius
	in.Params.CollisionMargin = 0.2

	g := NewParticleGrid()
	g.Update(in)
	res := g.GenerateContacts(in)
	assert.Empty(t, res.Contacts)
	require.Len(t, res.Fluid, 1)
	assert.Equal(t, 0, res.Fluid[0].ParticleA)
	assert.Equal(t, 1, res.Fluid[0].ParticleB)
}

func TestColliderContacts(t *testing.T) {
	d := &particles.Data{}
	r := d.Allocate(2)
	_ = d.Set(0, particles.Particle{Position: mgl32.Vec3{0, 0.11, 0}, InvMass: 1, Radius: 0.1})
	_ = d.Set(1, particles.Particle{Position: mgl32.Vec3{0, 3, 0}, InvMass: 1, Radius: 0.1})
	simplices, counts := PointSimplices(r.Indices)
	in := &Input{Particles: d, Simplices: simplices, Counts: counts, Params: flex.DefaultSolverParameters(), Dt: 0.01}

	w := collider.NewWorld()
	_, err := w.AddCollider(collider.BoxDesc(mgl32.Vec3{0, -0.5, 0}, mgl32.Vec3{4, 1, 4}), geometry.Identity())
	require.NoError(t, err)

	pg := NewParticleGrid()
	pg.Update(in)
	cg := NewColliderGrid()
	cg.Update(w, false)
	cs := cg.GenerateContacts(in, w, pg.Bounds())

	require.Len(t, cs, 1)
	assert.Equal(t, 0, cs[0].BodyA)
	assert.InDelta(t, 0.01, cs[0].Distance, 1e-4)
	assert.InDelta(t, 1, cs[0].Normal[1], 1e-4)
	assert.Equal(t, float32(0), cs[0].NormalInvMassB)
}

func TestParticleGridQuery(t *testing.T) {
	in := randomInput(rand.New(rand.NewSource(5)), 200, 5)
	g := NewParticleGrid()
	g.Update(in)

	q := geometry.Aabb{Min: mgl32.Vec3{1, 1, 1}, Max: mgl32.Vec3{2, 2, 2}}
	got := g.Query(q)
	var want []int
	for i, b := range g.Bounds() {
		if b.Overlaps(q) {
			want = append(want, i)
		}
	}
	assert.Equal(t, want, got)
}

func TestProviderBatchesSimplexParticles(t *testing.T) {
	counts := SimplexCounts{Points: 1, Edges: 1}
	p := &ContactProvider{
		Contacts:  []Contact{{BodyA: 0, BodyB: 1}},
		Simplices: []int{7, 3, 4},
		Counts:    counts,
	}
	assert.Equal(t, 3, p.GetParticleCount(0))
	assert.Equal(t, 7, p.GetParticle(0, 0))
	assert.Equal(t, 3, p.GetParticle(0, 1))
	assert.Equal(t, 4, p.GetParticle(0, 2))

	p.IsCollider = true
	assert.Equal(t, 1, p.GetParticleCount(0))
}
