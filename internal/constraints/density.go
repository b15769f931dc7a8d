package constraints

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/batch"
	"github.com/san-kum/flexsim/internal/contacts"
	"github.com/san-kum/flexsim/internal/flex"
)

// relaxation regularises the density constraint denominator.
const relaxation = 1e-6

// Density enforces incompressibility of fluid particles with position
// based fluids: each fluid particle's density is kept at its rest density
// using the pairs found by contact generation. Densities are only allowed
// to push, which keeps free surfaces from clumping.
//
// Macklin and Müller, "Position Based Fluids", 2013.
type Density struct {
	provider contacts.FluidProvider
	batches  []batch.BatchData
	overflow int

	fluid    []int
	gradSums []mgl32.Vec3
}

// Interactions returns the batched fluid pairs.
func (d *Density) Interactions() []contacts.FluidInteraction { return d.provider.Interactions }

func (d *Density) Batches() []batch.BatchData { return d.batches }

func (d *Density) Overflow() int { return d.overflow }

// FluidParticles returns the active fluid particles of this step.
func (d *Density) FluidParticles() []int { return d.fluid }

func (d *Density) set(b *batch.Batcher, ctx *Context, pairs []contacts.FluidInteraction) {
	pd := ctx.Particles
	d.fluid = d.fluid[:0]
	for i := 0; i < pd.Len(); i++ {
		if pd.Active[i] && pd.IsFluid(i) {
			d.fluid = append(d.fluid, i)
		}
	}
	if cap(d.gradSums) < pd.Len() {
		d.gradSums = make([]mgl32.Vec3, pd.Len())
	}
	d.gradSums = d.gradSums[:pd.Len()]

	d.provider.Interactions = pairs
	if len(pairs) == 0 {
		d.batches, d.overflow = nil, 0
		return
	}
	d.provider.Permute(batch.SortByFirstParticle(&d.provider, pd.Len()))
	res := b.BatchConstraints(&d.provider, pd.Len())
	d.provider.Commit(res.Sorted)
	d.batches, d.overflow = res.Batches, res.Overflow
}

func (d *Density) clear() {
	d.provider.Interactions = nil
	d.batches, d.overflow = nil, 0
	d.fluid = d.fluid[:0]
}

func mass(w float32) float32 {
	if w <= 0 {
		return 1
	}
	return 1 / w
}

// forEachPair runs fn over every pair, batch by batch, with the work items
// of a batch in parallel.
func (d *Density) forEachPair(fn func(c *contacts.FluidInteraction)) {
	pairs := d.provider.Interactions
	for _, b := range d.batches {
		flex.ParallelFor(b.WorkItemCount, 1, func(ws, we int) {
			for w := ws; w < we; w++ {
				start, end := b.GetConstraintRange(w)
				for i := start; i < end; i++ {
					fn(&pairs[i])
				}
			}
		})
	}
}

func (d *Density) evaluate(ctx *Context, h float32, p flex.ConstraintParameters) {
	if len(d.fluid) == 0 {
		return
	}
	pd := ctx.Particles
	k := kernels{is2D: ctx.is2D()}

	// densities start with each particle's own contribution
	for _, i := range d.fluid {
		hi := pd.SmoothingRadii[i]
		pd.FluidData[i] = mgl32.Vec4{mass(pd.InvMasses[i]) * k.poly6(0, hi), 0, 0, pd.FluidData[i][3]}
		d.gradSums[i] = mgl32.Vec3{}
	}

	d.forEachPair(func(c *contacts.FluidInteraction) {
		a, b := c.ParticleA, c.ParticleB
		r := pd.Position(a).Sub(pd.Position(b))
		hs := flex.Max(pd.SmoothingRadii[a], pd.SmoothingRadii[b])
		w := k.poly6(r.LenSqr(), hs)
		g := k.spikyGrad(r, hs)
		c.AvgKernel = w
		c.Gradient = g.Vec4(0)
		c.AvgGradient = g.Len()

		ma, mb := mass(pd.InvMasses[a]), mass(pd.InvMasses[b])
		ra, rb := restDensity(pd.RestDensities[a]), restDensity(pd.RestDensities[b])
		pd.FluidData[a][0] += mb * w
		pd.FluidData[b][0] += ma * w

		ga, gb := g.Mul(mb/ra), g.Mul(ma/rb)
		d.gradSums[a] = d.gradSums[a].Add(ga)
		d.gradSums[b] = d.gradSums[b].Sub(gb)
		pd.FluidData[a][2] += gb.LenSqr()
		pd.FluidData[b][2] += ga.LenSqr()
	})

	flex.ParallelFor(len(d.fluid), applyChunk, func(start, end int) {
		for _, i := range d.fluid[start:end] {
			fd := pd.FluidData[i]
			c := flex.Max(fd[0]/restDensity(pd.RestDensities[i])-1, 0)
			den := d.gradSums[i].LenSqr() + fd[2] + relaxation
			pd.FluidData[i][1] = -c / den
		}
	})

	d.forEachPair(func(c *contacts.FluidInteraction) {
		a, b := c.ParticleA, c.ParticleB
		g := c.Gradient.Vec3()
		lambda := pd.FluidData[a][1] + pd.FluidData[b][1]
		if lambda == 0 {
			return
		}
		ma, mb := mass(pd.InvMasses[a]), mass(pd.InvMasses[b])
		if pd.InvMasses[a] > 0 {
			addSummedDelta(ctx, a, g.Mul(lambda*mb/restDensity(pd.RestDensities[a])))
		}
		if pd.InvMasses[b] > 0 {
			addSummedDelta(ctx, b, g.Mul(-lambda*ma/restDensity(pd.RestDensities[b])))
		}
	})

	ctx.apply(p.SORFactor)
}

// addSummedDelta adds a correction that is summed rather than averaged.
func addSummedDelta(ctx *Context, i int, delta mgl32.Vec3) {
	pd := ctx.Particles
	pd.PositionDeltas[i] = pd.PositionDeltas[i].Add(delta.Vec4(0))
	pd.PositionCounts[i] = 1
}

func restDensity(r float32) float32 {
	if r <= 0 {
		return 1000
	}
	return r
}

// ApplyViscosity smooths fluid velocities towards their neighbours' with
// XSPH, scaled by each particle's viscosity.
func (d *Density) ApplyViscosity(ctx *Context) {
	pd := ctx.Particles
	k := kernels{is2D: ctx.is2D()}
	d.forEachPair(func(c *contacts.FluidInteraction) {
		a, b := c.ParticleA, c.ParticleB
		hs := flex.Max(pd.SmoothingRadii[a], pd.SmoothingRadii[b])
		w := k.poly6(pd.Position(a).Sub(pd.Position(b)).LenSqr(), hs)
		if w == 0 {
			return
		}
		va, vb := pd.Velocities[a], pd.Velocities[b]
		dv := vb.Sub(va)
		rhoA, rhoB := flex.Max(pd.FluidData[a][0], flex.Epsilon), flex.Max(pd.FluidData[b][0], flex.Epsilon)
		ma, mb := mass(pd.InvMasses[a]), mass(pd.InvMasses[b])
		if pd.InvMasses[a] > 0 {
			pd.Velocities[a] = va.Add(dv.Mul(pd.Viscosities[a] * mb / rhoB * w))
		}
		if pd.InvMasses[b] > 0 {
			pd.Velocities[b] = vb.Sub(dv.Mul(pd.Viscosities[b] * ma / rhoA * w))
		}
	})
}
