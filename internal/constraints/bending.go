package constraints

import (
	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/particles"
)

// Bending acts on particle triplets (p0, p1, p2) where p2 is the middle
// particle. It keeps p2 at RestBends from the triplet's centroid. Bending
// beyond the rest value by more than the yield value permanently creeps
// the rest value towards the current shape.
type Bending struct {
	family
	RestBends   []float32
	Compliances []float32
	MaxBendings []float32
	// Plasticity holds yield and creep per constraint.
	Plasticity [][2]float32
}

func newBending(data *particles.Data) *Bending {
	return &Bending{family: newFamily(data, 1)}
}

// Add creates a bending constraint. A negative restBend uses the current
// shape.
func (b *Bending) Add(p0, p1, p2 int, restBend, compliance, maxBending, yield, creep float32) (int, error) {
	i, err := b.add(p0, p1, p2)
	if err != nil {
		return -1, err
	}
	if restBend < 0 {
		x0, x1, x2 := b.data.Position(p0), b.data.Position(p1), b.data.Position(p2)
		c := x0.Add(x1).Add(x2).Mul(1.0 / 3)
		restBend = x2.Sub(c).Len()
	}
	b.RestBends = append(b.RestBends, restBend)
	b.Compliances = append(b.Compliances, compliance)
	b.MaxBendings = append(b.MaxBendings, maxBending)
	b.Plasticity = append(b.Plasticity, [2]float32{yield, creep})
	return i, nil
}

func (b *Bending) Remove(i int) error {
	if err := b.remove(i); err != nil {
		return err
	}
	b.RestBends = removeAt(b.RestBends, i)
	b.Compliances = removeAt(b.Compliances, i)
	b.MaxBendings = removeAt(b.MaxBendings, i)
	b.Plasticity = removeAt(b.Plasticity, i)
	return nil
}

func (b *Bending) permuteFields(order []int) {
	b.RestBends = permuted(b.RestBends, order)
	b.Compliances = permuted(b.Compliances, order)
	b.MaxBendings = permuted(b.MaxBendings, order)
	b.Plasticity = permuted(b.Plasticity, order)
}

func (b *Bending) evaluate(ctx *Context, h float32, p flex.ConstraintParameters) {
	pd := ctx.Particles
	solve(ctx, b.batches, p, func(start, end int) {
		for i := start; i < end; i++ {
			p0, p1, p2 := b.particle(i, 0), b.particle(i, 1), b.particle(i, 2)
			w0, w1, w2 := pd.InvMasses[p0], pd.InvMasses[p1], pd.InvMasses[p2]
			w := (w0 + w1 + 4*w2) / 9
			if w == 0 {
				continue
			}

			x0, x1, x2 := pd.Position(p0), pd.Position(p1), pd.Position(p2)
			bend := x2.Sub(x0.Add(x1).Add(x2).Mul(1.0 / 3))
			dist := bend.Len()
			if dist < flex.Epsilon {
				continue
			}
			n := bend.Mul(1 / dist)

			excess := dist - b.RestBends[i]
			if yield, creep := b.Plasticity[i][0], b.Plasticity[i][1]; creep > 0 && flex.Abs(excess) > yield {
				b.RestBends[i] += excess * flex.Min(creep*h, 1)
				excess = dist - b.RestBends[i]
			}

			c := flex.Max(0, excess-b.MaxBendings[i])
			if c == 0 && b.lambdas[i] == 0 {
				continue
			}
			dl := xpbd(c, b.lambdas[i], w, b.Compliances[i], h)
			b.lambdas[i] += dl
			pd.AddPositionDelta(p0, n.Mul(-dl*w0/3))
			pd.AddPositionDelta(p1, n.Mul(-dl*w1/3))
			pd.AddPositionDelta(p2, n.Mul(2*dl*w2/3))
		}
	})
}
