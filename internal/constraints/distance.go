package constraints

import (
	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/particles"
)

// Distance keeps pairs of particles at a rest length. MaxCompression is the
// fraction of the rest length a constraint may shrink without resistance,
// which lets ropes and cloth buckle.
type Distance struct {
	family
	RestLengths     []float32
	Compliances     []float32
	MaxCompressions []float32
}

func newDistance(data *particles.Data) *Distance {
	return &Distance{family: newFamily(data, 1)}
}

// Add creates a constraint between p0 and p1. A negative restLength uses
// the current separation.
func (d *Distance) Add(p0, p1 int, restLength, compliance, maxCompression float32) (int, error) {
	i, err := d.add(p0, p1)
	if err != nil {
		return -1, err
	}
	if restLength < 0 {
		restLength = d.data.Position(p0).Sub(d.data.Position(p1)).Len()
	}
	d.RestLengths = append(d.RestLengths, restLength)
	d.Compliances = append(d.Compliances, compliance)
	d.MaxCompressions = append(d.MaxCompressions, flex.Clamp(maxCompression, 0, 1))
	return i, nil
}

func (d *Distance) Remove(i int) error {
	if err := d.remove(i); err != nil {
		return err
	}
	d.RestLengths = removeAt(d.RestLengths, i)
	d.Compliances = removeAt(d.Compliances, i)
	d.MaxCompressions = removeAt(d.MaxCompressions, i)
	return nil
}

func (d *Distance) permuteFields(order []int) {
	d.RestLengths = permuted(d.RestLengths, order)
	d.Compliances = permuted(d.Compliances, order)
	d.MaxCompressions = permuted(d.MaxCompressions, order)
}

func (d *Distance) evaluate(ctx *Context, h float32, p flex.ConstraintParameters) {
	pd := ctx.Particles
	solve(ctx, d.batches, p, func(start, end int) {
		for i := start; i < end; i++ {
			p0, p1 := d.particle(i, 0), d.particle(i, 1)
			w0, w1 := pd.InvMasses[p0], pd.InvMasses[p1]
			w := w0 + w1
			if w == 0 {
				continue
			}

			delta := pd.Position(p0).Sub(pd.Position(p1))
			dist := delta.Len()
			if dist < flex.Epsilon {
				ctx.degenerate()
				continue
			}
			n := delta.Mul(1 / dist)

			rest := d.RestLengths[i]
			c := dist - rest
			if c < 0 {
				c = flex.Min(0, dist-rest*(1-d.MaxCompressions[i]))
			}

			dl := xpbd(c, d.lambdas[i], w, d.Compliances[i], h)
			d.lambdas[i] += dl
			pd.AddPositionDelta(p0, n.Mul(dl*w0))
			pd.AddPositionDelta(p1, n.Mul(-dl*w1))
		}
	})
}
