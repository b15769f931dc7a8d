package constraints

import (
	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/particles"
)

// Tether limits how far a particle may drift from an anchor particle. It
// only pulls, never pushes.
type Tether struct {
	family
	MaxLengths  []float32
	Scales      []float32
	Compliances []float32
}

func newTether(data *particles.Data) *Tether {
	return &Tether{family: newFamily(data, 1)}
}

// Add tethers particle to anchor. A negative maxLength uses the current
// separation.
func (t *Tether) Add(particle, anchor int, maxLength, scale, compliance float32) (int, error) {
	i, err := t.add(particle, anchor)
	if err != nil {
		return -1, err
	}
	if maxLength < 0 {
		maxLength = t.data.Position(particle).Sub(t.data.Position(anchor)).Len()
	}
	t.MaxLengths = append(t.MaxLengths, maxLength)
	t.Scales = append(t.Scales, scale)
	t.Compliances = append(t.Compliances, compliance)
	return i, nil
}

func (t *Tether) Remove(i int) error {
	if err := t.remove(i); err != nil {
		return err
	}
	t.MaxLengths = removeAt(t.MaxLengths, i)
	t.Scales = removeAt(t.Scales, i)
	t.Compliances = removeAt(t.Compliances, i)
	return nil
}

func (t *Tether) permuteFields(order []int) {
	t.MaxLengths = permuted(t.MaxLengths, order)
	t.Scales = permuted(t.Scales, order)
	t.Compliances = permuted(t.Compliances, order)
}

func (t *Tether) evaluate(ctx *Context, h float32, p flex.ConstraintParameters) {
	pd := ctx.Particles
	solve(ctx, t.batches, p, func(start, end int) {
		for i := start; i < end; i++ {
			p0, p1 := t.particle(i, 0), t.particle(i, 1)
			w0, w1 := pd.InvMasses[p0], pd.InvMasses[p1]
			w := w0 + w1
			if w == 0 {
				continue
			}
			delta := pd.Position(p0).Sub(pd.Position(p1))
			dist := delta.Len()
			c := dist - t.MaxLengths[i]*t.Scales[i]
			if c <= 0 || dist < flex.Epsilon {
				continue
			}
			n := delta.Mul(1 / dist)

			dl := xpbd(c, t.lambdas[i], w, t.Compliances[i], h)
			t.lambdas[i] += dl
			pd.AddPositionDelta(p0, n.Mul(dl*w0))
			pd.AddPositionDelta(p1, n.Mul(-dl*w1))
		}
	})
}
