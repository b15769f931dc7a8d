package constraints

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/particles"
)

// Chain solves a whole strand of distance constraints at once with a
// tridiagonal direct solve, so long inextensible ropes do not need many
// iterations. RestLengths is aligned with the flattened particle indices:
// entry start+k holds the length of edge k, the last entry of each chain
// is unused.
type Chain struct {
	family
	RestLengths []float32
	Compliances []float32
}

func newChain(data *particles.Data) *Chain {
	return &Chain{family: newFamily(data, 1)}
}

// Add creates a chain through ps. restLengths has len(ps)-1 entries, or is
// nil to use the current edge lengths.
func (c *Chain) Add(ps []int, restLengths []float32, compliance float32) (int, error) {
	if len(ps) < 2 {
		return -1, &flex.DataModelError{Field: "chain particles", Want: 2, Got: len(ps)}
	}
	if restLengths != nil && len(restLengths) != len(ps)-1 {
		return -1, &flex.DataModelError{Field: "chain rest lengths", Want: len(ps) - 1, Got: len(restLengths)}
	}
	i, err := c.add(ps...)
	if err != nil {
		return -1, err
	}
	for k := range ps {
		var l float32
		switch {
		case k == len(ps)-1:
		case restLengths != nil:
			l = restLengths[k]
		default:
			l = c.data.Position(ps[k+1]).Sub(c.data.Position(ps[k])).Len()
		}
		c.RestLengths = append(c.RestLengths, l)
	}
	c.Compliances = append(c.Compliances, compliance)
	return i, nil
}

func (c *Chain) Remove(i int) error {
	if err := flex.CheckIndex("constraint", i, c.Len()); err != nil {
		return err
	}
	start, size := c.starts[i], c.sizes[i]
	if err := c.remove(i); err != nil {
		return err
	}
	c.RestLengths = append(c.RestLengths[:start], c.RestLengths[start+size:]...)
	c.Compliances = removeAt(c.Compliances, i)
	return nil
}

func (c *Chain) permuteFields(order []int) {
	rest := make([]float32, 0, len(c.RestLengths))
	for _, i := range order {
		rest = append(rest, c.RestLengths[c.starts[i]:c.starts[i]+c.sizes[i]]...)
	}
	c.RestLengths = rest
	c.Compliances = permuted(c.Compliances, order)
}

type chainScratch struct {
	n     []mgl32.Vec3
	lower []float32
	diag  []float32
	upper []float32
	rhs   []float32
}

func (s *chainScratch) resize(m int) {
	if cap(s.diag) < m {
		s.n = make([]mgl32.Vec3, m)
		s.lower = make([]float32, m)
		s.diag = make([]float32, m)
		s.upper = make([]float32, m)
		s.rhs = make([]float32, m)
	}
	s.n, s.lower, s.diag = s.n[:m], s.lower[:m], s.diag[:m]
	s.upper, s.rhs = s.upper[:m], s.rhs[:m]
}

func (c *Chain) evaluate(ctx *Context, h float32, p flex.ConstraintParameters) {
	pd := ctx.Particles
	solve(ctx, c.batches, p, func(start, end int) {
		var s chainScratch
		for i := start; i < end; i++ {
			ps := c.Particles(i)
			rest := c.RestLengths[c.starts[i]:]
			m := len(ps) - 1
			s.resize(m)
			alpha := c.Compliances[i] / (h * h)

			ok := true
			for e := 0; e < m; e++ {
				d := pd.Position(ps[e+1]).Sub(pd.Position(ps[e]))
				l := d.Len()
				if l < flex.Epsilon {
					ok = false
					break
				}
				s.n[e] = d.Mul(1 / l)
				s.rhs[e] = -(l - rest[e])
			}
			if !ok {
				ctx.degenerate()
				continue
			}

			for e := 0; e < m; e++ {
				wa, wb := pd.InvMasses[ps[e]], pd.InvMasses[ps[e+1]]
				s.diag[e] = wa + wb + alpha
				s.lower[e], s.upper[e] = 0, 0
				if e > 0 {
					s.lower[e] = -wa * s.n[e-1].Dot(s.n[e])
				}
				if e < m-1 {
					s.upper[e] = -wb * s.n[e].Dot(s.n[e+1])
				}
			}
			if !thomas(s.lower, s.diag, s.upper, s.rhs) {
				ctx.degenerate()
				continue
			}

			for k, pi := range ps {
				w := pd.InvMasses[pi]
				if w == 0 {
					continue
				}
				var delta mgl32.Vec3
				if k > 0 {
					delta = delta.Add(s.n[k-1].Mul(s.rhs[k-1]))
				}
				if k < m {
					delta = delta.Sub(s.n[k].Mul(s.rhs[k]))
				}
				pd.AddPositionDelta(pi, delta.Mul(w))
			}
		}
	})
}

// thomas solves the tridiagonal system in place, leaving the solution in
// rhs. It reports false on a zero pivot.
func thomas(lower, diag, upper, rhs []float32) bool {
	m := len(diag)
	for e := 0; e < m; e++ {
		if e > 0 {
			diag[e] -= lower[e] * upper[e-1]
			rhs[e] -= lower[e] * rhs[e-1]
		}
		if flex.Abs(diag[e]) < 1e-12 {
			return false
		}
		upper[e] /= diag[e]
		rhs[e] /= diag[e]
	}
	for e := m - 2; e >= 0; e-- {
		rhs[e] -= upper[e] * rhs[e+1]
	}
	return true
}
