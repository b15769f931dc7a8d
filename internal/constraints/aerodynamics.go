package constraints

import (
	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/particles"
)

// Aerodynamics applies drag and lift from the particle's velocity relative
// to its wind, using the particle normal computed from the triangles it
// belongs to. Particles without a normal get isotropic drag.
type Aerodynamics struct {
	family
	Areas []float32
	Drags []float32
	Lifts []float32
}

func newAerodynamics(data *particles.Data) *Aerodynamics {
	return &Aerodynamics{family: newFamily(data, 1)}
}

func (a *Aerodynamics) Add(particle int, area, drag, lift float32) (int, error) {
	i, err := a.add(particle)
	if err != nil {
		return -1, err
	}
	a.Areas = append(a.Areas, area)
	a.Drags = append(a.Drags, drag)
	a.Lifts = append(a.Lifts, lift)
	return i, nil
}

func (a *Aerodynamics) Remove(i int) error {
	if err := a.remove(i); err != nil {
		return err
	}
	a.Areas = removeAt(a.Areas, i)
	a.Drags = removeAt(a.Drags, i)
	a.Lifts = removeAt(a.Lifts, i)
	return nil
}

func (a *Aerodynamics) permuteFields(order []int) {
	a.Areas = permuted(a.Areas, order)
	a.Drags = permuted(a.Drags, order)
	a.Lifts = permuted(a.Lifts, order)
}

func (a *Aerodynamics) evaluate(ctx *Context, h float32, p flex.ConstraintParameters) {
	pd := ctx.Particles
	solve(ctx, a.batches, p, func(start, end int) {
		for i := start; i < end; i++ {
			pi := a.particle(i, 0)
			w := pd.InvMasses[pi]
			if w == 0 {
				continue
			}
			v := pd.Positions[pi].Sub(pd.PrevPositions[pi]).Vec3().Mul(1 / h)
			rel := v.Sub(pd.Wind[pi].Vec3())
			speed := rel.Len()
			if speed < flex.Epsilon {
				continue
			}

			n := pd.Normals[pi].Vec3()
			force := rel.Mul(-a.Drags[i] * a.Areas[i] * speed)
			if n.LenSqr() > flex.Epsilon {
				n = n.Normalize()
				vn := rel.Dot(n)
				if vn < 0 {
					n = n.Mul(-1)
					vn = -vn
				}
				// drag opposes the normal component, lift pushes across the flow
				force = n.Mul(-a.Drags[i] * a.Areas[i] * vn * speed)
				lift := n.Cross(rel).Cross(rel)
				if l := lift.Len(); l > flex.Epsilon {
					force = force.Add(lift.Mul(a.Lifts[i] * a.Areas[i] * vn * speed / l))
				}
			}
			pd.AddPositionDelta(pi, force.Mul(w*h*h))
		}
	})
}
