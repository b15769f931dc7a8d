package constraints

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/particles"
)

// Pin attaches a particle to a point fixed in a collider's local frame.
// The coupling is one way: colliders are never pushed back. A pin whose
// force exceeds its BreakThreshold is disabled. Oriented particles also
// have their orientation pinned to the collider rotation times
// RestDarboux.
type Pin struct {
	family
	Colliders       []flex.Handle
	Offsets         []mgl32.Vec3
	RestDarboux     []mgl32.Quat
	Compliances     [][2]float32
	BreakThresholds []float32
	Broken          []bool

	colliderIndex []int
}

func newPin(data *particles.Data) *Pin {
	return &Pin{family: newFamily(data, 3)}
}

// Add pins particle to the collider at local offset. A breakThreshold of
// zero or less never breaks.
func (p *Pin) Add(particle int, coll flex.Handle, offset mgl32.Vec3, restDarboux mgl32.Quat, linearCompliance, angularCompliance, breakThreshold float32) (int, error) {
	i, err := p.add(particle)
	if err != nil {
		return -1, err
	}
	if restDarboux == (mgl32.Quat{}) {
		restDarboux = mgl32.QuatIdent()
	}
	p.Colliders = append(p.Colliders, coll)
	p.Offsets = append(p.Offsets, offset)
	p.RestDarboux = append(p.RestDarboux, restDarboux)
	p.Compliances = append(p.Compliances, [2]float32{linearCompliance, angularCompliance})
	p.BreakThresholds = append(p.BreakThresholds, breakThreshold)
	p.Broken = append(p.Broken, false)
	return i, nil
}

func (p *Pin) Remove(i int) error {
	if err := p.remove(i); err != nil {
		return err
	}
	p.Colliders = removeAt(p.Colliders, i)
	p.Offsets = removeAt(p.Offsets, i)
	p.RestDarboux = removeAt(p.RestDarboux, i)
	p.Compliances = removeAt(p.Compliances, i)
	p.BreakThresholds = removeAt(p.BreakThresholds, i)
	p.Broken = removeAt(p.Broken, i)
	return nil
}

func (p *Pin) permuteFields(order []int) {
	p.Colliders = permuted(p.Colliders, order)
	p.Offsets = permuted(p.Offsets, order)
	p.RestDarboux = permuted(p.RestDarboux, order)
	p.Compliances = permuted(p.Compliances, order)
	p.BreakThresholds = permuted(p.BreakThresholds, order)
	p.Broken = permuted(p.Broken, order)
}

// resolve maps collider handles to dense indices for this step. Stale
// handles resolve to -1 and their pins are skipped.
func (p *Pin) resolve(ctx *Context) {
	p.colliderIndex = resizeInts(p.colliderIndex, p.Len())
	for i, h := range p.Colliders {
		p.colliderIndex[i] = -1
		if ctx.World == nil {
			continue
		}
		if idx, err := ctx.World.ColliderIndex(h); err == nil && idx < len(ctx.Transforms) {
			p.colliderIndex[i] = idx
		}
	}
}

func (p *Pin) evaluate(ctx *Context, h float32, params flex.ConstraintParameters) {
	p.resolve(ctx)
	pd := ctx.Particles
	solve(ctx, p.batches, params, func(start, end int) {
		for i := start; i < end; i++ {
			ci := p.colliderIndex[i]
			if p.Broken[i] || ci < 0 {
				continue
			}
			pi := p.particle(i, 0)
			t := ctx.Transforms[ci]

			if w := pd.InvMasses[pi]; w > 0 {
				target := t.TransformPoint(p.Offsets[i])
				c := pd.Position(pi).Sub(target)
				alpha := p.Compliances[i][0] / (h * h)
				lambda := mgl32.Vec3{p.lambdas[3*i], p.lambdas[3*i+1], p.lambdas[3*i+2]}
				dl := c.Mul(-1).Sub(lambda.Mul(alpha)).Mul(1 / (w + alpha))
				lambda = lambda.Add(dl)
				p.lambdas[3*i], p.lambdas[3*i+1], p.lambdas[3*i+2] = lambda[0], lambda[1], lambda[2]

				if th := p.BreakThresholds[i]; th > 0 && lambda.Len()/(h*h) > th {
					p.Broken[i] = true
					continue
				}
				pd.AddPositionDelta(pi, dl.Mul(w))
			}

			if wq := pd.InvRotationalMasses[pi]; wq > 0 {
				target := t.Rotation.Mul(p.RestDarboux[i])
				q := pd.Orientations[pi]
				diff := target.Mul(q.Conjugate())
				if diff.W < 0 {
					diff = diff.Scale(-1)
				}
				alpha := p.Compliances[i][1] / (h * h)
				// rotation vector taking q to target, scaled by the compliance share
				omega := diff.V.Mul(2 * wq / (wq + alpha))
				dq := mgl32.Quat{V: omega}.Mul(q).Scale(0.5)
				pd.AddOrientationDelta(pi, dq)
			}
		}
	})
}
