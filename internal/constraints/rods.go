package constraints

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/particles"
)

var (
	axisZ    = mgl32.Vec3{0, 0, 1}
	axisZBar = mgl32.Quat{V: mgl32.Vec3{0, 0, -1}}
)

// StretchShear couples a rod segment (p0, p1) with the orientation of a
// third particle so the segment stays aligned with the frame's z axis and
// keeps its rest length. Compliances hold shear x, shear y and stretch.
//
// Kugelstadt and Schömer, "Position and Orientation Based Cosserat Rods",
// 2016.
type StretchShear struct {
	family
	RestLengths      []float32
	RestOrientations []mgl32.Quat
	Compliances      []mgl32.Vec3
}

func newStretchShear(data *particles.Data) *StretchShear {
	return &StretchShear{family: newFamily(data, 3)}
}

// Add creates a segment between p0 and p1 framed by the orientation of q.
// A negative restLength uses the current length.
func (s *StretchShear) Add(p0, p1, q int, restLength float32, restOrientation mgl32.Quat, compliance mgl32.Vec3) (int, error) {
	i, err := s.add(p0, p1, q)
	if err != nil {
		return -1, err
	}
	if restLength < 0 {
		restLength = s.data.Position(p1).Sub(s.data.Position(p0)).Len()
	}
	if restOrientation == (mgl32.Quat{}) {
		restOrientation = mgl32.QuatIdent()
	}
	s.RestLengths = append(s.RestLengths, restLength)
	s.RestOrientations = append(s.RestOrientations, restOrientation)
	s.Compliances = append(s.Compliances, compliance)
	return i, nil
}

func (s *StretchShear) Remove(i int) error {
	if err := s.remove(i); err != nil {
		return err
	}
	s.RestLengths = removeAt(s.RestLengths, i)
	s.RestOrientations = removeAt(s.RestOrientations, i)
	s.Compliances = removeAt(s.Compliances, i)
	return nil
}

func (s *StretchShear) permuteFields(order []int) {
	s.RestLengths = permuted(s.RestLengths, order)
	s.RestOrientations = permuted(s.RestOrientations, order)
	s.Compliances = permuted(s.Compliances, order)
}

func (s *StretchShear) evaluate(ctx *Context, h float32, p flex.ConstraintParameters) {
	pd := ctx.Particles
	solve(ctx, s.batches, p, func(start, end int) {
		for i := start; i < end; i++ {
			p0, p1, qi := s.particle(i, 0), s.particle(i, 1), s.particle(i, 2)
			w0, w1, wq := pd.InvMasses[p0], pd.InvMasses[p1], pd.InvRotationalMasses[qi]
			l := s.RestLengths[i]
			if l < flex.Epsilon {
				ctx.degenerate()
				continue
			}

			q := pd.Orientations[qi].Mul(s.RestOrientations[i])
			d3 := q.Rotate(axisZ)
			gamma := pd.Position(p1).Sub(pd.Position(p0)).Mul(1 / l).Sub(d3)

			base := (w0+w1)/l + wq*4*l
			comp := s.Compliances[i]
			var scaled mgl32.Vec3
			for k := 0; k < 3; k++ {
				alpha := comp[k] / (h * h)
				den := base + alpha
				if den <= 0 {
					continue
				}
				lambda := s.lambdas[3*i+k]
				dl := (-gamma[k] - alpha*lambda) / den
				s.lambdas[3*i+k] += dl
				scaled[k] = -dl
			}

			if w0 > 0 {
				pd.AddPositionDelta(p0, scaled.Mul(w0))
			}
			if w1 > 0 {
				pd.AddPositionDelta(p1, scaled.Mul(-w1))
			}
			if wq > 0 {
				dq := mgl32.Quat{V: scaled}.Mul(q).Mul(axisZBar).Scale(2 * wq * l)
				pd.AddOrientationDelta(qi, dq)
			}
		}
	})
}

// BendTwist keeps the Darboux vector between two consecutive rod frames
// at its rest value. Compliances hold bend x, bend y and twist.
// Plasticity holds yield and creep.
type BendTwist struct {
	family
	RestDarboux []mgl32.Quat
	Compliances []mgl32.Vec3
	Plasticity  [][2]float32
}

func newBendTwist(data *particles.Data) *BendTwist {
	return &BendTwist{family: newFamily(data, 3)}
}

// Add couples the orientations of q0 and q1. The rest Darboux vector is
// taken from the current orientations.
func (b *BendTwist) Add(q0, q1 int, compliance mgl32.Vec3, yield, creep float32) (int, error) {
	i, err := b.add(q0, q1)
	if err != nil {
		return -1, err
	}
	rest := b.data.Orientations[q0].Conjugate().Mul(b.data.Orientations[q1])
	b.RestDarboux = append(b.RestDarboux, rest)
	b.Compliances = append(b.Compliances, compliance)
	b.Plasticity = append(b.Plasticity, [2]float32{yield, creep})
	return i, nil
}

func (b *BendTwist) Remove(i int) error {
	if err := b.remove(i); err != nil {
		return err
	}
	b.RestDarboux = removeAt(b.RestDarboux, i)
	b.Compliances = removeAt(b.Compliances, i)
	b.Plasticity = removeAt(b.Plasticity, i)
	return nil
}

func (b *BendTwist) permuteFields(order []int) {
	b.RestDarboux = permuted(b.RestDarboux, order)
	b.Compliances = permuted(b.Compliances, order)
	b.Plasticity = permuted(b.Plasticity, order)
}

func (b *BendTwist) evaluate(ctx *Context, h float32, p flex.ConstraintParameters) {
	pd := ctx.Particles
	solve(ctx, b.batches, p, func(start, end int) {
		for i := start; i < end; i++ {
			i0, i1 := b.particle(i, 0), b.particle(i, 1)
			w0, w1 := pd.InvRotationalMasses[i0], pd.InvRotationalMasses[i1]
			w := w0 + w1
			if w == 0 {
				continue
			}
			q0, q1 := pd.Orientations[i0], pd.Orientations[i1]
			darboux := q0.Conjugate().Mul(q1)
			rest := b.RestDarboux[i]

			// pick the closer of the two quaternion covers of the rest value
			omega := darboux.Sub(rest)
			if plus := darboux.Add(rest); omega.Dot(omega) > plus.Dot(plus) {
				omega = plus
			}

			if yield, creep := b.Plasticity[i][0], b.Plasticity[i][1]; creep > 0 && omega.V.Len() > yield {
				if rest.Dot(darboux) < 0 {
					darboux = darboux.Scale(-1)
				}
				b.RestDarboux[i] = mgl32.QuatSlerp(rest, darboux, flex.Min(creep*h, 1)).Normalize()
			}

			comp := b.Compliances[i]
			var dl mgl32.Vec3
			for k := 0; k < 3; k++ {
				alpha := comp[k] / (h * h)
				lambda := b.lambdas[3*i+k]
				dl[k] = (-omega.V[k] - alpha*lambda) / (w + alpha)
				b.lambdas[3*i+k] += dl[k]
			}

			correction := mgl32.Quat{V: dl}
			if w0 > 0 {
				pd.AddOrientationDelta(i0, q1.Mul(correction).Scale(-w0))
			}
			if w1 > 0 {
				pd.AddOrientationDelta(i1, q0.Mul(correction).Scale(w1))
			}
		}
	})
}
