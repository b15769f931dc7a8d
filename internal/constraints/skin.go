package constraints

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/particles"
)

// Skin keeps a particle within Radii of an animated skin point and above a
// backstop plane behind it. The host updates skin points each step with
// SetTarget.
type Skin struct {
	family
	Points      []mgl32.Vec3
	Normals     []mgl32.Vec3
	Radii       []float32
	Backstops   []float32
	Compliances []float32
}

func newSkin(data *particles.Data) *Skin {
	return &Skin{family: newFamily(data, 1)}
}

func (s *Skin) Add(particle int, point, normal mgl32.Vec3, radius, backstop, compliance float32) (int, error) {
	i, err := s.add(particle)
	if err != nil {
		return -1, err
	}
	s.Points = append(s.Points, point)
	s.Normals = append(s.Normals, flex.SafeNormalize(normal))
	s.Radii = append(s.Radii, radius)
	s.Backstops = append(s.Backstops, backstop)
	s.Compliances = append(s.Compliances, compliance)
	return i, nil
}

// SetTarget moves the skin point of constraint i.
func (s *Skin) SetTarget(i int, point, normal mgl32.Vec3) error {
	if err := flex.CheckIndex("constraint", i, s.Len()); err != nil {
		return err
	}
	s.Points[i] = point
	s.Normals[i] = flex.SafeNormalize(normal)
	return nil
}

func (s *Skin) Remove(i int) error {
	if err := s.remove(i); err != nil {
		return err
	}
	s.Points = removeAt(s.Points, i)
	s.Normals = removeAt(s.Normals, i)
	s.Radii = removeAt(s.Radii, i)
	s.Backstops = removeAt(s.Backstops, i)
	s.Compliances = removeAt(s.Compliances, i)
	return nil
}

func (s *Skin) permuteFields(order []int) {
	s.Points = permuted(s.Points, order)
	s.Normals = permuted(s.Normals, order)
	s.Radii = permuted(s.Radii, order)
	s.Backstops = permuted(s.Backstops, order)
	s.Compliances = permuted(s.Compliances, order)
}

func (s *Skin) evaluate(ctx *Context, h float32, p flex.ConstraintParameters) {
	pd := ctx.Particles
	solve(ctx, s.batches, p, func(start, end int) {
		for i := start; i < end; i++ {
			pi := s.particle(i, 0)
			w := pd.InvMasses[pi]
			if w == 0 {
				continue
			}
			x := pd.Position(pi)
			var delta mgl32.Vec3

			toSkin := x.Sub(s.Points[i])
			if dist := toSkin.Len(); dist > s.Radii[i] && dist > flex.Epsilon {
				n := toSkin.Mul(1 / dist)
				dl := xpbd(dist-s.Radii[i], s.lambdas[i], w, s.Compliances[i], h)
				s.lambdas[i] += dl
				delta = n.Mul(dl * w)
			}

			// backstop plane sits Backstops behind the skin point
			n := s.Normals[i]
			plane := s.Points[i].Sub(n.Mul(s.Backstops[i]))
			if d := x.Add(delta).Sub(plane).Dot(n); d < 0 {
				delta = delta.Sub(n.Mul(d))
			}
			if delta != (mgl32.Vec3{}) {
				pd.AddPositionDelta(pi, delta)
			}
		}
	})
}
