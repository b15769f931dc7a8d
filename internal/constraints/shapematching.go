package constraints

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/geometry"
	"github.com/san-kum/flexsim/internal/particles"
)

const polarIterations = 8

// ShapeMatching pulls a cluster of particles towards the best rigid
// transform of its rest shape. RestShape is aligned with the flattened
// particle indices and holds each particle's rest offset from the rest
// centre of mass.
type ShapeMatching struct {
	family
	RestShape    []mgl32.Vec3
	Stiffnesses  []float32
	Plasticity   [][2]float32
	Orientations []mgl32.Quat
	Centers      []mgl32.Vec3
}

func newShapeMatching(data *particles.Data) *ShapeMatching {
	return &ShapeMatching{family: newFamily(data, 1)}
}

// Add creates a cluster over ps using their current positions as rest
// shape. stiffness is in [0, 1].
func (s *ShapeMatching) Add(ps []int, stiffness, yield, creep float32) (int, error) {
	if len(ps) < 2 {
		return -1, &flex.DataModelError{Field: "shape matching particles", Want: 2, Got: len(ps)}
	}
	i, err := s.add(ps...)
	if err != nil {
		return -1, err
	}
	com := centerOfMass(s.data, ps)
	for _, p := range ps {
		s.RestShape = append(s.RestShape, s.data.Position(p).Sub(com))
	}
	s.Stiffnesses = append(s.Stiffnesses, flex.Clamp(stiffness, 0, 1))
	s.Plasticity = append(s.Plasticity, [2]float32{yield, creep})
	s.Orientations = append(s.Orientations, mgl32.QuatIdent())
	s.Centers = append(s.Centers, com)
	return i, nil
}

func (s *ShapeMatching) Remove(i int) error {
	if err := flex.CheckIndex("constraint", i, s.Len()); err != nil {
		return err
	}
	start, size := s.starts[i], s.sizes[i]
	if err := s.remove(i); err != nil {
		return err
	}
	s.RestShape = append(s.RestShape[:start], s.RestShape[start+size:]...)
	s.Stiffnesses = removeAt(s.Stiffnesses, i)
	s.Plasticity = removeAt(s.Plasticity, i)
	s.Orientations = removeAt(s.Orientations, i)
	s.Centers = removeAt(s.Centers, i)
	return nil
}

func (s *ShapeMatching) permuteFields(order []int) {
	rest := make([]mgl32.Vec3, 0, len(s.RestShape))
	for _, i := range order {
		rest = append(rest, s.RestShape[s.starts[i]:s.starts[i]+s.sizes[i]]...)
	}
	s.RestShape = rest
	s.Stiffnesses = permuted(s.Stiffnesses, order)
	s.Plasticity = permuted(s.Plasticity, order)
	s.Orientations = permuted(s.Orientations, order)
	s.Centers = permuted(s.Centers, order)
}

// particleMass treats pinned particles as very heavy so they dominate the
// centre of mass.
func particleMass(w float32) float32 {
	if w <= 0 {
		return 1e4
	}
	return 1 / w
}

func centerOfMass(d *particles.Data, ps []int) mgl32.Vec3 {
	var com mgl32.Vec3
	var mass float32
	for _, p := range ps {
		m := particleMass(d.InvMasses[p])
		com = com.Add(d.Position(p).Mul(m))
		mass += m
	}
	return com.Mul(1 / mass)
}

func (s *ShapeMatching) evaluate(ctx *Context, h float32, p flex.ConstraintParameters) {
	pd := ctx.Particles
	solve(ctx, s.batches, p, func(start, end int) {
		for i := start; i < end; i++ {
			ps := s.Particles(i)
			rest := s.RestShape[s.starts[i] : s.starts[i]+s.sizes[i]]

			com := centerOfMass(pd, ps)
			var apq mgl32.Mat3
			for k, pi := range ps {
				m := particleMass(pd.InvMasses[pi])
				apq = addMat3(apq, geometry.Outer(pd.Position(pi).Sub(com).Mul(m), rest[k]))
			}
			q := geometry.ExtractRotation(apq, s.Orientations[i], polarIterations)
			if ctx.is2D() {
				q = flattenRotation(q)
			}
			s.Orientations[i] = q
			s.Centers[i] = com

			stiffness := s.Stiffnesses[i]
			yield, creep := s.Plasticity[i][0], s.Plasticity[i][1]
			inv := q.Conjugate()
			for k, pi := range ps {
				x := pd.Position(pi)
				goal := com.Add(q.Rotate(rest[k]))
				diff := goal.Sub(x)
				if creep > 0 && diff.Len() > yield {
					deformed := inv.Rotate(x.Sub(com))
					rest[k] = rest[k].Add(deformed.Sub(rest[k]).Mul(flex.Min(creep*h, 1)))
				}
				if pd.InvMasses[pi] > 0 {
					pd.AddPositionDelta(pi, diff.Mul(stiffness))
				}
			}
		}
	})
}

func addMat3(a, b mgl32.Mat3) mgl32.Mat3 {
	for i := range a {
		a[i] += b[i]
	}
	return a
}

// flattenRotation keeps only the rotation about z.
func flattenRotation(q mgl32.Quat) mgl32.Quat {
	q.V[0], q.V[1] = 0, 0
	if q.Len() < flex.Epsilon {
		return mgl32.QuatIdent()
	}
	return q.Normalize()
}
