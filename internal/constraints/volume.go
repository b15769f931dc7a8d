package constraints

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/geometry"
	"github.com/san-kum/flexsim/internal/particles"
)

// Volume keeps the volume enclosed by a closed triangle mesh at
// Pressures times RestVolumes. Its particle list is the flattened triangle
// list, so particles shared between triangles appear more than once.
type Volume struct {
	family
	RestVolumes []float32
	Pressures   []float32
	Compliances []float32
}

func newVolume(data *particles.Data) *Volume {
	return &Volume{family: newFamily(data, 1)}
}

// Add creates a volume constraint over triangles, three particle indices
// per triangle with outward winding. A negative restVolume uses the
// current volume.
func (v *Volume) Add(triangles []int, restVolume, pressure, compliance float32) (int, error) {
	if len(triangles) == 0 || len(triangles)%3 != 0 {
		return -1, &flex.DataModelError{Field: "volume triangles", Want: len(triangles) - len(triangles)%3, Got: len(triangles)}
	}
	i, err := v.add(triangles...)
	if err != nil {
		return -1, err
	}
	if restVolume < 0 {
		restVolume = meshVolume(v.data, triangles)
	}
	v.RestVolumes = append(v.RestVolumes, restVolume)
	v.Pressures = append(v.Pressures, pressure)
	v.Compliances = append(v.Compliances, compliance)
	return i, nil
}

func (v *Volume) Remove(i int) error {
	if err := v.remove(i); err != nil {
		return err
	}
	v.RestVolumes = removeAt(v.RestVolumes, i)
	v.Pressures = removeAt(v.Pressures, i)
	v.Compliances = removeAt(v.Compliances, i)
	return nil
}

func (v *Volume) permuteFields(order []int) {
	v.RestVolumes = permuted(v.RestVolumes, order)
	v.Pressures = permuted(v.Pressures, order)
	v.Compliances = permuted(v.Compliances, order)
}

// meshVolume sums signed tetrahedron volumes against the origin.
func meshVolume(d *particles.Data, triangles []int) float32 {
	var vol float32
	for t := 0; t+2 < len(triangles); t += 3 {
		vol += geometry.SignedTetVolume(d.Position(triangles[t]), d.Position(triangles[t+1]), d.Position(triangles[t+2]))
	}
	return vol
}

func (v *Volume) evaluate(ctx *Context, h float32, p flex.ConstraintParameters) {
	pd := ctx.Particles
	solve(ctx, v.batches, p, func(start, end int) {
		var grads gradientSet
		for i := start; i < end; i++ {
			tris := v.Particles(i)
			grads.reset()

			vol := meshVolume(pd, tris)
			for t := 0; t+2 < len(tris); t += 3 {
				a, b, c := tris[t], tris[t+1], tris[t+2]
				xa, xb, xc := pd.Position(a), pd.Position(b), pd.Position(c)
				grads.add(a, xb.Cross(xc).Mul(1.0/6))
				grads.add(b, xc.Cross(xa).Mul(1.0/6))
				grads.add(c, xa.Cross(xb).Mul(1.0/6))
			}

			var w float32
			for k, pi := range grads.particles {
				w += pd.InvMasses[pi] * grads.values[k].LenSqr()
			}
			if w < flex.Epsilon*flex.Epsilon {
				ctx.degenerate()
				continue
			}

			c := vol - v.Pressures[i]*v.RestVolumes[i]
			dl := xpbd(c, v.lambdas[i], w, v.Compliances[i], h)
			v.lambdas[i] += dl
			for k, pi := range grads.particles {
				if wi := pd.InvMasses[pi]; wi > 0 {
					pd.AddPositionDelta(pi, grads.values[k].Mul(dl*wi))
				}
			}
		}
	})
}

// gradientSet accumulates one gradient per distinct particle, in first
// seen order.
type gradientSet struct {
	particles []int
	values    []mgl32.Vec3
}

func (g *gradientSet) reset() {
	g.particles = g.particles[:0]
	g.values = g.values[:0]
}

func (g *gradientSet) add(p int, v mgl32.Vec3) {
	for k, q := range g.particles {
		if q == p {
			g.values[k] = g.values[k].Add(v)
			return
		}
	}
	g.particles = append(g.particles, p)
	g.values = append(g.values, v)
}
