package scenario

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/collider"
	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/geometry"
	"github.com/san-kum/flexsim/internal/particles"
)

const (
	ropeGroup = iota + 1
	clothGroup
	jellyGroup
	fluidGroup
	pileGroup
)

// spawn allocates one particle per entry of ps and records the indices.
func (sc *Scene) spawn(ps []particles.Particle) ([]int, error) {
	r, err := sc.Solver.AddParticles(len(ps))
	if err != nil {
		return nil, err
	}
	for k, i := range r.Indices {
		if err := sc.Solver.SetParticle(i, ps[k]); err != nil {
			return nil, err
		}
	}
	sc.Particles = append(sc.Particles, r.Indices...)
	return r.Indices, nil
}

func (sc *Scene) particle(pos mgl32.Vec3, invMass float32, group int, flags flex.ParticleFlags) particles.Particle {
	return particles.Particle{
		Position: pos,
		InvMass:  invMass,
		Radius:   sc.Config.Scene.Radius,
		Group:    group,
		Flags:    flags,
		Material: flex.InvalidHandle,
	}
}

// buildRope hangs a chain of particles from a kinematic anchor.
func buildRope(sc *Scene) error {
	c := sc.Config.Scene
	ps := make([]particles.Particle, c.Count)
	for i := range ps {
		ps[i] = sc.particle(mgl32.Vec3{float32(i) * c.Spacing, c.Height, 0}, 1, ropeGroup, 0)
	}
	ids, err := sc.spawn(ps)
	if err != nil {
		return err
	}

	// the anchor never collides; it only carries the pin
	w := sc.Solver.World()
	d := collider.SphereDesc(mgl32.Vec3{}, c.Radius)
	d.Filter = flex.MakeFilter(flex.CollideWithNothing, 1)
	anchor, err := w.AddCollider(d, geometry.Translate(mgl32.Vec3{0, c.Height, 0}))
	if err != nil {
		return err
	}

	cs := sc.Solver.Constraints()
	if _, err := cs.Pin.Add(ids[0], anchor, mgl32.Vec3{}, mgl32.Quat{}, 0, 0, 0); err != nil {
		return err
	}
	for i := 0; i+1 < len(ids); i++ {
		if _, err := cs.Distance.Add(ids[i], ids[i+1], -1, c.Compliance, 0); err != nil {
			return err
		}
	}
	for i := 0; i+2 < len(ids); i++ {
		if _, err := cs.Bending.Add(ids[i], ids[i+2], ids[i+1], -1, c.Compliance*10, 0, 0, 0); err != nil {
			return err
		}
	}
	if len(ids) > 1 {
		last := ids[len(ids)-1]
		if _, err := cs.Tether.Add(last, ids[0], -1, 1, 0); err != nil {
			return err
		}
	}
	return nil
}

// buildCloth lays a square sheet held at two corners, with aerodynamic
// particles so wind moves it.
func buildCloth(sc *Scene) error {
	c := sc.Config.Scene
	n := c.Count
	half := float32(n-1) * c.Spacing / 2
	ps := make([]particles.Particle, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			pos := mgl32.Vec3{float32(col)*c.Spacing - half, c.Height, float32(row)*c.Spacing - half}
			invMass := float32(1)
			if row == 0 && (col == 0 || col == n-1) {
				invMass = 0
			}
			ps = append(ps, sc.particle(pos, invMass, clothGroup, 0))
		}
	}
	ids, err := sc.spawn(ps)
	if err != nil {
		return err
	}
	at := func(row, col int) int { return ids[row*n+col] }

	cs := sc.Solver.Constraints()
	var triangles []int
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			if col+1 < n {
				if _, err := cs.Distance.Add(at(row, col), at(row, col+1), -1, c.Compliance, 0.1); err != nil {
					return err
				}
			}
			if row+1 < n {
				if _, err := cs.Distance.Add(at(row, col), at(row+1, col), -1, c.Compliance, 0.1); err != nil {
					return err
				}
			}
			if col+2 < n {
				if _, err := cs.Bending.Add(at(row, col), at(row, col+2), at(row, col+1), -1, c.Compliance*100, 0, 0, 0); err != nil {
					return err
				}
			}
			if row+2 < n {
				if _, err := cs.Bending.Add(at(row, col), at(row+2, col), at(row+1, col), -1, c.Compliance*100, 0, 0, 0); err != nil {
					return err
				}
			}
			if row+1 < n && col+1 < n {
				triangles = append(triangles,
					at(row, col), at(row+1, col), at(row, col+1),
					at(row+1, col), at(row+1, col+1), at(row, col+1))
			}
		}
	}
	if err := sc.Solver.SetDeformableTriangles(triangles); err != nil {
		return err
	}

	pd := sc.Solver.Particles()
	wind := mgl32.Vec3(c.Wind).Vec4(0)
	area := c.Spacing * c.Spacing
	for _, i := range ids {
		pd.Wind[i] = wind
		if _, err := cs.Aerodynamics.Add(i, area, 0.5, 0.2); err != nil {
			return err
		}
	}
	return nil
}

// buildJelly drops a cube lattice held together by one shape matching
// cluster.
func buildJelly(sc *Scene) error {
	c := sc.Config.Scene
	n := c.Count
	ps := make([]particles.Particle, 0, n*n*n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			for z := 0; z < n; z++ {
				pos := mgl32.Vec3{float32(x), float32(y), float32(z)}.Mul(c.Spacing)
				pos = pos.Add(mgl32.Vec3{0, c.Height, 0})
				ps = append(ps, sc.particle(pos, 1, jellyGroup, 0))
			}
		}
	}
	ids, err := sc.spawn(ps)
	if err != nil {
		return err
	}
	stiffness := 1 / (1 + c.Compliance*1000)
	_, err = sc.Solver.Constraints().ShapeMatching.Add(ids, stiffness, 0, 0)
	return err
}

// buildFluid releases a block of position based fluid.
func buildFluid(sc *Scene) error {
	c := sc.Config.Scene
	n := c.Count
	const restDensity = 1000
	invMass := 1 / (restDensity * c.Spacing * c.Spacing * c.Spacing)
	ps := make([]particles.Particle, 0, n*n*n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			for z := 0; z < n; z++ {
				pos := mgl32.Vec3{float32(x), float32(y), float32(z)}.Mul(c.Spacing)
				pos = pos.Add(mgl32.Vec3{0, c.Height, 0})
				p := sc.particle(pos, invMass, fluidGroup, flex.Fluid|flex.SelfCollide)
				p.SmoothingRadius = 2 * c.Spacing
				p.RestDensity = restDensity
				p.Viscosity = 0.01
				ps = append(ps, p)
			}
		}
	}
	_, err := sc.spawn(ps)
	return err
}

// buildPile drops a jittered block of self colliding oriented grains. In
// 2d mode the block is a single layer in the xy plane.
func buildPile(sc *Scene) error {
	c := sc.Config.Scene
	n := c.Count
	depth := n
	if sc.Solver.Parameters().Mode == flex.Mode2D {
		depth = 1
	}
	rng := rand.New(rand.NewSource(sc.Config.Seed))
	jitter := func() float32 { return (rng.Float32() - 0.5) * c.Radius * 0.2 }
	step := flex.Max(c.Spacing, 2*c.Radius)

	ps := make([]particles.Particle, 0, n*n*depth)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			for z := 0; z < depth; z++ {
				pos := mgl32.Vec3{float32(x) * step, c.Height + float32(y)*step, float32(z) * step}
				pos = pos.Add(mgl32.Vec3{jitter(), 0, jitter()})
				if depth == 1 {
					pos[2] = 0
				}
				p := sc.particle(pos, 1, pileGroup, flex.SelfCollide)
				p.InvRotationalMass = 1
				ps = append(ps, p)
			}
		}
	}
	_, err := sc.spawn(ps)
	return err
}
