package constraints

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/batch"
	"github.com/san-kum/flexsim/internal/contacts"
	"github.com/san-kum/flexsim/internal/flex"
)

// ContactSet holds one step's contacts in batch order. Collision and
// Friction share the collider contacts, ParticleCollision and
// ParticleFriction the simplex pairs.
type ContactSet struct {
	provider contacts.ContactProvider
	batches  []batch.BatchData
	overflow int
}

// Contacts returns the batched contacts.
func (s *ContactSet) Contacts() []contacts.Contact { return s.provider.Contacts }

func (s *ContactSet) Batches() []batch.BatchData { return s.batches }

func (s *ContactSet) Overflow() int { return s.overflow }

// set replaces the contacts and batches them. Overflowing contacts are
// dropped for this step.
func (s *ContactSet) set(b *batch.Batcher, cs []contacts.Contact, simplices []int, counts contacts.SimplexCounts, isCollider bool, particleCount int) {
	s.provider.Contacts = cs
	s.provider.Simplices = simplices
	s.provider.Counts = counts
	s.provider.IsCollider = isCollider
	if len(cs) == 0 {
		s.batches, s.overflow = nil, 0
		return
	}
	s.provider.Permute(batch.SortByFirstParticle(&s.provider, particleCount))
	res := b.BatchConstraints(&s.provider, particleCount)
	s.provider.Commit(res.Sorted)
	s.batches, s.overflow = res.Batches, res.Overflow
}

func (s *ContactSet) resetLambdas() {
	for i := range s.provider.Contacts {
		s.provider.Contacts[i].ResetLambdas()
	}
}

func (s *ContactSet) clear() {
	s.provider.Contacts = nil
	s.batches, s.overflow = nil, 0
}

// surfaceA returns the contact point on simplex A's surface and its
// radius along the normal.
func surfaceA(ctx *Context, c *contacts.Contact) (mgl32.Vec3, float32) {
	n := c.Normal.Vec3()
	pos, _, r := ctx.simplexPoint(c.BodyA, c.PointA)
	r = ctx.simplexRadius(c.BodyA, c.PointA, n, r)
	return pos.Sub(n.Mul(r)), r
}

func surfaceB(ctx *Context, c *contacts.Contact) mgl32.Vec3 {
	n := c.Normal.Vec3()
	pos, _, r := ctx.simplexPoint(c.BodyB, c.PointB)
	r = ctx.simplexRadius(c.BodyB, c.PointB, n, r)
	return pos.Add(n.Mul(r))
}

func colliderMaterial(ctx *Context, c *contacts.Contact) flex.CollisionMaterial {
	m := -1
	if c.BodyB < len(ctx.Shapes) {
		m = ctx.Shapes[c.BodyB].Material
	}
	return ctx.material(ctx.simplexMaterial(c.BodyA), m)
}

func (s *ContactSet) evaluateCollision(ctx *Context, h float32, p flex.ConstraintParameters) {
	cs := s.provider.Contacts
	maxDelta := ctx.Params.MaxDepenetration * h
	solve(ctx, s.batches, p, func(start, end int) {
		for i := start; i < end; i++ {
			c := &cs[i]
			n := c.Normal.Vec3()
			pa, _ := surfaceA(ctx, c)
			pb := c.PointB.Vec3()

			dl := c.SolvePenetration(pa, pb, maxDelta)
			if mat := colliderMaterial(ctx, c); mat.Stickiness > 0 {
				dl += c.SolveAdhesion(pa, pb, mat.StickDistance, mat.Stickiness, h)
			}
			if dl != 0 {
				ctx.addSimplexDelta(c.BodyA, c.PointA, n.Mul(dl))
			}
		}
	})
}

func (s *ContactSet) evaluateParticleCollision(ctx *Context, h float32, p flex.ConstraintParameters) {
	cs := s.provider.Contacts
	maxDelta := ctx.Params.MaxDepenetration * h
	solve(ctx, s.batches, p, func(start, end int) {
		for i := start; i < end; i++ {
			c := &cs[i]
			n := c.Normal.Vec3()
			pa, _ := surfaceA(ctx, c)
			pb := surfaceB(ctx, c)

			dl := c.SolvePenetration(pa, pb, maxDelta)
			mat := ctx.material(ctx.simplexMaterial(c.BodyA), ctx.simplexMaterial(c.BodyB))
			if mat.Stickiness > 0 {
				dl += c.SolveAdhesion(pa, pb, mat.StickDistance, mat.Stickiness, h)
			}
			if dl != 0 {
				ctx.addSimplexDelta(c.BodyA, c.PointA, n.Mul(dl))
				ctx.addSimplexDelta(c.BodyB, c.PointB, n.Mul(-dl))
			}
		}
	})
}

func (s *ContactSet) evaluateFriction(ctx *Context, h float32, p flex.ConstraintParameters) {
	cs := s.provider.Contacts
	pd := ctx.Particles
	solve(ctx, s.batches, p, func(start, end int) {
		for i := start; i < end; i++ {
			c := &cs[i]
			mat := colliderMaterial(ctx, c)
			if mat.StaticFriction <= 0 && mat.DynamicFriction <= 0 && mat.RollingFriction <= 0 {
				continue
			}

			rel := ctx.simplexDisplacement(c.BodyA, c.PointA)
			var angularB mgl32.Vec3
			if c.BodyB < len(ctx.Shapes) {
				if rb := ctx.Shapes[c.BodyB].Rigidbody; rb >= 0 && rb < len(ctx.Rigidbodies) {
					body := ctx.Rigidbodies[rb]
					rel = rel.Sub(body.VelocityAtPoint(c.PointB.Vec3()).Mul(h))
					angularB = body.AngularVelocity
				}
			}

			ct, cb := c.SolveFriction(rel, mat.StaticFriction, mat.DynamicFriction)
			delta := c.Tangent.Vec3().Mul(ct).Add(c.Bitangent.Vec3().Mul(cb))
			if delta != (mgl32.Vec3{}) {
				ctx.addSimplexDelta(c.BodyA, c.PointA, delta)
			}

			// rolling only applies to single oriented particles
			first, size := ctx.Counts.StartAndSize(c.BodyA)
			if size != 1 {
				continue
			}
			pi := ctx.Simplices[first]
			wq := pd.InvRotationalMasses[pi]
			if wq <= 0 || !mat.RollingContacts {
				continue
			}
			q := pd.Orientations[pi]
			_, r := surfaceA(ctx, c)
			arm := c.Normal.Vec3().Mul(-r)
			spin := arm.Cross(delta).Mul(wq)
			if mat.RollingFriction > 0 {
				omega := pd.AngularVelocities[pi].Vec3()
				spin = spin.Add(c.SolveRollingFriction(omega, angularB, mat.RollingFriction, wq, 0).Mul(h))
			}
			if spin != (mgl32.Vec3{}) {
				pd.AddOrientationDelta(pi, mgl32.Quat{V: spin}.Mul(q).Scale(0.5))
			}
		}
	})
}

func (s *ContactSet) evaluateParticleFriction(ctx *Context, h float32, p flex.ConstraintParameters) {
	cs := s.provider.Contacts
	solve(ctx, s.batches, p, func(start, end int) {
		for i := start; i < end; i++ {
			c := &cs[i]
			mat := ctx.material(ctx.simplexMaterial(c.BodyA), ctx.simplexMaterial(c.BodyB))
			if mat.StaticFriction <= 0 && mat.DynamicFriction <= 0 {
				continue
			}
			rel := ctx.simplexDisplacement(c.BodyA, c.PointA).Sub(ctx.simplexDisplacement(c.BodyB, c.PointB))
			ct, cb := c.SolveFriction(rel, mat.StaticFriction, mat.DynamicFriction)
			delta := c.Tangent.Vec3().Mul(ct).Add(c.Bitangent.Vec3().Mul(cb))
			if delta != (mgl32.Vec3{}) {
				ctx.addSimplexDelta(c.BodyA, c.PointA, delta)
				ctx.addSimplexDelta(c.BodyB, c.PointB, delta.Mul(-1))
			}
		}
	})
}
