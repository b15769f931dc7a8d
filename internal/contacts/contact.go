package contacts

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/flex"
)

// Contact between simplex BodyA and either simplex BodyB or collider
// BodyB. PointA is barycentric in simplex A. PointB is barycentric for
// simplex contacts and a solver-space point for collider contacts. Normal
// points from B towards A.
type Contact struct {
	BodyA int
	BodyB int

	PointA mgl32.Vec4
	PointB mgl32.Vec4

	Normal    mgl32.Vec4
	Tangent   mgl32.Vec4
	Bitangent mgl32.Vec4

	Distance float32

	NormalLambda           float32
	TangentLambda          float32
	BitangentLambda        float32
	StickLambda            float32
	RollingFrictionImpulse float32

	NormalInvMassA    float32
	TangentInvMassA   float32
	BitangentInvMassA float32

	NormalInvMassB    float32
	TangentInvMassB   float32
	BitangentInvMassB float32
}

func (c *Contact) TotalNormalInvMass() float32 { return c.NormalInvMassA + c.NormalInvMassB }

func (c *Contact) TotalTangentInvMass() float32 { return c.TangentInvMassA + c.TangentInvMassB }

func (c *Contact) TotalBitangentInvMass() float32 {
	return c.BitangentInvMassA + c.BitangentInvMassB
}

// ResetLambdas clears the accumulated multipliers at the start of a
// substep.
func (c *Contact) ResetLambdas() {
	c.NormalLambda = 0
	c.TangentLambda = 0
	c.BitangentLambda = 0
	c.StickLambda = 0
	c.RollingFrictionImpulse = 0
}

// CalculateBasis builds the tangent frame from the tangential part of the
// relative velocity, falling back to an arbitrary perpendicular.
func (c *Contact) CalculateBasis(relativeVelocity mgl32.Vec3) {
	n := c.Normal.Vec3()
	t := relativeVelocity.Sub(n.Mul(relativeVelocity.Dot(n)))
	if t.LenSqr() < 1e-12 {
		if math.Abs(float64(n[0])) > 0.9 {
			t = mgl32.Vec3{0, 1, 0}
		} else {
			t = mgl32.Vec3{1, 0, 0}
		}
		t = t.Sub(n.Mul(t.Dot(n)))
	}
	t = flex.SafeNormalize(t)
	c.Tangent = t.Vec4(0)
	c.Bitangent = n.Cross(t).Vec4(0)
}

func rotationalMass(invInertia mgl32.Vec4, orientation mgl32.Quat, r, axis mgl32.Vec3) float32 {
	// r × axis in the particle's principal frame
	rn := orientation.Conjugate().Rotate(r.Cross(axis))
	return rn[0]*rn[0]*invInertia[0] + rn[1]*rn[1]*invInertia[1] + rn[2]*rn[2]*invInertia[2]
}

// CalculateContactMassesA sets side A effective masses. invMass is already
// the barycentric sum Σ b²w for simplices. With rolling contacts the
// rotational inertia of an oriented particle adds to the effective mass.
func (c *Contact) CalculateContactMassesA(invMass float32, invInertia, position mgl32.Vec4, orientation mgl32.Quat, contactPoint mgl32.Vec4, rolling bool) {
	c.NormalInvMassA, c.TangentInvMassA, c.BitangentInvMassA = invMass, invMass, invMass
	if !rolling {
		return
	}
	r := contactPoint.Sub(position).Vec3()
	c.NormalInvMassA += rotationalMass(invInertia, orientation, r, c.Normal.Vec3())
	c.TangentInvMassA += rotationalMass(invInertia, orientation, r, c.Tangent.Vec3())
	c.BitangentInvMassA += rotationalMass(invInertia, orientation, r, c.Bitangent.Vec3())
}

// CalculateContactMassesB is the side B counterpart. Colliders pass zero.
func (c *Contact) CalculateContactMassesB(invMass float32, invInertia, position mgl32.Vec4, orientation mgl32.Quat, contactPoint mgl32.Vec4, rolling bool) {
	c.NormalInvMassB, c.TangentInvMassB, c.BitangentInvMassB = invMass, invMass, invMass
	if !rolling {
		return
	}
	r := contactPoint.Sub(position).Vec3()
	c.NormalInvMassB += rotationalMass(invInertia, orientation, r, c.Normal.Vec3())
	c.TangentInvMassB += rotationalMass(invInertia, orientation, r, c.Tangent.Vec3())
	c.BitangentInvMassB += rotationalMass(invInertia, orientation, r, c.Bitangent.Vec3())
}

// SolvePenetration returns the normal multiplier change that removes the
// gap between surface points posA and posB. Penetration deeper than
// maxDepenetrationDelta is only partially resolved this substep. The
// accumulated multiplier never turns negative, so contacts only push.
func (c *Contact) SolvePenetration(posA, posB mgl32.Vec3, maxDepenetrationDelta float32) float32 {
	w := c.TotalNormalInvMass()
	if w <= 0 {
		return 0
	}
	c.Distance = posA.Sub(posB).Dot(c.Normal.Vec3())

	maxProjection := float32(math.Max(float64(-c.Distance-maxDepenetrationDelta), 0))
	dlambda := -(c.Distance + maxProjection) / w

	newLambda := float32(math.Max(float64(c.NormalLambda+dlambda), 0))
	change := newLambda - c.NormalLambda
	c.NormalLambda = newLambda
	return change
}

// SolveAdhesion pulls surfaces within stickDistance back together.
func (c *Contact) SolveAdhesion(posA, posB mgl32.Vec3, stickDistance, stickiness, dt float32) float32 {
	w := c.TotalNormalInvMass()
	if w <= 0 || stickDistance <= 0 || stickiness <= 0 || dt <= 0 {
		return 0
	}
	c.Distance = posA.Sub(posB).Dot(c.Normal.Vec3())

	constraint := stickiness * (1 - float32(math.Max(float64(c.Distance/stickDistance), 0))) * dt
	dlambda := -constraint / w

	newLambda := float32(math.Min(float64(c.StickLambda+dlambda), 0))
	change := newLambda - c.StickLambda
	c.StickLambda = newLambda
	return change
}

// SolveFriction removes the tangential relative displacement of the
// substep, projected onto the friction cone of the accumulated normal
// multiplier. Within the static cone the full correction applies; outside
// it the tangential multiplier is clamped to the dynamic cone.
func (c *Contact) SolveFriction(relativeDisplacement mgl32.Vec3, staticFriction, dynamicFriction float32) (float32, float32) {
	wt := c.TotalTangentInvMass()
	wb := c.TotalBitangentInvMass()
	if wt <= 0 || wb <= 0 || c.NormalLambda <= 0 {
		return 0, 0
	}

	dt := relativeDisplacement.Dot(c.Tangent.Vec3())
	db := relativeDisplacement.Dot(c.Bitangent.Vec3())

	nt := c.TangentLambda - dt/wt
	nb := c.BitangentLambda - db/wb

	staticCone := staticFriction * c.NormalLambda
	dynamicCone := dynamicFriction * c.NormalLambda
	mag := flex.Sqrt(nt*nt + nb*nb)
	if mag > staticCone && mag > 0 {
		scale := dynamicCone / mag
		nt *= scale
		nb *= scale
	}

	ct, cb := nt-c.TangentLambda, nb-c.BitangentLambda
	c.TangentLambda, c.BitangentLambda = nt, nb
	return ct, cb
}

// SolveRollingFriction returns the angular velocity change that opposes
// rolling of A against B, bounded by rollingFriction times the normal
// multiplier.
func (c *Contact) SolveRollingFriction(angularVelocityA, angularVelocityB mgl32.Vec3, rollingFriction, invMassA, invMassB float32) mgl32.Vec3 {
	total := invMassA + invMassB
	if total <= 0 || rollingFriction <= 0 {
		return mgl32.Vec3{}
	}
	n := c.Normal.Vec3()
	rel := angularVelocityA.Sub(angularVelocityB)
	rolling := rel.Sub(n.Mul(rel.Dot(n)))
	speed := rolling.Len()
	if speed < flex.Epsilon {
		return mgl32.Vec3{}
	}

	impulse := speed / total
	maxImpulse := rollingFriction * c.NormalLambda
	newImpulse := float32(math.Min(float64(c.RollingFrictionImpulse+impulse), float64(maxImpulse)))
	change := newImpulse - c.RollingFrictionImpulse
	c.RollingFrictionImpulse = newImpulse
	return rolling.Mul(-change / speed)
}

// FluidInteraction is a pair of fluid particles within smoothing range.
type FluidInteraction struct {
	ParticleA   int
	ParticleB   int
	Gradient    mgl32.Vec4
	AvgKernel   float32
	AvgGradient float32
}
