package geometry

import "github.com/go-gl/mathgl/mgl32"

// AffineTransform is translation, rotation and non-uniform scale applied in
// scale, rotate, translate order.
type AffineTransform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
}

// Identity returns the identity transform.
func Identity() AffineTransform {
	return AffineTransform{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}
}

// NewTransform builds a transform from its components.
func NewTransform(translation mgl32.Vec3, rotation mgl32.Quat, scale mgl32.Vec3) AffineTransform {
	return AffineTransform{Translation: translation, Rotation: rotation.Normalize(), Scale: scale}
}

// Translate returns an identity transform moved to p.
func Translate(p mgl32.Vec3) AffineTransform {
	t := Identity()
	t.Translation = p
	return t
}

func (t AffineTransform) TransformPoint(p mgl32.Vec3) mgl32.Vec3 {
	return t.Rotation.Rotate(mulElem(p, t.Scale)).Add(t.Translation)
}

func (t AffineTransform) InverseTransformPoint(p mgl32.Vec3) mgl32.Vec3 {
	return divElem(t.Rotation.Conjugate().Rotate(p.Sub(t.Translation)), t.Scale)
}

// TransformDirection rotates d, ignoring scale and translation.
func (t AffineTransform) TransformDirection(d mgl32.Vec3) mgl32.Vec3 {
	return t.Rotation.Rotate(d)
}

func (t AffineTransform) InverseTransformDirection(d mgl32.Vec3) mgl32.Vec3 {
	return t.Rotation.Conjugate().Rotate(d)
}

// TransformVector rotates and scales v.
func (t AffineTransform) TransformVector(v mgl32.Vec3) mgl32.Vec3 {
	return t.Rotation.Rotate(mulElem(v, t.Scale))
}

func (t AffineTransform) InverseTransformVector(v mgl32.Vec3) mgl32.Vec3 {
	return divElem(t.Rotation.Conjugate().Rotate(v), t.Scale)
}

// TransformNormal maps a surface normal through the inverse transpose.
func (t AffineTransform) TransformNormal(n mgl32.Vec3) mgl32.Vec3 {
	return safeNormalize(t.Rotation.Rotate(divElem(n, t.Scale)))
}

func (t AffineTransform) InverseTransformNormal(n mgl32.Vec3) mgl32.Vec3 {
	return safeNormalize(mulElem(t.Rotation.Conjugate().Rotate(n), t.Scale))
}

// Inverse returns the inverse transform. Exact for uniform scale.
func (t AffineTransform) Inverse() AffineTransform {
	inv := t.Rotation.Conjugate()
	s := mgl32.Vec3{1 / t.Scale[0], 1 / t.Scale[1], 1 / t.Scale[2]}
	return AffineTransform{
		Translation: mulElem(inv.Rotate(t.Translation.Mul(-1)), s),
		Rotation:    inv,
		Scale:       s,
	}
}

// Mat4 returns the equivalent homogeneous matrix.
func (t AffineTransform) Mat4() mgl32.Mat4 {
	return mgl32.Translate3D(t.Translation[0], t.Translation[1], t.Translation[2]).
		Mul4(t.Rotation.Mat4()).
		Mul4(mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2]))
}

// Interpolate blends two transforms, slerping rotation.
func (t AffineTransform) Interpolate(o AffineTransform, alpha float32) AffineTransform {
	return AffineTransform{
		Translation: t.Translation.Add(o.Translation.Sub(t.Translation).Mul(alpha)),
		Rotation:    mgl32.QuatSlerp(t.Rotation, o.Rotation, alpha),
		Scale:       t.Scale.Add(o.Scale.Sub(t.Scale).Mul(alpha)),
	}
}

// Integrate advances the transform by a linear and angular velocity.
func (t AffineTransform) Integrate(linear, angular mgl32.Vec3, dt float32) AffineTransform {
	t.Translation = t.Translation.Add(linear.Mul(dt))
	t.Rotation = IntegrateOrientation(t.Rotation, angular, dt)
	return t
}

// IntegrateOrientation advances q by angular velocity w over dt.
func IntegrateOrientation(q mgl32.Quat, w mgl32.Vec3, dt float32) mgl32.Quat {
	dq := mgl32.Quat{W: 0, V: w}.Mul(q)
	q.W += 0.5 * dt * dq.W
	q.V = q.V.Add(dq.V.Mul(0.5 * dt))
	return q.Normalize()
}

// AngularVelocityBetween returns the angular velocity that rotates from q0
// to q1 in dt.
func AngularVelocityBetween(q0, q1 mgl32.Quat, dt float32) mgl32.Vec3 {
	d := q1.Mul(q0.Conjugate())
	if d.W < 0 {
		d = d.Scale(-1)
	}
	return d.V.Mul(2 / dt)
}

func mulElem(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func divElem(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] / b[0], a[1] / b[1], a[2] / b[2]}
}

// MulElem is the component-wise product.
func MulElem(a, b mgl32.Vec3) mgl32.Vec3 { return mulElem(a, b) }

func safeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	l := v.Len()
	if l < 1e-7 {
		return mgl32.Vec3{}
	}
	return v.Mul(1 / l)
}
