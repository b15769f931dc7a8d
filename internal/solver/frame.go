package solver

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/geometry"
)

// InertialFrame tracks the motion of the solver's local space relative to
// the world. Particles simulated in a moving frame feel its acceleration as
// pseudo forces, scaled so callers can let part of the motion "drag" the
// particles along.
type InertialFrame struct {
	Frame     geometry.AffineTransform
	PrevFrame geometry.AffineTransform

	Velocity            mgl32.Vec3
	AngularVelocity     mgl32.Vec3
	Acceleration        mgl32.Vec3
	AngularAcceleration mgl32.Vec3

	// solver space pseudo force terms set by ApplyFrame
	linear mgl32.Vec3
	omega  mgl32.Vec3
	alpha  mgl32.Vec3
}

func newInertialFrame() InertialFrame {
	return InertialFrame{Frame: geometry.Identity(), PrevFrame: geometry.Identity()}
}

// acceleration is the pseudo acceleration of a particle at x moving with
// v: linear, Euler, Coriolis and centrifugal terms.
func (f *InertialFrame) acceleration(x, v mgl32.Vec3) mgl32.Vec3 {
	if f.linear == (mgl32.Vec3{}) && f.omega == (mgl32.Vec3{}) && f.alpha == (mgl32.Vec3{}) {
		return mgl32.Vec3{}
	}
	a := f.linear
	a = a.Sub(f.alpha.Cross(x))
	a = a.Sub(f.omega.Cross(v).Mul(2))
	a = a.Sub(f.omega.Cross(f.omega.Cross(x)))
	return a
}

func (f *InertialFrame) angularAcceleration() mgl32.Vec3 {
	return f.alpha.Mul(-1)
}

// Frame returns the current inertial frame.
func (s *Solver) Frame() InertialFrame { return s.frame }

// InitializeFrame places the solver's local space in the world without
// producing any inertial effect.
func (s *Solver) InitializeFrame(translation, scale mgl32.Vec3, rotation mgl32.Quat) {
	t := geometry.NewTransform(translation, rotation, scale)
	s.frame = newInertialFrame()
	s.frame.Frame, s.frame.PrevFrame = t, t
}

// UpdateFrame moves the local space and derives its velocities and
// accelerations over dt.
func (s *Solver) UpdateFrame(translation, scale mgl32.Vec3, rotation mgl32.Quat, dt float32) {
	if dt <= 0 {
		return
	}
	f := &s.frame
	next := geometry.NewTransform(translation, rotation, scale)

	v := next.Translation.Sub(f.Frame.Translation).Mul(1 / dt)
	w := geometry.AngularVelocityBetween(f.Frame.Rotation, next.Rotation, dt)
	f.Acceleration = v.Sub(f.Velocity).Mul(1 / dt)
	f.AngularAcceleration = w.Sub(f.AngularVelocity).Mul(1 / dt)
	f.Velocity, f.AngularVelocity = v, w
	f.PrevFrame, f.Frame = f.Frame, next
}

// ApplyFrame turns the frame's motion into solver space pseudo forces for
// the following steps. A scale of one keeps the particles' world space
// inertia; zero lets them move rigidly with the frame.
func (s *Solver) ApplyFrame(linearScale, angularScale float32) {
	f := &s.frame
	toLocal := f.Frame.Rotation.Conjugate()
	f.linear = toLocal.Rotate(f.Acceleration).Mul(-linearScale)
	f.omega = toLocal.Rotate(f.AngularVelocity).Mul(angularScale)
	f.alpha = toLocal.Rotate(f.AngularAcceleration).Mul(angularScale)
}
