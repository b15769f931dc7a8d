package flex

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/constraints"
)

// Epsilon guards divisions in constraint projections.
const Epsilon = 1e-6

func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Lerp[T constraints.Float](a, b, t T) T {
	return a + (b-a)*t
}

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func Abs[T constraints.Signed | constraints.Float](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

// IsFinite reports whether f is neither NaN nor infinite.
func IsFinite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}

// Vec3Finite reports whether all components of v are finite.
func Vec3Finite(v mgl32.Vec3) bool {
	return IsFinite(v[0]) && IsFinite(v[1]) && IsFinite(v[2])
}

// Vec4Finite reports whether all components of v are finite.
func Vec4Finite(v mgl32.Vec4) bool {
	return Vec3Finite(v.Vec3()) && IsFinite(v[3])
}

// SafeNormalize returns v/|v| or the zero vector when |v| is tiny.
func SafeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	l := v.Len()
	if l < Epsilon {
		return mgl32.Vec3{}
	}
	return v.Mul(1 / l)
}

// Sqrt is a float32 square root.
func Sqrt(v float32) float32 { return float32(math.Sqrt(float64(v))) }
