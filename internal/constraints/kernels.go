package constraints

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// kernels selects the SPH kernel normalisation for 3D or 2D.
type kernels struct {
	is2D bool
}

// poly6 is the density kernel evaluated at squared distance r2.
func (k kernels) poly6(r2, h float32) float32 {
	h2 := h * h
	if r2 >= h2 || h <= 0 {
		return 0
	}
	x := h2 - r2
	if k.is2D {
		return 4 / (math.Pi * pow(h, 8)) * x * x * x
	}
	return 315 / (64 * math.Pi * pow(h, 9)) * x * x * x
}

// spikyGrad is the gradient of the spiky kernel at offset r.
func (k kernels) spikyGrad(r mgl32.Vec3, h float32) mgl32.Vec3 {
	d := r.Len()
	if d >= h || d < 1e-6 {
		return mgl32.Vec3{}
	}
	x := h - d
	var s float32
	if k.is2D {
		s = -30 / (math.Pi * pow(h, 5)) * x * x
	} else {
		s = -45 / (math.Pi * pow(h, 6)) * x * x
	}
	return r.Mul(s / d)
}

func pow(v float32, n int) float32 {
	out := float32(1)
	for i := 0; i < n; i++ {
		out *= v
	}
	return out
}
