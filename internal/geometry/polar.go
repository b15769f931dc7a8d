package geometry

import "github.com/go-gl/mathgl/mgl32"

// ExtractRotation finds the rotation part of the polar decomposition of a
// by iteratively aligning the rotated basis with the columns of a. q seeds
// the iteration; warm starting from the previous frame's rotation usually
// converges in a couple of iterations.
//
// Müller et al., "A Robust Method to Extract the Rotational Part of
// Deformations", 2016.
func ExtractRotation(a mgl32.Mat3, q mgl32.Quat, iterations int) mgl32.Quat {
	q = q.Normalize()
	a0, a1, a2 := a.Col(0), a.Col(1), a.Col(2)
	for i := 0; i < iterations; i++ {
		r := q.Mat4().Mat3()
		r0, r1, r2 := r.Col(0), r.Col(1), r.Col(2)

		num := r0.Cross(a0).Add(r1.Cross(a1)).Add(r2.Cross(a2))
		den := absf(r0.Dot(a0)+r1.Dot(a1)+r2.Dot(a2)) + 1e-9
		omega := num.Mul(1 / den)

		w := omega.Len()
		if w < 1e-9 {
			break
		}
		q = mgl32.QuatRotate(w, omega.Mul(1/w)).Mul(q).Normalize()
	}
	return q
}

// Outer returns the outer product a·bᵀ.
func Outer(a, b mgl32.Vec3) mgl32.Mat3 {
	return mgl32.Mat3FromCols(a.Mul(b[0]), a.Mul(b[1]), a.Mul(b[2]))
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
