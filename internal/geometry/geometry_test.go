package geometry

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func approx(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-4 }

func vecApprox(a, b mgl32.Vec3) bool {
	return approx(a[0], b[0]) && approx(a[1], b[1]) && approx(a[2], b[2])
}

func TestAabb(t *testing.T) {
	b := EmptyAabb()
	if !b.IsEmpty() {
		t.Fatal("empty box reports non-empty")
	}
	b = b.Encapsulate(mgl32.Vec3{1, 2, 3}).Encapsulate(mgl32.Vec3{-1, 0, 5})
	if b.Min != (mgl32.Vec3{-1, 0, 3}) || b.Max != (mgl32.Vec3{1, 2, 5}) {
		t.Errorf("bounds = %v", b)
	}
	if b.MaxAxisLength() != 2 {
		t.Errorf("max axis = %v", b.MaxAxisLength())
	}

	swept := AabbFromPoint(mgl32.Vec3{}, 1).Sweep(mgl32.Vec3{3, 0, 0})
	if swept.Max[0] != 4 || swept.Min[0] != -1 {
		t.Errorf("swept = %v", swept)
	}
	if !swept.Overlaps(AabbFromPoint(mgl32.Vec3{3.5, 0, 0}, 0.1)) {
		t.Error("swept box should overlap point near its end")
	}
}

func TestTransformRoundTrip(t *testing.T) {
	tr := NewTransform(mgl32.Vec3{1, 2, 3}, mgl32.QuatRotate(0.7, mgl32.Vec3{0, 1, 0}), mgl32.Vec3{2, 2, 2})
	p := mgl32.Vec3{0.3, -1, 4}
	if got := tr.InverseTransformPoint(tr.TransformPoint(p)); !vecApprox(got, p) {
		t.Errorf("round trip = %v, want %v", got, p)
	}
	if got := tr.Inverse().TransformPoint(tr.TransformPoint(p)); !vecApprox(got, p) {
		t.Errorf("inverse transform = %v, want %v", got, p)
	}
}

func TestClosestPointOnTriangle(t *testing.T) {
	a, b, c := mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}

	tests := []struct {
		name string
		p    mgl32.Vec3
		want mgl32.Vec3
	}{
		{"above interior", mgl32.Vec3{0.25, 0.25, 1}, mgl32.Vec3{0.25, 0.25, 0}},
		{"vertex region a", mgl32.Vec3{-1, -1, 0}, a},
		{"vertex region b", mgl32.Vec3{2, -0.5, 0}, b},
		{"edge bc", mgl32.Vec3{1, 1, 0}, mgl32.Vec3{0.5, 0.5, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, bary := ClosestPointOnTriangle(tt.p, a, b, c)
			if !vecApprox(got, tt.want) {
				t.Errorf("point = %v, want %v", got, tt.want)
			}
			if !approx(bary[0]+bary[1]+bary[2], 1) {
				t.Errorf("barycentric %v does not sum to 1", bary)
			}
		})
	}
}

func TestEllipsoidRadius(t *testing.T) {
	radii := mgl32.Vec3{2, 1, 0.5}
	q := mgl32.QuatIdent()
	if r := EllipsoidRadius(mgl32.Vec3{1, 0, 0}, q, radii); !approx(r, 2) {
		t.Errorf("x radius = %v", r)
	}
	if r := EllipsoidRadius(mgl32.Vec3{0, 0, 1}, q, radii); !approx(r, 0.5) {
		t.Errorf("z radius = %v", r)
	}
	rot := mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 0, 1})
	if r := EllipsoidRadius(mgl32.Vec3{0, 1, 0}, rot, radii); !approx(r, 2) {
		t.Errorf("rotated radius = %v", r)
	}
}

func TestExtractRotation(t *testing.T) {
	want := mgl32.QuatRotate(0.9, mgl32.Vec3{1, 1, 0}.Normalize())
	r := want.Mat4().Mat3()
	// stretch along local x then rotate
	a := r.Mul3(mgl32.Diag3(mgl32.Vec3{1.5, 1, 0.8}))

	got := ExtractRotation(a, mgl32.QuatIdent(), 50)
	if d := got.Dot(want); math.Abs(float64(d)) < 0.999 {
		t.Errorf("rotation = %v, want %v (dot %v)", got, want, d)
	}
}

func TestIntegrateOrientation(t *testing.T) {
	q := mgl32.QuatIdent()
	w := mgl32.Vec3{0, 1, 0}
	for i := 0; i < 100; i++ {
		q = IntegrateOrientation(q, w, 0.01)
	}
	got := AngularVelocityBetween(mgl32.QuatIdent(), q, 1)
	if !approx(got[1], 2*float32(math.Sin(0.5))) {
		t.Errorf("angular velocity = %v", got)
	}
}
