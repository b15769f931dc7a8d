package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Aabb is an axis aligned bounding box. An empty box has Min > Max.
type Aabb struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// EmptyAabb returns a box that contains nothing; encapsulating any point
// into it yields that point.
func EmptyAabb() Aabb {
	inf := float32(math.Inf(1))
	return Aabb{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

// AabbFromPoint returns the box of a sphere.
func AabbFromPoint(p mgl32.Vec3, radius float32) Aabb {
	r := mgl32.Vec3{radius, radius, radius}
	return Aabb{Min: p.Sub(r), Max: p.Add(r)}
}

// AabbFromPoints returns the tightest box around pts.
func AabbFromPoints(pts ...mgl32.Vec3) Aabb {
	b := EmptyAabb()
	for _, p := range pts {
		b = b.Encapsulate(p)
	}
	return b
}

func (b Aabb) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

func (b Aabb) Center() mgl32.Vec3 { return b.Min.Add(b.Max).Mul(0.5) }

func (b Aabb) Size() mgl32.Vec3 { return b.Max.Sub(b.Min) }

// MaxAxisLength is the largest edge of the box.
func (b Aabb) MaxAxisLength() float32 {
	s := b.Size()
	return float32(math.Max(float64(s[0]), math.Max(float64(s[1]), float64(s[2]))))
}

func (b Aabb) Encapsulate(p mgl32.Vec3) Aabb {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
	return b
}

func (b Aabb) EncapsulateBounds(o Aabb) Aabb {
	if o.IsEmpty() {
		return b
	}
	return b.Encapsulate(o.Min).Encapsulate(o.Max)
}

// Expand grows the box by amount on every side.
func (b Aabb) Expand(amount float32) Aabb {
	a := mgl32.Vec3{amount, amount, amount}
	return Aabb{Min: b.Min.Sub(a), Max: b.Max.Add(a)}
}

// Sweep extends the box along a displacement.
func (b Aabb) Sweep(d mgl32.Vec3) Aabb {
	return b.Encapsulate(b.Min.Add(d)).Encapsulate(b.Max.Add(d))
}

func (b Aabb) Overlaps(o Aabb) bool {
	return b.Min[0] <= o.Max[0] && b.Max[0] >= o.Min[0] &&
		b.Min[1] <= o.Max[1] && b.Max[1] >= o.Min[1] &&
		b.Min[2] <= o.Max[2] && b.Max[2] >= o.Min[2]
}

func (b Aabb) Contains(p mgl32.Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

// ClosestPoint clamps p into the box.
func (b Aabb) ClosestPoint(p mgl32.Vec3) mgl32.Vec3 {
	for i := 0; i < 3; i++ {
		p[i] = float32(math.Max(float64(b.Min[i]), math.Min(float64(b.Max[i]), float64(p[i]))))
	}
	return p
}

// Transform returns the box enclosing b after applying t.
func (b Aabb) Transform(t AffineTransform) Aabb {
	if b.IsEmpty() {
		return b
	}
	out := EmptyAabb()
	for i := 0; i < 8; i++ {
		corner := mgl32.Vec3{b.Min[0], b.Min[1], b.Min[2]}
		if i&1 != 0 {
			corner[0] = b.Max[0]
		}
		if i&2 != 0 {
			corner[1] = b.Max[1]
		}
		if i&4 != 0 {
			corner[2] = b.Max[2]
		}
		out = out.Encapsulate(t.TransformPoint(corner))
	}
	return out
}

// Flatten zeroes the z extent, used in 2D mode.
func (b Aabb) Flatten() Aabb {
	b.Min[2], b.Max[2] = 0, 0
	return b
}
