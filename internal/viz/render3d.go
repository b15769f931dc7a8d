package viz

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera orbits Target at Distance. Yaw turns about the world y axis,
// Pitch tilts towards it.
type Camera struct {
	Target     mgl32.Vec3
	Distance   float32
	Yaw, Pitch float32
	Zoom       float32
}

func NewCamera() *Camera {
	return &Camera{Distance: 10, Pitch: 0.3, Zoom: 1}
}

func (c *Camera) Orbit(dyaw, dpitch float32) {
	c.Yaw += dyaw
	c.Pitch = float32(math.Max(-1.5, math.Min(1.5, float64(c.Pitch+dpitch))))
}

func (c *Camera) ZoomIn()  { c.Zoom = float32(math.Min(20, float64(c.Zoom*1.2))) }
func (c *Camera) ZoomOut() { c.Zoom = float32(math.Max(0.05, float64(c.Zoom/1.2))) }

// view rotates p into camera space: x right, y up, z towards the viewer.
func (c *Camera) view(p mgl32.Vec3) mgl32.Vec3 {
	q := mgl32.QuatRotate(-c.Pitch, mgl32.Vec3{1, 0, 0}).Mul(mgl32.QuatRotate(-c.Yaw, mgl32.Vec3{0, 1, 0}))
	return q.Rotate(p.Sub(c.Target))
}

// Project maps a world point to dots on a sw x sh canvas. It returns the
// dot coordinates, the pixels per world unit at that depth, the depth and
// whether the point is in front of the camera and on screen.
func (c *Camera) Project(p mgl32.Vec3, sw, sh int) (x, y int, scale, depth float32, ok bool) {
	v := c.view(p)
	dist := c.Distance
	if v[2] >= dist-0.1 {
		return 0, 0, 0, v[2], false
	}
	perspective := dist / (dist - v[2])
	minDim := float32(sw)
	if float32(sh) < minDim {
		minDim = float32(sh)
	}
	scale = perspective * c.Zoom * minDim / 4
	x = int(v[0]*scale) + sw/2
	y = int(-v[1]*scale) + sh/2
	return x, y, scale, v[2], x >= 0 && x < sw && y >= 0 && y < sh
}

// Frame points the camera at the centre of bounds [lo, hi] and backs off
// until the whole box fits.
func (c *Camera) Frame(lo, hi mgl32.Vec3) {
	c.Target = lo.Add(hi).Mul(0.5)
	extent := hi.Sub(lo).Len()
	if extent < 1 {
		extent = 1
	}
	c.Distance = 3 * extent
	c.Zoom = 2 / extent
}

type dot struct {
	x, y, r int
	depth   float32
}

// RenderParticles draws every position as a disc scaled by radius, far
// particles first.
func RenderParticles(cv *Canvas, cam *Camera, positions []mgl32.Vec3, radius float32) {
	if cv == nil || cam == nil {
		return
	}
	sw, sh := cv.Dots()
	dots := make([]dot, 0, len(positions))
	for _, p := range positions {
		x, y, scale, depth, ok := cam.Project(p, sw, sh)
		if ok {
			dots = append(dots, dot{x, y, int(radius * scale), depth})
		}
	}
	sort.Slice(dots, func(i, j int) bool { return dots[i].depth < dots[j].depth })
	for _, d := range dots {
		cv.DrawDisc(d.x, d.y, d.r)
	}
}

// RenderLine draws the segment a-b when either end is visible.
func RenderLine(cv *Canvas, cam *Camera, a, b mgl32.Vec3) {
	sw, sh := cv.Dots()
	x0, y0, _, _, ok0 := cam.Project(a, sw, sh)
	x1, y1, _, _, ok1 := cam.Project(b, sw, sh)
	if ok0 || ok1 {
		cv.DrawLine(x0, y0, x1, y1)
	}
}
