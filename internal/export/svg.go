package export

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/viz"
)

const background = "#0a0a0a"

func header(sb *strings.Builder, width, height float64) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background)
}

// CanvasToSVG converts a Braille canvas to SVG, one circle per lit dot.
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}
	sw, sh := canvas.Dots()

	var sb strings.Builder
	header(&sb, float64(sw)*scale, float64(sh)*scale)
	sb.WriteString(`<g fill="#00ff00">` + "\n")

	r := scale * 0.4
	for y := 0; y < sh; y++ {
		for x := 0; x < sw; x++ {
			if canvas.IsSet(x, y) {
				fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="%.1f"/>`+"\n",
					float64(x)*scale+scale/2, float64(y)*scale+scale/2, r)
			}
		}
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

type disc struct {
	x, y, r float64
	depth   float32
}

// SnapshotToSVG draws one frame of particle positions as seen by cam.
// Far particles are drawn first.
func SnapshotToSVG(positions []mgl32.Vec3, cam *viz.Camera, width, height int, radius float32, color string) string {
	if cam == nil {
		return ""
	}
	discs := make([]disc, 0, len(positions))
	for _, p := range positions {
		x, y, scale, depth, ok := cam.Project(p, width, height)
		if !ok {
			continue
		}
		r := math.Max(1, float64(radius*scale))
		discs = append(discs, disc{float64(x), float64(y), r, depth})
	}
	sort.Slice(discs, func(i, j int) bool { return discs[i].depth < discs[j].depth })

	var sb strings.Builder
	header(&sb, float64(width), float64(height))
	fmt.Fprintf(&sb, `<g fill="%s" stroke="%s" stroke-width="0.5">`+"\n", color, background)
	for _, d := range discs {
		fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="%.1f"/>`+"\n", d.x, d.y, d.r)
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// TrajectoryToSVG plots the path of one particle across frames projected
// onto the plane of axes a and b (0 x, 1 y, 2 z).
func TrajectoryToSVG(frames [][]mgl32.Vec3, particle, a, b, width, height int, strokeColor string) string {
	xs := viz.Column(frames, particle, a)
	ys := viz.Column(frames, particle, b)
	if len(xs) < 2 {
		return ""
	}

	minX, maxX := bounds(xs)
	minY, maxY := bounds(ys)

	var sb strings.Builder
	header(&sb, float64(width), float64(height))
	fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, strokeColor)
	for i := range xs {
		x := (xs[i] - minX) / (maxX - minX) * float64(width)
		y := float64(height) - (ys[i]-minY)/(maxY-minY)*float64(height)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}

// bounds returns the range of v padded by 10% on each side.
func bounds(v []float64) (lo, hi float64) {
	lo, hi = v[0], v[0]
	for _, x := range v {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	return lo - span*0.1, hi + span*0.1
}
