package viz

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/guptarohit/asciigraph"
)

// Plot draws series as an ascii line chart. Empty series give an empty
// string; longer series are resampled to width columns.
func Plot(series []float64, caption string, width, height int) string {
	if len(series) == 0 {
		return ""
	}
	if len(series) == 1 {
		series = []float64{series[0], series[0]}
	}
	return asciigraph.Plot(series,
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Caption(caption))
}

// Column extracts one coordinate of one particle from every frame.
func Column(frames [][]mgl32.Vec3, particle, axis int) []float64 {
	out := make([]float64, 0, len(frames))
	for _, f := range frames {
		if particle < len(f) {
			out = append(out, float64(f[particle][axis]))
		}
	}
	return out
}
