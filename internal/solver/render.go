package solver

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/flex"
)

// Interpolate refreshes the render copies. With linear interpolation they
// blend from the start to the end of the last step by the fraction of a
// step that remains unsimulated; otherwise they equal the simulated state.
func (s *Solver) Interpolate(unsimulatedTime float32) {
	if s.destroyed {
		return
	}
	pd := s.particles
	linear := s.params.Interpolation == flex.InterpolationLinear && s.lastDt > 0
	alpha := float32(1)
	if linear {
		alpha = flex.Clamp(unsimulatedTime/s.lastDt, 0, 1)
	}
	flex.ParallelFor(pd.Len(), particleChunk, func(start, end int) {
		for i := start; i < end; i++ {
			if !linear {
				pd.RenderPositions[i] = pd.Positions[i]
				pd.RenderOrientations[i] = pd.Orientations[i]
				continue
			}
			p0, p1 := pd.StartPositions[i], pd.Positions[i]
			pd.RenderPositions[i] = p0.Add(p1.Sub(p0).Mul(alpha))
			pd.RenderOrientations[i] = mgl32.QuatNlerp(pd.StartOrientations[i], pd.Orientations[i], alpha)
		}
	})
}

// RenderSnapshot is a copy of the render state of every active particle.
// PrincipalAxes holds each particle's three ellipsoid axes in world
// orientation with the radius along that axis in w.
type RenderSnapshot struct {
	Indices       []int
	Positions     []mgl32.Vec3
	Orientations  []mgl32.Quat
	PrincipalAxes [][3]mgl32.Vec4
}

var unitAxes = [3]mgl32.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// Snapshot copies the render state. The result is owned by the caller.
func (s *Solver) Snapshot() RenderSnapshot {
	pd := s.particles
	idx := pd.ActiveIndices()
	snap := RenderSnapshot{
		Indices:       idx,
		Positions:     make([]mgl32.Vec3, len(idx)),
		Orientations:  make([]mgl32.Quat, len(idx)),
		PrincipalAxes: make([][3]mgl32.Vec4, len(idx)),
	}
	for k, i := range idx {
		q := pd.RenderOrientations[i]
		snap.Positions[k] = pd.RenderPositions[i].Vec3()
		snap.Orientations[k] = q
		for a, axis := range unitAxes {
			snap.PrincipalAxes[k][a] = q.Rotate(axis).Vec4(pd.Radii[i][a])
		}
	}
	return snap
}
