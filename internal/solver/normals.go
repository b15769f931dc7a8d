package solver

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/flex"
)

// SetDeformableTriangles registers the triangles whose area weighted
// normals feed aerodynamic constraints. Nothing changes on error.
func (s *Solver) SetDeformableTriangles(triangles []int) error {
	if len(triangles)%3 != 0 {
		return fmt.Errorf("%w: %d triangle indices is not a multiple of 3", flex.ErrInvalidConfig, len(triangles))
	}
	for _, p := range triangles {
		if err := flex.CheckIndex("particle", p, s.particles.Len()); err != nil {
			return fmt.Errorf("deformable triangles: %w", err)
		}
	}
	s.triangles = append(s.triangles[:0], triangles...)
	return nil
}

// DeformableTriangleCount is the number of registered triangles.
func (s *Solver) DeformableTriangleCount() int { return len(s.triangles) / 3 }

func (s *Solver) updateNormals() {
	if len(s.triangles) == 0 {
		return
	}
	pd := s.particles
	for _, p := range s.triangles {
		pd.Normals[p] = mgl32.Vec4{}
	}
	for t := 0; t+2 < len(s.triangles); t += 3 {
		a, b, c := s.triangles[t], s.triangles[t+1], s.triangles[t+2]
		xa := pd.Position(a)
		n := pd.Position(b).Sub(xa).Cross(pd.Position(c).Sub(xa)).Vec4(0)
		pd.Normals[a] = pd.Normals[a].Add(n)
		pd.Normals[b] = pd.Normals[b].Add(n)
		pd.Normals[c] = pd.Normals[c].Add(n)
	}
	for _, p := range s.triangles {
		pd.Normals[p] = flex.SafeNormalize(pd.Normals[p].Vec3()).Vec4(0)
	}
}
