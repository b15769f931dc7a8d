// Package contacts generates particle-particle, particle-fluid and
// particle-collider contacts once per step and exposes them to the batcher.
package contacts

import (
	"fmt"

	"github.com/san-kum/flexsim/internal/flex"
)

// SimplexCounts describes how the flat simplex index array is laid out:
// all points first, then edges, triangles and tetrahedra.
type SimplexCounts struct {
	Points     int
	Edges      int
	Triangles  int
	Tetrahedra int
}

// SimplexCount is the total number of simplices.
func (c SimplexCounts) SimplexCount() int {
	return c.Points + c.Edges + c.Triangles + c.Tetrahedra
}

// IndexCount is the length of the flat index array.
func (c SimplexCounts) IndexCount() int {
	return c.Points + 2*c.Edges + 3*c.Triangles + 4*c.Tetrahedra
}

// StartAndSize returns the offset of simplex i in the flat index array and
// its particle count.
func (c SimplexCounts) StartAndSize(i int) (start, size int) {
	if i < c.Points {
		return i, 1
	}
	i -= c.Points
	off := c.Points
	if i < c.Edges {
		return off + 2*i, 2
	}
	i -= c.Edges
	off += 2 * c.Edges
	if i < c.Triangles {
		return off + 3*i, 3
	}
	i -= c.Triangles
	off += 3 * c.Triangles
	return off + 4*i, 4
}

// Validate checks that the layout matches the index array and that every
// index addresses an existing particle.
func (c SimplexCounts) Validate(simplices []int, particleCount int) error {
	if c.Points < 0 || c.Edges < 0 || c.Triangles < 0 || c.Tetrahedra < 0 {
		return fmt.Errorf("%w: negative simplex count %+v", flex.ErrInvalidConfig, c)
	}
	if n := c.IndexCount(); n != len(simplices) {
		return &flex.DataModelError{Field: "Simplices", Want: n, Got: len(simplices)}
	}
	for i, p := range simplices {
		if p < 0 || p >= particleCount {
			return fmt.Errorf("simplex index %d: %w", i, &flex.IndexError{Kind: "particle", Index: p, Len: particleCount})
		}
	}
	return nil
}

// PointSimplices returns a layout and index array with one point simplex
// per listed particle.
func PointSimplices(indices []int) ([]int, SimplexCounts) {
	out := make([]int, len(indices))
	copy(out, indices)
	return out, SimplexCounts{Points: len(indices)}
}
