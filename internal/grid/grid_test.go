package grid

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/flexsim/internal/geometry"
)

func TestGridLevelForSize(t *testing.T) {
	tests := []struct {
		size float32
		want int32
	}{
		{1, 0},
		{0.9, 0},
		{1.5, 1},
		{2, 1},
		{0.3, -1},
		{0.001, GridLevelForSize(MinCellSize)},
		{7, 3},
	}
	for _, tt := range tests {
		got := GridLevelForSize(tt.size)
		assert.Equal(t, tt.want, got, "size %v", tt.size)
		assert.GreaterOrEqual(t, CellSizeOfLevel(got), max32(tt.size, MinCellSize))
	}
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func TestParentCoordsFloorNegative(t *testing.T) {
	c := CellCoords{X: -1, Y: -3, Z: 2, Level: 0}
	p := GetParentCellCoords(c, 1)
	assert.Equal(t, CellCoords{X: -1, Y: -2, Z: 1, Level: 1}, p)

	// parent must contain the child's bounds
	cb := CellBounds(c)
	pb := CellBounds(p)
	assert.True(t, pb.Contains(cb.Min))
	assert.True(t, pb.Contains(cb.Max))

	assert.Equal(t, c, GetParentCellCoords(c, 0))
}

func TestSpanForBounds(t *testing.T) {
	b := geometry.Aabb{Min: mgl32.Vec3{-0.5, 0.1, 0.1}, Max: mgl32.Vec3{1.5, 0.2, 0.2}}
	span := GetCellCoordsForBoundsAtLevel(b, 0)
	assert.Equal(t, int32(-1), span.Min.X)
	assert.Equal(t, int32(1), span.Max.X)
	assert.Equal(t, 3, span.Count())
}

func TestGridRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	g := New[int](64)

	type entry struct {
		span CellSpan
		id   int
	}
	var entries []entry
	for i := 0; i < 200; i++ {
		p := mgl32.Vec3{rng.Float32()*20 - 10, rng.Float32()*20 - 10, rng.Float32()*20 - 10}
		size := rng.Float32() * 3
		level := GridLevelForSize(size)
		span := GetCellCoordsForBoundsAtLevel(geometry.AabbFromPoint(p, size/2), level)
		g.AddToCells(span, i)
		entries = append(entries, entry{span, i})
	}
	require.Greater(t, g.CellCount(), 0)

	for _, e := range entries {
		g.RemoveFromCells(e.span, e.id)
	}
	g.RemoveEmpty()
	assert.Equal(t, 0, g.CellCount())
	assert.Empty(t, g.Levels())
}

func TestRemoveMissingIsNoop(t *testing.T) {
	g := New[int](4)
	c := CellCoords{Level: 0}
	span := CellSpan{Min: c, Max: c}
	g.AddToCells(span, 1)

	g.RemoveFromCells(span, 2)
	g.RemoveFromCells(CellSpan{Min: c.Offset(5, 5, 5), Max: c.Offset(5, 5, 5)}, 1)
	g.RemoveEmpty()

	require.Equal(t, 1, g.CellCount())
	assert.Equal(t, []int{1}, g.Cell(0).Contents)
}

func TestRemoveEmptyKeepsIndexConsistent(t *testing.T) {
	g := New[int](8)
	for i := int32(0); i < 5; i++ {
		c := CellCoords{X: i, Level: i % 2}
		g.AddToCells(CellSpan{Min: c, Max: c}, int(i))
	}
	g.RemoveFromCells(CellSpan{Min: CellCoords{X: 1, Level: 1}, Max: CellCoords{X: 1, Level: 1}}, 1)
	g.RemoveFromCells(CellSpan{Min: CellCoords{X: 3, Level: 1}, Max: CellCoords{X: 3, Level: 1}}, 3)
	g.RemoveEmpty()

	assert.Equal(t, 3, g.CellCount())
	assert.Equal(t, []int32{0}, g.Levels())
	for i := 0; i < g.CellCount(); i++ {
		idx, ok := g.TryGetCellIndex(g.Cell(i).Coords)
		require.True(t, ok)
		assert.Equal(t, i, idx)
	}
}

func TestHalfNeighbourhoodCoversAllPairs(t *testing.T) {
	seen := map[Offset3]bool{}
	for _, o := range HalfNeighbours3D {
		neg := Offset3{-o.X, -o.Y, -o.Z}
		assert.False(t, seen[o] || seen[neg], "offset %v listed twice", o)
		seen[o] = true
	}
	// together with their negations they must form the full neighbourhood
	count := 0
	for _, o := range FullNeighbours3D {
		if o == (Offset3{}) {
			continue
		}
		neg := Offset3{-o.X, -o.Y, -o.Z}
		if seen[o] || seen[neg] {
			count++
		}
	}
	assert.Equal(t, 26, count)

	for _, o := range HalfNeighbours2D {
		assert.Equal(t, int32(0), o.Z)
	}
}
