// Package grid implements an unbounded, sparse, multilevel spatial hash
// grid. Cells are keyed by integer coordinates plus a level; the cell size
// of level L is 2^L. Parent cells are derived from child coordinates, never
// stored.
package grid

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/geometry"
)

// MinCellSize bounds the finest level a simplex can be assigned to.
const MinCellSize = 0.01

// CellCoords addresses a cell at a given level.
type CellCoords struct {
	X, Y, Z int32
	Level   int32
}

// Offset returns c shifted by (dx, dy, dz) at the same level.
func (c CellCoords) Offset(dx, dy, dz int32) CellCoords {
	return CellCoords{X: c.X + dx, Y: c.Y + dy, Z: c.Z + dz, Level: c.Level}
}

// CellSpan is an inclusive box of cells at a single level.
type CellSpan struct {
	Min CellCoords
	Max CellCoords
}

// Each visits every cell of the span in x-fastest order.
func (s CellSpan) Each(fn func(CellCoords)) {
	for x := s.Min.X; x <= s.Max.X; x++ {
		for y := s.Min.Y; y <= s.Max.Y; y++ {
			for z := s.Min.Z; z <= s.Max.Z; z++ {
				fn(CellCoords{X: x, Y: y, Z: z, Level: s.Min.Level})
			}
		}
	}
}

// Count is the number of cells covered by the span.
func (s CellSpan) Count() int {
	return int(s.Max.X-s.Min.X+1) * int(s.Max.Y-s.Min.Y+1) * int(s.Max.Z-s.Min.Z+1)
}

// Cell holds the contents of one non-empty grid cell.
type Cell[T comparable] struct {
	Coords   CellCoords
	Contents []T
}

func (c *Cell[T]) add(v T) { c.Contents = append(c.Contents, v) }

// remove swaps v with the last element and truncates. Missing values are
// ignored.
func (c *Cell[T]) remove(v T) bool {
	for i, e := range c.Contents {
		if e == v {
			last := len(c.Contents) - 1
			c.Contents[i] = c.Contents[last]
			c.Contents = c.Contents[:last]
			return true
		}
	}
	return false
}

// MultilevelGrid maps cell coordinates to dense cell storage and tracks how
// many cells exist per level.
type MultilevelGrid[T comparable] struct {
	index  map[CellCoords]int
	cells  []Cell[T]
	levels map[int32]int
}

// New returns an empty grid sized for capacity cells.
func New[T comparable](capacity int) *MultilevelGrid[T] {
	return &MultilevelGrid[T]{
		index:  make(map[CellCoords]int, capacity),
		cells:  make([]Cell[T], 0, capacity),
		levels: make(map[int32]int, 10),
	}
}

func (g *MultilevelGrid[T]) CellCount() int { return len(g.cells) }

// Cell returns the i-th dense cell.
func (g *MultilevelGrid[T]) Cell(i int) *Cell[T] { return &g.cells[i] }

func (g *MultilevelGrid[T]) Clear() {
	clear(g.index)
	g.cells = g.cells[:0]
	clear(g.levels)
}

// GetOrCreateCell returns the dense index of the cell at coords, creating
// an empty cell if none exists.
func (g *MultilevelGrid[T]) GetOrCreateCell(coords CellCoords) int {
	if i, ok := g.index[coords]; ok {
		return i
	}
	i := len(g.cells)
	g.cells = append(g.cells, Cell[T]{Coords: coords})
	g.index[coords] = i
	g.levels[coords.Level]++
	return i
}

func (g *MultilevelGrid[T]) TryGetCellIndex(coords CellCoords) (int, bool) {
	i, ok := g.index[coords]
	return i, ok
}

// AddToCells inserts content into every cell of span.
func (g *MultilevelGrid[T]) AddToCells(span CellSpan, content T) {
	span.Each(func(c CellCoords) {
		g.cells[g.GetOrCreateCell(c)].add(content)
	})
}

// RemoveFromCells removes content from every cell of span. Cells left empty
// stay allocated until RemoveEmpty.
func (g *MultilevelGrid[T]) RemoveFromCells(span CellSpan, content T) {
	span.Each(func(c CellCoords) {
		if i, ok := g.index[c]; ok {
			g.cells[i].remove(content)
		}
	})
}

// RemoveEmpty drops cells with no contents, compacting dense storage by
// swapping the last cell into the hole.
func (g *MultilevelGrid[T]) RemoveEmpty() {
	for i := len(g.cells) - 1; i >= 0; i-- {
		if len(g.cells[i].Contents) > 0 {
			continue
		}
		coords := g.cells[i].Coords
		delete(g.index, coords)
		if g.levels[coords.Level]--; g.levels[coords.Level] <= 0 {
			delete(g.levels, coords.Level)
		}

		last := len(g.cells) - 1
		if i != last {
			g.cells[i] = g.cells[last]
			g.index[g.cells[i].Coords] = i
		}
		g.cells[last] = Cell[T]{}
		g.cells = g.cells[:last]
	}
}

// Levels returns the populated levels in ascending order.
func (g *MultilevelGrid[T]) Levels() []int32 {
	out := make([]int32, 0, len(g.levels))
	for l := range g.levels {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GridLevelForSize returns the smallest level whose cells are at least size
// wide.
func GridLevelForSize(size float32) int32 {
	if size < MinCellSize {
		size = MinCellSize
	}
	return int32(math.Ceil(math.Log2(float64(size))))
}

// CellSizeOfLevel is 2^level.
func CellSizeOfLevel(level int32) float32 {
	return float32(math.Ldexp(1, int(level)))
}

// GetParentCellCoords returns the cell containing c at a coarser level.
// Arithmetic shifts floor negative coordinates correctly.
func GetParentCellCoords(c CellCoords, level int32) CellCoords {
	d := level - c.Level
	if d <= 0 {
		return c
	}
	return CellCoords{X: c.X >> d, Y: c.Y >> d, Z: c.Z >> d, Level: level}
}

// Quantize returns the integer cell of v for a given cell size.
func Quantize(v mgl32.Vec3, cellSize float32) (int32, int32, int32) {
	return int32(math.Floor(float64(v[0] / cellSize))),
		int32(math.Floor(float64(v[1] / cellSize))),
		int32(math.Floor(float64(v[2] / cellSize)))
}

// CellAt returns the cell containing point p at level.
func CellAt(p mgl32.Vec3, level int32) CellCoords {
	x, y, z := Quantize(p, CellSizeOfLevel(level))
	return CellCoords{X: x, Y: y, Z: z, Level: level}
}

// GetCellCoordsForBoundsAtLevel returns the span of cells overlapped by
// bounds at level.
func GetCellCoordsForBoundsAtLevel(bounds geometry.Aabb, level int32) CellSpan {
	return CellSpan{Min: CellAt(bounds.Min, level), Max: CellAt(bounds.Max, level)}
}

// CellBounds returns the world-space box of a cell.
func CellBounds(c CellCoords) geometry.Aabb {
	size := CellSizeOfLevel(c.Level)
	min := mgl32.Vec3{float32(c.X) * size, float32(c.Y) * size, float32(c.Z) * size}
	return geometry.Aabb{Min: min, Max: min.Add(mgl32.Vec3{size, size, size})}
}
