package grid

// Offset3 is a relative cell displacement.
type Offset3 struct{ X, Y, Z int32 }

// HalfNeighbours3D lists 13 of the 26 neighbours such that every unordered
// pair of adjacent cells is visited exactly once.
var HalfNeighbours3D = [13]Offset3{
	{1, 0, 0},
	{0, 1, 0},
	{1, 1, 0},
	{0, 0, 1},
	{1, 0, 1},
	{0, 1, 1},
	{1, 1, 1},
	{-1, 1, 0},
	{-1, -1, 1},
	{0, -1, 1},
	{1, -1, 1},
	{-1, 0, 1},
	{-1, 1, 1},
}

// HalfNeighbours2D is the planar counterpart of HalfNeighbours3D.
var HalfNeighbours2D = [4]Offset3{
	{1, 0, 0},
	{0, 1, 0},
	{1, 1, 0},
	{-1, 1, 0},
}

// FullNeighbours3D is the 3x3x3 block including the centre.
var FullNeighbours3D = func() [27]Offset3 {
	var out [27]Offset3
	i := 0
	for x := int32(-1); x <= 1; x++ {
		for y := int32(-1); y <= 1; y++ {
			for z := int32(-1); z <= 1; z++ {
				out[i] = Offset3{x, y, z}
				i++
			}
		}
	}
	return out
}()

// FullNeighbours2D is the 3x3 block including the centre.
var FullNeighbours2D = func() [9]Offset3 {
	var out [9]Offset3
	i := 0
	for x := int32(-1); x <= 1; x++ {
		for y := int32(-1); y <= 1; y++ {
			out[i] = Offset3{x, y, 0}
			i++
		}
	}
	return out
}()

// Apply shifts c by o.
func (o Offset3) Apply(c CellCoords) CellCoords { return c.Offset(o.X, o.Y, o.Z) }
