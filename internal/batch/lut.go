package batch

// MaskBits is the width of a particle occupancy mask.
const MaskBits = 16

// MaxBatches is MaskBits batches plus one leftover batch.
const MaxBatches = MaskBits + 1

// LUT maps an occupancy mask to the first free batch. Masks with every
// considered bit set map to the leftover batch, numBatches-1.
type LUT struct {
	NumBatches int
	batchIndex [1 << MaskBits]uint8
}

// NewLUT builds the table for numBatches in [1, MaxBatches].
func NewLUT(numBatches int) *LUT {
	if numBatches < 1 {
		numBatches = 1
	}
	if numBatches > MaxBatches {
		numBatches = MaxBatches
	}
	l := &LUT{NumBatches: numBatches}
	numBits := numBatches - 1

	for mask := range l.batchIndex {
		idx := numBits
		for b := 0; b < numBits; b++ {
			if mask&(1<<b) == 0 {
				idx = b
				break
			}
		}
		l.batchIndex[mask] = uint8(idx)
	}
	return l
}

// BatchFor returns the batch a constraint touching particles with the
// combined occupancy mask goes to.
func (l *LUT) BatchFor(mask uint16) int { return int(l.batchIndex[mask]) }

// IsLeftover reports whether batch b is the overflow batch.
func (l *LUT) IsLeftover(b int) bool { return b == l.NumBatches-1 }
