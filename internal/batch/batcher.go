package batch

// WorkItemSize is the number of constraints one parallel work item solves.
const WorkItemSize = 64

// ConstraintProvider exposes a constraint array to the batcher.
type ConstraintProvider interface {
	GetConstraintCount() int
	GetParticleCount(i int) int
	GetParticle(i, slot int) int
	// WriteSortedConstraint records that constraint i moves to sortedIndex.
	WriteSortedConstraint(i, sortedIndex int)
}

// BatchData describes one batch inside the sorted constraint array.
type BatchData struct {
	// BatchID has only the bit of this batch set. Zero for the leftover
	// batch when it lies past the mask width.
	BatchID               uint16
	StartIndex            int
	ConstraintCount       int
	ActiveConstraintCount int
	WorkItemSize          int
	WorkItemCount         int
	IsLast                bool
}

func newBatchData(index, maxBatches int) BatchData {
	var id uint16
	if index < MaskBits {
		id = 1 << index
	}
	return BatchData{BatchID: id, IsLast: index == maxBatches-1}
}

// GetConstraintRange returns the [start, end) constraint range of work
// item w.
func (b BatchData) GetConstraintRange(w int) (start, end int) {
	start = b.StartIndex + b.WorkItemSize*w
	end = b.StartIndex + min(b.ConstraintCount, b.WorkItemSize*(w+1))
	return start, end
}

// Batcher colours constraints. It keeps scratch buffers between calls and
// is not safe for concurrent use.
type Batcher struct {
	maxBatches int
	lut        *LUT

	masks      []uint16
	lastUsed   []bool
	assignment []int8
	leftovers  []int
}

// NewBatcher returns a batcher producing at most maxBatches batches.
func NewBatcher(maxBatches int) *Batcher {
	if maxBatches > MaxBatches {
		maxBatches = MaxBatches
	}
	if maxBatches < 1 {
		maxBatches = 1
	}
	return &Batcher{maxBatches: maxBatches, lut: NewLUT(maxBatches)}
}

func (b *Batcher) MaxBatches() int { return b.maxBatches }

// Result is the outcome of one batching pass.
type Result struct {
	Batches          []BatchData
	ActiveBatchCount int
	// Overflow counts constraints that fit in no batch and were dropped.
	Overflow int
	// Sorted is the number of constraints written back, ConstraintCount
	// minus Overflow.
	Sorted int
}

// BatchConstraints assigns every constraint of p to a batch and reports
// each constraint's position in the batch-sorted order through
// WriteSortedConstraint. Dropped constraints are never written. Particle
// indices outside [0, particleCount) are ignored.
func (b *Batcher) BatchConstraints(p ConstraintProvider, particleCount int) Result {
	n := p.GetConstraintCount()
	b.reset(n, particleCount)

	batches := make([]BatchData, b.maxBatches)
	for i := range batches {
		batches[i] = newBatchData(i, b.maxBatches)
	}

	for i := 0; i < n; i++ {
		var mask uint16
		count := p.GetParticleCount(i)
		for s := 0; s < count; s++ {
			if pi := p.GetParticle(i, s); pi >= 0 && pi < particleCount {
				mask |= b.masks[pi]
			}
		}

		idx := b.lut.BatchFor(mask)
		if b.lut.IsLeftover(idx) {
			b.leftovers = append(b.leftovers, i)
			continue
		}

		bit := uint16(1) << idx
		for s := 0; s < count; s++ {
			if pi := p.GetParticle(i, s); pi >= 0 && pi < particleCount {
				b.masks[pi] |= bit
			}
		}
		b.assignment[i] = int8(idx)
		batches[idx].ConstraintCount++
	}

	// pack leftovers into the last batch, first come first served
	last := b.maxBatches - 1
	overflow := 0
	for _, i := range b.leftovers {
		count := p.GetParticleCount(i)
		free := true
		for s := 0; s < count && free; s++ {
			if pi := p.GetParticle(i, s); pi >= 0 && pi < particleCount && b.lastUsed[pi] {
				free = false
			}
		}
		if !free {
			overflow++
			continue
		}
		for s := 0; s < count; s++ {
			if pi := p.GetParticle(i, s); pi >= 0 && pi < particleCount {
				b.lastUsed[pi] = true
			}
		}
		b.assignment[i] = int8(last)
		batches[last].ConstraintCount++
	}

	active := 0
	start := 0
	for i := range batches {
		batches[i].StartIndex = start
		start += batches[i].ConstraintCount
		if batches[i].ConstraintCount > 0 {
			active = i + 1
		}
	}

	for i := 0; i < n; i++ {
		a := b.assignment[i]
		if a < 0 {
			continue
		}
		bd := &batches[a]
		p.WriteSortedConstraint(i, bd.StartIndex+bd.ActiveConstraintCount)
		bd.ActiveConstraintCount++
	}

	for i := range batches {
		bd := &batches[i]
		if bd.ConstraintCount == 0 {
			continue
		}
		bd.WorkItemSize = min(WorkItemSize, bd.ConstraintCount)
		bd.WorkItemCount = (bd.ConstraintCount + bd.WorkItemSize - 1) / bd.WorkItemSize
	}

	return Result{
		Batches:          batches[:active],
		ActiveBatchCount: active,
		Overflow:         overflow,
		Sorted:           start,
	}
}

func (b *Batcher) reset(n, particleCount int) {
	b.masks = resize(b.masks, particleCount)
	clear(b.masks)
	b.lastUsed = resize(b.lastUsed, particleCount)
	clear(b.lastUsed)
	b.assignment = resize(b.assignment, n)
	for i := range b.assignment {
		b.assignment[i] = -1
	}
	b.leftovers = b.leftovers[:0]
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}
