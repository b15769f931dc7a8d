package constraints

import (
	"github.com/san-kum/flexsim/internal/batch"
	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/particles"
)

// family is the shared part of every constraint type: the flattened
// particle indices of each constraint, its batch partition and the
// per-substep multipliers.
type family struct {
	data *particles.Data

	indices []int
	starts  []int
	sizes   []int

	lambdas      []float32
	lambdaStride int

	batches  []batch.BatchData
	overflow int
	dirty    bool

	order []int
}

func newFamily(data *particles.Data, lambdaStride int) family {
	return family{data: data, lambdaStride: lambdaStride}
}

// Len is the number of constraints.
func (f *family) Len() int { return len(f.starts) }

// Batches returns the current batch partition.
func (f *family) Batches() []batch.BatchData { return f.batches }

// Overflow is the number of constraints that fit no batch at the last
// batching pass and are skipped until the next one.
func (f *family) Overflow() int { return f.overflow }

// Particles returns the particle indices of constraint i.
func (f *family) Particles(i int) []int {
	return f.indices[f.starts[i] : f.starts[i]+f.sizes[i]]
}

func (f *family) particle(i, slot int) int { return f.indices[f.starts[i]+slot] }

// add appends a constraint over ps and retains the particles.
func (f *family) add(ps ...int) (int, error) {
	if err := f.data.Retain(ps...); err != nil {
		return -1, err
	}
	f.starts = append(f.starts, len(f.indices))
	f.sizes = append(f.sizes, len(ps))
	f.indices = append(f.indices, ps...)
	f.dirty = true
	return len(f.starts) - 1, nil
}

// remove drops constraint i, keeping the order of the rest.
func (f *family) remove(i int) error {
	if err := flex.CheckIndex("constraint", i, f.Len()); err != nil {
		return err
	}
	start, size := f.starts[i], f.sizes[i]
	f.data.Unretain(f.indices[start : start+size]...)
	f.indices = append(f.indices[:start], f.indices[start+size:]...)
	f.starts = removeAt(f.starts, i)
	f.sizes = removeAt(f.sizes, i)
	for k := i; k < len(f.starts); k++ {
		f.starts[k] -= size
	}
	f.dirty = true
	return nil
}

// clear drops every constraint.
func (f *family) clear() {
	for i := range f.starts {
		f.data.Unretain(f.Particles(i)...)
	}
	f.indices, f.starts, f.sizes = nil, nil, nil
	f.batches = nil
	f.dirty = false
}

// resetLambdas sizes and zeroes the multipliers.
func (f *family) resetLambdas() {
	n := f.Len() * f.lambdaStride
	if cap(f.lambdas) < n {
		f.lambdas = make([]float32, n)
	}
	f.lambdas = f.lambdas[:n]
	clear(f.lambdas)
}

func (f *family) GetConstraintCount() int         { return f.Len() }
func (f *family) GetParticleCount(i int) int      { return f.sizes[i] }
func (f *family) GetParticle(i, slot int) int     { return f.particle(i, slot) }
func (f *family) WriteSortedConstraint(i, to int) { f.order[to] = i }

// rebatch sorts the constraints for locality, colours them and permutes
// the family arrays into batch order. permuteFields runs before the shared
// index arrays move, so it may still read the old starts and sizes.
// Constraints that overflow are moved past the last batch.
func (f *family) rebatch(b *batch.Batcher, permuteFields func(order []int)) {
	n := f.Len()
	if n == 0 {
		f.batches = nil
		f.overflow = 0
		f.dirty = false
		return
	}

	locality := batch.SortByFirstParticle(f, f.data.Len())
	permuteFields(locality)
	f.permute(locality)

	f.order = resizeInts(f.order, n)
	for i := range f.order {
		f.order[i] = -1
	}
	res := b.BatchConstraints(f, f.data.Len())

	placed := make([]bool, n)
	for k := 0; k < res.Sorted; k++ {
		placed[f.order[k]] = true
	}
	k := res.Sorted
	for i := 0; i < n; i++ {
		if !placed[i] {
			f.order[k] = i
			k++
		}
	}
	order := append([]int(nil), f.order...)
	permuteFields(order)
	f.permute(order)

	f.batches = res.Batches
	f.overflow = res.Overflow
	f.dirty = false
}

func (f *family) permute(order []int) {
	indices := make([]int, 0, len(f.indices))
	starts := make([]int, len(order))
	sizes := make([]int, len(order))
	for k, i := range order {
		starts[k] = len(indices)
		sizes[k] = f.sizes[i]
		indices = append(indices, f.Particles(i)...)
	}
	f.indices, f.starts, f.sizes = indices, starts, sizes
}

// solve runs eval over every work item of every batch. Work items of a
// batch run in parallel; batches run one after another. Sequential order
// commits deltas after each batch, Parallel once at the end.
func solve(ctx *Context, batches []batch.BatchData, p flex.ConstraintParameters, eval func(start, end int)) {
	for _, b := range batches {
		flex.ParallelFor(b.WorkItemCount, 1, func(ws, we int) {
			for w := ws; w < we; w++ {
				start, end := b.GetConstraintRange(w)
				eval(start, end)
			}
		})
		if p.EvaluationOrder == flex.Sequential {
			ctx.apply(p.SORFactor)
		}
	}
	if p.EvaluationOrder == flex.Parallel {
		ctx.apply(p.SORFactor)
	}
}

func removeAt[T any](s []T, i int) []T {
	return append(s[:i], s[i+1:]...)
}

func permuted[T any](s []T, order []int) []T {
	out := make([]T, len(order))
	for k, i := range order {
		out[k] = s[i]
	}
	return out
}

func resizeInts(s []int, n int) []int {
	if cap(s) < n {
		return make([]int, n)
	}
	return s[:n]
}
