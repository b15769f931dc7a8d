package batch

// SortByFirstParticle returns a stable permutation of p's constraints
// ordered by their first particle. order[k] is the original index of the
// constraint that goes to slot k. Counting sort, single threaded.
func SortByFirstParticle(p ConstraintProvider, particleCount int) []int {
	n := p.GetConstraintCount()
	keys := make([]int, n)
	for i := 0; i < n; i++ {
		key := 0
		if p.GetParticleCount(i) > 0 {
			key = p.GetParticle(i, 0)
		}
		if key < 0 || key >= particleCount {
			key = 0
		}
		keys[i] = key
	}
	return CountingSort(keys, max(particleCount, 1))
}

// CountingSort returns the stable permutation that orders keys ascending.
// Keys must lie in [0, maxKey).
func CountingSort[K ~int | ~int32 | ~uint32](keys []K, maxKey int) []int {
	counts := make([]int, maxKey+1)
	for _, k := range keys {
		counts[int(k)+1]++
	}
	for i := 1; i < len(counts); i++ {
		counts[i] += counts[i-1]
	}
	order := make([]int, len(keys))
	for i, k := range keys {
		order[counts[k]] = i
		counts[k]++
	}
	return order
}
