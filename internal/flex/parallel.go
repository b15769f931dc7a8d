package flex

import (
	"runtime"
	"sync"
)

// ParallelFor executes fn over [0, n) split into contiguous chunks of at
// least minChunk elements, one goroutine per chunk, and waits for all of
// them. Small ranges run inline on the calling goroutine.
func ParallelFor(n, minChunk int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if minChunk < 1 {
		minChunk = 1
	}
	numWorkers := runtime.GOMAXPROCS(0)
	if n <= minChunk || numWorkers <= 1 {
		fn(0, n)
		return
	}

	workers := numWorkers
	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}

// ChunkCount returns the number of chunks ParallelFor would create for n
// elements. Callers use it to size per-chunk output queues.
func ChunkCount(n, chunk int) int {
	if n <= 0 {
		return 0
	}
	if chunk < 1 {
		chunk = 1
	}
	return (n + chunk - 1) / chunk
}

// ParallelChunks runs fn once per fixed-size chunk, passing the chunk index.
// Unlike ParallelFor the chunk boundaries do not depend on GOMAXPROCS, so
// per-chunk outputs concatenated in chunk order are deterministic.
func ParallelChunks(n, chunk int, fn func(index, start, end int)) {
	count := ChunkCount(n, chunk)
	if count == 0 {
		return
	}
	if count == 1 {
		fn(0, 0, n)
		return
	}
	ParallelFor(count, 1, func(cs, ce int) {
		for c := cs; c < ce; c++ {
			start := c * chunk
			end := start + chunk
			if end > n {
				end = n
			}
			fn(c, start, end)
		}
	})
}
