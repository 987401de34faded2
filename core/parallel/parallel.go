// Package parallel splits row-wise work over CPU cores. The inference loop
// itself is sequential; only independent per-row transforms inside one
// iteration (Fourier projections of design-matrix rows) go through here.
package parallel

import (
	"runtime"
	"sync"
)

// Parallelize divides items into contiguous ranges, one per worker, and runs
// fn on each range concurrently. It returns when every range is done.
func Parallelize(items int, fn func(start, end int)) {
	if items <= 0 {
		return
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > items {
		numWorkers = items
	}
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn(0, items) inline when items <= threshold
// and falls back to Parallelize otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// ForEachRow calls fn(i) for every i in [0, rows), in parallel above threshold.
// fn must only write state owned by row i.
func ForEachRow(rows, threshold int, fn func(i int)) {
	ParallelizeWithThreshold(rows, threshold, func(start, end int) {
		for i := start; i < end; i++ {
			fn(i)
		}
	})
}
