package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeCoversAllItems(t *testing.T) {
	for _, items := range []int{0, 1, 7, 1000} {
		seen := make([]int32, items)
		Parallelize(items, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		for i, c := range seen {
			assert.Equal(t, int32(1), c, "item %d of %d visited %d times", i, items, c)
		}
	}
}

func TestForEachRowBelowThresholdIsInline(t *testing.T) {
	var order []int
	ForEachRow(5, 10, func(i int) { order = append(order, i) })
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestForEachRowAboveThreshold(t *testing.T) {
	out := make([]int, 64)
	ForEachRow(len(out), 4, func(i int) { out[i] = i * i })
	for i, v := range out {
		assert.Equal(t, i*i, v)
	}
}
