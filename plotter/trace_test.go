package plotter

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/fastasd/hyper"
	"github.com/YuminosukeSato/fastasd/inference"
)

func record(o *TraceObserver, n int) {
	for i := 0; i < n; i++ {
		o.Observe(inference.Report{
			Iteration: i + 2,
			Params:    hyper.Params{Rho: 1 + float64(i), Delta: 2, B: -0.5, LogNsevar: -2, Len: 1},
			SqErr:     1 / float64(i+2),
			WDif:      0.1 / float64(i+1),
		})
	}
}

func TestTraceObserverRecords(t *testing.T) {
	o := NewTraceObserver()
	record(o, 4)

	assert.Equal(t, 4, o.Len())
	assert.Equal(t, []float64{1, 2, 3, 4}, o.Trace("rho"))
	assert.Equal(t, []float64{0.5, 1.0 / 3, 0.25, 0.2}, o.Trace("sq_err"))
	assert.Len(t, o.Trace("w_dif"), 4)
	assert.Nil(t, o.Trace("nope"))

	// 返り値はコピー
	tr := o.Trace("rho")
	tr[0] = 100
	assert.Equal(t, 1.0, o.Trace("rho")[0])
}

func TestTraceObserverSave(t *testing.T) {
	o := NewTraceObserver()
	_, err := o.Plots()
	assert.Error(t, err)

	record(o, 5)
	plots, err := o.Plots()
	require.NoError(t, err)
	assert.Len(t, plots, 3)

	dir := t.TempDir()
	for _, name := range []string{"trace.png", "trace.svg"} {
		path := filepath.Join(dir, name)
		require.NoError(t, o.Save(path))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
	assert.Error(t, o.Save(filepath.Join(dir, "trace.unknown")))
}

func TestTraceObserverConcurrent(t *testing.T) {
	o := NewTraceObserver()
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(o, 10)
			_ = o.Trace("sq_err")
		}()
	}
	wg.Wait()
	assert.Equal(t, 40, o.Len())
}
