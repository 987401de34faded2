package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/fastasd/pkg/errors"
)

// SyntheticConfig describes a simulated receptive-field experiment.
type SyntheticConfig struct {
	N      int     `yaml:"n"`
	Dims   []int   `yaml:"dims"`
	Nsevar float64 `yaml:"nsevar"`
	// Bumps is the number of Gaussian bumps in the true weights.
	Bumps int `yaml:"bumps"`
	// Width is the bump standard deviation in grid units.
	Width float64 `yaml:"width"`
	// Amplitude is the peak magnitude of each bump; signs alternate.
	Amplitude float64 `yaml:"amplitude"`
}

// DefaultSyntheticConfig is a 50 x 64 problem on an 8 x 8 grid.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{N: 50, Dims: []int{8, 8}, Nsevar: 0.01, Bumps: 2, Width: 1, Amplitude: 1}
}

// sparsityCutoff zeroes weights below this fraction of the peak.
const sparsityCutoff = 1e-2

// Synthetic draws a dataset y = X wTrue + N(0, Nsevar) with X ~ N(0, 1) and a
// smooth, sparse wTrue built from Gaussian bumps on the grid.
func Synthetic(cfg SyntheticConfig, rng *rand.Rand) (*Dataset, []float64, error) {
	const op = "dataset.Synthetic"
	if cfg.N < 1 {
		return nil, nil, errors.NewConfigurationError(op, "n", fmt.Sprintf("need at least one sample, got %d", cfg.N))
	}
	if !(cfg.Nsevar > 0) {
		return nil, nil, errors.NewConfigurationError(op, "nsevar", "noise variance must be positive")
	}
	if cfg.Bumps < 1 || !(cfg.Width > 0) {
		return nil, nil, errors.NewConfigurationError(op, "bumps", "need at least one bump of positive width")
	}
	p := 1
	for _, d := range cfg.Dims {
		p *= d
	}
	if err := checkDims(op, cfg.Dims, p); err != nil {
		return nil, nil, err
	}

	w := trueWeights(cfg, p, rng)

	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	x := mat.NewDense(cfg.N, p, nil)
	raw := x.RawMatrix().Data
	for i := range raw {
		raw[i] = norm.Rand()
	}
	noise := distuv.Normal{Mu: 0, Sigma: math.Sqrt(cfg.Nsevar), Src: rng}
	y := make([]float64, cfg.N)
	for i := range y {
		y[i] = floats.Dot(x.RawRowView(i), w) + noise.Rand()
	}

	d, err := New(x, y, cfg.Dims)
	if err != nil {
		return nil, nil, err
	}
	return d, w, nil
}

func trueWeights(cfg SyntheticConfig, p int, rng *rand.Rand) []float64 {
	d0 := cfg.Dims[0]
	d1 := 1
	if len(cfg.Dims) == 2 {
		d1 = cfg.Dims[1]
	}

	w := make([]float64, p)
	for k := 0; k < cfg.Bumps; k++ {
		c0 := rng.Float64() * float64(d0-1)
		c1 := rng.Float64() * float64(d1-1)
		amp := cfg.Amplitude
		if k%2 == 1 {
			amp = -amp
		}
		// 格子は行優先 (axis 0, axis 1)
		for i := 0; i < d0; i++ {
			for j := 0; j < d1; j++ {
				r2 := (float64(i)-c0)*(float64(i)-c0) + (float64(j)-c1)*(float64(j)-c1)
				w[i*d1+j] += amp * math.Exp(-0.5*r2/(cfg.Width*cfg.Width))
			}
		}
	}

	peak := math.Max(floats.Max(w), -floats.Min(w))
	for i, v := range w {
		if math.Abs(v) < sparsityCutoff*peak {
			w[i] = 0
		}
	}
	return w
}
