package fourier

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/fastasd/pkg/errors"
)

// Covariance is an ASD covariance, diagonal in the truncated Fourier basis.
type Covariance struct {
	// Rho is the marginal variance.
	Rho float64
	// Scale is the effective length scale, max(scale, minScale).
	Scale float64
	// LogKdiag is the log of the covariance diagonal, one entry per retained frequency.
	LogKdiag []float64
	// FreqNorms holds sum_d (2 pi w_d / nc_d)^2 per retained frequency.
	FreqNorms []float64
	// DCterm marks the zero-frequency coefficient.
	DCterm []bool
	// Op maps retained coefficients to the grid.
	Op *Operator

	ndims   int
	dcIndex int
}

// BuildOption customises Build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	pad []int
}

// WithPad sets the circular padding per axis. The default is ceil(4*minScale)
// on every non-trivial axis.
func WithPad(pad ...int) BuildOption {
	return func(c *buildConfig) {
		c.pad = append([]int(nil), pad...)
	}
}

// DefaultPad is the per-axis circular padding used when WithPad is not given.
func DefaultPad(minScale float64) int {
	return int(math.Ceil(4 * minScale))
}

// Build constructs the ASD covariance for a 1-D or 2-D grid.
//
// The spectral density is separable squared-exponential,
//
//	k(w) = rho * (sqrt(2 pi) l)^D * exp(-l^2 |w|^2 / 2),  l = max(scale, minScale),
//
// and frequencies with k(w) < max(k)/condThreshold are dropped. A
// condThreshold of +Inf keeps every frequency. Because truncation depends on
// scale, the number of retained coefficients varies between calls.
func Build(rho, scale float64, dims []int, minScale, condThreshold float64, opts ...BuildOption) (*Covariance, error) {
	const op = "fourier.Build"
	if len(dims) < 1 || len(dims) > 2 {
		return nil, errors.NewConfigurationError(op, "dims", fmt.Sprintf("expected 1 or 2 grid axes, got %d", len(dims)))
	}
	for _, d := range dims {
		if d < 1 {
			return nil, errors.NewConfigurationError(op, "dims", fmt.Sprintf("grid sizes must be positive, got %v", dims))
		}
	}
	if !(rho > 0) || math.IsInf(rho, 0) {
		return nil, errors.NewValidationError("rho", "must be positive and finite", rho)
	}
	if !(scale > 0) || math.IsInf(scale, 0) {
		return nil, errors.NewValidationError("scale", "must be positive and finite", scale)
	}
	if math.IsNaN(condThreshold) {
		return nil, errors.NewConfigurationError(op, "condThreshold", "must not be NaN")
	}

	cfg := buildConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	var grid, nc [2]int
	grid[1], nc[1] = 1, 1
	for a, d := range dims {
		pad := DefaultPad(minScale)
		if len(cfg.pad) > a {
			pad = cfg.pad[a]
		}
		if pad < 0 {
			return nil, errors.NewConfigurationError(op, "pad", fmt.Sprintf("padding must be non-negative, got %d", pad))
		}
		grid[a], nc[a] = d, d+pad
	}

	l := math.Max(scale, minScale)
	cutoff := 2 * math.Log(condThreshold)
	f0, f1 := Frequencies(nc[0]), Frequencies(nc[1])

	c := &Covariance{Rho: rho, Scale: l, ndims: len(dims), dcIndex: -1}
	var keep []int
	for i, w0 := range f0 {
		a0 := 2 * math.Pi * w0 / float64(nc[0])
		for j, w1 := range f1 {
			a1 := 2 * math.Pi * w1 / float64(nc[1])
			nrm := a0*a0 + a1*a1
			if l*l*nrm > cutoff {
				continue
			}
			keep = append(keep, i*nc[1]+j)
			c.FreqNorms = append(c.FreqNorms, nrm)
			c.DCterm = append(c.DCterm, nrm == 0)
		}
	}
	if len(keep) == 0 {
		return nil, errors.NewConfigurationError(op, "condThreshold",
			fmt.Sprintf("threshold %g retains no frequencies", condThreshold))
	}
	for k, dc := range c.DCterm {
		if dc {
			c.dcIndex = k
		}
	}

	c.Op = newOperator(grid, nc, keep)
	c.LogKdiag = logSpectrum(rho, l, c.ndims, c.FreqNorms)
	return c, nil
}

func logSpectrum(rho, l float64, ndims int, freqNorms []float64) []float64 {
	out := make([]float64, len(freqNorms))
	base := math.Log(rho) + float64(ndims)*math.Log(math.Sqrt(2*math.Pi)*l)
	for k, nrm := range freqNorms {
		out[k] = base - 0.5*l*l*nrm
	}
	return out
}

// Reweight re-evaluates the diagonal for new (rho, scale) on the same retained
// frequencies and operator. The truncation is not recomputed.
func (c *Covariance) Reweight(rho, scale, minScale float64) *Covariance {
	l := math.Max(scale, minScale)
	out := *c
	out.Rho = rho
	out.Scale = l
	out.LogKdiag = logSpectrum(rho, l, c.ndims, c.FreqNorms)
	return &out
}

// Len is the number of retained coefficients.
func (c *Covariance) Len() int { return len(c.LogKdiag) }

// DCIndex is the position of the zero-frequency coefficient.
func (c *Covariance) DCIndex() int { return c.dcIndex }

// NumGridPoints is the number of circular grid points, prod(nc).
func (c *Covariance) NumGridPoints() int { return c.Op.nc[0] * c.Op.nc[1] }

// SqrtKdiag returns sqrt(kdiag).
func (c *Covariance) SqrtKdiag() []float64 {
	out := make([]float64, len(c.LogKdiag))
	for i, lk := range c.LogKdiag {
		out[i] = math.Exp(0.5 * lk)
	}
	return out
}

// InvKdiag returns 1/kdiag with infinite entries clamped to the largest finite one.
// The whitened latent field never needs it; it serves callers that work with
// unwhitened coefficients, whose prior precision it is.
func (c *Covariance) InvKdiag() []float64 {
	out := make([]float64, len(c.LogKdiag))
	for i, lk := range c.LogKdiag {
		out[i] = math.Exp(-lk)
	}
	return errors.ClampInf(out, math.MaxFloat64)
}
