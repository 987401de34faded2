// Package prior provides truncated log-prior densities for hyperparameters.
package prior

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/fastasd/pkg/errors"
)

// Density is a log-density on the real line.
type Density interface {
	LogDensity(x float64) float64
}

// Sampler draws from a density.
type Sampler interface {
	Rand(rng *rand.Rand) float64
}

// distribution is the part of distuv shared by Gamma and Normal.
type distribution interface {
	LogProb(x float64) float64
	CDF(x float64) float64
	Quantile(p float64) float64
}

type truncated struct {
	dist   distribution
	lb, ub float64
	logZ   float64
	cdfLo  float64
	cdfHi  float64
}

func newTruncated(d distribution, lb, ub float64) (truncated, error) {
	if math.IsNaN(lb) || math.IsNaN(ub) || lb >= ub {
		return truncated{}, errors.NewConfigurationError("prior", "bounds", fmt.Sprintf("invalid bounds [%g, %g]", lb, ub))
	}
	lo, hi := 0.0, 1.0
	if !math.IsInf(lb, -1) {
		lo = d.CDF(lb)
	}
	if !math.IsInf(ub, 1) {
		hi = d.CDF(ub)
	}
	if !(hi > lo) {
		return truncated{}, errors.NewConfigurationError("prior", "bounds",
			fmt.Sprintf("no probability mass on [%g, %g]", lb, ub))
	}
	return truncated{dist: d, lb: lb, ub: ub, logZ: math.Log(hi - lo), cdfLo: lo, cdfHi: hi}, nil
}

func (t truncated) LogDensity(x float64) float64 {
	if x < t.lb || x > t.ub || math.IsNaN(x) {
		return math.Inf(-1)
	}
	return t.dist.LogProb(x) - t.logZ
}

func (t truncated) Rand(rng *rand.Rand) float64 {
	u := t.cdfLo + rng.Float64()*(t.cdfHi-t.cdfLo)
	return errors.ClipValue(t.dist.Quantile(u), t.lb, t.ub)
}

// Gamma is a gamma density given by its mean and standard deviation,
// truncated to [LB, UB].
type Gamma struct {
	truncated
	Mean, Std float64
}

// NewGamma returns a truncated gamma prior. Shape is (mean/std)^2 and rate
// mean/std^2.
func NewGamma(mean, std, lb, ub float64) (*Gamma, error) {
	if !(mean > 0) || !(std > 0) {
		return nil, errors.NewConfigurationError("prior.NewGamma", "mean/std",
			fmt.Sprintf("mean and std must be positive, got %g and %g", mean, std))
	}
	d := distuv.Gamma{Alpha: (mean / std) * (mean / std), Beta: mean / (std * std)}
	t, err := newTruncated(d, math.Max(lb, 0), ub)
	if err != nil {
		return nil, err
	}
	return &Gamma{truncated: t, Mean: mean, Std: std}, nil
}

// Gaussian is a normal density truncated to [LB, UB].
type Gaussian struct {
	truncated
	Mean, Std float64
}

// NewGaussian returns a truncated Gaussian prior.
func NewGaussian(mean, std, lb, ub float64) (*Gaussian, error) {
	if !(std > 0) {
		return nil, errors.NewConfigurationError("prior.NewGaussian", "std", fmt.Sprintf("must be positive, got %g", std))
	}
	t, err := newTruncated(distuv.Normal{Mu: mean, Sigma: std}, lb, ub)
	if err != nil {
		return nil, err
	}
	return &Gaussian{truncated: t, Mean: mean, Std: std}, nil
}

// Flat is the improper uniform density on [LB, UB].
type Flat struct {
	LB, UB float64
}

// LogDensity is 0 inside the bounds and -Inf outside.
func (f Flat) LogDensity(x float64) float64 {
	if x < f.LB || x > f.UB || math.IsNaN(x) {
		return math.Inf(-1)
	}
	return 0
}

// Spec describes a prior in configuration files.
type Spec struct {
	Kind string  `yaml:"kind"` // gamma, gaussian or flat
	Mean float64 `yaml:"mean"`
	Std  float64 `yaml:"std"`
}

// New builds the density described by s on [lb, ub].
func (s Spec) New(lb, ub float64) (Density, error) {
	switch s.Kind {
	case "gamma":
		return NewGamma(s.Mean, s.Std, lb, ub)
	case "gaussian":
		return NewGaussian(s.Mean, s.Std, lb, ub)
	case "", "flat":
		return Flat{LB: lb, UB: ub}, nil
	default:
		return nil, errors.NewConfigurationError("prior.Spec", "kind", fmt.Sprintf("unknown prior %q", s.Kind))
	}
}
