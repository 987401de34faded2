// Package hyper updates the ASD hyperparameters with the latent field held
// fixed, either by box-constrained optimisation of the evidence or by one
// slice-sampling sweep.
package hyper

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/fastasd/pkg/errors"
)

// NumParams is the number of hyperparameters.
const NumParams = 5

// Parameter indices in Params.Vec order.
const (
	IdxRho = iota
	IdxDelta
	IdxB
	IdxLogNsevar
	IdxLen
)

// ParamNames lists the hyperparameters in Params.Vec order.
var ParamNames = [NumParams]string{"rho", "delta", "b", "log_nsevar", "len"}

// Params is one hyperparameter setting.
type Params struct {
	// Rho is the marginal variance of the latent field.
	Rho float64 `yaml:"rho"`
	// Delta is the length scale of the latent field.
	Delta float64 `yaml:"delta"`
	// B is the offset of the latent field.
	B float64 `yaml:"b"`
	// LogNsevar is the log noise variance.
	LogNsevar float64 `yaml:"log_nsevar"`
	// Len is the length scale of the smoothing covariance.
	Len float64 `yaml:"len"`
}

// Nsevar returns exp(LogNsevar).
func (p Params) Nsevar() float64 { return math.Exp(p.LogNsevar) }

// Vec returns the parameters as a slice.
func (p Params) Vec() []float64 {
	return []float64{p.Rho, p.Delta, p.B, p.LogNsevar, p.Len}
}

// ParamsFromVec is the inverse of Vec.
func ParamsFromVec(v []float64) Params {
	return Params{Rho: v[IdxRho], Delta: v[IdxDelta], B: v[IdxB], LogNsevar: v[IdxLogNsevar], Len: v[IdxLen]}
}

// Mask selects the hyperparameters to estimate. The others are carried over.
type Mask struct {
	Rho       bool `yaml:"rho"`
	Delta     bool `yaml:"delta"`
	B         bool `yaml:"b"`
	LogNsevar bool `yaml:"log_nsevar"`
	Len       bool `yaml:"len"`
}

// AllMask estimates every hyperparameter.
func AllMask() Mask { return Mask{Rho: true, Delta: true, B: true, LogNsevar: true, Len: true} }

// Vec returns the mask in Params.Vec order.
func (m Mask) Vec() []bool { return []bool{m.Rho, m.Delta, m.B, m.LogNsevar, m.Len} }

// Indices returns the estimated positions in Params.Vec order.
func (m Mask) Indices() []int {
	var idx []int
	for i, on := range m.Vec() {
		if on {
			idx = append(idx, i)
		}
	}
	return idx
}

// Bounds is the global box for the hyperparameters.
type Bounds struct {
	LB Params `yaml:"lb"`
	UB Params `yaml:"ub"`
}

// DefaultBounds returns loose bounds suited to standardised data on a grid
// whose largest axis has maxDim points.
func DefaultBounds(maxDim int) Bounds {
	return Bounds{
		LB: Params{Rho: 1e-3, Delta: 0.5, B: -10, LogNsevar: math.Log(1e-6), Len: 0.5},
		UB: Params{Rho: 1e3, Delta: float64(maxDim), B: 10, LogNsevar: math.Log(1e3), Len: float64(maxDim)},
	}
}

// Validate checks that the box is well formed and that the variance and
// length-scale parameters stay positive inside it.
func (b Bounds) Validate() error {
	const op = "hyper.Bounds"
	lb, ub := b.LB.Vec(), b.UB.Vec()
	for i := range lb {
		if math.IsNaN(lb[i]) || math.IsNaN(ub[i]) || lb[i] > ub[i] {
			return errors.NewConfigurationError(op, ParamNames[i], fmt.Sprintf("invalid bounds [%g, %g]", lb[i], ub[i]))
		}
	}
	for _, i := range []int{IdxRho, IdxDelta, IdxLen} {
		if !(lb[i] > 0) {
			return errors.NewConfigurationError(op, ParamNames[i], fmt.Sprintf("lower bound must be positive, got %g", lb[i]))
		}
	}
	if math.IsInf(lb[IdxLogNsevar], 0) || math.IsInf(ub[IdxLogNsevar], 0) {
		return errors.NewConfigurationError(op, "log_nsevar", "bounds must be finite so that nsevar stays positive")
	}
	if !(math.Exp(lb[IdxLogNsevar]) > 0) {
		return errors.NewConfigurationError(op, "log_nsevar", fmt.Sprintf("lower bound %g gives a non-positive nsevar", lb[IdxLogNsevar]))
	}
	return nil
}

// Contains reports whether p lies in the box.
func (b Bounds) Contains(p Params) bool {
	lb, ub, v := b.LB.Vec(), b.UB.Vec(), p.Vec()
	for i := range v {
		if v[i] < lb[i] || v[i] > ub[i] {
			return false
		}
	}
	return true
}

// Clip projects p into the box.
func (b Bounds) Clip(p Params) Params {
	lb, ub, v := b.LB.Vec(), b.UB.Vec(), p.Vec()
	for i := range v {
		v[i] = errors.ClipValue(v[i], lb[i], ub[i])
	}
	return ParamsFromVec(v)
}
