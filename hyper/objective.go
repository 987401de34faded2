package hyper

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/fastasd/dual"
	"github.com/YuminosukeSato/fastasd/evidence"
	"github.com/YuminosukeSato/fastasd/fourier"
	"github.com/YuminosukeSato/fastasd/latent"
)

// Func is a negative log evidence over hyperparameters. It returns
// evidence.Infeasible where it cannot be evaluated.
type Func func(Params) float64

// Objective is the negative log evidence of the data as a function of the
// hyperparameters, with the whitened latent field V held fixed.
//
// Both covariances are reweighted on their current retained frequencies, so
// the dimension of V does not change while the objective is optimised.
type Objective struct {
	X            *mat.Dense
	Y            []float64
	Keep         []bool
	V            []float64
	Cov          *fourier.Covariance
	Smooth       *fourier.Covariance
	Nonlinearity dual.Nonlinearity
	MinScale     float64
}

// Value evaluates the objective at p.
func (o *Objective) Value(p Params) float64 {
	if !(p.Rho > 0) || !(p.Delta > 0) || !(p.Len > 0) || math.IsNaN(p.B) || math.IsNaN(p.LogNsevar) {
		return evidence.Infeasible
	}
	nsevar := p.Nsevar()
	if !(nsevar > 0) || math.IsInf(nsevar, 0) {
		return evidence.Infeasible
	}

	cov := o.Cov.Reweight(p.Rho, p.Delta, o.MinScale)
	smooth := o.Smooth.Reweight(1, p.Len, o.MinScale)
	pr, err := latent.NewProblem(o.X, o.Y, o.Keep, cov, p.B, smooth, o.Nonlinearity, nsevar)
	if err != nil {
		return evidence.Infeasible
	}
	xb, _, err := dual.Design(pr.Ureal(o.V), o.X, pr.Dual)
	if err != nil {
		return evidence.Infeasible
	}
	data, err := evidence.NewData(xb, o.Y)
	if err != nil {
		return evidence.Infeasible
	}
	res, err := evidence.Evaluate(evidence.Theta{Rho: 1, Nsevar: nsevar}, data, evidence.OrderValue)
	if err != nil {
		return evidence.Infeasible
	}
	return res.NegLogEv
}

// Func returns Value as a Func.
func (o *Objective) Func() Func { return o.Value }
