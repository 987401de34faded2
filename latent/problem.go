// Package latent solves for the whitened Fourier-domain latent field v that
// sets the per-feature prior variance of the weights.
//
// The field enters the model as ureal = G(v .* sqrt(kdiag) + bp), where bp
// carries the offset b on the zero-frequency coefficient. Its prior is N(0, I).
package latent

import (
	"math"

	"github.com/viterin/vek"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/fastasd/dual"
	"github.com/YuminosukeSato/fastasd/evidence"
	"github.com/YuminosukeSato/fastasd/fourier"
	"github.com/YuminosukeSato/fastasd/pkg/errors"
)

// Problem holds everything the latent objective depends on. It is immutable
// once built; all evaluation methods are pure.
type Problem struct {
	X      *mat.Dense
	Y      []float64
	Keep   []bool
	Cov    *fourier.Covariance
	Offset float64
	Dual   dual.Options
	Nsevar float64

	sqrtK []float64
	bp    []float64
}

// NewProblem validates the inputs and precomputes sqrt(kdiag) and the offset
// vector.
func NewProblem(x *mat.Dense, y []float64, keep []bool, cov *fourier.Covariance, offset float64,
	smooth *fourier.Covariance, nl dual.Nonlinearity, nsevar float64) (*Problem, error) {
	const op = "latent.NewProblem"
	_, p := x.Dims()
	if cov == nil || cov.Op.GridLen() != p {
		return nil, errors.NewConfigurationError(op, "cov", "data covariance must live on the feature grid")
	}
	if !(nsevar > 0) || math.IsInf(nsevar, 0) {
		return nil, errors.NewConfigurationError(op, "nsevar", "noise variance must be positive and finite")
	}
	pr := &Problem{
		X:      x,
		Y:      y,
		Keep:   keep,
		Cov:    cov,
		Offset: offset,
		Dual:   dual.Options{Keep: keep, Nonlinearity: nl, Smooth: smooth},
		Nsevar: nsevar,
		sqrtK:  cov.SqrtKdiag(),
		bp:     make([]float64, cov.Len()),
	}
	if dc := cov.DCIndex(); dc >= 0 {
		pr.bp[dc] = offset * math.Sqrt(float64(cov.NumGridPoints()))
	}
	return pr, nil
}

// Len is the dimension of v.
func (p *Problem) Len() int { return len(p.sqrtK) }

// Ureal maps the whitened field to the feature grid.
func (p *Problem) Ureal(v []float64) []float64 {
	coef := vek.Mul(v, p.sqrtK)
	vek.Add_Inplace(coef, p.bp)
	return p.Cov.Op.Apply(nil, coef)
}

// Estimate runs the dual solve at v.
func (p *Problem) Estimate(v []float64) (*dual.Result, error) {
	return dual.Estimate(p.Ureal(v), p.Nsevar, p.X, p.Y, p.Dual)
}

func (p *Problem) negLogLik(est *dual.Result) float64 {
	n := float64(len(p.Y))
	return 0.5*est.LogDetS + 0.5*vek.Dot(p.Y, est.Alpha) + 0.5*n*math.Log(2*math.Pi)
}

// NegLogLik is -log p(y | v). It returns evidence.Infeasible when the dual
// system cannot be solved at v.
func (p *Problem) NegLogLik(v []float64) float64 {
	est, err := p.Estimate(v)
	if err != nil {
		return evidence.Infeasible
	}
	return p.negLogLik(est)
}

// NegLogPost is -log p(y | v) - log N(v; 0, I) up to a constant. When grad is
// non-nil it receives the gradient.
func (p *Problem) NegLogPost(v, grad []float64) float64 {
	ureal := p.Ureal(v)
	est, err := dual.Estimate(ureal, p.Nsevar, p.X, p.Y, p.Dual)
	if err != nil {
		if grad != nil {
			for i := range grad {
				grad[i] = 0
			}
		}
		return evidence.Infeasible
	}
	f := p.negLogLik(est) + 0.5*vek.Dot(v, v)
	if grad == nil {
		return f
	}

	gs := p.gradS(est)
	gu := make([]float64, len(ureal))
	for j, u := range ureal {
		if (p.Keep != nil && !p.Keep[j]) || est.S[j] == 0 {
			continue
		}
		fu := p.Dual.Nonlinearity.Eval(u)
		sign := 1.0
		if fu < 0 {
			sign = -1
		}
		gu[j] = gs[j] * sign * p.Dual.Nonlinearity.Deriv(u) / (2 * est.S[j])
	}
	p.Cov.Op.Adjoint(grad, gu)
	vek.Mul_Inplace(grad, p.sqrtK)
	vek.Add_Inplace(grad, v)
	return f
}

// gradS is the gradient of the negative log likelihood with respect to
// s = sqrt(cdiag):
//
//	g_j = sum_i R_ij P_ij - (X'alpha)_j (R'alpha)_j
//
// with R = X diag(s) Sigma_f and P = S^{-1} X.
func (p *Problem) gradS(est *dual.Result) []float64 {
	n, np := p.X.Dims()
	sqrtCf := p.Dual.Smooth.SqrtKdiag()

	scaled := mat.DenseCopyOf(est.XCsBCf)
	for i := 0; i < n; i++ {
		vek.Mul_Inplace(scaled.RawRowView(i), sqrtCf)
	}
	r := p.Dual.Smooth.Op.ApplyRows(scaled)

	var pm mat.Dense
	if err := est.Chol.SolveTo(&pm, p.X); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return make([]float64, np)
		}
	}

	alpha := mat.NewVecDense(n, est.Alpha)
	var xa, ra mat.VecDense
	xa.MulVec(p.X.T(), alpha)
	ra.MulVec(r.T(), alpha)

	g := make([]float64, np)
	for i := 0; i < n; i++ {
		ri := r.RawRowView(i)
		pi := pm.RawRowView(i)
		for j := range g {
			g[j] += ri[j] * pi[j]
		}
	}
	for j := range g {
		g[j] -= xa.AtVec(j) * ra.AtVec(j)
	}
	return g
}
