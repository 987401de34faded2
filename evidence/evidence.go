// Package evidence は双対形式のリッジ回帰（ガウス過程）のエビデンスを計算します。
//
// With prior w ~ N(0, rho*diag(PriorDiag)) and noise N(0, nsevar*I) the
// marginal covariance of y is M = rho*K + nsevar*I, where K = X diag(PriorDiag) X'
// is n x n. Everything except the posterior (order 4) is computed from a single
// symmetric eigendecomposition of M.
package evidence

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/fastasd/pkg/errors"
)

// Infeasible is the objective value reported by composed objectives for
// parameters at which the evidence cannot be evaluated.
var Infeasible = math.Inf(1)

// Order selects how much Evaluate computes.
type Order int

const (
	// OrderValue computes the negative log evidence only.
	OrderValue Order = iota + 1
	// OrderGradient adds the gradient.
	OrderGradient
	// OrderHessian adds the Hessian.
	OrderHessian
	// OrderPosterior adds the primal posterior mean and covariance.
	OrderPosterior
)

// Theta holds the ridge hyperparameters.
type Theta struct {
	Rho    float64
	Nsevar float64
}

// Vec returns theta as (rho, nsevar).
func (t Theta) Vec() []float64 { return []float64{t.Rho, t.Nsevar} }

// Data holds the sufficient statistics of the dual problem. It is immutable.
type Data struct {
	// K is the n x n prior gram X diag(PriorDiag) X'.
	K *mat.SymDense
	// Y is the response.
	Y  []float64
	YY float64
	N  int
	// X is the n x p design. Only the posterior needs it.
	X *mat.Dense
	// PriorDiag scales the prior variance per feature. nil means all ones.
	PriorDiag []float64
}

// NewData builds the dual statistics from a design x (n x p) and response y.
func NewData(x *mat.Dense, y []float64) (*Data, error) {
	return NewDataWithPrior(x, y, nil)
}

// NewDataWithPrior is NewData with a per-feature prior variance scale.
func NewDataWithPrior(x *mat.Dense, y []float64, priorDiag []float64) (*Data, error) {
	const op = "evidence.NewData"
	n, p := x.Dims()
	if n == 0 || p == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if len(y) != n {
		return nil, errors.NewDimensionError(op, n, len(y), 0)
	}
	if priorDiag != nil && len(priorDiag) != p {
		return nil, errors.NewDimensionError(op, p, len(priorDiag), 1)
	}

	k := mat.NewSymDense(n, nil)
	if priorDiag == nil {
		k.SymOuterK(1, x)
	} else {
		xs := mat.NewDense(n, p, nil)
		xs.Apply(func(i, j int, v float64) float64 {
			return v * math.Sqrt(priorDiag[j])
		}, x)
		k.SymOuterK(1, xs)
	}
	return &Data{
		K:         k,
		Y:         append([]float64(nil), y...),
		YY:        floats.Dot(y, y),
		N:         n,
		X:         x,
		PriorDiag: priorDiag,
	}, nil
}

// Result holds the outputs of Evaluate up to the requested order.
type Result struct {
	NegLogEv float64
	// LogDet is log det(M), the sum of the log eigenvalues.
	LogDet float64
	// Grad is d(NegLogEv)/d(rho, nsevar).
	Grad []float64
	// Hess is the 2 x 2 Hessian of NegLogEv in (rho, nsevar).
	Hess *mat.SymDense
	// MuPost is the posterior mean of w.
	MuPost []float64
	// LPost is the posterior covariance of w.
	LPost *mat.SymDense
}

// Evaluate computes the negative log evidence of data at theta and, depending
// on order, its gradient, Hessian and the posterior over w.
func Evaluate(theta Theta, data *Data, order Order) (*Result, error) {
	const op = "evidence.Evaluate"
	if order < OrderValue || order > OrderPosterior {
		return nil, errors.NewValueError(op, fmt.Sprintf("order must be in [1, 4], got %d", order))
	}
	if !(theta.Rho > 0) || math.IsInf(theta.Rho, 0) {
		return nil, errors.NewValidationError("rho", "must be positive and finite", theta.Rho)
	}
	if !(theta.Nsevar > 0) || math.IsInf(theta.Nsevar, 0) {
		return nil, errors.NewValidationError("nsevar", "must be positive and finite", theta.Nsevar)
	}

	n := data.N
	m := mat.NewSymDense(n, nil)
	m.ScaleSym(theta.Rho, data.K)
	for i := 0; i < n; i++ {
		m.SetSym(i, i, m.At(i, i)+theta.Nsevar)
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(m, true); !ok {
		return nil, errors.NewModelError(op, "eigendecomposition failed", errors.ErrNotPositiveDefinite)
	}
	lambda := eig.Values(nil)
	if lambda[0] <= 0 {
		return nil, errors.NewModelError(op, fmt.Sprintf("M is not positive definite (min eigenvalue %g)", lambda[0]),
			errors.ErrNotPositiveDefinite)
	}
	var q mat.Dense
	eig.VectorsTo(&q)

	// 固有基底での y
	yt := make([]float64, n)
	mat.NewVecDense(n, yt).MulVec(q.T(), mat.NewVecDense(n, data.Y))

	res := &Result{}
	alpha := make([]float64, n) // M^{-1} y in the eigenbasis
	quad := 0.0
	for i, l := range lambda {
		res.LogDet += math.Log(l)
		alpha[i] = yt[i] / l
		quad += yt[i] * alpha[i]
	}
	res.NegLogEv = 0.5*res.LogDet + 0.5*quad + 0.5*float64(n)*math.Log(2*math.Pi)
	if err := errors.CheckScalar(op, res.NegLogEv, 0); err != nil {
		return nil, err
	}
	if order < OrderGradient {
		return res, nil
	}

	// M and K share eigenvectors, so K is diagonal in this basis.
	kappa := make([]float64, n)
	for i, l := range lambda {
		kappa[i] = math.Max((l-theta.Nsevar)/theta.Rho, 0)
	}

	var gRho, gNse float64
	for i, l := range lambda {
		a2 := alpha[i] * alpha[i]
		gRho += -0.5*kappa[i]/l + 0.5*kappa[i]*a2
		gNse += -0.5/l + 0.5*a2
	}
	res.Grad = []float64{-gRho, -gNse}
	if order < OrderHessian {
		return res, nil
	}

	var hrr, hrn, hnn float64
	for i, l := range lambda {
		a2 := alpha[i] * alpha[i]
		k := kappa[i]
		hrr += 0.5*k*k/(l*l) - k*k*a2/l
		hrn += 0.5*k/(l*l) - k*a2/l
		hnn += 0.5/(l*l) - a2/l
	}
	res.Hess = mat.NewSymDense(2, []float64{-hrr, -hrn, -hrn, -hnn})
	if order < OrderPosterior {
		return res, nil
	}

	if err := posterior(theta, data, res); err != nil {
		return nil, err
	}
	return res, nil
}

// posterior computes the primal posterior
//
//	LPost  = inv(X'X/nsevar + diag(1/(rho*PriorDiag)))
//	MuPost = LPost X'y / nsevar
//
// which costs O(p^3); callers restrict X to a small feature set.
func posterior(theta Theta, data *Data, res *Result) error {
	const op = "evidence.posterior"
	if data.X == nil {
		return errors.NewValueError(op, "posterior requires the design matrix")
	}
	_, p := data.X.Dims()

	prec := make([]float64, p)
	for j := range prec {
		d := 1.0
		if data.PriorDiag != nil {
			d = data.PriorDiag[j]
		}
		prec[j] = 1 / (theta.Rho * d)
	}
	errors.ClampInf(prec, 1/theta.Nsevar)

	a := mat.NewSymDense(p, nil)
	a.SymOuterK(1/theta.Nsevar, data.X.T())
	for j, pj := range prec {
		a.SetSym(j, j, a.At(j, j)+pj)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return errors.NewModelError(op, "posterior precision is not positive definite", errors.ErrNotPositiveDefinite)
	}
	lpost := mat.NewSymDense(p, nil)
	if err := chol.InverseTo(lpost); err != nil {
		return errors.NewModelError(op, "posterior covariance", err)
	}

	xy := mat.NewVecDense(p, nil)
	xy.MulVec(data.X.T(), mat.NewVecDense(data.N, data.Y))
	mu := mat.NewVecDense(p, nil)
	mu.MulVec(lpost, xy)
	mu.ScaleVec(1/theta.Nsevar, mu)

	res.LPost = lpost
	res.MuPost = mu.RawVector().Data
	return nil
}
