// Package linear provides the ordinary least squares and fixed-penalty ridge
// baselines that ASD receptive-field estimates are compared against.
package linear

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/fastasd/core/model"
	"github.com/YuminosukeSato/fastasd/core/parallel"
	"github.com/YuminosukeSato/fastasd/metrics"
	"github.com/YuminosukeSato/fastasd/pkg/errors"
)

const modelName = "LinearRegression"

var _ model.Regressor = (*Regression)(nil)

// Regression は (X^T X + alpha I) w = X^T y を解く線形回帰モデル
type Regression struct {
	state *model.StateManager

	fitIntercept bool
	alpha        float64
	tol          float64

	coef      []float64
	intercept float64
	// Rank is the numerical rank of the centred design.
	Rank int
	// Singular holds the singular values of the centred design, descending.
	Singular []float64
}

// NewRegression creates an unfitted model. The default is OLS with an
// intercept.
func NewRegression(opts ...Option) *Regression {
	lr := &Regression{
		state:        model.NewStateManager(),
		fitIntercept: true,
		tol:          1e-10,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// NewRidge is NewRegression with WithAlpha(alpha).
func NewRidge(alpha float64, opts ...Option) *Regression {
	return NewRegression(append([]Option{WithAlpha(alpha)}, opts...)...)
}

// Fit solves the normal equations by Cholesky, adding diagonal jitter when
// X^T X + alpha I is not positive definite.
func (lr *Regression) Fit(X mat.Matrix, y []float64) error {
	const op = "Regression.Fit"
	lr.state.Reset()
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if len(y) != n {
		return errors.NewDimensionError(op, n, len(y), 0)
	}
	if lr.alpha < 0 {
		return errors.NewConfigurationError(op, "alpha", "must be non-negative")
	}

	xc := mat.DenseCopyOf(X)
	yc := append([]float64(nil), y...)
	xMean := make([]float64, p)
	var yMean float64
	if lr.fitIntercept {
		for j := 0; j < p; j++ {
			xMean[j] = floats.Sum(mat.Col(nil, j, xc)) / float64(n)
		}
		yMean = floats.Sum(yc) / float64(n)
		const parallelThreshold = 1000
		parallel.ParallelizeWithThreshold(n, parallelThreshold, func(start, end int) {
			for i := start; i < end; i++ {
				floats.Sub(xc.RawRowView(i), xMean)
			}
		})
		floats.AddConst(-yMean, yc)
	}

	var svd mat.SVD
	if !svd.Factorize(xc, mat.SVDNone) {
		return errors.NewModelError(op, "SVD factorization failed", nil)
	}
	lr.Singular = svd.Values(nil)
	lr.Rank = 0
	for _, s := range lr.Singular {
		if s > lr.tol*lr.Singular[0] {
			lr.Rank++
		}
	}

	a := mat.NewSymDense(p, nil)
	a.SymOuterK(1, xc.T())
	for j := 0; j < p; j++ {
		a.SetSym(j, j, a.At(j, j)+lr.alpha)
	}
	xty := mat.NewVecDense(p, nil)
	xty.MulVec(xc.T(), mat.NewVecDense(n, yc))

	var chol mat.Cholesky
	if !chol.Factorize(a) {
		// 特異な場合は対角に微小値を加えて再試行
		jitter := 1e-10 * (mat.Trace(a)/float64(p) + 1)
		for j := 0; j < p; j++ {
			a.SetSym(j, j, a.At(j, j)+jitter)
		}
		if !chol.Factorize(a) {
			return errors.NewModelError(op, "normal equations not positive definite", errors.ErrSingularMatrix)
		}
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, xty); err != nil {
		return errors.NewModelError(op, "cholesky solve failed", err)
	}

	lr.coef = mat.Col(nil, 0, &w)
	lr.intercept = yMean - floats.Dot(xMean, lr.coef)
	lr.state.SetDimensions(p, n)
	lr.state.SetFitted()
	return nil
}

// Predict makes predictions for input data
func (lr *Regression) Predict(X mat.Matrix) ([]float64, error) {
	if err := lr.state.RequireFitted(modelName, "Predict"); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if nf, _ := lr.state.GetDimensions(); p != nf {
		return nil, errors.NewDimensionError("Regression.Predict", nf, p, 1)
	}
	out := mat.NewVecDense(n, nil)
	out.MulVec(X, mat.NewVecDense(p, lr.coef))
	yhat := out.RawVector().Data
	floats.AddConst(lr.intercept, yhat)
	return yhat, nil
}

// Score returns the coefficient of determination R² of the prediction
func (lr *Regression) Score(X mat.Matrix, y []float64) (float64, error) {
	yhat, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, yhat)
}

// Weights returns a copy of the coefficients, or nil before Fit.
func (lr *Regression) Weights() []float64 {
	if !lr.state.IsFitted() {
		return nil
	}
	return append([]float64(nil), lr.coef...)
}

// Intercept returns the fitted intercept.
func (lr *Regression) Intercept() float64 { return lr.intercept }

// IsFitted returns whether the model has been fitted
func (lr *Regression) IsFitted() bool { return lr.state.IsFitted() }
