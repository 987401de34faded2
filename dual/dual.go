// Package dual computes the MAP weights of the hierarchical model in dual
// (sample-indexed) form.
//
// The prior covariance of w is B B' with B = diag(s) Gf diag(sqrt(cf)), where
// s = sqrt(|f(ureal)|) on kept features and 0 elsewhere. Only the n x n matrix
// S = X B B' X' + nsevar*I is ever factorised.
package dual

import (
	"math"

	"github.com/viterin/vek"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/fastasd/fourier"
	"github.com/YuminosukeSato/fastasd/pkg/errors"
)

// Options are the fixed ingredients of Estimate.
type Options struct {
	// Keep selects the features in the model. nil keeps every feature.
	Keep []bool
	// Nonlinearity maps ureal to the variance multiplier.
	Nonlinearity Nonlinearity
	// Smooth is the smoothing covariance cf(1, len) on the feature grid.
	Smooth *fourier.Covariance
}

// Result is the outcome of a dual solve.
type Result struct {
	// W is the MAP weight vector, zero outside the keep mask.
	W []float64
	// CDiag is |f(ureal)| on kept features and 0 elsewhere.
	CDiag []float64
	// S holds sqrt(CDiag).
	S []float64
	// XCsBCf is X B, n x Smooth.Len().
	XCsBCf *mat.Dense
	// Alpha is S^{-1} y.
	Alpha []float64
	// LogDetS is log det(S).
	LogDetS float64
	// Chol factorises S.
	Chol *mat.Cholesky
}

// Estimate computes the MAP weights for the latent field ureal (length p).
// It is deterministic and has no side effects.
func Estimate(ureal []float64, nsevar float64, x *mat.Dense, y []float64, opt Options) (*Result, error) {
	xb, s, err := Design(ureal, x, opt)
	if err != nil {
		return nil, err
	}
	return solve(xb, s, nsevar, y, opt)
}

// Design returns X B (n x Smooth.Len()) and s = sqrt(|f(ureal)|) for the latent
// field ureal.
func Design(ureal []float64, x *mat.Dense, opt Options) (*mat.Dense, []float64, error) {
	const op = "dual.Design"
	_, p := x.Dims()
	if len(ureal) != p {
		return nil, nil, errors.NewDimensionError(op, p, len(ureal), 0)
	}
	if opt.Nonlinearity == nil {
		return nil, nil, errors.NewValueError(op, "nonlinearity is nil")
	}
	if err := validate(op, x, opt); err != nil {
		return nil, nil, err
	}
	cdiag := make([]float64, p)
	for j, u := range ureal {
		if opt.Keep == nil || opt.Keep[j] {
			cdiag[j] = opt.Nonlinearity.Eval(u)
		}
	}
	vek.Abs_Inplace(cdiag)
	s := vek.Sqrt(cdiag)
	return scaledDesign(s, x, opt), s, nil
}

// Project solves the dual problem for the given per-feature prior scale s
// (sqrt of cdiag). Entries of s outside the keep mask are ignored.
func Project(s []float64, nsevar float64, x *mat.Dense, y []float64, opt Options) (*Result, error) {
	const op = "dual.Project"
	_, p := x.Dims()
	if len(s) != p {
		return nil, errors.NewDimensionError(op, p, len(s), 1)
	}
	if err := validate(op, x, opt); err != nil {
		return nil, err
	}
	sk := append([]float64(nil), s...)
	if opt.Keep != nil {
		for j, k := range opt.Keep {
			if !k {
				sk[j] = 0
			}
		}
	}
	return solve(scaledDesign(sk, x, opt), sk, nsevar, y, opt)
}

func validate(op string, x *mat.Dense, opt Options) error {
	_, p := x.Dims()
	if opt.Keep != nil && len(opt.Keep) != p {
		return errors.NewDimensionError(op, p, len(opt.Keep), 1)
	}
	if opt.Smooth == nil || opt.Smooth.Op.GridLen() != p {
		return errors.NewConfigurationError(op, "smooth", "smoothing covariance must live on the feature grid")
	}
	return nil
}

// scaledDesign computes X diag(s) Gf diag(sqrt(cf)) row by row.
func scaledDesign(s []float64, x *mat.Dense, opt Options) *mat.Dense {
	n, p := x.Dims()
	xc := mat.NewDense(n, p, nil)
	xc.Apply(func(_, j int, v float64) float64 { return v * s[j] }, x)

	sqrtCf := opt.Smooth.SqrtKdiag()
	xb := opt.Smooth.Op.AdjointRows(xc)
	for i := 0; i < n; i++ {
		vek.Mul_Inplace(xb.RawRowView(i), sqrtCf)
	}
	return xb
}

func solve(xb *mat.Dense, s []float64, nsevar float64, y []float64, opt Options) (*Result, error) {
	const op = "dual.solve"
	n, _ := xb.Dims()
	if len(y) != n {
		return nil, errors.NewDimensionError(op, n, len(y), 0)
	}
	if !(nsevar > 0) || math.IsInf(nsevar, 0) {
		return nil, errors.NewConfigurationError(op, "nsevar", "noise variance must be positive and finite")
	}

	sm := mat.NewSymDense(n, nil)
	sm.SymOuterK(1, xb)
	for i := 0; i < n; i++ {
		sm.SetSym(i, i, sm.At(i, i)+nsevar)
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(sm); !ok {
		return nil, errors.NewModelError(op, "S is not positive definite", errors.ErrNotPositiveDefinite)
	}
	alpha := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(alpha, mat.NewVecDense(n, y)); err != nil {
		// 条件数の警告は解を返すので受け入れる
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, errors.NewModelError(op, "dual solve", err)
		}
	}

	// w = s .* Gf(sqrt(cf) .* (XB)' alpha)
	sqrtCf := opt.Smooth.SqrtKdiag()
	coef := mat.NewVecDense(len(sqrtCf), nil)
	coef.MulVec(xb.T(), alpha)
	vek.Mul_Inplace(coef.RawVector().Data, sqrtCf)
	w := opt.Smooth.Op.Apply(nil, coef.RawVector().Data)
	vek.Mul_Inplace(w, s)

	return &Result{
		W:       w,
		CDiag:   vek.Mul(s, s),
		S:       s,
		XCsBCf:  xb,
		Alpha:   alpha.RawVector().Data,
		LogDetS: chol.LogDet(),
		Chol:    &chol,
	}, nil
}

// Predict returns X w.
func Predict(x mat.Matrix, w []float64) []float64 {
	n, _ := x.Dims()
	out := mat.NewVecDense(n, nil)
	out.MulVec(x, mat.NewVecDense(len(w), w))
	return out.RawVector().Data
}
