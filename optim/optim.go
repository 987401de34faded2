// Package optim は gonum/optimize を箱型制約付きで呼び出す薄いラッパーです。
//
// Bounds are enforced by a smooth per-coordinate reparameterisation, so every
// unconstrained gonum method can be used. Running out of budget is not an
// error: the last iterate is returned with Converged=false.
package optim

import (
	"fmt"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/fastasd/pkg/errors"
)

// Method names accepted by Settings.Method.
const (
	MethodLBFGS      = "lbfgs"
	MethodNelderMead = "nelder-mead"
	MethodNewton     = "newton"
)

// Problem is the objective handed to Minimize. Grad and Hess are optional;
// a missing gradient is approximated by central differences.
type Problem struct {
	Func func(x []float64) float64
	Grad func(grad, x []float64)
	Hess func(hess *mat.SymDense, x []float64)
}

// Settings configures one call of Minimize.
type Settings struct {
	Method                 string  `yaml:"method"`
	GradientTolerance      float64 `yaml:"gradient_tolerance"`
	MaxIterations          int     `yaml:"max_iterations"`
	MaxFunctionEvaluations int     `yaml:"max_function_evaluations"`
}

// DefaultSettings returns LBFGS with a moderate budget.
func DefaultSettings() Settings {
	return Settings{
		Method:                 MethodLBFGS,
		GradientTolerance:      1e-6,
		MaxIterations:          200,
		MaxFunctionEvaluations: 1000,
	}
}

// Validate reports unknown methods and negative budgets.
func (s Settings) Validate() error {
	switch s.Method {
	case MethodLBFGS, MethodNelderMead, MethodNewton:
	default:
		return errors.NewConfigurationError("optim.Settings", "method", fmt.Sprintf("unknown method %q", s.Method))
	}
	if s.MaxIterations < 0 || s.MaxFunctionEvaluations < 0 {
		return errors.NewConfigurationError("optim.Settings", "budget", "iteration and evaluation budgets must be non-negative")
	}
	if s.GradientTolerance < 0 {
		return errors.NewConfigurationError("optim.Settings", "gradient_tolerance", "must be non-negative")
	}
	return nil
}

// Result is the outcome of Minimize.
type Result struct {
	X               []float64
	F               float64
	Converged       bool
	Status          string
	Iterations      int
	FuncEvaluations int
}

// Minimize minimises p over the box [lb, ub] starting at x0. lb and ub may be
// nil (unbounded) and may contain infinities.
func Minimize(p Problem, x0, lb, ub []float64, s Settings) (*Result, error) {
	const op = "optim.Minimize"
	if p.Func == nil {
		return nil, errors.NewValueError(op, "objective function is nil")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.Method == MethodNewton && p.Hess == nil {
		return nil, errors.NewConfigurationError(op, "method", "newton requires a Hessian")
	}
	dim := len(x0)
	if dim == 0 {
		return nil, errors.NewValueError(op, "empty starting point")
	}
	b, err := newBox(lb, ub, dim)
	if err != nil {
		return nil, err
	}

	z0 := b.toFree(x0)
	x := make([]float64, dim)
	gx := make([]float64, dim)

	grad := p.Grad
	if grad == nil {
		grad = func(g, x []float64) {
			fd.Gradient(g, p.Func, x, &fd.Settings{Formula: fd.Central})
		}
	}

	problem := optimize.Problem{
		Func: func(z []float64) float64 {
			return p.Func(b.toBox(x, z))
		},
	}
	if s.Method != MethodNelderMead {
		problem.Grad = func(gz, z []float64) {
			b.toBox(x, z)
			grad(gx, x)
			b.chainGrad(gz, gx, z)
		}
	}
	if s.Method == MethodNewton {
		hx := mat.NewSymDense(dim, nil)
		problem.Hess = func(hz *mat.SymDense, z []float64) {
			b.toBox(x, z)
			grad(gx, x)
			p.Hess(hx, x)
			b.chainHess(hz, hx, gx, z)
		}
	}

	settings := &optimize.Settings{
		GradientThreshold: s.GradientTolerance,
		MajorIterations:   s.MaxIterations,
		FuncEvaluations:   s.MaxFunctionEvaluations,
	}

	var method optimize.Method
	switch s.Method {
	case MethodLBFGS:
		method = &optimize.LBFGS{}
	case MethodNelderMead:
		method = &optimize.NelderMead{}
	case MethodNewton:
		method = &optimize.Newton{}
	}

	res, err := optimize.Minimize(problem, z0, settings, method)
	if res == nil {
		return nil, errors.Wrap(err, op)
	}

	out := &Result{
		X:               b.toBox(make([]float64, dim), res.X),
		F:               res.F,
		Status:          res.Status.String(),
		Iterations:      res.Stats.MajorIterations,
		FuncEvaluations: res.Stats.FuncEvaluations,
	}
	out.Converged = err == nil && converged(res.Status)
	if !out.Converged {
		msg := out.Status
		if err != nil {
			msg = err.Error()
		}
		errors.Warn(errors.NewConvergenceWarning(s.Method, out.Iterations, msg))
	}
	return out, nil
}

func converged(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.FunctionThreshold, optimize.FunctionConvergence,
		optimize.GradientThreshold, optimize.StepConvergence, optimize.MethodConverge:
		return true
	}
	return false
}
