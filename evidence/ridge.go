package evidence

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/fastasd/optim"
	"github.com/YuminosukeSato/fastasd/pkg/errors"
)

// RidgeStart is the usual FitRidge starting point for p features:
// rho = var(y)/p and nsevar = var(y)/2.
func RidgeStart(y []float64, p int) Theta {
	v := math.NaN()
	if len(y) > 1 {
		v = stat.Variance(y, nil)
	}
	if !(v > 0) && len(y) > 0 {
		v = floats.Dot(y, y) / float64(len(y))
	}
	if !(v > 0) {
		v = 1
	}
	return Theta{Rho: v / float64(max(p, 1)), Nsevar: v / 2}
}

// FitRidge maximises the ridge evidence over (rho, nsevar), starting at
// theta0. The search runs in log space with the Newton method unless settings
// names another method.
func FitRidge(data *Data, theta0 Theta, settings optim.Settings) (Theta, error) {
	const op = "evidence.FitRidge"
	if !(theta0.Rho > 0) || !(theta0.Nsevar > 0) {
		return Theta{}, errors.NewValidationError("theta0", "rho and nsevar must be positive", theta0)
	}
	if settings.Method == "" {
		settings.Method = optim.MethodNewton
	}

	theta := func(x []float64) Theta {
		return Theta{Rho: math.Exp(x[0]), Nsevar: math.Exp(x[1])}
	}
	// 直近の評価を使い回す
	var lastX []float64
	var last *Result
	eval := func(x []float64) *Result {
		if last != nil && lastX[0] == x[0] && lastX[1] == x[1] {
			return last
		}
		r, err := Evaluate(theta(x), data, OrderHessian)
		if err != nil {
			return nil
		}
		lastX, last = append(lastX[:0], x...), r
		return r
	}

	problem := optim.Problem{
		Func: func(x []float64) float64 {
			r := eval(x)
			if r == nil {
				return Infeasible
			}
			return r.NegLogEv
		},
		Grad: func(g, x []float64) {
			r := eval(x)
			if r == nil {
				g[0], g[1] = 0, 0
				return
			}
			th := theta(x).Vec()
			g[0] = th[0] * r.Grad[0]
			g[1] = th[1] * r.Grad[1]
		},
		Hess: func(h *mat.SymDense, x []float64) {
			r := eval(x)
			if r == nil {
				h.SetSym(0, 0, 1)
				h.SetSym(0, 1, 0)
				h.SetSym(1, 1, 1)
				return
			}
			th := theta(x).Vec()
			for i := 0; i < 2; i++ {
				for j := i; j < 2; j++ {
					v := th[i] * r.Hess.At(i, j) * th[j]
					if i == j {
						v += th[i] * r.Grad[i]
					}
					h.SetSym(i, j, v)
				}
			}
		},
	}

	x0 := []float64{math.Log(theta0.Rho), math.Log(theta0.Nsevar)}
	res, err := optim.Minimize(problem, x0, nil, nil, settings)
	if err != nil {
		return Theta{}, errors.Wrap(err, op)
	}
	return theta(res.X), nil
}
