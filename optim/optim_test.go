package optim

import (
	"log"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/fastasd/pkg/errors"
)

func quadratic() Problem {
	return Problem{
		Func: func(x []float64) float64 {
			return (x[0]-1)*(x[0]-1) + 10*(x[1]+2)*(x[1]+2)
		},
		Grad: func(g, x []float64) {
			g[0] = 2 * (x[0] - 1)
			g[1] = 20 * (x[1] + 2)
		},
		Hess: func(h *mat.SymDense, _ []float64) {
			h.SetSym(0, 0, 2)
			h.SetSym(0, 1, 0)
			h.SetSym(1, 1, 20)
		},
	}
}

func captureWarnings(t *testing.T) *[]error {
	t.Helper()
	var ws []error
	errors.SetWarningHandler(func(w error) { ws = append(ws, w) })
	t.Cleanup(func() {
		errors.SetWarningHandler(func(w error) { log.Printf("fastasd-Warning: %v\n", w) })
	})
	return &ws
}

func TestMinimizeMethods(t *testing.T) {
	tests := []struct {
		name   string
		method string
		lb, ub []float64
		noGrad bool
	}{
		{name: "lbfgs unbounded", method: MethodLBFGS},
		{name: "lbfgs boxed", method: MethodLBFGS, lb: []float64{-5, -5}, ub: []float64{5, 5}},
		{name: "lbfgs finite differences", method: MethodLBFGS, lb: []float64{-5, math.Inf(-1)}, ub: []float64{math.Inf(1), 0}, noGrad: true},
		{name: "nelder-mead boxed", method: MethodNelderMead, lb: []float64{-5, -5}, ub: []float64{5, 5}},
		{name: "newton unbounded", method: MethodNewton},
		{name: "newton boxed", method: MethodNewton, lb: []float64{-5, -5}, ub: []float64{5, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := quadratic()
			if tt.noGrad {
				p.Grad = nil
			}
			s := DefaultSettings()
			s.Method = tt.method
			s.MaxIterations = 500
			s.MaxFunctionEvaluations = 5000
			res, err := Minimize(p, []float64{0.5, -0.5}, tt.lb, tt.ub, s)
			require.NoError(t, err)
			assert.InDelta(t, 1, res.X[0], 1e-3)
			assert.InDelta(t, -2, res.X[1], 1e-3)
			assert.InDelta(t, 0, res.F, 1e-4)
		})
	}
}

func TestMinimizeActiveBound(t *testing.T) {
	p := Problem{
		Func: func(x []float64) float64 { return (x[0] - 3) * (x[0] - 3) },
		Grad: func(g, x []float64) { g[0] = 2 * (x[0] - 3) },
	}
	res, err := Minimize(p, []float64{0.5}, []float64{0}, []float64{1}, DefaultSettings())
	require.NoError(t, err)
	assert.LessOrEqual(t, res.X[0], 1.0)
	assert.InDelta(t, 1, res.X[0], 1e-2)
}

func TestMinimizeFixedCoordinate(t *testing.T) {
	res, err := Minimize(quadratic(), []float64{0.5, 0.7}, []float64{-5, 0.7}, []float64{5, 0.7}, DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, 0.7, res.X[1])
	assert.InDelta(t, 1, res.X[0], 1e-3)
}

func TestMinimizeBudgetExhaustedIsNotAnError(t *testing.T) {
	ws := captureWarnings(t)

	rosen := Problem{
		Func: func(x []float64) float64 {
			a, b := 1-x[0], x[1]-x[0]*x[0]
			return a*a + 100*b*b
		},
	}
	s := DefaultSettings()
	s.Method = MethodNelderMead
	s.MaxIterations = 2
	res, err := Minimize(rosen, []float64{-1.2, 1}, nil, nil, s)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Converged)
	assert.Len(t, res.X, 2)
	require.NotEmpty(t, *ws)

	var cw *errors.ConvergenceWarning
	assert.True(t, errors.As((*ws)[0], &cw))
}

func TestMinimizeValidation(t *testing.T) {
	p := quadratic()
	x0 := []float64{0, 0}

	_, err := Minimize(p, x0, nil, nil, Settings{Method: "simplex"})
	assert.True(t, errors.IsConfigurationError(err))

	_, err = Minimize(Problem{Func: p.Func}, x0, nil, nil, Settings{Method: MethodNewton})
	assert.True(t, errors.IsConfigurationError(err))

	_, err = Minimize(p, x0, []float64{1, 1}, []float64{0, 2}, DefaultSettings())
	assert.True(t, errors.IsConfigurationError(err))

	_, err = Minimize(p, x0, []float64{1}, nil, DefaultSettings())
	assert.Error(t, err)

	_, err = Minimize(Problem{}, x0, nil, nil, DefaultSettings())
	assert.Error(t, err)
}

func TestBoxRoundTrip(t *testing.T) {
	b, err := newBox(
		[]float64{math.Inf(-1), 0, math.Inf(-1), -2},
		[]float64{math.Inf(1), math.Inf(1), 3, 4}, 4)
	require.NoError(t, err)

	x := []float64{-1.5, 2.5, 1, 0.25}
	z := b.toFree(x)
	assert.InDeltaSlice(t, x, b.toBox(make([]float64, 4), z), 1e-12)

	// 数値微分と連鎖律の比較
	for i := range z {
		d1, d2 := b.jac(i, z[i])
		h := 1e-5
		zp := append([]float64(nil), z...)
		zm := append([]float64(nil), z...)
		zp[i] += h
		zm[i] -= h
		xp := b.toBox(make([]float64, 4), zp)[i]
		xm := b.toBox(make([]float64, 4), zm)[i]
		assert.InDelta(t, (xp-xm)/(2*h), d1, 1e-6)
		assert.InDelta(t, (xp-2*x[i]+xm)/(h*h), d2, 1e-3)
	}
}
