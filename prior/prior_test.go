package prior

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"

	"github.com/YuminosukeSato/fastasd/pkg/errors"
)

// integral integrates exp(d.LogDensity) over [lb, ub] on a fine grid.
func integral(d Density, lb, ub float64) float64 {
	const n = 20001
	x := make([]float64, n)
	floats.Span(x, lb, ub)
	f := make([]float64, n)
	for i, xi := range x {
		f[i] = math.Exp(d.LogDensity(xi))
	}
	return integrate.Trapezoidal(x, f)
}

func TestTruncatedNormalisation(t *testing.T) {
	tests := []struct {
		name   string
		build  func() (Density, error)
		lb, ub float64
	}{
		{
			name:  "gaussian",
			build: func() (Density, error) { return NewGaussian(0.5, 1, -1, 2) },
			lb:    -1, ub: 2,
		},
		{
			name:  "gamma",
			build: func() (Density, error) { return NewGamma(3, 1.5, 0.5, 8) },
			lb:    0.5, ub: 8,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.build()
			require.NoError(t, err)
			assert.InDelta(t, 1, integral(d, tt.lb, tt.ub), 1e-4)
			assert.True(t, math.IsInf(d.LogDensity(tt.lb-0.1), -1))
			assert.True(t, math.IsInf(d.LogDensity(tt.ub+0.1), -1))
		})
	}
}

func TestGammaMoments(t *testing.T) {
	g, err := NewGamma(4, 2, 0, math.Inf(1))
	require.NoError(t, err)
	// 切断なしなら分布の平均と一致する
	x := make([]float64, 40001)
	floats.Span(x, 1e-9, 60)
	f := make([]float64, len(x))
	for i, xi := range x {
		f[i] = xi * math.Exp(g.LogDensity(xi))
	}
	assert.InDelta(t, 4, integrate.Trapezoidal(x, f), 1e-3)
}

func TestRandStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	g, err := NewGamma(2, 1, 1, 3)
	require.NoError(t, err)
	n, err := NewGaussian(0, 1, -0.5, 0.5)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		x := g.Rand(rng)
		assert.True(t, x >= 1 && x <= 3)
		y := n.Rand(rng)
		assert.True(t, y >= -0.5 && y <= 0.5)
	}
}

func TestSpec(t *testing.T) {
	d, err := Spec{Kind: "flat"}.New(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, d.LogDensity(0.5))
	assert.True(t, math.IsInf(d.LogDensity(2), -1))

	d, err = Spec{Kind: "gaussian", Mean: 0, Std: 1}.New(-3, 3)
	require.NoError(t, err)
	assert.IsType(t, &Gaussian{}, d)

	_, err = Spec{Kind: "cauchy"}.New(0, 1)
	assert.True(t, errors.IsConfigurationError(err))
}

func TestInvalidPriors(t *testing.T) {
	_, err := NewGamma(-1, 1, 0, 1)
	assert.True(t, errors.IsConfigurationError(err))
	_, err = NewGaussian(0, 0, 0, 1)
	assert.True(t, errors.IsConfigurationError(err))
	_, err = NewGaussian(0, 1, 2, 1)
	assert.True(t, errors.IsConfigurationError(err))
	// 質量のない区間
	_, err = NewGaussian(0, 1e-3, 50, 60)
	assert.True(t, errors.IsConfigurationError(err))
}
