package hyper

import (
	"log"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/fastasd/dual"
	"github.com/YuminosukeSato/fastasd/evidence"
	"github.com/YuminosukeSato/fastasd/fourier"
	"github.com/YuminosukeSato/fastasd/latent"
	"github.com/YuminosukeSato/fastasd/pkg/errors"
	"github.com/YuminosukeSato/fastasd/prior"
)

func testBounds() Bounds {
	return Bounds{
		LB: Params{Rho: 1e-3, Delta: 0.5, B: -10, LogNsevar: -10, Len: 0.5},
		UB: Params{Rho: 10, Delta: 20, B: 10, LogNsevar: 5, Len: 20},
	}
}

func TestTrustRegion(t *testing.T) {
	u := NewUpdater(AllMask(), testBounds())
	lo, hi := u.TrustRegion(Params{Rho: 2, Delta: 30, B: 0, LogNsevar: -2, Len: 1})

	assert.Equal(t, 1.0, lo.Rho)
	assert.Equal(t, 4.0, hi.Rho)
	// 全域の上限 20 で切られる
	assert.Equal(t, 15.0, lo.Delta)
	assert.Equal(t, 20.0, hi.Delta)
	assert.InDelta(t, -0.05, lo.B, 1e-12)
	assert.InDelta(t, 0.05, hi.B, 1e-12)
	assert.Equal(t, -4.0, lo.LogNsevar)
	assert.Equal(t, -1.0, hi.LogNsevar)
	assert.Equal(t, 0.5, lo.Len)
	assert.Equal(t, 2.0, hi.Len)

	lo, hi = u.TrustRegion(Params{Rho: 100, Delta: 1, Len: 1})
	assert.Equal(t, 1e-3, lo.Rho)
	assert.Equal(t, 10.0, hi.Rho)
}

func TestBoundsValidate(t *testing.T) {
	require.NoError(t, testBounds().Validate())
	require.NoError(t, DefaultBounds(16).Validate())

	b := testBounds()
	b.LB.LogNsevar = math.Inf(-1)
	assert.True(t, errors.IsConfigurationError(b.Validate()))

	b = testBounds()
	b.LB.Rho = 0
	assert.True(t, errors.IsConfigurationError(b.Validate()))

	b = testBounds()
	b.LB.B, b.UB.B = 1, -1
	assert.True(t, errors.IsConfigurationError(b.Validate()))
}

func TestOptimizeQuadratic(t *testing.T) {
	u := NewUpdater(Mask{Rho: true, Len: true}, testBounds())
	f := func(p Params) float64 {
		return (p.Rho-1.5)*(p.Rho-1.5) + 3*(p.Len-2)*(p.Len-2)
	}
	prev := Params{Rho: 1, Delta: 4, B: 0.2, LogNsevar: -1, Len: 2.5}
	got, err := u.Optimize(f, prev, rand.New(rand.NewPCG(1, 2)), 2)
	require.NoError(t, err)

	assert.InDelta(t, 1.5, got.Rho, 1e-3)
	assert.InDelta(t, 2, got.Len, 1e-3)
	assert.Equal(t, prev.Delta, got.Delta)
	assert.Equal(t, prev.B, got.B)
	assert.Equal(t, prev.LogNsevar, got.LogNsevar)

	lo, hi := u.TrustRegion(prev)
	assert.True(t, got.Rho >= lo.Rho && got.Rho <= hi.Rho)
}

func TestOptimizeRetriesDegenerateStart(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(func(w error) { log.Printf("fastasd-Warning: %v\n", w) })

	calls := 0
	f := func(p Params) float64 {
		calls++
		if calls == 1 {
			return evidence.Infeasible
		}
		return (p.Rho - 1.2) * (p.Rho - 1.2)
	}
	u := NewUpdater(Mask{Rho: true}, testBounds())
	got, err := u.Optimize(f, Params{Rho: 1, Delta: 1, Len: 1}, rand.New(rand.NewPCG(3, 4)), 7)
	require.NoError(t, err)
	assert.InDelta(t, 1.2, got.Rho, 1e-3)

	require.NotEmpty(t, warnings)
	var dw *errors.DegenerateStartWarning
	assert.True(t, errors.As(warnings[0], &dw))
}

func TestOptimizeKeepsPreviousWithoutImprovement(t *testing.T) {
	u := NewUpdater(Mask{Rho: true, Len: true}, testBounds())
	prev := Params{Rho: 1.5, Delta: 4, B: 0.2, LogNsevar: -1, Len: 2}
	f := func(p Params) float64 {
		return (p.Rho-1.5)*(p.Rho-1.5) + 3*(p.Len-2)*(p.Len-2)
	}
	for seed := uint64(1); seed <= 5; seed++ {
		got, err := u.Optimize(f, prev, rand.New(rand.NewPCG(seed, seed+1)), 2)
		require.NoError(t, err)
		assert.Equal(t, prev, got, "seed %d", seed)
	}

	// 改善しない更新は捨てられるので目的関数値は単調非増加
	g := func(p Params) float64 {
		return math.Sin(3*p.Rho) + math.Cos(2*p.Len) + 0.1*p.Rho*p.Rho
	}
	rng := rand.New(rand.NewPCG(7, 8))
	cur := Params{Rho: 2, Delta: 4, Len: 3}
	for i := 0; i < 10; i++ {
		next, err := u.Optimize(g, cur, rng, i+2)
		require.NoError(t, err)
		assert.LessOrEqual(t, g(next), g(cur))
		cur = next
	}
}

type pointPrior struct{ x float64 }

func (p pointPrior) LogDensity(x float64) float64 {
	if x == p.x {
		return 0
	}
	return math.Inf(-1)
}

func (p pointPrior) Rand(*rand.Rand) float64 { return p.x }

func TestOptimizeStartsFromPriors(t *testing.T) {
	prev := Params{Rho: 1, Delta: 4, Len: 3}
	firstCall := func(u *Updater, seed uint64) Params {
		var first *Params
		f := func(p Params) float64 {
			if first == nil {
				first = &p
			}
			return (p.Rho-1.1)*(p.Rho-1.1) + (p.Len-3)*(p.Len-3)
		}
		_, err := u.Optimize(f, prev, rand.New(rand.NewPCG(seed, seed+1)), 2)
		require.NoError(t, err)
		require.NotNil(t, first)
		return *first
	}

	u := NewUpdater(Mask{Rho: true, Len: true}, testBounds())
	u.StartPriors[IdxRho] = pointPrior{x: 1.3}
	u.StartPriors[IdxLen] = pointPrior{x: 100}
	start := firstCall(u, 1)
	_, hi := u.TrustRegion(prev)
	assert.Equal(t, 1.3, start.Rho)
	assert.Equal(t, hi.Len, start.Len)

	g, err := prior.NewGamma(1.2, 0.2, 1e-3, 10)
	require.NoError(t, err)
	u = NewUpdater(Mask{Rho: true}, testBounds())
	u.StartPriors[IdxRho] = g
	lo, hi := u.TrustRegion(prev)
	for seed := uint64(1); seed <= 5; seed++ {
		r := firstCall(u, seed).Rho
		assert.True(t, r >= lo.Rho && r <= hi.Rho, "rho=%g", r)
	}
}

func TestOptimizeEverythingInfeasibleKeepsPrevious(t *testing.T) {
	errors.SetWarningHandler(func(error) {})
	defer errors.SetWarningHandler(func(w error) { log.Printf("fastasd-Warning: %v\n", w) })

	u := NewUpdater(AllMask(), testBounds())
	prev := Params{Rho: 1, Delta: 2, B: 0, LogNsevar: -1, Len: 3}
	got, err := u.Optimize(func(Params) float64 { return evidence.Infeasible }, prev, rand.New(rand.NewPCG(5, 6)), 3)
	require.NoError(t, err)
	assert.Equal(t, prev, got)
}

func TestSliceStepStandardNormal(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	logf := func(x float64) float64 { return -0.5 * x * x }
	x := 0.0
	samples := make([]float64, 5000)
	for i := range samples {
		x = SliceStep(logf, x, 1, 10, math.Inf(-1), math.Inf(1), rng)
		samples[i] = x
	}
	mean, std := stat.MeanStdDev(samples, nil)
	assert.InDelta(t, 0, mean, 0.1)
	assert.InDelta(t, 1, std, 0.1)
}

func TestSliceStepRespectsBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(13, 14))
	logf := func(x float64) float64 {
		if x < 0 || x > 1 {
			return math.Inf(-1)
		}
		return 0
	}
	x := 0.5
	for i := 0; i < 500; i++ {
		x = SliceStep(logf, x, 3, 10, 0, 1, rng)
		require.True(t, x >= 0 && x <= 1)
	}
	assert.Equal(t, 7.0, SliceStep(logf, 7, 1, 10, 0, 1, rng))
}

func TestSampleFollowsPrior(t *testing.T) {
	u := NewUpdater(Mask{B: true}, testBounds())
	g, err := prior.NewGaussian(0.3, 0.2, -10, 10)
	require.NoError(t, err)
	var priors Priors
	priors[IdxB] = g

	rng := rand.New(rand.NewPCG(15, 16))
	p := Params{Rho: 1, Delta: 1, B: 0, LogNsevar: -1, Len: 1}
	bs := make([]float64, 3000)
	for i := range bs {
		p, err = u.Sample(func(Params) float64 { return 0 }, p, priors, rng)
		require.NoError(t, err)
		bs[i] = p.B
		assert.Equal(t, 1.0, p.Rho)
	}
	assert.InDelta(t, 0.3, stat.Mean(bs, nil), 0.05)
}

func objectiveFixture(t *testing.T) (*Objective, Params) {
	t.Helper()
	rng := rand.New(rand.NewPCG(17, 18))
	n, p := 10, 12
	x := mat.NewDense(n, p, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			x.Set(i, j, rng.NormFloat64())
		}
		y[i] = rng.NormFloat64()
	}
	params := Params{Rho: 0.8, Delta: 2, B: -0.5, LogNsevar: math.Log(0.3), Len: 1.5}
	cov, err := fourier.Build(params.Rho, params.Delta, []int{p}, 1, 1e4)
	require.NoError(t, err)
	smooth, err := fourier.Build(1, params.Len, []int{p}, 1, 1e4)
	require.NoError(t, err)
	v := make([]float64, cov.Len())
	for i := range v {
		v[i] = 0.3 * rng.NormFloat64()
	}
	return &Objective{X: x, Y: y, V: v, Cov: cov, Smooth: smooth, Nonlinearity: dual.SoftPlus{}, MinScale: 1}, params
}

func TestObjectiveMatchesLatentLikelihood(t *testing.T) {
	o, params := objectiveFixture(t)
	got := o.Value(params)

	pr, err := latent.NewProblem(o.X, o.Y, nil, o.Cov, params.B, o.Smooth, o.Nonlinearity, params.Nsevar())
	require.NoError(t, err)
	assert.InDelta(t, pr.NegLogLik(o.V), got, 1e-8*math.Abs(got))

	assert.Equal(t, evidence.Infeasible, o.Value(Params{Rho: 0, Delta: 1, Len: 1}))
	assert.Equal(t, evidence.Infeasible, o.Value(Params{Rho: 1, Delta: 1, Len: -1}))
	assert.Equal(t, evidence.Infeasible, o.Value(Params{Rho: 1, Delta: 1, Len: 1, LogNsevar: math.NaN()}))
}

func TestOptimizeStaysInTrustRegion(t *testing.T) {
	errors.SetWarningHandler(func(error) {})
	defer errors.SetWarningHandler(func(w error) { log.Printf("fastasd-Warning: %v\n", w) })

	o, params := objectiveFixture(t)
	u := NewUpdater(AllMask(), testBounds())
	got, err := u.Optimize(o.Func(), params, rand.New(rand.NewPCG(19, 20)), 2)
	require.NoError(t, err)
	assert.True(t, testBounds().Contains(got))
	assert.False(t, math.IsInf(o.Value(got), 0))

	lo, hi := u.TrustRegion(params)
	gv, lv, hv := got.Vec(), lo.Vec(), hi.Vec()
	for i := range gv {
		assert.True(t, gv[i] >= lv[i] && gv[i] <= hv[i], ParamNames[i])
	}
}
