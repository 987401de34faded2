package latent

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/fastasd/evidence"
	"github.com/YuminosukeSato/fastasd/optim"
	"github.com/YuminosukeSato/fastasd/pkg/errors"
	"github.com/YuminosukeSato/fastasd/pkg/log"
)

// DefaultVBound bounds every coordinate of the whitened field during
// optimisation.
const DefaultVBound = 20

// maxShrink caps the bracket shrinkage of one elliptical slice step.
const maxShrink = 200

// Solution is a new latent state.
type Solution struct {
	V         []float64
	Ureal     []float64
	NegLogLik float64
	// Converged is false when the optimiser ran out of budget or the slice
	// bracket collapsed without an accepted move.
	Converged bool
}

// Solver produces latent fields by optimisation or elliptical slice sampling.
type Solver struct {
	Settings optim.Settings
	VBound   float64
	Logger   log.Logger
}

// NewSolver returns a solver using LBFGS with the given settings.
func NewSolver(settings optim.Settings) *Solver {
	if settings.Method == "" {
		settings.Method = optim.MethodLBFGS
	}
	return &Solver{
		Settings: settings,
		VBound:   DefaultVBound,
		Logger:   log.GetLoggerWithName("latent.Solver"),
	}
}

// Optimize minimises the negative log posterior over v, warm-started at
// vInit. vInit must already have length p.Len(); see fourier.Resize.
func (s *Solver) Optimize(p *Problem, vInit []float64) (*Solution, error) {
	const op = "latent.Optimize"
	if len(vInit) != p.Len() {
		return nil, errors.NewDimensionError(op, p.Len(), len(vInit), 0)
	}

	x0 := append([]float64(nil), vInit...)
	for i, v := range x0 {
		x0[i] = errors.ClipValue(v, -s.VBound, s.VBound)
	}
	f0 := p.NegLogPost(x0, nil)
	if math.IsInf(f0, 1) {
		x0 = make([]float64, p.Len())
		f0 = p.NegLogPost(x0, nil)
		if math.IsInf(f0, 1) {
			return nil, errors.NewModelError(op, "latent objective is infeasible at the origin", errors.ErrNotPositiveDefinite)
		}
	}

	c := &postCache{p: p}
	problem := optim.Problem{Func: c.value, Grad: c.grad}
	lb := make([]float64, p.Len())
	ub := make([]float64, p.Len())
	for i := range lb {
		lb[i], ub[i] = -s.VBound, s.VBound
	}

	res, err := optim.Minimize(problem, x0, lb, ub, s.Settings)
	if err != nil || math.IsInf(res.F, 1) || res.F > f0 {
		// 最適化に失敗しても前回の値で続行する
		if err != nil {
			s.Logger.Warn("latent optimisation failed; keeping warm start", "error", err.Error())
		}
		return s.solution(p, x0, false), nil
	}
	return s.solution(p, res.X, res.Converged), nil
}

func (s *Solver) solution(p *Problem, v []float64, converged bool) *Solution {
	return &Solution{
		V:         v,
		Ureal:     p.Ureal(v),
		NegLogLik: p.NegLogLik(v),
		Converged: converged,
	}
}

// Sample advances v by one elliptical slice sampling step, drawing the
// auxiliary N(0, I) variate from rng.
func (s *Solver) Sample(p *Problem, v []float64, rng *rand.Rand) (*Solution, error) {
	nu := make([]float64, len(v))
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	for i := range nu {
		nu[i] = norm.Rand()
	}
	return s.SampleWith(p, v, nu, rng)
}

// SampleWith is Sample with an explicit auxiliary draw nu.
//
// The step (Murray, Adams and MacKay 2010) proposes points on the ellipse
// v cos(t) + nu sin(t) and shrinks the angle bracket towards t = 0 until a
// point above the slice is found. Only the likelihood is evaluated; the N(0, I)
// prior is built into the proposal.
func (s *Solver) SampleWith(p *Problem, v, nu []float64, rng *rand.Rand) (*Solution, error) {
	const op = "latent.SampleWith"
	if len(v) != p.Len() {
		return nil, errors.NewDimensionError(op, p.Len(), len(v), 0)
	}
	if len(nu) != len(v) {
		return nil, errors.NewDimensionError(op, len(v), len(nu), 0)
	}

	cur := p.NegLogLik(v)
	if math.IsInf(cur, 1) {
		return nil, errors.NewModelError(op, "likelihood is infeasible at the current state", errors.ErrNotPositiveDefinite)
	}
	logY := -cur + math.Log(rng.Float64())

	theta := 2 * math.Pi * rng.Float64()
	lo, hi := theta-2*math.Pi, theta
	prop := make([]float64, len(v))
	for k := 0; k < maxShrink; k++ {
		c, sn := math.Cos(theta), math.Sin(theta)
		for i := range prop {
			prop[i] = v[i]*c + nu[i]*sn
		}
		nll := p.NegLogLik(prop)
		if -nll > logY {
			return &Solution{V: prop, Ureal: p.Ureal(prop), NegLogLik: nll, Converged: true}, nil
		}
		if theta < 0 {
			lo = theta
		} else {
			hi = theta
		}
		theta = lo + (hi-lo)*rng.Float64()
	}

	s.Logger.Warn("elliptical slice bracket collapsed; keeping current state", "shrinks", maxShrink)
	return &Solution{V: append([]float64(nil), v...), Ureal: p.Ureal(v), NegLogLik: cur}, nil
}

// postCache shares one dual solve between the value and gradient requests
// the optimiser makes at the same point.
type postCache struct {
	p *Problem
	x []float64
	f float64
	g []float64
}

func (c *postCache) hit(x []float64) bool {
	if c.x == nil || len(c.x) != len(x) {
		return false
	}
	for i := range x {
		if x[i] != c.x[i] {
			return false
		}
	}
	return true
}

func (c *postCache) value(x []float64) float64 {
	if c.hit(x) {
		return c.f
	}
	c.x = append(c.x[:0], x...)
	c.g = make([]float64, len(x))
	c.f = c.p.NegLogPost(x, c.g)
	if math.IsInf(c.f, 1) {
		return evidence.Infeasible
	}
	return c.f
}

func (c *postCache) grad(g, x []float64) {
	if !c.hit(x) {
		c.value(x)
	}
	copy(g, c.g)
}
