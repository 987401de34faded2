package inference

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/fastasd/core/model"
	"github.com/YuminosukeSato/fastasd/dataset"
	"github.com/YuminosukeSato/fastasd/dual"
	"github.com/YuminosukeSato/fastasd/evidence"
	"github.com/YuminosukeSato/fastasd/metrics"
	"github.com/YuminosukeSato/fastasd/pkg/errors"
	"github.com/YuminosukeSato/fastasd/pkg/log"
)

// MaxPosteriorFeatures bounds the primal posterior computed by Posterior.
const MaxPosteriorFeatures = 1024

const estimatorName = "ASDRegression"

var _ model.Regressor = (*Estimator)(nil)

// Estimator fits ASD/fastASD regression with a scikit-learn style API.
//
// 使用例:
//
//	est := inference.NewEstimator(inference.DefaultConfig())
//	if err := est.Fit(X, y); err != nil {
//	    return err
//	}
//	yhat, err := est.Predict(Xtest)
type Estimator struct {
	state *model.StateManager

	cfg  Config
	opts []Option
	// FitIntercept centres X and y before fitting.
	FitIntercept bool

	ds        *dataset.Dataset
	result    *Result
	xMean     []float64
	intercept float64
}

// NewEstimator returns an unfitted estimator. opts are passed to the Driver
// on every Fit.
func NewEstimator(cfg Config, opts ...Option) *Estimator {
	return &Estimator{
		state:        model.NewStateManager(),
		cfg:          cfg,
		opts:         opts,
		FitIntercept: true,
	}
}

// Fit runs the inference loop on X (n x p) and y.
func (e *Estimator) Fit(X mat.Matrix, y []float64) error {
	return e.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation between iterations.
func (e *Estimator) FitContext(ctx context.Context, X mat.Matrix, y []float64) (err error) {
	defer errors.Recover(&err, "Estimator.Fit")
	e.state.Reset()

	ds, err := dataset.New(X, y, e.cfg.Dims)
	if err != nil {
		return err
	}
	e.xMean = make([]float64, ds.P)
	e.intercept = 0
	if e.FitIntercept {
		for j := 0; j < ds.P; j++ {
			e.xMean[j] = floats.Sum(mat.Col(nil, j, ds.X)) / float64(ds.N)
		}
		var ym float64
		ds, ym, err = ds.Center()
		if err != nil {
			return err
		}
		e.intercept = ym
	}

	d, err := NewDriver(e.cfg, e.opts...)
	if err != nil {
		return err
	}
	res, err := d.Run(ctx, ds)
	if err != nil {
		return err
	}

	e.ds = ds
	e.result = res
	e.state.SetDimensions(ds.P, ds.N)
	e.state.SetFitted()
	d.logger.Info("estimator fitted",
		log.ModelNameKey, estimatorName,
		log.OperationKey, log.OperationFit,
		log.RunIDKey, res.RunID,
	)
	return nil
}

// Predict returns X w plus the intercept.
func (e *Estimator) Predict(X mat.Matrix) ([]float64, error) {
	if err := e.state.RequireFitted(estimatorName, "Predict"); err != nil {
		return nil, err
	}
	_, p := X.Dims()
	if nf, _ := e.state.GetDimensions(); p != nf {
		return nil, errors.NewDimensionError("Estimator.Predict", nf, p, 1)
	}
	yhat := dual.Predict(X, e.result.W)
	offset := e.intercept - floats.Dot(e.xMean, e.result.W)
	floats.AddConst(offset, yhat)
	return yhat, nil
}

// Score returns the R² of the predictions on X.
func (e *Estimator) Score(X mat.Matrix, y []float64) (float64, error) {
	yhat, err := e.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, yhat)
}

// Weights returns a copy of the fitted weights, or nil before Fit.
func (e *Estimator) Weights() []float64 {
	if !e.state.IsFitted() {
		return nil
	}
	return append([]float64(nil), e.result.W...)
}

// Intercept returns the fitted intercept.
func (e *Estimator) Intercept() float64 { return e.intercept }

// Result returns the run that produced the fit, or nil before Fit.
func (e *Estimator) Result() *Result { return e.result }

// Posterior returns the posterior mean and standard deviation of the weights
// under the diagonal prior w_j ~ N(0, cdiag_j) implied by the final latent
// field. Features outside the keep-mask or with cdiag_j = 0 get zero mean and
// zero deviation.
func (e *Estimator) Posterior() (mean, std []float64, err error) {
	const op = "Estimator.Posterior"
	if err := e.state.RequireFitted(estimatorName, "Posterior"); err != nil {
		return nil, nil, err
	}
	cdiag := e.result.CDiag
	var idx []int
	for j, c := range cdiag {
		if c > 0 {
			idx = append(idx, j)
		}
	}
	if len(idx) == 0 {
		return nil, nil, errors.NewValueError(op, "latent field switched every feature off")
	}
	if len(idx) > MaxPosteriorFeatures {
		return nil, nil, errors.NewValueError(op, fmt.Sprintf("%d active features exceed the limit of %d", len(idx), MaxPosteriorFeatures))
	}

	xk := mat.NewDense(e.ds.N, len(idx), nil)
	pd := make([]float64, len(idx))
	for k, j := range idx {
		xk.SetCol(k, mat.Col(nil, j, e.ds.X))
		pd[k] = cdiag[j]
	}
	data, err := evidence.NewDataWithPrior(xk, e.ds.Y, pd)
	if err != nil {
		return nil, nil, err
	}
	r, err := evidence.Evaluate(evidence.Theta{Rho: 1, Nsevar: e.result.Params.Nsevar()}, data, evidence.OrderPosterior)
	if err != nil {
		return nil, nil, err
	}

	mean = make([]float64, e.ds.P)
	std = make([]float64, e.ds.P)
	for k, j := range idx {
		mean[j] = r.MuPost[k]
		std[j] = math.Sqrt(math.Max(r.LPost.At(k, k), 0))
	}
	return mean, std, nil
}
