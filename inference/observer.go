package inference

import (
	"github.com/YuminosukeSato/fastasd/hyper"
	"github.com/YuminosukeSato/fastasd/pkg/log"
)

// Report is the state handed to observers after each iteration. Slices are
// copies owned by the observer.
type Report struct {
	RunID     string
	Mode      Mode
	Iteration int
	// Params are the hyperparameters after this iteration's update.
	Params hyper.Params
	SqErr  float64
	WDif   float64
	W      []float64
	// Retained is the length of the latent field this iteration.
	Retained  int
	NegLogLik float64
}

// Observer is notified once per iteration, in order, on the goroutine
// running Driver.Run.
type Observer interface {
	Observe(Report)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Report)

// Observe calls f(r).
func (f ObserverFunc) Observe(r Report) { f(r) }

// logObserver writes one debug line per iteration.
type logObserver struct {
	logger log.Logger
}

func (o logObserver) Observe(r Report) {
	o.logger.Debug("iteration",
		log.IterationKey, r.Iteration,
		log.RhoKey, r.Params.Rho,
		log.DeltaKey, r.Params.Delta,
		log.OffsetKey, r.Params.B,
		log.NsevarKey, r.Params.Nsevar(),
		log.LenKey, r.Params.Len,
		log.SqErrKey, r.SqErr,
		log.WDifKey, r.WDif,
		log.RetainedKey, r.Retained,
		log.LossKey, r.NegLogLik,
	)
}
