// Package log defines standard attribute keys for inference runs.
//
// Keys follow a hierarchical naming convention ("hyper.rho", "diag.sq_err") so
// that a run's log stream can be filtered and replotted without a display.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator type, e.g. "ASDRegression".
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the run.
	PhaseKey = "ml.phase"

	// RunIDKey carries the unique identifier of one Driver.Run invocation.
	RunIDKey = "run.id"

	// ModeKey is "optimize" or "sample".
	ModeKey = "run.mode"
)

// Data Shape
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// KeptKey is the number of features selected by the keep-mask.
	KeptKey = "data.kept"
)

// Progress and Performance
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// IterationKey records the current iteration of the alternating loop.
	IterationKey = "training.iteration"

	// LossKey records an objective value (negative log evidence or posterior).
	LossKey = "metrics.loss"

	// R2ScoreKey records R² coefficient of determination for regression.
	R2ScoreKey = "metrics.r2_score"
)

// Hyperparameters
const (
	RhoKey    = "hyper.rho"
	DeltaKey  = "hyper.delta"
	OffsetKey = "hyper.offset"
	NsevarKey = "hyper.nsevar"
	LenKey    = "hyper.len"
)

// Diagnostics
const (
	// SqErrKey is |y - X w| / |y|.
	SqErrKey = "diag.sq_err"

	// WDifKey is |w - w_prev|.
	WDifKey = "diag.w_dif"

	// RetainedKey is the number of retained Fourier coefficients.
	RetainedKey = "fourier.retained"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Error Context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"

	PhaseInit      = "init"
	PhaseLatent    = "latent"
	PhaseHyper     = "hyper"
	PhaseInference = "inference"
)
