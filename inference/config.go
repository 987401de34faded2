// Package inference runs the alternating ASD/fastASD loop: covariance
// construction, latent field update, dual weight estimate and hyperparameter
// update, repeated until the weights settle or the iteration budget is spent.
package inference

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/fastasd/dual"
	"github.com/YuminosukeSato/fastasd/hyper"
	"github.com/YuminosukeSato/fastasd/optim"
	"github.com/YuminosukeSato/fastasd/pkg/errors"
	"github.com/YuminosukeSato/fastasd/prior"
)

// Mode selects how the latent field and hyperparameters are updated.
type Mode string

const (
	// ModeOptimize takes MAP steps and stops early once the weights settle.
	ModeOptimize Mode = "optimize"
	// ModeSample takes one MCMC step per iteration and always runs Iters.
	ModeSample Mode = "sample"
)

// Default loop settings.
const (
	DefaultIters         = 50
	DefaultWDifTol       = 1e-3
	DefaultMinScale      = 1.0
	DefaultCondThreshold = 1e8
)

// Config is the full run configuration. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	// Dims is the feature grid. Empty uses the dataset's grid.
	Dims []int `yaml:"dims"`
	Mode Mode  `yaml:"mode"`
	// Iters is the total iteration count, the seed state included.
	Iters int `yaml:"iters"`

	Init     hyper.Params `yaml:"init"`
	Estimate hyper.Mask   `yaml:"estimate"`
	// Bounds defaults to hyper.DefaultBounds on the grid.
	Bounds *hyper.Bounds `yaml:"bounds,omitempty"`
	// Priors maps a hyperparameter name to its prior in sampling mode.
	// Missing entries are flat on the bounds.
	Priors map[string]prior.Spec `yaml:"priors,omitempty"`
	// PriorStart draws optimize-mode starts from Priors instead of uniformly
	// on the trust region.
	PriorStart bool `yaml:"prior_start"`

	Frac       float64 `yaml:"frac"`
	MinWidth   float64 `yaml:"min_width"`
	SliceWidth float64 `yaml:"slice_width"`
	MaxSteps   int     `yaml:"max_steps"`

	MinScale      float64 `yaml:"min_scale"`
	CondThreshold float64 `yaml:"cond_threshold"`
	// Pad is the circular padding per axis. nil uses fourier.DefaultPad.
	Pad []int `yaml:"pad,omitempty"`

	Nonlinearity string `yaml:"nonlinearity"`
	// Keep selects the modelled features. Empty keeps all of them.
	Keep []bool `yaml:"keep,omitempty"`

	WDifTol float64 `yaml:"w_dif_tol"`
	// BurnIn iterations are excluded from Result.WMean.
	BurnIn int `yaml:"burn_in"`
	// RidgeInit seeds the noise variance and offset from a ridge evidence fit.
	RidgeInit bool `yaml:"ridge_init"`

	LatentOptim optim.Settings `yaml:"latent_optim"`
	HyperOptim  optim.Settings `yaml:"hyper_optim"`

	Seed uint64 `yaml:"seed"`
}

// DefaultConfig returns the settings used by the CLI.
func DefaultConfig() Config {
	hs := optim.DefaultSettings()
	hs.Method = optim.MethodNelderMead
	return Config{
		Mode:          ModeOptimize,
		Iters:         DefaultIters,
		Init:          hyper.Params{Rho: 1, Delta: 2, B: 0, LogNsevar: 0, Len: 1},
		Estimate:      hyper.AllMask(),
		Frac:          hyper.DefaultFrac,
		MinWidth:      hyper.DefaultMinWidth,
		SliceWidth:    hyper.DefaultSliceWidth,
		MaxSteps:      hyper.DefaultMaxSteps,
		MinScale:      DefaultMinScale,
		CondThreshold: DefaultCondThreshold,
		Nonlinearity:  dual.SoftPlus{}.Name(),
		WDifTol:       DefaultWDifTol,
		RidgeInit:     true,
		LatentOptim:   optim.DefaultSettings(),
		HyperOptim:    hs,
		Seed:          1,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig and validates it.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "inference.LoadConfig: %s", path)
	}
	return ParseConfig(bytes.NewReader(b))
}

// ParseConfig is LoadConfig for an already open reader.
func ParseConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "inference.ParseConfig")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first configuration error. Grid-dependent checks
// (Keep length, Dims against the data) happen in Driver.Run.
func (c Config) Validate() error {
	const op = "inference.Config"
	bad := func(param, format string, args ...any) error {
		return errors.NewConfigurationError(op, param, fmt.Sprintf(format, args...))
	}

	switch c.Mode {
	case ModeOptimize, ModeSample:
	default:
		return bad("mode", "unknown mode %q", c.Mode)
	}
	if c.Iters < 1 {
		return bad("iters", "must be at least 1, got %d", c.Iters)
	}
	if c.BurnIn < 0 || c.BurnIn >= c.Iters {
		return bad("burn_in", "must be in [0, iters), got %d", c.BurnIn)
	}
	if !(c.Frac > 0 && c.Frac < 1) {
		return bad("frac", "must be in (0, 1), got %g", c.Frac)
	}
	if !(c.MinWidth >= 0) {
		return bad("min_width", "must be non-negative, got %g", c.MinWidth)
	}
	if !(c.SliceWidth > 0) || math.IsInf(c.SliceWidth, 0) {
		return bad("slice_width", "must be positive and finite, got %g", c.SliceWidth)
	}
	if c.MaxSteps < 1 {
		return bad("max_steps", "must be at least 1, got %d", c.MaxSteps)
	}
	if !(c.MinScale > 0) || math.IsInf(c.MinScale, 0) {
		return bad("min_scale", "must be positive and finite, got %g", c.MinScale)
	}
	if !(c.CondThreshold > 1) {
		return bad("cond_threshold", "must exceed 1, got %g", c.CondThreshold)
	}
	for _, p := range c.Pad {
		if p < 0 {
			return bad("pad", "must be non-negative, got %v", c.Pad)
		}
	}
	if !(c.WDifTol >= 0) {
		return bad("w_dif_tol", "must be non-negative, got %g", c.WDifTol)
	}
	if _, err := dual.NonlinearityByName(c.Nonlinearity); err != nil {
		return err
	}
	if err := c.LatentOptim.Validate(); err != nil {
		return err
	}
	if err := c.HyperOptim.Validate(); err != nil {
		return err
	}
	if c.Bounds != nil {
		if err := c.Bounds.Validate(); err != nil {
			return err
		}
		if !c.Bounds.Contains(c.Init) {
			return bad("init", "initial hyperparameters %+v lie outside the bounds", c.Init)
		}
	}
	if !(c.Init.Rho > 0) || !(c.Init.Delta > 0) || !(c.Init.Len > 0) {
		return bad("init", "rho, delta and len must be positive, got %+v", c.Init)
	}
	for name := range c.Priors {
		if paramIndex(name) < 0 {
			return bad("priors", "unknown hyperparameter %q", name)
		}
	}
	return nil
}

func paramIndex(name string) int {
	for i, n := range hyper.ParamNames {
		if n == name {
			return i
		}
	}
	return -1
}

// bounds resolves the hyperparameter box for a grid whose longest axis has
// maxDim points.
func (c Config) bounds(maxDim int) hyper.Bounds {
	if c.Bounds != nil {
		return *c.Bounds
	}
	return hyper.DefaultBounds(maxDim)
}

// priors builds the per-parameter log-priors on b.
func (c Config) priors(b hyper.Bounds) (hyper.Priors, error) {
	var out hyper.Priors
	lb, ub := b.LB.Vec(), b.UB.Vec()
	for name, spec := range c.Priors {
		i := paramIndex(name)
		d, err := spec.New(lb[i], ub[i])
		if err != nil {
			return out, err
		}
		out[i] = d
	}
	return out, nil
}
