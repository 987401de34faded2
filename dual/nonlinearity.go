package dual

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/fastasd/pkg/errors"
)

// Nonlinearity maps the latent field to the prior variance multiplier.
// Eval may be negative; callers take its absolute value.
type Nonlinearity interface {
	Name() string
	Eval(u float64) float64
	Deriv(u float64) float64
}

// Exp is f(u) = exp(u).
type Exp struct{}

func (Exp) Name() string            { return "exp" }
func (Exp) Eval(u float64) float64  { return math.Exp(u) }
func (Exp) Deriv(u float64) float64 { return math.Exp(u) }

// SoftPlus is f(u) = log(1 + exp(u)).
type SoftPlus struct{}

func (SoftPlus) Name() string { return "softplus" }

func (SoftPlus) Eval(u float64) float64 {
	if u > 30 {
		return u
	}
	return math.Log1p(math.Exp(u))
}

func (SoftPlus) Deriv(u float64) float64 {
	if u >= 0 {
		return 1 / (1 + math.Exp(-u))
	}
	e := math.Exp(u)
	return e / (1 + e)
}

// Square is f(u) = u^2.
type Square struct{}

func (Square) Name() string            { return "square" }
func (Square) Eval(u float64) float64  { return u * u }
func (Square) Deriv(u float64) float64 { return 2 * u }

// Rectify is f(u) = max(u, 0).
type Rectify struct{}

func (Rectify) Name() string { return "rectify" }

func (Rectify) Eval(u float64) float64 { return math.Max(u, 0) }

func (Rectify) Deriv(u float64) float64 {
	if u > 0 {
		return 1
	}
	return 0
}

// Linear is f(u) = u. Its absolute value gives |u|.
type Linear struct{}

func (Linear) Name() string          { return "linear" }
func (Linear) Eval(u float64) float64 { return u }
func (Linear) Deriv(float64) float64  { return 1 }

// NonlinearityByName looks up a nonlinearity by its Name.
func NonlinearityByName(name string) (Nonlinearity, error) {
	switch name {
	case "exp":
		return Exp{}, nil
	case "softplus":
		return SoftPlus{}, nil
	case "square":
		return Square{}, nil
	case "rectify":
		return Rectify{}, nil
	case "linear":
		return Linear{}, nil
	default:
		return nil, errors.NewConfigurationError("dual.NonlinearityByName", "nonlinearity", fmt.Sprintf("unknown nonlinearity %q", name))
	}
}
