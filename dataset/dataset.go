// Package dataset holds the immutable regression data shared by every stage
// of an inference run, together with its sufficient statistics.
package dataset

import (
	"fmt"
	"math"

	"github.com/viterin/vek"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/fastasd/pkg/errors"
	"github.com/YuminosukeSato/fastasd/preprocessing"
)

// Dataset is a design matrix X (N x P, one stimulus per row) laid out on a
// grid of shape Dims, the responses Y, and the precomputed statistics
// XX = X'X, XY = X'y and YY = y'y. It must not be modified after New.
type Dataset struct {
	X    *mat.Dense
	Y    []float64
	XX   *mat.SymDense
	XY   []float64
	YY   float64
	N    int
	P    int
	Dims []int
}

// New validates x, y and dims and computes the sufficient statistics. A nil
// dims treats the features as a 1-D grid of length P. x and y are copied.
func New(x mat.Matrix, y []float64, dims []int) (*Dataset, error) {
	const op = "dataset.New"
	n, p := x.Dims()
	if n == 0 || p == 0 {
		return nil, errors.NewModelError(op, "empty design matrix", errors.ErrEmptyData)
	}
	if len(y) != n {
		return nil, errors.NewDimensionError(op, n, len(y), 0)
	}
	if dims == nil {
		dims = []int{p}
	}
	if err := checkDims(op, dims, p); err != nil {
		return nil, err
	}

	xd := mat.DenseCopyOf(x)
	if err := errors.CheckNumericalStability(op, xd.RawMatrix().Data, 0); err != nil {
		return nil, err
	}
	if err := errors.CheckNumericalStability(op, y, 0); err != nil {
		return nil, err
	}
	yc := append([]float64(nil), y...)

	xx := mat.NewSymDense(p, nil)
	xx.SymOuterK(1, xd.T())
	xy := mat.NewVecDense(p, nil)
	xy.MulVec(xd.T(), mat.NewVecDense(n, yc))

	return &Dataset{
		X:    xd,
		Y:    yc,
		XX:   xx,
		XY:   xy.RawVector().Data,
		YY:   vek.Dot(yc, yc),
		N:    n,
		P:    p,
		Dims: append([]int(nil), dims...),
	}, nil
}

func checkDims(op string, dims []int, p int) error {
	if len(dims) < 1 || len(dims) > 2 {
		return errors.NewConfigurationError(op, "dims", fmt.Sprintf("grid must be 1-D or 2-D, got %d axes", len(dims)))
	}
	prod := 1
	for _, d := range dims {
		if d < 1 {
			return errors.NewConfigurationError(op, "dims", fmt.Sprintf("axis length must be positive, got %v", dims))
		}
		prod *= d
	}
	if prod != p {
		return errors.NewConfigurationError(op, "dims", fmt.Sprintf("grid %v has %d points but X has %d columns", dims, prod, p))
	}
	return nil
}

// Center returns a copy with the column means of X and the mean of Y removed,
// along with the removed response mean.
func (d *Dataset) Center() (*Dataset, float64, error) {
	sc := preprocessing.NewStandardScaler(true, false)
	xc, err := sc.FitTransform(d.X)
	if err != nil {
		return nil, 0, errors.Wrap(err, "dataset.Center")
	}
	yc, ym := preprocessing.CenterVector(d.Y)
	out, err := New(xc, yc, d.Dims)
	if err != nil {
		return nil, 0, err
	}
	return out, ym, nil
}

// Norm returns |y|.
func (d *Dataset) Norm() float64 { return math.Sqrt(d.YY) }

// MaxDim returns the length of the longest grid axis.
func (d *Dataset) MaxDim() int {
	m := 0
	for _, v := range d.Dims {
		m = max(m, v)
	}
	return m
}
