// Package fourier builds ASD covariances that are diagonal in a real Fourier
// basis, together with the separable operator mapping between the (truncated)
// Fourier domain and the real grid.
//
// Coefficients are real: each axis uses cosine rows for non-negative
// frequencies and sine rows for negative ones, so no complex arithmetic is
// needed. Frequencies are ordered 0, 1, ..., ceil((nc-1)/2), -floor((nc-1)/2), ..., -1:
// low frequencies sit at both ends of a coefficient vector and high
// frequencies in the middle.
package fourier

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/fastasd/pkg/errors"
)

// Frequencies returns the integer frequencies of a circular axis of length nc
// in coefficient order.
func Frequencies(nc int) []float64 {
	freqs := make([]float64, nc)
	nPos := (nc-1)/2 + (nc-1)%2 // ceil((nc-1)/2)
	for i := 0; i <= nPos; i++ {
		freqs[i] = float64(i)
	}
	nNeg := (nc - 1) / 2
	for i := 0; i < nNeg; i++ {
		freqs[nPos+1+i] = float64(i - nNeg)
	}
	return freqs
}

// Basis returns the nc x n real Fourier basis for n grid points on a circular
// axis of length nc >= n, and its frequencies. With nc == n the rows are
// orthonormal.
func Basis(n, nc int) (*mat.Dense, []float64) {
	freqs := Frequencies(nc)
	b := mat.NewDense(nc, n, nil)
	full := math.Sqrt(2 / float64(nc))
	half := 1 / math.Sqrt(float64(nc))
	for r, w := range freqs {
		scale := full
		if w == 0 || (nc%2 == 0 && int(w) == nc/2) {
			scale = half
		}
		for x := 0; x < n; x++ {
			arg := 2 * math.Pi * w * float64(x) / float64(nc)
			if w >= 0 {
				b.Set(r, x, scale*math.Cos(arg))
			} else {
				b.Set(r, x, scale*math.Sin(arg))
			}
		}
	}
	return b, freqs
}

// Transform computes the real 2-D Fourier coefficients of x by applying the 1-D
// basis along each axis independently. pads is either empty (natural size) or
// exactly {ncolPad, nrowPad}.
//
// A row or column vector is transformed in 1-D with a DataConversionWarning;
// the frequencies are then reported on the axis the vector lies along and the
// other axis gets the single frequency 0.
//
// Applying the 1-D transform once per axis mixes the (wx+wy) and (wx-wy)
// cross terms, so orientation information off the axes is lost. This is only
// exact for separable kernels.
func Transform(x mat.Matrix, pads ...int) (coeffs *mat.Dense, colFreqs, rowFreqs []float64, err error) {
	if len(pads) != 0 && len(pads) != 2 {
		return nil, nil, nil, errors.NewConfigurationError("fourier.Transform", "pads",
			fmt.Sprintf("expected 0 or 2 padding arguments, got %d", len(pads)))
	}
	rows, cols := x.Dims()
	ncolPad, nrowPad := cols, rows
	if len(pads) == 2 {
		ncolPad, nrowPad = pads[0], pads[1]
	}
	if ncolPad < cols || nrowPad < rows {
		return nil, nil, nil, errors.NewConfigurationError("fourier.Transform", "pads",
			fmt.Sprintf("padding (%d, %d) smaller than input (%d, %d)", ncolPad, nrowPad, cols, rows))
	}

	if rows == 1 || cols == 1 {
		errors.Warn(errors.NewDataConversionWarning("matrix", "vector",
			"vector input to 2-D transform; using 1-D transform"))
		if rows == 1 {
			nrowPad = 1
		} else {
			ncolPad = 1
		}
	}

	bRow, rowFreqs := Basis(rows, nrowPad)
	bCol, colFreqs := Basis(cols, ncolPad)

	var tmp mat.Dense
	tmp.Mul(bRow, x)
	coeffs = mat.NewDense(nrowPad, ncolPad, nil)
	coeffs.Mul(&tmp, bCol.T())
	return coeffs, colFreqs, rowFreqs, nil
}
