package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/fastasd/pkg/errors"
)

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 3, []float64{
		1, 10, 5,
		2, 20, 5,
		3, 30, 5,
		4, 40, 5,
	})

	tests := []struct {
		name      string
		withMean  bool
		withStd   bool
		wantMean  []float64
		wantScale []float64
	}{
		{"center and scale", true, true, []float64{2.5, 25, 5}, []float64{1.118033988749895, 11.180339887498949, 1}},
		{"center only", true, false, []float64{2.5, 25, 5}, []float64{1, 1, 1}},
		{"scale only", false, true, []float64{0, 0, 0}, []float64{1.118033988749895, 11.180339887498949, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStandardScaler(tt.withMean, tt.withStd)
			xt, err := s.FitTransform(X)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.wantMean, s.Mean, 1e-12)
			assert.InDeltaSlice(t, tt.wantScale, s.Scale, 1e-12)

			back, err := s.InverseTransform(xt)
			require.NoError(t, err)
			assert.True(t, mat.EqualApprox(X, back, 1e-12))
		})
	}
}

func TestStandardScalerErrors(t *testing.T) {
	s := NewStandardScaler(true, true)
	_, err := s.Transform(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, s.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	_, err = s.Transform(mat.NewDense(2, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
	assert.Contains(t, s.String(), "n_features=2")
}

func TestCenterVector(t *testing.T) {
	y, m := CenterVector([]float64{1, 2, 3, 6})
	assert.Equal(t, 3.0, m)
	assert.Equal(t, []float64{-2, -1, 0, 3}, y)

	y, m = CenterVector(nil)
	assert.Nil(t, y)
	assert.Zero(t, m)
}
