// Package preprocessing はデータセットの標準化を行う
package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/fastasd/core/model"
	"github.com/YuminosukeSato/fastasd/pkg/errors"
)

// minScale より小さい標準偏差は 1 に置き換える（定数列のゼロ除算を避ける）
const minScale = 1e-8

// StandardScaler は列ごとに平均を引き、標準偏差で割る
type StandardScaler struct {
	state *model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差（母標準偏差）
	Scale []float64

	// WithMean は平均を引くかどうか
	WithMean bool

	// WithStd は標準偏差で割るかどうか
	WithStd bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler(true, false)
//	xc, err := scaler.FitTransform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		state:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// IsFitted は学習済みかどうかを返す
func (s *StandardScaler) IsFitted() bool { return s.state.IsFitted() }

// Fit は列ごとの平均と標準偏差を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1
		if s.WithStd && std >= minScale {
			s.Scale[j] = std
		}
	}

	s.state.SetDimensions(c, r)
	s.state.SetFitted()
	return nil
}

// Transform は学習済みの統計量でデータを変換する
func (s *StandardScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.state.RequireFitted("StandardScaler", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if nf, _ := s.state.GetDimensions(); c != nf {
		return nil, errors.NewDimensionError("StandardScaler.Transform", nf, c, 1)
	}

	out := mat.DenseCopyOf(X)
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		floats.Sub(row, s.Mean)
		floats.Div(row, s.Scale)
	}
	return out, nil
}

// FitTransform はFitとTransformを続けて実行する
func (s *StandardScaler) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は変換前のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.state.RequireFitted("StandardScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if nf, _ := s.state.GetDimensions(); c != nf {
		return nil, errors.NewDimensionError("StandardScaler.InverseTransform", nf, c, 1)
	}

	out := mat.DenseCopyOf(X)
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		floats.Mul(row, s.Scale)
		floats.Add(row, s.Mean)
	}
	return out, nil
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	nf, _ := s.state.GetDimensions()
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)", s.WithMean, s.WithStd, nf)
}

// CenterVector は y から平均を引いたコピーと平均値を返す
func CenterVector(y []float64) ([]float64, float64) {
	if len(y) == 0 {
		return nil, 0
	}
	m := stat.Mean(y, nil)
	out := append([]float64(nil), y...)
	floats.AddConst(-m, out)
	return out, m
}
