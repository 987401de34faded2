package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X mat.Matrix, y []float64) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) ([]float64, error)
}

// Regressor は重みベクトルを持つ回帰モデルのインターフェース
type Regressor interface {
	Fitter
	Predictor
	// Weights は学習された重みを返す
	Weights() []float64
	// Score は決定係数（R²）を計算する
	Score(X mat.Matrix, y []float64) (float64, error)
}

// Transformer はデータ変換のインターフェース
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (*mat.Dense, error)
	FitTransform(X mat.Matrix) (*mat.Dense, error)
}
