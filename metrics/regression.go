// Package metrics は回帰の評価指標と推論の収束診断を提供する
package metrics

import (
	"math"

	"github.com/viterin/vek"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/fastasd/pkg/errors"
)

func check(op string, yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred []float64) (float64, error) {
	if err := check("MSE", yTrue, yPred); err != nil {
		return 0, err
	}
	r := vek.Sub(yTrue, yPred)
	return vek.Dot(r, r) / float64(len(r)), nil
}

// R2Score は決定係数（R²）を計算する
func R2Score(yTrue, yPred []float64) (float64, error) {
	if err := check("R2Score", yTrue, yPred); err != nil {
		return 0, err
	}
	mean := stat.Mean(yTrue, nil)
	var tss, rss float64
	for i, v := range yTrue {
		tss += (v - mean) * (v - mean)
		rss += (v - yPred[i]) * (v - yPred[i])
	}
	// 全変動が0の場合（すべてのyTrueが同じ値）
	if tss == 0 {
		return 0, errors.Newf("R2Score: total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}

// RelativeResidual は |y - yhat| / |y| を返す。推論ループの sq_er と同じ量。
func RelativeResidual(yTrue, yPred []float64) (float64, error) {
	if err := check("RelativeResidual", yTrue, yPred); err != nil {
		return 0, err
	}
	ny := vek.Norm(yTrue)
	if ny == 0 {
		return 0, errors.NewValueError("RelativeResidual", "response has zero norm")
	}
	return vek.Distance(yTrue, yPred) / ny, nil
}

// WeightChange は |w - wPrev| を返す。
func WeightChange(w, wPrev []float64) (float64, error) {
	if len(w) != len(wPrev) {
		return 0, errors.NewDimensionError("WeightChange", len(wPrev), len(w), 0)
	}
	if len(w) == 0 {
		return 0, nil
	}
	return vek.Distance(w, wPrev), nil
}

// CorrCoef は推定重みと真の重みの相関係数を返す。合成データでの評価に使う。
func CorrCoef(w, wTrue []float64) (float64, error) {
	if err := check("CorrCoef", wTrue, w); err != nil {
		return 0, err
	}
	c := stat.Correlation(w, wTrue, nil)
	if math.IsNaN(c) {
		return 0, errors.NewValueError("CorrCoef", "a vector has zero variance")
	}
	return c, nil
}
