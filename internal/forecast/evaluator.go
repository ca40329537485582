package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

// Evaluate 홀드아웃 실측값 대비 MAE / RMSE / MAPE(%)
// 타임스탬프는 개수와 각 시점이 정확히 일치해야 함
func Evaluate(forecast *contracts.ForecastResult, truth []contracts.Observation) (contracts.ModelMetrics, error) {
	if forecast == nil {
		return contracts.ModelMetrics{}, &contracts.ValidationError{Field: "forecast", Reason: "nil forecast"}
	}
	metrics := contracts.ModelMetrics{Model: forecast.Model, TrainingDuration: forecast.TrainingDuration}

	if len(forecast.Points) == 0 {
		return metrics, &contracts.ValidationError{Field: "forecast", Reason: "no points to evaluate"}
	}
	if len(forecast.Points) != len(truth) {
		return metrics, &contracts.ValidationError{
			Field:  "ground_truth",
			Reason: fmt.Sprintf("length mismatch: forecast %d, truth %d", len(forecast.Points), len(truth)),
		}
	}

	n := len(truth)
	pred := make([]float64, n)
	actual := make([]float64, n)
	for i, p := range forecast.Points {
		if !p.Time.Equal(truth[i].Time) {
			return metrics, &contracts.ValidationError{
				Field:  "ground_truth",
				Reason: fmt.Sprintf("timestamp mismatch at %d: %s vs %s", i, p.Time, truth[i].Time),
			}
		}
		if truth[i].Missing() {
			return metrics, &contracts.ValidationError{Field: "ground_truth", Reason: fmt.Sprintf("missing value at %d", i)}
		}
		pred[i] = p.Value
		actual[i] = truth[i].Value
	}

	diff := make([]float64, n)
	floats.SubTo(diff, actual, pred)
	metrics.MAE = floats.Norm(diff, 1) / float64(n)
	metrics.RMSE = floats.Norm(diff, 2) / math.Sqrt(float64(n))
	metrics.MAPE = mape(actual, diff)
	metrics.HoldoutSize = n
	return metrics, nil
}

// mape 실측값에 0 이 하나라도 있으면 MAPEUndefined
func mape(actual, diff []float64) float64 {
	sum := 0.0
	for i, a := range actual {
		if a == 0 {
			return contracts.MAPEUndefined
		}
		sum += math.Abs(diff[i] / a)
	}
	return 100 * sum / float64(len(actual))
}
