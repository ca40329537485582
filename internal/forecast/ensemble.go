package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

// 앙상블 가중 방식
const (
	MethodEqual       = "equal"
	MethodInverseRMSE = "inverse-rmse"
	MethodCustom      = "custom"
)

// InverseRMSEWeights (1/RMSE_i) / Σ(1/RMSE_j)
// RMSE 가 0 (또는 극소) 이면 MaxFloat64/n 으로 상한 → 합이 유한하게 유지됨
func InverseRMSEWeights(metrics []contracts.ModelMetrics) map[contracts.ModelKind]float64 {
	if len(metrics) == 0 {
		return nil
	}
	ceiling := math.MaxFloat64 / float64(len(metrics))
	inv := make(map[contracts.ModelKind]float64, len(metrics))
	largest := 0.0
	for _, m := range metrics {
		w := 0.0
		switch {
		case math.IsNaN(m.RMSE) || m.RMSE < 0 || math.IsInf(m.RMSE, 1):
			w = 0
		case m.RMSE == 0:
			w = ceiling
		default:
			w = math.Min(1/m.RMSE, ceiling)
		}
		inv[m.Model] = w
		largest = math.Max(largest, w)
	}

	// 최대값으로 나눈 뒤 합산 (상한값 여러 개가 더해져도 오버플로 없음)
	total := 0.0
	for _, w := range inv {
		if largest > 0 {
			total += w / largest
		}
	}
	weights := make(map[contracts.ModelKind]float64, len(inv))
	for k, w := range inv {
		if total > 0 {
			weights[k] = (w / largest) / total
		} else {
			weights[k] = 1 / float64(len(inv))
		}
	}
	return weights
}

// Combine 타임스탬프 교집합에서 가중 평균
// weights 가 nil 이면 동일 가중, 아니면 검증 후 기여 모델 기준으로 정규화
func Combine(forecasts []*contracts.ForecastResult, weights map[contracts.ModelKind]float64) (*contracts.EnsembleForecast, error) {
	if len(forecasts) == 0 {
		return nil, &contracts.EmptyEnsembleError{Reason: "no forecasts to combine"}
	}

	method := MethodEqual
	w := make(map[contracts.ModelKind]float64, len(forecasts))
	if weights == nil {
		for _, f := range forecasts {
			w[f.Model] = 1 / float64(len(forecasts))
		}
	} else {
		method = MethodCustom
		total := 0.0
		for _, f := range forecasts {
			v, ok := weights[f.Model]
			if !ok {
				return nil, &contracts.ValidationError{Field: "weights", Reason: fmt.Sprintf("missing weight for %s", f.Model)}
			}
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return nil, &contracts.ValidationError{Field: "weights", Reason: fmt.Sprintf("invalid weight %v for %s", v, f.Model)}
			}
			total += v
		}
		if total <= 0 {
			return nil, &contracts.ValidationError{Field: "weights", Reason: "weights sum to zero"}
		}
		for _, f := range forecasts {
			w[f.Model] = weights[f.Model] / total
		}
	}

	times := intersectTimes(forecasts)
	if len(times) == 0 {
		return nil, &contracts.EmptyEnsembleError{Reason: "forecasts share no timestamps"}
	}

	lookup := make([]map[int64]contracts.ForecastPoint, len(forecasts))
	for i, f := range forecasts {
		lookup[i] = make(map[int64]contracts.ForecastPoint, len(f.Points))
		for _, p := range f.Points {
			lookup[i][p.Time.UnixNano()] = p
		}
	}

	out := &contracts.EnsembleForecast{
		Points:  make([]contracts.ForecastPoint, len(times)),
		Weights: w,
		Method:  method,
	}
	for j, t := range times {
		key := t.UnixNano()
		value, lower, upper := 0.0, 0.0, 0.0
		bounded := true
		for i, f := range forecasts {
			p := lookup[i][key]
			wi := w[f.Model]
			value += wi * p.Value
			if bounded && p.HasInterval() {
				lower += wi * *p.Lower
				upper += wi * *p.Upper
			} else {
				bounded = false
			}
		}
		point := contracts.ForecastPoint{Time: t, Value: value}
		if bounded {
			point.Lower = contracts.Bound(lower)
			point.Upper = contracts.Bound(upper)
		}
		out.Points[j] = point
	}
	return out, nil
}

// intersectTimes 모든 예측에 존재하는 시점 (오름차순)
func intersectTimes(forecasts []*contracts.ForecastResult) []time.Time {
	counts := make(map[int64]int)
	first := make(map[int64]time.Time)
	for _, f := range forecasts {
		seen := make(map[int64]bool, len(f.Points))
		for _, p := range f.Points {
			key := p.Time.UnixNano()
			if seen[key] {
				continue
			}
			seen[key] = true
			counts[key]++
			if _, ok := first[key]; !ok {
				first[key] = p.Time
			}
		}
	}

	var out []time.Time
	for key, c := range counts {
		if c == len(forecasts) {
			out = append(out, first[key])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
