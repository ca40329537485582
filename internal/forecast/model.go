package forecast

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

// TrainingData 모델 학습 입력 (정규 격자, 결측 없음)
type TrainingData struct {
	Times    []time.Time
	Values   []float64
	Step     time.Duration
	Features *FeatureMatrix // 트리 모델 전용, nil 이면 모델이 직접 생성
}

// Len 길이
func (d TrainingData) Len() int {
	return len(d.Values)
}

// Last 마지막 시점
func (d TrainingData) Last() time.Time {
	return d.Times[len(d.Times)-1]
}

// Model 예측 모델 공통 인터페이스
// ⭐ SSOT: 모델은 실행마다 새로 생성 (전역 상태 없음)
type Model interface {
	Kind() contracts.ModelKind
	Fit(ctx context.Context, data TrainingData) error
	Predict(horizon int) (*contracts.ForecastResult, error)
}

// FeatureImportancer 피처 중요도를 제공하는 모델
type FeatureImportancer interface {
	FeatureImportance() []contracts.FeatureScore
}

// ModelFactory 모델 생성 함수
type ModelFactory func(kind contracts.ModelKind, opts Options) (Model, error)

// NewModel 태그로 모델 생성
func NewModel(kind contracts.ModelKind, opts Options) (Model, error) {
	switch kind {
	case contracts.ModelStatistical:
		return NewARIMA(DefaultARIMAConfig(opts.ConfidenceLevel)), nil
	case contracts.ModelSeasonal:
		cfg := DefaultSeasonalConfig(opts.ConfidenceLevel)
		cfg.Seed = opts.Seed
		return NewSeasonal(cfg), nil
	case contracts.ModelNeural:
		cfg := DefaultNeuralConfig()
		cfg.WindowSize = opts.WindowSize
		cfg.Epochs = opts.Epochs
		cfg.Seed = opts.Seed
		cfg.DropoutSamples = opts.DropoutSamples
		cfg.ConfidenceLevel = opts.ConfidenceLevel
		return NewNeural(cfg), nil
	case contracts.ModelTree:
		return NewBoosting(DefaultBoostingConfig()), nil
	default:
		return nil, &contracts.ValidationError{Field: "model", Reason: fmt.Sprintf("no model for %q", kind)}
	}
}

// futureTimes last 이후 horizon 개 격자 시점
func futureTimes(last time.Time, step time.Duration, horizon int) []time.Time {
	out := make([]time.Time, horizon)
	for h := 1; h <= horizon; h++ {
		out[h-1] = last.Add(time.Duration(h) * step)
	}
	return out
}

// checkVariance 분산 0 (상수) 시계열 거부 (통계 모델 전용, 차수 선택/AIC 가 정의되지 않음)
func checkVariance(kind contracts.ModelKind, values []float64) error {
	if len(values) < 2 {
		return contracts.NewModelFitError(kind, "need at least 2 observations, got %d", len(values))
	}
	mean, variance := stat.MeanVariance(values, nil)
	if variance <= 1e-12*(1+mean*mean) {
		return contracts.NewModelFitError(kind, "zero variance series")
	}
	return nil
}

// checkHorizon 예측 길이 검증
func checkHorizon(kind contracts.ModelKind, fitted bool, horizon int) error {
	if !fitted {
		return contracts.NewModelFitError(kind, "predict called before fit")
	}
	if horizon < 1 {
		return &contracts.ValidationError{Field: "horizon", Reason: fmt.Sprintf("must be >= 1, got %d", horizon)}
	}
	return nil
}

// newRand Seed 가 0 이 아니면 고정 시드 (재현 가능)
func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// zScore 양측 신뢰수준에 대한 정규분포 분위수
func zScore(confidence float64) float64 {
	return normalQuantile(1 - (1-confidence)/2)
}

// sampleQuantiles 정렬 후 하한/상한 분위수
func sampleQuantiles(samples []float64, confidence float64) (float64, float64) {
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sortFloats(sorted)
	alpha := (1 - confidence) / 2
	lo := stat.Quantile(alpha, stat.LinInterp, sorted, nil)
	hi := stat.Quantile(1-alpha, stat.LinInterp, sorted, nil)
	return lo, hi
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
