package contracts

import (
	"fmt"
	"strings"
	"time"
)

// ModelKind 예측 모델 종류 태그
type ModelKind string

const (
	// ModelStatistical ARIMA 계열 (자동 차수 선택)
	ModelStatistical ModelKind = "statistical"
	// ModelSeasonal 추세 + 푸리에 계절성 가법 모델
	ModelSeasonal ModelKind = "seasonal"
	// ModelNeural 순환 신경망 (재귀 다단계 예측)
	ModelNeural ModelKind = "sequential-neural"
	// ModelTree 그래디언트 부스팅 회귀 트리 (재귀 다단계 예측)
	ModelTree ModelKind = "tree-boosted"
	// ModelEnsemble 앙상블 (실행 시 기본 모델로 확장)
	ModelEnsemble ModelKind = "ensemble"
)

// BaseModels 기본 모델 4종 (정규 순서)
// ⭐ SSOT: 모델 순서는 여기서만 정의
var BaseModels = []ModelKind{ModelStatistical, ModelSeasonal, ModelNeural, ModelTree}

var modelAliases = map[string]ModelKind{
	"statistical":       ModelStatistical,
	"arima":             ModelStatistical,
	"seasonal":          ModelSeasonal,
	"prophet":           ModelSeasonal,
	"sequential-neural": ModelNeural,
	"neural":            ModelNeural,
	"lstm":              ModelNeural,
	"rnn":               ModelNeural,
	"tree-boosted":      ModelTree,
	"tree":              ModelTree,
	"xgboost":           ModelTree,
	"gbt":               ModelTree,
	"ensemble":          ModelEnsemble,
}

// ParseModelKind 문자열(별칭 포함)을 ModelKind 로 변환
func ParseModelKind(s string) (ModelKind, error) {
	if k, ok := modelAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return "", &ValidationError{Field: "model", Reason: fmt.Sprintf("unknown model %q", s)}
}

// UnmarshalText JSON 입력에서도 별칭 허용
func (k *ModelKind) UnmarshalText(text []byte) error {
	parsed, err := ParseModelKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseModelKinds 쉼표 구분 목록 변환
func ParseModelKinds(list []string) ([]ModelKind, error) {
	out := make([]ModelKind, 0, len(list))
	for _, raw := range list {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			k, err := ParseModelKind(part)
			if err != nil {
				return nil, err
			}
			out = append(out, k)
		}
	}
	return out, nil
}

// IsBase 기본 모델 여부
func (k ModelKind) IsBase() bool {
	for _, b := range BaseModels {
		if b == k {
			return true
		}
	}
	return false
}

// Label 표 출력용 이름
func (k ModelKind) Label() string {
	switch k {
	case ModelStatistical:
		return "ARIMA"
	case ModelSeasonal:
		return "Seasonal"
	case ModelNeural:
		return "RNN"
	case ModelTree:
		return "GBT"
	case ModelEnsemble:
		return "Ensemble"
	default:
		return string(k)
	}
}

// ForecastPoint 단일 예측값 (구간은 지원 모델만)
type ForecastPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
	Lower *float64  `json:"lower,omitempty"`
	Upper *float64  `json:"upper,omitempty"`
}

// HasInterval 예측 구간 존재 여부
func (p ForecastPoint) HasInterval() bool {
	return p.Lower != nil && p.Upper != nil
}

// Bound 포인터 헬퍼
func Bound(v float64) *float64 {
	return &v
}

// ForecastResult 모델별 예측 결과 (반환 후 불변)
type ForecastResult struct {
	Model            ModelKind       `json:"model"`
	Points           []ForecastPoint `json:"points"`
	TrainingDuration time.Duration   `json:"training_duration"`
	Params           map[string]any  `json:"params,omitempty"`
	Notes            []string        `json:"notes,omitempty"`
}

// Times 타임스탬프 목록
func (r *ForecastResult) Times() []time.Time {
	out := make([]time.Time, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Time
	}
	return out
}

// Values 예측값 목록
func (r *ForecastResult) Values() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Value
	}
	return out
}

// HasInterval 모든 포인트에 구간이 있는지
func (r *ForecastResult) HasInterval() bool {
	if len(r.Points) == 0 {
		return false
	}
	for _, p := range r.Points {
		if !p.HasInterval() {
			return false
		}
	}
	return true
}

// MAPEUndefined 실측값에 0 이 있을 때의 MAPE 값
const MAPEUndefined = -1.0

// ModelMetrics 홀드아웃 평가 지표
type ModelMetrics struct {
	Model            ModelKind     `json:"model"`
	MAE              float64       `json:"mae"`
	RMSE             float64       `json:"rmse"`
	MAPE             float64       `json:"mape"` // 퍼센트, 정의 불가 시 MAPEUndefined
	TrainingDuration time.Duration `json:"training_duration"`
	HoldoutSize      int           `json:"holdout_size"`
}

// MAPEDefined MAPE 사용 가능 여부
func (m ModelMetrics) MAPEDefined() bool {
	return m.MAPE != MAPEUndefined
}

// EnsembleForecast 가중 결합 결과
type EnsembleForecast struct {
	Points  []ForecastPoint       `json:"points"`
	Weights map[ModelKind]float64 `json:"weights"`
	Method  string                `json:"method"`
}

// FeatureScore 피처 중요도 (전체 합 1로 정규화)
type FeatureScore struct {
	Feature string  `json:"feature"`
	Score   float64 `json:"score"`
}

// SkippedModel 실패/타임아웃으로 제외된 모델
type SkippedModel struct {
	Model  ModelKind `json:"model"`
	Reason string    `json:"reason"`
}
