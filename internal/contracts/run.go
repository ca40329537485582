package contracts

import (
	"sort"
	"time"
)

// RunState 실행 상태
type RunState string

const (
	RunReceived  RunState = "RECEIVED"
	RunPrepared  RunState = "PREPARED"
	RunFitting   RunState = "FITTING"
	RunEvaluated RunState = "EVALUATED"
	RunCombined  RunState = "COMBINED"
	RunDone      RunState = "DONE"
	RunFailed    RunState = "FAILED"
)

// ModelState 모델별 상태
type ModelState string

const (
	ModelPending   ModelState = "PENDING"
	ModelFitting   ModelState = "FITTING"
	ModelEvaluated ModelState = "EVALUATED"
	ModelSkipped   ModelState = "SKIPPED"
)

// RunResult 한 번의 예측 실행 결과
// ⭐ SSOT: API/CLI/저장소가 공유하는 결과 구조
type RunResult struct {
	RunID             string                   `json:"run_id"`
	SeriesName        string                   `json:"series_name"`
	Variable          string                   `json:"variable,omitempty"`
	Location          *Location                `json:"location,omitempty"`
	Horizon           int                      `json:"horizon"`
	Step              time.Duration            `json:"step"`
	Requested         []ModelKind              `json:"requested"`
	Forecasts         []*ForecastResult        `json:"forecasts"`
	Metrics           []ModelMetrics           `json:"metrics"`
	Ensemble          *EnsembleForecast        `json:"ensemble,omitempty"`
	FeatureImportance []FeatureScore           `json:"feature_importance,omitempty"`
	Skipped           []SkippedModel           `json:"skipped,omitempty"`
	ModelStates       map[ModelKind]ModelState `json:"model_states"`
	State             RunState                 `json:"state"`
	TrainSize         int                      `json:"train_size"`
	HoldoutSize       int                      `json:"holdout_size"`
	FilledPoints      int                      `json:"filled_points"`
	Duration          time.Duration            `json:"duration"`
	CreatedAt         time.Time                `json:"created_at"`
}

// Forecast 모델별 예측 조회
func (r *RunResult) Forecast(kind ModelKind) *ForecastResult {
	for _, f := range r.Forecasts {
		if f.Model == kind {
			return f
		}
	}
	return nil
}

// Metric 모델별 지표 조회
func (r *RunResult) Metric(kind ModelKind) (ModelMetrics, bool) {
	for _, m := range r.Metrics {
		if m.Model == kind {
			return m, true
		}
	}
	return ModelMetrics{}, false
}

// BestModel RMSE 최소 모델
func (r *RunResult) BestModel() (ModelKind, bool) {
	if len(r.Metrics) == 0 {
		return "", false
	}
	sorted := make([]ModelMetrics, len(r.Metrics))
	copy(sorted, r.Metrics)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RMSE < sorted[j].RMSE })
	return sorted[0].Model, true
}

// Succeeded 성공한 모델 목록 (정규 순서)
func (r *RunResult) Succeeded() []ModelKind {
	out := make([]ModelKind, 0, len(r.Forecasts))
	for _, f := range r.Forecasts {
		out = append(out, f.Model)
	}
	return out
}
