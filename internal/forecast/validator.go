package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

// =============================================================================
// Forecast Verifier
// =============================================================================

// ActualsFetcher 예측 기간의 실제 관측값 제공
type ActualsFetcher interface {
	FetchActuals(ctx context.Context, loc contracts.Location, variable string, from, to time.Time) (*contracts.TimeSeries, error)
}

// VerificationStore 검증에 필요한 저장소 기능
type VerificationStore interface {
	GetRun(ctx context.Context, runID string) (*contracts.RunResult, error)
	ListUnverified(ctx context.Context, asOf time.Time, limit int) ([]RunSummary, error)
	SaveVerification(ctx context.Context, runID string, metrics []contracts.ModelMetrics, verifiedAt time.Time) error
}

// Verifier 저장된 예측 vs 실제 관측 사후 검증
// ⭐ SSOT: 예측 정확도 사후 검증 로직
type Verifier struct {
	store   VerificationStore
	actuals ActualsFetcher
	log     zerolog.Logger
	now     func() time.Time
}

// NewVerifier 새 검증기 생성
func NewVerifier(store VerificationStore, actuals ActualsFetcher, log zerolog.Logger) *Verifier {
	return &Verifier{
		store:   store,
		actuals: actuals,
		log:     log.With().Str("component", "forecast.verifier").Logger(),
		now:     time.Now,
	}
}

// VerifyDue 기간이 끝난 미검증 실행 일괄 검증, 검증된 개수 반환
func (v *Verifier) VerifyDue(ctx context.Context, limit int) (int, error) {
	runs, err := v.store.ListUnverified(ctx, v.now(), limit)
	if err != nil {
		return 0, err
	}

	verified := 0
	for _, run := range runs {
		if _, err := v.VerifyRun(ctx, run.RunID); err != nil {
			v.log.Warn().Err(err).
				Str("run_id", run.RunID).
				Msg("verification failed")
			continue
		}
		verified++
	}

	v.log.Info().
		Int("candidates", len(runs)).
		Int("verified", verified).
		Msg("forecast verification completed")
	return verified, nil
}

// VerifyRun 단일 실행 검증 (모델 + 앙상블)
func (v *Verifier) VerifyRun(ctx context.Context, runID string) ([]contracts.ModelMetrics, error) {
	run, err := v.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Location == nil {
		return nil, &contracts.ValidationError{Field: "location", Reason: "run has no location to fetch actuals for"}
	}

	forecasts := append([]*contracts.ForecastResult(nil), run.Forecasts...)
	if run.Ensemble != nil {
		forecasts = append(forecasts, &contracts.ForecastResult{Model: contracts.ModelEnsemble, Points: run.Ensemble.Points})
	}
	from, to, ok := forecastWindow(forecasts)
	if !ok {
		return nil, &contracts.ValidationError{Field: "run", Reason: "run has no forecast points"}
	}

	actual, err := v.actuals.FetchActuals(ctx, *run.Location, run.Variable, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch actuals: %w", err)
	}
	metrics, err := compare(forecasts, actual)
	if err != nil {
		return nil, err
	}
	if len(metrics) == 0 {
		return nil, &contracts.InsufficientDataError{Have: 0, Need: 1}
	}

	if err := v.store.SaveVerification(ctx, runID, metrics, v.now()); err != nil {
		return nil, err
	}

	for _, m := range metrics {
		v.log.Debug().
			Str("run_id", runID).
			Str("model", string(m.Model)).
			Float64("mae", m.MAE).
			Float64("rmse", m.RMSE).
			Msg("model verified")
	}
	return metrics, nil
}

func forecastWindow(forecasts []*contracts.ForecastResult) (time.Time, time.Time, bool) {
	var from, to time.Time
	found := false
	for _, f := range forecasts {
		for _, p := range f.Points {
			if !found || p.Time.Before(from) {
				from = p.Time
			}
			if !found || p.Time.After(to) {
				to = p.Time
			}
			found = true
		}
	}
	return from, to, found
}

// CompareWith 실행 결과(모델 + 앙상블)를 기준 시계열과 겹치는 시각에서 비교
// 공급자 예보를 기준선으로 둘 때도 사용
func CompareWith(run *contracts.RunResult, reference *contracts.TimeSeries) ([]contracts.ModelMetrics, error) {
	forecasts := append([]*contracts.ForecastResult(nil), run.Forecasts...)
	if run.Ensemble != nil {
		forecasts = append(forecasts, &contracts.ForecastResult{Model: contracts.ModelEnsemble, Points: run.Ensemble.Points})
	}
	return compare(forecasts, reference)
}

func compare(forecasts []*contracts.ForecastResult, reference *contracts.TimeSeries) ([]contracts.ModelMetrics, error) {
	if reference == nil {
		return nil, nil
	}
	observed := make(map[int64]contracts.Observation, reference.Len())
	for _, p := range reference.Points {
		if !p.Missing() {
			observed[p.Time.UnixNano()] = p
		}
	}

	var metrics []contracts.ModelMetrics
	for _, f := range forecasts {
		matched := &contracts.ForecastResult{Model: f.Model}
		var truth []contracts.Observation
		for _, p := range f.Points {
			if obs, ok := observed[p.Time.UnixNano()]; ok {
				matched.Points = append(matched.Points, p)
				truth = append(truth, obs)
			}
		}
		if len(truth) == 0 {
			continue
		}
		m, err := Evaluate(matched, truth)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, nil
}
