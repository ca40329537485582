package forecast

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

// TopFeatures RunResult 에 노출할 피처 중요도 개수
const TopFeatures = 10

// RunRequest 예측 실행 요청
type RunRequest struct {
	Series    *contracts.TimeSeries
	Horizon   int
	Models    []contracts.ModelKind // 비어있으면 기본 4종 + 앙상블
	Overrides *Overrides
}

// RunObserver 실행/모델 단위 관측 훅 (메트릭 수집용)
type RunObserver interface {
	ObserveModel(kind contracts.ModelKind, duration time.Duration, err error)
	ObserveRun(result *contracts.RunResult, duration time.Duration, err error)
}

// Orchestrator 전처리 → 병렬 모델 학습/평가 → 앙상블 결합
// ⭐ SSOT: 예측 실행 흐름은 여기서만 조정
type Orchestrator struct {
	opts     Options
	factory  ModelFactory
	observer RunObserver
	log      zerolog.Logger
	now      func() time.Time
}

// OrchestratorOption 생성 옵션
type OrchestratorOption func(*Orchestrator)

// WithModelFactory 모델 생성 함수 교체 (테스트용)
func WithModelFactory(f ModelFactory) OrchestratorOption {
	return func(o *Orchestrator) { o.factory = f }
}

// WithObserver 메트릭 훅 설정
func WithObserver(obs RunObserver) OrchestratorOption {
	return func(o *Orchestrator) { o.observer = obs }
}

// NewOrchestrator 생성
func NewOrchestrator(opts Options, log zerolog.Logger, options ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		opts:    opts,
		factory: NewModel,
		log:     log.With().Str("component", "forecast.orchestrator").Logger(),
		now:     time.Now,
	}
	for _, apply := range options {
		apply(o)
	}
	return o
}

// Defaults 기본 설정
func (o *Orchestrator) Defaults() Options {
	return o.opts
}

// modelOutcome 모델 태스크 결과 슬롯 (태스크별 단독 소유)
type modelOutcome struct {
	forecast   *contracts.ForecastResult
	metrics    contracts.ModelMetrics
	importance []contracts.FeatureScore
	err        error
}

// ResolveModels 요청 모델 목록을 기본 모델 집합으로 정리 (정규 순서, 중복 제거)
// "ensemble" 은 기본 모델이 하나도 없을 때만 4종 전체로 확장, 앙상블 결합은 항상 수행
func ResolveModels(requested []contracts.ModelKind) ([]contracts.ModelKind, error) {
	selected := make(map[contracts.ModelKind]bool)
	for _, k := range requested {
		switch {
		case k == contracts.ModelEnsemble:
		case k.IsBase():
			selected[k] = true
		default:
			return nil, &contracts.ValidationError{Field: "models", Reason: fmt.Sprintf("unknown model %q", k)}
		}
	}
	if len(selected) == 0 {
		return append([]contracts.ModelKind(nil), contracts.BaseModels...), nil
	}
	out := make([]contracts.ModelKind, 0, len(selected))
	for _, k := range contracts.BaseModels {
		if selected[k] {
			out = append(out, k)
		}
	}
	return out, nil
}

// Run 예측 실행
// 전처리/검증 실패는 부분 결과 없이 에러, 개별 모델 실패는 스킵으로 기록
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*contracts.RunResult, error) {
	started := o.now()
	result, err := o.run(ctx, req, started)
	if o.observer != nil {
		o.observer.ObserveRun(result, o.now().Sub(started), err)
	}
	return result, err
}

func (o *Orchestrator) run(ctx context.Context, req RunRequest, started time.Time) (*contracts.RunResult, error) {
	result := &contracts.RunResult{
		RunID:       uuid.NewString(),
		Horizon:     req.Horizon,
		State:       contracts.RunReceived,
		ModelStates: make(map[contracts.ModelKind]contracts.ModelState),
		CreatedAt:   started.UTC(),
	}
	log := o.log.With().Str("run_id", result.RunID).Logger()

	opts := o.opts.Apply(req.Overrides)
	if err := opts.Validate(); err != nil {
		return nil, o.fail(log, result, err)
	}
	if opts.MaxHorizon > 0 && req.Horizon > opts.MaxHorizon {
		return nil, o.fail(log, result, &contracts.ValidationError{
			Field:  "horizon",
			Reason: fmt.Sprintf("must be <= %d, got %d", opts.MaxHorizon, req.Horizon),
		})
	}
	models, err := ResolveModels(req.Models)
	if err != nil {
		return nil, o.fail(log, result, err)
	}
	result.Requested = append(append([]contracts.ModelKind(nil), models...), contracts.ModelEnsemble)
	if req.Series != nil {
		result.SeriesName = req.Series.Name
		result.Variable = req.Series.Variable
		if req.Series.Location != nil {
			loc := *req.Series.Location
			result.Location = &loc
		}
	}

	ds, err := Prepare(req.Series, req.Horizon)
	if err != nil {
		return nil, o.fail(log, result, err)
	}
	result.State = contracts.RunPrepared
	result.Step = ds.Step
	result.TrainSize = ds.Train.Len()
	result.HoldoutSize = ds.Holdout.Len()
	result.FilledPoints = ds.Filled
	log.Debug().
		Int("train", ds.Train.Len()).
		Int("holdout", ds.Holdout.Len()).
		Int("filled", ds.Filled).
		Dur("step", ds.Step).
		Msg("series prepared")

	result.State = contracts.RunFitting
	for _, k := range models {
		result.ModelStates[k] = contracts.ModelFitting
	}
	outcomes := o.fitAll(ctx, log, ds, models, opts)

	var reasons []string
	for i, k := range models {
		out := outcomes[i]
		if out.err != nil {
			result.ModelStates[k] = contracts.ModelSkipped
			result.Skipped = append(result.Skipped, contracts.SkippedModel{Model: k, Reason: out.err.Error()})
			reasons = append(reasons, out.err.Error())
			log.Warn().Err(out.err).Str("model", string(k)).Msg("model skipped")
			continue
		}
		result.ModelStates[k] = contracts.ModelEvaluated
		result.Forecasts = append(result.Forecasts, out.forecast)
		result.Metrics = append(result.Metrics, out.metrics)
		if len(out.importance) > 0 {
			result.FeatureImportance = topFeatures(out.importance, TopFeatures)
		}
	}
	result.State = contracts.RunEvaluated

	if len(result.Forecasts) == 0 {
		return nil, o.fail(log, result, &contracts.EmptyEnsembleError{
			Reason: "all models failed: " + strings.Join(reasons, "; "),
		})
	}

	weights, method := InverseRMSEWeights(result.Metrics), MethodInverseRMSE
	if opts.Weights != nil {
		weights, method = opts.Weights, MethodCustom
	}
	combined, err := Combine(result.Forecasts, weights)
	if err != nil {
		return nil, o.fail(log, result, err)
	}
	combined.Method = method
	result.Ensemble = combined
	result.State = contracts.RunCombined

	result.State = contracts.RunDone
	result.Duration = o.now().Sub(started)
	log.Info().
		Int("models", len(result.Forecasts)).
		Int("skipped", len(result.Skipped)).
		Dur("duration", result.Duration).
		Msg("forecast run completed")
	return result, nil
}

func (o *Orchestrator) fail(log zerolog.Logger, result *contracts.RunResult, err error) error {
	result.State = contracts.RunFailed
	log.Warn().Err(err).Msg("forecast run failed")
	return err
}

// fitAll 모델별 태스크 병렬 실행, Wait 가 평가/결합 전 배리어
func (o *Orchestrator) fitAll(ctx context.Context, log zerolog.Logger, ds *PreparedDataset, models []contracts.ModelKind, opts Options) []modelOutcome {
	outcomes := make([]modelOutcome, len(models))

	var g errgroup.Group
	g.SetLimit(len(models))
	for i, kind := range models {
		g.Go(func() error {
			started := o.now()
			outcomes[i] = o.runWithTimeout(ctx, kind, ds, opts)
			if o.observer != nil {
				o.observer.ObserveModel(kind, o.now().Sub(started), outcomes[i].err)
			}
			log.Debug().
				Str("model", string(kind)).
				Dur("elapsed", o.now().Sub(started)).
				Bool("ok", outcomes[i].err == nil).
				Msg("model task finished")
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// runWithTimeout 제한 시간을 넘긴 모델은 스킵 처리
// 학습 고루틴은 협조적으로 ctx 를 확인하지만 즉시 중단되지 않을 수 있으며, 늦게 도착한 결과는 버려짐
func (o *Orchestrator) runWithTimeout(ctx context.Context, kind contracts.ModelKind, ds *PreparedDataset, opts Options) modelOutcome {
	tctx := ctx
	cancel := func() {}
	if opts.FitTimeout > 0 {
		tctx, cancel = context.WithTimeout(ctx, opts.FitTimeout)
	}
	defer cancel()

	done := make(chan modelOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.log.Error().
					Str("model", string(kind)).
					Interface("panic", r).
					Str("stack", string(debug.Stack())).
					Msg("model panic recovered")
				done <- modelOutcome{err: &contracts.ModelFitError{Model: kind, Reason: fmt.Sprintf("panic: %v", r)}}
			}
		}()
		done <- o.runModel(tctx, kind, ds, opts)
	}()

	select {
	case out := <-done:
		return out
	case <-tctx.Done():
		reason := "timed out"
		if errors.Is(tctx.Err(), context.Canceled) {
			reason = "cancelled"
		}
		return modelOutcome{err: &contracts.ModelFitError{Model: kind, Reason: reason, Err: tctx.Err()}}
	}
}

// runModel 학습 구간 적합 → 홀드아웃 예측/평가 → 전체 재적합 → horizon 예측
func (o *Orchestrator) runModel(ctx context.Context, kind contracts.ModelKind, ds *PreparedDataset, opts Options) modelOutcome {
	evalModel, err := o.factory(kind, opts)
	if err != nil {
		return modelOutcome{err: asFitError(kind, "create", err)}
	}
	fitStart := o.now()
	if err := evalModel.Fit(ctx, ds.TrainingData()); err != nil {
		return modelOutcome{err: asFitError(kind, "fit on training partition", err)}
	}
	trainDuration := o.now().Sub(fitStart)

	holdoutForecast, err := evalModel.Predict(ds.Holdout.Len())
	if err != nil {
		return modelOutcome{err: asFitError(kind, "predict holdout", err)}
	}
	holdoutForecast.TrainingDuration = trainDuration
	metrics, err := Evaluate(holdoutForecast, ds.Holdout.Observations())
	if err != nil {
		return modelOutcome{err: asFitError(kind, "evaluate", err)}
	}

	finalModel, err := o.factory(kind, opts)
	if err != nil {
		return modelOutcome{err: asFitError(kind, "create", err)}
	}
	refitStart := o.now()
	if err := finalModel.Fit(ctx, ds.FullData()); err != nil {
		return modelOutcome{err: asFitError(kind, "refit on full series", err)}
	}
	refitDuration := o.now().Sub(refitStart)

	final, err := finalModel.Predict(ds.Horizon)
	if err != nil {
		return modelOutcome{err: asFitError(kind, "predict horizon", err)}
	}
	final.TrainingDuration = refitDuration

	out := modelOutcome{forecast: final, metrics: metrics}
	if fi, ok := finalModel.(FeatureImportancer); ok {
		out.importance = fi.FeatureImportance()
	}
	return out
}

// asFitError 모든 모델 단위 실패를 ModelFitError 로 통일
func asFitError(kind contracts.ModelKind, stage string, err error) error {
	var fitErr *contracts.ModelFitError
	if errors.As(err, &fitErr) {
		return err
	}
	return &contracts.ModelFitError{Model: kind, Reason: stage, Err: err}
}

// topFeatures 상위 n 개를 다시 합 1 로 정규화 (입력은 내림차순)
func topFeatures(scores []contracts.FeatureScore, n int) []contracts.FeatureScore {
	if len(scores) > n {
		scores = scores[:n]
	}
	total := 0.0
	for _, s := range scores {
		total += s.Score
	}
	out := make([]contracts.FeatureScore, len(scores))
	for i, s := range scores {
		out[i] = s
		if total > 0 {
			out[i].Score = s.Score / total
		}
	}
	return out
}
