package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
	"github.com/yandri918/prediksi-cuaca/internal/forecast"
	"github.com/yandri918/prediksi-cuaca/internal/weather"
)

// 지점 예측 기본값
const (
	DefaultHistoryDays = 90
	DefaultHorizon     = 7
	MaxHistoryDays     = 3650
	MaxProviderDays    = 16
)

// Stage names
const (
	StageResolve  = "resolve"
	StageHistory  = "history"
	StageForecast = "forecast"
	StageBaseline = "baseline"
	StagePersist  = "persist"
)

// WeatherSource 기상 데이터 공급자
type WeatherSource interface {
	RecentHistory(ctx context.Context, loc contracts.Location, variable string, days int) (*contracts.TimeSeries, error)
	FetchDailyForecast(ctx context.Context, loc contracts.Location, days int, variable string) (*contracts.TimeSeries, error)
	SearchLocations(ctx context.Context, name string) ([]contracts.Location, error)
}

// Engine 예측 엔진
type Engine interface {
	Run(ctx context.Context, req forecast.RunRequest) (*contracts.RunResult, error)
}

// RunSaver 실행 결과 저장소
type RunSaver interface {
	SaveRun(ctx context.Context, result *contracts.RunResult) error
}

// RunConfig 지점 예측 요청
type RunConfig struct {
	Location        *contracts.Location   `json:"location,omitempty"`
	Query           string                `json:"query,omitempty"` // 좌표 대신 지명 검색
	Variable        string                `json:"variable,omitempty"`
	HistoryDays     int                   `json:"history_days,omitempty"`
	Horizon         int                   `json:"horizon,omitempty"`
	Models          []contracts.ModelKind `json:"models,omitempty"`
	Overrides       *forecast.Overrides   `json:"overrides,omitempty"`
	CompareProvider bool                  `json:"compare_provider,omitempty"`
	Save            bool                  `json:"save,omitempty"`
}

// RunResult 지점 예측 파이프라인 결과
type RunResult struct {
	Run             *contracts.RunResult     `json:"run,omitempty"`
	Location        contracts.Location       `json:"location"`
	Provider        *contracts.TimeSeries    `json:"provider,omitempty"`
	ProviderMetrics []contracts.ModelMetrics `json:"provider_metrics,omitempty"`
	Saved           bool                     `json:"saved"`
	Warnings        []string                 `json:"warnings,omitempty"`
	CompletedStages []string                 `json:"completed_stages"`
	Duration        time.Duration            `json:"duration"`
}

// Orchestrator 지점 해석 → 과거 관측 → 예측 → 공급자 비교 → 저장
// ⭐ SSOT: 지점 단위 예측 흐름은 여기서만 조율 (API, CLI, 스케줄러 공용)
type Orchestrator struct {
	weather WeatherSource
	engine  Engine
	store   RunSaver // nil 이면 저장 단계 생략
	log     zerolog.Logger
}

// NewOrchestrator creates a new location pipeline
func NewOrchestrator(source WeatherSource, engine Engine, store RunSaver, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		weather: source,
		engine:  engine,
		store:   store,
		log:     log.With().Str("component", "brain").Logger(),
	}
}

// Normalize 기본값 적용 및 범위 검증
func (c RunConfig) Normalize() (RunConfig, error) {
	if c.HistoryDays == 0 {
		c.HistoryDays = DefaultHistoryDays
	}
	if c.Horizon == 0 {
		c.Horizon = DefaultHorizon
	}
	if c.HistoryDays < 1 || c.HistoryDays > MaxHistoryDays {
		return c, &contracts.ValidationError{Field: "history_days", Reason: fmt.Sprintf("must be in [1, %d], got %d", MaxHistoryDays, c.HistoryDays)}
	}
	if c.Horizon < 1 {
		return c, &contracts.ValidationError{Field: "horizon", Reason: fmt.Sprintf("must be >= 1, got %d", c.Horizon)}
	}
	if c.Location == nil && strings.TrimSpace(c.Query) == "" {
		return c, &contracts.ValidationError{Field: "location", Reason: "either coordinates or a place name is required"}
	}
	v, err := weather.ParseVariable(c.Variable)
	if err != nil {
		return c, err
	}
	c.Variable = v.Name
	return c, nil
}

// Run 파이프라인 실행
// 실패 시에도 완료된 단계까지의 결과를 함께 반환
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	startTime := time.Now()
	result := &RunResult{CompletedStages: make([]string, 0, 5)}

	cfg, err := cfg.Normalize()
	if err != nil {
		return result, err
	}

	loc, err := o.resolve(ctx, cfg)
	if err != nil {
		return result, fmt.Errorf("resolve location: %w", err)
	}
	result.Location = loc
	result.CompletedStages = append(result.CompletedStages, StageResolve)

	log := o.log.With().
		Str("location", loc.Name).
		Str("variable", cfg.Variable).
		Int("horizon", cfg.Horizon).
		Logger()
	log.Info().Int("history_days", cfg.HistoryDays).Msg("starting location forecast")

	series, err := o.weather.RecentHistory(ctx, loc, cfg.Variable, cfg.HistoryDays)
	if err != nil {
		return result, fmt.Errorf("fetch history: %w", err)
	}
	result.CompletedStages = append(result.CompletedStages, StageHistory)

	run, err := o.engine.Run(ctx, forecast.RunRequest{
		Series:    series,
		Horizon:   cfg.Horizon,
		Models:    cfg.Models,
		Overrides: cfg.Overrides,
	})
	if err != nil {
		return result, err
	}
	run.Variable = cfg.Variable
	if run.Location == nil {
		l := loc
		run.Location = &l
	}
	result.Run = run
	result.CompletedStages = append(result.CompletedStages, StageForecast)

	if cfg.CompareProvider {
		if err := o.baseline(ctx, cfg, loc, result); err != nil {
			// 비교 실패는 경고로만 기록
			log.Warn().Err(err).Msg("provider baseline unavailable")
			result.Warnings = append(result.Warnings, "provider baseline: "+err.Error())
		} else {
			result.CompletedStages = append(result.CompletedStages, StageBaseline)
		}
	}

	if cfg.Save && o.store != nil {
		if err := o.store.SaveRun(ctx, run); err != nil {
			return result, fmt.Errorf("save run: %w", err)
		}
		result.Saved = true
		result.CompletedStages = append(result.CompletedStages, StagePersist)
	}

	result.Duration = time.Since(startTime)
	log.Info().
		Str("run_id", run.RunID).
		Int("models", len(run.Forecasts)).
		Dur("duration", result.Duration).
		Msg("location forecast completed")
	return result, nil
}

func (o *Orchestrator) resolve(ctx context.Context, cfg RunConfig) (contracts.Location, error) {
	if cfg.Location != nil {
		loc := *cfg.Location
		if err := loc.Validate(); err != nil {
			return loc, err
		}
		if loc.Name == "" {
			loc.Name = fmt.Sprintf("%.4f,%.4f", loc.Latitude, loc.Longitude)
		}
		return loc, nil
	}
	found, err := o.weather.SearchLocations(ctx, cfg.Query)
	if err != nil {
		return contracts.Location{}, err
	}
	if len(found) == 0 {
		return contracts.Location{}, &contracts.ValidationError{Field: "query", Reason: fmt.Sprintf("no location matches %q", cfg.Query)}
	}
	return found[0], nil
}

// ErrBaselineUnsupported 공급자 예보와 비교할 수 없는 요청
var ErrBaselineUnsupported = errors.New("provider baseline unsupported")

func (o *Orchestrator) baseline(ctx context.Context, cfg RunConfig, loc contracts.Location, result *RunResult) error {
	v, err := weather.ParseVariable(cfg.Variable)
	if err != nil {
		return err
	}
	if v.Granularity != weather.Daily {
		return fmt.Errorf("%w: %s is not a daily variable", ErrBaselineUnsupported, v.Name)
	}
	// 공급자 예보는 오늘부터 시작하고 모델 예측은 어제 다음날(=오늘)부터 시작
	days := cfg.Horizon
	if days > MaxProviderDays {
		days = MaxProviderDays
	}
	provider, err := o.weather.FetchDailyForecast(ctx, loc, days, v.Name)
	if err != nil {
		return err
	}
	metrics, err := forecast.CompareWith(result.Run, provider)
	if err != nil {
		return err
	}
	result.Provider = provider
	result.ProviderMetrics = metrics
	return nil
}
