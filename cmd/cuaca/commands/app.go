package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/yandri918/prediksi-cuaca/internal/brain"
	"github.com/yandri918/prediksi-cuaca/internal/forecast"
	"github.com/yandri918/prediksi-cuaca/internal/metrics"
	"github.com/yandri918/prediksi-cuaca/internal/weather"
	"github.com/yandri918/prediksi-cuaca/pkg/config"
	"github.com/yandri918/prediksi-cuaca/pkg/database"
	"github.com/yandri918/prediksi-cuaca/pkg/httputil"
	"github.com/yandri918/prediksi-cuaca/pkg/logger"
	"github.com/yandri918/prediksi-cuaca/pkg/redis"
)

// app 커맨드 공용 의존성 그래프
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB // DATABASE_URL 미설정 시 nil
	redis    *redis.Client
	weather  *weather.Client
	engine   *forecast.Orchestrator
	repo     *forecast.Repository // db 가 nil 이면 nil
	pipeline *brain.Orchestrator
	registry *prometheus.Registry
	recorder *metrics.Recorder
}

// loadConfig 전역 플래그 반영
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if env != "" {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// forecastOptions 환경 설정 → 엔진 옵션
func forecastOptions(cfg *config.Config) forecast.Options {
	opts := forecast.DefaultOptions()
	opts.WindowSize = cfg.Forecast.WindowSize
	opts.ConfidenceLevel = cfg.Forecast.ConfidenceLevel
	opts.Seed = cfg.Forecast.Seed
	opts.DropoutSamples = cfg.Forecast.DropoutSamples
	opts.Epochs = cfg.Forecast.Epochs
	opts.FitTimeout = cfg.Forecast.FitTimeout
	opts.MaxHorizon = cfg.Forecast.MaxHorizon
	return opts
}

// newApp 설정 로드 → 로거 → DB/Redis → Open-Meteo → 엔진 → 파이프라인
// requireDB 가 true 인데 DATABASE_URL 이 없으면 에러
func newApp(ctx context.Context, requireDB bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg)

	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.recorder = metrics.New(a.registry)

	if cfg.Database.Enabled() {
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.repo = forecast.NewRepository(db.Pool)
		log.Info("Connected to database")
	} else if requireDB {
		return nil, errors.New("DATABASE_URL is required for this command")
	}

	rdb, err := redis.New(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = rdb

	httpClient := httputil.New(cfg, log)
	a.weather = weather.NewClient(cfg, httpClient, redis.NewCache(rdb, "cuaca"), log.Component("weather"))
	a.engine = forecast.NewOrchestrator(forecastOptions(cfg), log.Component("forecast"), forecast.WithObserver(a.recorder))

	// 저장소가 없으면 파이프라인 저장 단계 생략
	var saver brain.RunSaver
	if a.repo != nil {
		saver = a.repo
	}
	a.pipeline = brain.NewOrchestrator(a.weather, a.engine, saver, log.Zerolog())
	return a, nil
}

// verifier 저장된 실행 사후 검증기
func (a *app) verifier() *forecast.Verifier {
	return forecast.NewVerifier(a.repo, a.weather, a.log.Component("verifier"))
}

// Close releases connections
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
