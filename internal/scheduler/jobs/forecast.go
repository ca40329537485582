package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/yandri918/prediksi-cuaca/internal/brain"
	"github.com/yandri918/prediksi-cuaca/internal/locationconfig"
	"github.com/yandri918/prediksi-cuaca/pkg/logger"
)

// Pipeline runs one location forecast
type Pipeline interface {
	Run(ctx context.Context, cfg brain.RunConfig) (*brain.RunResult, error)
}

// DailyForecastJob forecasts every configured location and stores the runs
// Schedule: meta.forecast_schedule (기본 06:30, 전날 관측이 archive 에 반영된 뒤)
type DailyForecastJob struct {
	cfg      *locationconfig.Config
	hash     string
	pipeline Pipeline
	logger   *logger.Logger
}

// NewDailyForecastJob creates a new daily forecast job
func NewDailyForecastJob(cfg *locationconfig.Config, pipeline Pipeline, log *logger.Logger) (*DailyForecastJob, error) {
	hash, err := locationconfig.Hash(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash location config: %w", err)
	}
	return &DailyForecastJob{
		cfg:      cfg,
		hash:     hash,
		pipeline: pipeline,
		logger:   log,
	}, nil
}

// Name returns the job name
func (j *DailyForecastJob) Name() string {
	return "daily_forecast"
}

// Schedule returns the cron schedule from the location config
func (j *DailyForecastJob) Schedule() string {
	return j.cfg.Meta.ForecastSchedule
}

// Run forecasts each location × variable
// 개별 지점 실패는 기록 후 계속, 전부 실패하면 에러 (재시도 대상)
func (j *DailyForecastJob) Run(ctx context.Context) error {
	requests := j.cfg.Requests()
	j.logger.WithFields(map[string]any{
		"config_id":   j.cfg.Meta.ConfigID,
		"config_hash": j.hash[:12],
		"requests":    len(requests),
	}).Info("Starting scheduled location forecasts")

	var errs []error
	succeeded := 0
	for _, req := range requests {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := j.pipeline.Run(ctx, req)
		fields := map[string]any{
			"location": req.Location.Name,
			"variable": req.Variable,
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", req.Location.Name, req.Variable, err))
			j.logger.WithError(err).WithFields(fields).Warn("Location forecast failed")
			continue
		}

		succeeded++
		fields["run_id"] = result.Run.RunID
		fields["saved"] = result.Saved
		j.logger.WithFields(fields).Info("Location forecast stored")
	}

	j.logger.WithFields(map[string]any{
		"succeeded": succeeded,
		"failed":    len(errs),
	}).Info("Scheduled location forecasts finished")

	if succeeded == 0 && len(errs) > 0 {
		return fmt.Errorf("all %d location forecasts failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
