package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yandri918/prediksi-cuaca/internal/brain"
	"github.com/yandri918/prediksi-cuaca/internal/contracts"
	"github.com/yandri918/prediksi-cuaca/internal/locationconfig"
	"github.com/yandri918/prediksi-cuaca/pkg/logger"
)

const locationsYAML = `
meta:
  config_id: test
  forecast_schedule: "0 30 6 * * *"
defaults:
  horizon: 7
locations:
  - name: Bogor
    latitude: -6.5971
    longitude: 106.806
  - name: Bandung
    latitude: -6.9175
    longitude: 107.6191
`

type fakePipeline struct {
	fail  map[string]error
	calls []string
}

func (p *fakePipeline) Run(_ context.Context, cfg brain.RunConfig) (*brain.RunResult, error) {
	p.calls = append(p.calls, cfg.Location.Name)
	if err := p.fail[cfg.Location.Name]; err != nil {
		return nil, err
	}
	return &brain.RunResult{Run: &contracts.RunResult{RunID: "run-" + cfg.Location.Name}, Saved: cfg.Save}, nil
}

func loadConfig(t *testing.T) *locationconfig.Config {
	t.Helper()
	cfg, err := locationconfig.Parse([]byte(locationsYAML))
	require.NoError(t, err)
	return cfg
}

func TestDailyForecastJob(t *testing.T) {
	pipeline := &fakePipeline{}
	job, err := NewDailyForecastJob(loadConfig(t), pipeline, logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, "daily_forecast", job.Name())
	assert.Equal(t, "0 30 6 * * *", job.Schedule())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"Bogor", "Bandung"}, pipeline.calls)
}

func TestDailyForecastJob_PartialFailure(t *testing.T) {
	pipeline := &fakePipeline{fail: map[string]error{"Bogor": errors.New("archive timeout")}}
	job, err := NewDailyForecastJob(loadConfig(t), pipeline, logger.Nop())
	require.NoError(t, err)

	// 한 지점이라도 성공하면 재시도하지 않음
	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, pipeline.calls, 2)
}

func TestDailyForecastJob_AllFail(t *testing.T) {
	down := errors.New("archive down")
	pipeline := &fakePipeline{fail: map[string]error{"Bogor": down, "Bandung": down}}
	job, err := NewDailyForecastJob(loadConfig(t), pipeline, logger.Nop())
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, down)
	assert.Contains(t, err.Error(), "all 2 location forecasts failed")
}

func TestDailyForecastJob_Cancelled(t *testing.T) {
	pipeline := &fakePipeline{}
	job, err := NewDailyForecastJob(loadConfig(t), pipeline, logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, job.Run(ctx), context.Canceled)
	assert.Empty(t, pipeline.calls)
}

type fakeVerifier struct {
	limit int
	n     int
	err   error
}

func (v *fakeVerifier) VerifyDue(_ context.Context, limit int) (int, error) {
	v.limit = limit
	return v.n, v.err
}

func TestVerificationJob(t *testing.T) {
	v := &fakeVerifier{n: 3}
	job := NewVerificationJob(v, "", 0, logger.Nop())
	assert.Equal(t, "forecast_verification", job.Name())
	assert.Equal(t, "0 0 7 * * *", job.Schedule())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 50, v.limit)

	failing := NewVerificationJob(&fakeVerifier{err: errors.New("db down")}, "@hourly", 10, logger.Nop())
	assert.ErrorContains(t, failing.Run(context.Background()), "db down")
}
