package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

func TestRecorder_ObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	result := &contracts.RunResult{
		Variable: "temperature_2m_mean",
		Metrics: []contracts.ModelMetrics{
			{Model: contracts.ModelStatistical, RMSE: 0.8},
			{Model: contracts.ModelTree, RMSE: 1.2},
		},
		Skipped: []contracts.SkippedModel{{Model: contracts.ModelNeural, Reason: "timed out"}},
	}
	r.ObserveRun(result, 3*time.Second, nil)
	r.ObserveRun(nil, time.Second, &contracts.InsufficientDataError{Have: 3, Need: 14})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsTotal.WithLabelValues("insufficient_data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.SkippedModels))
	assert.Equal(t, 0.8, testutil.ToFloat64(r.ModelRMSE.WithLabelValues("statistical", "temperature_2m_mean")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.RunDuration))
}

func TestRecorder_ObserveModel(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.ObserveModel(contracts.ModelSeasonal, 200*time.Millisecond, nil)
	r.ObserveModel(contracts.ModelNeural, time.Second, contracts.NewModelFitError(contracts.ModelNeural, "diverged"))
	r.ObserveModel(contracts.ModelTree, time.Second, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.ModelFitsTotal.WithLabelValues("seasonal", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ModelFitsTotal.WithLabelValues("sequential-neural", "fit_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ModelFitsTotal.WithLabelValues("tree-boosted", "error")))
}

func TestRecorder_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })

	// nil 레지스트리는 등록 없이 동작
	r := New(nil)
	r.ObserveHTTP("/health", "GET", 200, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.HTTPRequests.WithLabelValues("/health", "GET", "200")))
}

func TestRecorder_Gather(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)
	r.ObserveHTTP("/api/forecast", "POST", 422, 40*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "cuaca_http_requests_total")
	assert.Contains(t, names, "cuaca_http_request_duration_seconds")
}

func TestRecorder_ObserveJob(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.ObserveJob("daily_forecast", 40*time.Second, true)
	r.ObserveJob("daily_forecast", 2*time.Minute, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.JobRuns.WithLabelValues("daily_forecast", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.JobRuns.WithLabelValues("daily_forecast", "error")))
}
