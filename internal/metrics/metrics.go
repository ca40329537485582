package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

const namespace = "cuaca"

// Recorder Prometheus 수집기 모음
// forecast.RunObserver 구현
type Recorder struct {
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	ModelFitsTotal   *prometheus.CounterVec
	ModelFitDuration *prometheus.HistogramVec
	ModelRMSE        *prometheus.GaugeVec
	SkippedModels    prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	JobRuns     *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec
}

// New 레지스트리에 모든 수집기 등록
// reg 가 nil 이면 등록하지 않음 (테스트용)
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_runs_total",
			Help:      "Forecast runs by outcome",
		}, []string{"status"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_run_duration_seconds",
			Help:      "Wall time of a forecast run",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		ModelFitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_fits_total",
			Help:      "Model fits by model and outcome",
		}, []string{"model", "status"}),
		ModelFitDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_fit_duration_seconds",
			Help:      "Fit and predict time per model",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"model"}),
		ModelRMSE: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_holdout_rmse",
			Help:      "Holdout RMSE of the latest run per model and variable",
		}, []string{"model", "variable"}),
		SkippedModels: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_models_total",
			Help:      "Models dropped from a run after failing or timing out",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		JobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_job_runs_total",
			Help:      "Scheduled job executions by job and outcome",
		}, []string{"job", "status"}),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_job_duration_seconds",
			Help:      "Wall time of a scheduled job including retries",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"job"}),
	}
}

// ObserveModel 모델 단위 기록
func (r *Recorder) ObserveModel(kind contracts.ModelKind, duration time.Duration, err error) {
	r.ModelFitsTotal.WithLabelValues(string(kind), statusOf(err)).Inc()
	r.ModelFitDuration.WithLabelValues(string(kind)).Observe(duration.Seconds())
}

// ObserveRun 실행 단위 기록
func (r *Recorder) ObserveRun(result *contracts.RunResult, duration time.Duration, err error) {
	r.RunsTotal.WithLabelValues(statusOf(err)).Inc()
	r.RunDuration.Observe(duration.Seconds())
	if result == nil || err != nil {
		return
	}
	r.SkippedModels.Add(float64(len(result.Skipped)))
	variable := result.Variable
	if variable == "" {
		variable = "custom"
	}
	for _, m := range result.Metrics {
		r.ModelRMSE.WithLabelValues(string(m.Model), variable).Set(m.RMSE)
	}
}

// ObserveHTTP 요청 단위 기록
func (r *Recorder) ObserveHTTP(route, method string, code int, duration time.Duration) {
	r.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, contracts.ErrValidation):
		return "invalid"
	case errors.Is(err, contracts.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, contracts.ErrEmptyEnsemble):
		return "empty_ensemble"
	case errors.Is(err, contracts.ErrModelFit):
		return "fit_error"
	default:
		return "error"
	}
}

// ObserveJob 스케줄 작업 1회 (재시도 포함) 기록
func (r *Recorder) ObserveJob(name string, duration time.Duration, success bool) {
	status := "ok"
	if !success {
		status = "error"
	}
	r.JobRuns.WithLabelValues(name, status).Inc()
	r.JobDuration.WithLabelValues(name).Observe(duration.Seconds())
}
