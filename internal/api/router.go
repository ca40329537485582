package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yandri918/prediksi-cuaca/internal/api/handlers"
	"github.com/yandri918/prediksi-cuaca/internal/metrics"
	"github.com/yandri918/prediksi-cuaca/pkg/logger"
)

// RouterDeps 라우터 구성 요소
type RouterDeps struct {
	Forecast  *handlers.ForecastHandler
	Locations *handlers.LocationHandler
	Health    *handlers.HealthHandler
	Metrics   *metrics.Recorder
	Gatherer  prometheus.Gatherer // nil 이면 /metrics 미노출
	Limiter   RateLimiter
	RateLimit int // 분당 요청 수
	Logger    *logger.Logger
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(deps RouterDeps) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", deps.Health.Health).Methods("GET")
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Lookup endpoints
	api.HandleFunc("/locations/search", deps.Locations.Search).Methods("GET")
	api.HandleFunc("/variables", deps.Locations.Variables).Methods("GET")

	// Forecast endpoints (rate limited)
	fc := api.PathPrefix("/forecast").Subrouter()
	fc.HandleFunc("", deps.Forecast.RunSeries).Methods("POST")
	fc.HandleFunc("/location", deps.Forecast.RunLocation).Methods("POST")
	fc.HandleFunc("/runs", deps.Forecast.ListRuns).Methods("GET")
	fc.HandleFunc("/runs/{id}", deps.Forecast.GetRun).Methods("GET")
	fc.Use(rateLimitMiddleware(deps.Limiter, deps.RateLimit, deps.Logger))

	// Apply middleware
	r.Use(loggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(recoveryMiddleware(deps.Logger))

	return r
}
