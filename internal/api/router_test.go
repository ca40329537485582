package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yandri918/prediksi-cuaca/internal/api/handlers"
	"github.com/yandri918/prediksi-cuaca/internal/contracts"
	"github.com/yandri918/prediksi-cuaca/internal/metrics"
	"github.com/yandri918/prediksi-cuaca/pkg/logger"
	"github.com/yandri918/prediksi-cuaca/pkg/redis"
)

type nopSearcher struct{}

func (nopSearcher) SearchLocations(context.Context, string) ([]contracts.Location, error) {
	return []contracts.Location{{Name: "Bogor"}}, nil
}

func newTestRouter(t *testing.T, limiter RateLimiter, perMinute int) (http.Handler, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	log := logger.Nop()
	return NewRouter(RouterDeps{
		Forecast:  handlers.NewForecastHandler(nil, nil, nil, log),
		Locations: handlers.NewLocationHandler(nopSearcher{}, log),
		Health:    handlers.NewHealthHandler("prediksi-cuaca"),
		Metrics:   metrics.New(reg),
		Gatherer:  reg,
		Limiter:   limiter,
		RateLimit: perMinute,
		Logger:    log,
	}), reg
}

func TestRouter_Routes(t *testing.T) {
	router, _ := newTestRouter(t, nil, 0)

	tests := []struct {
		method, path string
		status       int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/variables", http.StatusOK},
		{http.MethodGet, "/api/locations/search?name=Bogor", http.StatusOK},
		{http.MethodGet, "/api/forecast/runs", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/forecast/runs/abc", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/forecast", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, nil, 0)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/variables", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `cuaca_http_requests_total{code="200",method="GET",route="/api/variables"} 1`)
}

func TestRouter_RecoversPanics(t *testing.T) {
	// 저장소 없는 핸들러에 nil 엔진: RunSeries 가 패닉
	router, _ := newTestRouter(t, nil, 0)
	body := `{"series": {"points": [{"time": "2024-05-01T00:00:00Z", "value": 1}]}, "horizon": 1}`

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/forecast", strings.NewReader(body)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}

func TestRateLimitMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	limiter := redis.NewRateLimiter(client, "cuaca")
	router, _ := newTestRouter(t, limiter, 2)

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/forecast/runs", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	first := do("203.0.113.7")
	assert.Equal(t, http.StatusServiceUnavailable, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusServiceUnavailable, do("203.0.113.7").Code)

	limited := do("203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))

	// 다른 클라이언트는 별도 창
	assert.Equal(t, http.StatusServiceUnavailable, do("198.51.100.2").Code)

	// 조회 엔드포인트는 제한 없음
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/variables", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:4242"
	assert.Equal(t, "192.0.2.1", clientKey(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientKey(req))
}
