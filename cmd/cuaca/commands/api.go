package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yandri918/prediksi-cuaca/internal/api"
	"github.com/yandri918/prediksi-cuaca/internal/api/handlers"
	"github.com/yandri918/prediksi-cuaca/pkg/logger"
	"github.com/yandri918/prediksi-cuaca/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                      - Health check (DB, Redis)
  GET  /metrics                     - Prometheus metrics
  GET  /api/variables               - 예측 가능한 기상 변수
  GET  /api/locations/search?name=  - 지명 검색
  POST /api/forecast                - 시계열 직접 입력 예측
  POST /api/forecast/location       - 지점 과거 관측 조회 후 예측
  GET  /api/forecast/runs           - 저장된 실행 목록
  GET  /api/forecast/runs/{id}      - 저장된 실행 조회

예측 엔드포인트는 ?format=csv|xlsx 로 파일 내보내기를 지원합니다.

Example:
  go run ./cmd/cuaca api
  go run ./cmd/cuaca api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본값 PORT 환경변수)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}
	log := a.log

	log.WithFields(map[string]any{
		"port":     a.cfg.Port,
		"env":      a.cfg.Env,
		"database": a.db != nil,
		"redis":    a.redis.Enabled(),
	}).Info("Initializing API server")

	router := api.NewRouter(routerDeps(a, log))
	server := api.New(a.cfg, log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
		return errors.New("server exited unexpectedly")
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

func routerDeps(a *app, log *logger.Logger) api.RouterDeps {
	// nil 포인터가 인터페이스로 들어가지 않도록 분기
	var store handlers.RunStore
	if a.repo != nil {
		store = a.repo
	}

	health := handlers.NewHealthHandler(logger.ServiceName)
	if a.db != nil {
		health.Register("database", func(ctx context.Context) error {
			if st := a.db.HealthCheck(ctx); !st.Healthy {
				return errors.New(st.Error)
			}
			return nil
		})
	}
	if a.redis.Enabled() {
		health.Register("redis", a.redis.Ping)
	}

	deps := api.RouterDeps{
		Forecast:  handlers.NewForecastHandler(a.engine, a.pipeline, store, log),
		Locations: handlers.NewLocationHandler(a.weather, log),
		Health:    health,
		Metrics:   a.recorder,
		RateLimit: a.cfg.Redis.APIRate,
		Logger:    log,
	}
	if a.cfg.MetricsEnabled {
		deps.Gatherer = a.registry
	}
	if a.redis.Enabled() {
		deps.Limiter = redis.NewRateLimiter(a.redis, "cuaca")
	}
	return deps
}
