package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/yandri918/prediksi-cuaca/pkg/config"
	"github.com/yandri918/prediksi-cuaca/pkg/logger"
)

const (
	readTimeout    = 15 * time.Second
	idleTimeout    = 60 * time.Second
	maxHeaderBytes = 64 << 10
	// 모델 학습 제한 시간 + 응답 직렬화 여유
	writeSlack = 30 * time.Second
)

// Server represents the HTTP API server
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
	port       string
	env        string
}

// New creates a new API server
// 쓰기 타임아웃은 FORECAST_FIT_TIMEOUT 보다 길어야 동기 예측 응답이 잘리지 않음
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: readTimeout,
			WriteTimeout:      writeTimeoutFor(cfg.Forecast.FitTimeout),
			IdleTimeout:       idleTimeout,
			MaxHeaderBytes:    maxHeaderBytes,
		},
		logger: log,
		port:   cfg.Port,
		env:    cfg.Env,
	}
}

func writeTimeoutFor(fitTimeout time.Duration) time.Duration {
	return max(readTimeout, fitTimeout+writeSlack)
}

// Start listens on the configured port and serves until Shutdown
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.logger.WithFields(map[string]any{
		"addr":          ln.Addr().String(),
		"env":           s.env,
		"write_timeout": s.httpServer.WriteTimeout.String(),
	}).Info("Starting API server")

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Shutdown drains in-flight forecasts until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.WithField("port", s.port).Info("Shutting down API server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
