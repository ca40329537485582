package api

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yandri918/prediksi-cuaca/pkg/config"
	"github.com/yandri918/prediksi-cuaca/pkg/logger"
)

func TestWriteTimeoutFor(t *testing.T) {
	assert.Equal(t, 15*time.Second, writeTimeoutFor(0))
	assert.Equal(t, 150*time.Second, writeTimeoutFor(2*time.Minute))
}

func TestServer_ServeAndShutdown(t *testing.T) {
	cfg := &config.Config{Port: "0", Env: "test"}
	cfg.Forecast.FitTimeout = time.Minute

	router, _ := newTestRouter(t, nil, 0)
	srv := New(cfg, logger.Nop(), router)
	assert.Equal(t, 90*time.Second, srv.httpServer.WriteTimeout)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-done)
}
