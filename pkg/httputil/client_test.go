package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yandri918/prediksi-cuaca/pkg/config"
	"github.com/yandri918/prediksi-cuaca/pkg/logger"
)

func testClient() *Client {
	cfg := &config.Config{
		Env:     "development",
		Weather: config.WeatherConfig{RateLimit: 1000, Timeout: 2 * time.Second},
	}
	return New(cfg, logger.Nop()).WithRetry(2, time.Millisecond)
}

func TestNew_Defaults(t *testing.T) {
	c := New(&config.Config{}, logger.Nop())
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
	assert.Equal(t, 3, c.retryConfig.MaxRetries)
	assert.True(t, c.retryConfig.Enabled)
	assert.False(t, c.DisableRetry().retryConfig.Enabled)
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"latitude":-6.6,"timezone":"Asia/Jakarta"}`))
	}))
	defer server.Close()

	var out struct {
		Latitude float64 `json:"latitude"`
		Timezone string  `json:"timezone"`
	}
	require.NoError(t, testClient().GetJSON(context.Background(), server.URL, &out))
	assert.Equal(t, -6.6, out.Latitude)
	assert.Equal(t, "Asia/Jakarta", out.Timezone)
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	resp, err := testClient().Get(context.Background(), server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":true,"reason":"invalid date"}`))
	}))
	defer server.Close()

	_, err := testClient().Get(context.Background(), server.URL)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "invalid date")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := testClient().DisableRetry()
	for i := 0; i < 5; i++ {
		_, err := c.Get(context.Background(), server.URL)
		require.Error(t, err)
	}
	_, err := c.Get(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(5), calls.Load())
}

func TestGet_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testClient().Get(ctx, "http://127.0.0.1:1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryableStatus(t *testing.T) {
	assert.True(t, IsRetryableStatus(http.StatusTooManyRequests))
	assert.True(t, IsRetryableStatus(http.StatusBadGateway))
	assert.False(t, IsRetryableStatus(http.StatusNotFound))
}
