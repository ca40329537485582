package logger_test

import (
	"errors"
	"os"

	"github.com/yandri918/prediksi-cuaca/pkg/config"
	"github.com/yandri918/prediksi-cuaca/pkg/logger"
)

// Example_withFields demonstrates structured logging with fields
func Example_withFields() {
	log := logger.New(&config.Config{Env: "production", LogLevel: "info", LogFormat: "json"})

	log.WithFields(map[string]any{
		"location": "Bogor",
		"variable": "temperature_2m_mean",
		"horizon":  7,
	}).Info("forecast requested")
}

// Example_withError demonstrates error logging
func Example_withError() {
	log := logger.New(&config.Config{Env: "production", LogLevel: "error", LogFormat: "json"})

	err := errors.New("archive request timed out")
	log.WithError(err).
		WithField("retry_count", 3).
		Error("weather history unavailable")
}

// Example_component demonstrates handing a tagged zerolog.Logger to an internal package
func Example_component() {
	log := logger.NewWithWriter(&config.Config{Env: "development", LogLevel: "debug", LogFormat: "console"}, os.Stderr)

	zl := log.Component("weather.client")
	zl.Debug().Str("url", "https://archive-api.open-meteo.com/v1/archive").Msg("fetching history")
}
