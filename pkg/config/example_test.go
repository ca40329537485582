package config_test

import (
	"fmt"

	"github.com/yandri918/prediksi-cuaca/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Server running on port: %s\n", cfg.Port)
	fmt.Printf("Persist runs: %v\n", cfg.Database.Enabled())
	fmt.Printf("Forecast confidence: %.2f\n", cfg.Forecast.ConfidenceLevel)
}
