package main

import (
	"os"

	"github.com/yandri918/prediksi-cuaca/cmd/cuaca/commands"
)

// main is the entry point for the prediksi-cuaca CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/cuaca [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
