package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cuaca",
	Short: "Prediksi Cuaca - 다중 모델 기상 시계열 예측",
	Long: `Prediksi Cuaca Unified CLI

ARIMA, 계절 분해, 순환 신경망, 부스팅 트리 4개 모델로 기상 시계열을 예측하고
홀드아웃 RMSE 역수 가중 앙상블로 결합합니다.

Usage:
  go run ./cmd/cuaca [command]

Examples:
  go run ./cmd/cuaca forecast run --location Bogor --horizon 7
  go run ./cmd/cuaca forecast run --input series.csv --output xlsx --out bogor.xlsx
  go run ./cmd/cuaca api
  go run ./cmd/cuaca scheduler start`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "env file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
