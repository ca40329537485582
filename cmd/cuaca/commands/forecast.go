package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yandri918/prediksi-cuaca/internal/brain"
	"github.com/yandri918/prediksi-cuaca/internal/contracts"
	"github.com/yandri918/prediksi-cuaca/internal/forecast"
	"github.com/yandri918/prediksi-cuaca/internal/report"
)

// forecastCmd represents the forecast command
var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "기상 시계열 예측",
	Long: `기상 시계열에 대해 다중 모델 예측을 실행하고 결과를 조회합니다.

Subcommands:
  run      - 예측 실행 (CSV 입력 또는 지점 조회)
  history  - 저장된 실행 목록
  show     - 저장된 실행 조회
  verify   - 예측 기간이 지난 실행을 실측값으로 검증

Example:
  go run ./cmd/cuaca forecast run --location Bogor --horizon 7
  go run ./cmd/cuaca forecast run --lat -6.595 --lon 106.816 --variable precipitation_sum
  go run ./cmd/cuaca forecast run --input data.csv --column temp --output xlsx --out forecast.xlsx
  go run ./cmd/cuaca forecast history --limit 10`,
}

var (
	forecastRunCmd = &cobra.Command{
		Use:   "run",
		Short: "예측 실행",
		Long: `CSV 파일 또는 Open-Meteo 과거 관측으로 예측을 실행합니다.

--input 이 있으면 파일의 시계열을 그대로 사용하고,
없으면 --location 또는 --lat/--lon 지점의 과거 관측을 조회합니다.

Models: statistical, tree, neural, arima, ensemble (비우면 전체)
Output: table, csv, xlsx, json`,
		RunE: runForecast,
	}

	forecastHistoryCmd = &cobra.Command{
		Use:   "history",
		Short: "저장된 실행 목록",
		RunE:  listForecastRuns,
	}

	forecastShowCmd = &cobra.Command{
		Use:   "show [run_id]",
		Short: "저장된 실행 조회",
		Args:  cobra.ExactArgs(1),
		RunE:  showForecastRun,
	}

	forecastVerifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "예측 사후 검증",
		Long: `예측 기간이 끝난 저장 실행을 Open-Meteo 실측값과 비교해 검증 지표를 저장합니다.

--run 을 주면 해당 실행만 검증합니다.`,
		RunE: verifyForecasts,
	}
)

var (
	fcInput     string
	fcColumn    string
	fcLocation  string
	fcLat       float64
	fcLon       float64
	fcVariable  string
	fcDays      int
	fcHorizon   int
	fcModels    []string
	fcCompare   bool
	fcSave      bool
	fcOutput    string
	fcOutFile   string
	fcLimit     int
	fcVerifyRun string
)

func init() {
	rootCmd.AddCommand(forecastCmd)
	forecastCmd.AddCommand(forecastRunCmd)
	forecastCmd.AddCommand(forecastHistoryCmd)
	forecastCmd.AddCommand(forecastShowCmd)
	forecastCmd.AddCommand(forecastVerifyCmd)

	// run flags
	forecastRunCmd.Flags().StringVar(&fcInput, "input", "", "입력 CSV 파일 (날짜 열 + 값 열)")
	forecastRunCmd.Flags().StringVar(&fcColumn, "column", "", "값 열 이름 (기본값 날짜 다음 첫 열)")
	forecastRunCmd.Flags().StringVar(&fcLocation, "location", "", "지명 (Open-Meteo 지오코딩)")
	forecastRunCmd.Flags().Float64Var(&fcLat, "lat", 0, "위도")
	forecastRunCmd.Flags().Float64Var(&fcLon, "lon", 0, "경도")
	forecastRunCmd.Flags().StringVar(&fcVariable, "variable", "", "기상 변수 (기본값 temperature_2m_mean)")
	forecastRunCmd.Flags().IntVar(&fcDays, "days", brain.DefaultHistoryDays, "과거 관측 일수")
	forecastRunCmd.Flags().IntVar(&fcHorizon, "horizon", brain.DefaultHorizon, "예측 기간 (스텝 수)")
	forecastRunCmd.Flags().StringSliceVar(&fcModels, "models", nil, "실행할 모델 (쉼표 구분)")
	forecastRunCmd.Flags().BoolVar(&fcCompare, "compare", false, "Open-Meteo 예보와 비교")
	forecastRunCmd.Flags().BoolVar(&fcSave, "save", false, "결과를 DB 에 저장")
	forecastRunCmd.Flags().StringVarP(&fcOutput, "output", "o", "table", "출력 형식 (table, csv, xlsx, json)")
	forecastRunCmd.Flags().StringVar(&fcOutFile, "out", "", "출력 파일 (기본값 stdout)")

	forecastHistoryCmd.Flags().IntVar(&fcLimit, "limit", 20, "조회 개수")

	forecastShowCmd.Flags().StringVarP(&fcOutput, "output", "o", "table", "출력 형식 (table, csv, xlsx, json)")
	forecastShowCmd.Flags().StringVar(&fcOutFile, "out", "", "출력 파일 (기본값 stdout)")

	forecastVerifyCmd.Flags().StringVar(&fcVerifyRun, "run", "", "검증할 실행 ID")
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runForecast(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	if err := checkOutputFormat(fcOutput); err != nil {
		return err
	}
	models, err := contracts.ParseModelKinds(fcModels)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, fcSave)
	if err != nil {
		return err
	}
	defer a.Close()

	if fcInput != "" {
		run, err := forecastFromFile(ctx, a, models)
		if err != nil {
			return err
		}
		return writeRun(run, nil)
	}

	runCfg := brain.RunConfig{
		Query:           fcLocation,
		Variable:        fcVariable,
		HistoryDays:     fcDays,
		Horizon:         fcHorizon,
		Models:          models,
		CompareProvider: fcCompare,
		Save:            fcSave,
	}
	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
		runCfg.Location = &contracts.Location{Latitude: fcLat, Longitude: fcLon}
	}
	if runCfg.Location == nil && runCfg.Query == "" {
		return errors.New("one of --input, --location or --lat/--lon is required")
	}

	result, err := a.pipeline.Run(ctx, runCfg)
	if err != nil {
		if result != nil && len(result.CompletedStages) > 0 {
			a.log.WithField("stages", strings.Join(result.CompletedStages, ",")).Warn("Pipeline stopped early")
		}
		return err
	}

	if fcOutput == "json" {
		return writeJSON(result)
	}
	if err := writeRun(result.Run, result.Provider); err != nil {
		return err
	}
	if fcOutput == "table" {
		printPipelineSummary(result)
	}
	return nil
}

// forecastFromFile CSV 시계열로 엔진 직접 실행
func forecastFromFile(ctx context.Context, a *app, models []contracts.ModelKind) (*contracts.RunResult, error) {
	f, err := os.Open(fcInput)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(fcInput), filepath.Ext(fcInput))
	series, err := report.ReadSeriesCSV(f, name, fcColumn)
	if err != nil {
		return nil, err
	}

	run, err := a.engine.Run(ctx, forecast.RunRequest{Series: series, Horizon: fcHorizon, Models: models})
	if err != nil {
		return nil, err
	}

	if fcSave {
		if err := a.repo.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("save run: %w", err)
		}
		a.log.WithField("run_id", run.RunID).Info("Run saved")
	}
	return run, nil
}

func printPipelineSummary(result *brain.RunResult) {
	fmt.Println()
	if len(result.ProviderMetrics) > 0 {
		fmt.Println("Against Open-Meteo forecast:")
		rows := [][]string{{"model", "mae", "rmse", "points"}}
		for _, m := range result.ProviderMetrics {
			rows = append(rows, []string{
				m.Model.Label(),
				fmt.Sprintf("%.4f", m.MAE),
				fmt.Sprintf("%.4f", m.RMSE),
				fmt.Sprintf("%d", m.HoldoutSize),
			})
		}
		PrintTable(rows)
		fmt.Println()
	}
	for _, w := range result.Warnings {
		PrintWarning(w)
	}
	if result.Saved {
		PrintSuccess("Saved run " + result.Run.RunID)
	}
	fmt.Printf("Completed in %s (%s)\n", result.Duration.Round(time.Millisecond), strings.Join(result.CompletedStages, " → "))
}

func listForecastRuns(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	runs, err := a.repo.ListRuns(ctx, fcLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		PrintInfo("No saved runs")
		return nil
	}

	rows := [][]string{{"run_id", "series", "variable", "horizon", "state", "forecast_end", "verified", "created"}}
	for _, r := range runs {
		verified := "-"
		if r.VerifiedAt != nil {
			verified = r.VerifiedAt.Format("2006-01-02")
		}
		rows = append(rows, []string{
			r.RunID,
			r.SeriesName,
			r.Variable,
			fmt.Sprintf("%d", r.Horizon),
			r.State,
			r.ForecastEnd.Format("2006-01-02"),
			verified,
			r.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	PrintTable(rows)
	return nil
}

func showForecastRun(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	if err := checkOutputFormat(fcOutput); err != nil {
		return err
	}

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.repo.GetRun(ctx, args[0])
	if err != nil {
		return err
	}
	return writeRun(run, nil)
}

func verifyForecasts(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	v := a.verifier()
	if fcVerifyRun != "" {
		metrics, err := v.VerifyRun(ctx, fcVerifyRun)
		if err != nil {
			return err
		}
		rows := [][]string{{"model", "mae", "rmse", "points"}}
		for _, m := range metrics {
			rows = append(rows, []string{m.Model.Label(), fmt.Sprintf("%.4f", m.MAE), fmt.Sprintf("%.4f", m.RMSE), fmt.Sprintf("%d", m.HoldoutSize)})
		}
		PrintTable(rows)
		return nil
	}

	n, err := v.VerifyDue(ctx, a.cfg.Scheduler.VerifyBatch)
	if err != nil {
		return err
	}
	PrintSuccess(fmt.Sprintf("Verified %d run(s)", n))
	return nil
}

func checkOutputFormat(format string) error {
	switch format {
	case "table", "csv", "xlsx", "json":
		return nil
	}
	return fmt.Errorf("unknown output format %q (table, csv, xlsx, json)", format)
}

// writeRun --output 형식에 맞춰 출력
func writeRun(run *contracts.RunResult, provider *contracts.TimeSeries) error {
	switch fcOutput {
	case "table":
		printRun(run, provider)
		return nil
	case "json":
		return writeJSON(run)
	}

	if fcOutput == "xlsx" && fcOutFile == "" {
		return errors.New("--out is required for xlsx output")
	}
	out, err := openOutput(fcOutFile)
	if err != nil {
		return err
	}
	defer out.Close()

	if fcOutput == "xlsx" {
		err = report.WriteXLSX(out, run, provider)
	} else {
		err = report.WriteCSV(out, run, provider)
	}
	if err != nil {
		return err
	}
	if fcOutFile != "" {
		PrintSuccess("Wrote " + fcOutFile)
	}
	return nil
}

func writeJSON(v any) error {
	out, err := openOutput(fcOutFile)
	if err != nil {
		return err
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
