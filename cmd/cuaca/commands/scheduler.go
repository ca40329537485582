package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/yandri918/prediksi-cuaca/internal/locationconfig"
	"github.com/yandri918/prediksi-cuaca/internal/scheduler"
	"github.com/yandri918/prediksi-cuaca/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

작업 목록과 지점은 SCHEDULER_LOCATIONS_FILE (기본값 config/locations.yaml) 에서 읽습니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행
  status  - 작업 실행 상태 조회

Example:
  go run ./cmd/cuaca scheduler start
  go run ./cmd/cuaca scheduler list
  go run ./cmd/cuaca scheduler run daily_forecast`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- daily_forecast: meta.forecast_schedule (기본 매일 06:30, 전 지점 예측 후 저장)
- forecast_verification: meta.verify_schedule (기본 매일 07:00, DB 필요)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "작업 스케줄 조회",
		RunE:  showStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)

	schedulerStartCmd.Flags().StringVar(&schedulerMetricsAddr, "metrics-addr", "", "Prometheus /metrics 주소 (예: :9102, 비우면 미노출)")
}

var schedulerMetricsAddr string

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Prediksi Cuaca Scheduler ===")
	fmt.Println()

	a, err := newApp(commandContext(cmd), false)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	var metricsSrv *http.Server
	if schedulerMetricsAddr != "" && a.cfg.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: schedulerMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(ctx)
	}
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp(commandContext(cmd), false)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Println("Registered jobs:")
	PrintList(sched.GetAllJobs())
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]
	ctx := commandContext(cmd)

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Printf("Running job: %s\n", jobName)
	result, err := sched.RunJob(ctx, jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	if !result.Success {
		return fmt.Errorf("job %s failed after %s: %s", jobName, result.Duration.Round(time.Millisecond), result.Error)
	}
	PrintSuccess(fmt.Sprintf("Job %s completed in %s", jobName, result.Duration.Round(time.Millisecond)))
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(commandContext(cmd), false)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	// 다음 실행 시각 계산을 위해 cron 시작
	sched.Start()
	defer sched.Stop()

	stats := sched.GetJobStats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Job Statistics:")
	fmt.Println()

	for _, jobName := range names {
		stat := stats[jobName]
		fmt.Printf("📊 %s\n", jobName)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		if stat.NextRun != nil {
			fmt.Printf("   Next Run: %s\n", stat.NextRun.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		if stat.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}

	return nil
}

func initScheduler(a *app) (*scheduler.Scheduler, error) {
	// 1. Load location config
	locCfg, _, err := locationconfig.Load(a.cfg.Scheduler.LocationsFile)
	if err != nil {
		return nil, err
	}

	// 2. Create scheduler
	sched := scheduler.New(a.log, scheduler.WithObserver(a.recorder))

	// 3. Register jobs
	forecastJob, err := jobs.NewDailyForecastJob(locCfg, a.pipeline, a.log)
	if err != nil {
		return nil, err
	}
	if err := sched.AddJob(forecastJob); err != nil {
		return nil, err
	}

	if a.repo == nil {
		a.log.Warn("DATABASE_URL not set: forecasts are not saved and verification is disabled")
		return sched, nil
	}
	verifyJob := jobs.NewVerificationJob(a.verifier(), locCfg.Meta.VerifySchedule, a.cfg.Scheduler.VerifyBatch, a.log)
	if err := sched.AddJob(verifyJob); err != nil {
		return nil, err
	}

	return sched, nil
}
