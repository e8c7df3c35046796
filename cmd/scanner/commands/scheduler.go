package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/breakscan/internal/contracts"
	"github.com/wonny/breakscan/internal/scheduler"
	"github.com/wonny/breakscan/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 등록된 작업을 조회합니다.

Subcommands:
  start   - 스케줄러 데몬 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/scanner scheduler start
  go run ./cmd/scanner scheduler list
  go run ./cmd/scanner scheduler run breakout_scan`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- cache_sweep: CACHE_SWEEP_SCHEDULE (기본 10분마다)
- breakout_scan: SCAN_SCHEDULE (설정된 경우만, 결과는 Redis로 공유)

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
		RunE:  runJobNow,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	sched.Start()

	fmt.Println("✅ Scheduler started")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	printJobs(sched)
	return nil
}

func runJobNow(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Running job: %s\n", args[0])
	result, err := sched.RunNow(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("✅ %s completed in %s (%d attempt(s))\n", result.JobName, result.Duration, result.Attempts)
	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()

	fmt.Println("Registered jobs:")
	for _, name := range sched.GetAllJobs() {
		st := stats[name]
		line := fmt.Sprintf("  - %-14s %s", name, st.Schedule)
		if st.NextRun != nil {
			line += "  next " + st.NextRun.Format("2006-01-02 15:04:05")
		}
		fmt.Println(line)
	}
}

// initScheduler wires the pipeline and registers the jobs
func initScheduler(cmd *cobra.Command) (*app, *scheduler.Scheduler, error) {
	a, err := newApp(commandContext(cmd), os.Stderr)
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(scheduler.DefaultOptions(), a.log)

	if err := sched.AddJob(jobs.NewCacheSweepJob(a.cache, a.cfg.Cache.SweepSchedule, a.log)); err != nil {
		a.Close()
		return nil, nil, err
	}

	if a.cfg.Scan.Schedule != "" {
		scanJob := jobs.NewBreakoutScanJob(a.scanner, contracts.DefaultScanFilters(), a.cfg.Scan.Schedule, a.cfg.Scan.Timeout, a.log)
		if a.snapshots.Enabled() {
			scanJob.WithPublisher(a.snapshots)
		}
		if err := sched.AddJob(scanJob); err != nil {
			a.Close()
			return nil, nil, err
		}
	}

	return a, sched, nil
}
