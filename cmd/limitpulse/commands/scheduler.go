package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wendao/limitpulse/internal/cronjob"
	"github.com/wendao/limitpulse/internal/cronjob/jobs"
	"github.com/wendao/limitpulse/pkg/config"
	"github.com/wendao/limitpulse/pkg/logger"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Manage the acquisition scheduler",
	Long: `Starts the scheduler daemon or manages its jobs.

Registered jobs:
  daily_acquisition - every day at 15:10, after the mainland close

Subcommands:
  start  - start the scheduler daemon
  run    - run a job immediately

Example:
  go run ./cmd/limitpulse scheduler start
  go run ./cmd/limitpulse scheduler run daily_acquisition`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler daemon",
		Long: `Starts the scheduler and registers all jobs. Non-trading days
are skipped by the pipeline's calendar gate, so the daemon can run every
day of the year.

Stop with Ctrl+C.`,
		RunE: runScheduler,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run a job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedulerJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func buildScheduler(a *app, log *logger.Logger) (*cronjob.Scheduler, error) {
	sched := cronjob.New(log)
	if err := sched.AddJob(jobs.NewDailyAcquisitionJob(a.pipeline, log)); err != nil {
		return nil, fmt.Errorf("register job: %w", err)
	}
	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	a, err := newApp(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.close()

	sched, err := buildScheduler(a, log)
	if err != nil {
		return err
	}

	sched.Start()
	fmt.Println("Scheduler running. Press Ctrl+C to stop.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}

func runSchedulerJob(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	a, err := newApp(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.close()

	sched, err := buildScheduler(a, log)
	if err != nil {
		return err
	}

	jobName := args[0]
	if err := sched.RunJob(jobName); err != nil {
		return err
	}

	// RunJob is asynchronous; block until the result lands in history.
	fmt.Printf("Running %s...\n", jobName)
	waitForJobResult(sched, jobName)
	return nil
}

func waitForJobResult(sched *cronjob.Scheduler, jobName string) {
	for {
		history, err := sched.GetJobHistory(jobName)
		if err != nil {
			return
		}
		if results := history.GetLatestResults(1); len(results) > 0 {
			r := results[0]
			if r.Success {
				fmt.Printf("Job %s completed in %s\n", jobName, r.Duration)
			} else {
				fmt.Printf("Job %s failed: %s\n", jobName, r.Error)
			}
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
}
