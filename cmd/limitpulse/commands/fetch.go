package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wendao/limitpulse/internal/pipeline"
	"github.com/wendao/limitpulse/pkg/config"
	"github.com/wendao/limitpulse/pkg/logger"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Acquire and classify a snapshot for one date",
	Long: `Fetches the equity snapshot for a date, classifies limit-up,
limit-down and suspended securities, and persists dated artifacts.

Non-trading dates are skipped without touching the network; the nearest
trading day is suggested instead.

Examples:
  go run ./cmd/limitpulse fetch --date 2025-01-27
  go run ./cmd/limitpulse fetch --date 2025-01-27 --types limit_up,limit_down
  go run ./cmd/limitpulse fetch --date 2025-01-27 --use-cache
  go run ./cmd/limitpulse fetch --date 2025-01-27 --force`,
	RunE: runFetch,
}

var (
	fetchDate     string
	fetchTypes    string
	fetchUseCache bool
	fetchForce    bool
	fetchSkipGate bool
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&fetchDate, "date", time.Now().Format("2006-01-02"), "trading date (YYYY-MM-DD)")
	fetchCmd.Flags().StringVar(&fetchTypes, "types", "", "comma-separated data types (default: all)")
	fetchCmd.Flags().BoolVar(&fetchUseCache, "use-cache", false, "serve from persisted artifacts when present")
	fetchCmd.Flags().BoolVar(&fetchForce, "force", false, "refetch even when artifacts exist")
	fetchCmd.Flags().BoolVar(&fetchSkipGate, "skip-calendar-check", false, "run even on non-trading days")
}

func runFetch(cmd *cobra.Command, args []string) error {
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

	var dataTypes []string
	if fetchTypes != "" {
		for _, dt := range strings.Split(fetchTypes, ",") {
			dataTypes = append(dataTypes, strings.TrimSpace(dt))
		}
	}

	opts := pipeline.Options{
		UseCache:          fetchUseCache,
		Force:             fetchForce,
		SkipCalendarCheck: fetchSkipGate,
	}

	res, err := a.pipeline.Run(context.Background(), fetchDate, dataTypes, opts)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", fetchDate, err)
	}

	if res.Skipped {
		fmt.Printf("Skipped %s: %s\n", res.Date, res.Reason)
		if res.Suggested != "" {
			fmt.Printf("Nearest trading day: %s\n", res.Suggested)
		}
		return nil
	}

	fmt.Printf("Date:     %s\n", res.Date)
	if res.Metadata.FromCache {
		fmt.Println("Sources:  cache")
	} else {
		fmt.Printf("Sources:  %s (%d quotes)\n", strings.Join(res.Metadata.Sources, ", "), res.Metadata.QuoteCount)
	}
	for dt, env := range res.Data {
		fmt.Printf("  %-11s %d records\n", dt, env.TotalCount)
	}
	for _, rw := range res.Warnings {
		name := rw.Source
		if name == "" {
			name = rw.DataType
		}
		fmt.Printf("  %-11s DEGRADED at %s: %s\n", name, rw.Stage, rw.Message)
	}
	for _, re := range res.Errors {
		fmt.Printf("  %-11s FAILED at %s: %s\n", re.DataType, re.Stage, re.Message)
	}

	if !res.Success {
		return fmt.Errorf("%d data types failed", len(res.Errors))
	}
	return nil
}
