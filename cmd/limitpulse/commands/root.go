package commands

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "limitpulse",
	Short: "A-share limit-up/limit-down snapshot acquisition",
	Long: `LimitPulse pulls end-of-day equity snapshots from the mainland
exchanges, classifies limit-up and limit-down securities, and persists
dated artifacts with redundant storage.

Usage:
  go run ./cmd/limitpulse [command]

Examples:
  go run ./cmd/limitpulse fetch --date 2025-01-27
  go run ./cmd/limitpulse fetch --date 2025-01-27 --types limit_up,limit_down
  go run ./cmd/limitpulse api
  go run ./cmd/limitpulse scheduler start
  go run ./cmd/limitpulse calendar 2025-02-02`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}
