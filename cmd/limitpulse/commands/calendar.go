package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wendao/limitpulse/internal/calendar"
)

// calendarCmd represents the calendar command
var calendarCmd = &cobra.Command{
	Use:   "calendar [date]",
	Short: "Check the trading-day status of a date",
	Long: `Reports whether a date is a trading day, and if not, why and
which trading day is nearest.

Example:
  go run ./cmd/limitpulse calendar 2025-02-02
  go run ./cmd/limitpulse calendar 2025-02-08`,
	Args: cobra.ExactArgs(1),
	RunE: runCalendar,
}

func init() {
	rootCmd.AddCommand(calendarCmd)
}

func runCalendar(cmd *cobra.Command, args []string) error {
	day, err := calendar.ParseDate(args[0])
	if err != nil {
		return err
	}

	cal := calendar.New()
	status := cal.Status(day)

	if status.IsTradingDay {
		fmt.Printf("%s is a trading day (%s)\n", status.Date, status.Reason)
		return nil
	}

	fmt.Printf("%s is not a trading day: %s", status.Date, status.Reason)
	if status.Detail != "" {
		fmt.Printf(" (%s)", status.Detail)
	}
	fmt.Println()

	if prev, err := cal.NearestTradingDay(day, calendar.Backward, 0); err == nil {
		fmt.Printf("Previous trading day: %s\n", prev.Format("2006-01-02"))
	}
	if next, err := cal.NearestTradingDay(day, calendar.Forward, 0); err == nil {
		fmt.Printf("Next trading day:     %s\n", next.Format("2006-01-02"))
	}
	return nil
}
