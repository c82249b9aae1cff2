package calendar

import (
	"errors"
	"fmt"
	"time"
)

// Reason codes for a day's trading status.
type Reason string

const (
	ReasonNormal        Reason = "normal"
	ReasonWeekend       Reason = "weekend"
	ReasonHoliday       Reason = "holiday"
	ReasonMakeupWorkday Reason = "makeup_workday"
)

// DayStatus is the trading status of a single date. Pure value, recomputed
// on demand.
type DayStatus struct {
	Date         string `json:"date"`
	IsTradingDay bool   `json:"isTradingDay"`
	Reason       Reason `json:"reason"`
	Detail       string `json:"detail,omitempty"` // weekday or holiday name
	Suggestion   string `json:"suggestion,omitempty"`
}

// Direction of a nearest-trading-day search.
type Direction int

const (
	Backward Direction = iota
	Forward
)

var (
	// ErrNoTradingDay is returned when the bounded lookback is exhausted.
	ErrNoTradingDay = errors.New("calendar: no trading day within lookback bound")

	// ErrInvalidDate is returned for malformed date input. A malformed date
	// is never silently treated as non-trading.
	ErrInvalidDate = errors.New("calendar: invalid date")
)

const dateLayout = "2006-01-02"

// Calendar answers trading-day questions for the mainland exchanges.
// Year tables are loaded once at construction and immutable afterwards.
type Calendar struct {
	years map[int]yearTable
}

// New creates a calendar backed by the embedded year tables.
func New() *Calendar {
	return &Calendar{years: yearTables}
}

// ParseDate validates and parses a YYYY-MM-DD date string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// Status returns the full trading status for a date.
func (c *Calendar) Status(date time.Time) DayStatus {
	key := date.Format(dateLayout)
	weekday := date.Weekday()
	table, hasTable := c.years[date.Year()]

	if hasTable {
		if name, ok := table.holidays[key]; ok {
			return DayStatus{
				Date:       key,
				Reason:     ReasonHoliday,
				Detail:     name,
				Suggestion: fmt.Sprintf("market closed for %s; pick the nearest trading day instead", name),
			}
		}
		if name, ok := table.makeupWorkdays[key]; ok {
			// Make-up workdays override the weekend rule.
			return DayStatus{
				Date:         key,
				IsTradingDay: true,
				Reason:       ReasonMakeupWorkday,
				Detail:       name,
			}
		}
	}

	if weekday == time.Saturday || weekday == time.Sunday {
		return DayStatus{
			Date:       key,
			Reason:     ReasonWeekend,
			Detail:     weekday.String(),
			Suggestion: fmt.Sprintf("%s is not a trading day; use the previous Friday or the next Monday", weekday),
		}
	}

	status := DayStatus{
		Date:         key,
		IsTradingDay: true,
		Reason:       ReasonNormal,
	}
	if !hasTable {
		// No holiday table for this year: weekend rule only.
		status.Suggestion = fmt.Sprintf("no holiday table loaded for %d; weekday treated as trading", date.Year())
	}
	return status
}

// IsTradingDay reports whether the date is tradable.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	return c.Status(date).IsTradingDay
}

// NearestTradingDay walks one day at a time in the given direction,
// starting from date itself, and returns the first trading day. The walk is
// bounded by maxLookback days to avoid unbounded loops on malformed tables.
func (c *Calendar) NearestTradingDay(date time.Time, dir Direction, maxLookback int) (time.Time, error) {
	if maxLookback <= 0 {
		maxLookback = 30
	}

	step := -1
	if dir == Forward {
		step = 1
	}

	d := date
	for i := 0; i <= maxLookback; i++ {
		if c.IsTradingDay(d) {
			return d, nil
		}
		d = d.AddDate(0, 0, step)
	}

	return time.Time{}, fmt.Errorf("%w: %d days from %s", ErrNoTradingDay, maxLookback, date.Format(dateLayout))
}

// EnumerateTradingDays returns all trading days in [start, end], ordered
// ascending. An inverted range yields an empty slice.
func (c *Calendar) EnumerateTradingDays(start, end time.Time) []time.Time {
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}
