package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wendao/limitpulse/internal/calendar"
	"github.com/wendao/limitpulse/internal/dispatch"
	"github.com/wendao/limitpulse/internal/feed"
	"github.com/wendao/limitpulse/internal/limits"
	"github.com/wendao/limitpulse/internal/quote"
	"github.com/wendao/limitpulse/internal/store"
	"github.com/wendao/limitpulse/pkg/logger"
)

// calculationMethod records, inside each classified artifact, how the
// facts were derived so historical files stay self-describing.
const calculationMethod = "prev_close_limit_band"

// AllDataTypes lists every artifact the pipeline can produce.
var AllDataTypes = []string{
	store.TypeQuotes,
	store.TypeLimitUp,
	store.TypeLimitDown,
	store.TypeSuspended,
}

// Options tune a single acquisition run.
type Options struct {
	// UseCache serves the run from already-persisted artifacts when every
	// requested data type exists for the date.
	UseCache bool

	// Force refetches even when artifacts exist.
	Force bool

	// SkipCalendarCheck runs the acquisition on non-trading days too.
	SkipCalendarCheck bool
}

// RunError is one failure inside an otherwise surviving run: a data type
// that could not be produced, a source that could not be fetched, or a
// degraded persistence outcome.
type RunError struct {
	DataType string `json:"dataType,omitempty"`
	Source   string `json:"source,omitempty"`
	Stage    string `json:"stage"`
	Message  string `json:"message"`
}

// Metadata describes how a run's data was obtained.
type Metadata struct {
	Sources    []string      `json:"sources,omitempty"` // providers merged into the snapshot
	FromCache  bool          `json:"fromCache,omitempty"`
	QuoteCount int           `json:"quoteCount"`
	Duration   time.Duration `json:"duration"`
}

// Result is the outcome of one acquisition run. Errors fail the run;
// Warnings record degraded-but-survivable conditions (a failed source
// whose peer still served, an artifact persisted to fewer locations than
// configured) so callers can tell a clean run from a degraded one.
type Result struct {
	Success   bool                       `json:"success"`
	Date      string                     `json:"date"`
	Skipped   bool                       `json:"skipped,omitempty"`
	Reason    string                     `json:"reason,omitempty"`    // set when skipped
	Suggested string                     `json:"suggested,omitempty"` // nearest trading day when skipped
	Data      map[string]*store.Envelope `json:"data,omitempty"`
	Errors    []RunError                 `json:"errors,omitempty"`
	Warnings  []RunError                 `json:"warnings,omitempty"`
	Metadata  Metadata                   `json:"metadata"`
}

// Archiver persists classified facts beyond the file artifacts. Optional.
type Archiver interface {
	SaveLimitFacts(ctx context.Context, date string, direction limits.Direction, facts []limits.LimitFact) error
}

// Pipeline wires the calendar gate, scheduled fetching, normalization,
// classification and persistence into one acquisition run.
type Pipeline struct {
	calendar   *calendar.Calendar
	scheduler  *dispatch.Scheduler
	sources    []feed.Source
	normalizer *feed.Normalizer
	classifier *limits.Classifier
	store      *store.Store
	archiver   Archiver
	logger     *logger.Logger
}

// New creates a pipeline. Sources are tried in slice order; archiver may
// be nil when no database is configured.
func New(
	cal *calendar.Calendar,
	sched *dispatch.Scheduler,
	sources []feed.Source,
	st *store.Store,
	archiver Archiver,
	log *logger.Logger,
) (*Pipeline, error) {
	if len(sources) == 0 {
		return nil, errors.New("pipeline: at least one source required")
	}
	return &Pipeline{
		calendar:   cal,
		scheduler:  sched,
		sources:    sources,
		normalizer: feed.NewNormalizer(),
		classifier: limits.NewClassifier(),
		store:      st,
		archiver:   archiver,
		logger:     log,
	}, nil
}

// Run acquires, classifies and persists the requested data types for a
// date. An empty dataTypes slice means all of them. The run survives
// per-type failures; Success reports whether every requested type landed.
func (p *Pipeline) Run(ctx context.Context, date string, dataTypes []string, opts Options) (*Result, error) {
	start := time.Now()

	day, err := calendar.ParseDate(date)
	if err != nil {
		return nil, err
	}
	if len(dataTypes) == 0 {
		dataTypes = AllDataTypes
	}
	for _, dt := range dataTypes {
		if !validDataType(dt) {
			return nil, fmt.Errorf("pipeline: unknown data type %q", dt)
		}
	}

	result := &Result{
		Date: date,
		Data: map[string]*store.Envelope{},
	}

	// The calendar gate runs before anything touches the network: a
	// non-trading date answers immediately with zero upstream calls.
	if !opts.SkipCalendarCheck {
		if status := p.calendar.Status(day); !status.IsTradingDay {
			result.Skipped = true
			result.Reason = skipReason(status)
			if nearest, err := p.calendar.NearestTradingDay(day, calendar.Backward, 0); err == nil {
				result.Suggested = nearest.Format("2006-01-02")
			}
			result.Metadata.Duration = time.Since(start)
			p.logger.WithFields(map[string]interface{}{
				"date":      date,
				"reason":    result.Reason,
				"suggested": result.Suggested,
			}).Info("Run skipped, not a trading day")
			return result, nil
		}
	}

	if opts.UseCache && !opts.Force {
		if cached, ok := p.fromStore(ctx, date, dataTypes); ok {
			result.Success = true
			result.Data = cached
			result.Metadata.FromCache = true
			result.Metadata.Duration = time.Since(start)
			return result, nil
		}
	}

	quotes, served, sourceWarnings, err := p.fetchSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	result.Metadata.Sources = served
	result.Metadata.QuoteCount = len(quotes)
	result.Warnings = append(result.Warnings, sourceWarnings...)

	for _, dt := range dataTypes {
		env, err := p.buildEnvelope(ctx, dt, date, quotes)
		if err != nil {
			result.Errors = append(result.Errors, RunError{DataType: dt, Stage: "build", Message: err.Error()})
			continue
		}

		if err := p.store.Put(ctx, env); err != nil {
			var pw *store.PartialWriteError
			if errors.As(err, &pw) {
				// Durable in at least one location; degraded redundancy
				// survives the run but must stay visible to the caller.
				result.Warnings = append(result.Warnings, RunError{DataType: dt, Stage: "persist", Message: pw.Error()})
				p.logger.WithField("error", pw.Error()).Warn("Artifact persisted with degraded redundancy")
			} else {
				result.Errors = append(result.Errors, RunError{DataType: dt, Stage: "persist", Message: err.Error()})
				continue
			}
		}
		result.Data[dt] = env
	}

	result.Success = len(result.Errors) == 0
	result.Metadata.Duration = time.Since(start)

	p.logger.WithFields(map[string]interface{}{
		"date":     date,
		"sources":  served,
		"quotes":   len(quotes),
		"types":    len(result.Data),
		"failures": len(result.Errors),
		"warnings": len(result.Warnings),
		"duration": result.Metadata.Duration,
	}).Info("Run finished")

	return result, nil
}

// fetchSnapshot submits every source to the scheduler, then merges the
// successful snapshots, de-duplicating by security code (the earlier
// source wins a collision, so the exchange's own phase-coded rows take
// precedence over aggregator rows). A failed source degrades the merge to
// partial coverage and is reported as a warning; the fetch errors out only
// when no source yields usable records.
func (p *Pipeline) fetchSnapshot(ctx context.Context) ([]*quote.SecurityQuote, []string, []RunError, error) {
	futures := make([]*dispatch.Future, len(p.sources))
	for i, src := range p.sources {
		src := src
		fut, err := p.scheduler.Submit(func(ctx context.Context) (interface{}, error) {
			return src.FetchSnapshot(ctx)
		}, src.SourceID(), i+1)
		if err != nil {
			return nil, nil, nil, err
		}
		futures[i] = fut
	}

	var merged []*quote.SecurityQuote
	seen := map[string]bool{}
	var served []string
	var warnings []RunError

	for i, src := range p.sources {
		v, err := futures[i].Wait(ctx)
		if err != nil {
			warnings = append(warnings, RunError{Source: src.SourceID(), Stage: "fetch", Message: err.Error()})
			p.logger.WithFields(map[string]interface{}{
				"source": src.SourceID(),
				"error":  err.Error(),
			}).Warn("Source failed, snapshot degraded to partial coverage")
			continue
		}

		quotes := p.normalizer.NormalizeAll(v.([]feed.RawRecord))
		if len(quotes) == 0 {
			warnings = append(warnings, RunError{Source: src.SourceID(), Stage: "fetch", Message: "no usable records"})
			continue
		}

		for _, q := range quotes {
			if seen[q.Code] {
				continue
			}
			seen[q.Code] = true
			merged = append(merged, q)
		}
		served = append(served, src.SourceID())
	}

	if len(served) == 0 {
		return nil, nil, nil, fmt.Errorf("pipeline: all sources failed: %s", warnings[len(warnings)-1].Message)
	}
	return merged, served, warnings, nil
}

// buildEnvelope materializes one data type from the normalized snapshot.
func (p *Pipeline) buildEnvelope(ctx context.Context, dataType, date string, quotes []*quote.SecurityQuote) (*store.Envelope, error) {
	switch dataType {
	case store.TypeQuotes:
		env, err := store.NewEnvelope(dataType, date, quotes)
		if err != nil {
			return nil, err
		}
		env.TotalCount = len(quotes)
		return env, nil

	case store.TypeLimitUp:
		return p.factsEnvelope(ctx, dataType, date, p.classifier.LimitUp(quotes), limits.DirectionUp)

	case store.TypeLimitDown:
		return p.factsEnvelope(ctx, dataType, date, p.classifier.LimitDown(quotes), limits.DirectionDown)

	case store.TypeSuspended:
		suspended := p.classifier.Suspended(quotes)
		env, err := store.NewEnvelope(dataType, date, suspended)
		if err != nil {
			return nil, err
		}
		env.TotalCount = len(suspended)
		return env, nil

	default:
		return nil, fmt.Errorf("unknown data type %q", dataType)
	}
}

func (p *Pipeline) factsEnvelope(ctx context.Context, dataType, date string, facts []limits.LimitFact, dir limits.Direction) (*store.Envelope, error) {
	env, err := store.NewEnvelope(dataType, date, facts)
	if err != nil {
		return nil, err
	}
	summary := limits.Summarize(facts)
	env.TotalCount = summary.TotalCount
	env.MainBoardCount = summary.MainBoardCount
	env.GrowthBoardCount = summary.GrowthBoardCount
	env.CalculationMethod = calculationMethod

	if p.archiver != nil {
		if err := p.archiver.SaveLimitFacts(ctx, date, dir, facts); err != nil {
			// The file artifact is authoritative; a failed archive write
			// is logged and the run continues.
			p.logger.WithFields(map[string]interface{}{
				"date":      date,
				"direction": string(dir),
				"error":     err.Error(),
			}).Warn("Archive write failed")
		}
	}
	return env, nil
}

// fromStore serves the run from persisted artifacts when every requested
// type exists for the date.
func (p *Pipeline) fromStore(ctx context.Context, date string, dataTypes []string) (map[string]*store.Envelope, bool) {
	out := map[string]*store.Envelope{}
	for _, dt := range dataTypes {
		env, err := p.store.Get(ctx, dt, date)
		if err != nil {
			return nil, false
		}
		out[dt] = env
	}
	return out, true
}

func skipReason(status calendar.DayStatus) string {
	if status.Detail != "" {
		return fmt.Sprintf("%s (%s)", status.Reason, status.Detail)
	}
	return string(status.Reason)
}

func validDataType(dt string) bool {
	for _, known := range AllDataTypes {
		if dt == known {
			return true
		}
	}
	return false
}
