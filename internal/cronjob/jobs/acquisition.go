package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wendao/limitpulse/internal/pipeline"
	"github.com/wendao/limitpulse/pkg/logger"
)

// DailyAcquisitionJob runs the full snapshot acquisition shortly after the
// mainland close. The pipeline's calendar gate makes holiday runs free, so
// the schedule itself stays simple.
type DailyAcquisitionJob struct {
	pipeline *pipeline.Pipeline
	logger   *logger.Logger
}

// NewDailyAcquisitionJob creates a new daily acquisition job
func NewDailyAcquisitionJob(p *pipeline.Pipeline, log *logger.Logger) *DailyAcquisitionJob {
	return &DailyAcquisitionJob{
		pipeline: p,
		logger:   log,
	}
}

// Name returns the job name
func (j *DailyAcquisitionJob) Name() string {
	return "daily_acquisition"
}

// Schedule returns the cron schedule (every day at 15:10 CST, after close)
func (j *DailyAcquisitionJob) Schedule() string {
	return "0 10 15 * * *"
}

// Run executes the acquisition for today's date
func (j *DailyAcquisitionJob) Run(ctx context.Context) error {
	date := time.Now().Format("2006-01-02")

	res, err := j.pipeline.Run(ctx, date, nil, pipeline.Options{})
	if err != nil {
		return fmt.Errorf("acquisition run: %w", err)
	}

	if res.Skipped {
		j.logger.WithFields(map[string]interface{}{
			"date":   date,
			"reason": res.Reason,
		}).Info("Acquisition skipped, not a trading day")
		return nil
	}
	if !res.Success {
		return fmt.Errorf("acquisition finished with %d failed data types", len(res.Errors))
	}

	j.logger.WithFields(map[string]interface{}{
		"date":   date,
		"quotes": res.Metadata.QuoteCount,
		"types":  len(res.Data),
	}).Info("Scheduled acquisition completed")

	return nil
}
