package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/wendao/limitpulse/internal/health"
	"github.com/wendao/limitpulse/pkg/config"
	"github.com/wendao/limitpulse/pkg/logger"
)

// minDelay floors every computed backoff so a misconfigured strategy can
// never hot-loop against an upstream.
const minDelay = 100 * time.Millisecond

// Strategy holds the backoff parameters for one execution.
type Strategy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	MinDelay    time.Duration // defaults to 100ms when zero
}

// StrategyFromConfig builds the default strategy from app config.
func StrategyFromConfig(cfg config.RetryConfig) Strategy {
	return Strategy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		Multiplier:  cfg.BackoffMultiplier,
	}
}

func (s Strategy) normalized() Strategy {
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = 3
	}
	if s.BaseDelay <= 0 {
		s.BaseDelay = time.Second
	}
	if s.MaxDelay <= 0 {
		s.MaxDelay = 30 * time.Second
	}
	if s.Multiplier < 1.0 {
		s.Multiplier = 2.0
	}
	if s.MinDelay <= 0 {
		s.MinDelay = minDelay
	}
	return s
}

// Context carries the state of one call attempt. Created per attempt,
// discarded after the call resolves.
type Context struct {
	SourceID    string
	Attempt     int
	MaxAttempts int
	ErrorType   ErrorType
	Delay       time.Duration
}

// ClassifiedError is the final error surfaced after retries are exhausted
// or a non-retryable failure occurs.
type ClassifiedError struct {
	Type     ErrorType
	SourceID string
	Attempts int
	Err      error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %s after %d attempt(s): %v", e.SourceID, e.Type, e.Attempts, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Coordinator retries operations with classified backoff and records every
// attempt against the health tracker.
type Coordinator struct {
	strategy Strategy
	tracker  *health.Tracker
	logger   *logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a coordinator with the given default strategy.
func New(strategy Strategy, tracker *health.Tracker, log *logger.Logger) *Coordinator {
	return &Coordinator{
		strategy: strategy.normalized(),
		tracker:  tracker,
		logger:   log,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Execute runs fn until it succeeds, a non-retryable classification occurs,
// or attempts are exhausted. The last error is returned as *ClassifiedError.
func (c *Coordinator) Execute(ctx context.Context, sourceID string, fn func(context.Context) error) error {
	return c.ExecuteWith(ctx, sourceID, c.strategy, fn)
}

// ExecuteWith is Execute with a per-call strategy override.
func (c *Coordinator) ExecuteWith(ctx context.Context, sourceID string, strategy Strategy, fn func(context.Context) error) error {
	strategy = strategy.normalized()

	var last *ClassifiedError

	for attempt := 1; attempt <= strategy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn(ctx)
		if err == nil {
			c.tracker.RecordSuccess(sourceID)
			if attempt > 1 {
				c.logger.WithFields(map[string]interface{}{
					"source":  sourceID,
					"attempt": attempt,
				}).Info("Operation succeeded after retry")
			}
			return nil
		}

		c.tracker.RecordFailure(sourceID, err)

		rc := Context{
			SourceID:    sourceID,
			Attempt:     attempt,
			MaxAttempts: strategy.MaxAttempts,
			ErrorType:   Classify(err),
		}
		last = &ClassifiedError{Type: rc.ErrorType, SourceID: sourceID, Attempts: attempt, Err: err}

		if !rc.ErrorType.Retryable() {
			c.logger.WithFields(map[string]interface{}{
				"source": sourceID,
				"type":   string(rc.ErrorType),
				"error":  err.Error(),
			}).Error("Non-retryable failure")
			return last
		}

		if attempt == strategy.MaxAttempts {
			break
		}

		rc.Delay = c.backoff(strategy, rc.Attempt, rc.ErrorType, err)
		c.logger.WithFields(map[string]interface{}{
			"source":  sourceID,
			"attempt": attempt,
			"type":    string(rc.ErrorType),
			"delay":   rc.Delay,
			"error":   err.Error(),
		}).Warn("Attempt failed, backing off")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rc.Delay):
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"source":   sourceID,
		"attempts": last.Attempts,
		"type":     string(last.Type),
	}).Error("All attempts exhausted")
	return last
}

// backoff computes the delay before the next attempt: exponential growth
// capped at MaxDelay, a class multiplier (2.5x rate-limited, 1.5x
// connection reset), then +/-10% jitter, floored at MinDelay.
func (c *Coordinator) backoff(s Strategy, attempt int, et ErrorType, err error) time.Duration {
	delay := float64(s.BaseDelay) * math.Pow(s.Multiplier, float64(attempt-1))
	if delay > float64(s.MaxDelay) {
		delay = float64(s.MaxDelay)
	}

	switch {
	case et == RateLimited:
		delay *= 2.5
	case et == NetworkError && isConnReset(err):
		delay *= 1.5
	}

	c.mu.Lock()
	jitter := (c.rng.Float64()*2 - 1) * 0.10
	c.mu.Unlock()
	delay *= 1 + jitter

	if delay < float64(s.MinDelay) {
		delay = float64(s.MinDelay)
	}

	return time.Duration(delay)
}
