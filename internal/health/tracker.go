package health

import (
	"sync"
	"time"
)

// Status tiers for an upstream source.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const (
	// unhealthyThreshold is the number of consecutive failures that flips a
	// source to Unhealthy. A single success flips it back.
	unhealthyThreshold = 3

	// Degraded is a reporting-only tier: success rate within the rolling
	// window below degradedRate. It never changes retry behaviour.
	defaultWindowSize   = 20
	defaultDegradedRate = 0.8
)

// SourceHealth is a read-only snapshot of one source's state.
type SourceHealth struct {
	SourceID            string    `json:"sourceId"`
	Status              Status    `json:"status"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastError           string    `json:"lastError,omitempty"`
	LastCheckedAt       time.Time `json:"lastCheckedAt"`
	SuccessRate         float64   `json:"successRate"`
}

// Tracker keeps rolling success/failure state per source. Safe for
// concurrent completions from multiple in-flight requests.
type Tracker struct {
	mu           sync.RWMutex
	sources      map[string]*sourceState
	windowSize   int
	degradedRate float64
}

type sourceState struct {
	consecutiveFailures int
	lastError           string
	lastCheckedAt       time.Time

	// fixed-size ring of recent outcomes
	window []bool
	next   int
	filled int
}

// NewTracker creates a tracker with default window settings.
func NewTracker() *Tracker {
	return &Tracker{
		sources:      make(map[string]*sourceState),
		windowSize:   defaultWindowSize,
		degradedRate: defaultDegradedRate,
	}
}

// RecordSuccess records a successful call against the source. Recovery
// from an unhealthy streak resets the rolling window: one success moves
// the source back to Healthy, and the failures that caused the streak must
// not linger as a Degraded reading.
func (t *Tracker) RecordSuccess(sourceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state(sourceID)
	if s.consecutiveFailures >= unhealthyThreshold {
		s.next = 0
		s.filled = 0
	}
	s.consecutiveFailures = 0
	s.lastError = ""
	s.lastCheckedAt = time.Now()
	s.push(true)
}

// RecordFailure records a failed call against the source.
func (t *Tracker) RecordFailure(sourceID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state(sourceID)
	s.consecutiveFailures++
	if err != nil {
		s.lastError = err.Error()
	}
	s.lastCheckedAt = time.Now()
	s.push(false)
}

// Status returns the current snapshot for a source. Unknown sources report
// Healthy with no history.
func (t *Tracker) Status(sourceID string) SourceHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.sources[sourceID]
	if !ok {
		return SourceHealth{SourceID: sourceID, Status: StatusHealthy, SuccessRate: 1.0}
	}

	rate := s.successRate()
	status := StatusHealthy
	switch {
	case s.consecutiveFailures >= unhealthyThreshold:
		status = StatusUnhealthy
	case s.filled > 0 && rate < t.degradedRate:
		status = StatusDegraded
	}

	return SourceHealth{
		SourceID:            sourceID,
		Status:              status,
		ConsecutiveFailures: s.consecutiveFailures,
		LastError:           s.lastError,
		LastCheckedAt:       s.lastCheckedAt,
		SuccessRate:         rate,
	}
}

// Snapshot returns the state of every known source.
func (t *Tracker) Snapshot() map[string]SourceHealth {
	t.mu.RLock()
	ids := make([]string, 0, len(t.sources))
	for id := range t.sources {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	out := make(map[string]SourceHealth, len(ids))
	for _, id := range ids {
		out[id] = t.Status(id)
	}
	return out
}

// state returns the mutable state for a source, creating it on first use.
// Caller must hold the write lock.
func (t *Tracker) state(sourceID string) *sourceState {
	s, ok := t.sources[sourceID]
	if !ok {
		s = &sourceState{window: make([]bool, t.windowSize)}
		t.sources[sourceID] = s
	}
	return s
}

func (s *sourceState) push(ok bool) {
	s.window[s.next] = ok
	s.next = (s.next + 1) % len(s.window)
	if s.filled < len(s.window) {
		s.filled++
	}
}

func (s *sourceState) successRate() float64 {
	if s.filled == 0 {
		return 1.0
	}
	succeeded := 0
	for i := 0; i < s.filled; i++ {
		if s.window[i] {
			succeeded++
		}
	}
	return float64(succeeded) / float64(s.filled)
}
