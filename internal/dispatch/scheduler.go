package dispatch

import (
	"container/heap"
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wendao/limitpulse/internal/retry"
	"github.com/wendao/limitpulse/pkg/config"
	"github.com/wendao/limitpulse/pkg/logger"
)

var (
	// ErrSchedulerClosed is returned by Submit after Shutdown.
	ErrSchedulerClosed = errors.New("dispatch: scheduler closed")

	// ErrTaskCanceled resolves futures of tasks still queued at shutdown.
	// This is the scheduler's only unilateral cancellation: executing tasks
	// are always drained to completion.
	ErrTaskCanceled = errors.New("dispatch: task canceled at shutdown")
)

// Task is a caller-supplied fetch operation.
type Task func(ctx context.Context) (interface{}, error)

// Future resolves with the task's result once it has executed (or been
// rejected at shutdown).
type Future struct {
	done  chan struct{}
	value interface{}
	err   error
}

// Wait blocks until the task resolves or ctx is done.
func (f *Future) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return f.value, f.err
	}
}

func (f *Future) resolve(value interface{}, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Config holds scheduler tuning knobs.
type Config struct {
	MaxConcurrent int
	PaceMin       time.Duration // random pacing delay window before dispatch
	PaceMax       time.Duration
	Burst         int           // max dispatches per BurstWindow
	BurstWindow   time.Duration
}

// ConfigFrom maps app config onto scheduler config.
func ConfigFrom(cfg config.DispatchConfig) Config {
	return Config{
		MaxConcurrent: cfg.MaxConcurrent,
		PaceMin:       cfg.PaceMin,
		PaceMax:       cfg.PaceMax,
		Burst:         cfg.Burst,
		BurstWindow:   cfg.BurstWindow,
	}
}

// Scheduler is a bounded-concurrency, priority-ordered task dispatcher.
// Pacing and the rolling burst cap are enforced per dispatch, independent
// of the concurrency cap. Every task executes through the retry
// coordinator.
type Scheduler struct {
	cfg     Config
	retrier *retry.Coordinator
	logger  *logger.Logger
	limiter *rate.Limiter

	mu       sync.Mutex
	cond     *sync.Cond
	queue    taskHeap
	seq      uint64
	closed   bool
	inFlight int

	rngMu sync.Mutex
	rng   *rand.Rand

	wg sync.WaitGroup
}

// New creates a scheduler and starts its worker pool.
func New(cfg Config, retrier *retry.Coordinator, log *logger.Logger) *Scheduler {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.PaceMax < cfg.PaceMin {
		cfg.PaceMax = cfg.PaceMin
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.Burst > 0 && cfg.BurstWindow > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.BurstWindow/time.Duration(cfg.Burst)), cfg.Burst)
	}

	s := &Scheduler{
		cfg:     cfg,
		retrier: retrier,
		logger:  log,
		limiter: limiter,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.cond = sync.NewCond(&s.mu)

	for i := 0; i < cfg.MaxConcurrent; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	return s
}

// Submit queues a task for dispatch. Lower priority values dispatch first;
// ties dispatch in submission order.
func (s *Scheduler) Submit(task Task, sourceID string, priority int) (*Future, error) {
	fut := &Future{done: make(chan struct{})}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSchedulerClosed
	}
	s.seq++
	heap.Push(&s.queue, &queueItem{
		task:     task,
		sourceID: sourceID,
		priority: priority,
		seq:      s.seq,
		future:   fut,
		enqueued: time.Now(),
	})
	s.cond.Signal()
	s.mu.Unlock()

	return fut, nil
}

// InFlight returns the number of currently executing tasks.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// QueueLen returns the number of queued, undispatched tasks.
func (s *Scheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Shutdown stops accepting submissions, rejects queued tasks and drains
// in-flight tasks to completion.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true

	rejected := 0
	for s.queue.Len() > 0 {
		item := heap.Pop(&s.queue).(*queueItem)
		item.future.resolve(nil, ErrTaskCanceled)
		rejected++
	}
	s.cond.Broadcast()
	s.mu.Unlock()

	s.wg.Wait()

	if rejected > 0 {
		s.logger.WithField("rejected", rejected).Warn("Scheduler shutdown rejected queued tasks")
	} else {
		s.logger.Debug("Scheduler shutdown complete")
	}
}

// worker pulls eligible tasks off the queue and executes them.
func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		for s.queue.Len() == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.queue.Len() == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		item := heap.Pop(&s.queue).(*queueItem)
		s.inFlight++
		s.mu.Unlock()

		s.execute(item)

		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}
}

// execute applies pacing and the burst cap, then runs the task through the
// retry coordinator and resolves its future.
func (s *Scheduler) execute(item *queueItem) {
	ctx := context.Background()

	if pace := s.paceDelay(); pace > 0 {
		time.Sleep(pace)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		item.future.resolve(nil, err)
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"source":   item.sourceID,
		"priority": item.priority,
		"queued":   time.Since(item.enqueued),
	}).Debug("Dispatching task")

	var value interface{}
	err := s.retrier.Execute(ctx, item.sourceID, func(ctx context.Context) error {
		v, e := item.task(ctx)
		if e != nil {
			return e
		}
		value = v
		return nil
	})

	item.future.resolve(value, err)
}

// paceDelay draws a random delay from the configured [min,max] window.
func (s *Scheduler) paceDelay() time.Duration {
	if s.cfg.PaceMax <= 0 {
		return 0
	}
	if s.cfg.PaceMax == s.cfg.PaceMin {
		return s.cfg.PaceMin
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.cfg.PaceMin + time.Duration(s.rng.Int63n(int64(s.cfg.PaceMax-s.cfg.PaceMin)))
}
