package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wendao/limitpulse/internal/health"
	"github.com/wendao/limitpulse/internal/retry"
	"github.com/wendao/limitpulse/pkg/logger"
)

func newTestScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	retrier := retry.New(retry.Strategy{
		MaxAttempts: 1,
		BaseDelay:   time.Millisecond,
		Multiplier:  2,
		MinDelay:    time.Millisecond,
	}, health.NewTracker(), logger.NewNop())
	s := New(cfg, retrier, logger.NewNop())
	t.Cleanup(s.Shutdown)
	return s
}

func TestSubmitResolvesResult(t *testing.T) {
	s := newTestScheduler(t, Config{MaxConcurrent: 2})

	fut, err := s.Submit(func(ctx context.Context) (interface{}, error) {
		return "payload", nil
	}, "A", 1)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	v, err := fut.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if v != "payload" {
		t.Errorf("value = %v, want payload", v)
	}
}

func TestPriorityOrderingWithFIFOWithinTier(t *testing.T) {
	s := newTestScheduler(t, Config{MaxConcurrent: 1})

	// Block the single worker so later submissions pile up in the queue.
	release := make(chan struct{})
	blocker, _ := s.Submit(func(ctx context.Context) (interface{}, error) {
		<-release
		return nil, nil
	}, "A", 0)

	var mu sync.Mutex
	var order []string
	record := func(name string) Task {
		return func(ctx context.Context) (interface{}, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil, nil
		}
	}

	// Submitted out of priority order; same-tier tasks keep submission order.
	futs := []*Future{}
	for _, tc := range []struct {
		name     string
		priority int
	}{
		{"low-1", 5},
		{"high-1", 1},
		{"low-2", 5},
		{"high-2", 1},
		{"mid-1", 3},
	} {
		f, err := s.Submit(record(tc.name), "A", tc.priority)
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		futs = append(futs, f)
	}

	close(release)
	if _, err := blocker.Wait(context.Background()); err != nil {
		t.Fatalf("blocker failed: %v", err)
	}
	for _, f := range futs {
		if _, err := f.Wait(context.Background()); err != nil {
			t.Fatalf("task failed: %v", err)
		}
	}

	want := []string{"high-1", "high-2", "mid-1", "low-1", "low-2"}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(want) {
		t.Fatalf("executed %d tasks, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s (full: %v)", i, order[i], want[i], order)
		}
	}
}

func TestConcurrencyCapNeverExceeded(t *testing.T) {
	const maxConc = 3
	s := newTestScheduler(t, Config{MaxConcurrent: maxConc})

	var current, peak int64
	var futs []*Future
	for i := 0; i < 20; i++ {
		f, err := s.Submit(func(ctx context.Context) (interface{}, error) {
			n := atomic.AddInt64(&current, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&current, -1)
			return nil, nil
		}, "A", 1)
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		futs = append(futs, f)
	}

	for _, f := range futs {
		if _, err := f.Wait(context.Background()); err != nil {
			t.Fatalf("task failed: %v", err)
		}
	}

	if p := atomic.LoadInt64(&peak); p > maxConc {
		t.Errorf("peak in-flight = %d, exceeds cap %d", p, maxConc)
	}
}

func TestShutdownRejectsQueuedAndDrainsInFlight(t *testing.T) {
	s := newTestScheduler(t, Config{MaxConcurrent: 1})

	release := make(chan struct{})
	inFlight, _ := s.Submit(func(ctx context.Context) (interface{}, error) {
		<-release
		return "done", nil
	}, "A", 1)

	// Give the worker time to pick up the blocker, then queue one more.
	time.Sleep(20 * time.Millisecond)
	queued, _ := s.Submit(func(ctx context.Context) (interface{}, error) {
		return nil, nil
	}, "A", 1)

	done := make(chan struct{})
	go func() {
		s.Shutdown()
		close(done)
	}()

	// The queued task must be rejected with a cancellation error.
	if _, err := queued.Wait(context.Background()); !errors.Is(err, ErrTaskCanceled) {
		t.Errorf("queued task error = %v, want ErrTaskCanceled", err)
	}

	// The in-flight task must run to completion.
	close(release)
	v, err := inFlight.Wait(context.Background())
	if err != nil {
		t.Fatalf("in-flight task failed: %v", err)
	}
	if v != "done" {
		t.Errorf("in-flight value = %v, want done", v)
	}

	<-done

	// Further submissions are rejected.
	if _, err := s.Submit(func(ctx context.Context) (interface{}, error) {
		return nil, nil
	}, "A", 1); !errors.Is(err, ErrSchedulerClosed) {
		t.Errorf("Submit after shutdown = %v, want ErrSchedulerClosed", err)
	}
}

func TestFailureSurfacesClassifiedError(t *testing.T) {
	s := newTestScheduler(t, Config{MaxConcurrent: 1})

	fut, _ := s.Submit(func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("dial tcp: connection refused")
	}, "A", 1)

	_, err := fut.Wait(context.Background())
	var ce *retry.ClassifiedError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *retry.ClassifiedError, got %v", err)
	}
	if ce.Type != retry.NetworkError {
		t.Errorf("type = %s, want network_error", ce.Type)
	}
}
