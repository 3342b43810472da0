// Package tick implements the Tick Source (spec.md §4.1/§5, C2): a
// periodic wake-up that drives the scheduler loop. Modeled on the
// ticker-plus-stop-channel goroutine the teacher uses for its LED and
// queue-manager loops (sequencer/manager.go ledLoop/queueManagerLoop).
package tick

import (
	"sync"
	"time"
)

// Source posts wake-ups to a callback at roughly fixed intervals. The
// jitter guarantee in spec.md §5 requires interval <= 50% of the
// scheduler's schedule-ahead horizon.
type Source interface {
	// Start begins calling fn on each tick. Calling Start while already
	// running is a no-op.
	Start(fn func())
	// Stop halts future ticks. Idempotent.
	Stop()
}

// TickerSource is the default Source, backed by time.Ticker on a
// dedicated goroutine.
type TickerSource struct {
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewTickerSource returns a Source that wakes every interval.
func NewTickerSource(interval time.Duration) *TickerSource {
	return &TickerSource{interval: interval}
}

// Start launches the ticker goroutine if not already running.
func (t *TickerSource) Start(fn func()) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	stopCh := make(chan struct{})
	done := make(chan struct{})
	t.stopCh = stopCh
	t.done = done
	t.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// Stop halts the ticker goroutine and waits for it to exit. Safe to call
// repeatedly and safe to call when never started.
func (t *TickerSource) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	stopCh := t.stopCh
	done := t.done
	t.mu.Unlock()

	close(stopCh)
	<-done
}

// Running reports whether the ticker goroutine is currently active.
func (t *TickerSource) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
