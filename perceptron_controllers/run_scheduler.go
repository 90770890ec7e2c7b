package perceptron_controllers

import (
	"context"
	"time"
)

const DefaultTickInterval = time.Second

// Ticker is driven by a RunScheduler. Tick returns false once the run should stop.
type Ticker interface {
	Tick(ctx context.Context) bool
}

// RunScheduler invokes a Ticker on a fixed cadence from a single goroutine, so
// a tick always completes before the next one starts. It is not safe for
// concurrent use; the owner serializes Start and Stop.
type RunScheduler struct {
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewRunScheduler(interval time.Duration) *RunScheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &RunScheduler{interval: interval}
}

func (s *RunScheduler) Start(parent context.Context, target Ticker) {
	s.Stop()
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		defer cancel()
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if !target.Tick(ctx) {
					return
				}
			}
		}
	}()
}

// Stop cancels the loop without waiting for it; a tick already in progress
// finishes and no further tick is issued.
func (s *RunScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Done is closed when the current loop exits. It is nil before the first Start.
func (s *RunScheduler) Done() <-chan struct{} {
	return s.done
}

func (s *RunScheduler) Interval() time.Duration {
	return s.interval
}
