// Package eviction runs the background preempt sweep that removes pads
// left unread for longer than the configured age.
package eviction

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MinInterval is the floor applied to the sweep period.
const MinInterval = 100 * time.Millisecond

// Evictor removes stale pads across all tenants and returns their ids.
type Evictor interface {
	EvictStale(ctx context.Context, age time.Duration) ([]string, error)
}

// Sweeper periodically calls Evictor.EvictStale.
type Sweeper struct {
	evictor  Evictor
	age      time.Duration
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper returns a stopped sweeper. interval is clamped to MinInterval.
func NewSweeper(evictor Evictor, age, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		evictor:  evictor,
		age:      age,
		interval: max(interval, MinInterval),
		logger:   logger,
	}
}

// Interval returns the effective sweep period.
func (s *Sweeper) Interval() time.Duration { return s.interval }

// Start launches the sweep loop. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Errors are logged; the loop keeps going. Storage logs
// the evicted ids, so a successful pass only leaves a debug summary.
func (s *Sweeper) Sweep(ctx context.Context) []string {
	evicted, err := s.evictor.EvictStale(ctx, s.age)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("preempt sweep failed", "error", err)
		}
		return evicted
	}
	s.logger.Debug("preempt sweep complete", "count", len(evicted))
	return evicted
}

// Stop cancels the loop and waits up to one interval plus a second for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
	case <-time.After(s.interval + time.Second):
		s.logger.Warn("preempt sweeper did not stop in time")
	}
}
