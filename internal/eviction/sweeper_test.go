package eviction

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEvictor struct {
	mu    sync.Mutex
	calls int
	age   time.Duration
}

func (e *countingEvictor) EvictStale(_ context.Context, age time.Duration) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.age = age
	return []string{"stale"}, nil
}

func (e *countingEvictor) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func TestNewSweeper_ClampsInterval(t *testing.T) {
	s := NewSweeper(&countingEvictor{}, time.Hour, time.Millisecond, nil)
	assert.Equal(t, MinInterval, s.Interval())

	s = NewSweeper(&countingEvictor{}, time.Hour, time.Second, nil)
	assert.Equal(t, time.Second, s.Interval())
}

func TestSweep_PassesAge(t *testing.T) {
	ev := &countingEvictor{}
	s := NewSweeper(ev, 90*time.Minute, time.Second, nil)

	assert.Equal(t, []string{"stale"}, s.Sweep(context.Background()))
	assert.Equal(t, 90*time.Minute, ev.age)
}

func TestSweep_LeavesEvictionLogToStorage(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	s := NewSweeper(&countingEvictor{}, time.Hour, time.Second, logger)

	assert.Equal(t, []string{"stale"}, s.Sweep(context.Background()))
	assert.Empty(t, buf.String())
}

func TestStartStop(t *testing.T) {
	ev := &countingEvictor{}
	s := NewSweeper(ev, time.Hour, MinInterval, nil)

	s.Start(context.Background())
	s.Start(context.Background())
	require.Eventually(t, func() bool { return ev.Calls() >= 2 }, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	after := ev.Calls()
	time.Sleep(3 * MinInterval)
	assert.Equal(t, after, ev.Calls(), "no sweeps after Stop")

	s.Stop()
}
