package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_Counters(t *testing.T) {
	r := NewRegistry()
	r.RecordOperation(" Create ", 1)
	r.RecordOperation("create", 2)
	r.RecordOperation("search", 1)
	r.RecordOperation("", 5)
	r.RecordError("not_found", 1)
	r.RecordEviction("", 1)
	r.RecordEviction("discard", 0)

	snap := r.Snapshot()
	assert.Equal(t, 3, snap.Operations["create"])
	assert.Equal(t, 1, snap.Operations["search"])
	assert.Equal(t, 0, snap.Operations["validate"])
	assert.Equal(t, 1, snap.Errors["NOT_FOUND"])
	assert.Equal(t, 1, snap.Evictions["unknown"])
	assert.Equal(t, 0, snap.Evictions["discard"])
}

func TestRegistry_Uptime(t *testing.T) {
	start := time.Unix(1000, 0)
	now := start
	r := &Registry{now: func() time.Time { return now }}
	r.Reset()

	now = start.Add(90 * time.Second)
	assert.Equal(t, 90.0, r.Snapshot().UptimeSeconds)

	r.Reset()
	assert.Equal(t, 0.0, r.Snapshot().UptimeSeconds)
}

func TestInstall(t *testing.T) {
	t.Cleanup(func() { Install(nil) })

	// No registry installed: recording is a no-op.
	Install(nil)
	RecordOperation("create")

	r := NewRegistry()
	Install(r)
	RecordOperation("create")
	RecordError("VALIDATION_ERROR")
	RecordEviction("preempt", 3)

	snap := Installed().Snapshot()
	assert.Equal(t, 1, snap.Operations["create"])
	assert.Equal(t, 1, snap.Errors["VALIDATION_ERROR"])
	assert.Equal(t, 3, snap.Evictions["preempt"])
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.RecordOperation("read", 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, r.Snapshot().Operations["read"])
}
