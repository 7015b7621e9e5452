// Package metrics keeps in-process counters for operations, errors and
// evictions. Exposition formatting is left to whoever reads Snapshot.
package metrics

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	defaultOperations = []string{"create", "read", "append", "replace", "delete", "list", "validate"}
	defaultPolicies   = []string{"discard", "preempt"}
)

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Operations    map[string]int `json:"operations"`
	Errors        map[string]int `json:"errors"`
	Evictions     map[string]int `json:"evictions"`
	UptimeSeconds float64        `json:"uptime_seconds"`
}

// Registry is a goroutine-safe counter set.
type Registry struct {
	mu         sync.Mutex
	operations map[string]int
	errors     map[string]int
	evictions  map[string]int
	startedAt  time.Time
	now        func() time.Time
}

// NewRegistry returns an empty registry whose uptime starts now.
func NewRegistry() *Registry {
	r := &Registry{now: time.Now}
	r.Reset()
	return r
}

// RecordOperation counts an operation by lowercase name.
func (r *Registry) RecordOperation(name string, count int) {
	key := strings.ToLower(strings.TrimSpace(name))
	if count <= 0 || key == "" {
		return
	}
	r.mu.Lock()
	r.operations[key] += count
	r.mu.Unlock()
}

// RecordError counts an error by uppercase code.
func (r *Registry) RecordError(code string, count int) {
	key := strings.ToUpper(strings.TrimSpace(code))
	if count <= 0 || key == "" {
		return
	}
	r.mu.Lock()
	r.errors[key] += count
	r.mu.Unlock()
}

// RecordEviction counts evicted pads by policy.
func (r *Registry) RecordEviction(policy string, count int) {
	if count <= 0 {
		return
	}
	key := strings.ToLower(strings.TrimSpace(policy))
	if key == "" {
		key = "unknown"
	}
	r.mu.Lock()
	r.evictions[key] += count
	r.mu.Unlock()
}

// Snapshot copies the counters. Default operations and policies are always present.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Operations: make(map[string]int, len(r.operations)+len(defaultOperations)),
		Errors:     make(map[string]int, len(r.errors)),
		Evictions:  make(map[string]int, len(r.evictions)+len(defaultPolicies)),
	}
	for _, name := range defaultOperations {
		snap.Operations[name] = 0
	}
	for name, n := range r.operations {
		snap.Operations[name] = n
	}
	for code, n := range r.errors {
		snap.Errors[code] = n
	}
	for _, policy := range defaultPolicies {
		snap.Evictions[policy] = 0
	}
	for policy, n := range r.evictions {
		snap.Evictions[policy] = n
	}
	snap.UptimeSeconds = max(r.now().Sub(r.startedAt).Seconds(), 0)
	return snap
}

// Reset clears every counter and restarts the uptime clock.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations = make(map[string]int)
	r.errors = make(map[string]int)
	r.evictions = make(map[string]int)
	r.startedAt = r.now()
}

var active atomic.Pointer[Registry]

// Install makes r the process-wide registry. Nil disables recording.
func Install(r *Registry) {
	active.Store(r)
}

// Installed returns the process-wide registry, or nil.
func Installed() *Registry {
	return active.Load()
}

// RecordOperation counts on the installed registry, if any.
func RecordOperation(name string) {
	if r := active.Load(); r != nil {
		r.RecordOperation(name, 1)
	}
}

// RecordError counts on the installed registry, if any.
func RecordError(code string) {
	if r := active.Load(); r != nil {
		r.RecordError(code, 1)
	}
}

// RecordEviction counts on the installed registry, if any.
func RecordEviction(policy string, count int) {
	if r := active.Load(); r != nil {
		r.RecordEviction(policy, count)
	}
}
