// Package metrics provides the injected monitoring collaborator.
// A Recorder is constructed once at process start and passed to the
// components that need it; there is no package-level mutable state.
package metrics

import (
	"sort"
	"sync"
)

// Recorder receives pipeline counters and observations
type Recorder interface {
	// Increment adds one to a named counter
	Increment(name string)
	// Observe records a named measurement (durations, counts, scores)
	Observe(name string, value float64)
	// RecordError counts an error against a component
	RecordError(component string)
}

// InMemoryRecorder is the default Recorder backed by in-process maps.
type InMemoryRecorder struct {
	mu       sync.RWMutex
	counters map[string]int64
	observed map[string][]float64
	errors   map[string]int64
}

// NewInMemoryRecorder creates an empty in-memory recorder
func NewInMemoryRecorder() *InMemoryRecorder {
	return &InMemoryRecorder{
		counters: make(map[string]int64),
		observed: make(map[string][]float64),
		errors:   make(map[string]int64),
	}
}

// Increment adds one to a named counter
func (r *InMemoryRecorder) Increment(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name]++
}

// Observe records a named measurement
func (r *InMemoryRecorder) Observe(name string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observed[name] = append(r.observed[name], value)
}

// RecordError counts an error against a component
func (r *InMemoryRecorder) RecordError(component string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[component]++
}

// Counter returns the current value of a counter
func (r *InMemoryRecorder) Counter(name string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name]
}

// ErrorCount returns the error count for a component
func (r *InMemoryRecorder) ErrorCount(component string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.errors[component]
}

// Snapshot returns a copy of all counters for reporting
func (r *InMemoryRecorder) Snapshot() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]int64, len(r.counters)+len(r.errors))
	for k, v := range r.counters {
		snapshot[k] = v
	}
	for k, v := range r.errors {
		snapshot["errors."+k] = v
	}
	return snapshot
}

// ObservedNames returns the sorted names of all observed series
func (r *InMemoryRecorder) ObservedNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.observed))
	for name := range r.observed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Noop is a Recorder that discards everything; useful in tests.
type Noop struct{}

func (Noop) Increment(string)        {}
func (Noop) Observe(string, float64) {}
func (Noop) RecordError(string)      {}
