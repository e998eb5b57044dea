package breaker

import (
	"sync"
	"time"
)

// Factory builds a fresh CircuitBreaker for a registry key on first use.
type Factory func() *CircuitBreaker

// Registry manages per-key CircuitBreaker instances, so a caller talking
// to many equivalent downstreams (one breaker per provider, per shard,
// per upstream host) doesn't have to wire its own map and mutex.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*registryEntry
	newFn    Factory
	clock    Clock
}

type registryEntry struct {
	breaker  *CircuitBreaker
	lastUsed time.Time
}

// NewRegistry returns a Registry that builds breakers with newFn on
// first use of a key. clock is used only to timestamp entries for
// EvictStale; a nil clock defaults to SystemClock.
func NewRegistry(newFn Factory, clock Clock) *Registry {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Registry{
		breakers: make(map[string]*registryEntry),
		newFn:    newFn,
		clock:    clock,
	}
}

// Get returns the breaker for key, or nil if none has been created yet.
func (r *Registry) Get(key string) *CircuitBreaker {
	r.mu.RLock()
	e, ok := r.breakers[key]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return e.breaker
}

// GetOrCreate returns the breaker for key, creating one via Factory if
// needed. It uses double-checked locking: an existing key is found
// under the read lock, then the write lock is taken briefly to refresh
// its last-used time; only a new key holds the write lock while the
// Factory runs.
func (r *Registry) GetOrCreate(key string) *CircuitBreaker {
	now := r.clock.Now()

	r.mu.RLock()
	e, ok := r.breakers[key]
	r.mu.RUnlock()
	if ok {
		r.touch(e, now)
		return e.breaker
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.breakers[key]; ok {
		e.lastUsed = now
		return e.breaker
	}
	e = &registryEntry{breaker: r.newFn(), lastUsed: now}
	r.breakers[key] = e
	return e.breaker
}

func (r *Registry) touch(e *registryEntry, now time.Time) {
	r.mu.Lock()
	e.lastUsed = now
	r.mu.Unlock()
}

// EvictStale removes breakers whose entry has not been touched by
// GetOrCreate since cutoff, returning the number removed.
func (r *Registry) EvictStale(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for k, e := range r.breakers {
		if e.lastUsed.Before(cutoff) {
			delete(r.breakers, k)
			evicted++
		}
	}
	return evicted
}

// Snapshot returns a map of key to breaker state, for observability.
func (r *Registry) Snapshot() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]State, len(r.breakers))
	for k, e := range r.breakers {
		out[k] = e.breaker.Snapshot().State
	}
	return out
}
