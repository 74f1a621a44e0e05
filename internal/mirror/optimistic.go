package mirror

import (
	"sync"
	"time"
)

// OptimisticStore tracks local mutations that have been pushed to the
// controller but not yet confirmed by a fetch.
//
// While an entry is pending, its expected values overlay the confirmed
// state on the read path, so consumers see the assumed result immediately.
// Remote data always wins: a successful fetch covering the resource's type
// confirms (clears) the entry regardless of what it returned, and an entry
// that outlives its expiry is dropped so the state visibly reverts to the
// last confirmed remote truth.
type OptimisticStore struct {
	mu      sync.Mutex
	expiry  time.Duration
	entries map[string]*optimisticEntry

	now func() time.Time
}

type optimisticEntry struct {
	tag       TypeTag
	expected  map[string]any
	expiresAt time.Time
}

// NewOptimisticStore creates a store with the given confirmation expiry.
func NewOptimisticStore(expiry time.Duration) *OptimisticStore {
	return &OptimisticStore{
		expiry:  expiry,
		entries: make(map[string]*optimisticEntry),
		now:     time.Now,
	}
}

// Expect records the assumed post-mutation values for a resource. A second
// mutation on the same resource replaces the entry and restarts the expiry
// clock.
func (o *OptimisticStore) Expect(id string, tag TypeTag, expected map[string]any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries[id] = &optimisticEntry{
		tag:       tag,
		expected:  deepCopyMap(expected),
		expiresAt: o.now().Add(o.expiry),
	}
}

// ConfirmTypes clears every entry whose resource type was successfully
// fetched this cycle and returns the cleared resource ids so callers can
// republish their state from the fresh snapshot. The fetched snapshot is
// authoritative whether or not it matches the expectation.
func (o *OptimisticStore) ConfirmTypes(fetched map[TypeTag]bool) []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	var confirmed []string
	for id, entry := range o.entries {
		if fetched[entry.tag] {
			confirmed = append(confirmed, id)
			delete(o.entries, id)
		}
	}
	return confirmed
}

// Expire removes entries past their expiry and returns their resource ids
// so callers can republish the reverted state.
func (o *OptimisticStore) Expire() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	var expired []string
	for id, entry := range o.entries {
		if now.After(entry.expiresAt) {
			expired = append(expired, id)
			delete(o.entries, id)
		}
	}
	return expired
}

// Overlay merges the pending expected values for a resource over its
// confirmed state. Returns the state unchanged when nothing is pending.
func (o *OptimisticStore) Overlay(id string, state map[string]any) map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry, ok := o.entries[id]
	if !ok {
		return state
	}
	merged := deepCopyMap(state)
	if merged == nil {
		merged = make(map[string]any, len(entry.expected))
	}
	for k, v := range entry.expected {
		merged[k] = deepCopyValue(v)
	}
	return merged
}

// Pending reports whether any mutation is still awaiting confirmation.
func (o *OptimisticStore) Pending() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries) > 0
}
