package charting

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DraftKey identifies the single in-progress chart a patient can have per
// assessment domain. Different keys are fully independent.
type DraftKey struct {
	PatientID uuid.UUID
	Domain    Domain
}

// Draft is an unsaved chart held in memory. It survives screen navigation
// but not process restart, and is removed the moment a persisted save
// succeeds.
type Draft struct {
	State   ChartState
	SavedAt time.Time
}

// DraftCache holds at most one draft per key for the lifetime of the
// process. All stored and returned states are deep clones: callers can
// mutate what they passed in or got back without corrupting the cache.
// Access is mutex-guarded so a debounced auto-save and an explicit
// save-then-clear cannot lose updates to each other.
type DraftCache struct {
	mu      sync.Mutex
	entries map[DraftKey]Draft
	timers  map[DraftKey]*time.Timer
	now     func() time.Time
}

func NewDraftCache() *DraftCache {
	return &DraftCache{
		entries: make(map[DraftKey]Draft),
		timers:  make(map[DraftKey]*time.Timer),
		now:     time.Now,
	}
}

// Save stores a clone of state under key, replacing any prior draft.
func (c *DraftCache) Save(key DraftKey, state ChartState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimer(key)
	c.entries[key] = Draft{State: state.Clone(), SavedAt: c.now()}
}

// SaveDebounced schedules a save of state after delay. A newer edit for
// the same key replaces the pending timer, so only the last state within
// a burst of edits is committed. There is no cancellation token; Clear
// and Save both supersede a pending timer.
func (c *DraftCache) SaveDebounced(key DraftKey, state ChartState, delay time.Duration) {
	if delay <= 0 {
		c.Save(key, state)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.schedule(key, state.Clone(), delay)
}

// schedule registers a debounced commit of clone. Callers hold c.mu.
func (c *DraftCache) schedule(key DraftKey, clone ChartState, delay time.Duration) {
	c.stopTimer(key)
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		// Commit only if this timer is still the registered one. A timer
		// can fire and then lose the lock to a Save, Clear, or newer
		// debounced edit; its state is stale and must not be committed.
		if c.timers[key] != t {
			return
		}
		delete(c.timers, key)
		c.entries[key] = Draft{State: clone, SavedAt: c.now()}
	})
	c.timers[key] = t
}

// Load returns a clone of the draft for key, or nil if none is held.
func (c *DraftCache) Load(key DraftKey) *Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	return &Draft{State: entry.State.Clone(), SavedAt: entry.SavedAt}
}

// Has reports whether a draft is held for key.
func (c *DraftCache) Has(key DraftKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Clear removes the draft for key, along with any pending debounced save.
// Clearing an absent key is a no-op.
func (c *DraftCache) Clear(key DraftKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimer(key)
	delete(c.entries, key)
}

// ClearAll drops every draft and pending save.
func (c *DraftCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.timers {
		c.stopTimer(key)
	}
	c.entries = make(map[DraftKey]Draft)
}

// Len returns the number of drafts currently held.
func (c *DraftCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// stopTimer cancels a pending debounced save. Callers hold c.mu.
func (c *DraftCache) stopTimer(key DraftKey) {
	if t, ok := c.timers[key]; ok {
		t.Stop()
		delete(c.timers, key)
	}
}
