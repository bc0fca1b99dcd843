package notify

import (
	"sync"
	"time"
)

// BurstTracker counts events per key inside a sliding window.
type BurstTracker struct {
	mu     sync.Mutex
	events map[string][]time.Time
	window time.Duration
	now    func() time.Time
}

// NewBurstTracker creates a tracker with the given window.
func NewBurstTracker(window time.Duration, now func() time.Time) *BurstTracker {
	if now == nil {
		now = time.Now
	}
	return &BurstTracker{
		events: make(map[string][]time.Time),
		window: window,
		now:    now,
	}
}

// Record adds an event for key and returns the number of events inside the
// window, the new one included.
func (b *BurstTracker) Record(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	kept := prune(b.events[key], now.Add(-b.window))
	kept = append(kept, now)
	b.events[key] = kept
	return len(kept)
}

// Allow records an event for key only when the window holds none, and
// reports whether it did.
func (b *BurstTracker) Allow(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	kept := prune(b.events[key], now.Add(-b.window))
	if len(kept) > 0 {
		b.events[key] = kept
		return false
	}
	b.events[key] = append(kept, now)
	return true
}

// Count returns the events of key inside the window without recording one.
func (b *BurstTracker) Count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(prune(b.events[key], b.now().Add(-b.window)))
}

// Cleanup forgets keys without recent events.
func (b *BurstTracker) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.now().Add(-b.window)
	for key, ts := range b.events {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(b.events, key)
		}
	}
}

// Len returns the number of tracked keys.
func (b *BurstTracker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// prune drops timestamps at or before cutoff. ts is ordered.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}
