package store

import (
	"sort"
	"sync"
	"time"
)

// Status is the loading lifecycle of a domain store.
type Status int

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Order selects how a keyed list positions entries.
type Order int

const (
	// PrependNew keeps existing entries in place and inserts new keys at the front.
	PrependNew Order = iota
	// AppendNew keeps existing entries in place and inserts new keys at the back.
	AppendNew
	// ByRecency re-sorts the list newest first after every mutation.
	ByRecency
)

// KeyedOptions configures a Keyed store.
type KeyedOptions[T any] struct {
	Domain Domain
	Key    func(T) string
	Order  Order
	// Recency is required for ByRecency.
	Recency func(T) time.Time
	// Removed marks batch entries that delete their key instead of upserting.
	Removed func(T) bool
	// Capacity trims the tail when > 0.
	Capacity int
	// Bus may be nil.
	Bus *Bus
}

// Keyed is a list of entries unique by natural key.
type Keyed[T any] struct {
	opts KeyedOptions[T]

	mu     sync.RWMutex
	items  []T
	index  map[string]int
	status Status
}

// NewKeyed creates an empty store.
func NewKeyed[T any](opts KeyedOptions[T]) *Keyed[T] {
	return &Keyed[T]{
		opts:  opts,
		items: make([]T, 0),
		index: make(map[string]int),
	}
}

// MarkLoading records that a seed fetch has started. A ready store stays ready.
func (s *Keyed[T]) MarkLoading() {
	s.mu.Lock()
	changed := s.status == StatusUninitialized
	if changed {
		s.status = StatusLoading
	}
	s.mu.Unlock()

	if changed {
		s.publish(ChangeStatus, 0)
	}
}

// SetAll replaces the whole list. Duplicate keys collapse to the last one.
func (s *Keyed[T]) SetAll(list []T) {
	s.mu.Lock()
	s.items = s.items[:0]
	s.index = make(map[string]int, len(list))
	for _, entry := range list {
		k := s.opts.Key(entry)
		if i, ok := s.index[k]; ok {
			s.items[i] = entry
			continue
		}
		s.index[k] = len(s.items)
		s.items = append(s.items, entry)
	}
	s.normalizeLocked()
	s.status = StatusReady
	n := len(s.items)
	s.mu.Unlock()

	s.publish(ChangeSetAll, n)
}

// Upsert inserts entry or replaces the entry with the same key in place.
func (s *Keyed[T]) Upsert(entry T) {
	s.mu.Lock()
	s.upsertLocked(entry)
	s.normalizeLocked()
	s.mu.Unlock()

	s.publish(ChangeUpsert, 1)
}

// Remove deletes the entry with key. It reports whether an entry was removed.
func (s *Keyed[T]) Remove(key string) bool {
	s.mu.Lock()
	removed := s.removeLocked(key)
	s.mu.Unlock()

	if removed {
		s.publish(ChangeRemove, 1)
	}
	return removed
}

// Apply writes one flushed batch and publishes a single event.
func (s *Keyed[T]) Apply(batch []T) {
	s.mu.Lock()
	for _, entry := range batch {
		if s.opts.Removed != nil && s.opts.Removed(entry) {
			s.removeLocked(s.opts.Key(entry))
			continue
		}
		s.upsertLocked(entry)
	}
	s.normalizeLocked()
	s.status = StatusReady
	s.mu.Unlock()

	s.publish(ChangeBatch, len(batch))
}

// List returns a copy of the entries in display order.
func (s *Keyed[T]) List() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Get returns the entry with key.
func (s *Keyed[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.index[key]; ok {
		return s.items[i], true
	}
	var zero T
	return zero, false
}

// Len returns the number of entries.
func (s *Keyed[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Status returns the loading status.
func (s *Keyed[T]) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Keyed[T]) upsertLocked(entry T) {
	k := s.opts.Key(entry)
	if i, ok := s.index[k]; ok {
		s.items[i] = entry
		return
	}

	if s.opts.Order == PrependNew {
		s.items = append(s.items, entry)
		copy(s.items[1:], s.items[:len(s.items)-1])
		s.items[0] = entry
		s.reindexLocked()
		return
	}

	s.index[k] = len(s.items)
	s.items = append(s.items, entry)
}

func (s *Keyed[T]) removeLocked(key string) bool {
	i, ok := s.index[key]
	if !ok {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.reindexLocked()
	return true
}

// normalizeLocked applies recency ordering and the capacity limit.
func (s *Keyed[T]) normalizeLocked() {
	if s.opts.Order == ByRecency && s.opts.Recency != nil {
		sort.SliceStable(s.items, func(i, j int) bool {
			return s.opts.Recency(s.items[i]).After(s.opts.Recency(s.items[j]))
		})
	}
	if s.opts.Capacity > 0 && len(s.items) > s.opts.Capacity {
		var zero T
		for i := s.opts.Capacity; i < len(s.items); i++ {
			s.items[i] = zero
		}
		s.items = s.items[:s.opts.Capacity]
	}
	s.reindexLocked()
}

func (s *Keyed[T]) reindexLocked() {
	s.index = make(map[string]int, len(s.items))
	for i, entry := range s.items {
		s.index[s.opts.Key(entry)] = i
	}
}

func (s *Keyed[T]) publish(kind ChangeKind, count int) {
	if s.opts.Bus == nil {
		return
	}
	s.opts.Bus.Publish(Event{Domain: s.opts.Domain, Kind: kind, Count: count})
}
