// Package batch coalesces high-frequency channel updates into periodic store writes.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is the flush interval used when none is configured.
const DefaultInterval = 250 * time.Millisecond

// DecodeFunc turns one queued payload into a typed entry.
type DecodeFunc[T any] func(json.RawMessage) (T, error)

// KeyFunc returns the natural key of an entry.
type KeyFunc[T any] func(T) string

// SinkFunc receives one deduplicated batch per flush.
type SinkFunc[T any] func([]T)

// pending is a queued payload with its arrival time.
type pending struct {
	data      json.RawMessage
	timestamp time.Time
}

// Stats counts queue activity.
type Stats struct {
	Enqueued int64
	Flushes  int64
	Flushed  int64
	Dropped  int64
	Pending  int
}

// Queue accumulates payloads for one domain and flushes them on a timer.
type Queue[T any] struct {
	name     string
	interval time.Duration
	decode   DecodeFunc[T]
	key      KeyFunc[T]
	sink     SinkFunc[T]

	mu    sync.Mutex
	items []pending
	stats Stats

	// OnFlush is called after every non-empty flush with the batch size.
	OnFlush func(name string, size int)
	// OnDrop is called for every payload that failed to decode.
	OnDrop func(name string)
}

// NewQueue creates a queue. interval <= 0 selects DefaultInterval.
func NewQueue[T any](name string, interval time.Duration, decode DecodeFunc[T], key KeyFunc[T], sink SinkFunc[T]) *Queue[T] {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Queue[T]{
		name:     name,
		interval: interval,
		decode:   decode,
		key:      key,
		sink:     sink,
		items:    make([]pending, 0, 64),
	}
}

// Name returns the domain name of the queue.
func (q *Queue[T]) Name() string {
	return q.name
}

// Enqueue appends a payload. There is no upper bound; superseded entries are
// collapsed on flush.
func (q *Queue[T]) Enqueue(data json.RawMessage) {
	q.mu.Lock()
	q.items = append(q.items, pending{data: data, timestamp: time.Now()})
	q.stats.Enqueued++
	q.mu.Unlock()
}

// Len returns the number of queued payloads.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats returns a copy of the queue counters.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Pending = len(q.items)
	return s
}

// Flush drains the queue and hands one deduplicated batch to the sink.
// It returns the number of entries delivered.
func (q *Queue[T]) Flush() int {
	q.mu.Lock()
	drained := q.items
	q.items = make([]pending, 0, cap(drained))
	q.mu.Unlock()

	if len(drained) == 0 {
		return 0
	}

	entries := make([]T, 0, len(drained))
	keys := make([]string, 0, len(drained))
	dropped := 0
	for _, item := range drained {
		entry, err := q.decodeOne(item.data)
		if err != nil {
			dropped++
			slog.Warn("queue_decode_failed", "queue", q.name, "error", err, "age", time.Since(item.timestamp))
			if q.OnDrop != nil {
				q.OnDrop(q.name)
			}
			continue
		}
		entries = append(entries, entry)
		keys = append(keys, q.key(entry))
	}

	batch := dedupLast(entries, keys)

	q.mu.Lock()
	q.stats.Dropped += int64(dropped)
	if len(batch) > 0 {
		q.stats.Flushes++
		q.stats.Flushed += int64(len(batch))
	}
	q.mu.Unlock()

	if len(batch) == 0 {
		return 0
	}

	q.deliver(batch)
	if q.OnFlush != nil {
		q.OnFlush(q.name, len(batch))
	}
	return len(batch)
}

// Run flushes on every tick until ctx is done, then flushes once more.
func (q *Queue[T]) Run(ctx context.Context) {
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	slog.Debug("queue_started", "queue", q.name, "interval", q.interval)
	for {
		select {
		case <-ctx.Done():
			q.Flush()
			slog.Debug("queue_stopped", "queue", q.name)
			return
		case <-ticker.C:
			q.Flush()
		}
	}
}

// decodeOne isolates decoder panics to the offending payload.
func (q *Queue[T]) decodeOne(data json.RawMessage) (entry T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoder panic: %v", r)
		}
	}()
	return q.decode(data)
}

func (q *Queue[T]) deliver(batch []T) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("queue_sink_panic", "queue", q.name, "panic", r)
		}
	}()
	q.sink(batch)
}

// dedupLast keeps the last occurrence of every key. The result is ordered by
// the position of each key's last occurrence.
func dedupLast[T any](entries []T, keys []string) []T {
	last := make(map[string]int, len(keys))
	for i, k := range keys {
		last[k] = i
	}
	out := make([]T, 0, len(last))
	for i, k := range keys {
		if last[k] == i {
			out = append(out, entries[i])
		}
	}
	return out
}
