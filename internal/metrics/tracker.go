// Package metrics tracks the health of the sync pipeline: inbound frames,
// queue flushes and socket liveness.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// rateWindow is the span used for the item rate.
const rateWindow = 60 * time.Second

// ChannelStats are the counters of one channel.
type ChannelStats struct {
	Channel string
	Frames  int64
	Items   int64
}

// QueueStats are the counters of one batching queue.
type QueueStats struct {
	Queue       string
	Flushes     int64
	Flushed     int64
	Dropped     int64
	LastBatch   int
	LastFlushAt time.Time
}

// SocketStats are the liveness counters of one socket.
type SocketStats struct {
	Socket     string
	Status     string
	Reconnects int64
	LastChange time.Time
}

// Snapshot is a point-in-time view of the tracker.
type Snapshot struct {
	Channels  []ChannelStats
	Queues    []QueueStats
	Sockets   []SocketStats
	Malformed int64
	ItemRate  float64 // items per second over the last minute
	Uptime    time.Duration
}

// TotalItems sums items over every channel.
func (s Snapshot) TotalItems() int64 {
	var n int64
	for _, c := range s.Channels {
		n += c.Items
	}
	return n
}

// Tracker provides thread-safe sync metrics. Every record call is mirrored to
// the Prometheus exporter when one is attached.
type Tracker struct {
	exporter *Exporter
	now      func() time.Time

	mu         sync.RWMutex
	channels   map[string]*ChannelStats
	queues     map[string]*QueueStats
	sockets    map[string]*SocketStats
	malformed  int64
	startTime  time.Time
	itemTimes  []time.Time
	itemCounts []int
}

// NewTracker creates a tracker. exporter may be nil.
func NewTracker(exporter *Exporter, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		exporter:  exporter,
		now:       now,
		channels:  make(map[string]*ChannelStats),
		queues:    make(map[string]*QueueStats),
		sockets:   make(map[string]*SocketStats),
		startTime: now(),
	}
}

// RecordFrame counts one data frame carrying items entries.
func (t *Tracker) RecordFrame(channel string, items int) {
	t.mu.Lock()
	c, ok := t.channels[channel]
	if !ok {
		c = &ChannelStats{Channel: channel}
		t.channels[channel] = c
	}
	c.Frames++
	c.Items += int64(items)

	now := t.now()
	t.itemTimes = append(t.itemTimes, now)
	t.itemCounts = append(t.itemCounts, items)
	t.pruneRateLocked(now)
	t.mu.Unlock()

	if t.exporter != nil {
		t.exporter.frames.WithLabelValues(channel).Inc()
		t.exporter.items.WithLabelValues(channel).Add(float64(items))
	}
}

// RecordMalformed counts one undecodable frame.
func (t *Tracker) RecordMalformed() {
	t.mu.Lock()
	t.malformed++
	t.mu.Unlock()

	if t.exporter != nil {
		t.exporter.malformed.Inc()
	}
}

// RecordFlush counts one queue flush that delivered size entries.
func (t *Tracker) RecordFlush(queue string, size int) {
	t.mu.Lock()
	q := t.queueLocked(queue)
	q.Flushes++
	q.Flushed += int64(size)
	q.LastBatch = size
	q.LastFlushAt = t.now()
	t.mu.Unlock()

	if t.exporter != nil {
		t.exporter.flushes.WithLabelValues(queue).Inc()
		t.exporter.batchSize.WithLabelValues(queue).Observe(float64(size))
	}
}

// RecordDrop counts one entry a queue could not decode.
func (t *Tracker) RecordDrop(queue string) {
	t.mu.Lock()
	t.queueLocked(queue).Dropped++
	t.mu.Unlock()

	if t.exporter != nil {
		t.exporter.dropped.WithLabelValues(queue).Inc()
	}
}

// SetSocketStatus records the state of a socket. reconnected marks an open
// that followed a drop.
func (t *Tracker) SetSocketStatus(socket, status string, reconnected bool) {
	t.mu.Lock()
	s, ok := t.sockets[socket]
	if !ok {
		s = &SocketStats{Socket: socket}
		t.sockets[socket] = s
	}
	changed := s.Status != status
	s.Status = status
	if changed {
		s.LastChange = t.now()
	}
	if reconnected {
		s.Reconnects++
	}
	t.mu.Unlock()

	if t.exporter != nil {
		up := 0.0
		if status == "connected" {
			up = 1
		}
		t.exporter.socketUp.WithLabelValues(socket).Set(up)
		if reconnected {
			t.exporter.reconnects.WithLabelValues(socket).Inc()
		}
	}
}

// Snapshot returns a point-in-time snapshot, with every list sorted by name.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Snapshot{
		Malformed: t.malformed,
		Uptime:    t.now().Sub(t.startTime),
	}
	for _, c := range t.channels {
		snap.Channels = append(snap.Channels, *c)
	}
	for _, q := range t.queues {
		snap.Queues = append(snap.Queues, *q)
	}
	for _, s := range t.sockets {
		snap.Sockets = append(snap.Sockets, *s)
	}
	sort.Slice(snap.Channels, func(i, j int) bool { return snap.Channels[i].Channel < snap.Channels[j].Channel })
	sort.Slice(snap.Queues, func(i, j int) bool { return snap.Queues[i].Queue < snap.Queues[j].Queue })
	sort.Slice(snap.Sockets, func(i, j int) bool { return snap.Sockets[i].Socket < snap.Sockets[j].Socket })

	// items per second over the rate window
	cutoff := t.now().Add(-rateWindow)
	total := 0
	for i, ts := range t.itemTimes {
		if ts.After(cutoff) {
			total += t.itemCounts[i]
		}
	}
	snap.ItemRate = float64(total) / rateWindow.Seconds()
	return snap
}

func (t *Tracker) queueLocked(name string) *QueueStats {
	q, ok := t.queues[name]
	if !ok {
		q = &QueueStats{Queue: name}
		t.queues[name] = q
	}
	return q
}

func (t *Tracker) pruneRateLocked(now time.Time) {
	cutoff := now.Add(-rateWindow)
	i := 0
	for i < len(t.itemTimes) && !t.itemTimes[i].After(cutoff) {
		i++
	}
	if i > 0 {
		t.itemTimes = t.itemTimes[i:]
		t.itemCounts = t.itemCounts[i:]
	}
}
