package ingest

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/novadash/engine/internal/wire"
)

// Sink accepts the items of one channel. *batch.Queue satisfies it.
type Sink interface {
	Enqueue(data json.RawMessage)
}

// Toucher is told about server pings. *Socket satisfies it.
type Toucher interface {
	Touch()
}

// DispatchStats counts what the dispatcher has seen.
type DispatchStats struct {
	Frames    map[string]int
	Items     map[string]int
	Pings     int
	Acks      int
	Ignored   int
	Malformed int
	Unknown   map[string]int
}

// Dispatcher classifies raw frames and routes data items to the sink
// registered for their channel.
type Dispatcher struct {
	mu     sync.RWMutex
	routes map[string]Sink
	stats  DispatchStats

	// OnFrame, when set, is called for every data frame with its item count.
	OnFrame func(channel string, items int)
	// OnMalformed, when set, is called for every frame that failed to decode.
	OnMalformed func()
}

// NewDispatcher creates a dispatcher without routes.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		routes: make(map[string]Sink),
		stats: DispatchStats{
			Frames:  make(map[string]int),
			Items:   make(map[string]int),
			Unknown: make(map[string]int),
		},
	}
}

// Route registers the sink of a channel.
func (d *Dispatcher) Route(channel string, sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[channel] = sink
}

// Channels returns the number of routed channels.
func (d *Dispatcher) Channels() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.routes)
}

// Handle processes one raw frame received by src. It never panics.
func (d *Dispatcher) Handle(src Toucher, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatch_panic", "panic", r)
		}
	}()

	frame, err := wire.Decode(raw)
	if err != nil {
		d.mu.Lock()
		d.stats.Malformed++
		d.mu.Unlock()
		slog.Debug("ws_parse_error", "error", err, "raw", truncate(string(raw), 120))
		if d.OnMalformed != nil {
			d.OnMalformed()
		}
		return
	}

	switch frame.Kind {
	case wire.KindPing:
		d.mu.Lock()
		d.stats.Pings++
		d.mu.Unlock()
		if src != nil {
			src.Touch()
		}
	case wire.KindAck:
		d.mu.Lock()
		d.stats.Acks++
		d.mu.Unlock()
		slog.Debug("ws_ack", "channel", frame.Channel)
	case wire.KindIgnore:
		d.mu.Lock()
		d.stats.Ignored++
		d.mu.Unlock()
	case wire.KindData:
		d.route(frame)
	}
}

func (d *Dispatcher) route(frame wire.Frame) {
	d.mu.Lock()
	sink, ok := d.routes[frame.Channel]
	if !ok {
		d.stats.Unknown[frame.Channel]++
		d.mu.Unlock()
		slog.Debug("ws_unknown_channel", "channel", frame.Channel)
		return
	}
	items := wire.SplitBatch(frame.Data)
	d.stats.Frames[frame.Channel]++
	d.stats.Items[frame.Channel] += len(items)
	d.mu.Unlock()

	for _, item := range items {
		sink.Enqueue(item)
	}
	if d.OnFrame != nil {
		d.OnFrame(frame.Channel, len(items))
	}
}

// Stats returns a copy of the counters.
func (d *Dispatcher) Stats() DispatchStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := d.stats
	out.Frames = copyCounts(d.stats.Frames)
	out.Items = copyCounts(d.stats.Items)
	out.Unknown = copyCounts(d.stats.Unknown)
	return out
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// truncate shortens a string for logging.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
