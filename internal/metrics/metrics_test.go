package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestTrackerSnapshot(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	tr := NewTracker(nil, c.now)

	tr.RecordFrame("cosmo", 3)
	tr.RecordFrame("cosmo", 1)
	tr.RecordFrame("holdings", 2)
	tr.RecordMalformed()
	tr.RecordFlush("cosmo", 4)
	tr.RecordDrop("cosmo")
	tr.SetSocketStatus("main", "connected", false)
	tr.SetSocketStatus("main", "disconnected", false)
	tr.SetSocketStatus("main", "connected", true)

	c.t = c.t.Add(10 * time.Second)
	snap := tr.Snapshot()

	require.Len(t, snap.Channels, 2)
	assert.Equal(t, ChannelStats{Channel: "cosmo", Frames: 2, Items: 4}, snap.Channels[0])
	assert.Equal(t, int64(6), snap.TotalItems())
	assert.Equal(t, int64(1), snap.Malformed)
	assert.Equal(t, 10*time.Second, snap.Uptime)
	assert.InDelta(t, 6.0/60.0, snap.ItemRate, 1e-9)

	require.Len(t, snap.Queues, 1)
	assert.Equal(t, int64(1), snap.Queues[0].Flushes)
	assert.Equal(t, int64(1), snap.Queues[0].Dropped)
	assert.Equal(t, 4, snap.Queues[0].LastBatch)

	require.Len(t, snap.Sockets, 1)
	assert.Equal(t, "connected", snap.Sockets[0].Status)
	assert.Equal(t, int64(1), snap.Sockets[0].Reconnects)

	// items leave the rate window
	c.t = c.t.Add(2 * time.Minute)
	assert.Zero(t, tr.Snapshot().ItemRate)
}

func TestExporterHandler(t *testing.T) {
	exp := NewExporter()
	tr := NewTracker(exp, nil)

	tr.RecordFrame("walletTracker", 2)
	tr.RecordFlush("walletTracker", 2)
	tr.SetSocketStatus("main", "connected", true)

	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, `novadash_frames_received_total{channel="walletTracker"} 1`)
	assert.Contains(t, out, `novadash_items_received_total{channel="walletTracker"} 2`)
	assert.Contains(t, out, `novadash_socket_connected{socket="main"} 1`)
	assert.Contains(t, out, `novadash_socket_reconnects_total{socket="main"} 1`)
}
