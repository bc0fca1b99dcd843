package notify

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novadash/engine/internal/store"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestDetector(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	d := NewDetector(Rules{LargeTradeSOL: 50, BurstCount: 3, BurstWindow: time.Minute}, c.now)

	d.Observe([]store.TrackedWallet{{Wallet: "whale", LastActivity: 1}, {Wallet: "burst", LastActivity: 1}})

	// Test Case 1: Large trade
	signals := d.Detect(store.TrackedWallet{Wallet: "whale", LastActivity: 2, LastSide: "sell", AmountSOL: 75})
	if len(signals) != 1 || signals[0].Type != SignalLargeTrade {
		t.Errorf("Expected 1 large trade signal, got %v", signals)
	}

	// Test Case 2: replayed update is ignored
	signals = d.Detect(store.TrackedWallet{Wallet: "whale", LastActivity: 2, LastSide: "sell", AmountSOL: 75})
	if len(signals) != 0 {
		t.Errorf("Expected 0 signals for a replayed update, got %v", signals)
	}

	// Test Case 3: Burst
	for i := int64(2); i <= 3; i++ {
		signals = d.Detect(store.TrackedWallet{Wallet: "burst", LastActivity: i, LastSide: "sell", AmountSOL: 1})
		if len(signals) != 0 {
			t.Errorf("Expected 0 signals on trade %d, got %v", i, signals)
		}
	}
	signals = d.Detect(store.TrackedWallet{Wallet: "burst", LastActivity: 4, LastSide: "sell", AmountSOL: 1})
	if len(signals) != 1 || signals[0].Type != SignalBurst || signals[0].Count != 3 {
		t.Errorf("Expected burst signal on third trade, got %v", signals)
	}

	// Burst window expires
	c.advance(2 * time.Minute)
	signals = d.Detect(store.TrackedWallet{Wallet: "burst", LastActivity: 5, LastSide: "sell", AmountSOL: 1})
	if len(signals) != 0 {
		t.Errorf("Expected 0 signals after the window, got %v", signals)
	}
}

func TestDetectorFirstBuy(t *testing.T) {
	d := NewDetector(Rules{}, nil)

	// first sighting is seed state
	if s := d.Detect(store.TrackedWallet{Wallet: "w", LastActivity: 1, LastSide: "buy", LastMint: "A"}); len(s) != 0 {
		t.Errorf("Expected no signal on first sighting, got %v", s)
	}

	s := d.Detect(store.TrackedWallet{Wallet: "w", LastActivity: 2, LastSide: "buy", LastMint: "B"})
	if len(s) != 1 || s[0].Type != SignalFirstBuy {
		t.Errorf("Expected first buy signal, got %v", s)
	}

	s = d.Detect(store.TrackedWallet{Wallet: "w", LastActivity: 3, LastSide: "buy", LastMint: "B"})
	if len(s) != 0 {
		t.Errorf("Expected no signal on repeated buy, got %v", s)
	}
}

func TestCenterCooldown(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	bus := store.NewBus()
	var events []store.Event
	bus.Subscribe(store.DomainNotifications, func(ev store.Event) { events = append(events, ev) })

	center := NewCenter(bus, 10*time.Second, c.now)

	id, ok := center.Error("seed", "Holdings unavailable", errors.New("request timed out"))
	require.True(t, ok)
	require.NotEmpty(t, id)

	_, ok = center.Error("seed", "Holdings unavailable", errors.New("request timed out"))
	assert.False(t, ok)
	assert.Equal(t, 1, center.Len())

	c.advance(11 * time.Second)
	_, ok = center.Error("seed", "Holdings unavailable", errors.New("request timed out"))
	assert.True(t, ok)
	assert.Equal(t, 2, center.Len())
	require.Len(t, events, 2)
	assert.Equal(t, store.ChangeUpsert, events[1].Kind)
}

func TestCenterCooldownCountsShownOnly(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	center := NewCenter(nil, 30*time.Second, c.now)
	fail := errors.New("holdings refetch failed")

	_, ok := center.Error("holdings", "Holdings unavailable", fail)
	require.True(t, ok)

	// a repeat every 20s is suppressed once, then shown again
	c.advance(20 * time.Second)
	_, ok = center.Error("holdings", "Holdings unavailable", fail)
	assert.False(t, ok)

	c.advance(20 * time.Second)
	_, ok = center.Error("holdings", "Holdings unavailable", fail)
	assert.True(t, ok)
	assert.Equal(t, 2, center.Len())
}

func TestCenterDismiss(t *testing.T) {
	center := NewCenter(store.NewBus(), time.Second, nil)

	first, _ := center.Push(Notification{Title: "one"})
	second, _ := center.Push(Notification{Title: "two"})

	active := center.Active()
	require.Len(t, active, 2)
	assert.Equal(t, second, active[0].ID, "newest first")
	assert.Equal(t, LevelInfo, active[0].Level)

	assert.True(t, center.Dismiss(first))
	assert.False(t, center.Dismiss(first))
	assert.Equal(t, 1, center.Len())

	center.DismissAll()
	assert.Zero(t, center.Len())
}

func TestCenterApplyServerBatch(t *testing.T) {
	center := NewCenter(nil, time.Second, nil)

	_, err := DecodeServer([]byte(`{"id":"n1"}`))
	assert.Error(t, err)

	n, err := DecodeServer([]byte(`{"id":"n1","type":"filled","title":"Snipe filled","message":"A bought"}`))
	require.NoError(t, err)
	assert.Equal(t, "n1", ServerKey(n))

	center.Apply([]ServerNotification{n, {Type: "error", Title: "Snipe failed"}})
	active := center.Active()
	require.Len(t, active, 2)
	assert.Equal(t, LevelError, active[0].Level)
	assert.Equal(t, LevelSuccess, active[1].Level)
	assert.Equal(t, "n1", active[1].ID)
}

func TestBurstTrackerCleanup(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	b := NewBurstTracker(time.Minute, c.now)

	assert.Equal(t, 1, b.Record("a"))
	assert.Equal(t, 2, b.Record("a"))
	b.Record("b")

	c.advance(30 * time.Second)
	b.Record("b")
	c.advance(45 * time.Second)

	assert.Equal(t, 0, b.Count("a"))
	assert.Equal(t, 1, b.Count("b"))

	b.Cleanup()
	assert.Equal(t, 1, b.Len())
}
