package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/novadash/engine/internal/store"
)

// SignalType names a wallet activity rule.
type SignalType string

const (
	SignalLargeTrade SignalType = "large_trade"
	SignalBurst      SignalType = "burst"
	SignalFirstBuy   SignalType = "first_buy"
)

// Rules configures the wallet signal detector.
type Rules struct {
	LargeTradeSOL float64
	BurstCount    int
	BurstWindow   time.Duration
}

// Signal is one rule hit.
type Signal struct {
	Type   SignalType
	Wallet store.TrackedWallet
	Count  int
}

// Notification renders the signal as a toast.
func (s Signal) Notification() Notification {
	who := s.Wallet.Name
	if who == "" {
		who = shortAddr(s.Wallet.Wallet)
	}
	switch s.Type {
	case SignalLargeTrade:
		return Notification{
			Level:   LevelWarning,
			Title:   "Large trade",
			Message: fmt.Sprintf("%s %s %.2f SOL of %s", who, s.Wallet.LastSide, s.Wallet.AmountSOL, shortAddr(s.Wallet.LastMint)),
			Source:  "signals",
		}
	case SignalBurst:
		return Notification{
			Level:   LevelWarning,
			Title:   "Trading burst",
			Message: fmt.Sprintf("%s made %d trades in a short window", who, s.Count),
			Source:  "signals",
		}
	default:
		return Notification{
			Level:   LevelInfo,
			Title:   "New position",
			Message: fmt.Sprintf("%s bought %s", who, shortAddr(s.Wallet.LastMint)),
			Source:  "signals",
		}
	}
}

// Detector turns tracked wallet updates into signals.
type Detector struct {
	rules Rules
	burst *BurstTracker

	mu       sync.Mutex
	lastSeen map[string]int64
	bought   map[string]struct{}
}

// NewDetector creates a detector.
func NewDetector(rules Rules, now func() time.Time) *Detector {
	if rules.BurstWindow <= 0 {
		rules.BurstWindow = time.Minute
	}
	return &Detector{
		rules:    rules,
		burst:    NewBurstTracker(rules.BurstWindow, now),
		lastSeen: make(map[string]int64),
		bought:   make(map[string]struct{}),
	}
}

// Detect checks one wallet update. Updates that do not carry a newer activity
// timestamp than the last one seen for the wallet are ignored.
func (d *Detector) Detect(w store.TrackedWallet) []Signal {
	if w.Wallet == "" || w.Action == store.ActionRemove {
		return nil
	}

	d.mu.Lock()
	prev, seen := d.lastSeen[w.Wallet]
	if seen && w.LastActivity <= prev {
		d.mu.Unlock()
		return nil
	}
	d.lastSeen[w.Wallet] = w.LastActivity
	firstBuy := false
	if w.LastSide == "buy" && w.LastMint != "" {
		key := w.Wallet + "|" + w.LastMint
		if _, ok := d.bought[key]; !ok {
			d.bought[key] = struct{}{}
			firstBuy = seen
		}
	}
	d.mu.Unlock()

	// the first sighting of a wallet is its seed state, not a trade
	if !seen {
		return nil
	}

	var signals []Signal

	if d.rules.LargeTradeSOL > 0 && w.AmountSOL >= d.rules.LargeTradeSOL {
		signals = append(signals, Signal{Type: SignalLargeTrade, Wallet: w})
	}

	if d.rules.BurstCount > 0 {
		if count := d.burst.Record(w.Wallet); count >= d.rules.BurstCount {
			signals = append(signals, Signal{Type: SignalBurst, Wallet: w, Count: count})
		}
	}

	if firstBuy {
		signals = append(signals, Signal{Type: SignalFirstBuy, Wallet: w})
	}

	return signals
}

// Observe seeds the detector with wallets without emitting signals.
func (d *Detector) Observe(wallets []store.TrackedWallet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range wallets {
		if prev, ok := d.lastSeen[w.Wallet]; !ok || w.LastActivity > prev {
			d.lastSeen[w.Wallet] = w.LastActivity
		}
		if w.LastSide == "buy" && w.LastMint != "" {
			d.bought[w.Wallet+"|"+w.LastMint] = struct{}{}
		}
	}
}

// Cleanup forgets idle burst windows.
func (d *Detector) Cleanup() {
	d.burst.Cleanup()
}

func shortAddr(s string) string {
	if len(s) <= 10 {
		return s
	}
	return s[:4] + "..." + s[len(s)-4:]
}
