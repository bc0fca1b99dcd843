package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

const (
	walletTrackerCapacity = 500
	sniperCapacity        = 200
)

// WalletTrackerStore lists tracked wallets, most recently active first.
type WalletTrackerStore = Keyed[TrackedWallet]

// NewWalletTrackerStore creates the wallet tracker store.
func NewWalletTrackerStore(bus *Bus) *WalletTrackerStore {
	return NewKeyed(KeyedOptions[TrackedWallet]{
		Domain:   DomainWalletTracker,
		Key:      WalletKey,
		Order:    ByRecency,
		Recency:  TrackedWallet.LastActive,
		Removed:  func(w TrackedWallet) bool { return w.Action == ActionRemove },
		Capacity: walletTrackerCapacity,
		Bus:      bus,
	})
}

// WalletKey returns the natural key of a tracked wallet.
func WalletKey(w TrackedWallet) string { return w.Wallet }

// DecodeTrackedWallet decodes one wallet tracker payload.
func DecodeTrackedWallet(data json.RawMessage) (TrackedWallet, error) {
	var w TrackedWallet
	if err := json.Unmarshal(data, &w); err != nil {
		return TrackedWallet{}, fmt.Errorf("decode tracked wallet: %w", err)
	}
	if w.Wallet == "" {
		return TrackedWallet{}, fmt.Errorf("tracked wallet without address")
	}
	return w, nil
}

// HoldingsStore keeps the positions of each wallet.
type HoldingsStore struct {
	*Keyed[WalletHoldings]
}

// NewHoldingsStore creates the holdings store.
func NewHoldingsStore(bus *Bus) *HoldingsStore {
	return &HoldingsStore{
		Keyed: NewKeyed(KeyedOptions[WalletHoldings]{
			Domain: DomainHoldings,
			Key:    HoldingsKey,
			Order:  AppendNew,
			Bus:    bus,
		}),
	}
}

// HoldingsKey returns the natural key of a holdings entry.
func HoldingsKey(h WalletHoldings) string { return h.Wallet }

// DecodeHoldings decodes one holdings payload.
func DecodeHoldings(data json.RawMessage) (WalletHoldings, error) {
	var h WalletHoldings
	if err := json.Unmarshal(data, &h); err != nil {
		return WalletHoldings{}, fmt.Errorf("decode holdings: %w", err)
	}
	if h.Wallet == "" {
		return WalletHoldings{}, fmt.Errorf("holdings without wallet")
	}
	return h, nil
}

// ByWallet returns the holdings map keyed by wallet.
func (s *HoldingsStore) ByWallet() map[string]WalletHoldings {
	list := s.List()
	out := make(map[string]WalletHoldings, len(list))
	for _, h := range list {
		out[h.Wallet] = h
	}
	return out
}

// For returns the holdings of the selected wallets, in selection order.
func (s *HoldingsStore) For(wallets []string) []WalletHoldings {
	out := make([]WalletHoldings, 0, len(wallets))
	for _, w := range wallets {
		if h, ok := s.Get(w); ok {
			out = append(out, h)
		}
	}
	return out
}

// TotalValue sums the value of the selected wallets. An empty selection
// sums every wallet.
func (s *HoldingsStore) TotalValue(wallets []string) float64 {
	list := s.List()
	if len(wallets) > 0 {
		list = s.For(wallets)
	}
	total := 0.0
	for _, h := range list {
		total += h.TotalValue()
	}
	return total
}

// TopPositions returns up to limit positions across all wallets, by value.
func (s *HoldingsStore) TopPositions(limit int) []Holding {
	var all []Holding
	for _, h := range s.List() {
		all = append(all, h.Holdings...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].ValueUSD > all[j].ValueUSD
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// FooterStore holds the latest footer counters.
type FooterStore struct {
	bus *Bus

	mu     sync.RWMutex
	counts FooterCounts
	status Status
}

// footerKey is the single natural key of footer frames.
const footerKey = "footer"

// NewFooterStore creates the footer store.
func NewFooterStore(bus *Bus) *FooterStore {
	return &FooterStore{bus: bus}
}

// FooterKey returns the constant key used to collapse footer frames.
func FooterKey(FooterCounts) string { return footerKey }

// DecodeFooter decodes one footer payload.
func DecodeFooter(data json.RawMessage) (FooterCounts, error) {
	var c FooterCounts
	if err := json.Unmarshal(data, &c); err != nil {
		return FooterCounts{}, fmt.Errorf("decode footer: %w", err)
	}
	return c, nil
}

// Set replaces the counters.
func (s *FooterStore) Set(c FooterCounts) {
	s.mu.Lock()
	s.counts = c
	s.status = StatusReady
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(Event{Domain: DomainFooter, Kind: ChangeSetAll, Count: 1})
	}
}

// Apply takes the last counters of a batch.
func (s *FooterStore) Apply(batch []FooterCounts) {
	if len(batch) == 0 {
		return
	}
	s.Set(batch[len(batch)-1])
}

// Counts returns the current counters.
func (s *FooterStore) Counts() FooterCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts
}

// Status returns the loading status.
func (s *FooterStore) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SniperStore lists sniper tasks, newest first.
type SniperStore = Keyed[SniperTask]

// NewSniperStore creates the sniper store.
func NewSniperStore(bus *Bus) *SniperStore {
	return NewKeyed(KeyedOptions[SniperTask]{
		Domain:   DomainSniper,
		Key:      SniperKey,
		Order:    PrependNew,
		Removed:  func(t SniperTask) bool { return t.Action == ActionRemove },
		Capacity: sniperCapacity,
		Bus:      bus,
	})
}

// SniperKey returns the natural key of a sniper task.
func SniperKey(t SniperTask) string { return t.ID }

// DecodeSniperTask decodes one sniper payload.
func DecodeSniperTask(data json.RawMessage) (SniperTask, error) {
	var t SniperTask
	if err := json.Unmarshal(data, &t); err != nil {
		return SniperTask{}, fmt.Errorf("decode sniper task: %w", err)
	}
	if t.ID == "" {
		return SniperTask{}, fmt.Errorf("sniper task without id")
	}
	return t, nil
}

// Stores groups every domain store of the dashboard.
type Stores struct {
	Bus           *Bus
	Cosmo         *CosmoStore
	WalletTracker *WalletTrackerStore
	Holdings      *HoldingsStore
	Footer        *FooterStore
	Sniper        *SniperStore
}

// NewStores creates all domain stores on one bus.
func NewStores(bus *Bus) *Stores {
	return &Stores{
		Bus:           bus,
		Cosmo:         NewCosmoStore(bus),
		WalletTracker: NewWalletTrackerStore(bus),
		Holdings:      NewHoldingsStore(bus),
		Footer:        NewFooterStore(bus),
		Sniper:        NewSniperStore(bus),
	}
}
