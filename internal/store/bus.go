package store

import (
	"log/slog"
	"sync"
)

// Domain names one slice of live data.
type Domain string

const (
	DomainCosmo         Domain = "cosmo"
	DomainWalletTracker Domain = "walletTracker"
	DomainHoldings      Domain = "holdings"
	DomainFooter        Domain = "footer"
	DomainSniper        Domain = "sniper"
	DomainNotifications Domain = "notifications"
	DomainConnection    Domain = "connection"
	DomainLayout        Domain = "layout"
)

// ChangeKind describes what happened to a store.
type ChangeKind string

const (
	ChangeSetAll ChangeKind = "set_all"
	ChangeUpsert ChangeKind = "upsert"
	ChangeRemove ChangeKind = "remove"
	ChangeBatch  ChangeKind = "batch"
	ChangeStatus ChangeKind = "status"
)

// Event is published after a store mutation.
type Event struct {
	Domain Domain
	Kind   ChangeKind
	Count  int
}

// Bus delivers store events to subscribers. Callbacks run synchronously on the
// publishing goroutine and must not block.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Domain]map[int]func(Event)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[Domain]map[int]func(Event)),
	}
}

// Subscribe registers fn for events of one domain and returns the function
// that removes the registration.
func (b *Bus) Subscribe(domain Domain, fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	if b.subs[domain] == nil {
		b.subs[domain] = make(map[int]func(Event))
	}
	b.subs[domain][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[domain], id)
		})
	}
}

// Publish delivers ev to every subscriber of its domain.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.subs[ev.Domain]))
	for _, fn := range b.subs[ev.Domain] {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		deliver(fn, ev)
	}
}

// Subscribers returns the number of callbacks registered for a domain.
func (b *Bus) Subscribers(domain Domain) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[domain])
}

func deliver(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("bus_subscriber_panic", "domain", ev.Domain, "panic", r)
		}
	}()
	fn(ev)
}
