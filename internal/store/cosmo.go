package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// cosmoCapacity bounds each cosmo column.
const cosmoCapacity = 200

// ErrUnknownCategory is returned for a token outside the three cosmo columns.
var ErrUnknownCategory = errors.New("unknown cosmo category")

// CosmoLists is the three-way view of the cosmo feed.
type CosmoLists struct {
	Created         []CosmoToken
	AboutToGraduate []CosmoToken
	Graduated       []CosmoToken
}

// Total returns the number of tokens across all columns.
func (c CosmoLists) Total() int {
	return len(c.Created) + len(c.AboutToGraduate) + len(c.Graduated)
}

// CosmoStore keeps each mint in exactly one of the three category lists.
type CosmoStore struct {
	bus *Bus

	// mu serializes cross-list moves
	mu         sync.Mutex
	lists      map[string]*Keyed[CosmoToken]
	categoryOf map[string]string
	status     Status
}

// NewCosmoStore creates an empty cosmo store.
func NewCosmoStore(bus *Bus) *CosmoStore {
	s := &CosmoStore{
		bus:        bus,
		lists:      make(map[string]*Keyed[CosmoToken], 3),
		categoryOf: make(map[string]string),
	}
	for _, cat := range []string{CategoryCreated, CategoryAboutToGraduate, CategoryGraduated} {
		// Each column is silent; the CosmoStore publishes one event per write.
		s.lists[cat] = NewKeyed(KeyedOptions[CosmoToken]{
			Domain:   DomainCosmo,
			Key:      CosmoKey,
			Order:    PrependNew,
			Capacity: cosmoCapacity,
		})
	}
	return s
}

// CosmoKey returns the natural key of a token.
func CosmoKey(t CosmoToken) string { return t.Mint }

// DecodeCosmo decodes one cosmo payload.
func DecodeCosmo(data json.RawMessage) (CosmoToken, error) {
	var tok CosmoToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return CosmoToken{}, fmt.Errorf("decode cosmo token: %w", err)
	}
	if tok.Mint == "" {
		return CosmoToken{}, fmt.Errorf("cosmo token without mint")
	}
	if tok.Action != ActionRemove && !validCategory(tok.Category) {
		return CosmoToken{}, fmt.Errorf("cosmo token %s category %q: %w", tok.Mint, tok.Category, ErrUnknownCategory)
	}
	return tok, nil
}

func validCategory(cat string) bool {
	return cat == CategoryCreated || cat == CategoryAboutToGraduate || cat == CategoryGraduated
}

// MarkLoading records that a seed fetch has started.
func (s *CosmoStore) MarkLoading() {
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

// SetAll replaces all three lists.
func (s *CosmoStore) SetAll(lists CosmoLists) {
	s.mu.Lock()
	s.categoryOf = make(map[string]string, lists.Total())
	s.setColumnLocked(CategoryCreated, lists.Created)
	s.setColumnLocked(CategoryAboutToGraduate, lists.AboutToGraduate)
	s.setColumnLocked(CategoryGraduated, lists.Graduated)
	s.status = StatusReady
	s.mu.Unlock()

	s.publish(ChangeSetAll, lists.Total())
}

// Upsert writes one token, moving it between columns when its category changed.
func (s *CosmoStore) Upsert(tok CosmoToken) error {
	s.mu.Lock()
	err := s.upsertLocked(tok)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(ChangeUpsert, 1)
	return nil
}

// Remove deletes a token from whichever column holds it.
func (s *CosmoStore) Remove(mint string) bool {
	s.mu.Lock()
	removed := s.removeLocked(mint)
	s.mu.Unlock()
	if removed {
		s.publish(ChangeRemove, 1)
	}
	return removed
}

// Apply writes one flushed batch.
func (s *CosmoStore) Apply(batch []CosmoToken) {
	s.mu.Lock()
	for _, tok := range batch {
		if tok.Action == ActionRemove {
			s.removeLocked(tok.Mint)
			continue
		}
		if err := s.upsertLocked(tok); err != nil {
			slog.Warn("cosmo_token_dropped", "mint", tok.Mint, "error", err)
		}
	}
	s.status = StatusReady
	s.mu.Unlock()

	s.publish(ChangeBatch, len(batch))
}

// Lists returns copies of the three columns.
func (s *CosmoStore) Lists() CosmoLists {
	return CosmoLists{
		Created:         s.lists[CategoryCreated].List(),
		AboutToGraduate: s.lists[CategoryAboutToGraduate].List(),
		Graduated:       s.lists[CategoryGraduated].List(),
	}
}

// Get finds a token in any column.
func (s *CosmoStore) Get(mint string) (CosmoToken, bool) {
	s.mu.Lock()
	cat, ok := s.categoryOf[mint]
	s.mu.Unlock()
	if !ok {
		return CosmoToken{}, false
	}
	return s.lists[cat].Get(mint)
}

// Len returns the number of tokens across all columns.
func (s *CosmoStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.categoryOf)
}

// Status returns the loading status.
func (s *CosmoStore) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *CosmoStore) setColumnLocked(cat string, tokens []CosmoToken) {
	kept := make([]CosmoToken, 0, len(tokens))
	for _, tok := range tokens {
		// a mint listed in two columns belongs to the later one
		if prev, ok := s.categoryOf[tok.Mint]; ok && prev != cat {
			s.lists[prev].Remove(tok.Mint)
		}
		tok.Category = cat
		kept = append(kept, tok)
	}
	s.lists[cat].SetAll(kept)
	for _, tok := range s.lists[cat].List() {
		s.categoryOf[tok.Mint] = cat
	}
	s.pruneLocked()
}

func (s *CosmoStore) upsertLocked(tok CosmoToken) error {
	col, ok := s.lists[tok.Category]
	if !ok {
		return fmt.Errorf("token %s category %q: %w", tok.Mint, tok.Category, ErrUnknownCategory)
	}
	if prev, ok := s.categoryOf[tok.Mint]; ok && prev != tok.Category {
		s.lists[prev].Remove(tok.Mint)
	}
	col.Upsert(tok)
	s.categoryOf[tok.Mint] = tok.Category
	s.pruneLocked()
	return nil
}

func (s *CosmoStore) removeLocked(mint string) bool {
	cat, ok := s.categoryOf[mint]
	if !ok {
		return false
	}
	delete(s.categoryOf, mint)
	return s.lists[cat].Remove(mint)
}

// pruneLocked forgets mints trimmed off a column by its capacity.
func (s *CosmoStore) pruneLocked() {
	for mint, cat := range s.categoryOf {
		if _, ok := s.lists[cat].Get(mint); !ok {
			delete(s.categoryOf, mint)
		}
	}
}

func (s *CosmoStore) publish(kind ChangeKind, count int) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(Event{Domain: DomainCosmo, Kind: kind, Count: count})
}
