package filter

import (
	"log/slog"
	"sync"
)

// Publisher receives the update payload of a channel.
type Publisher interface {
	Update(channel string, fields map[string]any)
}

// State holds the preview and genuine filters of one domain. Only genuine
// filters reach the publisher.
type State struct {
	domain string
	pub    Publisher

	mu        sync.Mutex
	preview   FilterState
	genuine   FilterState
	blacklist Blacklist
	hidden    map[string]struct{}
	last      *Payload
}

// NewState creates the filter state of a domain.
func NewState(domain string, pub Publisher) *State {
	return &State{
		domain:  domain,
		pub:     pub,
		preview: FilterState{},
		genuine: FilterState{},
		hidden:  make(map[string]struct{}),
	}
}

// Domain returns the domain the state belongs to.
func (s *State) Domain() string {
	return s.domain
}

// Preview returns a copy of the preview filters.
func (s *State) Preview() FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview.Clone()
}

// Genuine returns a copy of the applied filters.
func (s *State) Genuine() FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.genuine.Clone()
}

// SetPreview replaces the in-progress edit. Nothing is sent.
func (s *State) SetPreview(fs FilterState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preview = fs.Clone()
}

// SetPreviewList edits one list of the preview.
func (s *State) SetPreviewList(list string, f ListFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preview == nil {
		s.preview = FilterState{}
	}
	s.preview[list] = f.clone()
}

// Apply promotes the preview to genuine and publishes it if the payload changed.
func (s *State) Apply() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.genuine = s.preview.Clone()
	s.publishLocked()
}

// Discard resets the preview to the genuine filters.
func (s *State) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preview = s.genuine.Clone()
}

// SetGenuine replaces both phases, e.g. when a preset is loaded.
func (s *State) SetGenuine(fs FilterState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.genuine = fs.Clone()
	s.preview = fs.Clone()
	s.publishLocked()
}

// Dirty reports whether the preview would encode differently from genuine.
func (s *State) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	hidden := s.hiddenLocked()
	return !Equal(
		Encode(s.preview, s.blacklist, hidden, s.domain),
		Encode(s.genuine, s.blacklist, hidden, s.domain),
	)
}

// SetBlacklist replaces the blacklist and republishes from the latest genuine filters.
func (s *State) SetBlacklist(b Blacklist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist = b
	s.publishLocked()
}

// Blacklist returns the current blacklist.
func (s *State) Blacklist() Blacklist {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blacklist
}

// SetHidden replaces the hidden keys.
func (s *State) SetHidden(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden = make(map[string]struct{}, len(keys))
	for _, k := range keys {
		s.hidden[k] = struct{}{}
	}
	s.publishLocked()
}

// Hide adds one key to the hidden set.
func (s *State) Hide(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden[key] = struct{}{}
	s.publishLocked()
}

// Unhide removes one key from the hidden set.
func (s *State) Unhide(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hidden, key)
	s.publishLocked()
}

// Payload returns the payload derived from the genuine filters.
func (s *State) Payload() Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Encode(s.genuine, s.blacklist, s.hiddenLocked(), s.domain)
}

// publishLocked encodes under the same lock as the edit that triggered it, so
// rapid successive edits publish in order and always from the latest state.
func (s *State) publishLocked() {
	payload := Encode(s.genuine, s.blacklist, s.hiddenLocked(), s.domain)
	if s.last != nil && Equal(*s.last, payload) {
		return
	}
	s.last = &payload

	if s.pub == nil {
		return
	}
	slog.Debug("filter_publish", "domain", s.domain, "lists", len(payload.Filters), "hidden", len(payload.Hidden))
	s.pub.Update(s.domain, payload.Fields())
}

func (s *State) hiddenLocked() []string {
	out := make([]string, 0, len(s.hidden))
	for k := range s.hidden {
		out = append(out, k)
	}
	return out
}
