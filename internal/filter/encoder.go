// Package filter turns user-facing filter state into subscription payloads.
package filter

import (
	"reflect"
	"sort"
	"strings"

	"github.com/novadash/engine/internal/wire"
)

// Lists per domain. Encode fills missing lists with empty filters and drops
// names the domain does not know.
var domainLists = map[string][]string{
	wire.ChannelCosmo:         {"about_to_graduate", "created", "graduated"},
	wire.ChannelWalletTracker: {"trades"},
	wire.ChannelSniper:        {"tasks"},
}

// Range is an inclusive numeric bound. Zero means unbounded.
type Range struct {
	Min float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

func (r Range) normalize() Range {
	if r.Min < 0 {
		r.Min = 0
	}
	if r.Max < 0 {
		r.Max = 0
	}
	if r.Max > 0 && r.Min > r.Max {
		r.Min, r.Max = r.Max, r.Min
	}
	return r
}

// ListFilter is the filter of one list of a domain.
type ListFilter struct {
	MarketCap       Range    `json:"marketCap,omitempty" yaml:"marketCap,omitempty"`
	Volume          Range    `json:"volume,omitempty" yaml:"volume,omitempty"`
	Holders         Range    `json:"holders,omitempty" yaml:"holders,omitempty"`
	AgeMinutes      Range    `json:"ageMinutes,omitempty" yaml:"ageMinutes,omitempty"`
	BondingProgress Range    `json:"bondingProgress,omitempty" yaml:"bondingProgress,omitempty"`
	Amount          Range    `json:"amount,omitempty" yaml:"amount,omitempty"`
	Dexes           []string `json:"dexes,omitempty" yaml:"dexes,omitempty"`
	Sides           []string `json:"sides,omitempty" yaml:"sides,omitempty"`
	Keywords        []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	ExcludeKeywords []string `json:"excludeKeywords,omitempty" yaml:"excludeKeywords,omitempty"`
	RequireSocials  bool     `json:"requireSocials,omitempty" yaml:"requireSocials,omitempty"`
}

func (f ListFilter) normalize() ListFilter {
	return ListFilter{
		MarketCap:       f.MarketCap.normalize(),
		Volume:          f.Volume.normalize(),
		Holders:         f.Holders.normalize(),
		AgeMinutes:      f.AgeMinutes.normalize(),
		BondingProgress: f.BondingProgress.normalize(),
		Amount:          f.Amount.normalize(),
		Dexes:           normalizeSet(f.Dexes, true),
		Sides:           normalizeSet(f.Sides, true),
		Keywords:        normalizeSet(f.Keywords, true),
		ExcludeKeywords: normalizeSet(f.ExcludeKeywords, true),
		RequireSocials:  f.RequireSocials,
	}
}

func (f ListFilter) clone() ListFilter {
	f.Dexes = cloneStrings(f.Dexes)
	f.Sides = cloneStrings(f.Sides)
	f.Keywords = cloneStrings(f.Keywords)
	f.ExcludeKeywords = cloneStrings(f.ExcludeKeywords)
	return f
}

// FilterState maps list names to their filters.
type FilterState map[string]ListFilter

// Clone returns a deep copy.
func (s FilterState) Clone() FilterState {
	if s == nil {
		return nil
	}
	out := make(FilterState, len(s))
	for k, v := range s {
		out[k] = v.clone()
	}
	return out
}

// Blacklist hides tokens by developer, mint or keyword.
type Blacklist struct {
	Developers []string `json:"developers,omitempty" yaml:"developers,omitempty"`
	Tokens     []string `json:"tokens,omitempty" yaml:"tokens,omitempty"`
	Keywords   []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

func (b Blacklist) normalize() Blacklist {
	return Blacklist{
		Developers: normalizeSet(b.Developers, false),
		Tokens:     normalizeSet(b.Tokens, false),
		Keywords:   normalizeSet(b.Keywords, true),
	}
}

// Empty reports whether nothing is blacklisted.
func (b Blacklist) Empty() bool {
	return len(b.Developers) == 0 && len(b.Tokens) == 0 && len(b.Keywords) == 0
}

// NamedFilter is one list filter in the payload.
type NamedFilter struct {
	List   string     `json:"list"`
	Filter ListFilter `json:"filter"`
}

// Payload is the wire-level subscription state of one domain.
type Payload struct {
	Channel   string        `json:"channel"`
	Filters   []NamedFilter `json:"filters"`
	Blacklist Blacklist     `json:"blacklist"`
	Hidden    []string      `json:"hidden,omitempty"`
}

// Encode derives the payload. It is pure: equal inputs give equal payloads,
// independent of map iteration or slice order.
func Encode(state FilterState, blacklist Blacklist, hidden []string, domain string) Payload {
	names, known := domainLists[domain]
	if !known {
		names = make([]string, 0, len(state))
		for name := range state {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	filters := make([]NamedFilter, 0, len(names))
	for _, name := range names {
		filters = append(filters, NamedFilter{
			List:   name,
			Filter: state[name].normalize(),
		})
	}

	return Payload{
		Channel:   domain,
		Filters:   filters,
		Blacklist: blacklist.normalize(),
		Hidden:    normalizeSet(hidden, false),
	}
}

// Equal reports whether two payloads would put the same bytes on the wire.
func Equal(a, b Payload) bool {
	return reflect.DeepEqual(a, b)
}

// Fields returns the domain fields flattened into the update message.
func (p Payload) Fields() map[string]any {
	fields := map[string]any{
		"filters":   p.Filters,
		"blacklist": p.Blacklist,
	}
	if len(p.Hidden) > 0 {
		fields["hidden"] = p.Hidden
	}
	return fields
}

// Subscription returns the update message for the payload.
func (p Payload) Subscription(token string) wire.Subscription {
	return wire.Subscription{
		Action:  wire.ActionUpdate,
		Channel: p.Channel,
		Token:   token,
		Fields:  p.Fields(),
	}
}

// normalizeSet trims, dedups and sorts. Empty results are nil so that an empty
// and a missing list encode the same way.
func normalizeSet(values []string, fold bool) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if fold {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
