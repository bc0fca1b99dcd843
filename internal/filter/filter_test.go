package filter

import (
	"encoding/json"
	"testing"

	"github.com/novadash/engine/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	updates []map[string]any
}

func (f *fakePublisher) Update(channel string, fields map[string]any) {
	f.updates = append(f.updates, fields)
}

func sampleState() FilterState {
	return FilterState{
		"created": {
			MarketCap: Range{Min: 5000, Max: 100000},
			Dexes:     []string{"Raydium", "pump", "raydium"},
		},
		"graduated": {
			Holders:  Range{Min: 300, Max: 100},
			Keywords: []string{" Cat ", "dog"},
		},
	}
}

func TestEncodeDeterministic(t *testing.T) {
	bl := Blacklist{Developers: []string{"dev2", "dev1"}, Keywords: []string{"Rug"}}
	hidden := []string{"B", "A", "B"}

	first := Encode(sampleState(), bl, hidden, wire.ChannelCosmo)
	second := Encode(sampleState(), bl, []string{"A", "B"}, wire.ChannelCosmo)

	assert.True(t, Equal(first, second))

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncodeNormalizes(t *testing.T) {
	p := Encode(sampleState(), Blacklist{}, nil, wire.ChannelCosmo)

	require.Len(t, p.Filters, 3)
	assert.Equal(t, "about_to_graduate", p.Filters[0].List)
	assert.Equal(t, "created", p.Filters[1].List)
	assert.Equal(t, []string{"pump", "raydium"}, p.Filters[1].Filter.Dexes)
	assert.Equal(t, Range{Min: 100, Max: 300}, p.Filters[2].Filter.Holders)
	assert.Equal(t, []string{"cat", "dog"}, p.Filters[2].Filter.Keywords)
	assert.Nil(t, p.Hidden)
}

func TestEncodeUnknownDomainUsesStateLists(t *testing.T) {
	p := Encode(FilterState{"b": {}, "a": {}}, Blacklist{}, nil, "custom")
	require.Len(t, p.Filters, 2)
	assert.Equal(t, "a", p.Filters[0].List)
}

func TestPreviewNeverPublished(t *testing.T) {
	pub := &fakePublisher{}
	s := NewState(wire.ChannelCosmo, pub)

	s.SetPreview(sampleState())
	assert.Empty(t, pub.updates)
	assert.True(t, s.Dirty())

	s.Apply()
	require.Len(t, pub.updates, 1)
	assert.False(t, s.Dirty())

	// applying the same filters again sends nothing
	s.Apply()
	assert.Len(t, pub.updates, 1)
}

func TestDiscardRestoresGenuine(t *testing.T) {
	s := NewState(wire.ChannelCosmo, nil)
	s.SetGenuine(sampleState())

	s.SetPreviewList("created", ListFilter{Volume: Range{Min: 1}})
	assert.True(t, s.Dirty())

	s.Discard()
	assert.False(t, s.Dirty())
	assert.Equal(t, sampleState()["created"].MarketCap, s.Preview()["created"].MarketCap)
}

func TestHiddenUsesLatestGenuine(t *testing.T) {
	pub := &fakePublisher{}
	s := NewState(wire.ChannelCosmo, pub)

	s.SetPreview(sampleState())
	s.Apply()

	next := sampleState()
	next["created"] = ListFilter{Volume: Range{Min: 42}}
	s.SetPreview(next)
	s.Apply()

	s.Hide("mintA")
	require.Len(t, pub.updates, 3)

	last := pub.updates[2]
	assert.Equal(t, []string{"mintA"}, last["hidden"])
	filters := last["filters"].([]NamedFilter)
	assert.Equal(t, Range{Min: 42}, filters[1].Filter.Volume)

	s.Unhide("mintA")
	require.Len(t, pub.updates, 4)
	_, hasHidden := pub.updates[3]["hidden"]
	assert.False(t, hasHidden)
}

func TestBlacklistRepublishes(t *testing.T) {
	pub := &fakePublisher{}
	s := NewState(wire.ChannelCosmo, pub)

	s.SetBlacklist(Blacklist{Tokens: []string{"X"}})
	s.SetBlacklist(Blacklist{Tokens: []string{"X", "X"}})
	assert.Len(t, pub.updates, 1, "equal payload is not sent twice")

	s.SetBlacklist(Blacklist{Tokens: []string{"X", "Y"}})
	assert.Len(t, pub.updates, 2)
}

func TestCloneIsDeep(t *testing.T) {
	orig := sampleState()
	cp := orig.Clone()
	f := cp["created"]
	f.Dexes[0] = "changed"

	assert.Equal(t, "Raydium", orig["created"].Dexes[0])
}

func TestPayloadSubscription(t *testing.T) {
	p := Encode(nil, Blacklist{}, []string{"A"}, wire.ChannelWalletTracker)
	sub := p.Subscription("tok")

	data, err := sub.Encode()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "update", decoded["action"])
	assert.Equal(t, "walletTracker", decoded["channel"])
	assert.Equal(t, "tok", decoded["token"])
	assert.Len(t, decoded["filters"], 1)
}
