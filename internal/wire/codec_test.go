package wire

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		kind    Kind
		channel string
	}{
		{"bare ping", "ping", KindPing, ChannelPing},
		{"bare pong with spaces", "  pong\n", KindPing, ChannelPing},
		{"json ping channel", `{"channel":"ping"}`, KindPing, ChannelPing},
		{"json pong type", `{"type":"pong"}`, KindPing, ChannelPing},
		{"ack", `{"channel":"cosmo","success":true}`, KindAck, "cosmo"},
		{"ack with data", `{"channel":"cosmo","success":true,"data":{"mint":"A"}}`, KindAck, "cosmo"},
		{"data", `{"channel":"cosmo","data":{"mint":"A"}}`, KindData, "cosmo"},
		{"success false keeps data", `{"channel":"holdings","success":false,"data":{"wallet":"w"}}`, KindData, "holdings"},
		{"null data", `{"channel":"cosmo","data":null}`, KindIgnore, "cosmo"},
		{"missing channel", `{"data":{"mint":"A"}}`, KindIgnore, ""},
		{"empty", "", KindIgnore, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, frame.Kind)
			assert.Equal(t, tt.channel, frame.Channel)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"channel":"cosmo","data":`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestDecodeKeepsPayload(t *testing.T) {
	frame, err := Decode([]byte(`{"channel":"walletTracker","data":{"wallet":"0xabc","v":2}}`))
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, "0xabc", payload["wallet"])
}

func TestSplitBatch(t *testing.T) {
	items := SplitBatch(json.RawMessage(`[{"mint":"A"},{"mint":"B"}]`))
	assert.Len(t, items, 2)

	single := SplitBatch(json.RawMessage(`{"mint":"A"}`))
	assert.Len(t, single, 1)
}

func TestSubscriptionEncode(t *testing.T) {
	sub := Subscription{
		Action:  ActionUpdate,
		Channel: ChannelCosmo,
		Token:   "tok",
		Fields:  map[string]any{"hidden": []string{"A"}},
	}

	first, err := sub.Encode()
	require.NoError(t, err)
	second, err := sub.Encode()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.JSONEq(t, `{"action":"update","channel":"cosmo","token":"tok","hidden":["A"]}`, string(first))

	_, err = Subscription{Channel: "cosmo"}.Encode()
	assert.Error(t, err)
}
