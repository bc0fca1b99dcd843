// Package wire handles the JSON frame format exchanged with the trading backend.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned when a frame is not valid JSON.
var ErrMalformed = errors.New("malformed frame")

// Kind classifies a decoded frame.
type Kind int

const (
	// KindIgnore frames carry nothing worth storing.
	KindIgnore Kind = iota
	// KindPing frames are keep-alives. They only refresh liveness.
	KindPing
	// KindAck frames acknowledge a subscription (success:true).
	KindAck
	// KindData frames carry a channel payload.
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindPing:
		return "ping"
	case KindAck:
		return "ack"
	case KindData:
		return "data"
	default:
		return "ignore"
	}
}

// Channels known to the dashboard.
const (
	ChannelCosmo         = "cosmo"
	ChannelWalletTracker = "walletTracker"
	ChannelHoldings      = "holdings"
	ChannelFooter        = "footer"
	ChannelSniper        = "sniper"
	ChannelNotifications = "notifications"
	ChannelPing          = "ping"
)

// Frame is the decoded form of a server frame.
type Frame struct {
	Kind    Kind
	Channel string
	Data    json.RawMessage
}

// rawFrame mirrors the server envelope.
type rawFrame struct {
	Channel string          `json:"channel"`
	Type    string          `json:"type,omitempty"`
	Success *bool           `json:"success,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Decode parses a raw text frame.
func Decode(raw []byte) (Frame, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Frame{Kind: KindIgnore}, nil
	}

	// Bare keep-alives
	if isPingWord(string(trimmed)) {
		return Frame{Kind: KindPing, Channel: ChannelPing}, nil
	}

	var msg rawFrame
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if isPingWord(msg.Channel) || isPingWord(msg.Type) {
		return Frame{Kind: KindPing, Channel: ChannelPing}, nil
	}

	if msg.Success != nil && *msg.Success {
		return Frame{Kind: KindAck, Channel: msg.Channel}, nil
	}

	if msg.Channel == "" || isEmptyPayload(msg.Data) {
		return Frame{Kind: KindIgnore, Channel: msg.Channel}, nil
	}

	return Frame{Kind: KindData, Channel: msg.Channel, Data: msg.Data}, nil
}

// SplitBatch returns the individual items of a data payload. Some channels push
// an array of entries in one frame, others push a single object.
func SplitBatch(data json.RawMessage) []json.RawMessage {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return []json.RawMessage{data}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return []json.RawMessage{data}
	}
	return items
}

func isPingWord(s string) bool {
	return s == "ping" || s == "pong"
}

func isEmptyPayload(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
