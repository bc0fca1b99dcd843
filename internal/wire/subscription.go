package wire

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Subscription actions.
const (
	ActionJoin   = "join"
	ActionUpdate = "update"
	ActionLeave  = "leave"
)

// Subscription is a client->server message. Fields holds the domain-specific
// filter fields that are flattened next to action/channel/token.
type Subscription struct {
	Action  string
	Channel string
	Token   string
	Fields  map[string]any
}

// NewJoin creates a join message for a channel.
func NewJoin(channel, token string) Subscription {
	return Subscription{Action: ActionJoin, Channel: channel, Token: token}
}

// NewLeave creates a leave message for a channel.
func NewLeave(channel, token string) Subscription {
	return Subscription{Action: ActionLeave, Channel: channel, Token: token}
}

// MarshalJSON flattens Fields into the envelope. encoding/json sorts map keys,
// so the output is stable for equal input.
func (s Subscription) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Fields)+3)
	for k, v := range s.Fields {
		out[k] = v
	}
	out["action"] = s.Action
	out["channel"] = s.Channel
	out["token"] = s.Token
	return json.Marshal(out)
}

// Encode serializes a subscription message.
func (s Subscription) Encode() ([]byte, error) {
	if s.Action == "" || s.Channel == "" {
		return nil, fmt.Errorf("subscription needs action and channel")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode subscription: %w", err)
	}
	return data, nil
}

// FieldNames returns the sorted names of the domain fields, mostly for logging.
func (s Subscription) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
