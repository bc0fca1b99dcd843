// Package notify keeps the dismissible toasts shown to the user, fed by local
// failures (seed fetches), the notifications socket and wallet signals.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novadash/engine/internal/store"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Defaults of the notification center.
const (
	DefaultCooldown = 30 * time.Second
	DefaultCapacity = 50
)

// Notification is one toast.
type Notification struct {
	ID        string
	Level     Level
	Title     string
	Message   string
	Source    string
	CreatedAt time.Time
}

func (n Notification) dedupKey() string {
	return string(n.Level) + "|" + n.Title + "|" + n.Message
}

// Center holds the active notifications, newest first. Identical
// notifications inside the cooldown window are suppressed.
type Center struct {
	bus      *store.Bus
	cooldown *BurstTracker
	capacity int
	now      func() time.Time

	mu    sync.Mutex
	items []Notification
}

// NewCenter creates a notification center publishing to bus.
func NewCenter(bus *store.Bus, cooldown time.Duration, now func() time.Time) *Center {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &Center{
		bus:      bus,
		cooldown: NewBurstTracker(cooldown, now),
		capacity: DefaultCapacity,
		now:      now,
	}
}

// Push adds a notification. It returns the id and false when the same
// notification was shown within the cooldown.
func (c *Center) Push(n Notification) (string, bool) {
	if !c.cooldown.Allow(n.dedupKey()) {
		slog.Debug("notification_suppressed", "title", n.Title, "source", n.Source)
		return "", false
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Level == "" {
		n.Level = LevelInfo
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = c.now()
	}

	c.mu.Lock()
	c.items = append([]Notification{n}, c.items...)
	if len(c.items) > c.capacity {
		c.items = c.items[:c.capacity]
	}
	count := len(c.items)
	c.mu.Unlock()

	slog.Info("notification", "level", n.Level, "title", n.Title, "source", n.Source)
	c.publish(store.ChangeUpsert, count)
	return n.ID, true
}

// Error pushes an error notification built from err.
func (c *Center) Error(source, title string, err error) (string, bool) {
	return c.Push(Notification{Level: LevelError, Title: title, Message: err.Error(), Source: source})
}

// Dismiss removes a notification. It reports whether it existed.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	found := false
	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			found = true
			break
		}
	}
	count := len(c.items)
	c.mu.Unlock()

	if found {
		c.publish(store.ChangeRemove, count)
	}
	return found
}

// DismissAll clears every notification.
func (c *Center) DismissAll() {
	c.mu.Lock()
	had := len(c.items) > 0
	c.items = nil
	c.mu.Unlock()
	if had {
		c.publish(store.ChangeSetAll, 0)
	}
}

// Active returns the notifications, newest first.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of active notifications.
func (c *Center) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Cleanup forgets expired cooldown entries.
func (c *Center) Cleanup() {
	c.cooldown.Cleanup()
}

func (c *Center) publish(kind store.ChangeKind, count int) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(store.Event{Domain: store.DomainNotifications, Kind: kind, Count: count})
}

// ServerNotification is one item of the notifications channel.
type ServerNotification struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Mint    string `json:"mint,omitempty"`
	Wallet  string `json:"wallet,omitempty"`
}

// ServerKey is the natural key of a server notification.
func ServerKey(n ServerNotification) string {
	if n.ID != "" {
		return n.ID
	}
	return n.Type + "|" + n.Title + "|" + n.Message
}

// DecodeServer decodes one notifications channel item.
func DecodeServer(data json.RawMessage) (ServerNotification, error) {
	var n ServerNotification
	if err := json.Unmarshal(data, &n); err != nil {
		return ServerNotification{}, fmt.Errorf("decode notification: %w", err)
	}
	if n.Title == "" && n.Message == "" {
		return ServerNotification{}, fmt.Errorf("notification without title or message")
	}
	return n, nil
}

// Apply pushes a flushed batch of server notifications.
func (c *Center) Apply(batch []ServerNotification) {
	for _, sn := range batch {
		c.Push(Notification{
			ID:      sn.ID,
			Level:   levelOf(sn.Type),
			Title:   sn.Title,
			Message: sn.Message,
			Source:  "server",
		})
	}
}

func levelOf(t string) Level {
	switch strings.ToLower(t) {
	case "success", "filled":
		return LevelSuccess
	case "warning", "warn":
		return LevelWarning
	case "error", "failed":
		return LevelError
	default:
		return LevelInfo
	}
}
