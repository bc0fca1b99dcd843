// Package ingest owns the backend connections: websocket sockets with
// heartbeat and reconnect, frame dispatch into the batching queues, and the
// REST seed client.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/novadash/engine/internal/session"
	"github.com/novadash/engine/internal/wire"
)

// Reconnection and heartbeat defaults.
const (
	InitialBackoff = 1 * time.Second
	MaxBackoff     = 30 * time.Second
	JitterPercent  = 0.2

	HeartbeatInterval = 10 * time.Second
	HeartbeatTimeout  = 30 * time.Second

	WriteTimeout     = 10 * time.Second
	HandshakeTimeout = 10 * time.Second

	// outgoing update messages per second, per socket
	DefaultUpdateRate  = 4
	DefaultUpdateBurst = 4
)

// ErrNotConnected is returned by Send when the socket is down. Registered
// subscriptions are re-sent on the next open.
var ErrNotConnected = errors.New("socket not connected")

// Conn is the subset of *websocket.Conn the socket uses.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPingHandler(h func(appData string) error)
	Close() error
}

// DialFunc opens a connection.
type DialFunc func(ctx context.Context, url string, header http.Header) (Conn, error)

// DialWebsocket dials with gorilla/websocket.
func DialWebsocket(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	return conn, nil
}

// SocketConfig configures one socket.
type SocketConfig struct {
	Name string
	URL  string

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	BackoffBase time.Duration
	BackoffCap  time.Duration
	Jitter      float64

	UpdateRate  rate.Limit
	UpdateBurst int
}

func (c SocketConfig) withDefaults() SocketConfig {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = HeartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = HeartbeatTimeout
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = InitialBackoff
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = MaxBackoff
	}
	if c.Jitter <= 0 {
		c.Jitter = JitterPercent
	}
	if c.UpdateRate <= 0 {
		c.UpdateRate = DefaultUpdateRate
	}
	if c.UpdateBurst <= 0 {
		c.UpdateBurst = DefaultUpdateBurst
	}
	return c
}

// Status is the liveness state of a socket.
type Status struct {
	Name       string
	Connected  bool
	Connecting bool
	LastPingAt time.Time
	Attempt    int
	Reconnects int
}

// Socket is one logical connection. It reconnects with exponential backoff
// while the session is valid and re-sends every registered subscription on
// each open.
type Socket struct {
	cfg     SocketConfig
	session *session.Session
	dial    DialFunc
	now     func() time.Time
	rnd     func() float64
	limiter *rate.Limiter

	onMessage func(raw []byte)
	onStatus  func(Status)

	mu         sync.Mutex
	ctx        context.Context
	conn       Conn
	gen        uint64
	connecting bool
	connected  bool
	closed     bool
	attempt    int
	reconnects int
	lastPingAt time.Time
	reconnect  *time.Timer
	stopBeat   chan struct{}

	joins       []string
	joinFields  map[string]map[string]any
	updates     map[string]map[string]any
	updateTimer map[string]*time.Timer

	writeMu sync.Mutex
}

// SocketOption customises a socket.
type SocketOption func(*Socket)

// WithDialer replaces the gorilla dialer.
func WithDialer(d DialFunc) SocketOption {
	return func(s *Socket) { s.dial = d }
}

// WithClock replaces time.Now for liveness checks.
func WithClock(now func() time.Time) SocketOption {
	return func(s *Socket) { s.now = now }
}

// WithRandom replaces the jitter source.
func WithRandom(rnd func() float64) SocketOption {
	return func(s *Socket) { s.rnd = rnd }
}

// NewSocket creates a socket. It does not connect.
func NewSocket(cfg SocketConfig, sess *session.Session, opts ...SocketOption) *Socket {
	cfg = cfg.withDefaults()
	s := &Socket{
		cfg:         cfg,
		session:     sess,
		dial:        DialWebsocket,
		now:         time.Now,
		rnd:         rand.Float64,
		limiter:     rate.NewLimiter(cfg.UpdateRate, cfg.UpdateBurst),
		ctx:         context.Background(),
		joinFields:  make(map[string]map[string]any),
		updates:     make(map[string]map[string]any),
		updateTimer: make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the socket name.
func (s *Socket) Name() string { return s.cfg.Name }

// OnMessage sets the handler for every inbound text frame.
func (s *Socket) OnMessage(fn func(raw []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = fn
}

// OnStatus sets the callback for connection state changes.
func (s *Socket) OnStatus(fn func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = fn
}

// Status returns the current liveness state.
func (s *Socket) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Connect opens the socket in the background. It is a no-op while connecting
// or connected and when the session has no token. It reopens a closed socket.
func (s *Socket) Connect(ctx context.Context) {
	s.mu.Lock()
	start := s.startLocked(ctx)
	if start != nil {
		s.closed = false
	}
	s.mu.Unlock()

	if start != nil {
		start()
	}
}

// startLocked moves the socket to connecting and returns the function that
// reports the status and dials. It returns nil when no dial should happen.
func (s *Socket) startLocked(ctx context.Context) func() {
	if s.connecting || s.connected {
		return nil
	}
	if !s.session.Valid() {
		slog.Info("ws_connect_skipped", "socket", s.cfg.Name, "reason", "no session")
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	s.ctx = ctx
	s.stopReconnectLocked()
	s.connecting = true
	s.gen++
	gen := s.gen
	notify := s.statusNotifyLocked()

	return func() {
		notify()
		go s.open(ctx, gen)
	}
}

func (s *Socket) open(ctx context.Context, gen uint64) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.session.Token())

	conn, err := s.dial(ctx, s.cfg.URL, header)

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	s.connecting = false
	if err != nil {
		slog.Warn("ws_connect_failed", "socket", s.cfg.Name, "error", err, "attempt", s.attempt)
		if s.session.Valid() && ctx.Err() == nil {
			s.scheduleReconnectLocked()
		}
		notify := s.statusNotifyLocked()
		s.mu.Unlock()
		notify()
		return
	}

	s.conn = conn
	s.connected = true
	s.lastPingAt = s.now()
	if s.attempt > 0 {
		s.reconnects++
	}
	s.attempt = 0
	stop := make(chan struct{})
	s.stopBeat = stop
	conn.SetPingHandler(func(appData string) error {
		s.Touch()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(WriteTimeout))
	})
	msgs := s.resubscribeLocked()
	notify := s.statusNotifyLocked()

	// hold the write lock across the unlock so nothing overtakes the joins
	s.writeMu.Lock()
	s.mu.Unlock()
	for _, msg := range msgs {
		if err := s.writeLocked(conn, msg); err != nil {
			slog.Warn("ws_resubscribe_failed", "socket", s.cfg.Name, "channel", msg.Channel, "error", err)
			break
		}
	}
	s.writeMu.Unlock()

	slog.Info("ws_connected", "socket", s.cfg.Name, "subscriptions", len(msgs))
	notify()

	go s.heartbeat(gen, stop)
	go s.readLoop(conn, gen)
}

func (s *Socket) readLoop(conn Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.dropped(gen, err)
			return
		}
		s.mu.Lock()
		fn := s.onMessage
		s.mu.Unlock()
		if fn != nil {
			fn(data)
		}
	}
}

func (s *Socket) heartbeat(gen uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !s.checkHeartbeat(gen) {
				return
			}
		}
	}
}

// checkHeartbeat force-closes a connection whose last ping is older than the
// timeout, otherwise sends a keep-alive. It reports whether the connection is
// still alive.
func (s *Socket) checkHeartbeat(gen uint64) bool {
	s.mu.Lock()
	if gen != s.gen || !s.connected {
		s.mu.Unlock()
		return false
	}
	elapsed := s.now().Sub(s.lastPingAt)
	if elapsed > s.cfg.HeartbeatTimeout {
		s.mu.Unlock()
		slog.Warn("ws_heartbeat_timeout", "socket", s.cfg.Name, "elapsed", elapsed, "timeout", s.cfg.HeartbeatTimeout)
		s.dropped(gen, fmt.Errorf("no ping for %s", elapsed))
		return false
	}
	conn := s.conn
	s.mu.Unlock()

	if err := s.writeRaw(conn, []byte(wire.ChannelPing)); err != nil {
		slog.Warn("ws_ping_failed", "socket", s.cfg.Name, "error", err)
	}
	return true
}

// dropped tears down connection gen and schedules the single reconnect.
// Callbacks from an older generation are ignored.
func (s *Socket) dropped(gen uint64, reason error) {
	s.mu.Lock()
	if gen != s.gen || !s.connected {
		s.mu.Unlock()
		return
	}
	s.gen++
	conn := s.teardownLocked()
	retry := !s.closed && s.session.Valid() && s.ctx.Err() == nil
	if retry {
		s.scheduleReconnectLocked()
	}
	notify := s.statusNotifyLocked()
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	slog.Info("ws_disconnected", "socket", s.cfg.Name, "reason", reason, "reconnect", retry)
	notify()
}

// Close stops timers and the connection. No reconnect follows.
func (s *Socket) Close() {
	s.mu.Lock()
	s.closed = true
	s.gen++
	s.stopReconnectLocked()
	for ch, t := range s.updateTimer {
		t.Stop()
		delete(s.updateTimer, ch)
	}
	wasUp := s.connected || s.connecting
	conn := s.teardownLocked()
	s.connecting = false
	notify := s.statusNotifyLocked()
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if wasUp {
		slog.Info("ws_closed", "socket", s.cfg.Name)
		notify()
	}
}

// Touch records a ping from the server.
func (s *Socket) Touch() {
	s.mu.Lock()
	s.lastPingAt = s.now()
	s.mu.Unlock()
}

// Subscribe registers a channel. The join is sent now when connected and on
// every later open.
func (s *Socket) Subscribe(channel string, fields map[string]any) {
	s.mu.Lock()
	if _, ok := s.joinFields[channel]; !ok {
		s.joins = append(s.joins, channel)
	}
	s.joinFields[channel] = fields
	s.mu.Unlock()

	msg := wire.NewJoin(channel, s.session.Token())
	msg.Fields = fields
	if err := s.Send(msg); err != nil && !errors.Is(err, ErrNotConnected) {
		slog.Warn("ws_join_failed", "socket", s.cfg.Name, "channel", channel, "error", err)
	}
}

// Unsubscribe removes a channel from the registry and sends a leave.
func (s *Socket) Unsubscribe(channel string) {
	s.mu.Lock()
	if _, ok := s.joinFields[channel]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.joinFields, channel)
	delete(s.updates, channel)
	if t, ok := s.updateTimer[channel]; ok {
		t.Stop()
		delete(s.updateTimer, channel)
	}
	for i, ch := range s.joins {
		if ch == channel {
			s.joins = append(s.joins[:i], s.joins[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if err := s.Send(wire.NewLeave(channel, s.session.Token())); err != nil && !errors.Is(err, ErrNotConnected) {
		slog.Warn("ws_leave_failed", "socket", s.cfg.Name, "channel", channel, "error", err)
	}
}

// Update stores the latest update payload of a channel and sends it, rate
// limited. It never blocks: when the limiter has no token the latest payload
// is sent once the reservation matures.
func (s *Socket) Update(channel string, fields map[string]any) {
	s.mu.Lock()
	s.updates[channel] = fields
	if !s.connected {
		s.mu.Unlock()
		return
	}
	if _, waiting := s.updateTimer[channel]; waiting {
		s.mu.Unlock()
		return
	}
	if s.limiter.Allow() {
		s.mu.Unlock()
		s.sendUpdate(channel)
		return
	}
	delay := s.limiter.Reserve().Delay()
	s.updateTimer[channel] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.updateTimer, channel)
		s.mu.Unlock()
		s.sendUpdate(channel)
	})
	s.mu.Unlock()
	slog.Debug("ws_update_throttled", "socket", s.cfg.Name, "channel", channel, "delay", delay)
}

func (s *Socket) sendUpdate(channel string) {
	s.mu.Lock()
	fields, ok := s.updates[channel]
	s.mu.Unlock()
	if !ok {
		return
	}
	msg := wire.Subscription{Action: wire.ActionUpdate, Channel: channel, Token: s.session.Token(), Fields: fields}
	if err := s.Send(msg); err != nil && !errors.Is(err, ErrNotConnected) {
		slog.Warn("ws_update_failed", "socket", s.cfg.Name, "channel", channel, "error", err)
	}
}

// Send writes one message when connected.
func (s *Socket) Send(msg wire.Subscription) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	s.mu.Lock()
	conn := s.conn
	connected := s.connected
	s.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}
	if err := s.writeRaw(conn, data); err != nil {
		return err
	}
	slog.Debug("ws_sent", "socket", s.cfg.Name, "action", msg.Action, "channel", msg.Channel, "fields", msg.FieldNames())
	return nil
}

func (s *Socket) writeRaw(conn Conn, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

func (s *Socket) writeLocked(conn Conn, msg wire.Subscription) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// resubscribeLocked builds the joins in registration order followed by the
// latest update of each joined channel.
func (s *Socket) resubscribeLocked() []wire.Subscription {
	token := s.session.Token()
	msgs := make([]wire.Subscription, 0, len(s.joins)*2)
	for _, ch := range s.joins {
		join := wire.NewJoin(ch, token)
		join.Fields = s.joinFields[ch]
		msgs = append(msgs, join)
	}
	for _, ch := range s.joins {
		if fields, ok := s.updates[ch]; ok {
			msgs = append(msgs, wire.Subscription{Action: wire.ActionUpdate, Channel: ch, Token: token, Fields: fields})
		}
	}
	return msgs
}

func (s *Socket) teardownLocked() Conn {
	conn := s.conn
	s.conn = nil
	s.connected = false
	if s.stopBeat != nil {
		close(s.stopBeat)
		s.stopBeat = nil
	}
	return conn
}

func (s *Socket) scheduleReconnectLocked() {
	if s.reconnect != nil {
		return
	}
	delay := Backoff(s.attempt, s.cfg.BackoffBase, s.cfg.BackoffCap, s.cfg.Jitter, s.rnd)
	s.attempt++
	ctx := s.ctx
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.closed || s.reconnect != timer {
			s.mu.Unlock()
			return
		}
		s.reconnect = nil
		start := s.startLocked(ctx)
		s.mu.Unlock()
		if start != nil {
			start()
		}
	})
	s.reconnect = timer
	slog.Debug("ws_reconnect_scheduled", "socket", s.cfg.Name, "delay", delay, "attempt", s.attempt)
}

func (s *Socket) stopReconnectLocked() {
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
}

// reconnectPending reports whether a reconnect timer is armed.
func (s *Socket) reconnectPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnect != nil
}

func (s *Socket) statusLocked() Status {
	return Status{
		Name:       s.cfg.Name,
		Connected:  s.connected,
		Connecting: s.connecting,
		LastPingAt: s.lastPingAt,
		Attempt:    s.attempt,
		Reconnects: s.reconnects,
	}
}

func (s *Socket) statusNotifyLocked() func() {
	fn := s.onStatus
	if fn == nil {
		return func() {}
	}
	st := s.statusLocked()
	return func() { fn(st) }
}

// Backoff returns min(base*2^attempt, ceiling) plus up to jitter*delay of
// random spread.
func Backoff(attempt int, base, ceiling time.Duration, jitter float64, rnd func() float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := ceiling
	if attempt < 32 {
		if d := base << uint(attempt); d > 0 && d < ceiling {
			delay = d
		}
	}
	if jitter > 0 && rnd != nil {
		delay += time.Duration(float64(delay) * jitter * rnd())
	}
	return delay
}
