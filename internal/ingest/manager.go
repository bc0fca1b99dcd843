package ingest

import (
	"context"
	"log/slog"
	"sync"

	"github.com/novadash/engine/internal/session"
)

// Manager owns the sockets of the dashboard and ties them to the session:
// login connects all of them, logout closes all of them and their timers.
type Manager struct {
	session *session.Session
	sockets []*Socket

	mu        sync.Mutex
	ctx       context.Context
	token     string
	unobserve func()
}

// NewManager creates a manager for the given sockets.
func NewManager(sess *session.Session, sockets ...*Socket) *Manager {
	return &Manager{session: sess, sockets: sockets}
}

// Sockets returns the managed sockets.
func (m *Manager) Sockets() []*Socket {
	return m.sockets
}

// Start connects every socket when the session is valid and keeps following
// login and logout until Stop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.unobserve != nil {
		m.mu.Unlock()
		return
	}
	m.ctx = ctx
	m.unobserve = m.session.Observe(func(loggedIn bool) {
		if loggedIn {
			slog.Info("session_login", "token", m.session.Masked())
			if m.tokenChanged() {
				// live sockets carry the old token in their handshake
				m.closeAll()
			}
			m.connectAll()
			return
		}
		slog.Info("session_logout")
		m.closeAll()
	})
	m.mu.Unlock()

	if m.session.Valid() {
		m.connectAll()
	} else {
		slog.Warn("session_missing", "reason", "no token, sockets stay closed")
	}
}

// Stop closes every socket and stops following the session.
func (m *Manager) Stop() {
	m.mu.Lock()
	unobserve := m.unobserve
	m.unobserve = nil
	m.mu.Unlock()

	if unobserve != nil {
		unobserve()
	}
	m.closeAll()
}

// Statuses returns the liveness state of every socket.
func (m *Manager) Statuses() []Status {
	out := make([]Status, 0, len(m.sockets))
	for _, s := range m.sockets {
		out = append(out, s.Status())
	}
	return out
}

func (m *Manager) tokenChanged() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token != "" && m.token != m.session.Token()
}

func (m *Manager) connectAll() {
	m.mu.Lock()
	ctx := m.ctx
	m.token = m.session.Token()
	m.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	for _, s := range m.sockets {
		s.Connect(ctx)
	}
}

func (m *Manager) closeAll() {
	for _, s := range m.sockets {
		s.Close()
	}
}
