// Package session holds the single authenticated session shared by every
// component that talks to the backend.
package session

import (
	"net/http"
	"strings"
	"sync"
)

// CookieName is the cookie that carries the session token.
const CookieName = "nova_session"

// Session is injected once and observed by its dependents.
type Session struct {
	mu        sync.RWMutex
	token     string
	nextID    int
	observers map[int]func(loggedIn bool)
}

// New creates a session. An empty token is a logged-out session.
func New(token string) *Session {
	return &Session{
		token:     strings.TrimSpace(token),
		observers: make(map[int]func(bool)),
	}
}

// FromCookie builds a session from a Cookie header value such as
// "theme=dark; nova_session=abc".
func FromCookie(header string) *Session {
	cookies, err := http.ParseCookie(header)
	if err != nil {
		return New("")
	}
	for _, c := range cookies {
		if c.Name == CookieName {
			return New(c.Value)
		}
	}
	return New("")
}

// Token returns the current token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Valid reports whether a token is present.
func (s *Session) Valid() bool {
	return s.Token() != ""
}

// Login sets a new token and notifies observers.
func (s *Session) Login(token string) {
	token = strings.TrimSpace(token)
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	s.notify(token != "")
}

// Logout clears the token and notifies observers.
func (s *Session) Logout() {
	s.mu.Lock()
	wasValid := s.token != ""
	s.token = ""
	s.mu.Unlock()
	if wasValid {
		s.notify(false)
	}
}

// Observe registers fn for login/logout changes. It returns the function that
// removes the registration.
func (s *Session) Observe(fn func(loggedIn bool)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Session) notify(loggedIn bool) {
	s.mu.RLock()
	fns := make([]func(bool), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(loggedIn)
	}
}

// Masked returns the token with most characters hidden, for logging.
func (s *Session) Masked() string {
	token := s.Token()
	if len(token) <= 8 {
		if token == "" {
			return "(not set)"
		}
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}
