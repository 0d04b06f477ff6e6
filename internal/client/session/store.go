// Package session holds the client-side login state of the admin panel and
// the watchdog that ends it when the token's lifetime runs out.
//
// A Store is the single source of truth for "am I logged in and as whom".
// Every component that ends a session (explicit logout, the expiry Monitor,
// an API call answered with 401) does so through Clear or ClearToken, so all
// of them converge on the same idempotent transition to "no session".
package session

import (
	"sync"

	"github.com/DevDonal19/imparablesmujeres/internal/domain"
)

// StorageKey names the durable slot holding the session.
const StorageKey = "imparables-auth"

// Session is the token plus the principal snapshot returned at login.
// Values are treated as immutable once stored.
type Session struct {
	Token string          `json:"token"`
	User  domain.UserView `json:"user"`
}

func (s *Session) equal(o *Session) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Token == o.Token && s.User == o.User
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Store holds the current session. Set(nil) logs out. After Set returns,
// every Get in the process observes the new value, and subscribers have
// been called with it.
//
// ClearToken is a compare-and-clear: it ends the session only while the
// stored one still carries token, and reports whether it did.
type Store interface {
	Get() *Session
	Set(s *Session) error
	ClearToken(token string) (bool, error)
	Subscribe(fn func(*Session)) (unsubscribe func())
}

// Clear ends the session held by store. It is safe to call repeatedly and
// from several detectors at once.
func Clear(store Store) error {
	return store.Set(nil)
}

// ClearToken ends the session only if it is still the one identified by
// token. Detectors that judged a specific token (a 401 answering a request,
// an expiry computed from exp) use it so that a login made in the meantime
// survives.
func ClearToken(store Store, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	return store.ClearToken(token)
}

// hub is the in-process state shared by every Store implementation.
type hub struct {
	mu      sync.RWMutex
	current *Session
	nextID  int
	subs    map[int]func(*Session)
	order   []int
}

func (h *hub) Get() *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.clone()
}

// swap stores s and reports whether the value changed.
func (h *hub) swap(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current.equal(s) {
		return false
	}
	h.current = s.clone()
	return true
}

// dropToken clears the process view when it still holds token.
func (h *hub) dropToken(token string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil || h.current.Token != token {
		return false
	}
	h.current = nil
	return true
}

// publish calls subscribers outside the lock. Each one receives the value
// current at the moment it is called, so racing or nested writers cannot
// leave a subscriber on a stale value.
func (h *hub) publish() {
	h.mu.RLock()
	fns := make([]func(*Session), 0, len(h.order))
	for _, id := range h.order {
		if fn, ok := h.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(h.Get())
	}
}

// replace swaps and publishes when the value changed.
func (h *hub) replace(s *Session) {
	if h.swap(s) {
		h.publish()
	}
}

func (h *hub) Subscribe(fn func(*Session)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[int]func(*Session))
	}
	h.nextID++
	id := h.nextID
	h.subs[id] = fn
	h.order = append(h.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			for i, v := range h.order {
				if v == id {
					h.order = append(h.order[:i], h.order[i+1:]...)
					break
				}
			}
		})
	}
}

// MemoryStore keeps the session in process memory only.
type MemoryStore struct {
	hub
}

// NewMemoryStore returns a store holding initial (which may be nil).
func NewMemoryStore(initial *Session) *MemoryStore {
	s := &MemoryStore{}
	s.current = initial.clone()
	return s
}

// Set replaces the session.
func (s *MemoryStore) Set(sess *Session) error {
	s.replace(sess)
	return nil
}

// ClearToken clears the session if it still carries token.
func (s *MemoryStore) ClearToken(token string) (bool, error) {
	if !s.dropToken(token) {
		return false, nil
	}
	s.publish()
	return true, nil
}
