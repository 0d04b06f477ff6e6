package session_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DevDonal19/imparablesmujeres/internal/auth"
	"github.com/DevDonal19/imparablesmujeres/internal/client/session"
	"github.com/DevDonal19/imparablesmujeres/internal/domain"
)

var base = time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC)

var editor = domain.UserView{
	ID:          "7b0c8f55-2b43-4c8c-9d8e-0c6a1f1e6d01",
	Email:       "editora@imparables.org",
	Role:        domain.RoleEditor,
	DisplayName: "Editora",
}

// sessionExpiringAt returns a signed session whose exp claim is exp.
func sessionExpiringAt(t *testing.T, exp time.Time) *session.Session {
	t.Helper()
	tm, err := auth.NewTokenManager("client-test", auth.DefaultTokenTTL)
	require.NoError(t, err)
	token, _, err := tm.WithClock(func() time.Time { return exp.Add(-auth.DefaultTokenTTL) }).Issue(editor)
	require.NoError(t, err)
	return &session.Session{Token: token, User: editor}
}

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *fakeClock) NewTicker(time.Duration) session.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

// Tick fires every live ticker once.
func (c *fakeClock) Tick() {
	c.mu.Lock()
	now := c.now
	tickers := append([]*fakeTicker(nil), c.tickers...)
	c.mu.Unlock()

	for _, t := range tickers {
		if t.stopped.Load() {
			continue
		}
		select {
		case t.ch <- now:
		default:
		}
	}
}

func (c *fakeClock) live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.stopped.Load() {
			n++
		}
	}
	return n
}

type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stopped.Store(true) }

type recorder struct {
	mu       sync.Mutex
	warnings []session.Warning
	expired  int
}

func (r *recorder) Warn(w session.Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, w)
}

func (r *recorder) Expired() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired++
}

func (r *recorder) snapshot() ([]session.Warning, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]session.Warning(nil), r.warnings...), r.expired
}

func (r *recorder) tiers() []session.Tier {
	warnings, _ := r.snapshot()
	tiers := make([]session.Tier, 0, len(warnings))
	for _, w := range warnings {
		tiers = append(tiers, w.Tier)
	}
	return tiers
}
