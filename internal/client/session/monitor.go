package session

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DevDonal19/imparablesmujeres/internal/auth"
)

// DefaultCheckInterval is how often the monitor re-reads the token expiry.
const DefaultCheckInterval = 30 * time.Second

// Tier is the warning band the remaining lifetime falls into.
type Tier int

const (
	TierNone Tier = iota
	TierFiveMinutes
	TierTwoMinutes
	TierOneMinute
	TierCritical
	TierExpired
)

func (t Tier) String() string {
	switch t {
	case TierFiveMinutes:
		return "five_minutes"
	case TierTwoMinutes:
		return "two_minutes"
	case TierOneMinute:
		return "one_minute"
	case TierCritical:
		return "critical"
	case TierExpired:
		return "expired"
	default:
		return "none"
	}
}

// TierFor maps remaining lifetime to its tier.
func TierFor(remaining time.Duration) Tier {
	switch {
	case remaining <= 0:
		return TierExpired
	case remaining <= 30*time.Second:
		return TierCritical
	case remaining <= time.Minute:
		return TierOneMinute
	case remaining <= 2*time.Minute:
		return TierTwoMinutes
	case remaining <= 5*time.Minute:
		return TierFiveMinutes
	default:
		return TierNone
	}
}

// Severity tells a UI how loudly to show a warning.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Warning is emitted once each time the session enters a new tier.
type Warning struct {
	Tier      Tier
	Remaining time.Duration
	ExpiresAt time.Time
	Message   string
	Severity  Severity
}

func newWarning(tier Tier, remaining time.Duration, expiresAt time.Time) Warning {
	seconds := int(remaining.Round(time.Second) / time.Second)
	w := Warning{Tier: tier, Remaining: remaining, ExpiresAt: expiresAt, Severity: SeverityWarning}
	switch tier {
	case TierFiveMinutes:
		w.Message = "Your session will expire in 5 minutes"
	case TierTwoMinutes:
		w.Message = "Your session will expire in 2 minutes"
	case TierOneMinute:
		w.Message = fmt.Sprintf("Your session will expire in %d seconds", seconds)
	case TierCritical:
		w.Message = fmt.Sprintf("Session expiring in %d seconds", seconds)
	}
	if remaining <= time.Minute {
		w.Severity = SeverityError
	}
	return w
}

// Notifier receives the monitor's output. Implementations must not call
// back into Monitor.Check; calling the store is fine.
type Notifier interface {
	Warn(w Warning)
	Expired()
}

// NotifierFuncs adapts plain functions to a Notifier. Nil fields are skipped.
type NotifierFuncs struct {
	OnWarning func(Warning)
	OnExpired func()
}

func (n NotifierFuncs) Warn(w Warning) {
	if n.OnWarning != nil {
		n.OnWarning(w)
	}
}

func (n NotifierFuncs) Expired() {
	if n.OnExpired != nil {
		n.OnExpired()
	}
}

// State is the monitor's lifecycle state.
type State int

const (
	Unmonitored State = iota
	Monitoring
)

func (s State) String() string {
	if s == Monitoring {
		return "monitoring"
	}
	return "unmonitored"
}

// Option customises a Monitor.
type Option func(*Monitor)

// WithClock injects the time source.
func WithClock(c Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithInterval sets the tick cadence.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// Monitor watches the stored token's exp claim, emits tiered warnings and
// clears the session once it has expired. It reads exp without verifying
// the signature; the server stays the authority on validity.
type Monitor struct {
	store    Store
	notifier Notifier
	clock    Clock
	interval time.Duration
	logger   *zap.Logger

	mu          sync.Mutex
	state       State
	token       string
	lastTier    Tier
	ticker      Ticker
	done        chan struct{}
	unsubscribe func()
	ticking     bool
	pending     bool
}

// NewMonitor builds a monitor over store. It does nothing until Start.
func NewMonitor(store Store, notifier Notifier, opts ...Option) *Monitor {
	if notifier == nil {
		notifier = NotifierFuncs{}
	}
	m := &Monitor{
		store:    store,
		notifier: notifier,
		clock:    SystemClock(),
		interval: DefaultCheckInterval,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start mounts the monitor: it follows the store and checks the current
// session immediately rather than waiting for the first tick.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.unsubscribe != nil {
		m.mu.Unlock()
		return
	}
	m.unsubscribe = m.store.Subscribe(m.observe)
	m.mu.Unlock()

	m.observe(m.store.Get())
}

// Stop unmounts the monitor and cancels its ticker. It is idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.unmonitorLocked()
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// State reports whether a session is currently being watched.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// observe reacts to the store's value changing.
func (m *Monitor) observe(sess *Session) {
	m.mu.Lock()
	if m.unsubscribe == nil {
		m.mu.Unlock()
		return
	}
	if sess == nil {
		m.unmonitorLocked()
		m.mu.Unlock()
		return
	}
	if m.state == Monitoring && sess.Token == m.token {
		m.mu.Unlock()
		return
	}

	m.unmonitorLocked()
	m.state = Monitoring
	m.token = sess.Token
	m.ticker = m.clock.NewTicker(m.interval)
	m.done = make(chan struct{})
	go m.loop(m.ticker, m.done)
	m.mu.Unlock()

	m.Check()
}

func (m *Monitor) loop(t Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-t.C():
			m.Check()
		}
	}
}

// unmonitorLocked cancels the ticker and forgets the token.
func (m *Monitor) unmonitorLocked() {
	if m.ticker != nil {
		m.ticker.Stop()
		m.ticker = nil
	}
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	m.state = Unmonitored
	m.token = ""
	m.lastTier = TierNone
}

// Check runs one tick. Overlapping calls never interleave: a call made while
// a tick is running is folded into a re-run of that tick.
func (m *Monitor) Check() {
	m.mu.Lock()
	if m.ticking {
		m.pending = true
		m.mu.Unlock()
		return
	}
	m.ticking = true
	m.mu.Unlock()

	for {
		m.tick()

		m.mu.Lock()
		if !m.pending {
			m.ticking = false
			m.mu.Unlock()
			return
		}
		m.pending = false
		m.mu.Unlock()
	}
}

func (m *Monitor) tick() {
	m.mu.Lock()
	if m.state != Monitoring {
		m.mu.Unlock()
		return
	}

	current := m.store.Get()
	if current == nil {
		m.unmonitorLocked()
		m.mu.Unlock()
		return
	}
	if current.Token != m.token {
		// the subscription will pick up the new session
		m.mu.Unlock()
		return
	}

	hint, err := auth.DecodeUnverified(m.token)
	if err != nil {
		m.mu.Unlock()
		m.logger.Warn("cannot read session expiry", zap.Error(err))
		return
	}

	remaining := hint.Remaining(m.clock.Now())
	tier := TierFor(remaining)

	if tier == TierExpired {
		token := m.token
		m.unmonitorLocked()
		m.mu.Unlock()

		m.logger.Info("session expired, clearing", zap.String("user_id", hint.UserID))
		if _, err := ClearToken(m.store, token); err != nil {
			m.logger.Warn("clear expired session", zap.Error(err))
		}
		m.notifier.Expired()
		return
	}

	if tier == m.lastTier {
		m.mu.Unlock()
		return
	}
	m.lastTier = tier
	m.mu.Unlock()

	if tier == TierNone {
		return
	}
	w := newWarning(tier, remaining, hint.ExpiresAt)
	m.logger.Debug("session expiry warning", zap.String("tier", tier.String()), zap.Duration("remaining", remaining))
	m.notifier.Warn(w)
}
