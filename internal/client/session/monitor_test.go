package session_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DevDonal19/imparablesmujeres/internal/client/session"
)

func newMonitor(store session.Store, clock *fakeClock, rec *recorder) *session.Monitor {
	return session.NewMonitor(store, rec, session.WithClock(clock), session.WithInterval(30*time.Second))
}

func TestTierFor(t *testing.T) {
	cases := []struct {
		remaining time.Duration
		want      session.Tier
	}{
		{301 * time.Second, session.TierNone},
		{300 * time.Second, session.TierFiveMinutes},
		{121 * time.Second, session.TierFiveMinutes},
		{120 * time.Second, session.TierTwoMinutes},
		{61 * time.Second, session.TierTwoMinutes},
		{60 * time.Second, session.TierOneMinute},
		{31 * time.Second, session.TierOneMinute},
		{30 * time.Second, session.TierCritical},
		{time.Millisecond, session.TierCritical},
		{0, session.TierExpired},
		{-time.Hour, session.TierExpired},
	}
	for _, tc := range cases {
		t.Run(tc.remaining.String(), func(t *testing.T) {
			require.Equal(t, tc.want, session.TierFor(tc.remaining))
		})
	}
}

func TestMonitor_TierTransitions(t *testing.T) {
	exp := base.Add(301 * time.Second)
	store := session.NewMemoryStore(sessionExpiringAt(t, exp))
	clock := newFakeClock(base)
	rec := &recorder{}

	m := newMonitor(store, clock, rec)
	m.Start()
	defer m.Stop()

	require.Equal(t, session.Monitoring, m.State())
	require.Empty(t, rec.tiers(), "301s remaining shows nothing")

	step := func(remaining time.Duration) {
		clock.Set(exp.Add(-remaining))
		m.Check()
	}

	step(299 * time.Second)
	step(250 * time.Second)
	step(121 * time.Second)
	require.Equal(t, []session.Tier{session.TierFiveMinutes}, rec.tiers())

	step(61 * time.Second)
	step(60 * time.Second)
	step(29 * time.Second)
	step(10 * time.Second)
	require.Equal(t, []session.Tier{
		session.TierFiveMinutes,
		session.TierTwoMinutes,
		session.TierOneMinute,
		session.TierCritical,
	}, rec.tiers())

	step(0)
	warnings, expired := rec.snapshot()
	require.Len(t, warnings, 4)
	require.Equal(t, 1, expired)
	require.Nil(t, store.Get())
	require.Equal(t, session.Unmonitored, m.State())
	require.Zero(t, clock.live())

	step(-time.Minute)
	_, expired = rec.snapshot()
	require.Equal(t, 1, expired)
}

func TestMonitor_WarningContent(t *testing.T) {
	exp := base.Add(time.Hour)
	store := session.NewMemoryStore(sessionExpiringAt(t, exp))
	clock := newFakeClock(exp.Add(-4 * time.Minute))
	rec := &recorder{}

	m := newMonitor(store, clock, rec)
	m.Start()
	defer m.Stop()

	for _, remaining := range []time.Duration{100 * time.Second, 45 * time.Second, 12 * time.Second} {
		clock.Set(exp.Add(-remaining))
		m.Check()
	}

	warnings, _ := rec.snapshot()
	require.Len(t, warnings, 4)

	require.Equal(t, "Your session will expire in 5 minutes", warnings[0].Message)
	require.Equal(t, session.SeverityWarning, warnings[0].Severity)
	require.True(t, warnings[0].ExpiresAt.Equal(exp))

	require.Equal(t, "Your session will expire in 2 minutes", warnings[1].Message)
	require.Equal(t, session.SeverityWarning, warnings[1].Severity)

	require.Equal(t, "Your session will expire in 45 seconds", warnings[2].Message)
	require.Equal(t, session.SeverityError, warnings[2].Severity)

	require.Equal(t, "Session expiring in 12 seconds", warnings[3].Message)
	require.Equal(t, session.SeverityError, warnings[3].Severity)
	require.Equal(t, 12*time.Second, warnings[3].Remaining)
}

func TestMonitor_ExpiredOnMountClearsImmediately(t *testing.T) {
	store := session.NewMemoryStore(sessionExpiringAt(t, base.Add(-time.Second)))
	clock := newFakeClock(base)
	rec := &recorder{}

	var seen []*session.Session
	store.Subscribe(func(s *session.Session) { seen = append(seen, s) })

	m := newMonitor(store, clock, rec)
	m.Start()
	defer m.Stop()

	warnings, expired := rec.snapshot()
	require.Empty(t, warnings)
	require.Equal(t, 1, expired)
	require.Nil(t, store.Get())
	require.Equal(t, []*session.Session{nil}, seen)
	require.Equal(t, session.Unmonitored, m.State())
	require.Zero(t, clock.live())
}

func TestMonitor_ObservesExternalClear(t *testing.T) {
	exp := base.Add(200 * time.Second)
	store := session.NewMemoryStore(sessionExpiringAt(t, exp))
	clock := newFakeClock(base)
	rec := &recorder{}

	m := newMonitor(store, clock, rec)
	m.Start()
	defer m.Stop()
	require.Equal(t, []session.Tier{session.TierFiveMinutes}, rec.tiers())

	// a 401 elsewhere clears the session
	require.NoError(t, session.Clear(store))
	require.Equal(t, session.Unmonitored, m.State())
	require.Zero(t, clock.live())

	clock.Set(exp.Add(-10 * time.Second))
	m.Check()
	clock.Set(exp.Add(time.Second))
	m.Check()

	warnings, expired := rec.snapshot()
	require.Len(t, warnings, 1)
	require.Zero(t, expired)

	require.NoError(t, session.Clear(store))
	require.Nil(t, store.Get())
}

func TestMonitor_NewSessionResetsTier(t *testing.T) {
	clock := newFakeClock(base)
	store := session.NewMemoryStore(sessionExpiringAt(t, base.Add(200*time.Second)))
	rec := &recorder{}

	m := newMonitor(store, clock, rec)
	m.Start()
	defer m.Stop()
	require.Equal(t, []session.Tier{session.TierFiveMinutes}, rec.tiers())

	// re-login with a fresh four hour token
	require.NoError(t, store.Set(sessionExpiringAt(t, base.Add(4*time.Hour))))
	require.Equal(t, session.Monitoring, m.State())
	require.Equal(t, 1, clock.live())
	require.Len(t, rec.tiers(), 1)

	// a second short-lived login warns again from scratch
	require.NoError(t, store.Set(sessionExpiringAt(t, base.Add(250*time.Second))))
	require.Equal(t, []session.Tier{session.TierFiveMinutes, session.TierFiveMinutes}, rec.tiers())
	require.Equal(t, 1, clock.live())
}

func TestMonitor_TickerDrivesChecks(t *testing.T) {
	exp := base.Add(time.Hour)
	store := session.NewMemoryStore(sessionExpiringAt(t, exp))
	clock := newFakeClock(base)
	rec := &recorder{}

	m := newMonitor(store, clock, rec)
	m.Start()
	defer m.Stop()
	require.Empty(t, rec.tiers())

	clock.Set(exp.Add(-90 * time.Second))
	clock.Tick()
	require.Eventually(t, func() bool { return len(rec.tiers()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, session.TierTwoMinutes, rec.tiers()[0])

	clock.Set(exp)
	clock.Tick()
	require.Eventually(t, func() bool { return store.Get() == nil }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { _, n := rec.snapshot(); return n == 1 }, time.Second, 5*time.Millisecond)
}

func TestMonitor_ConcurrentChecksClearOnce(t *testing.T) {
	exp := base.Add(time.Hour)
	store := session.NewMemoryStore(sessionExpiringAt(t, exp))
	clock := newFakeClock(base)
	rec := &recorder{}

	var clears int
	var mu sync.Mutex
	store.Subscribe(func(s *session.Session) {
		if s == nil {
			mu.Lock()
			clears++
			mu.Unlock()
		}
	})

	m := newMonitor(store, clock, rec)
	m.Start()
	defer m.Stop()

	clock.Set(exp.Add(time.Second))
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Check()
		}()
	}
	wg.Wait()

	_, expired := rec.snapshot()
	require.Equal(t, 1, expired)
	mu.Lock()
	require.Equal(t, 1, clears)
	mu.Unlock()
}

func TestMonitor_StopCancelsTicker(t *testing.T) {
	store := session.NewMemoryStore(sessionExpiringAt(t, base.Add(time.Hour)))
	clock := newFakeClock(base)
	rec := &recorder{}

	m := newMonitor(store, clock, rec)
	m.Start()
	require.Equal(t, 1, clock.live())

	m.Stop()
	m.Stop()
	require.Zero(t, clock.live())
	require.Equal(t, session.Unmonitored, m.State())

	require.NoError(t, store.Set(sessionExpiringAt(t, base.Add(time.Minute))))
	require.Equal(t, session.Unmonitored, m.State())
	require.Empty(t, rec.tiers())
}

func TestMonitor_UnreadableTokenIsLeftToServer(t *testing.T) {
	store := session.NewMemoryStore(&session.Session{Token: "not-a-jwt", User: editor})
	clock := newFakeClock(base)
	rec := &recorder{}

	m := newMonitor(store, clock, rec)
	m.Start()
	defer m.Stop()

	warnings, expired := rec.snapshot()
	require.Empty(t, warnings)
	require.Zero(t, expired)
	require.NotNil(t, store.Get())
	require.Equal(t, session.Monitoring, m.State())
}

func TestMonitor_NotifierMayReplaceSession(t *testing.T) {
	exp := base.Add(100 * time.Second)
	store := session.NewMemoryStore(sessionExpiringAt(t, exp))
	clock := newFakeClock(base)
	fresh := sessionExpiringAt(t, base.Add(4*time.Hour))

	var warned int
	m := session.NewMonitor(store, session.NotifierFuncs{
		OnWarning: func(session.Warning) {
			warned++
			require.NoError(t, store.Set(fresh))
		},
	}, session.WithClock(clock))
	m.Start()
	defer m.Stop()

	require.Equal(t, 1, warned)
	require.Equal(t, fresh.Token, store.Get().Token)
	require.Equal(t, session.Monitoring, m.State())
	require.Equal(t, 1, clock.live())
}
