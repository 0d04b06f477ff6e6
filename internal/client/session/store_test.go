package session_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DevDonal19/imparablesmujeres/internal/client/session"
)

func TestMemoryStore(t *testing.T) {
	store := session.NewMemoryStore(nil)
	require.Nil(t, store.Get())

	var seen []*session.Session
	unsubscribe := store.Subscribe(func(s *session.Session) { seen = append(seen, s) })

	sess := sessionExpiringAt(t, base.Add(time.Hour))
	require.NoError(t, store.Set(sess))
	require.Equal(t, sess, store.Get())

	// same value again is not a change
	require.NoError(t, store.Set(sess))
	require.Len(t, seen, 1)

	require.NoError(t, session.Clear(store))
	require.NoError(t, session.Clear(store))
	require.Nil(t, store.Get())
	require.Len(t, seen, 2)
	require.Nil(t, seen[1])

	unsubscribe()
	unsubscribe()
	require.NoError(t, store.Set(sess))
	require.Len(t, seen, 2)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	sess := sessionExpiringAt(t, base.Add(time.Hour))
	store := session.NewMemoryStore(sess)

	got := store.Get()
	got.Token = "mutated"
	require.Equal(t, sess.Token, store.Get().Token)
}

func TestMemoryStore_SubscribersMayWrite(t *testing.T) {
	store := session.NewMemoryStore(nil)
	first := sessionExpiringAt(t, base.Add(time.Hour))

	store.Subscribe(func(s *session.Session) {
		if s != nil && s.Token == first.Token {
			require.NoError(t, session.Clear(store))
		}
	})

	var last *session.Session
	store.Subscribe(func(s *session.Session) { last = s })

	require.NoError(t, store.Set(first))
	require.Nil(t, store.Get())
	require.Nil(t, last)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	store, err := session.NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	require.Nil(t, store.Get())
	require.Equal(t, path, store.Path())

	sess := sessionExpiringAt(t, base.Add(time.Hour))
	require.NoError(t, store.Set(sess))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := session.NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, sess, reopened.Get())

	require.NoError(t, session.Clear(store))
	require.NoError(t, session.Clear(store))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestFileStore_UnreadableFileMeansLoggedOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store, err := session.NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	require.Nil(t, store.Get())
}

func TestFileStore_WatchSeesOtherProcesses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watched, err := session.NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, watched.Watch(ctx))

	changes := make(chan *session.Session, 8)
	watched.Subscribe(func(s *session.Session) { changes <- s })

	other, err := session.NewFileStore(path, zap.NewNop())
	require.NoError(t, err)

	sess := sessionExpiringAt(t, base.Add(time.Hour))
	require.NoError(t, other.Set(sess))
	require.Eventually(t, func() bool {
		got := watched.Get()
		return got != nil && got.Token == sess.Token
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, session.Clear(other))
	require.Eventually(t, func() bool { return watched.Get() == nil }, 2*time.Second, 10*time.Millisecond)

	first := <-changes
	require.Equal(t, sess.Token, first.Token)
}

func TestClearToken(t *testing.T) {
	old := sessionExpiringAt(t, base.Add(time.Hour))
	fresh := sessionExpiringAt(t, base.Add(2*time.Hour))

	t.Run("memory", func(t *testing.T) {
		store := session.NewMemoryStore(fresh)
		var seen []*session.Session
		store.Subscribe(func(s *session.Session) { seen = append(seen, s) })

		cleared, err := session.ClearToken(store, old.Token)
		require.NoError(t, err)
		require.False(t, cleared)
		require.Equal(t, fresh, store.Get())
		require.Empty(t, seen)

		cleared, err = session.ClearToken(store, "")
		require.NoError(t, err)
		require.False(t, cleared)

		cleared, err = session.ClearToken(store, fresh.Token)
		require.NoError(t, err)
		require.True(t, cleared)
		require.Nil(t, store.Get())
		require.Equal(t, []*session.Session{nil}, seen)
	})

	t.Run("file keeps a login written by another process", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		store, err := session.NewFileStore(path, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, store.Set(old))

		other, err := session.NewFileStore(path, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, other.Set(fresh))

		cleared, err := session.ClearToken(store, old.Token)
		require.NoError(t, err)
		require.True(t, cleared)
		require.Equal(t, fresh, store.Get())
		_, err = os.Stat(path)
		require.NoError(t, err)

		cleared, err = session.ClearToken(other, fresh.Token)
		require.NoError(t, err)
		require.True(t, cleared)
		_, err = os.Stat(path)
		require.True(t, os.IsNotExist(err))
	})
}
