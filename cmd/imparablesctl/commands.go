package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DevDonal19/imparablesmujeres/internal/auth"
	"github.com/DevDonal19/imparablesmujeres/internal/client/api"
	"github.com/DevDonal19/imparablesmujeres/internal/client/session"
	"github.com/DevDonal19/imparablesmujeres/internal/config"
	"github.com/DevDonal19/imparablesmujeres/internal/persistence"
)

type rootOptions struct {
	verbose bool
	apiURL  string
	backend string
}

// env is what every subcommand needs: config, logger, store and API client.
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   session.Store
	client  *api.Client
	watch   func(context.Context) error
	cleanup func()
}

func (o *rootOptions) setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.apiURL != "" {
		cfg.Client.APIURL = o.apiURL
	}
	if o.backend != "" {
		cfg.Client.SessionBackend = o.backend
	}

	logger := zap.NewNop()
	if o.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}

	e := &env{cfg: cfg, logger: logger, cleanup: func() { _ = logger.Sync() }}

	switch cfg.Client.SessionBackend {
	case "file":
		store, err := session.NewFileStore(cfg.Client.SessionFile, logger)
		if err != nil {
			return nil, err
		}
		e.store, e.watch = store, store.Watch
	case "redis":
		rdb, err := persistence.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		store, err := session.NewRedisStore(ctx, rdb, session.StorageKey, logger)
		if err != nil {
			_ = rdb.Close()
			return nil, err
		}
		e.store, e.watch = store, store.Watch
		flush := e.cleanup
		e.cleanup = func() { _ = rdb.Close(); flush() }
	case "memory":
		e.store = session.NewMemoryStore(nil)
		e.watch = func(context.Context) error { return nil }
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Client.SessionBackend)
	}

	e.client = api.New(cfg.Client.APIURL, e.store, api.WithLogger(logger))
	return e, nil
}

func loginCmd(opts *rootOptions) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("IMPARABLES_PASSWORD")
			}
			if email == "" || password == "" {
				return errors.New("email and password are required")
			}

			e, err := opts.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.cleanup()

			sess, err := e.client.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", sess.User.DisplayName, sess.User.Role)
			printExpiry(cmd.OutOrStdout(), sess.Token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (or IMPARABLES_PASSWORD)")
	return cmd
}

func logoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.cleanup()

			if err := e.client.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func whoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the principal behind the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.cleanup()

			me, err := e.client.Me(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s>\nrole: %s\nid:   %s\n", me.User.DisplayName, me.User.Email, me.User.Role, me.User.ID)
			fmt.Fprintf(out, "session expires at %s\n", me.ExpiresAtTime().Local().Format(time.RFC1123))
			return nil
		},
	}
}

func usersCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List user accounts (admin only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.cleanup()

			users, err := e.client.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEMAIL\tROLE\tNAME")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, u.DisplayName)
			}
			return w.Flush()
		},
	}
}

func watchCmd(opts *rootOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stay in the foreground and warn before the session expires",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := opts.setup(ctx)
			if err != nil {
				return err
			}
			defer e.cleanup()

			if e.store.Get() == nil {
				return api.ErrNotLoggedIn
			}
			if err := e.watch(ctx); err != nil {
				return err
			}
			if interval <= 0 {
				interval = e.cfg.Client.MonitorInterval
			}

			out := &lockedWriter{w: cmd.OutOrStdout()}
			ended := make(chan struct{})
			var endOnce sync.Once
			unsubscribe := e.store.Subscribe(func(s *session.Session) {
				if s == nil {
					endOnce.Do(func() { close(ended) })
				}
			})
			defer unsubscribe()

			countdown := newCountdown(out, time.Second)
			defer countdown.stop()

			monitor := session.NewMonitor(e.store, session.NotifierFuncs{
				OnWarning: func(w session.Warning) {
					fmt.Fprintf(out, "[%s] %s\n", w.Severity, w.Message)
					if w.Tier == session.TierCritical {
						countdown.start(w.ExpiresAt)
					}
				},
				OnExpired: func() {
					e.logger.Debug("monitor observed expiry")
				},
			}, session.WithInterval(interval), session.WithLogger(e.logger))
			monitor.Start()
			defer monitor.Stop()

			printExpiry(out, tokenOf(e.store))

			select {
			case <-ctx.Done():
				return nil
			case <-ended:
				countdown.stop()
				fmt.Fprintln(out, "Session ended. Run `imparablesctl login` to sign in again.")
				return nil
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "check interval (default from IMPARABLES_MONITOR_INTERVAL)")
	return cmd
}

func tokenOf(store session.Store) string {
	if s := store.Get(); s != nil {
		return s.Token
	}
	return ""
}

func printExpiry(out io.Writer, token string) {
	hint, err := auth.DecodeUnverified(token)
	if err != nil {
		return
	}
	remaining := hint.Remaining(time.Now()).Round(time.Second)
	fmt.Fprintf(out, "Session expires in %s\n", remaining)
}

// lockedWriter serializes writes from the monitor callback and the
// countdown goroutine.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// countdown prints the seconds left once per tick during the critical tier.
// It runs at most once; start after stop is a no-op.
type countdown struct {
	out  io.Writer
	tick time.Duration

	mu      sync.Mutex
	started bool
	stopped bool
	done    chan struct{}
	exited  chan struct{}
}

func newCountdown(out io.Writer, tick time.Duration) *countdown {
	return &countdown{out: out, tick: tick, done: make(chan struct{}), exited: make(chan struct{})}
}

func (c *countdown) start(expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.stopped {
		return
	}
	c.started = true
	go func() {
		defer close(c.exited)
		t := time.NewTicker(c.tick)
		defer t.Stop()
		for {
			select {
			case <-c.done:
				return
			case now := <-t.C:
				left := expiresAt.Sub(now).Round(time.Second)
				if left <= 0 {
					return
				}
				fmt.Fprintf(c.out, "\rSession expiring in %d seconds ", int(left/time.Second))
			}
		}
	}()
}

// stop ends the countdown and waits for its goroutine, so nothing is
// written after it returns.
func (c *countdown) stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	close(c.done)
	started := c.started
	c.mu.Unlock()

	if started {
		<-c.exited
	}
}
