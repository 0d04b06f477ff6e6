package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DevDonal19/imparablesmujeres/internal/api/dto"
	"github.com/DevDonal19/imparablesmujeres/internal/auth"
	"github.com/DevDonal19/imparablesmujeres/internal/client/api"
	"github.com/DevDonal19/imparablesmujeres/internal/domain"
)

var editora = domain.UserView{
	ID:          "7b0c8f55-2b43-4c8c-9d8e-0c6a1f1e6d01",
	Email:       "editora@imparables.org",
	Role:        domain.RoleEditor,
	DisplayName: "Editora",
}

// newAPI serves the login, me and users endpoints for one known account.
func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	tm, err := auth.NewTokenManager("ctl-test", time.Hour)
	require.NoError(t, err)

	writeJSON := func(w http.ResponseWriter, status int, body any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
	verified := func(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
		claims, err := tm.Verify(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Message: auth.MessageUnauthenticated})
			return nil, false
		}
		return claims, true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req dto.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Email != editora.Email || req.Password != "editor-pass" {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Message: auth.MessageInvalidCredentials})
			return
		}
		token, _, err := tm.Issue(editora)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, dto.LoginResponse{Token: token, User: editora})
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := verified(w, r); ok {
			writeJSON(w, http.StatusOK, api.MeResponse{User: claims.User(), ExpiresAt: claims.ExpiresAtTime().Unix()})
		}
	})
	mux.HandleFunc("/api/users", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := verified(w, r); ok {
			writeJSON(w, http.StatusOK, []domain.UserView{editora})
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func useFileSession(t *testing.T, apiURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.json")
	t.Setenv("IMPARABLES_API_URL", apiURL)
	t.Setenv("IMPARABLES_SESSION_BACKEND", "file")
	t.Setenv("IMPARABLES_SESSION_FILE", path)
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	require.Equal(t, "imparablesctl dev (none)\n", out)
}

func TestSessionLifecycle(t *testing.T) {
	srv := newAPI(t)
	useFileSession(t, srv.URL+"/api")

	_, err := run(t, "whoami")
	require.ErrorIs(t, err, api.ErrNotLoggedIn)

	_, err = run(t, "login", "-e", editora.Email, "-p", "wrong")
	require.Error(t, err)

	out, err := run(t, "login", "-e", editora.Email, "-p", "editor-pass")
	require.NoError(t, err)
	require.Contains(t, out, "Logged in as Editora (editor)")
	require.Contains(t, out, "Session expires in")

	out, err = run(t, "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "Editora <editora@imparables.org>")
	require.Contains(t, out, "role: editor")

	out, err = run(t, "users")
	require.NoError(t, err)
	require.Contains(t, out, editora.Email)

	out, err = run(t, "logout")
	require.NoError(t, err)
	require.Equal(t, "Logged out\n", out)

	_, err = run(t, "whoami")
	require.ErrorIs(t, err, api.ErrNotLoggedIn)
}

func TestUnknownSessionBackend(t *testing.T) {
	t.Setenv("IMPARABLES_SESSION_BACKEND", "floppy")
	_, err := run(t, "whoami")
	require.ErrorContains(t, err, `unknown session backend "floppy"`)
}

func TestCountdown_ConcurrentStartAndWrites(t *testing.T) {
	var buf bytes.Buffer
	out := &lockedWriter{w: &buf}
	c := newCountdown(out, 2*time.Millisecond)
	expiresAt := time.Now().Add(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.start(expiresAt)
		}()
		go func() {
			defer wg.Done()
			_, _ = out.Write([]byte("[warning] session expiring\n"))
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		out.mu.Lock()
		defer out.mu.Unlock()
		return strings.Contains(buf.String(), "Session expiring in")
	}, time.Second, 5*time.Millisecond)

	c.stop()
	c.stop()

	out.mu.Lock()
	written := buf.Len()
	out.mu.Unlock()
	time.Sleep(10 * time.Millisecond)
	out.mu.Lock()
	require.Equal(t, written, buf.Len())
	require.Equal(t, 8, strings.Count(buf.String(), "[warning] session expiring\n"))
	out.mu.Unlock()
}

func TestCountdown_StartAfterStopIsNoop(t *testing.T) {
	var buf bytes.Buffer
	c := newCountdown(&lockedWriter{w: &buf}, time.Millisecond)
	c.stop()
	c.start(time.Now().Add(time.Minute))
	time.Sleep(10 * time.Millisecond)
	require.Zero(t, buf.Len())
}
