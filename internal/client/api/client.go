// Package api is the admin panel's HTTP client for the auth and users
// endpoints. It attaches the stored bearer token to every authenticated call
// and ends the local session when the server answers 401.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DevDonal19/imparablesmujeres/internal/api/dto"
	"github.com/DevDonal19/imparablesmujeres/internal/client/session"
	"github.com/DevDonal19/imparablesmujeres/internal/domain"
)

var (
	// ErrNotLoggedIn is returned before any request when no session is stored.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrSessionExpired means the server rejected the token and the local
	// session has been cleared.
	ErrSessionExpired = errors.New("session expired, please log in again")
	// ErrForbidden means the principal's role does not allow the call. The
	// session stays valid.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrInvalidResponse is a success status carrying an unusable body.
	ErrInvalidResponse = errors.New("invalid response from server")
)

// Error is a non-2xx answer not covered by the sentinels above.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

// Client talks to the API under baseURL, e.g. http://localhost:4000/api.
type Client struct {
	baseURL string
	http    *http.Client
	store   session.Store
	logger  *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a client reading and writing its session through store.
func New(baseURL string, store session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		store:   store,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges credentials for a token and stores the new session.
func (c *Client) Login(ctx context.Context, email, password string) (*session.Session, error) {
	var resp dto.LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", dto.LoginRequest{Email: email, Password: password}, false, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" || resp.User.ID == "" {
		return nil, ErrInvalidResponse
	}

	sess := &session.Session{Token: resp.Token, User: resp.User}
	if err := c.store.Set(sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	c.logger.Info("logged in", zap.String("user_id", resp.User.ID), zap.String("role", string(resp.User.Role)))
	return sess, nil
}

// Logout clears the local session. The server keeps no session state.
func (c *Client) Logout() error {
	return session.Clear(c.store)
}

// MeResponse is the body of GET /auth/me.
type MeResponse struct {
	User      domain.UserView `json:"user"`
	ExpiresAt int64           `json:"expiresAt"`
}

// ExpiresAtTime converts the epoch-seconds expiry.
func (m MeResponse) ExpiresAtTime() time.Time {
	return time.Unix(m.ExpiresAt, 0)
}

// Me returns the current principal as the server sees it.
func (c *Client) Me(ctx context.Context) (*MeResponse, error) {
	var resp MeResponse
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListUsers returns every principal. Admin only.
func (c *Client) ListUsers(ctx context.Context) ([]domain.UserView, error) {
	var users []domain.UserView
	if err := c.do(ctx, http.MethodGet, "/users", nil, true, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, authenticated bool, out any) error {
	var token string
	if authenticated {
		sess := c.store.Get()
		if sess == nil {
			return ErrNotLoggedIn
		}
		token = sess.Token
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return nil
	}

	apiErr := decodeError(resp.StatusCode, data)
	switch {
	case resp.StatusCode == http.StatusUnauthorized && authenticated:
		cleared, err := session.ClearToken(c.store, token)
		if err != nil {
			c.logger.Warn("clear session", zap.Error(err))
		}
		c.logger.Info("server rejected session",
			zap.String("path", path),
			zap.Bool("cleared", cleared))
		return fmt.Errorf("%w: %s", ErrSessionExpired, apiErr.Message)
	case resp.StatusCode == http.StatusForbidden:
		return ErrForbidden
	default:
		return apiErr
	}
}

func decodeError(status int, data []byte) *Error {
	var body dto.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return &Error{Status: status}
	}
	return &Error{Status: status, Code: body.Code, Message: body.Message}
}
