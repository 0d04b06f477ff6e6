package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/DevDonal19/imparablesmujeres/internal/auth"
	"github.com/DevDonal19/imparablesmujeres/internal/config"
	"github.com/DevDonal19/imparablesmujeres/internal/domain"
	"github.com/DevDonal19/imparablesmujeres/internal/events"
	"github.com/DevDonal19/imparablesmujeres/internal/observability"
	"github.com/DevDonal19/imparablesmujeres/internal/repository"
)

// AuthService coordinates login and principal lookups.
type AuthService struct {
	users     repository.UserRepository
	tokenMgr  *auth.TokenManager
	passwords *auth.PasswordHasher
	logger    *zap.Logger
	metrics   *observability.Metrics
	events    events.Dispatcher
}

// AuthDependencies encapsulates collaborators for the auth service. Events
// is optional.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Events   events.Dispatcher
}

// NewAuthService builds the service. It fails when the signing secret is
// unusable so the process never starts half-configured.
func NewAuthService(cfg config.Config, deps AuthDependencies) (*AuthService, error) {
	tokenMgr, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	passwords, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:     deps.UserRepo,
		tokenMgr:  tokenMgr,
		passwords: passwords,
		logger:    logger,
		metrics:   deps.Metrics,
		events:    deps.Events,
	}, nil
}

// Login verifies credentials and issues a token. Unknown email, inactive
// principal and wrong password all yield auth.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.IssuedToken, error) {
	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.passwords.Discard(password)
		return nil, s.reject(ctx, email, errors.New("unknown email"))
	case err != nil:
		s.metrics.RecordLogin("error")
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !s.passwords.Matches(user.PasswordHash, password) {
		return nil, s.reject(ctx, email, errors.New("password mismatch"))
	}
	if !user.Active {
		return nil, s.reject(ctx, email, errors.New("user inactive"))
	}

	token, claims, err := s.tokenMgr.Issue(user.View())
	if err != nil {
		s.metrics.RecordLogin("error")
		return nil, err
	}

	s.metrics.RecordLogin("success")
	s.publish(ctx, events.New(events.EventLoginSucceeded, user.ID, events.LoginSucceededPayload{
		UserID:    user.ID,
		Role:      user.Role,
		ExpiresAt: claims.ExpiresAtTime(),
	}))
	return &domain.IssuedToken{
		Token:     token,
		IssuedAt:  claims.IssuedAtTime(),
		ExpiresAt: claims.ExpiresAtTime(),
		User:      user.View(),
	}, nil
}

func (s *AuthService) reject(ctx context.Context, email string, cause error) error {
	s.metrics.RecordLogin("rejected")
	s.publish(ctx, events.New(events.EventLoginRejected, email, events.LoginRejectedPayload{
		Email:  email,
		Reason: cause.Error(),
	}))
	return auth.NewError(auth.KindInvalidCredentials, cause)
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// Principal reloads the caller by id. A principal that was removed or
// deactivated after its token was issued is reported as unavailable.
func (s *AuthService) Principal(ctx context.Context, id string) (*domain.UserView, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, auth.NewError(auth.KindPrincipalUnavailable, err)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.Active {
		return nil, auth.NewError(auth.KindPrincipalUnavailable, errors.New("user inactive"))
	}
	view := user.View()
	return &view, nil
}

// EnsureAdmin creates the seed administrator unless a principal with that
// email already exists, in which case the existing record is returned.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password, displayName string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, errors.New("admin email and password are required")
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("seeded admin user", zap.String("email", email))
	s.publish(ctx, events.New(events.EventAdminSeeded, user.ID, events.AdminSeededPayload{UserID: user.ID, Email: user.Email}))
	return user, nil
}

// BootstrapAdmin seeds the administrator from configuration. Seed failures
// are logged and never stop the server.
func (s *AuthService) BootstrapAdmin(ctx context.Context, cfg config.AuthConfig) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		s.logger.Warn("ADMIN_EMAIL and ADMIN_SEED_PASSWORD not set; no admin user seeded")
		return
	}
	admin, err := s.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminDisplayName)
	if err != nil {
		s.logger.Error("could not seed admin user", zap.Error(err))
		return
	}
	s.logger.Info("admin user verified", zap.String("email", admin.Email), zap.String("role", string(admin.Role)))
}

// Passwords exposes the hasher so user management shares one bcrypt cost.
func (s *AuthService) Passwords() *auth.PasswordHasher {
	return s.passwords
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
