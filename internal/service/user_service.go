package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/DevDonal19/imparablesmujeres/internal/auth"
	"github.com/DevDonal19/imparablesmujeres/internal/domain"
	"github.com/DevDonal19/imparablesmujeres/internal/events"
	"github.com/DevDonal19/imparablesmujeres/internal/repository"
	apperrors "github.com/DevDonal19/imparablesmujeres/pkg/util/errorutil"
)

var (
	ErrUserNotFound           = apperrors.NewDomainError("USER_NOT_FOUND", "user not found", http.StatusNotFound, nil)
	ErrEmailTaken             = apperrors.NewDomainError("EMAIL_TAKEN", "email already registered", http.StatusConflict, nil)
	ErrSelfDelete             = apperrors.NewDomainError("SELF_DELETE", "you cannot delete your own account", http.StatusBadRequest, nil)
	ErrCurrentPasswordNeeded  = apperrors.NewDomainError("CURRENT_PASSWORD_REQUIRED", "current password is required", http.StatusBadRequest, nil)
	ErrCurrentPasswordInvalid = apperrors.NewDomainError("CURRENT_PASSWORD_INVALID", "current password is incorrect", http.StatusBadRequest, nil)
)

// CreateUserInput carries an admin's request for a new principal. Role
// defaults to editor and DisplayName to the email's local part.
type CreateUserInput struct {
	Email       string
	Password    string
	DisplayName string
	Role        domain.Role
}

// UpdateUserInput lists the fields to change; zero values are left alone.
type UpdateUserInput struct {
	DisplayName string
	Password    string
	Role        domain.Role
	Active      *bool
}

// ProfileInput is a principal editing its own record. A new password is
// only accepted together with the current one.
type ProfileInput struct {
	DisplayName     string
	CurrentPassword string
	NewPassword     string
}

// UserService manages admin panel principals on behalf of an authenticated
// actor.
type UserService struct {
	users     repository.UserRepository
	passwords *auth.PasswordHasher
	logger    *zap.Logger
	events    events.Dispatcher
}

// UserDependencies encapsulates collaborators for the user service.
type UserDependencies struct {
	UserRepo  repository.UserRepository
	Passwords *auth.PasswordHasher
	Logger    *zap.Logger
	Events    events.Dispatcher
}

// NewUserService builds the service.
func NewUserService(deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:     deps.UserRepo,
		passwords: deps.Passwords,
		logger:    logger,
		events:    deps.Events,
	}
}

// List returns the public view of every principal, newest first.
func (s *UserService) List(ctx context.Context) ([]domain.UserView, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	views := make([]domain.UserView, 0, len(users))
	for i := range users {
		views = append(views, users[i].View())
	}
	return views, nil
}

// Get returns one principal's public view.
func (s *UserService) Get(ctx context.Context, id string) (*domain.UserView, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	view := user.View()
	return &view, nil
}

// Create registers a new active principal.
func (s *UserService) Create(ctx context.Context, actor domain.UserView, in CreateUserInput) (*domain.UserView, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}
	role := in.Role
	if role == "" {
		role = domain.RoleEditor
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": string(in.Role)})
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.changed(ctx, events.EventUserCreated, actor, user.ID, "email", "role")
	view := user.View()
	return &view, nil
}

// Update edits principal id. Anyone may edit their own display name and
// password; editing others, changing roles or toggling the active flag
// takes an admin.
func (s *UserService) Update(ctx context.Context, actor domain.UserView, id string, in UpdateUserInput) (*domain.UserView, error) {
	isAdmin := actor.Role.Satisfies(domain.RoleAdmin)
	if actor.ID != id && !isAdmin {
		return nil, auth.NewError(auth.KindForbidden, fmt.Errorf("user %s may not edit %s", actor.ID, id))
	}
	if (in.Role != "" || in.Active != nil) && !isAdmin {
		return nil, auth.NewError(auth.KindForbidden, fmt.Errorf("user %s may not change role or status", actor.ID))
	}
	if in.Role != "" && !in.Role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": string(in.Role)})
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var fields []string
	if name := strings.TrimSpace(in.DisplayName); name != "" && name != user.DisplayName {
		user.DisplayName = name
		fields = append(fields, "display_name")
	}
	if in.Password != "" {
		if user.PasswordHash, err = s.passwords.Hash(in.Password); err != nil {
			return nil, err
		}
		fields = append(fields, "password")
	}
	if in.Role != "" && in.Role != user.Role {
		user.Role = in.Role
		fields = append(fields, "role")
	}
	if in.Active != nil && *in.Active != user.Active {
		user.Active = *in.Active
		fields = append(fields, "active")
	}

	if len(fields) > 0 {
		if err := s.save(ctx, user); err != nil {
			return nil, err
		}
		s.changed(ctx, events.EventUserUpdated, actor, user.ID, fields...)
	}
	view := user.View()
	return &view, nil
}

// UpdateProfile edits the actor's own record.
func (s *UserService) UpdateProfile(ctx context.Context, actor domain.UserView, in ProfileInput) (*domain.UserView, error) {
	user, err := s.load(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	var fields []string
	if name := strings.TrimSpace(in.DisplayName); name != "" && name != user.DisplayName {
		user.DisplayName = name
		fields = append(fields, "display_name")
	}
	if in.NewPassword != "" {
		if in.CurrentPassword == "" {
			return nil, ErrCurrentPasswordNeeded
		}
		// never 401; clients treat 401 as a dead session
		if !s.passwords.Matches(user.PasswordHash, in.CurrentPassword) {
			return nil, ErrCurrentPasswordInvalid
		}
		if user.PasswordHash, err = s.passwords.Hash(in.NewPassword); err != nil {
			return nil, err
		}
		fields = append(fields, "password")
	}

	if len(fields) > 0 {
		if err := s.save(ctx, user); err != nil {
			return nil, err
		}
		s.changed(ctx, events.EventUserUpdated, actor, user.ID, fields...)
	}
	view := user.View()
	return &view, nil
}

// Delete removes principal id. Admins cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actor domain.UserView, id string) error {
	if actor.ID == id {
		return ErrSelfDelete
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	s.changed(ctx, events.EventUserDeleted, actor, id)
	return nil
}

func (s *UserService) load(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func (s *UserService) save(ctx context.Context, user *domain.User) error {
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *UserService) changed(ctx context.Context, eventType events.EventType, actor domain.UserView, userID string, fields ...string) {
	if s.events == nil {
		return
	}
	event := events.New(eventType, userID, events.UserChangedPayload{UserID: userID, ActorID: actor.ID, Fields: fields})
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", string(eventType)), zap.Error(err))
	}
}
