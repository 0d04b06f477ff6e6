package dto

import "github.com/DevDonal19/imparablesmujeres/internal/domain"

// LoginRequest payload for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the login success body. The token's exp claim is the
// authoritative expiry; clients read it from the token itself.
type LoginResponse struct {
	Token string          `json:"token"`
	User  domain.UserView `json:"user"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// CreateUserRequest payload for POST /api/users.
type CreateUserRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

// UpdateUserRequest payload for PUT /api/users/:id. Omitted fields are kept.
type UpdateUserRequest struct {
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	Active      *bool  `json:"active"`
}

// UpdateProfileRequest payload for PUT /api/users/profile/me.
type UpdateProfileRequest struct {
	DisplayName     string `json:"displayName"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// MessageResponse is a bare acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}
