package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/DevDonal19/imparablesmujeres/internal/api/dto"
	"github.com/DevDonal19/imparablesmujeres/internal/auth"
	"github.com/DevDonal19/imparablesmujeres/internal/service"
	apperrors "github.com/DevDonal19/imparablesmujeres/pkg/util/errorutil"
)

// AuthHandler exposes login and session endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password are required", nil)
	}

	issued, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return auth.Present(err)
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(dto.LoginResponse{Token: issued.Token, User: issued.User})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return auth.Present(auth.ErrMissingToken)
	}

	user, err := h.auth.Principal(c.UserContext(), principal.User.ID)
	if err != nil {
		return auth.Present(err)
	}
	return c.JSON(fiber.Map{
		"user":      user,
		"expiresAt": principal.Claims.ExpiresAtTime().Unix(),
	})
}
