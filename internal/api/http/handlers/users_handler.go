package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/DevDonal19/imparablesmujeres/internal/api/dto"
	"github.com/DevDonal19/imparablesmujeres/internal/auth"
	"github.com/DevDonal19/imparablesmujeres/internal/domain"
	"github.com/DevDonal19/imparablesmujeres/internal/service"
	apperrors "github.com/DevDonal19/imparablesmujeres/pkg/util/errorutil"
)

// UsersHandler serves the principal directory and account management.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// List handles GET /api/users. The optional role query narrows the result
// to principals holding exactly that role.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	var role domain.Role
	if raw := strings.TrimSpace(c.Query("role")); raw != "" {
		role = parseRole(raw)
		if !role.Valid() {
			return apperrors.NewValidationError("unknown role", map[string]any{"role": raw})
		}
	}

	users, err := h.users.List(c.UserContext())
	if err != nil {
		return err
	}
	if role == "" {
		return c.JSON(users)
	}

	filtered := make([]domain.UserView, 0, len(users))
	for _, u := range users {
		if u.Role == role {
			filtered = append(filtered, u)
		}
	}
	return c.JSON(filtered)
}

// Get handles GET /api/users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	user, err := h.users.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.users.Create(c.UserContext(), actor, service.CreateUserInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        parseRole(req.Role),
	})
	if err != nil {
		return auth.Present(err)
	}
	return c.Status(http.StatusCreated).JSON(user)
}

// Update handles PUT /api/users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.users.Update(c.UserContext(), actor, c.Params("id"), service.UpdateUserInput{
		DisplayName: req.DisplayName,
		Password:    req.Password,
		Role:        parseRole(req.Role),
		Active:      req.Active,
	})
	if err != nil {
		return auth.Present(err)
	}
	return c.JSON(user)
}

// UpdateProfile handles PUT /api/users/profile/me.
func (h *UsersHandler) UpdateProfile(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.users.UpdateProfile(c.UserContext(), actor, service.ProfileInput{
		DisplayName:     req.DisplayName,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		return auth.Present(err)
	}
	return c.JSON(user)
}

// Delete handles DELETE /api/users/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	if err := h.users.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "user deleted"})
}

func actorOf(c *fiber.Ctx) (domain.UserView, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.UserView{}, auth.Present(auth.ErrMissingToken)
	}
	return principal.User, nil
}

func parseRole(raw string) domain.Role {
	return domain.Role(strings.ToLower(strings.TrimSpace(raw)))
}
