package auth

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/DevDonal19/imparablesmujeres/internal/domain"
)

// RequireRole admits principals whose role satisfies required in the role
// hierarchy. A request without a principal is forbidden; mount the guard
// behind AuthMiddleware.Handle so unauthenticated callers get 401 first.
func RequireRole(required domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return Present(NewError(KindForbidden, fmt.Errorf("no principal for %s route", required)))
		}
		if !principal.User.Role.Satisfies(required) {
			return Present(NewError(KindForbidden, fmt.Errorf("role %q does not satisfy %q", principal.User.Role, required)))
		}
		return c.Next()
	}
}

// RequireEditor admits editors and admins.
func RequireEditor() fiber.Handler {
	return RequireRole(domain.RoleEditor)
}

// RequireAdmin admits admins only.
func RequireAdmin() fiber.Handler {
	return RequireRole(domain.RoleAdmin)
}

// RequireSelfOrRole admits the principal named by the route parameter param,
// and anyone whose role satisfies required.
func RequireSelfOrRole(param string, required domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return Present(NewError(KindForbidden, fmt.Errorf("no principal for %s route", required)))
		}
		if target := c.Params(param); target != "" && principal.User.ID == target {
			return c.Next()
		}
		if !principal.User.Role.Satisfies(required) {
			return Present(NewError(KindForbidden, fmt.Errorf("user %s is neither %q nor %q", principal.User.ID, c.Params(param), required)))
		}
		return c.Next()
	}
}
