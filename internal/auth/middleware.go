package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/DevDonal19/imparablesmujeres/internal/domain"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller. It lives in the request
// locals only and is rebuilt from the token on every request.
type Principal struct {
	User   domain.UserView
	Claims *Claims
}

// AuthMiddleware validates bearer tokens and attaches principals.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw, err := BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return Present(err)
	}

	claims, err := m.tokens.Verify(raw)
	if err != nil {
		return Present(err)
	}

	c.Locals(principalKey, &Principal{User: claims.User(), Claims: claims})
	return c.Next()
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", NewError(KindMissingToken, nil)
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", NewError(KindMalformedHeader, nil)
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", NewError(KindMalformedHeader, nil)
	}
	return token, nil
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok && principal != nil
}
