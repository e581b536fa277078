package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/contacts-api/internal/domain"
	apperrors "github.com/spec-kit/contacts-api/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Authenticator resolves an access token to the calling user.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*domain.User, error)
}

// AuthMiddleware validates bearer access tokens and loads the caller.
type AuthMiddleware struct {
	authn Authenticator
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(authn Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authn: authn}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, err := BearerToken(c)
	if err != nil {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return err
	}

	user, err := m.authn.Authenticate(c.UserContext(), token)
	if err != nil {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return err
	}

	SetUser(c, user)
	return c.Next()
}

// SetUser stores the authenticated user on the request context.
func SetUser(c *fiber.Ctx, user *domain.User) {
	c.Locals(principalKey, user)
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return "", apperrors.NewUnauthorized("Not authenticated")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.NewUnauthorized("Not authenticated")
	}
	return strings.TrimSpace(parts[1]), nil
}

// UserFromContext retrieves the authenticated user.
func UserFromContext(c *fiber.Ctx) (*domain.User, bool) {
	user, ok := c.Locals(principalKey).(*domain.User)
	return user, ok && user != nil
}
