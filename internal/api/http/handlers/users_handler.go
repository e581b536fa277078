package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/contacts-api/internal/api/dto"
	"github.com/spec-kit/contacts-api/internal/auth"
	apperrors "github.com/spec-kit/contacts-api/pkg/util/errorutil"
)

// UsersHandler exposes account endpoints for the authenticated caller.
type UsersHandler struct{}

// NewUsersHandler constructs handler.
func NewUsersHandler() *UsersHandler {
	return &UsersHandler{}
}

// Me handles GET /api/users/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Not authenticated")
	}
	return c.JSON(dto.NewUserResponse(user))
}
