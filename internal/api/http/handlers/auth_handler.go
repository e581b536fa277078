package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/contacts-api/internal/api/dto"
	"github.com/spec-kit/contacts-api/internal/auth"
	"github.com/spec-kit/contacts-api/internal/domain"
	"github.com/spec-kit/contacts-api/internal/service"
	apperrors "github.com/spec-kit/contacts-api/pkg/util/errorutil"
)

var confirmationMessages = map[domain.ConfirmationStatus]string{
	domain.ConfirmationConfirmed:        "Email confirmed",
	domain.ConfirmationAlreadyConfirmed: "Email already confirmed",
	domain.ConfirmationSent:             "Check your email for confirmation.",
}

// AuthHandler exposes signup, login, token refresh and email confirmation.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	user, err := h.auth.Signup(c.UserContext(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		BaseURL:  baseURL(c),
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(dto.SignupResponse{
		User:   dto.NewUserResponse(user),
		Detail: "User successfully created. Check your email for confirmation.",
	})
}

// Login handles POST /api/auth/login. Accepts JSON or form encoded bodies.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	pair, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTokenResponse(pair))
}

// RefreshToken handles GET /api/auth/refresh_token with the refresh token as bearer.
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	token, err := auth.BearerToken(c)
	if err != nil {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return err
	}

	pair, err := h.auth.Refresh(c.UserContext(), token)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTokenResponse(pair))
}

// ConfirmedEmail handles GET /api/auth/confirmed_email/:token.
func (h *AuthHandler) ConfirmedEmail(c *fiber.Ctx) error {
	status, err := h.auth.ConfirmEmail(c.UserContext(), c.Params("token"))
	if err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: confirmationMessages[status]})
}

// RequestEmail handles POST /api/auth/request_email.
func (h *AuthHandler) RequestEmail(c *fiber.Ctx) error {
	var req dto.RequestEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	status, err := h.auth.RequestConfirmation(c.UserContext(), req.Email, baseURL(c))
	if err != nil {
		return err
	}
	if status == domain.ConfirmationAlreadyConfirmed {
		return c.JSON(dto.MessageResponse{Message: "Your email is already confirmed"})
	}
	return c.JSON(dto.MessageResponse{Message: confirmationMessages[status]})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Not authenticated")
	}
	if err := h.auth.Logout(c.UserContext(), user); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func baseURL(c *fiber.Ctx) string {
	return c.BaseURL() + "/"
}
