package dto

import (
	"time"

	"github.com/spec-kit/contacts-api/internal/domain"
)

// SignupRequest payload for new accounts.
type SignupRequest struct {
	Username string `json:"username" form:"username" validate:"required,min=5,max=25"`
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=5,max=25"`
}

// LoginRequest follows the OAuth2 password form: username carries the email.
type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

// RequestEmailRequest asks for a new confirmation email.
type RequestEmailRequest struct {
	Email string `json:"email" form:"email" validate:"required,email"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Avatar    *string   `json:"avatar"`
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"created_at"`
}

// SignupResponse wraps the created user.
type SignupResponse struct {
	User   UserResponse `json:"user"`
	Detail string       `json:"detail"`
}

// MessageResponse carries a human readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// NewTokenResponse maps a token pair.
func NewTokenResponse(pair domain.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresAt:    pair.AccessExpiresAt,
	}
}

// NewUserResponse maps a user without credentials.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Avatar:    u.Avatar,
		Confirmed: u.Confirmed,
		CreatedAt: u.CreatedAt,
	}
}
