package domain

import "time"

// TokenClass differentiates access, refresh and email confirmation tokens.
type TokenClass string

const (
	TokenClassAccess       TokenClass = "access_token"
	TokenClassRefresh      TokenClass = "refresh_token"
	TokenClassEmailConfirm TokenClass = "email_token"
)

// Valid reports whether c is a known token class.
func (c TokenClass) Valid() bool {
	switch c {
	case TokenClassAccess, TokenClassRefresh, TokenClassEmailConfirm:
		return true
	}
	return false
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	TokenType       string
	AccessExpiresAt time.Time
}

// ConfirmationStatus is the outcome of confirm and re-confirm requests.
type ConfirmationStatus string

const (
	ConfirmationConfirmed        ConfirmationStatus = "confirmed"
	ConfirmationAlreadyConfirmed ConfirmationStatus = "already_confirmed"
	ConfirmationSent             ConfirmationStatus = "sent"
)

// ConfirmationMessage is handed to the email collaborator.
type ConfirmationMessage struct {
	ID       string
	Email    string
	Username string
	Token    string
	BaseURL  string
	QueuedAt time.Time
}
