package domain

import "time"

// User is the stored identity behind an account. PasswordHash and RefreshToken
// never leave the service layer.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Avatar       *string
	Confirmed    bool
	RefreshToken *string
	CreatedAt    time.Time
}

// HasRefreshToken reports whether a refresh token is currently active.
func (u *User) HasRefreshToken() bool {
	return u.RefreshToken != nil && *u.RefreshToken != ""
}
