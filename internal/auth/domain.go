package auth

import (
	"errors"
	"time"

	"github.com/agristock/agristock/internal/shared"
)

// User represents a stored account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// Viewer returns the identity stored in the session after sign-in.
func (u *User) Viewer() shared.Viewer {
	return shared.Viewer{UserID: u.ID, Username: u.Username, Role: u.Role}
}

// NewUser carries a validated sign-up.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Role         string
}

// RegisterInput is the raw sign-up form.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// ErrResetTokenInvalid is returned for unknown, used or expired reset tokens.
var ErrResetTokenInvalid = errors.New("auth: reset token invalid or expired")
