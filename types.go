package marketauth

import (
	"time"

	"github.com/MrEthical07/marketauth/account"
)

// LoginRequest carries the credentials for one login attempt. Origin and
// ClientIdentity fall back to WithClientIP / WithUserAgent on the context.
type LoginRequest struct {
	Email          string `json:"email" validate:"required,email,max=254"`
	Password       string `json:"password" validate:"required,max=1024"`
	Origin         string `json:"-"`
	ClientIdentity string `json:"-"`
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string          `json:"token"`
	SessionID string          `json:"session_id"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   account.Summary `json:"account"`
}

// ForgotPasswordResult is identical for every outcome so callers cannot
// learn whether the email belongs to an account.
type ForgotPasswordResult struct {
	Message       string `json:"message"`
	ExpiryMinutes int    `json:"expiry_minutes"`
}

const forgotPasswordMessage = "If an account exists for this email, a password reset link has been sent."

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Token       string `json:"token" validate:"required,max=256"`
	NewPassword string `json:"new_password" validate:"required,max=1024"`
}

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,max=1024"`
	DisplayName string `json:"display_name" validate:"max=200"`
}

type ChangePasswordRequest struct {
	AccountID   string `json:"-" validate:"required"`
	OldPassword string `json:"old_password" validate:"required,max=1024"`
	NewPassword string `json:"new_password" validate:"required,max=1024"`
}

type forgotPasswordInput struct {
	Email string `validate:"required,email,max=254"`
}
