package models

import "time"

// ViewMode selects how a login is presented.
type ViewMode string

const (
	ViewSelf   ViewMode = "self"
	ViewParent ViewMode = "parent"
)

// RequestMeta carries caller details recorded in audit logs.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// LoginRequest holds credentials for a password login.
type LoginRequest struct {
	RegistrationNumber string      `json:"registrationNumber" validate:"required"`
	Password           string      `json:"password" validate:"required"`
	ViewAs             ViewMode    `json:"viewAs,omitempty"`
	Meta               RequestMeta `json:"-"`
}

// RequestOTPRequest asks for a one-time login code.
type RequestOTPRequest struct {
	RegistrationNumber string      `json:"registrationNumber" validate:"required"`
	ViewAs             ViewMode    `json:"viewAs,omitempty"`
	Meta               RequestMeta `json:"-"`
}

// VerifyOTPRequest exchanges a one-time code for tokens.
type VerifyOTPRequest struct {
	RegistrationNumber string      `json:"registrationNumber" validate:"required"`
	OTP                string      `json:"otp" validate:"required"`
	ViewAs             ViewMode    `json:"viewAs,omitempty"`
	Meta               RequestMeta `json:"-"`
}

// ForgotPasswordRequest initiates the reset flow.
type ForgotPasswordRequest struct {
	Email string      `json:"email" validate:"required,email"`
	Meta  RequestMeta `json:"-"`
}

// ResetPasswordRequest completes the reset flow.
type ResetPasswordRequest struct {
	Token       string      `json:"token" validate:"required"`
	NewPassword string      `json:"newPassword" validate:"required"`
	Meta        RequestMeta `json:"-"`
}

// ChangePasswordRequest updates the password of the signed-in user.
type ChangePasswordRequest struct {
	CurrentPassword string      `json:"currentPassword" validate:"required"`
	NewPassword     string      `json:"newPassword" validate:"required"`
	Meta            RequestMeta `json:"-"`
}

// RefreshRequest optionally carries the refresh token in the body.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LoginResponse returns the issued tokens and the presented user.
type LoginResponse struct {
	User             UserSummary `json:"user"`
	AccessToken      string      `json:"accessToken"`
	RefreshToken     string      `json:"refreshToken"`
	ExpiresIn        int64       `json:"expiresIn"`
	RefreshExpiresIn int64       `json:"refreshExpiresIn"`
	IssuedAt         time.Time   `json:"issuedAt"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}
