package dto

import (
	"time"

	"github.com/quillnotes/auth-service/internal/domain"
)

// LoginRequest represents a username/password login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignupRequest represents a registration request
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,min=3,max=30"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required,min=8"`
}

// OnboardingRequest finishes signup for a stashed provider profile
type OnboardingRequest struct {
	Token    string `json:"token" binding:"required"`
	Username string `json:"username" binding:"omitempty,min=3,max=30"`
	Name     string `json:"name"`
}

// ForgotPasswordRequest asks for a reset code by email or username
type ForgotPasswordRequest struct {
	Target string `json:"target" binding:"required"`
}

// VerifyRequest redeems a one-time code
type VerifyRequest struct {
	Target string `json:"target" binding:"required"`
	Code   string `json:"code" binding:"required"`
}

// ResetPasswordRequest sets a new password after a confirmed reset
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// ChangeEmailRequest starts an email change for the current user
type ChangeEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ConfirmEmailChangeRequest applies a pending email change
type ConfirmEmailChangeRequest struct {
	Token string `json:"token" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// EmailLoginRequest asks for a login code by email
type EmailLoginRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// EmailLoginVerifyRequest redeems an email login code
type EmailLoginVerifyRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

// UserResponse represents a user in responses
type UserResponse struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Username  string  `json:"username"`
	Name      *string `json:"name"`
	CreatedAt string  `json:"created_at"`
}

// NewUserResponse maps a domain user into a response
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		Name:      user.Name,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}

// ConnectionResponse represents a provider connection in responses
type ConnectionResponse struct {
	ID           string `json:"id"`
	ProviderName string `json:"provider_name"`
	CreatedAt    string `json:"created_at"`
}

// NewConnectionResponse maps a domain connection into a response
func NewConnectionResponse(conn *domain.Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:           conn.ID,
		ProviderName: conn.ProviderName,
		CreatedAt:    conn.CreatedAt.Format(time.RFC3339),
	}
}

// TokenResponse carries a one-shot flow token forward
type TokenResponse struct {
	Token string `json:"token"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}
