package auth

import (
	"time"
)

// User represents an account that can sign in.
type User struct {
	ID           string
	Email        string
	Name         string
	Phone        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SessionUser is the user shape embedded in a verified session.
type SessionUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	IsActive bool   `json:"isActive"`
}

// Session is a verified login: the server-side record plus its user.
type Session struct {
	ID        string      `json:"id"`
	Token     string      `json:"-"`
	UserID    string      `json:"userId"`
	IPAddress string      `json:"ipAddress,omitempty"`
	UserAgent string      `json:"userAgent,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      SessionUser `json:"user"`

	// Refreshed is set when resolution extended the sliding expiry and the
	// cookie should be rewritten.
	Refreshed bool `json:"-"`
}

// SignUpInput carries self-signup fields.
type SignUpInput struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
}

// SignInInput carries email/password credentials.
type SignInInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
