package users

import (
	"fmt"
	"time"

	"github.com/kasirku/kasirku/internal/platform/httpx"
	"github.com/kasirku/kasirku/internal/roles"
)

var (
	// ErrRoleNotAssignable is returned when the actor tries to grant or edit a
	// role ranked above their own.
	ErrRoleNotAssignable = fmt.Errorf("users: role outranks actor: %w", httpx.ErrForbidden)
	// ErrSelfDeactivation blocks users from deactivating their own account.
	ErrSelfDeactivation = fmt.Errorf("users: cannot deactivate own account: %w", httpx.ErrConflict)
	// ErrStatusChangeForbidden is returned when an actor without user:delete
	// tries to activate or deactivate an account.
	ErrStatusChangeForbidden = fmt.Errorf("users: account status change requires user:delete: %w", httpx.ErrForbidden)
)

// User represents a user account for management.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone,omitempty"`
	Role      roles.Role `json:"role"`
	IsActive  bool       `json:"isActive"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// ListFilter narrows ListUsers.
type ListFilter struct {
	Search          string
	Role            roles.Role
	IncludeInactive bool
	Limit           int
	Offset          int
}

// CreateInput carries fields for a staff account created by an owner/admin.
type CreateInput struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
	Role     string `json:"role" validate:"required,oneof=owner admin cashier"`
}

// UpdateInput carries optional profile changes. Nil fields are left alone.
// Changing IsActive needs user:delete on top of user:update.
type UpdateInput struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=255"`
	Phone    *string `json:"phone" validate:"omitempty,max=20"`
	Role     *string `json:"role" validate:"omitempty,oneof=owner admin cashier"`
	IsActive *bool   `json:"isActive"`
}

// NewUser is the persisted shape of a created account.
type NewUser struct {
	ID           string
	Email        string
	Name         string
	Phone        string
	PasswordHash string
	Role         roles.Role
}
