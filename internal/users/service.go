package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kasirku/kasirku/internal/auth"
	"github.com/kasirku/kasirku/internal/platform/httpx"
	"github.com/kasirku/kasirku/internal/roles"
	"github.com/kasirku/kasirku/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, filter ListFilter) ([]User, error)
	GetUser(ctx context.Context, id string) (User, error)
	CreateUser(ctx context.Context, in NewUser) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
}

// SessionInvalidator drops cached sessions after a role or status change.
type SessionInvalidator interface {
	InvalidateUser(userID string)
}

// Service handles user business logic.
type Service struct {
	repo        RepositoryPort
	audit       shared.AuditRecorder
	sessions    SessionInvalidator
	logger      *slog.Logger
	minPassword int
}

// NewService builds Service instance. audit and sessions may be nil.
func NewService(repo RepositoryPort, audit shared.AuditRecorder, sessions SessionInvalidator, logger *slog.Logger, minPassword int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if minPassword <= 0 {
		minPassword = 8
	}
	return &Service{repo: repo, audit: audit, sessions: sessions, logger: logger, minPassword: minPassword}
}

// ListUsers returns users matching filter.
func (s *Service) ListUsers(ctx context.Context, filter ListFilter) ([]User, error) {
	return s.repo.ListUsers(ctx, filter)
}

// GetUser returns a single user.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser adds a staff account. The actor may only assign roles ranked at
// or below their own.
func (s *Service) CreateUser(ctx context.Context, actor shared.Principal, in CreateInput) (User, error) {
	role, err := roles.ParseRole(in.Role)
	if err != nil {
		return User{}, fmt.Errorf("%w: role", httpx.ErrValidation)
	}
	if !roles.HasRoleOrHigher(actor.Role, role) {
		return User{}, ErrRoleNotAssignable
	}
	if utf8.RuneCountInString(in.Password) < s.minPassword {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", httpx.ErrValidation, s.minPassword)
	}
	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	user, err := s.repo.CreateUser(ctx, NewUser{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Name:         strings.TrimSpace(in.Name),
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hashed,
		Role:         role,
	})
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actor, "user.create", user.ID, map[string]any{"role": string(role)})
	return user, nil
}

// UpdateUser applies in to the user identified by id. Users ranked above the
// actor cannot be edited and roles above the actor cannot be granted.
func (s *Service) UpdateUser(ctx context.Context, actor shared.Principal, id string, in UpdateInput) (User, error) {
	current, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !roles.HasRoleOrHigher(actor.Role, current.Role) {
		return User{}, ErrRoleNotAssignable
	}
	next := current
	if in.Name != nil {
		next.Name = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		next.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Role != nil {
		role, err := roles.ParseRole(*in.Role)
		if err != nil {
			return User{}, fmt.Errorf("%w: role", httpx.ErrValidation)
		}
		if !roles.HasRoleOrHigher(actor.Role, role) {
			return User{}, ErrRoleNotAssignable
		}
		next.Role = role
	}
	if in.IsActive != nil && *in.IsActive != current.IsActive {
		allowed, err := roles.HasPermission(actor.Role, roles.UserDelete)
		if err != nil {
			return User{}, err
		}
		if !allowed {
			return User{}, ErrStatusChangeForbidden
		}
		if !*in.IsActive && id == actor.UserID {
			return User{}, ErrSelfDeactivation
		}
		next.IsActive = *in.IsActive
	}

	updated, err := s.repo.UpdateUser(ctx, next)
	if err != nil {
		return User{}, err
	}
	if current.Role != updated.Role {
		s.record(ctx, actor, "user.role_change", id, map[string]any{"from": string(current.Role), "to": string(updated.Role)})
	}
	if current.IsActive != updated.IsActive {
		s.record(ctx, actor, "user.status_change", id, map[string]any{"active": updated.IsActive})
	}
	if current.Role != updated.Role || current.IsActive != updated.IsActive {
		s.invalidate(id)
	}
	return updated, nil
}

// DeactivateUser soft-deletes a user by clearing is_active.
func (s *Service) DeactivateUser(ctx context.Context, actor shared.Principal, id string) error {
	if id == actor.UserID {
		return ErrSelfDeactivation
	}
	inactive := false
	_, err := s.UpdateUser(ctx, actor, id, UpdateInput{IsActive: &inactive})
	return err
}

func (s *Service) record(ctx context.Context, actor shared.Principal, action, id string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditEntry{ActorID: actor.UserID, Action: action, Entity: "user", EntityID: id, Meta: meta}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit user change", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) invalidate(id string) {
	if s.sessions != nil {
		s.sessions.InvalidateUser(id)
	}
}
