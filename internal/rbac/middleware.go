package rbac

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kasirku/kasirku/internal/auth"
	"github.com/kasirku/kasirku/internal/platform/httpx"
	"github.com/kasirku/kasirku/internal/roles"
	"github.com/kasirku/kasirku/internal/shared"
)

// Middleware wires role checks for HTTP handlers. Every check verifies the
// session through Resolver; the edge gate only guarantees a cookie exists.
type Middleware struct {
	Resolver auth.Resolver
	Logger   *slog.Logger
}

// RequireSession rejects requests without a verified session and stores the
// principal in the request context.
func (m Middleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, ok := m.authenticate(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission allows the request only when the actor's role is granted
// perm. An unknown permission key is a wiring bug and yields 500.
func (m Middleware) RequirePermission(perm roles.Permission) func(http.Handler) http.Handler {
	return m.RequireAny(perm)
}

// RequireAny ensures the current user holds at least one of perms.
func (m Middleware) RequireAny(perms ...roles.Permission) func(http.Handler) http.Handler {
	return m.require(perms, false)
}

// RequireAll ensures the current user holds every permission in perms.
func (m Middleware) RequireAll(perms ...roles.Permission) func(http.Handler) http.Handler {
	return m.require(perms, true)
}

// RequireRole admits roles ranked at or above minimum.
func (m Middleware) RequireRole(minimum roles.Role) func(http.Handler) http.Handler {
	return m.requireRole(func(role roles.Role) bool {
		return roles.HasRoleOrHigher(role, minimum)
	})
}

// RequireAnyRole admits exactly the listed roles.
func (m Middleware) RequireAnyRole(allowed ...roles.Role) func(http.Handler) http.Handler {
	list := append([]roles.Role(nil), allowed...)
	return m.requireRole(func(role roles.Role) bool {
		return roles.CanAccess(role, list)
	})
}

func (m Middleware) require(perms []roles.Permission, all bool) func(http.Handler) http.Handler {
	required := append([]roles.Permission(nil), perms...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, ok := m.authenticate(w, r)
			if !ok {
				return
			}
			principal, _ := shared.PrincipalFromContext(r.Context())
			allowed, err := evaluate(principal.Role, required, all)
			if err != nil {
				var cfgErr *roles.ConfigurationError
				if errors.As(err, &cfgErr) {
					m.logger().Error("rbac misconfigured permission", slog.String("permission", string(cfgErr.Permission)), slog.String("path", r.URL.Path))
				} else {
					m.logger().Error("rbac check", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !allowed {
				m.forbid(w, r, principal)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) requireRole(match func(roles.Role) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, ok := m.authenticate(w, r)
			if !ok {
				return
			}
			principal, _ := shared.PrincipalFromContext(r.Context())
			if !match(principal.Role) {
				m.forbid(w, r, principal)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// evaluate validates every key before looking at the role so a bad key
// surfaces regardless of who is asking.
func evaluate(role roles.Role, perms []roles.Permission, all bool) (bool, error) {
	if len(perms) == 0 {
		return true, nil
	}
	granted := 0
	for _, perm := range perms {
		ok, err := roles.HasPermission(role, perm)
		if err != nil {
			return false, err
		}
		if ok {
			granted++
		}
	}
	if all {
		return granted == len(perms), nil
	}
	return granted > 0, nil
}

// authenticate returns r carrying a Principal. A principal already placed by
// an outer middleware is reused.
func (m Middleware) authenticate(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	if _, ok := shared.PrincipalFromContext(r.Context()); ok {
		return r, true
	}
	sess, err := m.Resolver.ResolveSession(r)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNoSession), errors.Is(err, auth.ErrSessionExpired), errors.Is(err, auth.ErrInactiveUser):
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "session required")
		default:
			m.logger().Error("rbac resolve session", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return r, false
	}
	if sess.Refreshed {
		if refresher, ok := m.Resolver.(auth.CookieRefresher); ok {
			refresher.WriteSessionCookie(w, sess)
		}
	}
	role, err := auth.RoleFromSession(sess)
	if err != nil {
		// Fail closed: a session without a recognised role gets nothing.
		m.logger().Warn("rbac session without role", slog.String("user_id", sess.UserID), slog.String("role", sess.User.Role))
		httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.UserSafeMessage(shared.ErrForbidden))
		return r, false
	}
	principal := shared.Principal{
		UserID:    sess.UserID,
		Email:     sess.User.Email,
		Name:      sess.User.Name,
		Role:      role,
		SessionID: sess.ID,
	}
	return r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)), true
}

func (m Middleware) forbid(w http.ResponseWriter, r *http.Request, p shared.Principal) {
	m.logger().Debug("rbac denied", slog.String("user_id", p.UserID), slog.String("role", string(p.Role)), slog.String("path", r.URL.Path))
	httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.UserSafeMessage(shared.ErrForbidden))
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
