package auth

import (
	"errors"
	"net/http"

	"github.com/kasirku/kasirku/internal/roles"
)

var (
	// ErrNoSession indicates a missing, unknown or forged session token.
	ErrNoSession = errors.New("auth: no session")
	// ErrSessionExpired indicates the session is past its expiry.
	ErrSessionExpired = errors.New("auth: session expired")
	// ErrInactiveUser indicates the session belongs to a deactivated user.
	ErrInactiveUser = errors.New("auth: user inactive")
	// ErrWeakPassword indicates a password below the minimum length.
	ErrWeakPassword = errors.New("auth: password too short")
)

// Resolver verifies the session behind a request. Unlike the edge gate it
// may perform I/O and rejects forged or expired cookies.
type Resolver interface {
	ResolveSession(r *http.Request) (*Session, error)
}

// CookieRefresher rewrites the session cookie after a sliding refresh.
type CookieRefresher interface {
	WriteSessionCookie(w http.ResponseWriter, sess *Session)
}

// RoleFromSession extracts the user's role from a verified session. A nil
// session or a missing/unknown role yields roles.ErrNoRole; there is no
// default role.
func RoleFromSession(sess *Session) (roles.Role, error) {
	if sess == nil {
		return "", roles.ErrNoRole
	}
	return roles.ParseRole(sess.User.Role)
}
