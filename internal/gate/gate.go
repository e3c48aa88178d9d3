// Package gate implements the edge check that runs before routing: it lets
// public pages and auth endpoints through and redirects requests that carry
// no session cookie to the login page.
//
// The gate only checks cookie presence. It is not a security boundary;
// handlers behind it must verify the session through auth.Resolver.
package gate

import (
	"log/slog"
	"net/http"
	"strings"
)

// Decision is the terminal state reached for one request.
type Decision int

const (
	// Unchecked is the zero value before any rule ran.
	Unchecked Decision = iota
	// PublicPass marks an exact public route match.
	PublicPass
	// APIPass marks a request under a public API prefix.
	APIPass
	// Unauthenticated marks a protected route without a session cookie.
	Unauthenticated
	// AuthenticatedPass marks a protected route carrying a session cookie.
	AuthenticatedPass
)

func (d Decision) String() string {
	switch d {
	case PublicPass:
		return "public"
	case APIPass:
		return "api"
	case Unauthenticated:
		return "unauthenticated"
	case AuthenticatedPass:
		return "authenticated"
	default:
		return "unchecked"
	}
}

// Passes reports whether the request proceeds to the handler.
func (d Decision) Passes() bool {
	return d == PublicPass || d == APIPass || d == AuthenticatedPass
}

// Config lists the routes that bypass the cookie check.
type Config struct {
	PublicRoutes   []string
	PublicPrefixes []string
	CookieName     string
	LoginPath      string
}

// DefaultCookieName is the session cookie written by the auth handlers.
const DefaultCookieName = "kasirku.session_token"

// DefaultConfig returns the routes used by the POS frontend.
func DefaultConfig() Config {
	return Config{
		PublicRoutes:   []string{"/", "/auth/login", "/auth/signup"},
		PublicPrefixes: []string{"/api/auth"},
		CookieName:     DefaultCookieName,
		LoginPath:      "/auth/login",
	}
}

// Gate evaluates requests against an immutable Config.
type Gate struct {
	routes     map[string]struct{}
	prefixes   []string
	cookieName string
	loginPath  string
	logger     *slog.Logger
}

// New builds a Gate. The config slices are copied.
func New(cfg Config, logger *slog.Logger) *Gate {
	routes := make(map[string]struct{}, len(cfg.PublicRoutes))
	for _, route := range cfg.PublicRoutes {
		routes[route] = struct{}{}
	}
	prefixes := make([]string, 0, len(cfg.PublicPrefixes))
	for _, prefix := range cfg.PublicPrefixes {
		prefix = strings.TrimRight(prefix, "/")
		if prefix == "" {
			continue
		}
		prefixes = append(prefixes, prefix)
	}
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = "/auth/login"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		routes:     routes,
		prefixes:   prefixes,
		cookieName: cookieName,
		loginPath:  loginPath,
		logger:     logger,
	}
}

// CookieName returns the session cookie the gate looks for.
func (g *Gate) CookieName() string {
	return g.cookieName
}

// LoginPath returns the redirect target for unauthenticated requests.
func (g *Gate) LoginPath() string {
	return g.loginPath
}

// Decide runs the rules in order: public route, public prefix, cookie.
func (g *Gate) Decide(r *http.Request) Decision {
	path := r.URL.Path
	if _, ok := g.routes[path]; ok {
		return PublicPass
	}
	for _, prefix := range g.prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return APIPass
		}
	}
	if !g.IsLikelySessionPresent(r) {
		return Unauthenticated
	}
	return AuthenticatedPass
}

// IsLikelySessionPresent reports whether the session cookie exists. The
// value is not inspected; an empty value still counts as present.
func (g *Gate) IsLikelySessionPresent(r *http.Request) bool {
	_, err := r.Cookie(g.cookieName)
	return err == nil
}

// Middleware redirects Unauthenticated requests to the login path and
// passes everything else through unmodified.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := g.Decide(r)
		if decision == Unauthenticated {
			g.logger.Debug("gate redirect", slog.String("path", r.URL.Path))
			http.Redirect(w, r, g.loginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
