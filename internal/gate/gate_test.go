package gate

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate() *Gate {
	return New(DefaultConfig(), nil)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestDecide(t *testing.T) {
	g := newTestGate()
	cases := []struct {
		name   string
		path   string
		cookie *http.Cookie
		want   Decision
	}{
		{name: "home", path: "/", want: PublicPass},
		{name: "login", path: "/auth/login", want: PublicPass},
		{name: "signup", path: "/auth/signup", want: PublicPass},
		{name: "api root", path: "/api/auth", want: APIPass},
		{name: "api session", path: "/api/auth/session", want: APIPass},
		{name: "api nested", path: "/api/auth/sign-in/email", want: APIPass},
		{name: "api lookalike", path: "/api/authz", want: Unauthenticated},
		{name: "dashboard no cookie", path: "/dashboard", want: Unauthenticated},
		{name: "login trailing slash", path: "/auth/login/", want: Unauthenticated},
		{name: "dashboard cookie", path: "/dashboard", cookie: &http.Cookie{Name: DefaultCookieName, Value: "forged"}, want: AuthenticatedPass},
		{name: "dashboard empty cookie", path: "/dashboard", cookie: &http.Cookie{Name: DefaultCookieName, Value: ""}, want: AuthenticatedPass},
		{name: "dashboard other cookie", path: "/dashboard", cookie: &http.Cookie{Name: "theme", Value: "dark"}, want: Unauthenticated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.cookie != nil {
				req.AddCookie(tc.cookie)
			}
			assert.Equal(t, tc.want, g.Decide(req))
		})
	}
}

func TestMiddlewarePublicRoutesPass(t *testing.T) {
	handler := newTestGate().Middleware(okHandler())
	for _, path := range []string{"/", "/auth/login", "/api/auth/session"} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, res.Code, path)
	}
}

func TestMiddlewareRedirectsWithoutCookie(t *testing.T) {
	handler := newTestGate().Middleware(okHandler())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/dashboard?tab=sales", nil))

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login", res.Header().Get("Location"))
}

func TestMiddlewareRedirectsPostAsSeeOther(t *testing.T) {
	handler := newTestGate().Middleware(okHandler())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/api/sales", nil))

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login", res.Header().Get("Location"))
}

func TestMiddlewarePassesWithAnyCookieValue(t *testing.T) {
	handler := newTestGate().Middleware(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "not-a-real-session"})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestAPIRoutesPassRegardlessOfCookie(t *testing.T) {
	g := newTestGate()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-out", nil)
	assert.Equal(t, APIPass, g.Decide(req))
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "x"})
	assert.Equal(t, APIPass, g.Decide(req))
}

func TestNewCopiesConfig(t *testing.T) {
	cfg := DefaultConfig()
	g := New(cfg, nil)
	cfg.PublicRoutes[0] = "/dashboard"
	assert.Equal(t, Unauthenticated, g.Decide(httptest.NewRequest(http.MethodGet, "/dashboard", nil)))
	assert.Equal(t, PublicPass, g.Decide(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestNewDefaults(t *testing.T) {
	g := New(Config{}, nil)
	assert.Equal(t, DefaultCookieName, g.CookieName())
	assert.Equal(t, "/auth/login", g.LoginPath())
}

func TestDecisionPasses(t *testing.T) {
	assert.True(t, PublicPass.Passes())
	assert.True(t, APIPass.Passes())
	assert.True(t, AuthenticatedPass.Passes())
	assert.False(t, Unauthenticated.Passes())
	assert.False(t, Unchecked.Passes())
	assert.Equal(t, "unauthenticated", Unauthenticated.String())
}
