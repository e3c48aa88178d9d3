package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasirku/kasirku/internal/auth"
)

func newAuthRouter(t *testing.T, repo *stubRepo) http.Handler {
	t.Helper()
	svc, _, _ := newService(t, repo, time.Minute)
	handler := auth.NewHandler(nil, svc)
	r := chi.NewRouter()
	r.Route("/api/auth", handler.MountRoutes)
	r.Route("/auth", handler.MountPages)
	return r
}

func postJSON(router http.Handler, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func sessionCookie(t *testing.T, res *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range res.Result().Cookies() {
		if c.Name == testCookie {
			return c
		}
	}
	t.Fatalf("session cookie not set")
	return nil
}

func TestSignUpEndpoint(t *testing.T) {
	router := newAuthRouter(t, newStubRepo())

	res := postJSON(router, "/api/auth/sign-up/email", `{"name":"Budi","email":"budi@toko.id","password":"password123"}`)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, "cashier", body["role"])
	assert.NotContains(t, res.Body.String(), "password")

	res = postJSON(router, "/api/auth/sign-up/email", `{"name":"Budi","email":"budi@toko.id","password":"password123"}`)
	assert.Equal(t, http.StatusConflict, res.Code)

	res = postJSON(router, "/api/auth/sign-up/email", `{"name":"Budi","email":"budi2@toko.id","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = postJSON(router, "/api/auth/sign-up/email", `{"name":"Budi","email":"not-an-email","password":"password123"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), `"email":"email"`)
}

func TestSignInSessionSignOutFlow(t *testing.T) {
	repo := newStubRepo()
	repo.addUser(t, "admin@toko.id", "password123", "admin", true)
	router := newAuthRouter(t, repo)

	res := postJSON(router, "/api/auth/sign-in/email", `{"email":"admin@toko.id","password":"password123"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	cookie := sessionCookie(t, res)
	assert.True(t, cookie.HttpOnly)

	var signIn struct {
		User        auth.SessionUser `json:"user"`
		Permissions []string         `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &signIn))
	assert.Equal(t, "admin", signIn.User.Role)
	assert.Contains(t, signIn.Permissions, "report:export")
	assert.NotContains(t, signIn.Permissions, "settings:update")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(cookie)
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "admin@toko.id")

	res = postJSON(router, "/api/auth/sign-out", `{}`, cookie)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, -1, sessionCookie(t, res).MaxAge)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(cookie)
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestSignInWrongPassword(t *testing.T) {
	repo := newStubRepo()
	repo.addUser(t, "admin@toko.id", "password123", "admin", true)
	router := newAuthRouter(t, repo)

	res := postJSON(router, "/api/auth/sign-in/email", `{"email":"admin@toko.id","password":"nope-nope"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Empty(t, res.Result().Cookies())
}

func TestSessionEndpointForgedCookie(t *testing.T) {
	router := newAuthRouter(t, newStubRepo())

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: "forged"})
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginPageDescriptor(t *testing.T) {
	router := newAuthRouter(t, newStubRepo())

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "/api/auth/sign-in/email")
	assert.NotContains(t, res.Body.String(), "redirect")

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/auth/signup", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"page":"signup"`)
}
