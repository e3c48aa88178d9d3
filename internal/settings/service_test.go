package settings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasirku/kasirku/internal/auth"
	"github.com/kasirku/kasirku/internal/platform/httpx"
	"github.com/kasirku/kasirku/internal/rbac"
	"github.com/kasirku/kasirku/internal/shared"
)

// ============================================================================
// MOCKS
// ============================================================================

type mockRepository struct {
	items map[string]Setting
}

func newMockRepository(seed ...Setting) *mockRepository {
	m := &mockRepository{items: make(map[string]Setting)}
	for _, s := range seed {
		m.items[s.Key] = s
	}
	return m
}

func (m *mockRepository) List(ctx context.Context, category string, publicOnly bool) ([]Setting, error) {
	var out []Setting
	for _, s := range m.items {
		if category != "" && s.Category != category {
			continue
		}
		if publicOnly && !s.IsPublic {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *mockRepository) Get(ctx context.Context, key string) (Setting, error) {
	s, ok := m.items[key]
	if !ok {
		return Setting{}, shared.ErrNotFound
	}
	return s, nil
}

func (m *mockRepository) Upsert(ctx context.Context, s Setting) (Setting, error) {
	m.items[s.Key] = s
	return s, nil
}

func (m *mockRepository) Delete(ctx context.Context, key string) error {
	if _, ok := m.items[key]; !ok {
		return shared.ErrNotFound
	}
	delete(m.items, key)
	return nil
}

type auditSpy struct {
	entries []shared.AuditEntry
}

func (a *auditSpy) Record(ctx context.Context, entry shared.AuditEntry) error {
	a.entries = append(a.entries, entry)
	return nil
}

func seeded() *mockRepository {
	return newMockRepository(
		Setting{Key: "store.name", Value: json.RawMessage(`"Toko Makmur"`), Category: "business", IsPublic: true},
		Setting{Key: "tax.rate", Value: json.RawMessage(`11`), Category: "tax"},
	)
}

// ============================================================================
// SERVICE
// ============================================================================

func TestPutStampsActor(t *testing.T) {
	repo := seeded()
	audit := &auditSpy{}
	svc := NewService(repo, audit, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC) }

	s, err := svc.Put(context.Background(), shared.Principal{UserID: "owner-1"}, "receipt.footer", PutInput{
		Value:    json.RawMessage(`{ "text" : "Terima kasih" }`),
		Category: "receipt",
	})
	require.NoError(t, err)
	assert.Equal(t, "owner-1", s.UpdatedBy)
	assert.JSONEq(t, `{"text":"Terima kasih"}`, string(s.Value))
	assert.Equal(t, `{"text":"Terima kasih"}`, string(repo.items["receipt.footer"].Value))
	assert.Equal(t, svc.now(), s.UpdatedAt)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, "setting.update", audit.entries[0].Action)
	assert.Equal(t, "receipt.footer", audit.entries[0].EntityID)
}

func TestPutValidation(t *testing.T) {
	svc := NewService(seeded(), nil, nil)
	actor := shared.Principal{UserID: "owner-1"}

	_, err := svc.Put(context.Background(), actor, "Bad Key", PutInput{Value: json.RawMessage(`1`), Category: "x"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Put(context.Background(), actor, "tax.rate", PutInput{Value: json.RawMessage(`{oops`), Category: "tax"})
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestListAndDelete(t *testing.T) {
	repo := seeded()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	tax, err := svc.List(ctx, " TAX ")
	require.NoError(t, err)
	require.Len(t, tax, 1)
	assert.Equal(t, "tax.rate", tax[0].Key)

	public, err := svc.Public(ctx)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "store.name", public[0].Key)

	require.NoError(t, svc.Delete(ctx, shared.Principal{UserID: "owner-1"}, "tax.rate"))
	assert.ErrorIs(t, svc.Delete(ctx, shared.Principal{UserID: "owner-1"}, "tax.rate"), shared.ErrNotFound)
}

// ============================================================================
// HANDLER
// ============================================================================

type roleResolver struct{}

func (roleResolver) ResolveSession(r *http.Request) (*auth.Session, error) {
	c, err := r.Cookie("sid")
	if err != nil {
		return nil, auth.ErrNoSession
	}
	return &auth.Session{UserID: c.Value + "-1", User: auth.SessionUser{Role: c.Value}}, nil
}

func TestHandlerPermissions(t *testing.T) {
	repo := seeded()
	router := chi.NewRouter()
	router.Route("/api/settings", NewHandler(nil, NewService(repo, nil, nil), rbac.Middleware{Resolver: roleResolver{}}).MountRoutes)

	call := func(method, path, role, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if role != "" {
			req.AddCookie(&http.Cookie{Name: "sid", Value: role})
		}
		res := httptest.NewRecorder()
		router.ServeHTTP(res, req)
		return res
	}

	assert.Equal(t, http.StatusForbidden, call(http.MethodGet, "/api/settings/", "admin", "").Code)
	assert.Equal(t, http.StatusForbidden, call(http.MethodPut, "/api/settings/tax.rate", "cashier", `{"value":12,"category":"tax"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, call(http.MethodGet, "/api/settings/public", "", "").Code)

	res := call(http.MethodGet, "/api/settings/public", "cashier", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"store.name":"Toko Makmur"}`, res.Body.String())

	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/api/settings/", "owner", "").Code)
	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/api/settings/tax.rate", "owner", "").Code)
	assert.Equal(t, http.StatusNotFound, call(http.MethodGet, "/api/settings/missing", "owner", "").Code)

	res = call(http.MethodPut, "/api/settings/tax.rate", "owner", `{"value":12,"category":"tax"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, "owner-1", repo.items["tax.rate"].UpdatedBy)
	assert.Equal(t, http.StatusBadRequest, call(http.MethodPut, "/api/settings/tax.rate", "owner", `{"category":"tax"}`).Code)

	assert.Equal(t, http.StatusNoContent, call(http.MethodDelete, "/api/settings/tax.rate", "owner", "").Code)
}
