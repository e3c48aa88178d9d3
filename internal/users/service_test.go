package users

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasirku/kasirku/internal/platform/httpx"
	"github.com/kasirku/kasirku/internal/roles"
	"github.com/kasirku/kasirku/internal/shared"
)

// ============================================================================
// MOCKS
// ============================================================================

type mockRepository struct {
	mu    sync.Mutex
	users map[string]User
}

func newMockRepository(seed ...User) *mockRepository {
	m := &mockRepository{users: make(map[string]User)}
	for _, u := range seed {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockRepository) ListUsers(ctx context.Context, filter ListFilter) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []User
	for _, u := range m.users {
		if !filter.IncludeInactive && !u.IsActive {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (m *mockRepository) GetUser(ctx context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (m *mockRepository) CreateUser(ctx context.Context, in NewUser) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == in.Email {
			return User{}, shared.ErrEmailTaken
		}
	}
	u := User{ID: in.ID, Email: in.Email, Name: in.Name, Phone: in.Phone, Role: in.Role, IsActive: true, CreatedAt: time.Now()}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockRepository) UpdateUser(ctx context.Context, user User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return User{}, shared.ErrNotFound
	}
	m.users[user.ID] = user
	return user, nil
}

type auditSpy struct {
	entries []shared.AuditEntry
}

func (a *auditSpy) Record(ctx context.Context, entry shared.AuditEntry) error {
	a.entries = append(a.entries, entry)
	return nil
}

type invalidatorSpy struct {
	ids []string
}

func (i *invalidatorSpy) InvalidateUser(id string) {
	i.ids = append(i.ids, id)
}

// ============================================================================
// FIXTURES
// ============================================================================

var (
	ownerActor   = shared.Principal{UserID: "owner-1", Role: roles.Owner}
	adminActor   = shared.Principal{UserID: "admin-1", Role: roles.Admin}
	cashierActor = shared.Principal{UserID: "cashier-1", Role: roles.Cashier}
)

func seededService() (*Service, *mockRepository, *auditSpy, *invalidatorSpy) {
	repo := newMockRepository(
		User{ID: "owner-1", Email: "owner@toko.id", Name: "Owner", Role: roles.Owner, IsActive: true},
		User{ID: "admin-1", Email: "admin@toko.id", Name: "Admin", Role: roles.Admin, IsActive: true},
		User{ID: "cashier-1", Email: "kasir@toko.id", Name: "Kasir", Role: roles.Cashier, IsActive: true},
	)
	audit := &auditSpy{}
	inv := &invalidatorSpy{}
	return NewService(repo, audit, inv, nil, 8), repo, audit, inv
}

// ============================================================================
// TESTS
// ============================================================================

func TestCreateUserRankRule(t *testing.T) {
	svc, _, audit, _ := seededService()
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, adminActor, CreateInput{Name: "Boss", Email: "boss@toko.id", Password: "password123", Role: "owner"})
	assert.ErrorIs(t, err, ErrRoleNotAssignable)
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	user, err := svc.CreateUser(ctx, adminActor, CreateInput{Name: "Kasir Dua", Email: "Kasir2@Toko.id", Password: "password123", Role: "cashier"})
	require.NoError(t, err)
	assert.Equal(t, roles.Cashier, user.Role)
	assert.Equal(t, "kasir2@toko.id", user.Email)
	assert.True(t, user.IsActive)

	user, err = svc.CreateUser(ctx, ownerActor, CreateInput{Name: "Owner Dua", Email: "owner2@toko.id", Password: "password123", Role: "owner"})
	require.NoError(t, err)
	assert.Equal(t, roles.Owner, user.Role)

	require.Len(t, audit.entries, 2)
	assert.Equal(t, "user.create", audit.entries[0].Action)
}

func TestCreateUserValidation(t *testing.T) {
	svc, _, _, _ := seededService()
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, ownerActor, CreateInput{Name: "X", Email: "x@toko.id", Password: "short", Role: "cashier"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreateUser(ctx, ownerActor, CreateInput{Name: "X", Email: "x@toko.id", Password: "password123", Role: "manager"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreateUser(ctx, ownerActor, CreateInput{Name: "X", Email: "kasir@toko.id", Password: "password123", Role: "cashier"})
	assert.ErrorIs(t, err, shared.ErrEmailTaken)
}

func TestUpdateUserRoleChange(t *testing.T) {
	svc, _, audit, inv := seededService()
	ctx := context.Background()

	promoted := "admin"
	user, err := svc.UpdateUser(ctx, ownerActor, "cashier-1", UpdateInput{Role: &promoted})
	require.NoError(t, err)
	assert.Equal(t, roles.Admin, user.Role)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, "user.role_change", audit.entries[0].Action)
	assert.Equal(t, "cashier", audit.entries[0].Meta["from"])
	assert.Equal(t, []string{"cashier-1"}, inv.ids)
}

func TestUpdateUserCannotOutrankActor(t *testing.T) {
	svc, _, _, _ := seededService()
	ctx := context.Background()

	name := "Renamed"
	_, err := svc.UpdateUser(ctx, adminActor, "owner-1", UpdateInput{Name: &name})
	assert.ErrorIs(t, err, ErrRoleNotAssignable)

	owner := "owner"
	_, err = svc.UpdateUser(ctx, adminActor, "cashier-1", UpdateInput{Role: &owner})
	assert.ErrorIs(t, err, ErrRoleNotAssignable)
}

func TestUpdateUserProfileOnlySkipsAudit(t *testing.T) {
	svc, _, audit, inv := seededService()

	name := " Kasir Baru "
	user, err := svc.UpdateUser(context.Background(), adminActor, "cashier-1", UpdateInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Kasir Baru", user.Name)
	assert.Empty(t, audit.entries)
	assert.Empty(t, inv.ids)
}

func TestDeactivateUser(t *testing.T) {
	svc, repo, audit, inv := seededService()
	ctx := context.Background()

	err := svc.DeactivateUser(ctx, ownerActor, "owner-1")
	assert.ErrorIs(t, err, ErrSelfDeactivation)

	require.NoError(t, svc.DeactivateUser(ctx, ownerActor, "admin-1"))
	assert.False(t, repo.users["admin-1"].IsActive)
	assert.Equal(t, []string{"admin-1"}, inv.ids)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, "user.status_change", audit.entries[0].Action)

	err = svc.DeactivateUser(ctx, ownerActor, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	listed, err := svc.ListUsers(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestCashierCannotManageAdmins(t *testing.T) {
	svc, _, _, _ := seededService()
	active := false
	_, err := svc.UpdateUser(context.Background(), cashierActor, "admin-1", UpdateInput{IsActive: &active})
	assert.ErrorIs(t, err, ErrRoleNotAssignable)
}

func TestStatusChangeRequiresDeletePermission(t *testing.T) {
	svc, repo, audit, _ := seededService()
	ctx := context.Background()
	inactive := false

	_, err := svc.UpdateUser(ctx, adminActor, "cashier-1", UpdateInput{IsActive: &inactive})
	assert.ErrorIs(t, err, ErrStatusChangeForbidden)
	assert.ErrorIs(t, err, httpx.ErrForbidden)
	assert.True(t, repo.users["cashier-1"].IsActive)
	assert.Empty(t, audit.entries)

	// Sending the current value is not a status change.
	active := true
	_, err = svc.UpdateUser(ctx, adminActor, "cashier-1", UpdateInput{IsActive: &active})
	require.NoError(t, err)

	_, err = svc.UpdateUser(ctx, ownerActor, "cashier-1", UpdateInput{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, repo.users["cashier-1"].IsActive)

	_, err = svc.UpdateUser(ctx, adminActor, "cashier-1", UpdateInput{IsActive: &active})
	assert.ErrorIs(t, err, ErrStatusChangeForbidden)
	assert.False(t, repo.users["cashier-1"].IsActive)
}
