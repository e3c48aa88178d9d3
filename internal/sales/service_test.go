package sales

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasirku/kasirku/internal/auth"
	"github.com/kasirku/kasirku/internal/platform/httpx"
	"github.com/kasirku/kasirku/internal/products"
	"github.com/kasirku/kasirku/internal/rbac"
	"github.com/kasirku/kasirku/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	mu           sync.Mutex
	products     map[string]products.Product
	transactions map[string]Transaction
	movements    []products.StockMovement
	numbers      map[string]bool
	txError      error
}

func newMockRepository(seed ...products.Product) *mockRepository {
	m := &mockRepository{
		products:     make(map[string]products.Product),
		transactions: make(map[string]Transaction),
		numbers:      make(map[string]bool),
	}
	for _, p := range seed {
		m.products[p.ID] = p
	}
	return m
}

// WithTx runs fn against copies and commits them only on success.
func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.txError != nil {
		return m.txError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &mockTx{
		products:     make(map[string]products.Product, len(m.products)),
		transactions: make(map[string]Transaction, len(m.transactions)),
		numbers:      m.numbers,
	}
	for k, v := range m.products {
		tx.products[k] = v
	}
	for k, v := range m.transactions {
		tx.transactions[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.products = tx.products
	m.transactions = tx.transactions
	m.movements = append(m.movements, tx.movements...)
	for _, t := range tx.transactions {
		m.numbers[t.TransactionNumber] = true
	}
	return nil
}

func (m *mockRepository) Get(ctx context.Context, id string) (Transaction, error) {
	t, ok := m.transactions[id]
	if !ok {
		return Transaction{}, shared.ErrNotFound
	}
	return t, nil
}

func (m *mockRepository) List(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	var out []Transaction
	for _, t := range m.transactions {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, t)
	}
	return out, len(out), nil
}

type mockTx struct {
	products     map[string]products.Product
	transactions map[string]Transaction
	movements    []products.StockMovement
	numbers      map[string]bool
}

func (t *mockTx) LockProduct(ctx context.Context, id string) (products.Product, error) {
	p, ok := t.products[id]
	if !ok {
		return products.Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (t *mockTx) SetStock(ctx context.Context, id string, stock int) error {
	p := t.products[id]
	p.StockQuantity = stock
	t.products[id] = p
	return nil
}

func (t *mockTx) InsertMovement(ctx context.Context, m products.StockMovement) error {
	t.movements = append(t.movements, m)
	return nil
}

func (t *mockTx) InsertTransaction(ctx context.Context, trx Transaction) error {
	if t.numbers[trx.TransactionNumber] {
		return errTransactionNumberTaken
	}
	t.transactions[trx.ID] = trx
	return nil
}

func (t *mockTx) InsertItems(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	trx := t.transactions[items[0].TransactionID]
	trx.Items = append(trx.Items, items...)
	t.transactions[trx.ID] = trx
	return nil
}

func (t *mockTx) LockTransaction(ctx context.Context, id string) (Transaction, error) {
	trx, ok := t.transactions[id]
	if !ok {
		return Transaction{}, shared.ErrNotFound
	}
	return trx, nil
}

func (t *mockTx) UpdateTransaction(ctx context.Context, trx Transaction) error {
	if _, ok := t.transactions[trx.ID]; !ok {
		return shared.ErrNotFound
	}
	t.transactions[trx.ID] = trx
	return nil
}

type mockIdempotency struct {
	keys     map[string]bool
	released []string
}

func (m *mockIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *mockIdempotency) Release(ctx context.Context, key string) error {
	delete(m.keys, key)
	m.released = append(m.released, key)
	return nil
}

// ============================================================================
// FIXTURES
// ============================================================================

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func catalogue() []products.Product {
	return []products.Product{
		{ID: "kopi", Name: "Kopi Susu", SKU: "KS-01", CostPrice: 8000, SellPrice: 12000, StockQuantity: 10, IsActive: true, IsTaxable: true},
		{ID: "roti", Name: "Roti Bakar", SKU: "RB-01", CostPrice: 4000, SellPrice: 7000, StockQuantity: 5, IsActive: true, IsTaxable: false},
		{ID: "lama", Name: "Produk Lama", SKU: "OLD-1", SellPrice: 1000, StockQuantity: 100, IsActive: false},
	}
}

func newTestService(t *testing.T) (*Service, *mockRepository, *mockIdempotency) {
	t.Helper()
	repo := newMockRepository(catalogue()...)
	idem := &mockIdempotency{keys: make(map[string]bool)}
	svc := NewService(repo, idem, nil)
	svc.now = func() time.Time { return mustDate(t, "2026-03-05").Add(10 * time.Hour) }
	return svc, repo, idem
}

// ============================================================================
// CHECKOUT
// ============================================================================

func TestCreateTransaction(t *testing.T) {
	svc, repo, _ := newTestService(t)

	trx, err := svc.CreateTransaction(context.Background(), "cashier-1", CreateTransactionRequest{
		Items: []CreateItemRequest{
			{ProductID: "kopi", Quantity: 3},
			{ProductID: "roti", Quantity: 2},
		},
		DiscountPercent: 10,
		TaxPercent:      11,
		PaymentMethod:   "cash",
		AmountPaid:      60000,
	}, "")
	require.NoError(t, err)

	assert.Regexp(t, `^TRX-20260305-[A-Z0-9]{6}$`, trx.TransactionNumber)
	assert.InDelta(t, 50000, trx.Subtotal, 0.001)
	assert.InDelta(t, 5000, trx.DiscountAmount, 0.001)
	assert.InDelta(t, 3564, trx.TaxAmount, 0.001)
	assert.InDelta(t, 48564, trx.TotalAmount, 0.001)
	assert.InDelta(t, 11436, trx.ChangeAmount, 0.001)
	assert.Equal(t, 5, trx.ItemCount)
	assert.Equal(t, StatusCompleted, trx.Status)
	require.Len(t, trx.Items, 2)
	assert.Equal(t, "Kopi Susu", trx.Items[0].ProductName)

	assert.Equal(t, 7, repo.products["kopi"].StockQuantity)
	assert.Equal(t, 3, repo.products["roti"].StockQuantity)
	require.Len(t, repo.movements, 2)
	for _, m := range repo.movements {
		assert.Equal(t, products.MovementSale, m.Type)
		assert.Equal(t, trx.ID, m.ReferenceID)
	}
	assert.Contains(t, repo.transactions, trx.ID)
}

func TestCreateTransactionUnderpaidRollsBack(t *testing.T) {
	svc, repo, idem := newTestService(t)

	_, err := svc.CreateTransaction(context.Background(), "cashier-1", CreateTransactionRequest{
		Items:         []CreateItemRequest{{ProductID: "kopi", Quantity: 1}},
		PaymentMethod: "cash",
		AmountPaid:    10000,
	}, "key-1")
	assert.ErrorIs(t, err, ErrUnderpaid)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	assert.Equal(t, 10, repo.products["kopi"].StockQuantity)
	assert.Empty(t, repo.movements)
	assert.Empty(t, repo.transactions)
	assert.Equal(t, []string{"key-1"}, idem.released)
}

func TestCreateTransactionNonCashDefaultsToExactPayment(t *testing.T) {
	svc, _, _ := newTestService(t)

	trx, err := svc.CreateTransaction(context.Background(), "cashier-1", CreateTransactionRequest{
		Items:         []CreateItemRequest{{ProductID: "roti", Quantity: 1}},
		PaymentMethod: "ewallet",
	}, "")
	require.NoError(t, err)
	assert.InDelta(t, 7000, trx.AmountPaid, 0.001)
	assert.Zero(t, trx.ChangeAmount)
}

func TestCreateTransactionStockAndProductErrors(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateTransaction(ctx, "c", CreateTransactionRequest{
		Items:         []CreateItemRequest{{ProductID: "kopi", Quantity: 2}, {ProductID: "roti", Quantity: 6}},
		PaymentMethod: "card",
	}, "")
	assert.ErrorIs(t, err, products.ErrInsufficientStock)
	assert.Equal(t, 10, repo.products["kopi"].StockQuantity, "earlier lines roll back too")

	_, err = svc.CreateTransaction(ctx, "c", CreateTransactionRequest{
		Items:         []CreateItemRequest{{ProductID: "lama", Quantity: 1}},
		PaymentMethod: "card",
	}, "")
	assert.ErrorIs(t, err, products.ErrInactiveProduct)

	_, err = svc.CreateTransaction(ctx, "c", CreateTransactionRequest{
		Items:         []CreateItemRequest{{ProductID: "ghost", Quantity: 1}},
		PaymentMethod: "card",
	}, "")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.CreateTransaction(ctx, "c", CreateTransactionRequest{PaymentMethod: "card"}, "")
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = svc.CreateTransaction(ctx, "c", CreateTransactionRequest{
		Items:         []CreateItemRequest{{ProductID: "kopi", Quantity: 1}},
		PaymentMethod: "barter",
	}, "")
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateTransactionIdempotency(t *testing.T) {
	svc, repo, _ := newTestService(t)
	req := CreateTransactionRequest{
		Items:         []CreateItemRequest{{ProductID: "kopi", Quantity: 1}},
		PaymentMethod: "card",
	}

	_, err := svc.CreateTransaction(context.Background(), "c", req, "checkout-42")
	require.NoError(t, err)
	_, err = svc.CreateTransaction(context.Background(), "c", req, "checkout-42")
	assert.ErrorIs(t, err, ErrDuplicateOrder)
	assert.Len(t, repo.transactions, 1)
	assert.Equal(t, 9, repo.products["kopi"].StockQuantity)
}

func TestCreateTransactionRetriesNumberCollision(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.numbers["TRX-20260305-AAAAAA"] = true
	calls := 0
	svc.newNumber = func(time.Time) string {
		calls++
		if calls == 1 {
			return "TRX-20260305-AAAAAA"
		}
		return "TRX-20260305-BBBBBB"
	}

	trx, err := svc.CreateTransaction(context.Background(), "c", CreateTransactionRequest{
		Items:         []CreateItemRequest{{ProductID: "kopi", Quantity: 1}},
		PaymentMethod: "card",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "TRX-20260305-BBBBBB", trx.TransactionNumber)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 9, repo.products["kopi"].StockQuantity)
}

// ============================================================================
// CHANGES
// ============================================================================

func createSale(t *testing.T, svc *Service) *Transaction {
	t.Helper()
	trx, err := svc.CreateTransaction(context.Background(), "cashier-1", CreateTransactionRequest{
		Items:         []CreateItemRequest{{ProductID: "kopi", Quantity: 4}},
		PaymentMethod: "card",
	}, "")
	require.NoError(t, err)
	return trx
}

func TestVoidTransactionReturnsStock(t *testing.T) {
	svc, repo, _ := newTestService(t)
	trx := createSale(t, svc)
	require.Equal(t, 6, repo.products["kopi"].StockQuantity)

	voided, err := svc.VoidTransaction(context.Background(), "owner-1", trx.ID, "salah input")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, voided.Status)
	assert.Equal(t, PaymentStatusRefunded, voided.PaymentStatus)
	assert.Equal(t, 10, repo.products["kopi"].StockQuantity)

	last := repo.movements[len(repo.movements)-1]
	assert.Equal(t, products.MovementReturn, last.Type)
	assert.Equal(t, 4, last.Quantity)

	_, err = svc.VoidTransaction(context.Background(), "owner-1", trx.ID, "")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, 10, repo.products["kopi"].StockQuantity)
}

func TestUpdateTransaction(t *testing.T) {
	svc, _, _ := newTestService(t)
	trx := createSale(t, svc)

	notes := " meja 4 "
	pending := "pending"
	updated, err := svc.UpdateTransaction(context.Background(), trx.ID, UpdateTransactionRequest{Notes: &notes, Status: &pending})
	require.NoError(t, err)
	assert.Equal(t, "meja 4", updated.Notes)
	assert.Equal(t, StatusPending, updated.Status)
	assert.Equal(t, PaymentStatusPending, updated.PaymentStatus)

	cancelled := "cancelled"
	_, err = svc.UpdateTransaction(context.Background(), trx.ID, UpdateTransactionRequest{Status: &cancelled})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.VoidTransaction(context.Background(), "owner-1", trx.ID, "")
	require.NoError(t, err)
	_, err = svc.UpdateTransaction(context.Background(), trx.ID, UpdateTransactionRequest{Notes: &notes})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.UpdateTransaction(context.Background(), "missing", UpdateTransactionRequest{Notes: &notes})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRepositoryFailureSurfaces(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.txError = errors.New("connection reset")
	_, err := svc.CreateTransaction(context.Background(), "c", CreateTransactionRequest{
		Items:         []CreateItemRequest{{ProductID: "kopi", Quantity: 1}},
		PaymentMethod: "card",
	}, "")
	assert.EqualError(t, err, "connection reset")
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
	svc, repo, _ := newTestService(t)
	h := NewHandler(nil, svc, rbac.Middleware{Resolver: roleResolver{}})
	router := chi.NewRouter()
	router.Route("/api/sales", h.MountRoutes)

	call := func(method, path, role, body string, headers ...string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.AddCookie(&http.Cookie{Name: "sid", Value: role})
		for i := 0; i+1 < len(headers); i += 2 {
			req.Header.Set(headers[i], headers[i+1])
		}
		res := httptest.NewRecorder()
		router.ServeHTTP(res, req)
		return res
	}

	body := `{"items":[{"productId":"kopi","quantity":1}],"paymentMethod":"cash","amountPaid":20000}`
	res := call(http.MethodPost, "/api/sales/", "cashier", body, IdempotencyHeader, "k-1")
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	assert.Equal(t, http.StatusConflict, call(http.MethodPost, "/api/sales/", "cashier", body, IdempotencyHeader, "k-1").Code)
	assert.Equal(t, http.StatusBadRequest, call(http.MethodPost, "/api/sales/", "cashier", `{"items":[],"paymentMethod":"cash"}`).Code)

	var id string
	for k := range repo.transactions {
		id = k
	}
	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/api/sales/", "cashier", "").Code)
	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/api/sales/"+id, "cashier", "").Code)
	assert.Equal(t, http.StatusForbidden, call(http.MethodPatch, "/api/sales/"+id, "cashier", `{"notes":"x"}`).Code)
	assert.Equal(t, http.StatusOK, call(http.MethodPatch, "/api/sales/"+id, "admin", `{"notes":"x"}`).Code)
	assert.Equal(t, http.StatusForbidden, call(http.MethodDelete, "/api/sales/"+id, "admin", "").Code)
	assert.Equal(t, http.StatusOK, call(http.MethodDelete, "/api/sales/"+id, "owner", "").Code)
	assert.Equal(t, http.StatusConflict, call(http.MethodDelete, "/api/sales/"+id, "owner", "").Code)
	assert.Equal(t, http.StatusBadRequest, call(http.MethodGet, "/api/sales/?from=yesterday", "admin", "").Code)
}

type bumpCounter struct{ n int }

func (b *bumpCounter) Bump(ctx context.Context) error {
	b.n++
	return nil
}

func TestChangeNotifier(t *testing.T) {
	svc, _, _ := newTestService(t)
	bumps := &bumpCounter{}
	svc.SetChangeNotifier(bumps)

	trx := createSale(t, svc)
	assert.Equal(t, 1, bumps.n)

	notes := "x"
	_, err := svc.UpdateTransaction(context.Background(), trx.ID, UpdateTransactionRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, 1, bumps.n, "notes do not affect reports")

	_, err = svc.VoidTransaction(context.Background(), "owner-1", trx.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, bumps.n)
}

type alertSpy struct{ calls int }

func (a *alertSpy) EnqueueLowStockAlert(ctx context.Context) error {
	a.calls++
	return nil
}

func TestCheckoutTriggersLowStockAlert(t *testing.T) {
	svc, _, _ := newTestService(t)
	spy := &alertSpy{}
	svc.SetLowStockNotifier(spy)

	createSale(t, svc)
	assert.Zero(t, spy.calls)

	_, err := svc.CreateTransaction(context.Background(), "c", CreateTransactionRequest{
		Items:         []CreateItemRequest{{ProductID: "roti", Quantity: 5}},
		PaymentMethod: "card",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, spy.calls)
}

type observerSpy struct{ statuses []string }

func (o *observerSpy) ObserveSale(method, status string, amount float64) {
	o.statuses = append(o.statuses, method+":"+status)
}

func TestSaleObserver(t *testing.T) {
	svc, _, _ := newTestService(t)
	spy := &observerSpy{}
	svc.SetObserver(spy)

	trx := createSale(t, svc)
	_, err := svc.VoidTransaction(context.Background(), "owner-1", trx.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"card:completed", "card:cancelled"}, spy.statuses)
}
