package sales

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kasirku/kasirku/internal/platform/httpx"
	"github.com/kasirku/kasirku/internal/rbac"
	"github.com/kasirku/kasirku/internal/roles"
	"github.com/kasirku/kasirku/internal/shared"
)

// IdempotencyHeader carries the client-generated checkout key.
const IdempotencyHeader = "Idempotency-Key"

// Handler manages sales endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New(), rbac: rbac}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(roles.SaleView))
		r.Get("/", h.listTransactions)
		r.Get("/{id}", h.getTransaction)
	})
	r.With(h.rbac.RequirePermission(roles.SaleCreate)).Post("/", h.createTransaction)
	r.With(h.rbac.RequirePermission(roles.SaleUpdate)).Patch("/{id}", h.updateTransaction)
	r.With(h.rbac.RequirePermission(roles.SaleDelete)).Delete("/{id}", h.voidTransaction)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = 20
	}
	filter := ListFilter{
		CashierID: q.Get("cashier_id"),
		Status:    Status(q.Get("status")),
		Limit:     limit,
		Offset:    (page - 1) * limit,
	}
	if from := q.Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			httpx.ValidationProblem(w, map[string]string{"from": "date=2006-01-02"})
			return
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			httpx.ValidationProblem(w, map[string]string{"to": "date=2006-01-02"})
			return
		}
		filter.To = t.AddDate(0, 0, 1)
	}

	transactions, total, err := h.service.ListTransactions(r.Context(), filter)
	if err != nil {
		h.fail(w, "list transactions", err)
		return
	}
	if transactions == nil {
		transactions = []Transaction{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":  transactions,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	trx, err := h.service.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, trx)
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, httpx.FieldErrors(err))
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	trx, err := h.service.CreateTransaction(r.Context(), actor.UserID, req, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.fail(w, "create transaction", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, trx)
}

func (h *Handler) updateTransaction(w http.ResponseWriter, r *http.Request) {
	var req UpdateTransactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, httpx.FieldErrors(err))
		return
	}
	trx, err := h.service.UpdateTransaction(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, "update transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, trx)
}

func (h *Handler) voidTransaction(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	trx, err := h.service.VoidTransaction(r.Context(), actor.UserID, chi.URLParam(r, "id"), r.URL.Query().Get("reason"))
	if err != nil {
		h.fail(w, "void transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, trx)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, httpx.ErrNotFound) || errors.Is(err, httpx.ErrValidation) || errors.Is(err, httpx.ErrConflict) {
		h.logger.Debug(op, slog.Any("error", err))
	} else {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
