package products

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kasirku/kasirku/internal/platform/httpx"
	"github.com/kasirku/kasirku/internal/rbac"
	"github.com/kasirku/kasirku/internal/roles"
	"github.com/kasirku/kasirku/internal/shared"
)

type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New(), rbac: rbac}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(roles.ProductView))
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/movements", h.Movements)
	})
	r.With(h.rbac.RequirePermission(roles.ProductCreate)).Post("/", h.Create)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(roles.ProductUpdate))
		r.Patch("/{id}", h.Update)
		r.Post("/{id}/stock-adjustments", h.AdjustStock)
	})
	r.With(h.rbac.RequirePermission(roles.ProductDelete)).Delete("/{id}", h.Delete)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 20
	}
	filter := ListFilter{
		Search:          r.URL.Query().Get("search"),
		CategoryID:      r.URL.Query().Get("category_id"),
		LowStockOnly:    r.URL.Query().Get("low_stock") == "true",
		IncludeInactive: r.URL.Query().Get("include_inactive") == "true",
		Limit:           limit,
		Offset:          (page - 1) * limit,
	}
	products, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list products", err)
		return
	}
	if products == nil {
		products = []Product{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":  products,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.ValidationProblem(w, httpx.FieldErrors(err))
		return
	}
	p, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create product", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.ValidationProblem(w, httpx.FieldErrors(err))
		return
	}
	p, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "update product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var in AdjustStockInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.ValidationProblem(w, httpx.FieldErrors(err))
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	m, err := h.service.AdjustStock(r.Context(), actor, chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "adjust stock", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) Movements(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.Movements(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		h.fail(w, "list movements", err)
		return
	}
	if movements == nil {
		movements = []StockMovement{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": movements})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, httpx.ErrNotFound) || errors.Is(err, httpx.ErrValidation) ||
		errors.Is(err, httpx.ErrConflict) || errors.Is(err, httpx.ErrDuplicate) {
		h.logger.Debug(op, slog.Any("error", err))
	} else {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
