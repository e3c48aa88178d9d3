package settings

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kasirku/kasirku/internal/platform/httpx"
	"github.com/kasirku/kasirku/internal/rbac"
	"github.com/kasirku/kasirku/internal/roles"
	"github.com/kasirku/kasirku/internal/shared"
)

// Handler manages settings endpoints.
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

// MountRoutes registers settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireSession).Get("/public", h.listPublic)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(roles.SettingsView))
		r.Get("/", h.list)
		r.Get("/{key}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(roles.SettingsUpdate))
		r.Put("/{key}", h.put)
		r.Delete("/{key}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.fail(w, "list settings", err)
		return
	}
	if items == nil {
		items = []Setting{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) listPublic(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Public(r.Context())
	if err != nil {
		h.fail(w, "list public settings", err)
		return
	}
	out := make(map[string]any, len(items))
	for _, s := range items {
		out[s.Key] = s.Value
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.fail(w, "get setting", err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request) {
	var in PutInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.ValidationProblem(w, httpx.FieldErrors(err))
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	s, err := h.service.Put(r.Context(), actor, chi.URLParam(r, "key"), in)
	if err != nil {
		h.fail(w, "put setting", err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "key")); err != nil {
		h.fail(w, "delete setting", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, httpx.ErrNotFound) || errors.Is(err, httpx.ErrValidation) {
		h.logger.Debug(op, slog.Any("error", err))
	} else {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
