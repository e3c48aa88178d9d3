package reports

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kasirku/kasirku/internal/platform/httpx"
	"github.com/kasirku/kasirku/internal/rbac"
	"github.com/kasirku/kasirku/internal/roles"
)

// Handler exposes report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequirePermission(roles.ReportView)).Get("/daily", h.daily)
	r.With(h.rbac.RequirePermission(roles.ReportExport)).Get("/daily/export", h.export)
}

func (h *Handler) daily(w http.ResponseWriter, r *http.Request) {
	day, err := h.service.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	summary, err := h.service.DailySummary(r.Context(), day)
	if err != nil {
		h.fail(w, "daily summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := h.service.ParseDate(q.Get("from"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to := from
	if q.Get("to") != "" {
		if to, err = h.service.ParseDate(q.Get("to")); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}

	var buf bytes.Buffer
	if err := h.service.ExportDaily(r.Context(), &buf, from, to); err != nil {
		h.fail(w, "export daily", err)
		return
	}
	filename := "sales-" + from.Format(dateLayout) + "_" + to.Format(dateLayout) + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, httpx.ErrValidation) {
		h.logger.Debug(op, slog.Any("error", err))
	} else {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
