package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kasirku/kasirku/internal/platform/httpx"
	"github.com/kasirku/kasirku/internal/roles"
	"github.com/kasirku/kasirku/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers the auth API under the public /api/auth prefix.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sign-up/email", h.handleSignUp)
	r.Post("/sign-in/email", h.handleSignIn)
	r.Post("/sign-out", h.handleSignOut)
	r.Get("/session", h.handleSession)
}

// MountPages registers the public login and signup entry points.
func (h *Handler) MountPages(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Get("/signup", h.showSignUp)
}

type pageDescriptor struct {
	Page     string   `json:"page"`
	Action   string   `json:"action"`
	Fields   []string `json:"fields"`
	Redirect string   `json:"redirect,omitempty"`
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	page := pageDescriptor{Page: "login", Action: "/api/auth/sign-in/email", Fields: []string{"email", "password"}}
	if sess, err := h.service.ResolveSession(r); err == nil && sess != nil {
		page.Redirect = "/dashboard"
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) showSignUp(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, pageDescriptor{Page: "signup", Action: "/api/auth/sign-up/email", Fields: []string{"name", "email", "password", "phone"}})
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role"`
	IsActive bool   `json:"isActive"`
}

type sessionResponse struct {
	Session     *Session           `json:"session"`
	User        SessionUser        `json:"user"`
	Permissions []roles.Permission `json:"permissions"`
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var input SignUpInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.ValidationProblem(w, httpx.FieldErrors(err))
		return
	}
	user, err := h.service.SignUp(r.Context(), input)
	switch {
	case errors.Is(err, ErrWeakPassword):
		httpx.ValidationProblem(w, map[string]string{"password": err.Error()})
		return
	case errors.Is(err, shared.ErrEmailTaken):
		httpx.Problem(w, http.StatusConflict, "Duplicate", shared.UserSafeMessage(err))
		return
	case err != nil:
		h.logger.Error("sign up", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, userResponse{
		ID:       user.ID,
		Email:    user.Email,
		Name:     user.Name,
		Phone:    user.Phone,
		Role:     user.Role,
		IsActive: user.IsActive,
	})
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var input SignInInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.ValidationProblem(w, httpx.FieldErrors(err))
		return
	}
	sess, err := h.service.SignIn(r.Context(), input, r.RemoteAddr, r.UserAgent())
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.UserSafeMessage(err))
			return
		}
		h.logger.Error("sign in", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.service.WriteSessionCookie(w, sess)
	httpx.JSON(w, http.StatusOK, h.sessionBody(sess))
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if token, ok := h.service.TokenFromRequest(r); ok {
		if err := h.service.SignOut(r.Context(), token); err != nil {
			h.logger.Warn("sign out", slog.Any("error", err))
		}
	}
	h.service.ClearSessionCookie(w)
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.ResolveSession(r)
	if err != nil {
		if errors.Is(err, ErrNoSession) || errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrInactiveUser) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
			return
		}
		h.logger.Error("resolve session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if sess.Refreshed {
		h.service.WriteSessionCookie(w, sess)
	}
	httpx.JSON(w, http.StatusOK, h.sessionBody(sess))
}

func (h *Handler) sessionBody(sess *Session) sessionResponse {
	body := sessionResponse{Session: sess, User: sess.User}
	if role, err := RoleFromSession(sess); err == nil {
		body.Permissions = roles.PermissionsFor(role)
	}
	return body
}
