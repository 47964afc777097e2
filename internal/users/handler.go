package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/agristock/agristock/internal/rbac"
	"github.com/agristock/agristock/internal/shared"
	"github.com/agristock/agristock/internal/view"
)

// Handler serves the admin user list.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers user routes. Every route requires the admin role.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleAdmin))
		r.Get("/", h.listUsers)
		r.Post("/{id}/role", h.changeRole)
	})
}

type listPageData struct {
	Users []User
	Roles []string
	Error string
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		h.render(w, r, http.StatusInternalServerError, listPageData{Roles: rbac.Roles, Error: shared.UserSafeMessage(err)})
		return
	}
	h.render(w, r, http.StatusOK, listPageData{Users: users, Roles: rbac.Roles})
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	viewer := shared.ViewerFromContext(r.Context())
	err = h.service.ChangeRole(r.Context(), viewer.UserID, id, r.PostFormValue("role"))
	switch {
	case err == nil:
		h.redirectWithFlash(w, r, "success", "Role updated.")
	case errors.Is(err, ErrInvalidRole):
		h.redirectWithFlash(w, r, "error", "Choose a valid role.")
	case errors.Is(err, ErrSelfRoleChange):
		h.redirectWithFlash(w, r, "error", "You cannot change your own role.")
	case errors.Is(err, shared.ErrNotFound):
		h.redirectWithFlash(w, r, "error", shared.UserSafeMessage(err))
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data listPageData) {
	sess := shared.SessionFromContext(r.Context())
	token, _ := h.csrf.EnsureToken(sess)
	viewData := view.TemplateData{Title: "Users", CSRFToken: token, Flash: sess.PopFlash(), Data: data}
	if err := h.templates.RenderPageStatus(w, r, status, "pages/users.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}
