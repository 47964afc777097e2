package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/agristock/agristock/internal/shared"
	"github.com/agristock/agristock/internal/view"
)

// AttemptsPerMinute limits credential posts per client IP.
const AttemptsPerMinute = 10

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showAuth)
	r.Get("/login", h.showAuth)
	r.Get("/reset", h.showReset)
	r.Post("/logout", h.handleLogout)
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(AttemptsPerMinute, time.Minute))
		r.Post("/login", h.handleLogin)
		r.Post("/signup", h.handleSignup)
		r.Post("/forgot", h.handleForgot)
		r.Post("/reset", h.handleReset)
	})
}

type loginForm struct {
	Username string `validate:"required,max=254"`
	Password string `validate:"required,max=72"`
}

type signupForm struct {
	Username string `validate:"required,alphanum,min=3,max=32"`
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=8,max=72"`
}

type forgotForm struct {
	Email string `validate:"required,email"`
}

type resetForm struct {
	Token    string `validate:"required,uuid"`
	Password string `validate:"required,min=8,max=72"`
}

type authPageData struct {
	Panel    Panel
	Visible  Visibility
	Errors   map[string]string
	Username string
	Email    string
}

type resetPageData struct {
	Token  string
	Errors map[string]string
}

var formMessages = map[string]string{
	"signin.Username": "Enter your username or email.",
	"signin.Password": "Enter your password.",
	"signup.Username": "Usernames are 3 to 32 letters or digits.",
	"signup.Email":    "Enter a valid email address.",
	"signup.Password": "Passwords need at least 8 characters.",
	"forgot.Email":    "Enter a valid email address.",
	"reset.Token":     "This reset link is invalid.",
	"reset.Password":  "Passwords need at least 8 characters.",
}

// firstError returns the message for the first failing field of form, or "".
func (h *Handler) firstError(scope string, form any) string {
	err := h.validator.Struct(form)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if msg, ok := formMessages[scope+"."+verrs[0].Field()]; ok {
			return msg
		}
	}
	return "Please check the form and try again."
}

func (h *Handler) showAuth(w http.ResponseWriter, r *http.Request) {
	if shared.ViewerFromContext(r.Context()).Authenticated() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	panel := InitialPanel(r.URL.Query().Get("form"))
	h.renderAuth(w, r, http.StatusOK, panel, authPageData{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	data := authPageData{Username: form.Username, Errors: map[string]string{}}
	if msg := h.firstError("signin", form); msg != "" {
		data.Errors["signin"] = msg
		h.renderAuth(w, r, http.StatusBadRequest, PanelSignIn, data)
		return
	}

	user, err := h.service.Authenticate(r.Context(), form.Username, form.Password)
	if err != nil {
		data.Errors["signin"] = shared.UserSafeMessage(err)
		h.renderAuth(w, r, http.StatusUnauthorized, PanelSignIn, data)
		return
	}
	if !h.signIn(w, r, user, "Welcome back, "+user.Username+".") {
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := signupForm{
		Username: r.PostFormValue("username"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	data := authPageData{Username: form.Username, Email: form.Email, Errors: map[string]string{}}
	if msg := h.firstError("signup", form); msg != "" {
		data.Errors["signup"] = msg
		h.renderAuth(w, r, http.StatusBadRequest, PanelSignUp, data)
		return
	}

	user, err := h.service.Register(r.Context(), RegisterInput(form))
	if err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			data.Errors["signup"] = "That username or email is already registered."
			h.renderAuth(w, r, http.StatusConflict, PanelSignUp, data)
			return
		}
		h.logger.Error("register user", slog.Any("error", err))
		data.Errors["signup"] = shared.UserSafeMessage(err)
		h.renderAuth(w, r, http.StatusInternalServerError, PanelSignUp, data)
		return
	}
	if !h.signIn(w, r, user, "Account created. Welcome, "+user.Username+".") {
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleForgot(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := forgotForm{Email: r.PostFormValue("email")}
	data := authPageData{Email: form.Email, Errors: map[string]string{}}
	if msg := h.firstError("forgot", form); msg != "" {
		data.Errors["forgot"] = msg
		h.renderAuth(w, r, http.StatusBadRequest, PanelForgot, data)
		return
	}
	if err := h.service.RequestPasswordReset(r.Context(), form.Email); err != nil {
		h.logger.Error("request password reset", slog.Any("error", err))
		data.Errors["forgot"] = shared.UserSafeMessage(err)
		h.renderAuth(w, r, http.StatusInternalServerError, PanelForgot, data)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "If that email is registered, a reset link is on its way."})
	}
	http.Redirect(w, r, "/auth?form=signin", http.StatusSeeOther)
}

func (h *Handler) showReset(w http.ResponseWriter, r *http.Request) {
	h.renderReset(w, r, http.StatusOK, resetPageData{Token: r.URL.Query().Get("token")})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := resetForm{Token: r.PostFormValue("token"), Password: r.PostFormValue("password")}
	data := resetPageData{Token: form.Token, Errors: map[string]string{}}
	if msg := h.firstError("reset", form); msg != "" {
		data.Errors["reset"] = msg
		h.renderReset(w, r, http.StatusBadRequest, data)
		return
	}
	if err := h.service.ResetPassword(r.Context(), form.Token, form.Password); err != nil {
		if errors.Is(err, ErrResetTokenInvalid) || errors.Is(err, shared.ErrNotFound) {
			data.Errors["reset"] = "This reset link is invalid or has expired."
			h.renderReset(w, r, http.StatusBadRequest, data)
			return
		}
		h.logger.Error("reset password", slog.Any("error", err))
		data.Errors["reset"] = shared.UserSafeMessage(err)
		h.renderReset(w, r, http.StatusInternalServerError, data)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Password updated. Sign in with your new password."})
	}
	http.Redirect(w, r, "/auth?form=signin", http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/auth", http.StatusSeeOther)
}

// signIn rotates the session id and binds the user to it. It writes an error
// response and returns false when the session cannot be renewed.
func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, user *User, greeting string) bool {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during sign-in")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
		h.logger.Error("renew session", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	sess.SignIn(user.Viewer())
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: greeting})
	return true
}

func (h *Handler) renderAuth(w http.ResponseWriter, r *http.Request, status int, panel Panel, data authPageData) {
	data.Panel = panel
	data.Visible = panel.Visibility()
	title := "Sign in"
	switch panel {
	case PanelSignUp:
		title = "Sign up"
	case PanelForgot:
		title = "Reset password"
	}
	h.render(w, r, status, "pages/auth.html", title, data)
}

func (h *Handler) renderReset(w http.ResponseWriter, r *http.Request, status int, data resetPageData) {
	h.render(w, r, status, "pages/reset.html", "Choose a new password", data)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(sess)
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       sess.PopFlash(),
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, name, viewData); err != nil {
		h.logger.Error("render auth page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
