package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/agristock/agristock/internal/platform/httpx"
	"github.com/agristock/agristock/internal/shared"
)

// DefaultLoginPath is where anonymous page requests are sent.
const DefaultLoginPath = "/auth"

// Middleware gates routes on the request viewer placed in the context by the
// application middleware stack.
type Middleware struct {
	Logger    *slog.Logger
	LoginPath string
}

// RequireAuthenticated rejects anonymous requests.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !shared.ViewerFromContext(r.Context()).Authenticated() {
				m.unauthenticated(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole ensures the viewer is signed in and holds at least one of roles.
func (m Middleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	normalized := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			viewer := shared.ViewerFromContext(r.Context())
			if !viewer.Authenticated() {
				m.unauthenticated(w, r)
				return
			}
			if len(normalized) > 0 && !viewer.HasRole(normalized...) {
				if m.Logger != nil {
					m.Logger.Warn("rbac role denied",
						slog.Int64("user_id", viewer.UserID),
						slog.String("role", viewer.Role),
						slog.String("path", r.URL.Path))
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) unauthenticated(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		httpx.RespondError(w, r, httpx.ErrUnauthorized)
		return
	}
	login := m.LoginPath
	if login == "" {
		login = DefaultLoginPath
	}
	http.Redirect(w, r, login, http.StatusSeeOther)
}
