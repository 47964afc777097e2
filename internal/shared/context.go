package shared

import (
	"context"
	"strings"
)

type sessionContextKey struct{}

type viewerContextKey struct{}

// Viewer is the per-request identity used by handlers and templates. It is
// resolved once by middleware and passed down explicitly through the context.
type Viewer struct {
	UserID   int64
	Username string
	Role     string
}

// Authenticated reports whether the viewer belongs to a signed-in user.
func (v Viewer) Authenticated() bool {
	return v.UserID != 0
}

// HasRole matches the viewer role case-insensitively against any of roles.
func (v Viewer) HasRole(roles ...string) bool {
	for _, role := range roles {
		if strings.EqualFold(strings.TrimSpace(role), v.Role) {
			return true
		}
	}
	return false
}

// DisplayRole returns the role for the header, defaulting to "Guest".
func (v Viewer) DisplayRole() string {
	if v.Role == "" {
		return "Guest"
	}
	return v.Role
}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithViewer stores the request viewer in context.
func ContextWithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerContextKey{}, v)
}

// ViewerFromContext returns the request viewer; the zero Viewer means anonymous.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerContextKey{}).(Viewer)
	return v
}
