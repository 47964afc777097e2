package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agristock/agristock/internal/auth"
	"github.com/agristock/agristock/internal/dashboard"
	"github.com/agristock/agristock/internal/observability"
	"github.com/agristock/agristock/internal/rbac"
	"github.com/agristock/agristock/internal/shared"
	"github.com/agristock/agristock/internal/view"
)

type noUsers struct{}

func (noUsers) FindByLogin(ctx context.Context, login string) (*auth.User, error) {
	return nil, shared.ErrNotFound
}

func (noUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return nil, shared.ErrNotFound
}

func (noUsers) CreateUser(ctx context.Context, nu auth.NewUser) (*auth.User, error) {
	return nil, shared.ErrDuplicate
}

func (noUsers) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	return shared.ErrNotFound
}

func (noUsers) RecordActivity(ctx context.Context, event shared.ActivityEvent) error { return nil }

type routerFixture struct {
	handler  http.Handler
	sessions *shared.SessionManager
	metrics  *observability.Metrics
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "agristock_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	metrics := observability.NewMetrics()

	dashSvc := dashboard.NewService(nil, nil, metrics)
	engine, err := view.NewEngine()
	require.NoError(t, err)
	engine.WithShell(dashSvc)

	authSvc := auth.NewService(noUsers{}, nil, nil, nil)
	cfg := &Config{AppEnv: "test", RateLimitPerMinute: 1000, AppRequestTimeout: 5 * time.Second}
	handler := NewRouter(RouterParams{
		Config:           cfg,
		SessionManager:   sessions,
		CSRFManager:      csrf,
		AuthHandler:      auth.NewHandler(nil, authSvc, engine, sessions, csrf),
		DashboardHandler: dashboard.NewHandler(nil, dashSvc, nil, engine, csrf, rbac.Middleware{}),
		Metrics:          metrics,
	})
	return &routerFixture{handler: handler, sessions: sessions, metrics: metrics}
}

func (f *routerFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// signedInCookie stores a session for viewer and returns its cookie.
func (f *routerFixture) signedInCookie(t *testing.T, viewer shared.Viewer) *http.Cookie {
	t.Helper()
	sess, err := f.sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SignIn(viewer)
	rec := httptest.NewRecorder()
	require.NoError(t, f.sessions.Commit(context.Background(), rec, sess))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestHealthzSkipsSession(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.serve(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Empty(t, rec.Result().Cookies())
}

func TestStaticAssetsAreCached(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.serve(httptest.NewRequest(http.MethodGet, "/static/js/auth.js", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")
	assert.Contains(t, rec.Body.String(), "signup")
}

func TestAnonymousDashboardRedirectsToAuth(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.serve(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth", rec.Header().Get("Location"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.NotEmpty(t, rec.Result().Cookies())
	assert.Equal(t, "agristock_session", rec.Result().Cookies()[0].Name)
}

func TestDashboardRendersSampleShellForSignedInViewer(t *testing.T) {
	f := newRouterFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(f.signedInCookie(t, shared.Viewer{UserID: 3, Username: "maria", Role: "staff"}))

	rec := f.serve(req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<b>maria</b>")
	assert.Contains(t, body, "John Doe")
	assert.Contains(t, body, `data-counter="batches">0<`)

	metricsRec := f.serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metricsRec.Body.String(), "agristock_dashboard_fallback_total")
}

var csrfField = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

func TestCSRFProtectsPosts(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.serve(httptest.NewRequest(http.MethodGet, "/auth/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	match := csrfField.FindStringSubmatch(rec.Body.String())
	require.Len(t, match, 2)

	post := func(token string) *httptest.ResponseRecorder {
		form := url.Values{"username": {"ghost"}, "password": {"whatever1"}}
		if token != "" {
			form.Set("csrf_token", token)
		}
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		for _, c := range cookies {
			req.AddCookie(c)
		}
		return f.serve(req)
	}

	assert.Equal(t, http.StatusForbidden, post("").Code)
	assert.Equal(t, http.StatusForbidden, post("forged").Code)
	assert.Equal(t, http.StatusUnauthorized, post(match[1]).Code)
}
