package users

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/agristock/agristock/internal/rbac"
	"github.com/agristock/agristock/internal/shared"
	"github.com/agristock/agristock/internal/view"
)

type memoryRepo struct {
	users    []User
	activity []shared.ActivityEvent
	listErr  error
}

func (m *memoryRepo) ListUsers(context.Context) ([]User, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]User(nil), m.users...), nil
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: m, users: append([]User(nil), m.users...)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.users = tx.users
	m.activity = append(m.activity, tx.activity...)
	return nil
}

type memoryTx struct {
	repo     *memoryRepo
	users    []User
	activity []shared.ActivityEvent
}

func (t *memoryTx) UpdateRole(_ context.Context, userID int64, role string) error {
	for i := range t.users {
		if t.users[i].ID == userID {
			t.users[i].Role = role
			return nil
		}
	}
	return shared.ErrNotFound
}

func (t *memoryTx) RecordActivity(_ context.Context, event shared.ActivityEvent) error {
	t.activity = append(t.activity, event)
	return nil
}

func seededRepo() *memoryRepo {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &memoryRepo{users: []User{
		{ID: 1, Username: "admin", Email: "admin@agristock.local", Role: rbac.RoleAdmin, CreatedAt: created},
		{ID: 2, Username: "sam", Email: "sam@agristock.local", Role: rbac.RoleStaff, CreatedAt: created},
	}}
}

func TestChangeRoleRecordsActivity(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil)
	at := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return at }

	require.NoError(t, svc.ChangeRole(context.Background(), 1, 2, " Manager "))
	require.Equal(t, rbac.RoleManager, repo.users[1].Role)
	require.Equal(t, []shared.ActivityEvent{{EventType: shared.EventRoleChanged, EntityID: "2", UserID: 1, At: at}}, repo.activity)
}

func TestChangeRoleRejections(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	require.ErrorIs(t, svc.ChangeRole(ctx, 1, 2, "owner"), ErrInvalidRole)
	require.ErrorIs(t, svc.ChangeRole(ctx, 1, 1, rbac.RoleStaff), ErrSelfRoleChange)
	require.ErrorIs(t, svc.ChangeRole(ctx, 1, 99, rbac.RoleStaff), shared.ErrNotFound)
	require.ErrorIs(t, svc.ChangeRole(ctx, 1, 0, rbac.RoleStaff), shared.ErrNotFound)
	require.Empty(t, repo.activity)
	require.Equal(t, rbac.RoleAdmin, repo.users[0].Role)
}

type usersFixture struct {
	repo     *memoryRepo
	router   http.Handler
	sessions *shared.SessionManager
}

func newUsersFixture(t *testing.T) *usersFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	sessions := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test_session", "secret", time.Hour, false)
	templates, err := view.NewEngine()
	require.NoError(t, err)

	repo := seededRepo()
	handler := NewHandler(nil, NewService(repo, nil), templates, shared.NewCSRFManager("csrfsecret"), rbac.Middleware{})
	r := chi.NewRouter()
	r.Route("/users", handler.MountRoutes)
	return &usersFixture{repo: repo, router: r, sessions: sessions}
}

func (f *usersFixture) do(t *testing.T, method, target string, form url.Values, viewer shared.Viewer) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	sess, err := f.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithViewer(shared.ContextWithSession(req.Context(), sess), viewer)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req.WithContext(ctx))
	return rec, sess
}

var (
	adminViewer = shared.Viewer{UserID: 1, Username: "admin", Role: rbac.RoleAdmin}
	staffViewer = shared.Viewer{UserID: 2, Username: "sam", Role: rbac.RoleStaff}
)

func TestUsersPageAdminOnly(t *testing.T) {
	f := newUsersFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/users/", nil, shared.Viewer{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/auth", rec.Header().Get("Location"))

	rec, _ = f.do(t, http.MethodGet, "/users/", nil, staffViewer)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/users/", nil, adminViewer)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "sam@agristock.local")
	require.Contains(t, body, `action="/users/2/role"`)
	require.NotContains(t, body, `action="/users/1/role"`)
	require.Contains(t, body, `href="/users"`)
}

func TestUsersPageListError(t *testing.T) {
	f := newUsersFixture(t)
	f.repo.listErr = errors.New("boom")

	rec, _ := f.do(t, http.MethodGet, "/users/", nil, adminViewer)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "Something went wrong")
}

func TestChangeRoleHandler(t *testing.T) {
	f := newUsersFixture(t)

	rec, sess := f.do(t, http.MethodPost, "/users/2/role", url.Values{"role": {rbac.RoleManager}}, adminViewer)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/users", rec.Header().Get("Location"))
	require.Equal(t, rbac.RoleManager, f.repo.users[1].Role)
	require.Equal(t, "Role updated.", sess.PopFlash().Message)

	rec, sess = f.do(t, http.MethodPost, "/users/2/role", url.Values{"role": {"root"}}, adminViewer)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "error", sess.PopFlash().Kind)

	rec, _ = f.do(t, http.MethodPost, "/users/2/role", url.Values{"role": {rbac.RoleAdmin}}, staffViewer)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, rbac.RoleManager, f.repo.users[1].Role)

	rec, _ = f.do(t, http.MethodPost, "/users/abc/role", url.Values{"role": {rbac.RoleStaff}}, adminViewer)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
