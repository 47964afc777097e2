package inventory

import (
	"context"
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

var (
	staff   = shared.Viewer{UserID: 3, Username: "sam", Role: rbac.RoleStaff}
	manager = shared.Viewer{UserID: 2, Username: "mia", Role: rbac.RoleManager}
)

type handlerFixture struct {
	repo     *memoryRepo
	router   http.Handler
	sessions *shared.SessionManager
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	templates, err := view.NewEngine()
	require.NoError(t, err)

	repo := newMemoryRepo()
	repo.batches = []Batch{
		{ID: 1, WarehouseID: 1, WarehouseName: "North Barn", ProductName: "Organic Tomatoes", Quantity: 10, HarvestDate: fixedNow()},
		{ID: 2, WarehouseID: 2, WarehouseName: "Cold Store", ProductName: "Lettuce", Quantity: 4.5, HarvestDate: fixedNow()},
	}
	svc := newTestService(repo)
	handler := NewHandler(nil, svc, templates, shared.NewCSRFManager("csrfsecret"), rbac.Middleware{})

	r := chi.NewRouter()
	handler.MountRoutes(r)
	return &handlerFixture{repo: repo, router: r, sessions: sessions}
}

func (f *handlerFixture) do(t *testing.T, method, target string, form url.Values, viewer shared.Viewer) *httptest.ResponseRecorder {
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
	ctx := shared.ContextWithSession(req.Context(), sess)
	ctx = shared.ContextWithViewer(ctx, viewer)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func TestListBatchesServerSideSearch(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/batches?q=tomato", nil, staff)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "Organic Tomatoes")
	require.NotContains(t, body, "Lettuce")
	require.Contains(t, body, `value="tomato"`)
	require.NotContains(t, body, "delete-btn", "staff cannot delete")

	rec = f.do(t, http.MethodGet, "/batches", nil, manager)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Lettuce")
	require.Contains(t, rec.Body.String(), `class="delete-btn"`)
}

func TestListBatchesSearchKeepsWhitespace(t *testing.T) {
	f := newHandlerFixture(t)

	// Cells join without separators, so " lettuce" matches nothing, as in the browser.
	rec := f.do(t, http.MethodGet, "/batches?q=+lettuce", nil, staff)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.NotContains(t, body, "Lettuce")
	require.NotContains(t, body, "Organic Tomatoes")
	require.Contains(t, body, `value=" lettuce"`)

	rec = f.do(t, http.MethodGet, "/batches?q=north+barn", nil, staff)
	require.Contains(t, rec.Body.String(), "Organic Tomatoes")
	require.NotContains(t, rec.Body.String(), "Lettuce")
}

func TestBatchRoutesRequireViewer(t *testing.T) {
	f := newHandlerFixture(t)
	rec := f.do(t, http.MethodGet, "/batches", nil, shared.Viewer{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/auth", rec.Header().Get("Location"))
}

func TestDeleteBatchIsRoleGated(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/batches/1/delete", url.Values{}, staff)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Len(t, f.repo.batches, 2)

	rec = f.do(t, http.MethodPost, "/batches/1/delete", url.Values{}, manager)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/batches", rec.Header().Get("Location"))
	require.Len(t, f.repo.batches, 1)
	require.Equal(t, shared.EventBatchDeleted, f.repo.activity[0].EventType)
	require.Equal(t, int64(2), f.repo.activity[0].UserID)

	rec = f.do(t, http.MethodPost, "/batches/abc/delete", url.Values{}, manager)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateBatchForm(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/batches/new", nil, staff)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `id="harvest_date"`)
	require.Contains(t, rec.Body.String(), "Cold Store")

	invalid := url.Values{"product_name": {""}, "quantity": {"-2"}, "warehouse_id": {"1"}, "harvest_date": {"15/06/2024"}}
	rec = f.do(t, http.MethodPost, "/batches", invalid, staff)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "Enter a product name")
	require.Contains(t, body, "Enter a quantity greater than zero.")
	require.Contains(t, body, "Enter the harvest date as YYYY-MM-DD.")

	valid := url.Values{"product_name": {"Carrots"}, "quantity": {"25"}, "warehouse_id": {"2"}, "harvest_date": {"2024-06-10"}}
	rec = f.do(t, http.MethodPost, "/batches", valid, staff)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Len(t, f.repo.batches, 3)
	require.Equal(t, shared.EventBatchCreated, f.repo.activity[0].EventType)
}

func TestShowWarehouse(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/warehouses/1", nil, staff)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "<h1>North Barn</h1>")
	require.Contains(t, body, "Organic Tomatoes")
	require.NotContains(t, body, "Lettuce")

	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/warehouses/abc", nil, staff).Code)
	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/warehouses/99", nil, staff).Code)
}
