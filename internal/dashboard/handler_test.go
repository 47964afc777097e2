package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agristock/agristock/internal/inventory"
	"github.com/agristock/agristock/internal/rbac"
	"github.com/agristock/agristock/internal/shared"
	"github.com/agristock/agristock/internal/view"
)

type stubInventory struct {
	warehouses []inventory.Warehouse
	batches    []inventory.Batch
	err        error
}

func (s stubInventory) ListWarehouses(ctx context.Context) ([]inventory.Warehouse, error) {
	return s.warehouses, s.err
}

func (s stubInventory) ListBatches(ctx context.Context, filter inventory.BatchFilter) ([]inventory.Batch, error) {
	return s.batches, s.err
}

func serveDashboard(t *testing.T, repo Repository, inv InventoryReader, target string, viewer shared.Viewer) *httptest.ResponseRecorder {
	t.Helper()
	mr := miniredis.RunT(t)
	sessions := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test_session", "secret", time.Hour, false)
	svc, _ := newTestService(repo)
	engine, err := view.NewEngine()
	require.NoError(t, err)
	engine.WithShell(svc)

	h := NewHandler(nil, svc, inv, engine, shared.NewCSRFManager("csrfsecret"), rbac.Middleware{})
	r := chi.NewRouter()
	h.MountRoutes(r)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithViewer(shared.ContextWithSession(req.Context(), sess), viewer)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

var ana = shared.Viewer{UserID: 1, Username: "ana", Role: "admin"}

func TestDashboardRendersSampleFeedAndZeroCounters(t *testing.T) {
	rec := serveDashboard(t, &stubRepo{countersErr: errors.New("down")}, stubInventory{}, "/", ana)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, "Hey, <b>ana</b>")
	assert.Contains(t, body, "admin")
	for _, entry := range SampleActivity() {
		assert.Contains(t, body, entry.Actor)
		assert.Contains(t, body, entry.Action)
	}
	for _, name := range []string{"batches", "warehouses", "harvests", "orders"} {
		assert.Contains(t, body, `data-counter="`+name+`">0<`)
	}
	assert.Contains(t, body, `id="warehouse-select"`)
}

func TestDashboardRendersRealData(t *testing.T) {
	repo := &stubRepo{
		records:  records(4),
		counters: Counters{Batches: 12, Warehouses: 3, HarvestsThisYear: 7, OrdersThisMonth: 2},
	}
	inv := stubInventory{
		warehouses: []inventory.Warehouse{{ID: 5, Name: "Cold Store"}},
		batches:    []inventory.Batch{{ID: 9, WarehouseID: 5, WarehouseName: "Cold Store", ProductName: "Kale", Quantity: 3}},
	}
	rec := serveDashboard(t, repo, inv, "/", ana)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.NotContains(t, body, "John Doe")
	assert.Contains(t, body, "user0")
	assert.Contains(t, body, "user2")
	assert.NotContains(t, body, "user3")
	assert.Contains(t, body, `data-counter="batches">12<`)
	assert.Contains(t, body, `data-counter="orders">2<`)
	assert.Contains(t, body, `<option value="5">Cold Store</option>`)
	assert.Contains(t, body, "Kale")
}

func TestDashboardSurvivesInventoryErrors(t *testing.T) {
	rec := serveDashboard(t, &stubRepo{}, stubInventory{err: errors.New("relation missing")}, "/", ana)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No batches found.")
}

func TestDashboardRedirectsAnonymous(t *testing.T) {
	rec := serveDashboard(t, &stubRepo{}, stubInventory{}, "/", shared.Viewer{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestDashboardSnapshot(t *testing.T) {
	rec := serveDashboard(t, &stubRepo{counters: Counters{Batches: 4}}, stubInventory{}, "/api/dashboard", ana)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got struct {
		Viewer struct {
			Username string `json:"username"`
		} `json:"viewer"`
		Activity      []ActivityEntry `json:"activity"`
		SampleFeed    bool            `json:"sample_feed"`
		Counters      Counters        `json:"counters"`
		CountersValid bool            `json:"counters_valid"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "ana", got.Viewer.Username)
	assert.True(t, got.SampleFeed)
	assert.Equal(t, SampleActivity(), got.Activity)
	assert.True(t, got.CountersValid)
	assert.Equal(t, int64(4), got.Counters.Batches)

	rec = serveDashboard(t, &stubRepo{}, stubInventory{}, "/api/dashboard", shared.Viewer{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
