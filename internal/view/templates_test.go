package view

import (
	"context"
	"html/template"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agristock/agristock/internal/shared"
)

type fakeEntry struct{ Actor, Action, When string }

type fakeCounters struct{ Batches, Warehouses, HarvestsThisYear, OrdersThisMonth int64 }

type fakeShell struct {
	Activity   []fakeEntry
	SampleFeed bool
	Counters   fakeCounters
}

type shellFunc func(ctx context.Context) any

func (f shellFunc) ShellData(ctx context.Context) any { return f(ctx) }

func dashboardData() map[string]any {
	return map[string]any{
		"Query":      "",
		"Warehouses": nil,
		"Table":      map[string]any{"Batches": nil, "CanDelete": false, "CSRFToken": ""},
	}
}

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderPageFillsShellAndViewer(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	calls := 0
	engine.WithShell(shellFunc(func(ctx context.Context) any {
		calls++
		return fakeShell{
			Activity:   []fakeEntry{{Actor: "Maria", Action: "Batch Created #7", When: "just now"}},
			SampleFeed: true,
			Counters:   fakeCounters{Batches: 12, Warehouses: 3},
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithViewer(req.Context(), shared.Viewer{UserID: 5, Username: "maria", Role: "manager"}))
	rec := httptest.NewRecorder()
	require.NoError(t, engine.RenderPage(rec, req, "pages/dashboard.html", TemplateData{Data: dashboardData()}))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "<b>maria</b>")
	assert.Contains(t, body, "manager")
	assert.Contains(t, body, "Batch Created #7")
	assert.Contains(t, body, `class="updates sample"`)
	assert.Contains(t, body, `data-counter="batches">12<`)
	assert.Contains(t, body, `data-counter="orders">0<`)
}

func TestRenderPageWithoutShellSource(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, engine.RenderPageStatus(rec, req, http.StatusAccepted, "pages/dashboard.html", TemplateData{Data: dashboardData()}))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "Guest")
	assert.NotContains(t, rec.Body.String(), "Recent Updates")
}

func TestRenderUnknownTemplateWritesNothing(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	assert.Error(t, engine.Render(rec, "pages/missing.html", TemplateData{}))
	assert.Empty(t, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Content-Type"))
}

func TestFuncMap(t *testing.T) {
	fm := funcMap()
	assert.Equal(t, "2.5", fm["qty"].(func(float64) string)(2.5))
	assert.Equal(t, "10", fm["qty"].(func(float64) string)(10))
	isActive := fm["isActive"].(func(string, string) bool)
	assert.True(t, isActive("/", "/"))
	assert.False(t, isActive("/batches", "/"))
	assert.True(t, isActive("/batches/new", "/batches"))
	hidden := fm["hidden"].(func(bool) template.HTMLAttr)
	assert.Equal(t, template.HTMLAttr("hidden"), hidden(false))
	assert.Equal(t, template.HTMLAttr(""), hidden(true))
}
