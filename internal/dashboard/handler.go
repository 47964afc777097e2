package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agristock/agristock/internal/inventory"
	"github.com/agristock/agristock/internal/platform/httpx"
	"github.com/agristock/agristock/internal/rbac"
	"github.com/agristock/agristock/internal/shared"
	"github.com/agristock/agristock/internal/view"
)

// RecentBatchLimit caps the batch table on the home page.
const RecentBatchLimit = 10

// InventoryReader supplies the warehouse selector and recent batches.
type InventoryReader interface {
	ListWarehouses(ctx context.Context) ([]inventory.Warehouse, error)
	ListBatches(ctx context.Context, filter inventory.BatchFilter) ([]inventory.Batch, error)
}

// Handler serves the dashboard page and its JSON snapshot.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	inventory InventoryReader
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

// NewHandler constructs the dashboard handler.
func NewHandler(logger *slog.Logger, service *Service, inv InventoryReader, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{logger: logger, service: service, inventory: inv, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers GET / and GET /api/dashboard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated())
		r.Get("/", h.showDashboard)
		r.Get("/api/dashboard", h.snapshot)
	})
}

type homePageData struct {
	Query      string
	Warehouses []inventory.Warehouse
	Table      inventory.BatchTable
}

// showDashboard never fails on inventory reads. The shell is filled in by the
// view engine, which falls back on its own.
func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)
	token, _ := h.csrf.EnsureToken(sess)

	var warehouses []inventory.Warehouse
	var batches []inventory.Batch
	if h.inventory != nil {
		var err error
		if warehouses, err = h.inventory.ListWarehouses(ctx); err != nil {
			h.logger.Warn("dashboard warehouses", slog.Any("error", err))
		}
		if batches, err = h.inventory.ListBatches(ctx, inventory.BatchFilter{Limit: RecentBatchLimit}); err != nil {
			h.logger.Warn("dashboard batches", slog.Any("error", err))
		}
	}

	data := view.TemplateData{
		Title:     "Dashboard",
		CSRFToken: token,
		Flash:     sess.PopFlash(),
		Data: homePageData{
			Query:      r.URL.Query().Get("q"),
			Warehouses: warehouses,
			Table:      inventory.NewBatchTable(shared.ViewerFromContext(ctx), token, batches),
		},
	}
	if err := h.templates.RenderPage(w, r, "pages/dashboard.html", data); err != nil {
		h.logger.Error("render dashboard", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type snapshotResponse struct {
	Viewer snapshotViewer `json:"viewer"`
	Shell
}

type snapshotViewer struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	viewer := shared.ViewerFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, snapshotResponse{
		Viewer: snapshotViewer{Username: viewer.Username, Role: viewer.DisplayRole()},
		Shell:  h.service.Shell(r.Context()),
	})
}
