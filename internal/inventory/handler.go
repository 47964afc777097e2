package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/agristock/agristock/internal/rbac"
	"github.com/agristock/agristock/internal/shared"
	"github.com/agristock/agristock/internal/view"
)

// Handler wires HTTP endpoints for batches and warehouses.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers batch and warehouse routes at the router root.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated())
		r.Get("/batches", h.listBatches)
		r.Get("/batches/new", h.showBatchForm)
		r.Post("/batches", h.createBatch)
		r.Get("/warehouses/{id}", h.showWarehouse)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.BatchDeleteRoles...))
		r.Post("/batches/{id}/delete", h.deleteBatch)
	})
}

// NewBatchTable builds the table view model for the request viewer.
func NewBatchTable(viewer shared.Viewer, csrfToken string, batches []Batch) BatchTable {
	return BatchTable{Batches: batches, CanDelete: rbac.CanDeleteBatches(viewer), CSRFToken: csrfToken}
}

type batchesPageData struct {
	Query string
	Table BatchTable
}

type batchForm struct {
	ProductName string `validate:"required,max=120"`
	QuantityRaw string `validate:"required,numeric"`
	WarehouseID int64  `validate:"required,gt=0"`
	HarvestDate string `validate:"required,datetime=2006-01-02"`
}

type batchFormPageData struct {
	Form       batchForm
	Errors     map[string]string
	Warehouses []Warehouse
}

type warehousePageData struct {
	Warehouse  Warehouse
	Warehouses []Warehouse
	Table      BatchTable
}

var fieldMessages = map[string]string{
	"ProductName": "Enter a product name (up to 120 characters).",
	"QuantityRaw": "Enter a quantity greater than zero.",
	"WarehouseID": "Choose a warehouse.",
	"HarvestDate": "Enter the harvest date as YYYY-MM-DD.",
}

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	batches, err := h.service.SearchBatches(r.Context(), BatchFilter{}, query)
	if err != nil {
		h.logger.Error("list batches", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, http.StatusOK, "pages/batches.html", "Batches", func(token string) any {
		return batchesPageData{Query: query, Table: NewBatchTable(shared.ViewerFromContext(r.Context()), token, batches)}
	})
}

func (h *Handler) showBatchForm(w http.ResponseWriter, r *http.Request) {
	form := batchForm{}
	if id, err := strconv.ParseInt(r.URL.Query().Get("warehouse_id"), 10, 64); err == nil {
		form.WarehouseID = id
	}
	h.renderForm(w, r, http.StatusOK, form, map[string]string{})
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form, errs := h.parseBatchForm(r)
	if len(errs) == 0 {
		quantity, _ := strconv.ParseFloat(form.QuantityRaw, 64)
		harvest, _ := time.Parse(DateLayout, form.HarvestDate)
		viewer := shared.ViewerFromContext(r.Context())
		id, err := h.service.CreateBatch(r.Context(), CreateBatchInput{
			ProductName: form.ProductName,
			Quantity:    quantity,
			WarehouseID: form.WarehouseID,
			HarvestDate: harvest,
			ActorID:     viewer.UserID,
		})
		switch {
		case err == nil:
			if sess := shared.SessionFromContext(r.Context()); sess != nil {
				sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Batch B-" + strconv.FormatInt(id, 10) + " created."})
			}
			http.Redirect(w, r, "/batches", http.StatusSeeOther)
			return
		case errors.Is(err, ErrInvalidQuantity):
			errs["QuantityRaw"] = fieldMessages["QuantityRaw"]
		case errors.Is(err, ErrHarvestInFuture):
			errs["HarvestDate"] = "Harvest date cannot be in the future."
		case errors.Is(err, shared.ErrNotFound):
			errs["WarehouseID"] = "The selected warehouse no longer exists."
		default:
			h.logger.Error("create batch", slog.Any("error", err))
			errs["general"] = shared.UserSafeMessage(err)
		}
	}
	h.renderForm(w, r, http.StatusBadRequest, form, errs)
}

func (h *Handler) parseBatchForm(r *http.Request) (batchForm, map[string]string) {
	form := batchForm{
		ProductName: strings.TrimSpace(r.PostFormValue("product_name")),
		QuantityRaw: strings.TrimSpace(r.PostFormValue("quantity")),
		HarvestDate: strings.TrimSpace(r.PostFormValue("harvest_date")),
	}
	errs := make(map[string]string)
	if raw := strings.TrimSpace(r.PostFormValue("warehouse_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs["WarehouseID"] = fieldMessages["WarehouseID"]
		}
		form.WarehouseID = id
	}
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				errs[fieldErr.Field()] = fieldMessages[fieldErr.Field()]
			}
		}
	}
	if _, ok := errs["QuantityRaw"]; !ok {
		if q, err := strconv.ParseFloat(form.QuantityRaw, 64); err != nil || q <= 0 {
			errs["QuantityRaw"] = fieldMessages["QuantityRaw"]
		}
	}
	return form, errs
}

func (h *Handler) deleteBatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return
	}
	viewer := shared.ViewerFromContext(r.Context())
	sess := shared.SessionFromContext(r.Context())
	err = h.service.DeleteBatch(r.Context(), id, viewer.UserID)
	switch {
	case err == nil:
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Batch B-" + strconv.FormatInt(id, 10) + " deleted."})
		}
	case errors.Is(err, shared.ErrNotFound):
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "error", Message: shared.UserSafeMessage(err)})
		}
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/batches", http.StatusSeeOther)
}

func (h *Handler) showWarehouse(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()
	wh, err := h.service.GetWarehouse(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("get warehouse", slog.Int64("warehouse_id", id), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	warehouses, err := h.service.ListWarehouses(ctx)
	if err != nil {
		h.logger.Error("list warehouses", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	batches, err := h.service.ListBatches(ctx, BatchFilter{WarehouseID: id})
	if err != nil {
		h.logger.Error("list warehouse batches", slog.Int64("warehouse_id", id), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, http.StatusOK, "pages/warehouse_detail.html", wh.Name, func(token string) any {
		return warehousePageData{
			Warehouse:  wh,
			Warehouses: warehouses,
			Table:      NewBatchTable(shared.ViewerFromContext(ctx), token, batches),
		}
	})
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, form batchForm, errs map[string]string) {
	warehouses, err := h.service.ListWarehouses(r.Context())
	if err != nil {
		h.logger.Error("list warehouses", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, status, "pages/batch_form.html", "New Batch", func(string) any {
		return batchFormPageData{Form: form, Errors: errs, Warehouses: warehouses}
	})
}

// render resolves the CSRF token and flash before building the page data, since
// some view models embed the token.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data func(csrfToken string) any) {
	sess := shared.SessionFromContext(r.Context())
	token, _ := h.csrf.EnsureToken(sess)
	viewData := view.TemplateData{
		Title:     title,
		CSRFToken: token,
		Flash:     sess.PopFlash(),
		Data:      data(token),
	}
	if err := h.templates.RenderPageStatus(w, r, status, name, viewData); err != nil {
		h.logger.Error("render page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
