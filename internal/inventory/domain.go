package inventory

import (
	"errors"
	"strconv"
	"time"

	"github.com/agristock/agristock/internal/search"
)

// Warehouse is a storage site with its aggregate stored quantity.
type Warehouse struct {
	ID             int64
	Name           string
	Location       string
	Capacity       int64
	StoredQuantity float64
}

// Batch is one harvested lot kept in a warehouse.
type Batch struct {
	ID            int64
	WarehouseID   int64
	WarehouseName string
	ProductName   string
	Quantity      float64
	HarvestDate   time.Time
	CreatedAt     time.Time
}

// Code is the label shown in the first table column.
func (b Batch) Code() string {
	return "B-" + strconv.FormatInt(b.ID, 10)
}

// Row returns the table cells in column order; the last one is the action column.
func (b Batch) Row() search.Row {
	harvest := ""
	if !b.HarvestDate.IsZero() {
		harvest = b.HarvestDate.Format(DateLayout)
	}
	return search.Row{
		b.Code(),
		b.ProductName,
		strconv.FormatFloat(b.Quantity, 'f', -1, 64),
		harvest,
		b.WarehouseName,
		"",
	}
}

// BatchTable is the view model for partials/batch_table.
type BatchTable struct {
	Batches   []Batch
	CanDelete bool
	CSRFToken string
}

// BatchFilter narrows ListBatches.
type BatchFilter struct {
	WarehouseID int64
	Limit       int
}

// CreateBatchInput carries a validated new batch.
type CreateBatchInput struct {
	ProductName string
	Quantity    float64
	WarehouseID int64
	HarvestDate time.Time
	ActorID     int64
}

// DateLayout is the format of harvest dates in forms and tables.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrInvalidBatch indicates missing batch fields.
	ErrInvalidBatch = errors.New("inventory: product, warehouse and harvest date required")
	// ErrHarvestInFuture rejects harvest dates after today.
	ErrHarvestInFuture = errors.New("inventory: harvest date is in the future")
)
